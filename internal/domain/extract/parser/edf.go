package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// callFamilyLabels maps the third hyphen-segment of an EDF call id to its
// display label. Unrecognized codes leave the family unset.
var callFamilyLabels = map[string]string{
	"RA":  "RA — Research Actions",
	"DA":  "DA — Development Actions",
	"CSA": "CSA — Coordination & Support Actions",
}

var (
	reEDFTopicLine = regexp.MustCompile(`(?i)^\s*(?:(\d+(?:\.\d+)*)\.?)?\s*(EDF-\d{4}-[A-Z]{2,}(?:-[A-Z0-9]+)+)\s*:\s*(.+?)\s*$`)
	reEDFTopicOnly = regexp.MustCompile(`(?i)^\s*(?:(\d+(?:\.\d+)*)\.?)?\s*(EDF-\d{4}-[A-Z]{2,}(?:-[A-Z0-9]+)+)\s*$`)
	reEDFCallLine  = regexp.MustCompile(`(?i)^\s*(?:(\d+(?:\.\d+)*)\.?)?\s*Call\s+(EDF-\d{4}-[A-Z]{2,})\b[:\-]?\s*(.*)$`)
	reEDFCallID    = regexp.MustCompile(`(?i)\b(EDF-\d{4}-[A-Z]{2,})\b`)

	reTOCStart = regexp.MustCompile(`(?i)\bTable of contents\b`)
	reTOCEnd   = regexp.MustCompile(`(?i)^\s*1\.\s*Content of the document\b`)

	reEURAmountAfter  = regexp.MustCompile(`(?i)EUR\s*([0-9][0-9 .,\x{00a0}]*)`)
	reEURAmountBefore = regexp.MustCompile(`(?i)([0-9][0-9 .,\x{00a0}]*)\s*EUR`)
	reNonAmountChars  = regexp.MustCompile(`[^\d,.\s\x{00a0}]`)

	reFirstInt   = regexp.MustCompile(`\d+`)
	rePercentage = regexp.MustCompile(`(\d{1,3})\s?%`)

	reStepYes  = regexp.MustCompile(`(?i)\bSTEP\b.*\byes\b`)
	reStepNo   = regexp.MustCompile(`(?i)\bSTEP\b.*\bno\b`)
	reStepBare = regexp.MustCompile(`\bSTEP\b`)

	reLargeScale = regexp.MustCompile(`(?i)\blarge[-\s]?scale\b`)
)

// fundingKeywords gate the percentage rule: a bare percentage elsewhere in
// the text is never a funding rate.
var fundingKeywords = []string{
	"funding rate", "funding level", "funding intensity", "funding percentage",
	"eu funding", "union funding", "co-funding", "cofunding",
}

// descStartHeadings open verbatim description capture.
var descStartHeadings = []string{
	"objectives", "general objective", "specific objective",
	"scope and types of activities",
}

// edfScanner holds the call/topic context threaded through the line loop.
type edfScanner struct {
	page *int

	callID      string
	callSection string
	callRecord  *Row

	current       *Row
	inTOC         bool
	inDesc        bool
	awaitingTitle bool
	descBuf       []string
	out           []*Row
}

// ParseEDF extracts CALL and TOPIC level rows from EDF call-text. Lines
// between the "Table of contents" marker and the "1. Content of the document"
// marker are discarded wholesale so TOC listings never open phantom topics.
func ParseEDF(text string) []Row {
	s := &edfScanner{}
	for _, raw := range strings.Split(text, "\n") {
		s.scanLine(raw)
	}
	s.flushDesc()

	rows := make([]Row, len(s.out))
	for i, r := range s.out {
		finalizeEDFRow(r)
		rows[i] = *r
	}
	return rows
}

func (s *edfScanner) scanLine(raw string) {
	ln := normSpace(raw)

	if m := rePageMarker.FindStringSubmatch(ln); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			s.page = intPtr(n)
		}
		return
	}

	if reTOCStart.MatchString(ln) {
		s.inTOC = true
		return
	}
	if s.inTOC {
		if reTOCEnd.MatchString(ln) {
			s.inTOC = false
		}
		return
	}

	if m := reEDFCallLine.FindStringSubmatch(ln); m != nil {
		s.openCall(m[1], strings.ToUpper(m[2]), m[3])
		return
	}
	if m := reEDFTopicLine.FindStringSubmatch(ln); m != nil {
		s.openTopic(strings.ToUpper(m[2]), m[3], m[1])
		return
	}
	if m := reEDFTopicOnly.FindStringSubmatch(ln); m != nil {
		s.openTopic(strings.ToUpper(m[2]), "", m[1])
		s.awaitingTitle = true
		return
	}

	if s.current == nil {
		return
	}
	s.captureFields(ln, raw)
}

func (s *edfScanner) openCall(sectionNo, callID, titleTail string) {
	s.flushDesc()
	s.current = nil
	s.awaitingTitle = false

	title := cleanTitle(titleTail)
	if title == "" {
		title = callID
	}

	s.callID = callID
	s.callSection = sectionNo
	s.callRecord = &Row{
		RecordLevel: LevelCall,
		CallID:      callID,
		Title:       title,
		SectionNo:   sectionNo,
		CallFamily:  extractCallFamily(callID),
		Page:        s.page,
	}
	s.out = append(s.out, s.callRecord)
}

func (s *edfScanner) openTopic(topicID, titleTail, sectionNo string) {
	s.flushDesc()

	title := cleanTitle(titleTail)
	if isBadTitle(title) {
		title = ""
	}
	callID := s.callID
	if callID == "" {
		callID = callIDFromEDFTopic(topicID)
	}

	s.current = &Row{
		RecordLevel: LevelTopic,
		CallID:      callID,
		TopicID:     topicID,
		TopicTitle:  title,
		SectionNo:   sectionNo,
		CallFamily:  extractCallFamily(callID),
		Page:        s.page,
	}
	s.awaitingTitle = title == ""
	s.out = append(s.out, s.current)
}

// captureFields applies the field rules to a line inside the current topic.
// Rules are independent: one line can satisfy several of them.
func (s *edfScanner) captureFields(ln, raw string) {
	cur := s.current
	low := strings.ToLower(ln)

	if s.awaitingTitle && looksLikeTitleFragment(ln) {
		if frag := cleanTitle(ln); frag != "" && !isBadTitle(frag) {
			cur.TopicTitle = frag
			s.awaitingTitle = false
		}
	}

	if strings.Contains(low, "type of action") {
		if tail := afterColon(ln); tail != "" {
			cur.TypeOfAction = tail
		} else if cur.TypeOfAction == "" {
			cur.TypeOfAction = ln
		}
	}

	// Call-level and topic-level budgets are stated with distinct wording and
	// never conflated.
	if strings.Contains(low, "indicative budget for the call") {
		if v := extractBudgetEURm(ln); v != nil {
			if s.callRecord != nil {
				s.callRecord.CallIndicativeBudgetEURm = v
			}
			cur.CallIndicativeBudgetEURm = v
		}
	}
	if strings.Contains(low, "indicative budget") && strings.Contains(low, "for this topic") {
		if v := extractBudgetEURm(ln); v != nil {
			cur.IndicativeBudgetEURm = v
		}
	}

	if cur.FundingPctRaw == nil {
		if v := extractFundingPercentage(ln); v != nil {
			cur.FundingPctRaw = v
		}
	}

	if strings.Contains(low, "number of actions") {
		if m := reFirstInt.FindString(ln); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				cur.NumberOfActions = intPtr(n)
			}
		}
	}

	switch {
	case reStepYes.MatchString(ln):
		cur.Step = boolPtr(true)
	case reStepNo.MatchString(ln):
		cur.Step = boolPtr(false)
	case cur.Step == nil && reStepBare.MatchString(ln):
		cur.Step = boolPtr(true)
	}

	for _, h := range descStartHeadings {
		if strings.Contains(low, h) {
			s.inDesc = true
			break
		}
	}
	if s.inDesc {
		s.descBuf = append(s.descBuf, strings.TrimRight(raw, " \t"))
	}

	if strings.Contains(low, "opening date") {
		if tail := afterColon(ln); tail != "" {
			cur.OpeningDate = tail
		}
	}
	if strings.Contains(low, "deadline") {
		if tail := afterColon(ln); tail != "" {
			cur.DeadlineDate = tail
		}
	}

	if s.awaitingTitle && cur.TopicTitle == "" &&
		len(strings.Fields(ln)) > 3 && !reEDFCallID.MatchString(ln) {
		if cand := cleanTitle(ln); cand != "" && !isBadTitle(cand) {
			cur.TopicTitle = cand
			s.awaitingTitle = false
		}
	}
}

// flushDesc attaches the buffered verbatim description to the topic it was
// captured for.
func (s *edfScanner) flushDesc() {
	if s.current != nil && len(s.descBuf) > 0 {
		s.current.TopicDescriptionVerbatim = strings.Join(s.descBuf, "\n")
	}
	s.descBuf = nil
	s.inDesc = false
}

// finalizeEDFRow recomputes derived fields after the full scan: a call's
// large-scale status may depend on text that appears after its header.
func finalizeEDFRow(r *Row) {
	if r.CallFamily == "" {
		r.CallFamily = extractCallFamily(r.CallID)
	}
	if r.CallFamily == "" {
		r.CallFamily = extractCallFamily(r.TopicID)
	}
	if r.RecordLevel == "" {
		r.RecordLevel = LevelTopic
	}
	if r.Title == "" {
		if r.TopicTitle != "" {
			r.Title = r.TopicTitle
		} else if r.TopicID != "" {
			r.Title = r.TopicID
		} else {
			r.Title = r.CallID
		}
	}
	r.IsLargeScale = isLargeScale(r.CallID, r.TopicID, r.Title, r.TopicDescriptionVerbatim)
}

// extractCallFamily pulls the family code from the third hyphen-segment of an
// EDF identifier, e.g. "EDF-2024-RA" -> "RA".
func extractCallFamily(id string) string {
	parts := strings.Split(id, "-")
	if len(parts) < 3 {
		return ""
	}
	fam := strings.ToUpper(parts[2])
	if _, ok := callFamilyLabels[fam]; !ok {
		return ""
	}
	return fam
}

// CallFamilyLabel returns the display label for a family code, or the code
// itself when no label is known.
func CallFamilyLabel(code string) string {
	if label, ok := callFamilyLabels[code]; ok {
		return label
	}
	return code
}

func callIDFromEDFTopic(topicID string) string {
	if m := reEDFCallID.FindStringSubmatch(topicID); m != nil {
		return strings.ToUpper(m[1])
	}
	parts := strings.Split(topicID, "-")
	if len(parts) >= 3 {
		return strings.ToUpper(strings.Join(parts[:3], "-"))
	}
	return ""
}

func hasLargeScaleToken(id string) bool {
	parts := strings.Split(id, "-")
	if len(parts) < 4 {
		return false
	}
	for _, p := range parts[3:] {
		if strings.EqualFold(p, "LS") {
			return true
		}
	}
	return false
}

func isLargeScale(callID, topicID, title, desc string) bool {
	if hasLargeScaleToken(topicID) || hasLargeScaleToken(callID) {
		return true
	}
	return reLargeScale.MatchString(title + " " + desc)
}

// extractBudgetEURm finds an EUR amount on the line (digits with space, nbsp,
// dot or comma grouping, before or after the "EUR" token) and converts it to
// millions, rounded to two decimals.
func extractBudgetEURm(line string) *float64 {
	m := reEURAmountAfter.FindStringSubmatch(line)
	if m == nil {
		m = reEURAmountBefore.FindStringSubmatch(line)
	}
	if m == nil {
		return nil
	}
	return toMillions(m[1])
}

func toMillions(amount string) *float64 {
	cleaned := reNonAmountChars.ReplaceAllString(amount, "")
	cleaned = strings.NewReplacer(" ", "", " ", "", ",", "").Replace(cleaned)
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	v, _ := d.Div(decimal.NewFromInt(1_000_000)).Round(2).Float64()
	return floatPtr(v)
}

func extractFundingPercentage(line string) *float64 {
	low := strings.ToLower(line)
	found := false
	for _, kw := range fundingKeywords {
		if strings.Contains(low, kw) {
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	m := rePercentage.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return floatPtr(n)
}

func looksLikeTitleFragment(line string) bool {
	if len(strings.Fields(line)) < 2 {
		return false
	}
	low := strings.ToLower(line)
	if strings.Contains(low, "type of action") ||
		strings.Contains(low, "indicative budget") ||
		strings.Contains(low, "number of actions") ||
		strings.TrimSpace(low) == "step" {
		return false
	}
	if reEDFTopicOnly.MatchString(line) || reEDFCallID.MatchString(line) {
		return false
	}
	return true
}

func afterColon(ln string) string {
	if _, after, found := strings.Cut(ln, ":"); found {
		return strings.TrimSpace(after)
	}
	return ""
}
