package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Bounded lookahead caps. They guarantee termination on malformed input; the
// cap-exceeded paths are covered by tests.
const (
	maxOverviewLines     = 12
	maxTitleLookahead    = 12
	maxFallbackDescLines = 3
	maxSalvageLines      = 2
)

// horizonActionTokens is the closed set of funding-instrument codes that can
// open an overview block, longest first so the alternation is unambiguous.
var horizonActionTokens = []string{
	"EIC-PATHFINDER", "EIC-TRANSITION", "EIC-ACCELERATOR",
	"COFUND", "MSCA", "ERC", "RIA", "CSA", "PCP", "PPI", "IA",
}

var horizonActionSet = func() map[string]bool {
	set := make(map[string]bool, len(horizonActionTokens))
	for _, a := range horizonActionTokens {
		set[a] = true
	}
	return set
}()

var (
	reHorizonCallID  = regexp.MustCompile(`\bHORIZON-[A-Z0-9]+-\d{4}-\d{2}(?:-two-stage)?\b`)
	reHorizonTopicID = regexp.MustCompile(`\bHORIZON-[A-Z0-9]+-\d{4}-\d{2}-[A-Z0-9]+(?:-[A-Z0-9]+)*(?:-two-stage)?\b`)
	reCallFromTopic  = regexp.MustCompile(`^(HORIZON-[A-Z0-9]+-\d{4}-\d{2})-`)

	reOpeningLine  = regexp.MustCompile(`Opening:\s*(.+)`)
	reDeadlineLine = regexp.MustCompile(`Deadline\(s\):\s*(.+)`)
	rePageMarker   = regexp.MustCompile(`^<<<PAGE\s+(\d+)>>>$`)

	reOverviewHead = regexp.MustCompile(
		`^(` + strings.Join(horizonActionTokens, "|") + `)\s+(.*)$`)
	reDecimal         = regexp.MustCompile(`\d{1,4}(?:\.\d{1,3})?`)
	reTrailingCount   = regexp.MustCompile(`(?:^|\s)(\d{1,3})\s*$`)
	rePerProjectRange = regexp.MustCompile(`\b(\d{1,4}(?:\.\d{1,3})?)\s+to\s+(\d{1,4}(?:\.\d{1,3})?)\b`)
	reAround          = regexp.MustCompile(`(?i)\bAround\s+(\d{1,4}(?:\.\d{1,3})?)\b`)
	reLoneDecimal     = regexp.MustCompile(`^\d{1,4}(?:\.\d{1,3})?$`)

	// Footnote markers corrupt numeric matching: a stray digit glued to a
	// closing parenthesis or to "million"/"EUR" is dropped before parsing.
	reFootnoteMarker = regexp.MustCompile(`(?i)(\)|million|EUR)(\d)`)

	reTRL       = regexp.MustCompile(`(?i)\bTRL\s*(\d)(?:\s*[-\x{2013}]\s*(\d))?`)
	reTRLPhrase = regexp.MustCompile(`(?i)technology readiness levels?\s*(?:\(\s*TRL\s*\)\s*)?(\d)(?:\s*[-\x{2013}]\s*(\d))?`)

	reProgrammeHeader = regexp.MustCompile(`(?i)^horizon europe\b.*\bwork programme\b`)
	rePartPageFooter  = regexp.MustCompile(`(?i)^part\s+\d+\s*-\s*page\s+\d+\s+of\s+\d+$`)
)

// titleStopHeadings end title accumulation; checked as case-insensitive line
// prefixes.
var titleStopHeadings = []string{
	"expected outcome", "scope", "call:", "indicative budget",
	"type of action", "opening:", "deadline",
}

// descStopHeadings end Expected Outcome / Scope capture inside a topic's
// detail block. Matched near the start of a line with an Aho-Corasick matcher
// since the set is a closed list of literal phrases.
var descStopHeadings = []string{
	"eligibility", "admissibility", "general conditions", "general annexes",
	"annex", "indicative budget", "type of action", "opening:", "deadline(s)",
	"legal and financial set-up",
}

var descStopMatcher = ahocorasick.NewStringMatcher(descStopHeadings)

// overview is the parsed multi-line row stating action type, total budget,
// per-project range and project count.
type overview struct {
	actionType string
	total      float64
	perMin     *float64
	perMax     *float64
	projects   *int
}

type pendingTopic struct {
	id           string
	ordinal      int // which occurrence of this id in the document
	page         *int
	titleParts   []string
	fallbackDesc []string
	ov           *overview
}

type topicEntry struct {
	row          *Row
	score        int
	ordinal      int
	fallbackDesc string
}

// horizonScanner is the explicit scanner context: all state the line loop
// mutates lives here, per named field, instead of in closure variables.
type horizonScanner struct {
	lines    []string // trimmed, non-empty
	rawLines []string // original line structure, for detail blocks
	idx      int

	page        *int
	cluster     string
	stage       string
	callRound   string
	clusterPage *int

	callID   string
	opening  string
	deadline string

	pending *pendingTopic
	seen    map[string]int

	out     []*Row
	byTopic map[string]*topicEntry
}

// ParseHorizon scans page-marked Horizon work-programme text and returns one
// row per topic id, deduplicated by overview-field score. The scanner is total
// over arbitrary text: it never fails, it only leaves fields unset.
func ParseHorizon(text string) []Row {
	rawLines := strings.Split(text, "\n")
	lines := make([]string, 0, len(rawLines))
	for _, ln := range rawLines {
		if t := strings.TrimSpace(ln); t != "" {
			lines = append(lines, t)
		}
	}

	s := &horizonScanner{
		lines:    lines,
		rawLines: rawLines,
		seen:     make(map[string]int),
		byTopic:  make(map[string]*topicEntry),
	}
	s.run()
	s.attachDetails()

	rows := make([]Row, len(s.out))
	for i, r := range s.out {
		rows[i] = *r
	}
	return rows
}

// run drives the ordered rule table: first matching rule consumes the line and
// advances the index; unmatched lines are skipped.
func (s *horizonScanner) run() {
	rules := []func(string) bool{
		s.rulePageMarker,
		s.ruleClusterHeader,
		s.ruleBareCallID,
		s.ruleOpening,
		s.ruleDeadline,
		s.ruleTopicID,
	}
	for s.idx < len(s.lines) {
		ln := s.lines[s.idx]
		matched := false
		for _, rule := range rules {
			if rule(ln) {
				matched = true
				break
			}
		}
		if !matched {
			s.idx++
		}
	}
	s.flushTopic()
}

func (s *horizonScanner) rulePageMarker(ln string) bool {
	if !s.consumePageMarker(ln) {
		return false
	}
	s.idx++
	return true
}

// consumePageMarker updates the current page when the line is a page sentinel.
// It never advances the index; callers own their cursor.
func (s *horizonScanner) consumePageMarker(ln string) bool {
	m := rePageMarker.FindStringSubmatch(ln)
	if m == nil {
		return false
	}
	if n, err := strconv.Atoi(m[1]); err == nil {
		s.page = intPtr(n)
	}
	return true
}

func (s *horizonScanner) ruleClusterHeader(ln string) bool {
	if !strings.HasPrefix(ln, "Call - ") {
		return false
	}
	s.flushTopic()

	cluster, stage, callRound, page := parseClusterLine(ln)
	s.cluster = cluster
	s.stage = stage
	s.callRound = callRound
	s.clusterPage = page

	// Call-scoped state resets with the cluster.
	s.callID = ""
	s.opening = ""
	s.deadline = ""

	s.idx++
	return true
}

func (s *horizonScanner) ruleBareCallID(ln string) bool {
	m := reHorizonCallID.FindString(ln)
	if m == "" || reHorizonTopicID.MatchString(ln) {
		return false
	}
	s.callID = m
	s.idx++
	return true
}

func (s *horizonScanner) ruleOpening(ln string) bool {
	m := reOpeningLine.FindStringSubmatch(ln)
	if m == nil {
		return false
	}
	s.opening = normSpace(m[1])
	s.idx++
	return true
}

func (s *horizonScanner) ruleDeadline(ln string) bool {
	m := reDeadlineLine.FindStringSubmatch(ln)
	if m == nil {
		return false
	}
	s.deadline = normSpace(m[1])
	s.idx++
	return true
}

func (s *horizonScanner) ruleTopicID(ln string) bool {
	id := reHorizonTopicID.FindString(ln)
	if id == "" {
		return false
	}
	s.flushTopic()

	p := &pendingTopic{id: id, page: s.page, ordinal: s.seen[id]}
	s.seen[id]++
	s.pending = p

	cleaned, tocPage := stripDotLeaderPage(ln)
	if tocPage != nil {
		// A TOC entry names the page the topic actually lives on.
		p.page = tocPage
	}
	if _, after, found := strings.Cut(cleaned, ":"); found {
		p.titleParts = append(p.titleParts, normSpace(after))
	}
	s.idx++

	s.scanTopicTail(p)
	s.flushTopic()
	return true
}

// scanTopicTail collects title continuation lines and hunts for the overview
// block, within a bounded lookahead window.
func (s *horizonScanner) scanTopicTail(p *pendingTopic) {
	for steps := 0; s.idx < len(s.lines) && steps < maxTitleLookahead; steps++ {
		nxt := s.lines[s.idx]

		if s.consumePageMarker(nxt) {
			s.idx++
			continue
		}
		if isBlockBoundary(nxt) {
			return
		}
		if isTitleStopHeading(nxt) {
			return
		}

		if horizonActionSet[firstToken(nxt)] {
			if ov, next := s.parseOverviewBlock(s.idx); ov != nil {
				p.ov = ov
				s.idx = next
				s.salvageAfterOverview(p)
				return
			}
			// Overview did not resolve: the line falls through as title text.
		}

		if len(strings.Fields(nxt)) >= 2 && !strings.HasPrefix(nxt, "Destination - ") {
			p.titleParts = append(p.titleParts, normSpace(nxt))
		}
		s.idx++
	}
}

// parseOverviewBlock parses the overview row for a topic even when split
// across multiple physical lines. It starts at a line beginning with an
// action-type token and accumulates up to maxOverviewLines lines, reparsing
// the joined buffer after each. On failure it reports no consumption so the
// caller can fall back to title handling.
func (s *horizonScanner) parseOverviewBlock(start int) (*overview, int) {
	var buf []string
	i := start
	for n := 0; n < maxOverviewLines && i < len(s.lines); n++ {
		ln := s.lines[i]
		if s.consumePageMarker(ln) {
			i++
			continue
		}
		if isBlockBoundary(ln) {
			break
		}
		buf = append(buf, ln)
		joined := stripFootnoteMarkers(normSpace(strings.Join(buf, " ")))

		m := reOverviewHead.FindStringSubmatch(joined)
		if m == nil {
			i++
			continue
		}
		action, rest := m[1], m[2]

		nums := reDecimal.FindAllString(rest, -1)
		if len(nums) == 0 {
			i++
			continue
		}
		total := mustFloat(nums[0])

		if ov := resolvePerProject(action, total, rest, nums); ov != nil {
			return ov, i + 1
		}
		i++
	}
	return nil, start
}

// resolvePerProject tries the per-project patterns in priority order:
// an explicit "X to Y" range, "Around X" with a trailing project count, then
// the messy layout where "Around N" is the project count and the contribution
// is the last distinct decimal that differs from the total (kept as-is from
// observed documents; picking the total itself would be wrong).
func resolvePerProject(action string, total float64, rest string, nums []string) *overview {
	count := trailingCount(rest)

	if rm := rePerProjectRange.FindStringSubmatch(rest); rm != nil && count != nil {
		lo, hi := mustFloat(rm[1]), mustFloat(rm[2])
		if lo > hi {
			lo, hi = hi, lo
		}
		return &overview{action, total, floatPtr(lo), floatPtr(hi), count}
	}

	am := reAround.FindStringSubmatch(rest)
	if am == nil {
		return nil
	}

	if count != nil {
		v := mustFloat(am[1])
		return &overview{action, total, floatPtr(v), floatPtr(v), count}
	}

	if !strings.Contains(am[1], ".") {
		n, err := strconv.Atoi(am[1])
		if err != nil || n <= 0 || n > 999 {
			return nil
		}
		for j := len(nums) - 1; j >= 1; j-- {
			v := mustFloat(nums[j])
			if v != total {
				return &overview{action, total, floatPtr(v), floatPtr(v), intPtr(n)}
			}
		}
	}
	return nil
}

// salvageAfterOverview captures up to three short lines following the overview
// as a terse fallback description, then up to two more lines that turn out to
// be a missed per-project value or a trailing title fragment.
func (s *horizonScanner) salvageAfterOverview(p *pendingTopic) {
	for n := 0; n < maxFallbackDescLines && s.idx < len(s.lines); n++ {
		ln := s.lines[s.idx]
		if isBlockBoundary(ln) || isTitleStopHeading(ln) {
			return
		}
		words := len(strings.Fields(ln))
		if words < 2 || words > 14 {
			break
		}
		p.fallbackDesc = append(p.fallbackDesc, normSpace(ln))
		s.idx++
	}
	for n := 0; n < maxSalvageLines && s.idx < len(s.lines); n++ {
		ln := s.lines[s.idx]
		if s.consumePageMarker(ln) {
			s.idx++
			continue
		}
		if isBlockBoundary(ln) || isTitleStopHeading(ln) {
			return
		}
		if reLoneDecimal.MatchString(ln) {
			if p.ov != nil && p.ov.perMin == nil {
				v := mustFloat(ln)
				p.ov.perMin = floatPtr(v)
				p.ov.perMax = floatPtr(v)
			}
			s.idx++
			continue
		}
		if words := len(strings.Fields(ln)); words >= 2 && words <= 8 {
			p.titleParts = append(p.titleParts, normSpace(ln))
			s.idx++
			continue
		}
		return
	}
}

// flushTopic finalizes the pending topic and merges it through the per-id
// deduplicator: TOC occurrences with no overview data lose to body occurrences
// that scored higher.
func (s *horizonScanner) flushTopic() {
	p := s.pending
	if p == nil {
		return
	}
	s.pending = nil

	titleRaw, titlePage := stripDotLeaderPage(normSpace(strings.Join(p.titleParts, " ")))
	titleClean := cleanTitle(titleRaw)
	if isBadTitle(titleClean) {
		titleClean = ""
	}

	page := titlePage
	if page == nil {
		page = p.page
	}
	if page == nil {
		page = s.page
	}
	if page == nil {
		page = s.clusterPage
	}

	if s.callID == "" {
		s.callID = deriveCallIDFromTopic(p.id)
	}

	row := &Row{
		RecordLevel:  LevelTopic,
		Cluster:      s.cluster,
		Stage:        s.stage,
		CallRound:    s.callRound,
		Page:         page,
		CallID:       s.callID,
		TopicID:      p.id,
		TopicTitle:   titleClean,
		OpeningDate:  s.opening,
		DeadlineDate: s.deadline,
	}
	if p.ov != nil {
		row.ActionType = p.ov.actionType
		row.BudgetEURm = floatPtr(p.ov.total)
		row.BudgetPerProjectMinEURm = p.ov.perMin
		row.BudgetPerProjectMaxEURm = p.ov.perMax
		row.Projects = p.ov.projects
	}

	score := row.overviewScore()
	fallback := normSpace(strings.Join(p.fallbackDesc, " "))

	if e, ok := s.byTopic[p.id]; ok {
		if score > e.score {
			*e.row = *row
			e.score = score
			e.ordinal = p.ordinal
			e.fallbackDesc = fallback
		}
		return
	}
	s.out = append(s.out, row)
	s.byTopic[p.id] = &topicEntry{row: row, score: score, ordinal: p.ordinal, fallbackDesc: fallback}
}

// attachDetails runs the detail-block pass: for each winning occurrence, the
// raw-text span up to the next topic or cluster boundary supplies the body
// text, the Expected Outcome / Scope description, and the TRL.
func (s *horizonScanner) attachDetails() {
	occurrences := make(map[string][]int)
	for i, raw := range s.rawLines {
		ln := strings.TrimSpace(raw)
		if id := reHorizonTopicID.FindString(ln); id != "" {
			occurrences[id] = append(occurrences[id], i)
		}
	}

	for id, e := range s.byTopic {
		locs := occurrences[id]
		if e.ordinal >= len(locs) {
			continue
		}
		start := locs[e.ordinal]
		end := len(s.rawLines)
		for i := start + 1; i < len(s.rawLines); i++ {
			ln := strings.TrimSpace(s.rawLines[i])
			if reHorizonTopicID.MatchString(ln) || strings.HasPrefix(ln, "Call - ") {
				end = i
				break
			}
		}

		body, desc := extractTopicDetail(s.rawLines[start:end])
		e.row.TopicBody = body
		e.row.TRL = extractTRL(body)
		if desc != "" {
			e.row.TopicDescription = desc
		} else {
			e.row.TopicDescription = e.fallbackDesc
		}
	}
}

// extractTopicDetail strips header/footer boilerplate from a topic's raw span
// and pulls out the Expected Outcome and Scope sections, trimmed at the stop
// headings.
func extractTopicDetail(block []string) (body string, description string) {
	var bodyLines, descLines []string
	inDesc := false

	for _, raw := range block {
		ln := strings.TrimSpace(raw)
		if ln == "" {
			if inDesc && len(descLines) > 0 {
				descLines = append(descLines, "")
			}
			continue
		}
		if rePageMarker.MatchString(ln) || reProgrammeHeader.MatchString(ln) || rePartPageFooter.MatchString(ln) {
			continue
		}
		bodyLines = append(bodyLines, ln)

		low := strings.ToLower(ln)
		if strings.HasPrefix(low, "expected outcome") || strings.HasPrefix(low, "scope") {
			inDesc = true
			descLines = append(descLines, ln)
			continue
		}
		if inDesc && hitsStopHeading(low) {
			inDesc = false
			continue
		}
		if inDesc {
			descLines = append(descLines, ln)
		}
	}

	for len(descLines) > 0 && descLines[len(descLines)-1] == "" {
		descLines = descLines[:len(descLines)-1]
	}
	return strings.Join(bodyLines, "\n"), strings.Join(descLines, "\n")
}

// hitsStopHeading reports whether a stop phrase appears near the start of the
// lowercased line; mid-paragraph mentions further in do not end the capture.
func hitsStopHeading(low string) bool {
	head := low
	if len(head) > 40 {
		head = head[:40]
	}
	return len(descStopMatcher.Match([]byte(head))) > 0
}

func extractTRL(text string) string {
	m := reTRL.FindStringSubmatch(text)
	if m == nil {
		m = reTRLPhrase.FindStringSubmatch(text)
	}
	if m == nil {
		return ""
	}
	if m[2] != "" {
		return m[1] + "-" + m[2]
	}
	return m[1]
}

// parseClusterLine splits a cluster header like
// "Call - Cluster 1 - Health (Single stage - 2027/2) ....... 24" into its
// cluster name, stage, call round and TOC page.
func parseClusterLine(ln string) (cluster, stage, callRound string, page *int) {
	raw := strings.TrimSpace(strings.Replace(ln, "Call - ", "", 1))
	cleaned, page := stripDotLeaderPage(raw)

	cluster = cleaned
	if open := strings.Index(cleaned, "("); open >= 0 {
		if end := strings.LastIndex(cleaned, ")"); end > open {
			cluster = strings.TrimSpace(cleaned[:open])
			inside := strings.TrimSpace(cleaned[open+1 : end])

			low := strings.ToLower(inside)
			switch {
			case strings.Contains(low, "single stage"):
				stage = "single"
			case strings.Contains(low, "two-stage"), strings.Contains(low, "two stage"):
				stage = "two-stage"
			}

			parts := splitTrimmed(inside, "-")
			if len(parts) >= 2 {
				callRound = parts[len(parts)-1]
			}
		}
	}
	return cluster, stage, callRound, page
}

func splitTrimmed(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func deriveCallIDFromTopic(topicID string) string {
	m := reCallFromTopic.FindStringSubmatch(topicID)
	if m == nil {
		return ""
	}
	return m[1]
}

func isBlockBoundary(ln string) bool {
	if strings.HasPrefix(ln, "Call - ") {
		return true
	}
	if reHorizonTopicID.MatchString(ln) {
		return true
	}
	return reHorizonCallID.MatchString(ln) && !reHorizonTopicID.MatchString(ln)
}

func isTitleStopHeading(ln string) bool {
	low := strings.ToLower(ln)
	for _, h := range titleStopHeadings {
		if strings.HasPrefix(low, h) {
			return true
		}
	}
	return false
}

func firstToken(ln string) string {
	fields := strings.Fields(ln)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func stripFootnoteMarkers(s string) string {
	return reFootnoteMarker.ReplaceAllString(s, "$1")
}

func trailingCount(rest string) *int {
	m := reTrailingCount.FindStringSubmatch(rest)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return intPtr(n)
}

func mustFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
