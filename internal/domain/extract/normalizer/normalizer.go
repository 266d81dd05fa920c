// Package normalizer repairs PDF text-extraction artifacts before structural
// parsing: soft hyphens, invisible code points, words broken across line
// breaks, and a small table of statistically observed split-word damage.
package normalizer

import (
	"regexp"
	"strings"
)

var (
	reInvisible       = regexp.MustCompile("[­�￾￿]")
	reHyphenLineBreak = regexp.MustCompile(`([A-Za-z0-9])[-\x{2010}\x{2011}\x{2012}\x{2013}\x{2014}]\s*` + "\n" + `\s*([A-Za-z0-9])`)
	reLineJoin        = regexp.MustCompile(`\s*` + "\n+" + `\s*`)
	reSpaces          = regexp.MustCompile(`\s+`)

	// Candidate fragment pairs/triplets for broken-word repair. The guard
	// conditions live in mergePair/mergeTriplet, not in the pattern.
	rePairCandidate    = regexp.MustCompile(`\b([A-Za-z]{3,})\s+([A-Za-z]{2,6})\b`)
	reTripletCandidate = regexp.MustCompile(`(?i)\b([A-Za-z]{4,})\s+(and|or)\s+([A-Za-z]{2,6})\b`)
)

// commonSuffixes are short trailing fragments that almost never stand alone in
// these documents; a preceding word fragment gets glued back onto them.
var commonSuffixes = map[string]bool{
	"ing": true, "tion": true, "sion": true, "ment": true, "ments": true,
	"ness": true, "ity": true, "able": true, "ible": true, "al": true,
	"ic": true, "ive": true, "ous": true, "ants": true, "ant": true,
	"ers": true, "er": true, "ed": true, "ly": true, "ways": true,
	"way": true, "ism": true, "ist": true, "ation": true, "ations": true,
	"ions": true, "ent": true, "ents": true,
}

var middleJoiners = map[string]bool{"and": true, "or": true}

// Fix is one entry of the known split-word repair table. Patterns are applied
// after the generic fragment merge so they can target damage the heuristics
// miss (e.g. "resp on ses" -> "responses").
type Fix struct {
	Pattern     *regexp.Regexp
	Replacement string
}

func defaultFixes() []Fix {
	return []Fix{
		{regexp.MustCompile(`(?i)\bresp\s*on\s*ses\b`), "responses"},
		{regexp.MustCompile(`(?i)\bresp\s*on\s*ders\b`), "responders"},
		{regexp.MustCompile(`(?i)\benvir\s*on\s*ments\b`), "environments"},
		{regexp.MustCompile(`(?i)\bpers\s*on\s*alised\b`), "personalised"},
		{regexp.MustCompile(`(?i)\bpers\s*on\s*alized\b`), "personalized"},
	}
}

// Normalizer repairs extraction damage using a swappable fix table.
type Normalizer struct {
	fixes []Fix
}

// New creates a normalizer with the built-in repair table.
func New() *Normalizer {
	return &Normalizer{fixes: defaultFixes()}
}

// AddFix appends a custom repair to the table.
func (n *Normalizer) AddFix(pattern *regexp.Regexp, replacement string) {
	n.fixes = append(n.fixes, Fix{Pattern: pattern, Replacement: replacement})
}

// Normalize repairs artifacts and collapses all newlines to single spaces.
// It never fails; empty input yields an empty string.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return ""
	}
	text = n.repairBreaks(text)
	text = reLineJoin.ReplaceAllString(text, " ")
	text = collapseBrokenFragments(text)
	text = n.applyFixes(text)
	return strings.TrimSpace(reSpaces.ReplaceAllString(text, " "))
}

// NormalizeLines repairs artifacts while retaining line structure: each line is
// normalized independently and line breaks survive. Used for block capture
// where paragraph structure matters.
func (n *Normalizer) NormalizeLines(text string) string {
	if text == "" {
		return ""
	}
	text = n.repairBreaks(text)
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			ln = collapseBrokenFragments(ln)
		}
		lines[i] = ln
	}
	return strings.TrimSpace(n.applyFixes(strings.Join(lines, "\n")))
}

// repairBreaks handles character-level damage plus hyphenated line breaks.
// "word-\nbreak" becomes "word-break": the hyphen is kept on purpose, since
// de-hyphenating here produced false merges on genuinely hyphenated terms.
func (n *Normalizer) repairBreaks(text string) string {
	text = strings.ReplaceAll(text, " ", " ")
	text = reInvisible.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return reHyphenLineBreak.ReplaceAllString(text, "$1-$2")
}

func (n *Normalizer) applyFixes(text string) string {
	for _, f := range n.fixes {
		text = f.Pattern.ReplaceAllString(text, f.Replacement)
	}
	return text
}

// collapseBrokenFragments merges word fragments split by line breaks without a
// hyphen. Deliberately conservative: a pair only merges when the second token
// is a common suffix, a triplet only when the middle token is "and"/"or" and
// the last is a common suffix.
func collapseBrokenFragments(text string) string {
	text = reTripletCandidate.ReplaceAllStringFunc(text, func(m string) string {
		parts := reTripletCandidate.FindStringSubmatch(m)
		if parts == nil {
			return m
		}
		first, middle, last := parts[1], parts[2], parts[3]
		if len(first) < 5 || !middleJoiners[strings.ToLower(middle)] || !commonSuffixes[strings.ToLower(last)] {
			return m
		}
		tail := middle + last
		if isCapitalizedWord(first) {
			tail = strings.ToLower(tail)
		}
		return first + tail
	})
	text = rePairCandidate.ReplaceAllStringFunc(text, func(m string) string {
		parts := rePairCandidate.FindStringSubmatch(m)
		if parts == nil {
			return m
		}
		first, second := parts[1], parts[2]
		if !commonSuffixes[strings.ToLower(second)] || len(first) < 3 {
			return m
		}
		return mergeCase(first, second)
	})
	return text
}

// mergeCase lowercases the second fragment when both halves look like a single
// capitalized word torn apart ("Respon Ses" -> "Responses").
func mergeCase(first, second string) string {
	if isCapitalizedWord(first) && isCapitalizedWord(second) {
		second = strings.ToLower(second)
	}
	return first + second
}

func isCapitalizedWord(s string) bool {
	if s == "" {
		return false
	}
	head := s[:1]
	tail := s[1:]
	return head == strings.ToUpper(head) && head != strings.ToLower(head) &&
		(tail == "" || tail == strings.ToLower(tail))
}

var defaultNormalizer = New()

// Normalize is the package-level shortcut using the default repair table.
func Normalize(text string) string { return defaultNormalizer.Normalize(text) }

// NormalizeLines is the line-preserving package-level shortcut.
func NormalizeLines(text string) string { return defaultNormalizer.NormalizeLines(text) }
