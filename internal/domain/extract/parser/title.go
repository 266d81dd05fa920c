package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	reWhitespace    = regexp.MustCompile(`\s+`)
	reDotLeaderPage = regexp.MustCompile(`\s\.{3,}\s*(\d{1,4})\s*$`)
	reTrailingDots  = regexp.MustCompile(`\.{2,}\s*\d*\s*$`)
	reSplitWordPair = regexp.MustCompile(`\b([A-Za-z]{1,3})\s+([a-z]{3,})\b`)
)

// Short words that legitimately stand alone; the split-word repair must not
// glue them onto the next token ("of models" stays two words).
var shortStopwords = map[string]bool{
	"of": true, "in": true, "on": true, "to": true, "by": true, "an": true,
	"or": true, "if": true, "at": true, "be": true, "is": true, "it": true,
	"we": true, "il": true, "la": true, "le": true, "un": true, "una": true,
}

// badTitleHints mark lines that are never topic titles (boilerplate, TOC
// scaffolding, page markers).
var badTitleHints = []string{
	"SENSITIVE UNTIL ADOPTION",
	"Content of the document",
	"Table of contents",
	"Appendix",
	"<<<PAGE",
}

func normSpace(s string) string {
	s = strings.ReplaceAll(s, "­", "")
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// stripDotLeaderPage removes TOC dot leaders like "Some title ....... 29" and
// returns the cleaned text plus the trailing page number when one was found.
func stripDotLeaderPage(s string) (string, *int) {
	if s == "" {
		return s, nil
	}
	s = normSpace(s)
	m := reDotLeaderPage.FindStringSubmatch(s)
	if m == nil {
		return s, nil
	}
	page, err := strconv.Atoi(m[1])
	if err != nil {
		return s, nil
	}
	cleaned := strings.TrimSpace(reDotLeaderPage.ReplaceAllString(s, ""))
	return cleaned, intPtr(page)
}

// repairBrokenWords fixes split words caused by PDF line breaks without
// hyphens, e.g. "mo dels" -> "models". Merging only happens when the first
// fragment is too short to be a plausible standalone word and is not a known
// stopword, which keeps real phrases like "of models" intact.
func repairBrokenWords(title string) string {
	return reSplitWordPair.ReplaceAllStringFunc(title, func(m string) string {
		parts := reSplitWordPair.FindStringSubmatch(m)
		if parts == nil {
			return m
		}
		first, second := parts[1], parts[2]
		if len(first) <= 2 && !shortStopwords[strings.ToLower(first)] &&
			isLowerAlpha(first) && isLowerAlpha(second) {
			return first + second
		}
		return m
	})
}

func isLowerAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// cleanTitle normalizes an extracted title fragment: dotted TOC leaders and
// trailing page numbers go, bracketing punctuation goes, split words get
// repaired.
func cleanTitle(title string) string {
	cleaned := normSpace(title)
	if cleaned == "" {
		return ""
	}
	cleaned = reTrailingDots.ReplaceAllString(cleaned, "")
	cleaned = strings.Trim(cleaned, " .-–")
	return repairBrokenWords(cleaned)
}

func isBadTitle(t string) bool {
	if t == "" {
		return true
	}
	up := strings.ToUpper(t)
	for _, hint := range badTitleHints {
		if strings.Contains(up, strings.ToUpper(hint)) {
			return true
		}
	}
	return len(t) > 140
}
