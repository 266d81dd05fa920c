// Package sniffer classifies raw work-programme text as one of the supported
// document families. Detection is signal-based: it never guesses, and callers
// must treat FamilyUnknown as a hard stop.
package sniffer

import (
	"regexp"
	"strings"
)

// Family identifies a grant-call document family.
type Family string

const (
	FamilyHorizon Family = "horizon"
	FamilyEDF     Family = "edf"
	FamilyUnknown Family = "unknown"
)

var (
	reHorizonID = regexp.MustCompile(`(?i)\bhorizon-[a-z0-9]+-\d{4}-`)
	reEDFID     = regexp.MustCompile(`(?i)\bedf-\d{4}-[a-z]{2,}`)
)

// minEDFTokens is the number of EDF-shaped identifiers that establishes the
// EDF family on its own, guarding against a single incidental mention.
const minEDFTokens = 3

// Detect classifies text by its family signals. Horizon signals win when both
// families fire.
func Detect(text string) Family {
	low := strings.ToLower(text)

	horizonSignal := strings.Contains(low, "horizon europe") ||
		strings.Contains(low, "work programme") ||
		reHorizonID.MatchString(text)
	if horizonSignal {
		return FamilyHorizon
	}

	edfTokens := len(reEDFID.FindAllString(text, -1))
	edfKeyword := strings.Contains(low, "european defence fund")
	if (edfKeyword && edfTokens > 0) || edfTokens >= minEDFTokens {
		return FamilyEDF
	}

	return FamilyUnknown
}
