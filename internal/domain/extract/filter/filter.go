// Package filter post-processes parsed rows: it derives the computed fields
// the scanners never guess at (per-project budget, funding percentage, display
// labels) and applies caller-specified filters while preserving row order.
package filter

import (
	"strconv"
	"strings"

	"github.com/fundsheet/fundsheet/internal/domain/extract/parser"
	"github.com/fundsheet/fundsheet/internal/domain/extract/sniffer"
)

// Options are the filters shared by both document families. A nil or empty
// dimension means no filtering on that dimension.
type Options struct {
	CallTypes      []string
	MinBudgetM     *float64
	OpeningFilter  string
	DeadlineFilter string
}

// EDFOptions are the EDF-only filters applied before the shared ones.
type EDFOptions struct {
	CallFamily string
	BudgetMinM *float64
	BudgetMaxM *float64
	Step       *bool
}

// FinalizeHorizon fills the derived fields of Horizon rows in place.
func FinalizeHorizon(rows []parser.Row) {
	for i := range rows {
		r := &rows[i]
		d := ComputeBudgetPerProjectM(r)
		r.BudgetPerProjectM = d
		r.BudgetPerProjectMinEURm = d
		r.FundingPercentage = FundingPercentage(r, sniffer.FamilyHorizon)
		r.CallType = RowCallType(r, sniffer.FamilyHorizon)
	}
}

// FinalizeEDF fills the derived fields of EDF rows in place. The topic budget
// doubles as the per-project budget when the parser found no explicit one.
func FinalizeEDF(rows []parser.Row) {
	for i := range rows {
		r := &rows[i]
		r.CallFamilyDisplay = parser.CallFamilyLabel(r.CallFamily)
		r.Scale = ScaleLabel(r.IsLargeScale)
		if r.BudgetPerProjectMinEURm == nil {
			r.BudgetPerProjectMinEURm = r.IndicativeBudgetEURm
		}
		if r.TypeOfAction != "" {
			r.CallType = r.TypeOfAction
		} else {
			r.CallType = r.CallFamilyDisplay
		}
		r.FundingPercentage = FundingPercentage(r, sniffer.FamilyEDF)
	}
}

// ScaleLabel renders the large-scale flag for display.
func ScaleLabel(isLargeScale bool) string {
	if isLargeScale {
		return "Large-scale"
	}
	return "Standard"
}

// ComputeBudgetPerProjectM returns the minimum of whichever per-project budget
// figures are present, or nil when none are.
func ComputeBudgetPerProjectM(r *parser.Row) *float64 {
	var best *float64
	for _, v := range []*float64{
		r.BudgetPerProjectMinEURm,
		r.BudgetPerProjectMaxEURm,
		r.BudgetPerProjectM,
	} {
		if v == nil {
			continue
		}
		if best == nil || *v < *best {
			val := *v
			best = &val
		}
	}
	return best
}

// FundingPercentage resolves the funding rate for display. Horizon rows follow
// the business rule: RIA and CSA are always 100%; IA is 70% unless the topic
// text mentions non-profit participation; every other action type only
// surfaces a percentage explicitly present in the text. EDF rows never infer.
func FundingPercentage(r *parser.Row, family sniffer.Family) string {
	if family == sniffer.FamilyEDF {
		return formatPct(r.FundingPctRaw)
	}

	action := strings.ToUpper(strings.TrimSpace(r.ActionType))
	switch action {
	case "":
		return ""
	case "RIA", "CSA":
		return "100%"
	case "IA":
		blob := strings.ToLower(r.TopicBody + " " + r.TopicDescription + " " + r.TopicDescriptionVerbatim)
		if strings.Contains(blob, "non-profit") || strings.Contains(blob, "non profit") {
			return "100%"
		}
		return "70%"
	default:
		return formatPct(r.FundingPctRaw)
	}
}

func formatPct(v *float64) string {
	if v == nil || *v < 0 {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64) + "%"
}

// RowCallType resolves the type used for type filtering and display grouping.
func RowCallType(r *parser.Row, family sniffer.Family) string {
	if family == sniffer.FamilyEDF {
		if r.CallType != "" {
			return r.CallType
		}
		if r.TypeOfAction != "" {
			return r.TypeOfAction
		}
		return r.CallFamilyDisplay
	}
	return r.ActionType
}

// rowMinBudget picks the figure the minimum-budget filter compares against.
func rowMinBudget(r *parser.Row) *float64 {
	for _, v := range []*float64{
		r.BudgetPerProjectMinEURm,
		r.BudgetPerProjectM,
		r.IndicativeBudgetEURm,
	} {
		if v != nil {
			return v
		}
	}
	return nil
}

// Apply runs the shared filters over rows in order. Type matching is a
// case-insensitive exact match against the resolved call type. Rows without a
// resolvable budget count as budget 0, so they fail a positive minimum rather
// than bypassing the filter.
func Apply(rows []parser.Row, opts Options, family sniffer.Family) []parser.Row {
	allowed := make(map[string]bool)
	for _, t := range opts.CallTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			allowed[t] = true
		}
	}

	out := make([]parser.Row, 0, len(rows))
	for i := range rows {
		r := &rows[i]

		if len(allowed) > 0 {
			cur := strings.ToLower(strings.TrimSpace(RowCallType(r, family)))
			if !allowed[cur] {
				continue
			}
		}

		if opts.MinBudgetM != nil {
			budget := 0.0
			if v := rowMinBudget(r); v != nil {
				budget = *v
			}
			if budget < *opts.MinBudgetM {
				continue
			}
		}

		if !MatchesFilter(r.OpeningDate, opts.OpeningFilter) {
			continue
		}
		if !MatchesFilter(r.DeadlineDate, opts.DeadlineFilter) {
			continue
		}
		out = append(out, *r)
	}
	return out
}

// ApplyEDF runs the EDF-specific filters. Budget bounds compare against the
// topic's indicative budget and exclude rows without one; the STEP filter
// excludes rows where the flag was never stated.
func ApplyEDF(rows []parser.Row, opts EDFOptions) []parser.Row {
	fam := strings.ToLower(strings.TrimSpace(opts.CallFamily))

	out := make([]parser.Row, 0, len(rows))
	for i := range rows {
		r := &rows[i]

		if fam != "" && !strings.HasPrefix(strings.ToLower(r.CallFamily), fam) {
			continue
		}

		if opts.BudgetMinM != nil || opts.BudgetMaxM != nil {
			if r.IndicativeBudgetEURm == nil {
				continue
			}
			if opts.BudgetMinM != nil && *r.IndicativeBudgetEURm < *opts.BudgetMinM {
				continue
			}
			if opts.BudgetMaxM != nil && *r.IndicativeBudgetEURm > *opts.BudgetMaxM {
				continue
			}
		}

		if opts.Step != nil {
			if r.Step == nil || *r.Step != *opts.Step {
				continue
			}
		}
		out = append(out, *r)
	}
	return out
}

// TopicLevel keeps only TOPIC rows, preserving order.
func TopicLevel(rows []parser.Row) []parser.Row {
	out := make([]parser.Row, 0, len(rows))
	for _, r := range rows {
		if r.RecordLevel == parser.LevelTopic {
			out = append(out, r)
		}
	}
	return out
}

// CallLevel keeps only CALL rows, preserving order.
func CallLevel(rows []parser.Row) []parser.Row {
	out := make([]parser.Row, 0, len(rows))
	for _, r := range rows {
		if r.RecordLevel == parser.LevelCall {
			out = append(out, r)
		}
	}
	return out
}
