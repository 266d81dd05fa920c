package export

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/fundsheet/fundsheet/internal/domain/extract/parser"
	"github.com/fundsheet/fundsheet/internal/domain/extract/sniffer"
)

type horizonCSVRecord struct {
	Cluster                 string   `csv:"cluster"`
	Stage                   string   `csv:"stage"`
	CallRound               string   `csv:"call_round"`
	Page                    *int     `csv:"page"`
	CallID                  string   `csv:"call_id"`
	TopicID                 string   `csv:"topic_id"`
	TopicTitle              string   `csv:"topic_title"`
	TopicDescription        string   `csv:"topic_description"`
	ActionType              string   `csv:"action_type"`
	FundingPercentage       string   `csv:"funding_percentage"`
	TRL                     string   `csv:"trl"`
	BudgetEURm              *float64 `csv:"budget_eur_m"`
	BudgetPerProjectMinEURm *float64 `csv:"budget_per_project_min_eur_m"`
	BudgetPerProjectMaxEURm *float64 `csv:"budget_per_project_max_eur_m"`
	Projects                *int     `csv:"projects"`
	OpeningDate             string   `csv:"opening_date"`
	DeadlineDate            string   `csv:"deadline_date"`
}

type edfCSVRecord struct {
	RecordLevel              string   `csv:"record_level"`
	CallID                   string   `csv:"call_id"`
	CallFamily               string   `csv:"call_family"`
	CallFamilyDisplay        string   `csv:"call_family_display"`
	TopicID                  string   `csv:"topic_id"`
	Title                    string   `csv:"title"`
	TopicTitle               string   `csv:"topic_title"`
	SectionNo                string   `csv:"section_no"`
	TypeOfAction             string   `csv:"type_of_action"`
	FundingPercentage        string   `csv:"funding_percentage"`
	BudgetPerProjectMinEURm  *float64 `csv:"budget_per_project_min_eur_m"`
	IndicativeBudgetEURm     *float64 `csv:"indicative_budget_eur_m"`
	CallIndicativeBudgetEURm *float64 `csv:"call_indicative_budget_eur_m"`
	NumberOfActions          *int     `csv:"number_of_actions"`
	Step                     *bool    `csv:"step"`
	Scale                    string   `csv:"scale"`
	IsLargeScale             bool     `csv:"is_large_scale"`
	TopicDescriptionVerbatim string   `csv:"topic_description_verbatim"`
}

// WriteCSV writes the rows in the same column order as the xlsx sheets.
func WriteCSV(w io.Writer, rows []parser.Row, family sniffer.Family) error {
	if family == sniffer.FamilyEDF {
		recs := make([]edfCSVRecord, 0, len(rows))
		for i := range rows {
			r := &rows[i]
			recs = append(recs, edfCSVRecord{
				RecordLevel:              string(r.RecordLevel),
				CallID:                   r.CallID,
				CallFamily:               r.CallFamily,
				CallFamilyDisplay:        r.CallFamilyDisplay,
				TopicID:                  r.TopicID,
				Title:                    r.Title,
				TopicTitle:               r.TopicTitle,
				SectionNo:                r.SectionNo,
				TypeOfAction:             r.TypeOfAction,
				FundingPercentage:        r.FundingPercentage,
				BudgetPerProjectMinEURm:  r.BudgetPerProjectMinEURm,
				IndicativeBudgetEURm:     r.IndicativeBudgetEURm,
				CallIndicativeBudgetEURm: r.CallIndicativeBudgetEURm,
				NumberOfActions:          r.NumberOfActions,
				Step:                     r.Step,
				Scale:                    r.Scale,
				IsLargeScale:             r.IsLargeScale,
				TopicDescriptionVerbatim: r.TopicDescriptionVerbatim,
			})
		}
		if err := gocsv.Marshal(&recs, w); err != nil {
			return fmt.Errorf("write edf csv: %w", err)
		}
		return nil
	}

	recs := make([]horizonCSVRecord, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		recs = append(recs, horizonCSVRecord{
			Cluster:                 r.Cluster,
			Stage:                   r.Stage,
			CallRound:               r.CallRound,
			Page:                    r.Page,
			CallID:                  r.CallID,
			TopicID:                 r.TopicID,
			TopicTitle:              r.TopicTitle,
			TopicDescription:        r.TopicDescription,
			ActionType:              r.ActionType,
			FundingPercentage:       r.FundingPercentage,
			TRL:                     r.TRL,
			BudgetEURm:              r.BudgetEURm,
			BudgetPerProjectMinEURm: r.BudgetPerProjectMinEURm,
			BudgetPerProjectMaxEURm: r.BudgetPerProjectMaxEURm,
			Projects:                r.Projects,
			OpeningDate:             r.OpeningDate,
			DeadlineDate:            r.DeadlineDate,
		})
	}
	if err := gocsv.Marshal(&recs, w); err != nil {
		return fmt.Errorf("write horizon csv: %w", err)
	}
	return nil
}
