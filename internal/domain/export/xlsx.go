// Package export renders filtered rows to spreadsheet and CSV form with a
// fixed column order per document family.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/fundsheet/fundsheet/internal/domain/extract/parser"
	"github.com/fundsheet/fundsheet/internal/domain/extract/sniffer"
)

const topicURLTemplate = "https://ec.europa.eu/info/funding-tenders/opportunities/portal/screen/opportunities/topic-details/%s"

// TopicURL builds the funding portal lookup link for a topic id.
func TopicURL(topicID string) string {
	if topicID == "" {
		return ""
	}
	return fmt.Sprintf(topicURLTemplate, topicID)
}

// HorizonHeaders is the column order of the Horizon sheet.
var HorizonHeaders = []string{
	"cluster",
	"stage",
	"call_round",
	"page",
	"call_id",
	"topic_id",
	"topic_title",
	"topic_description",
	"action_type",
	"funding_percentage",
	"trl",
	"budget_eur_m",
	"budget_per_project_min_eur_m",
	"budget_per_project_max_eur_m",
	"projects",
	"opening_date",
	"deadline_date",
}

// EDFHeaders is the column order of the EDF sheet.
var EDFHeaders = []string{
	"record_level",
	"call_id",
	"call_family",
	"call_family_display",
	"topic_id",
	"title",
	"topic_title",
	"section_no",
	"type_of_action",
	"funding_percentage",
	"budget_per_project_min_eur_m",
	"indicative_budget_eur_m",
	"call_indicative_budget_eur_m",
	"number_of_actions",
	"step",
	"scale",
	"is_large_scale",
	"topic_description_verbatim",
}

const (
	horizonTopicIDCol = 6  // F
	edfDescriptionCol = 18 // R
	edfDescColWidth   = 100
)

// WriteXLSX writes the rows as a single-sheet workbook in the family's fixed
// column layout.
func WriteXLSX(w io.Writer, rows []parser.Row, family sniffer.Family) error {
	if family == sniffer.FamilyEDF {
		return writeEDFXLSX(w, rows)
	}
	return writeHorizonXLSX(w, rows)
}

func writeHorizonXLSX(w io.Writer, rows []parser.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "calls"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &HorizonHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	linkStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "1265BE", Underline: "single"},
	})
	if err != nil {
		return fmt.Errorf("hyperlink style: %w", err)
	}

	for i := range rows {
		r := &rows[i]
		values := []any{
			r.Cluster,
			r.Stage,
			r.CallRound,
			optInt(r.Page),
			r.CallID,
			r.TopicID,
			r.TopicTitle,
			r.TopicDescription,
			r.ActionType,
			r.FundingPercentage,
			r.TRL,
			optFloat(r.BudgetEURm),
			optFloat(r.BudgetPerProjectMinEURm),
			optFloat(r.BudgetPerProjectMaxEURm),
			optInt(r.Projects),
			r.OpeningDate,
			r.DeadlineDate,
		}
		anchor, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row anchor: %w", err)
		}
		if err := f.SetSheetRow(sheet, anchor, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}

		if url := TopicURL(r.TopicID); url != "" {
			cell, err := excelize.CoordinatesToCellName(horizonTopicIDCol, i+2)
			if err != nil {
				return fmt.Errorf("topic cell: %w", err)
			}
			if err := f.SetCellHyperLink(sheet, cell, url, "External"); err != nil {
				return fmt.Errorf("topic hyperlink: %w", err)
			}
			if err := f.SetCellStyle(sheet, cell, cell, linkStyle); err != nil {
				return fmt.Errorf("topic style: %w", err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeEDFXLSX(w io.Writer, rows []parser.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "edf"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &EDFHeaders); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	wrapStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("wrap style: %w", err)
	}

	descCol, err := excelize.ColumnNumberToName(edfDescriptionCol)
	if err != nil {
		return fmt.Errorf("description column: %w", err)
	}
	if err := f.SetColWidth(sheet, descCol, descCol, edfDescColWidth); err != nil {
		return fmt.Errorf("description width: %w", err)
	}

	for i := range rows {
		r := &rows[i]
		values := []any{
			string(r.RecordLevel),
			r.CallID,
			r.CallFamily,
			r.CallFamilyDisplay,
			r.TopicID,
			r.Title,
			r.TopicTitle,
			r.SectionNo,
			r.TypeOfAction,
			r.FundingPercentage,
			optFloat(r.BudgetPerProjectMinEURm),
			optFloat(r.IndicativeBudgetEURm),
			optFloat(r.CallIndicativeBudgetEURm),
			optInt(r.NumberOfActions),
			optBool(r.Step),
			r.Scale,
			r.IsLargeScale,
			r.TopicDescriptionVerbatim,
		}
		anchor, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row anchor: %w", err)
		}
		if err := f.SetSheetRow(sheet, anchor, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}

		cell, err := excelize.CoordinatesToCellName(edfDescriptionCol, i+2)
		if err != nil {
			return fmt.Errorf("description cell: %w", err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, wrapStyle); err != nil {
			return fmt.Errorf("description style: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// optFloat, optInt and optBool unwrap optional fields so nil pointers land as
// blank cells instead of zeros.
func optFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func optInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func optBool(v *bool) any {
	if v == nil {
		return nil
	}
	return *v
}
