package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/fundsheet/fundsheet/internal/domain/extract/parser"
	"github.com/fundsheet/fundsheet/internal/domain/extract/sniffer"
)

func fp(v float64) *float64 { return &v }
func ip(v int) *int         { return &v }

func TestWriteHorizonXLSX(t *testing.T) {
	rows := []parser.Row{
		{
			Cluster:           "Cluster 3 - Civil Security for Society",
			CallID:            "HORIZON-CL3-2026-01",
			TopicID:           "HORIZON-CL3-2026-01-BM-01",
			TopicTitle:        "Border management topic",
			ActionType:        "RIA",
			FundingPercentage: "100%",
			BudgetEURm:        fp(9.67),
			Projects:          ip(2),
			Page:              ip(41),
			DeadlineDate:      "12 Nov 2026",
		},
		{TopicID: "HORIZON-CL3-2026-01-BM-02"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, rows, sniffer.FamilyHorizon))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"calls"}, f.GetSheetList())

	header, err := f.GetCellValue("calls", "A1")
	require.NoError(t, err)
	assert.Equal(t, "cluster", header)

	topicID, err := f.GetCellValue("calls", "F2")
	require.NoError(t, err)
	assert.Equal(t, "HORIZON-CL3-2026-01-BM-01", topicID)

	hasLink, link, err := f.GetCellHyperLink("calls", "F2")
	require.NoError(t, err)
	assert.True(t, hasLink)
	assert.Equal(t, TopicURL("HORIZON-CL3-2026-01-BM-01"), link)

	budget, err := f.GetCellValue("calls", "L2")
	require.NoError(t, err)
	assert.Equal(t, "9.67", budget)

	// Absent optionals stay blank, not zero.
	blank, err := f.GetCellValue("calls", "L3")
	require.NoError(t, err)
	assert.Empty(t, blank)
}

func TestWriteEDFXLSX(t *testing.T) {
	step := true
	rows := []parser.Row{
		{
			RecordLevel:              parser.LevelTopic,
			CallID:                   "EDF-2024-RA",
			CallFamily:               "RA",
			CallFamilyDisplay:        "RA — Research Actions",
			TopicID:                  "EDF-2024-RA-GROUND",
			Title:                    "Ground combat topic",
			IndicativeBudgetEURm:     fp(4.0),
			Step:                     &step,
			Scale:                    "Standard",
			TopicDescriptionVerbatim: "Objectives\nDevelop next generation ground systems.",
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, rows, sniffer.FamilyEDF))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"edf"}, f.GetSheetList())

	level, err := f.GetCellValue("edf", "A2")
	require.NoError(t, err)
	assert.Equal(t, "TOPIC", level)

	desc, err := f.GetCellValue("edf", "R2")
	require.NoError(t, err)
	assert.Contains(t, desc, "next generation ground systems")

	width, err := f.GetColWidth("edf", "R")
	require.NoError(t, err)
	assert.InDelta(t, 100, width, 1)

	styleID, err := f.GetCellStyle("edf", "R2")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Alignment)
	assert.True(t, style.Alignment.WrapText)
}

func TestWriteCSV(t *testing.T) {
	rows := []parser.Row{{
		TopicID:    "HORIZON-CL3-2026-01-BM-01",
		ActionType: "RIA",
		BudgetEURm: fp(9.67),
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows, sniffer.FamilyHorizon))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "cluster,stage,call_round,page,call_id,topic_id"))
	assert.Contains(t, lines[1], "HORIZON-CL3-2026-01-BM-01")
	assert.Contains(t, lines[1], "9.67")
}

func TestTopicURL(t *testing.T) {
	assert.Empty(t, TopicURL(""))
	assert.Equal(t,
		"https://ec.europa.eu/info/funding-tenders/opportunities/portal/screen/opportunities/topic-details/EDF-2024-RA-GROUND",
		TopicURL("EDF-2024-RA-GROUND"))
}
