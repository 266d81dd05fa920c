package parser

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHorizon_OverviewVariants(t *testing.T) {
	t.Run("around amount with trailing project count", func(t *testing.T) {
		rows := ParseHorizon(strings.Join([]string{
			"HORIZON-CL3-2026-01-BM-01: Border management topic",
			"RIA 9.67 Around 4.835 2",
		}, "\n"))
		require.Len(t, rows, 1)

		r := rows[0]
		assert.Equal(t, "HORIZON-CL3-2026-01-BM-01", r.TopicID)
		assert.Equal(t, "HORIZON-CL3-2026-01", r.CallID)
		assert.Equal(t, "Border management topic", r.TopicTitle)
		assert.Equal(t, "RIA", r.ActionType)
		require.NotNil(t, r.BudgetEURm)
		assert.InDelta(t, 9.67, *r.BudgetEURm, 1e-9)
		require.NotNil(t, r.BudgetPerProjectMinEURm)
		require.NotNil(t, r.BudgetPerProjectMaxEURm)
		assert.InDelta(t, 4.835, *r.BudgetPerProjectMinEURm, 1e-9)
		assert.InDelta(t, 4.835, *r.BudgetPerProjectMaxEURm, 1e-9)
		require.NotNil(t, r.Projects)
		assert.Equal(t, 2, *r.Projects)
	})

	t.Run("explicit per-project range", func(t *testing.T) {
		rows := ParseHorizon(strings.Join([]string{
			"HORIZON-CL4-2026-01-DATA-02: Data spaces",
			"RIA 9.00 to 10.00 2",
		}, "\n"))
		require.Len(t, rows, 1)

		r := rows[0]
		assert.Equal(t, "RIA", r.ActionType)
		require.NotNil(t, r.BudgetPerProjectMinEURm)
		require.NotNil(t, r.BudgetPerProjectMaxEURm)
		assert.InDelta(t, 9.00, *r.BudgetPerProjectMinEURm, 1e-9)
		assert.InDelta(t, 10.00, *r.BudgetPerProjectMaxEURm, 1e-9)
		require.NotNil(t, r.Projects)
		assert.Equal(t, 2, *r.Projects)
	})

	t.Run("overview split across physical lines", func(t *testing.T) {
		rows := ParseHorizon(strings.Join([]string{
			"HORIZON-CL5-2026-02-LOWCARBON-04: Low-carbon industry",
			"IA 30.00",
			"Around 15.00",
			"2",
		}, "\n"))
		require.Len(t, rows, 1)

		r := rows[0]
		assert.Equal(t, "IA", r.ActionType)
		require.NotNil(t, r.BudgetEURm)
		assert.InDelta(t, 30.00, *r.BudgetEURm, 1e-9)
		require.NotNil(t, r.BudgetPerProjectMinEURm)
		assert.InDelta(t, 15.00, *r.BudgetPerProjectMinEURm, 1e-9)
		require.NotNil(t, r.Projects)
		assert.Equal(t, 2, *r.Projects)
	})

	t.Run("around as project count with per-project decimal elsewhere", func(t *testing.T) {
		rows := ParseHorizon(strings.Join([]string{
			"HORIZON-CL4-2026-03-SPACE-11: In-orbit servicing",
			"IA 30.00 Around 5 actions expected with an EU contribution of 6.00",
		}, "\n"))
		require.Len(t, rows, 1)

		r := rows[0]
		require.NotNil(t, r.BudgetEURm)
		assert.InDelta(t, 30.00, *r.BudgetEURm, 1e-9)
		require.NotNil(t, r.Projects)
		assert.Equal(t, 5, *r.Projects)
		require.NotNil(t, r.BudgetPerProjectMinEURm)
		assert.InDelta(t, 6.00, *r.BudgetPerProjectMinEURm, 1e-9)
	})

	t.Run("no parseable overview still emits the row", func(t *testing.T) {
		rows := ParseHorizon(strings.Join([]string{
			"HORIZON-CL6-2026-01-FARM-03: Sustainable farming practices",
			"This topic addresses the resilience of European food systems.",
		}, "\n"))
		require.Len(t, rows, 1)

		r := rows[0]
		assert.Empty(t, r.ActionType)
		assert.Nil(t, r.BudgetEURm)
		assert.Nil(t, r.BudgetPerProjectMinEURm)
		assert.Nil(t, r.Projects)
	})
}

func TestParseHorizon_ClusterAndCallContext(t *testing.T) {
	text := strings.Join([]string{
		"<<<PAGE 24>>>",
		"Call - Cluster 3 - Civil Security for Society (Single stage - 2026/1)",
		"HORIZON-CL3-2026-01",
		"Opening: 12 Jun 2026",
		"Deadline(s): 12 Nov 2026",
		"HORIZON-CL3-2026-01-BM-01: Border management topic",
		"RIA 9.67 Around 4.835 2",
		"HORIZON-CL3-2026-01-BM-02: Maritime surveillance",
		"CSA 3.00 to 4.00 1",
	}, "\n")

	rows := ParseHorizon(text)
	require.Len(t, rows, 2)

	for _, r := range rows {
		assert.Equal(t, "Cluster 3 - Civil Security for Society", r.Cluster)
		assert.Equal(t, "single", r.Stage)
		assert.Equal(t, "2026/1", r.CallRound)
		assert.Equal(t, "HORIZON-CL3-2026-01", r.CallID)
		assert.Equal(t, "12 Jun 2026", r.OpeningDate)
		assert.Equal(t, "12 Nov 2026", r.DeadlineDate)
		require.NotNil(t, r.Page)
		assert.Equal(t, 24, *r.Page)
		assert.Equal(t, LevelTopic, r.RecordLevel)
	}
	assert.Equal(t, "RIA", rows[0].ActionType)
	assert.Equal(t, "CSA", rows[1].ActionType)
}

func TestParseHorizon_DedupPrefersRicherOccurrence(t *testing.T) {
	text := strings.Join([]string{
		"<<<PAGE 3>>>",
		"HORIZON-CL3-2026-01-BM-01: Border management topic ......... 41",
		"<<<PAGE 41>>>",
		"HORIZON-CL3-2026-01-BM-01: Border management topic",
		"RIA 9.67 Around 4.835 2",
	}, "\n")

	rows := ParseHorizon(text)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "RIA", r.ActionType)
	require.NotNil(t, r.BudgetEURm)
	require.NotNil(t, r.Page)
	assert.Equal(t, 41, *r.Page)
}

func TestParseHorizon_DedupKeepsFirstOnTie(t *testing.T) {
	text := strings.Join([]string{
		"<<<PAGE 3>>>",
		"HORIZON-CL3-2026-01-BM-01: Border management topic ......... 41",
		"<<<PAGE 90>>>",
		"HORIZON-CL3-2026-01-BM-01: Border management topic",
	}, "\n")

	rows := ParseHorizon(text)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].Page)
	assert.Equal(t, 41, *rows[0].Page)
}

func TestParseHorizon_DetailBlock(t *testing.T) {
	text := strings.Join([]string{
		"HORIZON-CL3-2026-01-BM-01: Border management topic",
		"RIA 9.67 Around 4.835 2",
		"Expected Outcome: Improved situational awareness at external borders.",
		"Enhanced cooperation between border authorities.",
		"",
		"Scope: Proposals should develop interoperable sensor networks.",
		"Activities are expected to achieve TRL 5-6 by the end of the project.",
		"Eligibility conditions are described in the General Annexes.",
		"Horizon Europe - Work Programme 2026-2027",
		"Part 6 - Page 41 of 120",
		"HORIZON-CL3-2026-01-BM-02: Maritime surveillance",
		"CSA 3.00 to 4.00 1",
	}, "\n")

	rows := ParseHorizon(text)
	require.Len(t, rows, 2)

	r := rows[0]
	assert.Equal(t, "5-6", r.TRL)
	assert.Contains(t, r.TopicDescription, "Expected Outcome: Improved situational awareness")
	assert.Contains(t, r.TopicDescription, "Scope: Proposals should develop interoperable sensor networks.")
	assert.NotContains(t, r.TopicDescription, "Eligibility")
	assert.NotContains(t, r.TopicBody, "Work Programme")
	assert.NotContains(t, r.TopicBody, "Page 41 of 120")
	assert.Contains(t, r.TopicBody, "interoperable sensor networks")
	assert.Empty(t, rows[1].TRL)
}

func TestParseHorizon_FootnoteMarkers(t *testing.T) {
	t.Run("strips stray digits after parenthesis and units", func(t *testing.T) {
		assert.Equal(t, "Budgets (EUR million) 2026", stripFootnoteMarkers("Budgets (EUR million)5 2026"))
		assert.Equal(t, "contribution per project (EUR million)", stripFootnoteMarkers("contribution per project (EUR3 million)"))
	})

	t.Run("footnote digit does not corrupt the overview", func(t *testing.T) {
		rows := ParseHorizon(strings.Join([]string{
			"HORIZON-CL3-2026-01-BM-01: Border management topic",
			"RIA (EUR million)9 9.67 Around 4.835 2",
		}, "\n"))
		require.Len(t, rows, 1)
		require.NotNil(t, rows[0].BudgetEURm)
		assert.InDelta(t, 9.67, *rows[0].BudgetEURm, 1e-9)
		require.NotNil(t, rows[0].Projects)
		assert.Equal(t, 2, *rows[0].Projects)
	})
}

func TestParseHorizon_LookaheadCap(t *testing.T) {
	lines := []string{"HORIZON-CL3-2026-01-BM-01: Border management topic"}
	for i := 0; i < maxTitleLookahead+3; i++ {
		lines = append(lines, "filler prose line that keeps going")
	}
	lines = append(lines, "RIA 9.67 Around 4.835 2")

	rows := ParseHorizon(strings.Join(lines, "\n"))
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].ActionType)
	assert.Nil(t, rows[0].BudgetEURm)
}

func TestParseHorizon_TitleStopHeadings(t *testing.T) {
	rows := ParseHorizon(strings.Join([]string{
		"HORIZON-CL3-2026-01-BM-01: Border management",
		"topic for land borders",
		"Expected Outcome: Something downstream.",
	}, "\n"))
	require.Len(t, rows, 1)
	assert.Equal(t, "Border management topic for land borders", rows[0].TopicTitle)
}

func TestParseHorizon_Idempotent(t *testing.T) {
	text := strings.Join([]string{
		"Call - Cluster 3 - Civil Security for Society (Single stage - 2026/1)",
		"HORIZON-CL3-2026-01",
		"Opening: 12 Jun 2025",
		"Deadline(s): 12 Nov 2025",
		"HORIZON-CL3-2026-01-BM-01: Border management topic",
		"RIA 9.67 Around 4.835 2",
		"Expected Outcome: Better situational awareness.",
		"Scope: Proposals should address sensing at TRL 5-6.",
	}, "\n")

	first := ParseHorizon(text)
	second := ParseHorizon(text)
	assert.Equal(t, first, second)
}

func TestParseHorizon_NoFabricationWhenOverviewRemoved(t *testing.T) {
	header := "HORIZON-CL3-2026-01-BM-01: Border management topic"

	rows := ParseHorizon(header + "\nRIA 9.67 Around 4.835 2")
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].BudgetEURm)

	rows = ParseHorizon(header)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Empty(t, r.ActionType)
	assert.Nil(t, r.BudgetEURm)
	assert.Nil(t, r.BudgetPerProjectMinEURm)
	assert.Nil(t, r.BudgetPerProjectMaxEURm)
	assert.Nil(t, r.Projects)
}

func TestParseHorizon_TotalOverRandomInput(t *testing.T) {
	faker := gofakeit.New(7)
	for i := 0; i < 50; i++ {
		text := faker.Paragraph(4, 6, 12, "\n")
		assert.NotPanics(t, func() { ParseHorizon(text) })
	}
	assert.Empty(t, ParseHorizon(""))
}
