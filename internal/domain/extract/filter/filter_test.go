package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundsheet/fundsheet/internal/domain/extract/parser"
	"github.com/fundsheet/fundsheet/internal/domain/extract/sniffer"
)

func fp(v float64) *float64 { return &v }
func bp(v bool) *bool       { return &v }

func TestApplyDateFilters(t *testing.T) {
	rows := []parser.Row{
		{TopicID: "A", DeadlineDate: "2026-02-15"},
		{TopicID: "B", DeadlineDate: "2026-05-01"},
	}

	out := Apply(rows, Options{DeadlineFilter: "2026-Q1"}, sniffer.FamilyHorizon)
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0].TopicID)
}

func TestApplyCallTypes(t *testing.T) {
	rows := []parser.Row{
		{TopicID: "A", ActionType: "RIA"},
		{TopicID: "B", ActionType: "IA"},
		{TopicID: "C", ActionType: "CSA"},
	}
	FinalizeHorizon(rows)

	out := Apply(rows, Options{CallTypes: []string{"ria", "CSA"}}, sniffer.FamilyHorizon)
	require.Len(t, out, 2)
	assert.Equal(t, "A", out[0].TopicID)
	assert.Equal(t, "C", out[1].TopicID)

	t.Run("empty allow-list filters nothing", func(t *testing.T) {
		out := Apply(rows, Options{CallTypes: []string{"", "  "}}, sniffer.FamilyHorizon)
		assert.Len(t, out, 3)
	})
}

func TestApplyMinBudgetTreatsMissingAsZero(t *testing.T) {
	rows := []parser.Row{
		{TopicID: "A", BudgetPerProjectMinEURm: fp(5.0)},
		{TopicID: "B"},
	}

	out := Apply(rows, Options{MinBudgetM: fp(1.0)}, sniffer.FamilyHorizon)
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0].TopicID)

	out = Apply(rows, Options{MinBudgetM: fp(0.0)}, sniffer.FamilyHorizon)
	assert.Len(t, out, 2)
}

func TestComputeBudgetPerProjectM(t *testing.T) {
	assert.Nil(t, ComputeBudgetPerProjectM(&parser.Row{}))

	r := &parser.Row{
		BudgetPerProjectMinEURm: fp(4.0),
		BudgetPerProjectMaxEURm: fp(6.0),
	}
	got := ComputeBudgetPerProjectM(r)
	require.NotNil(t, got)
	assert.InDelta(t, 4.0, *got, 1e-9)

	r = &parser.Row{BudgetPerProjectMaxEURm: fp(6.0)}
	got = ComputeBudgetPerProjectM(r)
	require.NotNil(t, got)
	assert.InDelta(t, 6.0, *got, 1e-9)
}

func TestFundingPercentageHorizon(t *testing.T) {
	t.Run("ria and csa are always 100", func(t *testing.T) {
		assert.Equal(t, "100%", FundingPercentage(&parser.Row{ActionType: "RIA"}, sniffer.FamilyHorizon))
		assert.Equal(t, "100%", FundingPercentage(&parser.Row{ActionType: "csa"}, sniffer.FamilyHorizon))
	})

	t.Run("ia defaults to 70 unless non-profit appears", func(t *testing.T) {
		assert.Equal(t, "70%", FundingPercentage(&parser.Row{ActionType: "IA"}, sniffer.FamilyHorizon))
		r := &parser.Row{ActionType: "IA", TopicBody: "Higher rates apply to non-profit legal entities."}
		assert.Equal(t, "100%", FundingPercentage(r, sniffer.FamilyHorizon))
	})

	t.Run("other types only surface explicit values", func(t *testing.T) {
		assert.Empty(t, FundingPercentage(&parser.Row{ActionType: "PCP"}, sniffer.FamilyHorizon))
		r := &parser.Row{ActionType: "PCP", FundingPctRaw: fp(90)}
		assert.Equal(t, "90%", FundingPercentage(r, sniffer.FamilyHorizon))
	})

	t.Run("no action type yields nothing", func(t *testing.T) {
		assert.Empty(t, FundingPercentage(&parser.Row{}, sniffer.FamilyHorizon))
	})
}

func TestFundingPercentageEDF(t *testing.T) {
	assert.Empty(t, FundingPercentage(&parser.Row{}, sniffer.FamilyEDF))
	r := &parser.Row{FundingPctRaw: fp(100)}
	assert.Equal(t, "100%", FundingPercentage(r, sniffer.FamilyEDF))
}

func TestFinalizeEDF(t *testing.T) {
	rows := []parser.Row{{
		RecordLevel:          parser.LevelTopic,
		CallFamily:           "RA",
		TypeOfAction:         "Research action",
		IndicativeBudgetEURm: fp(4.0),
		IsLargeScale:         true,
	}}
	FinalizeEDF(rows)

	r := rows[0]
	assert.Equal(t, "RA — Research Actions", r.CallFamilyDisplay)
	assert.Equal(t, "Large-scale", r.Scale)
	assert.Equal(t, "Research action", r.CallType)
	require.NotNil(t, r.BudgetPerProjectMinEURm)
	assert.InDelta(t, 4.0, *r.BudgetPerProjectMinEURm, 1e-9)
}

func TestApplyEDF(t *testing.T) {
	rows := []parser.Row{
		{TopicID: "A", CallFamily: "RA", IndicativeBudgetEURm: fp(4.0), Step: bp(true)},
		{TopicID: "B", CallFamily: "DA", IndicativeBudgetEURm: fp(25.0), Step: bp(false)},
		{TopicID: "C", CallFamily: "RA"},
	}

	t.Run("family prefix", func(t *testing.T) {
		out := ApplyEDF(rows, EDFOptions{CallFamily: "ra"})
		require.Len(t, out, 2)
		assert.Equal(t, "A", out[0].TopicID)
		assert.Equal(t, "C", out[1].TopicID)
	})

	t.Run("budget bounds exclude rows without a budget", func(t *testing.T) {
		out := ApplyEDF(rows, EDFOptions{BudgetMinM: fp(1.0)})
		require.Len(t, out, 2)
		out = ApplyEDF(rows, EDFOptions{BudgetMinM: fp(10.0), BudgetMaxM: fp(30.0)})
		require.Len(t, out, 1)
		assert.Equal(t, "B", out[0].TopicID)
	})

	t.Run("step filter excludes unstated rows", func(t *testing.T) {
		out := ApplyEDF(rows, EDFOptions{Step: bp(true)})
		require.Len(t, out, 1)
		assert.Equal(t, "A", out[0].TopicID)
	})
}

func TestRecordLevelSplit(t *testing.T) {
	rows := []parser.Row{
		{RecordLevel: parser.LevelCall, CallID: "EDF-2024-RA"},
		{RecordLevel: parser.LevelTopic, TopicID: "EDF-2024-RA-GROUND"},
	}
	assert.Len(t, TopicLevel(rows), 1)
	assert.Len(t, CallLevel(rows), 1)
}
