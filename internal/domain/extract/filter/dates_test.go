package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlexible(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2026-02-15", "2026-02-15", true},
		{"2026-02", "2026-02-28", true},
		{"2026", "2026-12-31", true},
		{"23 Sep 2026", "2026-09-23", true},
		{"23 September 2026", "2026-09-23", true},
		{"23 settembre 2026", "2026-09-23", true},
		{"1 gen 2027", "2027-01-01", true},
		{"23/09/2026", "2026-09-23", true},
		{"23.09.2026", "2026-09-23", true},
		{"12 Nov 2026.", "2026-11-12", true},
		{"2026-13", "", false},
		{"2026-02-30", "", false},
		{"31 Frobuary 2026", "", false},
		{"to be announced", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseFlexible(tc.in)
		if !tc.ok {
			assert.False(t, ok, tc.in)
			continue
		}
		require.True(t, ok, tc.in)
		assert.Equal(t, tc.want, got.Format("2006-01-02"), tc.in)
	}
}

func TestPeriodEnd(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2026", "2026-12-31"},
		{"2026-Q1", "2026-03-31"},
		{"2026-q2", "2026-06-30"},
		{"2026-Q4", "2026-12-31"},
		{"2026-02", "2026-02-28"},
		{"2028-02", "2028-02-29"},
		{"2026-05-01", "2026-05-01"},
	}
	for _, tc := range cases {
		got, ok := PeriodEnd(tc.in)
		require.True(t, ok, tc.in)
		assert.Equal(t, tc.want, got.Format("2006-01-02"), tc.in)
	}

	for _, in := range []string{"", "Q1", "2026-Q5", "soonish"} {
		_, ok := PeriodEnd(in)
		assert.False(t, ok, in)
	}
}

func TestMatchesFilter(t *testing.T) {
	t.Run("quarter upper bound is inclusive", func(t *testing.T) {
		assert.True(t, MatchesFilter("2026-02-15", "2026-Q1"))
		assert.True(t, MatchesFilter("2026-03-31", "2026-Q1"))
		assert.False(t, MatchesFilter("2026-05-01", "2026-Q1"))
	})

	t.Run("textual row dates parse before comparison", func(t *testing.T) {
		assert.True(t, MatchesFilter("12 Nov 2026", "2026"))
		assert.False(t, MatchesFilter("12 Nov 2026", "2026-Q1"))
	})

	t.Run("unparseable row date fails a structured filter", func(t *testing.T) {
		assert.False(t, MatchesFilter("to be announced", "2026"))
	})

	t.Run("empty filter matches everything", func(t *testing.T) {
		assert.True(t, MatchesFilter("whatever", ""))
		assert.True(t, MatchesFilter("", ""))
	})

	t.Run("unstructured filter degrades to prefix match", func(t *testing.T) {
		assert.True(t, MatchesFilter("First quarter 2026", "first q"))
		assert.False(t, MatchesFilter("Second quarter 2026", "first q"))
	})
}

func TestMatchesFilterUpperBoundProperty(t *testing.T) {
	dates := []string{"2025-12-31", "2026-01-01", "2026-03-31", "2026-04-01", "2026-12-31", "2027-01-01"}
	filters := []string{"2026", "2026-Q1", "2026-03", "2026-03-31"}

	for _, f := range filters {
		end, ok := PeriodEnd(f)
		require.True(t, ok, f)
		for _, d := range dates {
			parsed, ok := ParseFlexible(d)
			require.True(t, ok, d)
			assert.Equal(t, !parsed.After(end), MatchesFilter(d, f), "%s vs %s", d, f)
		}
	}
}

func TestEndOfMonthLeapYear(t *testing.T) {
	assert.Equal(t, 29, endOfMonth(2028, time.February).Day())
	assert.Equal(t, 28, endOfMonth(2026, time.February).Day())
}
