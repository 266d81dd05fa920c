package normalizer

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Run("empty input yields empty string", func(t *testing.T) {
		assert.Equal(t, "", Normalize(""))
		assert.Equal(t, "", NormalizeLines(""))
	})

	t.Run("strips soft hyphens and invisible characters", func(t *testing.T) {
		assert.Equal(t, "cooperation", Normalize("co­operation"))
		assert.Equal(t, "budget", Normalize("bud�get"))
	})

	t.Run("replaces non-breaking spaces", func(t *testing.T) {
		assert.Equal(t, "EUR 4 000", Normalize("EUR 4 000"))
	})

	t.Run("joins hyphenated line breaks keeping the hyphen", func(t *testing.T) {
		assert.Equal(t, "state-of-the-art", Normalize("state-of-the-\nart"))
		assert.Equal(t, "word-break", Normalize("word-\nbreak"))
	})

	t.Run("handles en and em dash line breaks", func(t *testing.T) {
		assert.Equal(t, "cross-border", Normalize("cross–\nborder"))
	})

	t.Run("collapses newlines to spaces", func(t *testing.T) {
		assert.Equal(t, "first second", Normalize("first\n\nsecond"))
	})

	t.Run("merges fragment followed by common suffix", func(t *testing.T) {
		assert.Equal(t, "development", Normalize("develop ment"))
		assert.Equal(t, "funding", Normalize("fund ing"))
	})

	t.Run("does not merge real short words", func(t *testing.T) {
		assert.Equal(t, "state of play", Normalize("state of play"))
		assert.Equal(t, "the need for", Normalize("the need for"))
	})

	t.Run("merges triplet with joiner", func(t *testing.T) {
		assert.Equal(t, "monitoring", Normalize("monitor and ing"))
	})

	t.Run("applies known split-word fixes", func(t *testing.T) {
		assert.Equal(t, "responses", Normalize("resp on ses"))
		assert.Equal(t, "personalised environments", Normalize("pers on alised envir on ments"))
	})
}

func TestNormalizeLines(t *testing.T) {
	t.Run("preserves line structure", func(t *testing.T) {
		got := NormalizeLines("Expected Outcome:\nprojects should develop ment\n")
		assert.Equal(t, "Expected Outcome:\nprojects should development", got)
	})

	t.Run("normalizes each line independently", func(t *testing.T) {
		got := NormalizeLines("fund\ning stays split across the break")
		// No hyphen on the break, fragments on separate lines stay apart.
		assert.Contains(t, got, "fund\ning")
	})
}

func TestAddFix(t *testing.T) {
	n := New()
	n.AddFix(regexp.MustCompile(`(?i)\bdef\s*ence\b`), "defence")
	assert.Equal(t, "defence fund", n.Normalize("def ence fund"))
}
