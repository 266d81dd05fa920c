// Package parser turns normalized, page-marked work-programme text into
// structured call/topic rows. Two stateful line scanners cover the supported
// document families; both follow the same policy: a field that cannot be
// backed by a literal substring of the source stays nil, never guessed.
package parser

// RecordLevel distinguishes call-level from topic-level rows (EDF documents
// emit both; Horizon documents emit topics only).
type RecordLevel string

const (
	LevelCall  RecordLevel = "CALL"
	LevelTopic RecordLevel = "TOPIC"
)

// Row is one extracted call or topic. Optional numeric fields are pointers so
// "absent" and "zero" stay distinct; optional text fields use the empty
// string. Raw date strings are kept exactly as extracted and only parsed
// transiently during filtering.
type Row struct {
	RecordLevel RecordLevel

	// Horizon grouping context.
	Cluster   string
	Stage     string // "single" | "two-stage"
	CallRound string

	CallID    string
	TopicID   string
	SectionNo string

	TopicTitle string
	Title      string // EDF display title (topic title or call/topic id fallback)

	ActionType   string // Horizon funding-instrument code
	TypeOfAction string // EDF free-text action type

	OpeningDate  string
	DeadlineDate string

	BudgetEURm              *float64
	Projects                *int
	BudgetPerProjectMinEURm *float64
	BudgetPerProjectMaxEURm *float64

	IndicativeBudgetEURm     *float64 // EDF topic budget
	CallIndicativeBudgetEURm *float64 // EDF call budget, never conflated with the topic one
	NumberOfActions          *int

	CallFamily    string // derived 2-3 letter EDF code
	Step          *bool
	IsLargeScale  bool
	FundingPctRaw *float64 // percentage explicitly present in the text
	TRL           string   // e.g. "5-6"

	TopicDescription         string // Horizon: heading-extracted or AI summary
	TopicDescriptionVerbatim string // EDF: raw captured block, newlines kept
	TopicBody                string // raw detail block, summarizer input only

	Page      *int
	SourcePDF string

	// Derived by the post-processor, absent straight out of the parsers.
	BudgetPerProjectM *float64
	FundingPercentage string
	CallFamilyDisplay string
	Scale             string
	CallType          string
}

// overviewScore counts populated overview-derived fields; the deduplicator
// keeps the highest-scoring occurrence per topic id.
func (r *Row) overviewScore() int {
	score := 0
	if r.ActionType != "" {
		score++
	}
	if r.BudgetEURm != nil {
		score++
	}
	if r.Projects != nil {
		score++
	}
	if r.BudgetPerProjectMinEURm != nil {
		score++
	}
	if r.BudgetPerProjectMaxEURm != nil {
		score++
	}
	return score
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func boolPtr(v bool) *bool        { return &v }
