// Package service orchestrates the processing pipeline: fetch uploaded PDFs,
// extract and normalize their text, detect the document family, parse, filter,
// summarize and export.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fundsheet/fundsheet/internal/domain/export"
	"github.com/fundsheet/fundsheet/internal/domain/extract/filter"
	"github.com/fundsheet/fundsheet/internal/domain/extract/normalizer"
	"github.com/fundsheet/fundsheet/internal/domain/extract/parser"
	"github.com/fundsheet/fundsheet/internal/domain/extract/pdftext"
	"github.com/fundsheet/fundsheet/internal/domain/extract/sniffer"
	"github.com/fundsheet/fundsheet/internal/domain/summary"
	"github.com/fundsheet/fundsheet/pkg/metrics"
	"github.com/fundsheet/fundsheet/pkg/storage"
)

var (
	// ErrNoDocuments is returned when a request names no uploads.
	ErrNoDocuments = errors.New("no documents to process")
	// ErrUnknownFamily is returned when detection fails for a document.
	// Processing never guesses a family.
	ErrUnknownFamily = errors.New("unable to detect document family")
	// ErrFamilyMismatch is returned when a document's family contradicts the
	// one the caller expected.
	ErrFamilyMismatch = errors.New("document family does not match the expected one")
	// ErrMixedFamilies is returned when one batch contains both families.
	ErrMixedFamilies = errors.New("cannot mix Horizon and EDF documents in one request")
)

// summaryStopMargin mirrors the time-budget guard: once less than this much
// of the budget remains, no further summarization calls are issued.
const summaryStopMargin = 8 * time.Second

// minExistingDescChars skips summarization for rows that already carry a
// usable heading-extracted description.
const minExistingDescChars = 80

// Config tunes the processing pipeline.
type Config struct {
	DefaultMinBudgetM float64
	MaxSummaryTopics  int
	SummaryTimeBudget time.Duration
	PresignTTL        time.Duration
}

// Service runs the pipeline. The summarizer is optional; nil disables AI
// descriptions without affecting anything else.
type Service struct {
	store      storage.Storage
	summarizer summary.Summarizer
	cfg        Config
	log        *slog.Logger
	extract    func(pdf []byte) (string, error)
}

func New(store storage.Storage, summarizer summary.Summarizer, cfg Config, log *slog.Logger) *Service {
	if cfg.MaxSummaryTopics <= 0 {
		cfg.MaxSummaryTopics = 25
	}
	if cfg.SummaryTimeBudget <= 0 {
		cfg.SummaryTimeBudget = 2 * time.Minute
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	return &Service{store: store, summarizer: summarizer, cfg: cfg, log: log, extract: pdftext.Extract}
}

// WithExtractor swaps the PDF text extractor.
func (s *Service) WithExtractor(fn func(pdf []byte) (string, error)) *Service {
	s.extract = fn
	return s
}

// EDFFilters are the EDF-only filter knobs of a processing request.
type EDFFilters struct {
	CallFamily string   `json:"call_family"`
	BudgetMinM *float64 `json:"budget_min_m"`
	BudgetMaxM *float64 `json:"budget_max_m"`
	Step       *bool    `json:"step"`
}

// ProcessRequest names the uploaded PDFs and the filters to apply.
type ProcessRequest struct {
	PDFKeys        []string   `json:"pdf_keys"`
	OriginalNames  []string   `json:"original_names"`
	ExpectedFamily string     `json:"expected_type"`
	CallTypes      []string   `json:"call_types"`
	MinBudgetM     *float64   `json:"min_budget_m"`
	OpeningFilter  string     `json:"opening_filter"`
	DeadlineFilter string     `json:"deadline_filter"`
	EDF            EDFFilters `json:"edf_filters"`
}

// DisplayRow is the row shape returned to API clients; the exhaustive column
// set lives only in the exported spreadsheet.
type DisplayRow struct {
	RecordLevel       string   `json:"record_level,omitempty"`
	CallID            string   `json:"call_id,omitempty"`
	TopicID           string   `json:"topic_id"`
	TopicURL          string   `json:"topic_url"`
	TopicTitle        string   `json:"topic_title"`
	Title             string   `json:"title,omitempty"`
	SectionNo         string   `json:"section_no,omitempty"`
	BudgetPerProjectM *float64 `json:"budget_per_project_min_eur_m"`
	OpeningDate       string   `json:"opening_date"`
	DeadlineDate      string   `json:"deadline_date"`
	CallType          string   `json:"call_type"`
	FundingPercentage string   `json:"funding_percentage"`
}

// CallTypeMeta summarizes one call type seen in the batch.
type CallTypeMeta struct {
	Name              string `json:"name"`
	FundingPercentage string `json:"funding_percentage"`
}

// ProcessResult is the outcome of one processing request.
type ProcessResult struct {
	Status    string         `json:"status"`
	ExcelKey  string         `json:"excel_key"`
	Rows      []DisplayRow   `json:"rows"`
	RowsCount int            `json:"rows_count"`
	DocType   string         `json:"doc_type"`
	CallTypes []CallTypeMeta `json:"call_types"`
}

// Process runs the full pipeline for one batch of uploaded PDFs.
func (s *Service) Process(ctx context.Context, req ProcessRequest) (*ProcessResult, error) {
	if len(req.PDFKeys) == 0 {
		return nil, ErrNoDocuments
	}

	var (
		allRows  []parser.Row
		detected sniffer.Family
	)
	for i, key := range req.PDFKeys {
		label := key
		if i < len(req.OriginalNames) && req.OriginalNames[i] != "" {
			label = req.OriginalNames[i]
		}

		text, err := s.extractText(ctx, key)
		if err != nil {
			metrics.ProcessFailures.WithLabelValues("extract").Inc()
			return nil, fmt.Errorf("extract %s: %w", label, err)
		}
		text = normalizer.NormalizeLines(text)

		family := sniffer.Detect(text)
		if family == sniffer.FamilyUnknown {
			metrics.ProcessFailures.WithLabelValues("unknown_family").Inc()
			return nil, fmt.Errorf("%w (%s)", ErrUnknownFamily, label)
		}
		if req.ExpectedFamily != "" && string(family) != strings.ToLower(req.ExpectedFamily) {
			metrics.ProcessFailures.WithLabelValues("family_mismatch").Inc()
			return nil, fmt.Errorf("%w: got %s, expected %s (%s)",
				ErrFamilyMismatch, family, req.ExpectedFamily, label)
		}
		if detected != "" && family != detected {
			metrics.ProcessFailures.WithLabelValues("mixed_families").Inc()
			return nil, ErrMixedFamilies
		}
		detected = family

		var rows []parser.Row
		if family == sniffer.FamilyEDF {
			rows = parser.ParseEDF(text)
		} else {
			rows = parser.ParseHorizon(text)
		}
		for j := range rows {
			rows[j].SourcePDF = label
		}
		allRows = append(allRows, rows...)

		metrics.DocumentsProcessed.WithLabelValues(string(family)).Inc()
		metrics.RowsExtracted.WithLabelValues(string(family)).Add(float64(len(rows)))
	}

	minBudget := s.cfg.DefaultMinBudgetM
	if req.MinBudgetM != nil {
		minBudget = *req.MinBudgetM
	}
	shared := filter.Options{
		CallTypes:      req.CallTypes,
		MinBudgetM:     &minBudget,
		OpeningFilter:  req.OpeningFilter,
		DeadlineFilter: req.DeadlineFilter,
	}

	if detected == sniffer.FamilyEDF {
		return s.finishEDF(ctx, req, allRows, shared)
	}
	return s.finishHorizon(ctx, req, allRows, shared)
}

func (s *Service) extractText(ctx context.Context, key string) (string, error) {
	rc, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	pdf, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	return s.extract(pdf)
}

func (s *Service) finishHorizon(ctx context.Context, req ProcessRequest, allRows []parser.Row, shared filter.Options) (*ProcessResult, error) {
	filter.FinalizeHorizon(allRows)

	typeMeta := newCallTypeMeta()
	for i := range allRows {
		typeMeta.add(allRows[i].CallType, allRows[i].FundingPercentage)
	}

	rows := filter.Apply(allRows, shared, sniffer.FamilyHorizon)
	s.summarize(ctx, rows)

	excelKey, err := s.writeOutput(ctx, req, rows, sniffer.FamilyHorizon)
	if err != nil {
		return nil, err
	}

	display := make([]DisplayRow, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		typeMeta.add(r.CallType, r.FundingPercentage)
		display = append(display, DisplayRow{
			TopicID:           r.TopicID,
			TopicURL:          export.TopicURL(r.TopicID),
			TopicTitle:        r.TopicTitle,
			BudgetPerProjectM: r.BudgetPerProjectMinEURm,
			OpeningDate:       r.OpeningDate,
			DeadlineDate:      r.DeadlineDate,
			CallType:          r.CallType,
			FundingPercentage: r.FundingPercentage,
		})
	}

	return &ProcessResult{
		Status:    "ok",
		ExcelKey:  excelKey,
		Rows:      display,
		RowsCount: len(rows),
		DocType:   string(sniffer.FamilyHorizon),
		CallTypes: typeMeta.list(),
	}, nil
}

func (s *Service) finishEDF(ctx context.Context, req ProcessRequest, allRows []parser.Row, shared filter.Options) (*ProcessResult, error) {
	filter.FinalizeEDF(allRows)

	typeMeta := newCallTypeMeta()
	for i := range allRows {
		typeMeta.add(allRows[i].CallType, allRows[i].FundingPercentage)
	}

	rows := filter.TopicLevel(allRows)
	rows = filter.ApplyEDF(rows, filter.EDFOptions{
		CallFamily: req.EDF.CallFamily,
		BudgetMinM: req.EDF.BudgetMinM,
		BudgetMaxM: req.EDF.BudgetMaxM,
		Step:       req.EDF.Step,
	})
	rows = filter.Apply(rows, shared, sniffer.FamilyEDF)

	// The workbook keeps call-level rows after the filtered topics.
	excelRows := append(append([]parser.Row{}, rows...), filter.CallLevel(allRows)...)
	excelKey, err := s.writeOutput(ctx, req, excelRows, sniffer.FamilyEDF)
	if err != nil {
		return nil, err
	}

	display := make([]DisplayRow, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		typeMeta.add(r.CallType, r.FundingPercentage)
		display = append(display, DisplayRow{
			RecordLevel:       string(r.RecordLevel),
			CallID:            r.CallID,
			TopicID:           r.TopicID,
			TopicURL:          export.TopicURL(r.TopicID),
			TopicTitle:        r.TopicTitle,
			Title:             r.Title,
			SectionNo:         r.SectionNo,
			BudgetPerProjectM: r.BudgetPerProjectMinEURm,
			OpeningDate:       r.OpeningDate,
			DeadlineDate:      r.DeadlineDate,
			CallType:          r.CallType,
			FundingPercentage: r.FundingPercentage,
		})
	}

	return &ProcessResult{
		Status:    "ok",
		ExcelKey:  excelKey,
		Rows:      display,
		RowsCount: len(rows),
		DocType:   string(sniffer.FamilyEDF),
		CallTypes: typeMeta.list(),
	}, nil
}

// summarize fills missing topic descriptions from the AI collaborator, row by
// row. It stops at the topic cap or when the time budget is nearly spent, and
// a failed row never affects the others.
func (s *Service) summarize(ctx context.Context, rows []parser.Row) {
	if s.summarizer == nil {
		return
	}
	deadline := time.Now().Add(s.cfg.SummaryTimeBudget)

	done := 0
	for i := range rows {
		if done >= s.cfg.MaxSummaryTopics {
			break
		}
		if remaining := time.Until(deadline); remaining < summaryStopMargin {
			s.log.Info("stopping summarization, time budget nearly spent",
				slog.Duration("remaining", remaining))
			break
		}
		if ctx.Err() != nil {
			break
		}

		r := &rows[i]
		body := strings.TrimSpace(r.TopicBody)
		if body == "" {
			metrics.Summaries.WithLabelValues("skipped").Inc()
			continue
		}
		if len(strings.TrimSpace(r.TopicDescription)) >= minExistingDescChars {
			metrics.Summaries.WithLabelValues("skipped").Inc()
			continue
		}

		desc := s.summarizer.Summarize(ctx, r.TopicID, r.TopicTitle, body)
		r.TopicDescription = desc
		if desc != "" {
			metrics.Summaries.WithLabelValues("ok").Inc()
			done++
		} else {
			metrics.Summaries.WithLabelValues("empty").Inc()
		}
	}
}

func (s *Service) writeOutput(ctx context.Context, req ProcessRequest, rows []parser.Row, family sniffer.Family) (string, error) {
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, rows, family); err != nil {
		metrics.ProcessFailures.WithLabelValues("export").Inc()
		return "", fmt.Errorf("write workbook: %w", err)
	}

	base := req.PDFKeys[0]
	if len(req.OriginalNames) > 0 && req.OriginalNames[0] != "" {
		base = req.OriginalNames[0]
	}
	safeBase := SafeBaseName(base)
	if len(req.PDFKeys) > 1 {
		safeBase += "-combined"
	}

	key := fmt.Sprintf("outputs/%s/%s.xlsx", uuid.NewString(), safeBase)
	if err := s.store.Put(ctx, key, &buf); err != nil {
		metrics.ProcessFailures.WithLabelValues("store").Inc()
		return "", fmt.Errorf("store workbook: %w", err)
	}
	return key, nil
}

// PresignUpload returns a signed upload link for a fresh uploads/ key.
func (s *Service) PresignUpload(filename string) (key, url string, err error) {
	key = fmt.Sprintf("uploads/%s.pdf", uuid.NewString())
	url, err = s.store.PresignPut(key, s.cfg.PresignTTL)
	if err != nil {
		return "", "", fmt.Errorf("presign upload %s: %w", SafeBaseName(filename), err)
	}
	return key, url, nil
}

// PresignDownload returns a signed download link for a generated output.
func (s *Service) PresignDownload(key string) (string, error) {
	if !strings.HasPrefix(key, "outputs/") {
		return "", storage.ErrInvalidKey
	}
	url, err := s.store.PresignGet(key, s.cfg.PresignTTL)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return url, nil
}

var reUnsafeName = regexp.MustCompile(`[\\/:*?"<>|]`)

// SafeBaseName reduces an uploaded file name to a path-safe base without
// extension, capped in length.
func SafeBaseName(fileName string) string {
	base := strings.TrimSpace(path.Base(strings.ReplaceAll(fileName, "\\", "/")))
	if base == "" || base == "." || base == "/" {
		return "file"
	}
	base = reUnsafeName.ReplaceAllString(base, "_")
	base = strings.Trim(base, ". ")
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" {
		return "file"
	}
	if len(base) > 120 {
		base = base[:120]
	}
	return base
}

// callTypeMeta keeps first-seen order of call types for the response.
type callTypeMeta struct {
	order []string
	seen  map[string]string
}

func newCallTypeMeta() *callTypeMeta {
	return &callTypeMeta{seen: make(map[string]string)}
}

func (m *callTypeMeta) add(name, funding string) {
	if name == "" {
		return
	}
	if _, ok := m.seen[name]; ok {
		return
	}
	m.seen[name] = funding
	m.order = append(m.order, name)
}

func (m *callTypeMeta) list() []CallTypeMeta {
	out := make([]CallTypeMeta, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, CallTypeMeta{Name: name, FundingPercentage: m.seen[name]})
	}
	return out
}
