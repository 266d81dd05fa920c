// Package summary produces short AI-written topic descriptions. The
// collaborator is strictly best-effort: any failure degrades to an empty
// string and must never abort processing of the remaining rows.
package summary

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	// MaxChars is the hard cap on a returned summary; anything longer is
	// trimmed by the caller-side post-processing.
	MaxChars     = 240
	maxSentences = 2

	defaultModel        = "gemini-2.0-flash"
	defaultBodyMaxChars = 6000
	requestTimeout      = 20 * time.Second
)

const instructions = "Summarize only what is present in the provided text.\n" +
	"Do not add requirements, dates, numbers, or claims not present.\n" +
	"Return 2 short sentences maximum in English using simple language (under 240 characters)."

// Summarizer is the contract the processing pipeline depends on. Summarize
// never returns an error; a failed or skipped summary is the empty string.
type Summarizer interface {
	Summarize(ctx context.Context, topicID, title, body string) string
}

// Config tunes the Gemini-backed summarizer.
type Config struct {
	APIKey            string
	Model             string
	BodyMaxChars      int
	RequestsPerSecond float64
}

// Gemini summarizes topic bodies through the Gemini API. Responses are cached
// by truncated body text so identical bodies cost one request, failures
// included. Safe for concurrent use.
type Gemini struct {
	client       *genai.Client
	model        string
	bodyMaxChars int
	limiter      *rate.Limiter
	log          *slog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// NewGemini builds the summarizer. An empty API key is not an error: the
// constructor returns nil and the pipeline simply skips summarization.
func NewGemini(ctx context.Context, cfg Config, log *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	bodyMax := cfg.BodyMaxChars
	if bodyMax <= 0 {
		bodyMax = defaultBodyMaxChars
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}

	return &Gemini{
		client:       client,
		model:        model,
		bodyMaxChars: bodyMax,
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		log:          log,
		cache:        make(map[string]string),
	}, nil
}

// Summarize returns a short English description of the topic body, or ""
// when the body is empty, the request fails, or the context runs out.
func (g *Gemini) Summarize(ctx context.Context, topicID, title, body string) string {
	clean := strings.TrimSpace(body)
	if clean == "" {
		return ""
	}
	if len(clean) > g.bodyMaxChars {
		clean = clean[:g.bodyMaxChars]
	}

	g.mu.Lock()
	cached, ok := g.cache[clean]
	g.mu.Unlock()
	if ok {
		return cached
	}

	out := g.request(ctx, topicID, title, clean)

	g.mu.Lock()
	g.cache[clean] = out
	g.mu.Unlock()
	return out
}

func (g *Gemini) request(ctx context.Context, topicID, title, body string) string {
	if err := g.limiter.Wait(ctx); err != nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	prompt := "Topic ID: " + topicID + "\n" +
		"Title: " + title + "\n\n" +
		"Text from PDF:\n" + body

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.1)),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: instructions}},
		},
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		g.log.Warn("summary request failed", "topic_id", topicID, "err", err)
		return ""
	}
	return Trim(result.Text())
}

// Trim enforces the output contract on whatever the model returns: at most
// two sentences and MaxChars characters.
func Trim(s string) string {
	out := strings.TrimSpace(s)
	if out == "" {
		return ""
	}
	if parts := splitSentences(out); len(parts) > maxSentences {
		out = strings.Join(parts[:maxSentences], " ")
	}
	if len(out) > MaxChars {
		out = strings.TrimRight(out[:MaxChars], " \t\n")
	}
	return out
}

// splitSentences splits on sentence-ending punctuation followed by
// whitespace, keeping the punctuation with its sentence.
func splitSentences(s string) []string {
	var parts []string
	runes := []rune(s)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !isSpace(runes[i+1]) {
			continue
		}
		part := strings.TrimSpace(string(runes[start : i+1]))
		if part != "" {
			parts = append(parts, part)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
