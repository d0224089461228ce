package report

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"labattend/internal/attendance"
	"labattend/internal/config"
	"labattend/internal/genai"
)

// Texts returned in place of a generated summary.
const (
	MsgNoAPIKey  = "API Key not configured. Unable to generate AI insights."
	MsgNoRecords = "No attendance records to analyze yet."
	MsgAPIError  = "Failed to generate report due to an API error. Please try again later."
	MsgNoOutput  = "No insights generated."
)

// DefaultMaxRecords bounds how many recent records go into the prompt.
const DefaultMaxRecords = 50

const promptTemplate = `
Analyze the following lab attendance data (JSON format).
Provide a concise summary report covering:
1. Peak usage times.
2. Average session duration.
3. Most active students or systems.
4. Any anomalies (e.g., very short sessions or forgotten check-outs).

Keep the tone professional and helpful for a lab administrator.
Use Markdown formatting for the response.

Data:
`

// Generator produces text for a prompt. *genai.Client satisfies it.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Summary is one generated (or fallback) analysis.
type Summary struct {
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generatedAt"`
	RecordCount int       `json:"recordCount"`
	Fallback    bool      `json:"fallback"`
}

// Summarizer turns the record set into a natural-language report.
type Summarizer struct {
	gen        Generator
	maxRecords int
	timeout    time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewSummarizer builds a summarizer. A nil gen means no API key is configured.
func NewSummarizer(gen Generator, maxRecords int, timeout time.Duration, logger *zap.Logger) *Summarizer {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{gen: gen, maxRecords: maxRecords, timeout: timeout, logger: logger, now: time.Now}
}

// FromConfig wires a Gemini-backed summarizer, or a keyless one when GEMINI_API_KEY is unset.
func FromConfig(ctx context.Context, cfg config.App, logger *zap.Logger) (*Summarizer, error) {
	var gen Generator
	if cfg.GeminiAPIKey != "" {
		client, err := genai.New(ctx, cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.SummaryTimeout)
		if err != nil {
			return nil, err
		}
		gen = client
	}
	return NewSummarizer(gen, cfg.SummaryMaxRecords, cfg.SummaryTimeout, logger), nil
}

// GenerateSummary returns the report text or one of the fallback messages. It never fails.
func (s *Summarizer) GenerateSummary(ctx context.Context, records []attendance.Record) string {
	return s.Summarize(ctx, records).Text
}

// Summarize is GenerateSummary with the metadata the summary cache stores.
func (s *Summarizer) Summarize(ctx context.Context, records []attendance.Record) Summary {
	out := Summary{GeneratedAt: s.now().UTC(), RecordCount: len(records), Fallback: true}

	if s.gen == nil {
		out.Text = MsgNoAPIKey
		return out
	}
	if len(records) == 0 {
		out.Text = MsgNoRecords
		return out
	}

	prompt, err := BuildPrompt(records, s.maxRecords)
	if err != nil {
		s.logger.Error("build summary prompt", zap.Error(err))
		out.Text = MsgAPIError
		return out
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.gen.GenerateText(ctx, prompt)
	switch {
	case errors.Is(err, genai.ErrNoAPIKey):
		out.Text = MsgNoAPIKey
	case err != nil:
		s.logger.Error("generate summary", zap.Error(err))
		out.Text = MsgAPIError
	case text == "":
		out.Text = MsgNoOutput
	default:
		out.Text = text
		out.Fallback = false
	}
	return out
}

type promptRecord struct {
	Date     string            `json:"date"`
	Student  string            `json:"student"`
	System   string            `json:"system"`
	In       string            `json:"in"`
	Out      *string           `json:"out,omitempty"`
	Duration *int              `json:"duration,omitempty"`
	Status   attendance.Status `json:"status"`
}

// BuildPrompt embeds the newest max records, newest first, as compact JSON.
func BuildPrompt(records []attendance.Record, max int) (string, error) {
	recent := make([]attendance.Record, len(records))
	copy(recent, records)
	sort.SliceStable(recent, func(i, j int) bool { return recent[i].Timestamp > recent[j].Timestamp })
	if max > 0 && len(recent) > max {
		recent = recent[:max]
	}

	rows := make([]promptRecord, 0, len(recent))
	for _, r := range recent {
		rows = append(rows, promptRecord{
			Date:     r.Date,
			Student:  r.StudentName,
			System:   r.SystemNumber,
			In:       r.CheckInTime,
			Out:      r.CheckOutTime,
			Duration: r.DurationMinutes,
			Status:   r.Status,
		})
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return promptTemplate + string(data) + "\n", nil
}
