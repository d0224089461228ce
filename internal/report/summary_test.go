package report

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"labattend/internal/attendance"
	"labattend/internal/config"
	"labattend/internal/genai"
	"labattend/internal/store"
)

type stubGenerator struct {
	text   string
	err    error
	prompt string
	block  bool
}

func (s *stubGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.text, s.err
}

func record(i int) attendance.Record {
	out := "10:00"
	d := 60
	return attendance.Record{
		ID:              strconv.Itoa(i),
		StudentName:     "Student " + strconv.Itoa(i),
		SystemNumber:    strconv.Itoa(i % 10),
		Date:            "2024-01-01",
		CheckInTime:     "09:00",
		CheckOutTime:    &out,
		DurationMinutes: &d,
		Status:          attendance.StatusCompleted,
		Timestamp:       int64(i),
	}
}

func TestSummarizeFallbacks(t *testing.T) {
	ctx := context.Background()
	one := []attendance.Record{record(1)}

	cases := []struct {
		name    string
		gen     Generator
		records []attendance.Record
		want    string
	}{
		{"no key", nil, one, MsgNoAPIKey},
		{"no key beats no records", nil, nil, MsgNoAPIKey},
		{"no records", &stubGenerator{text: "x"}, nil, MsgNoRecords},
		{"service error", &stubGenerator{err: errors.New("boom")}, one, MsgAPIError},
		{"key rejected by client", &stubGenerator{err: genai.ErrNoAPIKey}, one, MsgNoAPIKey},
		{"empty output", &stubGenerator{}, one, MsgNoOutput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSummarizer(tc.gen, 0, time.Second, zap.NewNop())
			got := s.Summarize(ctx, tc.records)
			assert.Equal(t, tc.want, got.Text)
			assert.True(t, got.Fallback)
		})
	}
}

func TestSummarizeSuccess(t *testing.T) {
	gen := &stubGenerator{text: "## Peak usage\nMornings."}
	s := NewSummarizer(gen, 0, time.Second, zap.NewNop())
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	got := s.Summarize(context.Background(), []attendance.Record{record(1), record(2)})
	assert.Equal(t, "## Peak usage\nMornings.", got.Text)
	assert.False(t, got.Fallback)
	assert.Equal(t, 2, got.RecordCount)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), got.GeneratedAt)
	assert.Contains(t, gen.prompt, "Peak usage times.")
	assert.Equal(t, got.Text, s.GenerateSummary(context.Background(), []attendance.Record{record(1)}))
}

func TestSummarizeTimeout(t *testing.T) {
	s := NewSummarizer(&stubGenerator{block: true}, 0, 10*time.Millisecond, zap.NewNop())
	assert.Equal(t, MsgAPIError, s.GenerateSummary(context.Background(), []attendance.Record{record(1)}))
}

func TestBuildPromptCapsToNewest(t *testing.T) {
	var records []attendance.Record
	for i := 1; i <= 60; i++ {
		records = append(records, record(i))
	}
	active := attendance.Record{ID: "x", StudentName: "Late", SystemNumber: "9", Date: "2024-01-01", CheckInTime: "11:00", Status: attendance.StatusActive, Timestamp: 100}
	records = append(records, active)

	prompt, err := BuildPrompt(records, 50)
	require.NoError(t, err)

	idx := strings.Index(prompt, "Data:\n")
	require.GreaterOrEqual(t, idx, 0)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(prompt[idx+len("Data:\n"):])), &rows))
	require.Len(t, rows, 50)

	assert.Equal(t, "Late", rows[0]["student"])
	assert.NotContains(t, rows[0], "out")
	assert.NotContains(t, rows[0], "duration")
	assert.Equal(t, "Student 60", rows[1]["student"])
	assert.Equal(t, "Student 12", rows[49]["student"])
	assert.Equal(t, float64(60), rows[1]["duration"])
	assert.Equal(t, "Completed", rows[1]["status"])

	// input order is left untouched
	assert.Equal(t, "1", records[0].ID)
}

func TestFromConfig(t *testing.T) {
	s, err := FromConfig(context.Background(), config.App{}, nil)
	require.NoError(t, err)
	assert.Nil(t, s.gen)
	assert.Equal(t, DefaultMaxRecords, s.maxRecords)

	s, err = FromConfig(context.Background(), config.App{GeminiAPIKey: "k", GeminiModel: "m", SummaryMaxRecords: 10}, nil)
	require.NoError(t, err)
	require.NotNil(t, s.gen)
	assert.IsType(t, &genai.Client{}, s.gen)
	assert.Equal(t, 10, s.maxRecords)
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	c := NewCache(kv, "")

	_, err := c.Get(ctx)
	require.ErrorIs(t, err, ErrNoSummary)

	want := Summary{Text: "hi", GeneratedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), RecordCount: 3}
	require.NoError(t, c.Put(ctx, want))
	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := kv.Get(ctx, DefaultCacheKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"recordCount":3`)
}
