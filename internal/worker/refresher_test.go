package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"labattend/internal/attendance"
	"labattend/internal/queue"
	"labattend/internal/report"
	"labattend/internal/store"
)

type countingGenerator struct {
	calls atomic.Int32
}

func (g *countingGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	g.calls.Add(1)
	return "summary text", nil
}

type outcomes struct {
	mu   sync.Mutex
	seen []string
}

func (o *outcomes) Summary(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, outcome)
}

func setup(t *testing.T, debounce time.Duration) (*Refresher, *countingGenerator, *report.Cache, *outcomes) {
	r, gen, cache, obs, _ := setupWithKV(t, debounce)
	return r, gen, cache, obs
}

func setupWithKV(t *testing.T, debounce time.Duration) (*Refresher, *countingGenerator, *report.Cache, *outcomes, *store.Memory) {
	t.Helper()
	kv := store.NewMemory()
	records := store.NewRecords(kv, "", zap.NewNop())
	_, err := attendance.NewEngine(records).CheckIn(context.Background(), attendance.CheckInRequest{
		StudentName: "Alice", SystemNumber: "5", Date: "2024-01-01", CheckInTime: "09:00",
	})
	require.NoError(t, err)

	gen := &countingGenerator{}
	cache := report.NewCache(kv, "")
	obs := &outcomes{}
	r := NewRefresher(records, report.NewSummarizer(gen, 0, time.Second, zap.NewNop()), cache, debounce, obs, zap.NewNop())
	return r, gen, cache, obs, kv
}

func TestRefreshStoresSummary(t *testing.T) {
	r, gen, cache, obs := setup(t, 0)

	got, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "summary text", got.Text)
	assert.EqualValues(t, 1, gen.calls.Load())

	cached, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "summary text", cached.Text)
	assert.Equal(t, 1, cached.RecordCount)
	assert.Equal(t, []string{"ok"}, obs.seen)
}

func TestRunCoalescesBurst(t *testing.T) {
	r, gen, cache, _ := setup(t, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs := make(chan queue.Message)
	done := make(chan struct{})
	go func() {
		r.Run(ctx, msgs)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		msgs <- queue.NewChange("checkin", "")
	}
	msgs <- queue.Message{Type: "other"}

	require.Eventually(t, func() bool { return gen.calls.Load() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, gen.calls.Load())

	_, err := cache.Get(context.Background())
	assert.NoError(t, err)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFlushesPendingOnClose(t *testing.T) {
	r, gen, _, _ := setup(t, time.Hour)
	msgs := make(chan queue.Message, 1)
	msgs <- queue.NewChange("clear", "")
	close(msgs)

	r.Run(context.Background(), msgs)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestRefreshKeepsCachedSummaryWhenRecordsUnreadable(t *testing.T) {
	ctx := context.Background()
	r, gen, cache, obs, kv := setupWithKV(t, 0)

	_, err := r.Refresh(ctx)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, store.DefaultKey, []byte("not json")))

	_, err = r.Refresh(ctx)
	require.ErrorIs(t, err, attendance.ErrPersistence)

	cached, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "summary text", cached.Text)
	assert.Equal(t, 1, cached.RecordCount)
	assert.EqualValues(t, 1, gen.calls.Load())
	assert.Equal(t, []string{"ok"}, obs.seen)
}
