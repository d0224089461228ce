package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"labattend/internal/attendance"
	"labattend/internal/metrics"
	"labattend/internal/queue"
	"labattend/internal/report"
	"labattend/internal/store"
)

type recordingQueue struct {
	mu   sync.Mutex
	sent []queue.Message
}

func (q *recordingQueue) Publish(ctx context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, msg)
	return nil
}

func (q *recordingQueue) Consume(ctx context.Context) (<-chan queue.Message, error) {
	return nil, nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.sent)
}

type testAPI struct {
	router *gin.Engine
	kv     *store.Memory
	queue  *recordingQueue
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	clock := func() time.Time { return time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC) }
	kv := store.NewMemory()
	records := store.NewRecords(kv, "", zap.NewNop())
	q := &recordingQueue{}

	h := New(Deps{
		Engine:     attendance.NewEngine(records, attendance.WithClock(clock)),
		Records:    records,
		Queue:      q,
		Summarizer: report.NewSummarizer(nil, 0, time.Second, zap.NewNop()),
		Cache:      report.NewCache(kv, ""),
		Metrics:    metrics.New(),
		Now:        clock,
	})
	r := gin.New()
	h.Register(r)
	return &testAPI{router: r, kv: kv, queue: q}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Record  attendance.Record `json:"record"`
	Message string            `json:"message"`
	Error   errorBody         `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestCheckInCheckOutFlow(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/v1/checkins", gin.H{"studentName": "Alice", "systemNumber": "5", "checkInTime": "09:00"})
	require.Equal(t, http.StatusCreated, w.Code)
	in := decode(t, w)
	assert.Equal(t, attendance.StatusActive, in.Record.Status)
	assert.Equal(t, "2024-03-04", in.Record.Date)
	assert.Equal(t, "Alice checked in successfully at 09:00", in.Message)

	w = api.do(t, http.MethodPost, "/v1/checkins", gin.H{"studentName": "alice", "systemNumber": "6"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "STUDENT_ALREADY_ACTIVE", decode(t, w).Error.Code)

	w = api.do(t, http.MethodPost, "/v1/checkins", gin.H{"studentName": "Bob", "systemNumber": "5"})
	assert.Equal(t, http.StatusConflict, w.Code)
	e := decode(t, w)
	assert.Equal(t, "SYSTEM_OCCUPIED", e.Error.Code)
	assert.Equal(t, "System #5 is currently occupied by Alice.", e.Error.Message)

	w = api.do(t, http.MethodGet, "/v1/sessions/active?studentName=ALICE&systemNumber=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Active session found. Checked in at 09:00.", decode(t, w).Message)

	w = api.do(t, http.MethodPost, "/v1/checkouts", gin.H{"studentName": "Alice", "systemNumber": "5", "checkOutTime": "10:30"})
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, in.Record.ID, out.Record.ID)
	assert.Equal(t, 90, *out.Record.DurationMinutes)
	assert.Equal(t, "Alice checked out. Duration: 1h 30m", out.Message)

	w = api.do(t, http.MethodPost, "/v1/checkouts", gin.H{"studentName": "Alice", "systemNumber": "5", "checkOutTime": "11:00"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NO_ACTIVE_SESSION", decode(t, w).Error.Code)

	w = api.do(t, http.MethodGet, "/v1/sessions/active?studentName=Alice&systemNumber=5", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, 2, api.queue.count())
}

func TestCheckInValidation(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodPost, "/v1/checkins", gin.H{"studentName": "  ", "systemNumber": "5"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	e := decode(t, w)
	assert.Equal(t, "VALIDATION_ERROR", e.Error.Code)
	assert.Equal(t, "Please fill in all fields", e.Error.Message)

	w = api.do(t, http.MethodPost, "/v1/checkins", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodPost, "/v1/checkouts", gin.H{"studentName": "A", "systemNumber": "1", "checkOutTime": "25:00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, api.queue.count())
}

func TestCorruptStore(t *testing.T) {
	api := newTestAPI(t)
	require.NoError(t, api.kv.Set(context.Background(), store.DefaultKey, []byte(`{oops`)))

	w := api.do(t, http.MethodPost, "/v1/checkins", gin.H{"studentName": "Alice", "systemNumber": "5"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "PERSISTENCE_FAILURE", decode(t, w).Error.Code)

	w = api.do(t, http.MethodGet, "/v1/records", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Records []attendance.Record `json:"records"`
		Warning string              `json:"warning"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Records)
	assert.NotEmpty(t, list.Warning)

	raw, err := api.kv.Get(context.Background(), store.DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, `{oops`, string(raw))
}

func seed(t *testing.T, api *testAPI) {
	t.Helper()
	for _, body := range []gin.H{
		{"studentName": "Alice", "systemNumber": "5", "checkInTime": "09:00"},
		{"studentName": "Bob", "systemNumber": "15", "checkInTime": "09:10"},
		{"studentName": "Carol", "systemNumber": "7", "checkInTime": "09:20"},
	} {
		require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/v1/checkins", body).Code)
	}
	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/v1/checkouts",
		gin.H{"studentName": "Bob", "systemNumber": "15", "checkOutTime": "10:10"}).Code)
}

func TestListRecordsFiltersAndStats(t *testing.T) {
	api := newTestAPI(t)
	seed(t, api)

	w := api.do(t, http.MethodGet, "/v1/records?q=5&status=active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Records []attendance.Record `json:"records"`
		Stats   attendance.Stats    `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Records, 1)
	assert.Equal(t, "Alice", list.Records[0].StudentName)
	assert.Equal(t, attendance.Stats{TotalSessions: 3, ActiveNow: 2, AvgDurationMinutes: 60, UniqueStudents: 3}, list.Stats)

	w = api.do(t, http.MethodGet, "/v1/records", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Records, 3)
	assert.Equal(t, "Carol", list.Records[0].StudentName)

	w = api.do(t, http.MethodGet, "/v1/records?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats attendance.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.ActiveNow)
}

func TestExport(t *testing.T) {
	api := newTestAPI(t)
	seed(t, api)

	w := api.do(t, http.MethodGet, "/v1/records/export.csv?status=completed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="attendance_report_2024-03-04.csv"`, w.Header().Get("Content-Disposition"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-03-04,Bob,15,09:10,10:10,60,Completed", lines[1])

	w = api.do(t, http.MethodGet, "/v1/records/export.pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))
}

func TestDeleteAndClear(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodPost, "/v1/checkins", gin.H{"studentName": "Alice", "systemNumber": "5"})
	id := decode(t, w).Record.ID

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodDelete, "/v1/records/nope", nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, "/v1/records/"+id, nil).Code)

	api.do(t, http.MethodPost, "/v1/checkins", gin.H{"studentName": "Bob", "systemNumber": "5"})
	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, "/v1/records", nil).Code)
	_, err := api.kv.Get(context.Background(), store.DefaultKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSummaryEndpoints(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/v1/summary", nil).Code)

	w := api.do(t, http.MethodPost, "/v1/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var s report.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, report.MsgNoAPIKey, s.Text)
	assert.True(t, s.Fallback)

	w = api.do(t, http.MethodGet, "/v1/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, report.MsgNoAPIKey, s.Text)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
