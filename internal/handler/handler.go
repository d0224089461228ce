package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labattend/internal/attendance"
	"labattend/internal/metrics"
	"labattend/internal/queue"
	"labattend/internal/report"
)

// RecordStore is the persistence the HTTP layer needs on top of the engine.
type RecordStore interface {
	attendance.Store
	LastError() error
	Ping(ctx context.Context) error
}

// Deps wires a Handler.
type Deps struct {
	Engine     *attendance.Engine
	Records    RecordStore
	Queue      queue.Queue
	Summarizer *report.Summarizer
	Cache      *report.Cache
	Metrics    *metrics.Collector
	Logger     *zap.Logger
	Now        func() time.Time
}

// Handler serves the attendance HTTP API.
type Handler struct {
	engine     *attendance.Engine
	records    RecordStore
	queue      queue.Queue
	summarizer *report.Summarizer
	cache      *report.Cache
	metrics    *metrics.Collector
	logger     *zap.Logger
	now        func() time.Time
}

// New builds a Handler from its dependencies, defaulting Logger and Now.
func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return &Handler{
		engine:     d.Engine,
		records:    d.Records,
		queue:      d.Queue,
		summarizer: d.Summarizer,
		cache:      d.Cache,
		metrics:    d.Metrics,
		logger:     d.Logger,
		now:        d.Now,
	}
}

// Register mounts the API routes under /v1 plus /healthz.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)

	v1 := r.Group("/v1")
	v1.POST("/checkins", h.checkIn)
	v1.POST("/checkouts", h.checkOut)
	v1.GET("/sessions/active", h.activeSession)
	v1.GET("/records", h.listRecords)
	v1.GET("/records/export.csv", h.exportCSV)
	v1.GET("/records/export.pdf", h.exportPDF)
	v1.DELETE("/records/:id", h.deleteRecord)
	v1.DELETE("/records", h.clearRecords)
	v1.GET("/stats", h.stats)
	v1.GET("/summary", h.cachedSummary)
	v1.POST("/summary", h.generateSummary)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, attendance.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, attendance.ErrStudentAlreadyActive), errors.Is(err, attendance.ErrSystemOccupied):
		return http.StatusConflict
	case errors.Is(err, attendance.ErrNoActiveSession):
		return http.StatusNotFound
	case errors.Is(err, attendance.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error envelope. Rule errors carry their own message; anything
// else is logged and hidden behind a generic one.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	var rule *attendance.RuleError
	switch {
	case errors.As(err, &rule):
		msg = rule.Message
	case errors.Is(err, attendance.ErrPersistence):
		h.logger.Error("persistence failure", zap.Error(err), zap.String("path", c.FullPath()))
		msg = "Attendance data could not be saved or read. Please try again."
	case status == http.StatusInternalServerError:
		h.logger.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
		msg = "Something went wrong."
	}
	writeError(c, status, attendance.Code(err), msg)
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Code: code, Message: message}})
}

// publish notifies the worker. Failures are logged and never fail the request.
func (h *Handler) publish(c *gin.Context, op, recordID string) {
	if h.queue == nil {
		return
	}
	if err := h.queue.Publish(c.Request.Context(), queue.NewChange(op, recordID)); err != nil {
		h.logger.Warn("queue publish failed", zap.String("op", op), zap.Error(err))
	}
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.records.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": true})
}
