package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labattend/internal/report"
)

func (h *Handler) cachedSummary(c *gin.Context) {
	s, err := h.cache.Get(c.Request.Context())
	if errors.Is(err, report.ErrNoSummary) {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No summary has been generated yet.")
		return
	}
	if err != nil {
		h.logger.Error("read cached summary", zap.Error(err))
		writeError(c, http.StatusServiceUnavailable, "PERSISTENCE_FAILURE", "The cached summary could not be read.")
		return
	}
	c.JSON(http.StatusOK, s)
}

// generateSummary runs the summarizer synchronously. It always answers 200 with
// either the report or a fallback message.
func (h *Handler) generateSummary(c *gin.Context) {
	records, _ := h.snapshot(c)
	s := h.summarizer.Summarize(c.Request.Context(), records)
	outcome := "ok"
	if s.Fallback {
		outcome = "fallback"
	}
	h.metrics.Summary(outcome)

	if h.cache != nil {
		if err := h.cache.Put(c.Request.Context(), s); err != nil {
			h.logger.Warn("cache summary", zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, s)
}
