package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"labattend/internal/attendance"
	"labattend/internal/export"
)

// snapshot loads the records for a read-only view. A persistence failure is
// reported as a warning string next to an empty list instead of failing the request.
func (h *Handler) snapshot(c *gin.Context) ([]attendance.Record, string) {
	records, err := h.records.Load(c.Request.Context())
	if err != nil {
		h.metrics.PersistenceFailed()
		h.logger.Warn("records unreadable", zap.Error(err))
		return records, "Stored attendance data could not be read; showing no records."
	}
	h.metrics.SetActive(attendance.ComputeStats(records).ActiveNow)
	return records, ""
}

func (h *Handler) query(c *gin.Context) (attendance.Query, bool) {
	status, err := attendance.ParseStatusFilter(c.Query("status"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "status must be All, Active or Completed.")
		return attendance.Query{}, false
	}
	return attendance.Query{Search: c.Query("q"), Status: status}, true
}

func (h *Handler) listRecords(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	records, warning := h.snapshot(c)
	resp := gin.H{
		"records": attendance.Filter(records, q),
		"stats":   attendance.ComputeStats(records),
	}
	if warning != "" {
		resp["warning"] = warning
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) stats(c *gin.Context) {
	records, warning := h.snapshot(c)
	if warning != "" {
		c.Header("Warning", `199 - "`+warning+`"`)
	}
	c.JSON(http.StatusOK, attendance.ComputeStats(records))
}

func (h *Handler) exportCSV(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	records, _ := h.snapshot(c)
	data, err := export.ToCSV(attendance.Filter(records, q))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(h.now(), "csv")+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func (h *Handler) exportPDF(c *gin.Context) {
	q, ok := h.query(c)
	if !ok {
		return
	}
	records, _ := h.snapshot(c)
	data, err := export.ToPDF(attendance.Filter(records, q), "Lab attendance report")
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(h.now(), "pdf")+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *Handler) deleteRecord(c *gin.Context) {
	id := c.Param("id")
	records, err := h.records.Load(c.Request.Context())
	if err != nil {
		h.metrics.PersistenceFailed()
		h.fail(c, err)
		return
	}
	found := false
	for _, r := range records {
		if r.ID == id {
			found = true
			break
		}
	}
	if !found {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No record with id "+id+".")
		return
	}
	if err := h.records.Remove(c.Request.Context(), id); err != nil {
		h.metrics.PersistenceFailed()
		h.fail(c, err)
		return
	}
	h.publish(c, "delete", id)
	c.Status(http.StatusNoContent)
}

func (h *Handler) clearRecords(c *gin.Context) {
	if err := h.records.Clear(c.Request.Context()); err != nil {
		h.metrics.PersistenceFailed()
		h.fail(c, err)
		return
	}
	h.publish(c, "clear", "")
	c.Status(http.StatusNoContent)
}
