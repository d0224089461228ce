package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"labattend/internal/attendance"
)

type checkInBody struct {
	StudentName  string `json:"studentName"`
	SystemNumber string `json:"systemNumber"`
	Date         string `json:"date"`
	CheckInTime  string `json:"checkInTime"`
}

type checkOutBody struct {
	StudentName  string `json:"studentName"`
	SystemNumber string `json:"systemNumber"`
	CheckOutTime string `json:"checkOutTime"`
}

func (h *Handler) checkIn(c *gin.Context) {
	var body checkInBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request body must be a JSON object.")
		return
	}

	rec, err := h.engine.CheckIn(c.Request.Context(), attendance.CheckInRequest{
		StudentName:  body.StudentName,
		SystemNumber: body.SystemNumber,
		Date:         body.Date,
		CheckInTime:  body.CheckInTime,
	})
	if err != nil {
		h.metrics.Rejected(err)
		h.fail(c, err)
		return
	}
	h.metrics.CheckedIn()
	h.publish(c, "checkin", rec.ID)

	c.JSON(http.StatusCreated, gin.H{
		"record":  rec,
		"message": fmt.Sprintf("%s checked in successfully at %s", rec.StudentName, rec.CheckInTime),
	})
}

func (h *Handler) checkOut(c *gin.Context) {
	var body checkOutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request body must be a JSON object.")
		return
	}

	rec, err := h.engine.CheckOut(c.Request.Context(), attendance.CheckOutRequest{
		StudentName:  body.StudentName,
		SystemNumber: body.SystemNumber,
		CheckOutTime: body.CheckOutTime,
	})
	if err != nil {
		h.metrics.Rejected(err)
		h.fail(c, err)
		return
	}
	h.metrics.CheckedOut()
	h.publish(c, "checkout", rec.ID)

	c.JSON(http.StatusOK, gin.H{
		"record":  rec,
		"message": fmt.Sprintf("%s checked out. Duration: %s", rec.StudentName, attendance.FormatDuration(*rec.DurationMinutes)),
	})
}

// activeSession backs the check-out form hint.
func (h *Handler) activeSession(c *gin.Context) {
	name, system := c.Query("studentName"), c.Query("systemNumber")
	records, err := h.records.Load(c.Request.Context())
	if err != nil {
		h.metrics.PersistenceFailed()
		h.fail(c, err)
		return
	}
	rec, ok := attendance.ActiveSession(records, name, system)
	if !ok {
		writeError(c, http.StatusNotFound, "NO_ACTIVE_SESSION", "No active session found for this student at this system.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"record":  rec,
		"message": fmt.Sprintf("Active session found. Checked in at %s.", rec.CheckInTime),
	})
}
