package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coursedesk/coursedesk-api/internal/models"
	"github.com/coursedesk/coursedesk-api/internal/service"
	appErrors "github.com/coursedesk/coursedesk-api/pkg/errors"
	"github.com/coursedesk/coursedesk-api/pkg/response"
)

type attendanceReconciler interface {
	LoadSnapshot(ctx context.Context, courseID string, date time.Time) (*models.AttendanceSnapshot, error)
	ApplyBulkStatus(entries []models.AttendanceEntry, targetStudentIDs []string, status models.AttendanceStatus) ([]models.AttendanceEntry, error)
	Save(ctx context.Context, req service.SaveAttendanceRequest) (string, error)
}

type attendanceHistorian interface {
	ListSessions(ctx context.Context, courseID string, viewer *models.JWTClaims) ([]models.SessionDetail, error)
	FilterSessions(sessions []models.SessionDetail, filter models.SessionFilter) []models.SessionDetail
	UpdateEntryStatus(ctx context.Context, entryID string, status string) error
	DeleteSession(ctx context.Context, sessionID string) error
	ExportSessions(ctx context.Context, courseID, format string, viewer *models.JWTClaims) ([]byte, string, error)
}

type summaryInvalidator interface {
	InvalidateFor(ctx context.Context, viewer *models.JWTClaims)
}

// AttendanceHandler exposes attendance recording and history endpoints.
type AttendanceHandler struct {
	reconciler attendanceReconciler
	history    attendanceHistorian
	summaries  summaryInvalidator
}

// NewAttendanceHandler constructs the handler. summaries may be nil when no
// dashboard cache is wired.
func NewAttendanceHandler(reconciler attendanceReconciler, history attendanceHistorian, summaries summaryInvalidator) *AttendanceHandler {
	return &AttendanceHandler{reconciler: reconciler, history: history, summaries: summaries}
}

// bustSummaries drops cached dashboard cards after a write that shifts the
// attendance aggregates.
func (h *AttendanceHandler) bustSummaries(c *gin.Context) {
	if h.summaries != nil {
		h.summaries.InvalidateFor(c.Request.Context(), claimsFromContext(c))
	}
}

// Snapshot godoc
// @Summary Load the editable attendance snapshot for a course and date
// @Tags Attendance
// @Produce json
// @Param id path string true "Course ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/attendance/snapshot [get]
func (h *AttendanceHandler) Snapshot(c *gin.Context) {
	date, err := parseDateParam(c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if date == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date required"))
		return
	}

	snapshot, err := h.reconciler.LoadSnapshot(c.Request.Context(), c.Param("id"), *date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

type bulkStatusRequest struct {
	Entries    []models.AttendanceEntry `json:"entries"`
	StudentIDs []string                 `json:"student_ids"`
	Status     string                   `json:"status"`
}

// BulkStatus godoc
// @Summary Apply one status to a set of in-memory entries
// @Tags Attendance
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/bulk-status [post]
func (h *AttendanceHandler) BulkStatus(c *gin.Context) {
	var req bulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}

	entries, err := h.reconciler.ApplyBulkStatus(req.Entries, req.StudentIDs, models.AttendanceStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

type saveAttendanceBody struct {
	Date    string                        `json:"date"`
	Entries []service.SaveAttendanceEntry `json:"entries"`
}

// Save godoc
// @Summary Persist a full attendance snapshot for a course and date
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/attendance [post]
func (h *AttendanceHandler) Save(c *gin.Context) {
	var body saveAttendanceBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}

	sessionID, err := h.reconciler.Save(c.Request.Context(), service.SaveAttendanceRequest{
		CourseID: c.Param("id"),
		Date:     body.Date,
		Entries:  body.Entries,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	h.bustSummaries(c)
	response.JSON(c, http.StatusOK, gin.H{"session_id": sessionID}, nil)
}

// List godoc
// @Summary List attendance sessions for a course with optional filters
// @Tags Attendance
// @Produce json
// @Param id path string true "Course ID"
// @Param student query string false "Student name substring"
// @Param date query string false "Session date (YYYY-MM-DD)"
// @Param status query string false "Attendance status"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sessions, err := h.history.ListSessions(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	filter := models.SessionFilter{StudentName: c.Query("student")}
	date, err := parseDateParam(c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.Date = date
	if raw := c.Query("status"); raw != "" {
		status := models.AttendanceStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unrecognized attendance status"))
			return
		}
		filter.Status = &status
	}

	response.JSON(c, http.StatusOK, h.history.FilterSessions(sessions, filter), nil)
}

// Export godoc
// @Summary Export attendance sessions as CSV or PDF
// @Tags Attendance
// @Produce octet-stream
// @Param id path string true "Course ID"
// @Param format query string true "Export format (csv/pdf)"
// @Router /courses/{id}/attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := c.DefaultQuery("format", "csv")
	payload, contentType, err := h.history.ExportSessions(c.Request.Context(), c.Param("id"), format, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="attendance.`+format+`"`)
	c.Data(http.StatusOK, contentType, payload)
}

type updateEntryBody struct {
	Status string `json:"status"`
}

// UpdateEntry godoc
// @Summary Correct a single attendance entry's status
// @Tags Attendance
// @Accept json
// @Produce json
// @Param entryId path string true "Entry ID"
// @Success 204 "No Content"
// @Router /attendance/entries/{entryId} [patch]
func (h *AttendanceHandler) UpdateEntry(c *gin.Context) {
	var body updateEntryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}

	if err := h.history.UpdateEntryStatus(c.Request.Context(), c.Param("entryId"), body.Status); err != nil {
		response.Error(c, err)
		return
	}
	h.bustSummaries(c)
	response.NoContent(c)
}

// DeleteSession godoc
// @Summary Delete an attendance session and its entries
// @Tags Attendance
// @Param sessionId path string true "Session ID"
// @Success 204 "No Content"
// @Router /attendance/sessions/{sessionId} [delete]
func (h *AttendanceHandler) DeleteSession(c *gin.Context) {
	if err := h.history.DeleteSession(c.Request.Context(), c.Param("sessionId")); err != nil {
		response.Error(c, err)
		return
	}
	h.bustSummaries(c)
	response.NoContent(c)
}

func parseDateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	return &parsed, nil
}
