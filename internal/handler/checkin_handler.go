package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-checkin-api/internal/models"
	"github.com/noah-isme/academy-checkin-api/internal/service"
	appErrors "github.com/noah-isme/academy-checkin-api/pkg/errors"
	"github.com/noah-isme/academy-checkin-api/pkg/response"
)

// CheckinHandler exposes the attendance pipeline endpoints.
type CheckinHandler struct {
	checkin *service.CheckinService
}

// NewCheckinHandler creates a new handler.
func NewCheckinHandler(checkin *service.CheckinService) *CheckinHandler {
	return &CheckinHandler{checkin: checkin}
}

// CheckIn godoc
// @Summary Record a check-in
// @Description Validate eligibility and record attendance for a session
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.CheckinRequest true "Check-in payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/checkin [post]
func (h *CheckinHandler) CheckIn(c *gin.Context) {
	var req models.CheckinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}

	confirmation, err := h.checkin.CheckIn(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, confirmation)
}

// Validate godoc
// @Summary Dry-run eligibility check
// @Description Run the full eligibility decision without recording anything
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.ValidateRequest true "Student and session"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance/validate [post]
func (h *CheckinHandler) Validate(c *gin.Context) {
	var req models.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid validate payload"))
		return
	}
	if req.StudentID == "" || req.SessionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student_id and session_id are required"))
		return
	}

	decision, err := h.checkin.Validate(c.Request.Context(), req.StudentID, req.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}

// Today godoc
// @Summary Today's check-ins
// @Tags Attendance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /attendance/today [get]
func (h *CheckinHandler) Today(c *gin.Context) {
	records, err := h.checkin.Today(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// History godoc
// @Summary Attendance history
// @Description Paginated attendance records with optional filters
// @Tags Attendance
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param course_id query string false "Filter by course"
// @Param method query string false "Filter by check-in method"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/history [get]
func (h *CheckinHandler) History(c *gin.Context) {
	filter := models.AttendanceFilter{
		StudentID: c.Query("student_id"),
		CourseID:  c.Query("course_id"),
	}
	if raw := c.Query("method"); raw != "" {
		method := models.ParseCheckinMethod(raw)
		if !method.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown check-in method: "+raw))
			return
		}
		filter.Method = &method
	}
	if raw := c.Query("date_from"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateFrom = &parsed
		} else {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date_from must be YYYY-MM-DD"))
			return
		}
	}
	if raw := c.Query("date_to"); raw != "" {
		if parsed, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateTo = &parsed
		} else {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date_to must be YYYY-MM-DD"))
			return
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	records, pagination, err := h.checkin.History(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Stats godoc
// @Summary Daily attendance stats
// @Tags Attendance
// @Produce json
// @Param date query string false "Day to aggregate (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/stats [get]
func (h *CheckinHandler) Stats(c *gin.Context) {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		day = parsed
	}

	stats, err := h.checkin.Stats(c.Request.Context(), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
