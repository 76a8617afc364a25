package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-checkin-api/internal/models"
	"github.com/noah-isme/academy-checkin-api/internal/service"
	appErrors "github.com/noah-isme/academy-checkin-api/pkg/errors"
	"github.com/noah-isme/academy-checkin-api/pkg/response"
)

// StudentHandler exposes student lookup endpoints for the kiosk and
// the admin roster.
type StudentHandler struct {
	resolver *service.ResolverService
	checkin  *service.CheckinService
}

// NewStudentHandler creates a new handler.
func NewStudentHandler(resolver *service.ResolverService, checkin *service.CheckinService) *StudentHandler {
	return &StudentHandler{resolver: resolver, checkin: checkin}
}

// List godoc
// @Summary List students
// @Description Paginated roster with optional filters
// @Tags Students
// @Produce json
// @Param search query string false "Filter by name or registration"
// @Param category query string false "Filter by category"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
	}
	if raw := c.Query("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.Active = &active
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	students, pagination, err := h.resolver.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Search godoc
// @Summary Search students
// @Description Free-text kiosk lookup over name, email, registration and document number
// @Tags Students
// @Produce json
// @Param q query string true "Search term, minimum 2 characters"
// @Param limit query int false "Maximum results"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/search [get]
func (h *StudentHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	results, err := h.resolver.Search(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// Get godoc
// @Summary Get student
// @Description Student detail with subscription context for the confirmation screen
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.resolver.ResolveByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Enroll a student
// @Tags Students
// @Accept json
// @Produce json
// @Param request body models.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req models.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	student, err := h.resolver.CreateStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Deactivate godoc
// @Summary Deactivate a student
// @Description Marks the student inactive; attendance history is retained
// @Tags Students
// @Param id path string true "Student ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id} [delete]
func (h *StudentHandler) Deactivate(c *gin.Context) {
	if err := h.resolver.DeactivateStudent(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Subscriptions godoc
// @Summary Student subscription history
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/subscriptions [get]
func (h *StudentHandler) Subscriptions(c *gin.Context) {
	subs, err := h.resolver.Subscriptions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subs, nil)
}

// AvailableCourses godoc
// @Summary Today's sessions for a student
// @Description Every session on today's calendar labeled with this student's check-in availability
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/available-courses [get]
func (h *StudentHandler) AvailableCourses(c *gin.Context) {
	availability, err := h.checkin.AvailableCourses(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, availability, nil)
}
