package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-checkin-api/internal/models"
	"github.com/noah-isme/academy-checkin-api/internal/service"
	appErrors "github.com/noah-isme/academy-checkin-api/pkg/errors"
	"github.com/noah-isme/academy-checkin-api/pkg/response"
)

// BiometricHandler exposes face matching, enrollment and the camera
// error triage endpoint.
type BiometricHandler struct {
	matcher *service.MatcherService
}

// NewBiometricHandler creates a new handler.
func NewBiometricHandler(matcher *service.MatcherService) *BiometricHandler {
	return &BiometricHandler{matcher: matcher}
}

// ListEmbeddings godoc
// @Summary List enrolled embeddings
// @Description Embedding table for kiosk-side matching, one row per enrolled active student
// @Tags Biometric
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /biometric/students/embeddings [get]
func (h *BiometricHandler) ListEmbeddings(c *gin.Context) {
	entries, err := h.matcher.ListEmbeddings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Match godoc
// @Summary Match a probe descriptor
// @Description Identify the closest enrolled student for a captured face descriptor
// @Tags Biometric
// @Accept json
// @Produce json
// @Param payload body models.MatchRequest true "Probe descriptor"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /biometric/match [post]
func (h *BiometricHandler) Match(c *gin.Context) {
	var req models.MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid match payload"))
		return
	}
	req.IPAddress = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	result, retryAfter, err := h.matcher.FindMatch(c.Request.Context(), req)
	if err != nil {
		if appErrors.Is(err, appErrors.ErrRateLimited) && retryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SaveEmbedding godoc
// @Summary Enroll or replace a student's embedding
// @Tags Biometric
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body models.EmbeddingUpload true "Reference descriptor"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /biometric/students/{id}/face-embedding [post]
func (h *BiometricHandler) SaveEmbedding(c *gin.Context) {
	var upload models.EmbeddingUpload
	if err := c.ShouldBindJSON(&upload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid embedding payload"))
		return
	}

	embedding, err := h.matcher.SaveEmbedding(c.Request.Context(), c.Param("id"), upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, embedding, nil)
}

// GetEmbedding godoc
// @Summary Get a student's enrolled embedding
// @Tags Biometric
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /biometric/students/{id}/face-embedding [get]
func (h *BiometricHandler) GetEmbedding(c *gin.Context) {
	embedding, err := h.matcher.GetEmbedding(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, embedding, nil)
}

// RemoveEmbedding godoc
// @Summary Withdraw a student from matching
// @Tags Biometric
// @Param id path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Security BearerAuth
// @Router /biometric/students/{id}/face-embedding [delete]
func (h *BiometricHandler) RemoveEmbedding(c *gin.Context) {
	if err := h.matcher.RemoveEmbedding(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ReportAttempt godoc
// @Summary Log a kiosk match attempt
// @Description Best-effort audit of a client-side match attempt; persistence failures never fail the request
// @Tags Biometric
// @Accept json
// @Produce json
// @Param payload body models.AttemptReport true "Attempt report"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /biometric/attempts [post]
func (h *BiometricHandler) ReportAttempt(c *gin.Context) {
	var report models.AttemptReport
	if err := c.ShouldBindJSON(&report); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attempt payload"))
		return
	}
	report.IPAddress = c.ClientIP()
	report.UserAgent = c.GetHeader("User-Agent")

	if err := h.matcher.ReportAttempt(c.Request.Context(), report); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"logged": true}, nil)
}

// Attempts godoc
// @Summary Recent biometric attempts
// @Description Audit log of match attempts, newest first
// @Tags Biometric
// @Produce json
// @Param limit query int false "Maximum rows"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /biometric/attempts [get]
func (h *BiometricHandler) Attempts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	attempts, err := h.matcher.RecentAttempts(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempts, nil)
}

// CameraError godoc
// @Summary Classify a kiosk camera failure
// @Description Map a browser getUserMedia error onto the stable camera error taxonomy
// @Tags Kiosk
// @Accept json
// @Produce json
// @Param payload body models.CameraErrorReport true "Camera failure report"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /kiosk/camera-error [post]
func (h *BiometricHandler) CameraError(c *gin.Context) {
	var report models.CameraErrorReport
	if err := c.ShouldBindJSON(&report); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid camera error payload"))
		return
	}
	report.UserAgent = c.GetHeader("User-Agent")

	response.JSON(c, http.StatusOK, service.ClassifyCameraError(report), nil)
}
