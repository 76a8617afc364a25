package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-checkin-api/internal/service"
	appErrors "github.com/noah-isme/academy-checkin-api/pkg/errors"
	"github.com/noah-isme/academy-checkin-api/pkg/response"
)

// ReportHandler streams rendered attendance sheets.
type ReportHandler struct {
	exports *service.ExportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(exports *service.ExportService) *ReportHandler {
	return &ReportHandler{exports: exports}
}

// Export godoc
// @Summary Export the daily attendance sheet
// @Description Render the day's check-ins as CSV or PDF
// @Tags Reports
// @Produce octet-stream
// @Param date query string false "Day to export (YYYY-MM-DD), defaults to today"
// @Param format query string false "csv or pdf, defaults to csv"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /attendance/report/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		day = parsed
	}

	file, err := h.exports.DailySheet(c.Request.Context(), day, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+file.FileName+`"`)
	c.Data(200, file.ContentType, file.Content)
}
