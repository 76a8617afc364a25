package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academy-checkin-api/internal/models"
	appErrors "github.com/noah-isme/academy-checkin-api/pkg/errors"
	"github.com/noah-isme/academy-checkin-api/pkg/export"
)

type exportAttendanceRepository interface {
	ListForDay(ctx context.Context, day time.Time) ([]models.AttendanceDetail, error)
}

// ExportFile is a rendered attendance sheet ready to stream.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportService renders the day's attendance sheet as CSV or PDF.
type ExportService struct {
	attendance exportAttendanceRepository
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	logger     *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(attendance exportAttendanceRepository, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		attendance: attendance,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
	}
}

// DailySheet renders the attendance sheet for one day. Format is "csv"
// or "pdf".
func (s *ExportService) DailySheet(ctx context.Context, day time.Time, format string) (*ExportFile, error) {
	records, err := s.attendance.ListForDay(ctx, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	dataset := export.Dataset{
		Headers: []string{"Registration", "Student", "Course", "Lesson", "Status", "Mode", "Method", "Checked In At"},
	}
	for _, record := range records {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Registration":  record.Registration,
			"Student":       record.StudentName,
			"Course":        record.CourseName,
			"Lesson":        fmt.Sprintf("%d", record.LessonNumber),
			"Status":        string(record.Status),
			"Mode":          string(record.Mode),
			"Method":        string(record.Method),
			"Checked In At": record.CheckedInAt.Format("15:04:05"),
		})
	}

	dateLabel := day.Format("2006-01-02")
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportFile{
			FileName:    fmt.Sprintf("attendance-%s.csv", dateLabel),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case "pdf":
		content, err := s.pdf.Render(dataset, fmt.Sprintf("Attendance %s", dateLabel))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportFile{
			FileName:    fmt.Sprintf("attendance-%s.pdf", dateLabel),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format: "+format)
	}
}
