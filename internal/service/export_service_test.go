package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-checkin-api/internal/models"
	appErrors "github.com/noah-isme/academy-checkin-api/pkg/errors"
)

type exportRepoStub struct {
	records []models.AttendanceDetail
}

func (s *exportRepoStub) ListForDay(ctx context.Context, day time.Time) ([]models.AttendanceDetail, error) {
	return s.records, nil
}

func sampleDetail() models.AttendanceDetail {
	return models.AttendanceDetail{
		AttendanceRecord: models.AttendanceRecord{
			LessonNumber: 5,
			Status:       models.AttendancePresent,
			Mode:         models.ModeFull,
			Method:       models.MethodBiometric,
			CheckedInAt:  time.Date(2026, 9, 1, 19, 2, 11, 0, time.UTC),
		},
		StudentName:  "Ana Lima",
		Registration: "R-100",
		CourseName:   "Jiu-Jitsu Fundamentals",
	}
}

func TestDailySheetCSV(t *testing.T) {
	svc := NewExportService(&exportRepoStub{records: []models.AttendanceDetail{sampleDetail()}}, nil)
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	file, err := svc.DailySheet(context.Background(), day, "csv")
	require.NoError(t, err)
	assert.Equal(t, "attendance-2026-09-01.csv", file.FileName)
	assert.Equal(t, "text/csv", file.ContentType)

	content := string(file.Content)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Registration")
	assert.Contains(t, lines[1], "R-100")
	assert.Contains(t, lines[1], "Ana Lima")
	assert.Contains(t, lines[1], "BIOMETRIC")
	assert.Contains(t, lines[1], "19:02:11")
}

func TestDailySheetDefaultsToCSV(t *testing.T) {
	svc := NewExportService(&exportRepoStub{}, nil)

	file, err := svc.DailySheet(context.Background(), time.Now().UTC(), "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
}

func TestDailySheetPDF(t *testing.T) {
	svc := NewExportService(&exportRepoStub{records: []models.AttendanceDetail{sampleDetail()}}, nil)

	file, err := svc.DailySheet(context.Background(), time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.NotEmpty(t, file.Content)
	assert.True(t, strings.HasPrefix(string(file.Content), "%PDF"))
}

func TestDailySheetUnknownFormat(t *testing.T) {
	svc := NewExportService(&exportRepoStub{}, nil)

	_, err := svc.DailySheet(context.Background(), time.Now().UTC(), "xlsx")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
