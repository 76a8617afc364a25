package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-checkin-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func attendanceColumns() []string {
	return []string{"id", "student_id", "session_id", "course_id", "date", "lesson_number", "status", "mode", "method", "notes", "checked_in_at", "created_at"}
}

func TestAttendanceRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(attendanceColumns()).
		AddRow("att-1", "stu-1", "ses-1", "crs-1", day, 5, models.AttendancePresent, models.ModeFull, models.MethodBiometric, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance")).
		WillReturnRows(rows)

	record, err := repo.Insert(context.Background(), &models.AttendanceRecord{
		StudentID: "stu-1",
		SessionID: "ses-1",
		CourseID:  "crs-1",
		Date:      day,
		Status:    models.AttendancePresent,
		Mode:      models.ModeFull,
		Method:    models.MethodBiometric,
	})
	require.NoError(t, err)
	assert.Equal(t, "att-1", record.ID)
	assert.Equal(t, models.MethodBiometric, record.Method)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryInsertConflictReturnsNoRows(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	// ON CONFLICT DO NOTHING yields an empty RETURNING set; the caller
	// sees sql.ErrNoRows and treats it as already checked in.
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendance")).
		WillReturnRows(sqlmock.NewRows(attendanceColumns()))

	_, err := repo.Insert(context.Background(), &models.AttendanceRecord{
		StudentID: "stu-1",
		SessionID: "ses-1",
		CourseID:  "crs-1",
		Date:      time.Now().UTC(),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindForDay(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	rows := sqlmock.NewRows(attendanceColumns()).
		AddRow("att-1", "stu-1", "ses-1", "crs-1", day, 3, models.AttendanceLate, models.ModeBasic, models.MethodManual, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance")).
		WithArgs("stu-1", "ses-1", "2026-09-01").
		WillReturnRows(rows)

	record, err := repo.FindForDay(context.Background(), "stu-1", "ses-1", day)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceLate, record.Status)
	assert.Equal(t, models.ModeBasic, record.Mode)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositorySessionCounts(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"session_id", "total"}).
		AddRow("ses-1", 12).
		AddRow("ses-2", 4)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT session_id, COUNT(*) AS total FROM attendance WHERE date = $1 GROUP BY session_id")).
		WithArgs("2026-09-01").
		WillReturnRows(rows)

	counts, err := repo.SessionCounts(context.Background(), time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ses-1": 12, "ses-2": 4}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryDayStats(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	statRows := sqlmock.NewRows([]string{"status", "method", "mode", "total"}).
		AddRow(models.AttendancePresent, models.MethodBiometric, models.ModeFull, 10).
		AddRow(models.AttendanceLate, models.MethodManual, models.ModeBasic, 3)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY status, method, mode")).
		WithArgs("2026-09-01").
		WillReturnRows(statRows)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY session_id")).
		WithArgs("2026-09-01").
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "total"}).AddRow("ses-1", 13))

	stats, err := repo.DayStats(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, 13, stats.Total)
	assert.Equal(t, 10, stats.Present)
	assert.Equal(t, 3, stats.Late)
	assert.Equal(t, 3, stats.Basic)
	assert.Equal(t, 10, stats.ByMethod["BIOMETRIC"])
	assert.Equal(t, 3, stats.ByMethod["MANUAL"])
	assert.Equal(t, 13, stats.BySession["ses-1"])
	require.NoError(t, mock.ExpectationsWereMet())
}
