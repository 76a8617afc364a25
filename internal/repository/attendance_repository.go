package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-checkin-api/internal/models"
)

// AttendanceRepository persists check-in records. Duplicate protection
// lives in the database: attendance carries a unique index over
// (student_id, session_id, date) and Insert races resolve there, not in
// application code.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Insert records a check-in. The insert is conditional: on a duplicate
// (student_id, session_id, date) it inserts nothing and returns
// sql.ErrNoRows, which callers treat as the authoritative
// already-checked-in signal regardless of any earlier read.
func (r *AttendanceRepository) Insert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CheckedInAt.IsZero() {
		record.CheckedInAt = now
	}
	record.CreatedAt = now

	const query = `INSERT INTO attendance (id, student_id, session_id, course_id, date, lesson_number, status, mode, method, notes, checked_in_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (student_id, session_id, date) DO NOTHING
        RETURNING id, student_id, session_id, course_id, date, lesson_number, status, mode, method, notes, checked_in_at, created_at`

	var inserted models.AttendanceRecord
	err := r.db.GetContext(ctx, &inserted, query,
		record.ID, record.StudentID, record.SessionID, record.CourseID,
		record.Date.Format("2006-01-02"), record.LessonNumber, record.Status,
		record.Mode, record.Method, record.Notes, record.CheckedInAt, record.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &inserted, nil
}

// FindForDay returns the student's record for a session on the given
// day, or sql.ErrNoRows when none exists.
func (r *AttendanceRepository) FindForDay(ctx context.Context, studentID, sessionID string, day time.Time) (*models.AttendanceRecord, error) {
	const query = `SELECT id, student_id, session_id, course_id, date, lesson_number, status, mode, method, notes, checked_in_at, created_at
        FROM attendance
        WHERE student_id = $1 AND session_id = $2 AND date = $3`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, sessionID, day.Format("2006-01-02")); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListForDay returns all check-ins recorded on the given day, newest first.
func (r *AttendanceRepository) ListForDay(ctx context.Context, day time.Time) ([]models.AttendanceDetail, error) {
	const query = `SELECT a.id, a.student_id, a.session_id, a.course_id, a.date, a.lesson_number, a.status, a.mode, a.method, a.notes, a.checked_in_at, a.created_at,
        s.full_name AS student_name, s.registration, c.name AS course_name, se.title AS session_title
        FROM attendance a
        JOIN students s ON s.id = a.student_id
        JOIN sessions se ON se.id = a.session_id
        JOIN courses c ON c.id = a.course_id
        WHERE a.date = $1
        ORDER BY a.checked_in_at DESC`
	var rows []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &rows, query, day.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list attendance for day: %w", err)
	}
	return rows, nil
}

// SessionCounts returns how many students have checked in per session on
// the given day.
func (r *AttendanceRepository) SessionCounts(ctx context.Context, day time.Time) (map[string]int, error) {
	const query = `SELECT session_id, COUNT(*) AS total FROM attendance WHERE date = $1 GROUP BY session_id`
	rows, err := r.db.QueryxContext(ctx, query, day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("count session check-ins: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var sessionID string
		var total int
		if err := rows.Scan(&sessionID, &total); err != nil {
			return nil, fmt.Errorf("scan session count: %w", err)
		}
		counts[sessionID] = total
	}
	return counts, rows.Err()
}

// List returns attendance history matching the filter, with a total for
// pagination.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	base := `FROM attendance a
JOIN students s ON s.id = a.student_id
JOIN sessions se ON se.id = a.session_id
JOIN courses c ON c.id = a.course_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.SessionID != "" {
		conditions = append(conditions, fmt.Sprintf("a.session_id = $%d", len(args)+1))
		args = append(args, filter.SessionID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("a.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Method != nil {
		conditions = append(conditions, fmt.Sprintf("a.method = $%d", len(args)+1))
		args = append(args, *filter.Method)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d", len(args)+1))
		args = append(args, filter.DateFrom.Format("2006-01-02"))
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("a.date <= $%d", len(args)+1))
		args = append(args, filter.DateTo.Format("2006-01-02"))
	}

	whereClause := strings.Join(conditions, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.student_id, a.session_id, a.course_id, a.date, a.lesson_number, a.status, a.mode, a.method, a.notes, a.checked_in_at, a.created_at,
        s.full_name AS student_name, s.registration, c.name AS course_name, se.title AS session_title
        %s WHERE %s ORDER BY a.checked_in_at DESC LIMIT %d OFFSET %d`, base, whereClause, size, offset)

	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return records, total, nil
}

// DayStats aggregates the day's check-ins by status, method and mode.
func (r *AttendanceRepository) DayStats(ctx context.Context, day time.Time) (*models.AttendanceDayStats, error) {
	const query = `SELECT status, method, mode, COUNT(*) AS total FROM attendance WHERE date = $1 GROUP BY status, method, mode`
	rows, err := r.db.QueryxContext(ctx, query, day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("attendance day stats: %w", err)
	}
	defer rows.Close()

	stats := &models.AttendanceDayStats{
		Date:      day,
		ByMethod:  make(map[string]int),
		BySession: make(map[string]int),
	}
	for rows.Next() {
		var status models.AttendanceStatus
		var method models.CheckinMethod
		var mode models.CheckinMode
		var total int
		if err := rows.Scan(&status, &method, &mode, &total); err != nil {
			return nil, fmt.Errorf("scan day stats: %w", err)
		}
		stats.Total += total
		switch status {
		case models.AttendancePresent:
			stats.Present += total
		case models.AttendanceLate:
			stats.Late += total
		}
		if mode == models.ModeBasic {
			stats.Basic += total
		}
		stats.ByMethod[string(method)] += total
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sessionCounts, err := r.SessionCounts(ctx, day)
	if err != nil {
		return nil, err
	}
	stats.BySession = sessionCounts
	return stats, nil
}

// CountByStudentAndCourse returns how many lessons the student has
// attended in a course, used for progress reporting.
func (r *AttendanceRepository) CountByStudentAndCourse(ctx context.Context, studentID, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance WHERE student_id = $1 AND course_id = $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, studentID, courseID); err != nil {
		return 0, fmt.Errorf("count attendance by course: %w", err)
	}
	return total, nil
}
