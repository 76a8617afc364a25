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

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base := `FROM students s
LEFT JOIN face_embeddings fe ON fe.student_id = s.id AND fe.active
LEFT JOIN subscriptions sub ON sub.student_id = s.id AND sub.status = $1`
	args := []interface{}{models.SubscriptionActive}
	conditions := []string{"1=1"}

	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("s.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.full_name) LIKE $%d OR LOWER(s.registration) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
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

	query := fmt.Sprintf(`SELECT s.id, s.registration, s.full_name, s.email, s.document_number, s.category, s.active, s.created_at, s.updated_at,
        fe.photo_url AS face_photo_url, sub.id AS active_subscription_id, sub.plan_name AS active_plan_name, sub.end_date AS active_subscription_ends
        %s WHERE %s ORDER BY s.full_name ASC LIMIT %d OFFSET %d`, base, whereClause, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT s.id) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// Search performs the kiosk substring lookup over name, email,
// registration and normalized document digits. Callers validate the
// minimum query length; zero rows is a normal outcome.
func (r *StudentRepository) Search(ctx context.Context, query string, digits string, limit int) ([]models.StudentSummary, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	term := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	conditions := []string{
		"LOWER(s.full_name) LIKE $1",
		"LOWER(s.email) LIKE $1",
		"LOWER(s.registration) LIKE $1",
	}
	args := []interface{}{term}
	if digits != "" {
		conditions = append(conditions, fmt.Sprintf("regexp_replace(s.document_number, '\\D', '', 'g') LIKE $%d", len(args)+1))
		args = append(args, "%"+digits+"%")
	}

	sqlQuery := fmt.Sprintf(`SELECT s.id, s.registration, s.full_name, s.email, fe.photo_url AS face_photo_url
        FROM students s
        LEFT JOIN face_embeddings fe ON fe.student_id = s.id AND fe.active
        WHERE s.active AND (%s)
        ORDER BY s.registration ASC, s.full_name ASC
        LIMIT %d`, strings.Join(conditions, " OR "), limit)

	var rows []models.StudentSummary
	if err := r.db.SelectContext(ctx, &rows, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("search students: %w", err)
	}
	return rows, nil
}

// FindByID fetches a student with subscription context.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	query := `SELECT s.id, s.registration, s.full_name, s.email, s.document_number, s.category, s.active, s.created_at, s.updated_at,
        fe.photo_url AS face_photo_url, sub.id AS active_subscription_id, sub.plan_name AS active_plan_name, sub.end_date AS active_subscription_ends
        FROM students s
        LEFT JOIN face_embeddings fe ON fe.student_id = s.id AND fe.active
        LEFT JOIN subscriptions sub ON sub.student_id = s.id AND sub.status = $2
        WHERE s.id = $1`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail, query, id, models.SubscriptionActive); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, registration, full_name, email, document_number, category, active, created_at, updated_at)
        VALUES (:id, :registration, :full_name, :email, :document_number, :category, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Deactivate marks a student inactive. Dropouts are never hard-deleted.
func (r *StudentRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE students SET active = false, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}
