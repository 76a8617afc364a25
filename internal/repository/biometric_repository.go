package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academy-checkin-api/internal/models"
)

// BiometricRepository stores face embeddings and the attempt audit log.
// Descriptors persist as float8[] columns via pq array support.
type BiometricRepository struct {
	db *sqlx.DB
}

// NewBiometricRepository constructs a BiometricRepository.
func NewBiometricRepository(db *sqlx.DB) *BiometricRepository {
	return &BiometricRepository{db: db}
}

// ListActiveEmbeddings returns one entry per enrolled active student,
// the full table the matcher scans.
func (r *BiometricRepository) ListActiveEmbeddings(ctx context.Context) ([]models.EmbeddingEntry, error) {
	const query = `SELECT fe.student_id, s.full_name AS student_name, s.registration, fe.descriptor, fe.photo_url
        FROM face_embeddings fe
        JOIN students s ON s.id = fe.student_id
        WHERE fe.active AND s.active
        ORDER BY s.registration ASC`
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list embeddings: %w", err)
	}
	defer rows.Close()

	var entries []models.EmbeddingEntry
	for rows.Next() {
		var entry models.EmbeddingEntry
		var descriptor pq.Float64Array
		if err := rows.Scan(&entry.StudentID, &entry.StudentName, &entry.Registration, &descriptor, &entry.PhotoURL); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		entry.Descriptor = []float64(descriptor)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// FindByStudent returns the active embedding for one student, or
// sql.ErrNoRows when the student is not enrolled.
func (r *BiometricRepository) FindByStudent(ctx context.Context, studentID string) (*models.FaceEmbedding, error) {
	const query = `SELECT student_id, descriptor, photo_url, quality_score, active, enrolled_at, updated_at
        FROM face_embeddings
        WHERE student_id = $1 AND active`
	var embedding models.FaceEmbedding
	var descriptor pq.Float64Array
	err := r.db.QueryRowxContext(ctx, query, studentID).Scan(
		&embedding.StudentID, &descriptor, &embedding.PhotoURL, &embedding.QualityScore,
		&embedding.Active, &embedding.EnrolledAt, &embedding.UpdatedAt)
	if err != nil {
		return nil, err
	}
	embedding.Descriptor = []float64(descriptor)
	return &embedding, nil
}

// Upsert stores or replaces a student's embedding. Re-enrolling a
// student overwrites the previous descriptor in place.
func (r *BiometricRepository) Upsert(ctx context.Context, embedding *models.FaceEmbedding) error {
	now := time.Now().UTC()
	embedding.UpdatedAt = now
	if embedding.EnrolledAt.IsZero() {
		embedding.EnrolledAt = now
	}

	const query = `INSERT INTO face_embeddings (student_id, descriptor, photo_url, quality_score, active, enrolled_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (student_id) DO UPDATE SET
            descriptor = EXCLUDED.descriptor,
            photo_url = EXCLUDED.photo_url,
            quality_score = EXCLUDED.quality_score,
            active = EXCLUDED.active,
            updated_at = EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		embedding.StudentID, pq.Float64Array(embedding.Descriptor), embedding.PhotoURL,
		embedding.QualityScore, embedding.Active, embedding.EnrolledAt, embedding.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// Deactivate removes a student's embedding from matching without
// deleting the enrollment history.
func (r *BiometricRepository) Deactivate(ctx context.Context, studentID string) error {
	const query = `UPDATE face_embeddings SET active = false, updated_at = $2 WHERE student_id = $1`
	if _, err := r.db.ExecContext(ctx, query, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate embedding: %w", err)
	}
	return nil
}

// InsertAttempt appends one row to the match audit log.
func (r *BiometricRepository) InsertAttempt(ctx context.Context, attempt *models.BiometricAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.AttemptedAt.IsZero() {
		attempt.AttemptedAt = time.Now().UTC()
	}
	const query = `INSERT INTO biometric_attempts (id, student_id, detected_student_id, similarity, confidence, method, result, error_message, ip_address, user_agent, attempted_at)
        VALUES (:id, :student_id, :detected_student_id, :similarity, :confidence, :method, :result, :error_message, :ip_address, :user_agent, :attempted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("insert biometric attempt: %w", err)
	}
	return nil
}

// ListAttempts returns the most recent audit rows, newest first.
func (r *BiometricRepository) ListAttempts(ctx context.Context, limit int) ([]models.BiometricAttempt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, student_id, detected_student_id, similarity, confidence, method, result, error_message, ip_address, user_agent, attempted_at
        FROM biometric_attempts
        ORDER BY attempted_at DESC
        LIMIT %d`, limit)
	var attempts []models.BiometricAttempt
	if err := r.db.SelectContext(ctx, &attempts, query); err != nil {
		return nil, fmt.Errorf("list biometric attempts: %w", err)
	}
	return attempts, nil
}
