package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-checkin-api/internal/models"
)

// SessionRepository reads class sessions and their course context.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID fetches a session joined with its course.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	const query = `SELECT se.id, se.course_id, c.name AS course_name, se.title, se.date, se.start_time, se.end_time, se.capacity, se.status,
        c.start_date AS course_start, c.total_lessons
        FROM sessions se
        JOIN courses c ON c.id = se.course_id
        WHERE se.id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListForDay returns all non-cancelled sessions scheduled on the given day.
func (r *SessionRepository) ListForDay(ctx context.Context, day time.Time) ([]models.Session, error) {
	const query = `SELECT se.id, se.course_id, c.name AS course_name, se.title, se.date, se.start_time, se.end_time, se.capacity, se.status,
        c.start_date AS course_start, c.total_lessons
        FROM sessions se
        JOIN courses c ON c.id = se.course_id
        WHERE se.date = $1 AND se.status <> $2
        ORDER BY se.start_time ASC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, day.Format("2006-01-02"), models.SessionCancelled); err != nil {
		return nil, fmt.Errorf("list sessions for day: %w", err)
	}
	return sessions, nil
}
