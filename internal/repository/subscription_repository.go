package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-checkin-api/internal/models"
)

// SubscriptionRepository reads subscription state for eligibility checks.
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository constructs a SubscriptionRepository.
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindActiveByStudent returns the student's current active subscription.
// An open-ended plan has NULL end_date and still counts as active.
// sql.ErrNoRows means the student has no active plan.
func (r *SubscriptionRepository) FindActiveByStudent(ctx context.Context, studentID string) (*models.Subscription, error) {
	const query = `SELECT id, student_id, plan_name, status, start_date, end_date, created_at, updated_at
        FROM subscriptions
        WHERE student_id = $1 AND status = $2 AND start_date <= NOW() AND (end_date IS NULL OR end_date >= NOW())
        ORDER BY end_date DESC NULLS FIRST
        LIMIT 1`
	var sub models.Subscription
	if err := r.db.GetContext(ctx, &sub, query, studentID, models.SubscriptionActive); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByStudent returns all subscriptions a student has ever held.
func (r *SubscriptionRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Subscription, error) {
	const query = `SELECT id, student_id, plan_name, status, start_date, end_date, created_at, updated_at
        FROM subscriptions
        WHERE student_id = $1
        ORDER BY start_date DESC`
	var subs []models.Subscription
	if err := r.db.SelectContext(ctx, &subs, query, studentID); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}
