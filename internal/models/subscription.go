package models

import "time"

// SubscriptionStatus enumerates the commercial states of a subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionInactive  SubscriptionStatus = "INACTIVE"
	SubscriptionSuspended SubscriptionStatus = "SUSPENDED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
)

// Subscription is the commercial relationship authorising attendance.
// At most one ACTIVE subscription governs a student's eligibility.
type Subscription struct {
	ID        string             `db:"id" json:"id"`
	StudentID string             `db:"student_id" json:"student_id"`
	PlanID    string             `db:"plan_id" json:"plan_id"`
	PlanName  string             `db:"plan_name" json:"plan_name"`
	Status    SubscriptionStatus `db:"status" json:"status"`
	StartDate time.Time          `db:"start_date" json:"start_date"`
	EndDate   *time.Time         `db:"end_date" json:"end_date,omitempty"`
	Price     float64            `db:"price" json:"price"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
}
