package models

import "time"

// Student represents a person enrolled at the academy.
type Student struct {
	ID             string    `db:"id" json:"id"`
	Registration   string    `db:"registration" json:"registration"`
	FullName       string    `db:"full_name" json:"full_name"`
	Email          string    `db:"email" json:"email"`
	DocumentNumber string    `db:"document_number" json:"document_number"`
	Category       string    `db:"category" json:"category"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// StudentSummary is the compact shape returned by kiosk search.
type StudentSummary struct {
	ID           string  `db:"id" json:"id"`
	Registration string  `db:"registration" json:"registration"`
	FullName     string  `db:"full_name" json:"name"`
	Email        string  `db:"email" json:"email"`
	FacePhotoURL *string `db:"face_photo_url" json:"face_photo_url,omitempty"`
	// MatchedBy tells the kiosk which field satisfied the query.
	MatchedBy string `db:"-" json:"matched_by,omitempty"`
}

// StudentDetail extends Student with subscription context for the
// confirmation screen.
type StudentDetail struct {
	Student
	FacePhotoURL           *string    `db:"face_photo_url" json:"face_photo_url,omitempty"`
	ActiveSubscriptionID   *string    `db:"active_subscription_id" json:"active_subscription_id,omitempty"`
	ActivePlanName         *string    `db:"active_plan_name" json:"active_plan_name,omitempty"`
	ActiveSubscriptionEnds *time.Time `db:"active_subscription_ends" json:"active_subscription_ends,omitempty"`
}

// CreateStudentRequest is the admin enrollment payload.
type CreateStudentRequest struct {
	Registration   string `json:"registration" validate:"required"`
	FullName       string `json:"full_name" validate:"required"`
	Email          string `json:"email" validate:"omitempty,email"`
	DocumentNumber string `json:"document_number"`
	Category       string `json:"category"`
}

// StudentFilter captures listing parameters.
type StudentFilter struct {
	Search   string
	Category string
	Active   *bool
	Page     int
	PageSize int
}
