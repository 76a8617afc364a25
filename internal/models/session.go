package models

import "time"

// SessionStatus enumerates the lifecycle of a class session.
type SessionStatus string

const (
	SessionScheduled  SessionStatus = "SCHEDULED"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionCancelled  SessionStatus = "CANCELLED"
)

// Session is a single scheduled, datable training occurrence of a course.
// Created by scheduling; the check-in pipeline consumes it read-only.
type Session struct {
	ID           string        `db:"id" json:"id"`
	CourseID     string        `db:"course_id" json:"course_id"`
	CourseName   string        `db:"course_name" json:"course_name"`
	Title        string        `db:"title" json:"title"`
	Date         time.Time     `db:"date" json:"date"`
	StartTime    time.Time     `db:"start_time" json:"start_time"`
	EndTime      time.Time     `db:"end_time" json:"end_time"`
	Capacity     int           `db:"capacity" json:"capacity"`
	Status       SessionStatus `db:"status" json:"status"`
	CourseStart  time.Time     `db:"course_start" json:"course_start"`
	TotalLessons int           `db:"total_lessons" json:"total_lessons"`
}

// CourseAvailabilityStatus labels a session in the kiosk's today view.
type CourseAvailabilityStatus string

const (
	AvailabilityCheckedIn CourseAvailabilityStatus = "CHECKED_IN"
	AvailabilityAvailable CourseAvailabilityStatus = "AVAILABLE"
	AvailabilityNotYet    CourseAvailabilityStatus = "NOT_YET"
	AvailabilityExpired   CourseAvailabilityStatus = "EXPIRED"
)

// CourseAvailability is one row of the per-student today view.
type CourseAvailability struct {
	SessionID       string                   `json:"session_id"`
	CourseID        string                   `json:"course_id"`
	Name            string                   `json:"name"`
	StartTime       time.Time                `json:"start_time"`
	EndTime         time.Time                `json:"end_time"`
	Capacity        int                      `json:"capacity"`
	CheckedIn       int                      `json:"checked_in"`
	AttendedLessons int                      `json:"attended_lessons"`
	HasCheckedIn    bool                     `json:"has_checked_in"`
	CanCheckIn      bool                     `json:"can_check_in"`
	Status          CourseAvailabilityStatus `json:"status"`
}
