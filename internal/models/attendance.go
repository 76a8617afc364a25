package models

import (
	"strings"
	"time"
)

// CheckinMethod identifies how a student was resolved at the kiosk.
// Closed set: free-form tags fragment reporting, so anything else is
// rejected at validation time.
type CheckinMethod string

const (
	MethodManual    CheckinMethod = "MANUAL"
	MethodQR        CheckinMethod = "QR"
	MethodBiometric CheckinMethod = "BIOMETRIC"
	MethodKiosk     CheckinMethod = "KIOSK"
)

// Valid returns true when the method is a supported value.
func (m CheckinMethod) Valid() bool {
	switch m {
	case MethodManual, MethodQR, MethodBiometric, MethodKiosk:
		return true
	default:
		return false
	}
}

// ParseCheckinMethod normalises a raw tag into a CheckinMethod.
func ParseCheckinMethod(raw string) CheckinMethod {
	return CheckinMethod(strings.ToUpper(strings.TrimSpace(raw)))
}

// CheckinMode distinguishes fully validated check-ins from the degraded
// basic-mode path that bypasses subscription validation.
type CheckinMode string

const (
	ModeFull  CheckinMode = "FULL"
	ModeBasic CheckinMode = "BASIC"
)

// AttendanceStatus marks punctuality of a recorded check-in.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceLate    AttendanceStatus = "LATE"
)

// AttendanceRecord is the durable artifact of a successful check-in.
// At most one record exists per (student, session, calendar day); the
// attendance table carries a unique index over those columns and the
// insert is conditional, so the constraint holds under concurrency.
type AttendanceRecord struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	SessionID    string           `db:"session_id" json:"session_id"`
	CourseID     string           `db:"course_id" json:"course_id"`
	Date         time.Time        `db:"date" json:"date"`
	LessonNumber int              `db:"lesson_number" json:"lesson_number"`
	Status       AttendanceStatus `db:"status" json:"status"`
	Mode         CheckinMode      `db:"mode" json:"mode"`
	Method       CheckinMethod    `db:"method" json:"method"`
	Notes        *string          `db:"notes" json:"notes,omitempty"`
	CheckedInAt  time.Time        `db:"checked_in_at" json:"checked_in_at"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}

// AttendanceDetail joins the record with display metadata.
type AttendanceDetail struct {
	AttendanceRecord
	StudentName  string `db:"student_name" json:"student_name"`
	Registration string `db:"registration" json:"registration"`
	CourseName   string `db:"course_name" json:"course_name"`
	SessionTitle string `db:"session_title" json:"session_title"`
}

// AttendanceFilter scopes history listings.
type AttendanceFilter struct {
	StudentID string
	SessionID string
	CourseID  string
	Status    *AttendanceStatus
	Method    *CheckinMethod
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

// AttendanceDayStats aggregates a single day of check-ins.
type AttendanceDayStats struct {
	Date      time.Time      `json:"date"`
	Total     int            `json:"total"`
	Present   int            `json:"present"`
	Late      int            `json:"late"`
	Basic     int            `json:"basic"`
	ByMethod  map[string]int `json:"by_method"`
	BySession map[string]int `json:"by_session"`
}

// CheckinRequest is the kiosk payload to record attendance.
type CheckinRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
	Method    string `json:"method" validate:"required"`
	Notes     string `json:"notes" validate:"max=500"`
}

// ValidateRequest is the dry-run eligibility payload.
type ValidateRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
}

// EligibilityReason carries the stable reason code for a decision.
type EligibilityReason string

const (
	ReasonEligible             EligibilityReason = "ELIGIBLE"
	ReasonEligibleBasic        EligibilityReason = "ELIGIBLE_BASIC"
	ReasonStudentNotFound      EligibilityReason = "STUDENT_NOT_FOUND"
	ReasonSessionNotFound      EligibilityReason = "SESSION_NOT_FOUND"
	ReasonSessionCancelled     EligibilityReason = "SESSION_CANCELLED"
	ReasonAlreadyCheckedIn     EligibilityReason = "ALREADY_CHECKED_IN"
	ReasonNoActiveSubscription EligibilityReason = "NO_ACTIVE_SUBSCRIPTION"
	ReasonOutsideWindow        EligibilityReason = "OUTSIDE_CHECKIN_WINDOW"
)

// EligibilityResult is the dry-run decision of the validator. When the
// student already checked in today the existing record is attached so
// the kiosk can display the original time.
type EligibilityResult struct {
	Eligible       bool              `json:"eligible"`
	Mode           CheckinMode       `json:"mode,omitempty"`
	Reason         EligibilityReason `json:"reason"`
	Message        string            `json:"message"`
	ExistingRecord *AttendanceDetail `json:"existing_record,omitempty"`
}

// CheckinConfirmation is the denormalized payload returned for the
// kiosk success screen.
type CheckinConfirmation struct {
	Record       AttendanceRecord `json:"record"`
	StudentName  string           `json:"student_name"`
	Registration string           `json:"registration"`
	CourseName   string           `json:"course_name"`
	LessonNumber int              `json:"lesson_number"`
	CheckedInAt  time.Time        `json:"checked_in_at"`
	Mode         CheckinMode      `json:"mode"`
}
