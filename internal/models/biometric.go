package models

import "time"

// FaceEmbedding is a biometric reference vector bound 1:1 to a student.
// Enrolled out of band; the matcher consumes it read-only.
type FaceEmbedding struct {
	StudentID    string    `db:"student_id" json:"student_id"`
	Descriptor   []float64 `db:"-" json:"embedding"`
	PhotoURL     string    `db:"photo_url" json:"face_photo_url"`
	QualityScore float64   `db:"quality_score" json:"quality_score"`
	Active       bool      `db:"active" json:"active"`
	EnrolledAt   time.Time `db:"enrolled_at" json:"enrolled_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// EmbeddingEntry is the shape served to the kiosk for client-side
// matching: one row per enrolled student.
type EmbeddingEntry struct {
	StudentID    string    `json:"id"`
	StudentName  string    `json:"name"`
	Registration string    `json:"registration"`
	Descriptor   []float64 `json:"embedding"`
	PhotoURL     string    `json:"face_photo_url"`
}

// MatchRequest carries a probe descriptor captured at the kiosk.
// StudentID is the claimed identity when the kiosk is in confirm mode
// and keys the per-student attempt throttle. Threshold optionally
// overrides the configured similarity floor for this call.
type MatchRequest struct {
	Descriptor []float64 `json:"descriptor" validate:"required,min=1"`
	StudentID  *string   `json:"student_id,omitempty"`
	Threshold  *float64  `json:"threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	IPAddress  string    `json:"-"`
	UserAgent  string    `json:"-"`
}

// EmbeddingUpload is the payload for enrolling or replacing a
// student's reference descriptor.
type EmbeddingUpload struct {
	Descriptor   []float64 `json:"descriptor" validate:"required,min=1"`
	PhotoURL     string    `json:"face_photo_url"`
	QualityScore float64   `json:"quality_score" validate:"gte=0,lte=1"`
}

// AttemptReport is the kiosk's own account of a match attempt, posted
// best effort after client-side matching. It is folded into the same
// audit table as server-side attempts.
type AttemptReport struct {
	StudentID  *string    `json:"student_id,omitempty"`
	Success    bool       `json:"success"`
	Similarity float64    `json:"similarity" validate:"gte=0,lte=1"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
	IPAddress  string     `json:"-"`
	UserAgent  string     `json:"-"`
}

// MatchConfidence bands a similarity score for operators.
type MatchConfidence string

const (
	ConfidenceExcellent MatchConfidence = "EXCELLENT"
	ConfidenceGood      MatchConfidence = "GOOD"
	ConfidenceFair      MatchConfidence = "FAIR"
	ConfidencePoor      MatchConfidence = "POOR"
	ConfidenceFailed    MatchConfidence = "FAILED"
)

// MatchResult identifies the closest enrolled student for a probe
// descriptor. Similarity decreases monotonically with distance.
type MatchResult struct {
	StudentID    string          `json:"student_id"`
	StudentName  string          `json:"student_name"`
	Registration string          `json:"registration"`
	PhotoURL     string          `json:"face_photo_url"`
	Similarity   float64         `json:"similarity"`
	Distance     float64         `json:"distance"`
	Confidence   MatchConfidence `json:"confidence"`
}

// AttemptResult classifies the outcome of a biometric attempt.
type AttemptResult string

const (
	AttemptSuccess     AttemptResult = "SUCCESS"
	AttemptNoMatch     AttemptResult = "NO_MATCH"
	AttemptPoorQuality AttemptResult = "POOR_QUALITY"
	AttemptError       AttemptResult = "ERROR"
)

// BiometricAttempt is the audit row for a match attempt. Persistence is
// best effort: a failed insert never blocks the check-in flow.
type BiometricAttempt struct {
	ID                string        `db:"id" json:"id"`
	StudentID         *string       `db:"student_id" json:"student_id,omitempty"`
	DetectedStudentID *string       `db:"detected_student_id" json:"detected_student_id,omitempty"`
	Similarity        float64       `db:"similarity" json:"similarity"`
	Confidence        string        `db:"confidence" json:"confidence"`
	Method            CheckinMethod `db:"method" json:"method"`
	Result            AttemptResult `db:"result" json:"result"`
	ErrorMessage      *string       `db:"error_message" json:"error_message,omitempty"`
	IPAddress         string        `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent         string        `db:"user_agent" json:"user_agent,omitempty"`
	AttemptedAt       time.Time     `db:"attempted_at" json:"attempted_at"`
}

// CameraErrorCode classifies browser media failures reported by kiosk
// devices. Operators rely on these to tell hardware from permission
// problems on heterogeneous devices, so the set is a stable contract.
type CameraErrorCode string

const (
	CameraPermissionDenied CameraErrorCode = "CAMERA_PERMISSION_DENIED"
	CameraNotFound         CameraErrorCode = "CAMERA_NOT_FOUND"
	CameraInUse            CameraErrorCode = "CAMERA_IN_USE"
	CameraUnsupported      CameraErrorCode = "CAMERA_UNSUPPORTED"
	CameraTimeout          CameraErrorCode = "CAMERA_TIMEOUT"
	CameraUnknown          CameraErrorCode = "CAMERA_ERROR"
)

// CameraErrorReport is what a kiosk device submits when getUserMedia
// fails.
type CameraErrorReport struct {
	ErrorName string `json:"error_name" validate:"required"`
	Message   string `json:"message"`
	DeviceID  string `json:"device_id"`
	UserAgent string `json:"-"`
}

// CameraErrorClassification is the typed diagnosis returned to the
// kiosk.
type CameraErrorClassification struct {
	Code     CameraErrorCode `json:"code"`
	Guidance string          `json:"guidance"`
}
