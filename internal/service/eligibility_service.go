package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academy-checkin-api/internal/models"
	appErrors "github.com/noah-isme/academy-checkin-api/pkg/errors"
)

type eligibilityStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type eligibilitySessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
}

type eligibilitySubscriptionRepository interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Subscription, error)
}

type eligibilityAttendanceRepository interface {
	FindForDay(ctx context.Context, studentID, sessionID string, day time.Time) (*models.AttendanceRecord, error)
}

// EligibilityConfig tunes check-in gating.
type EligibilityConfig struct {
	// AllowBasicMode lets students without an active subscription
	// check in as BASIC instead of being rejected.
	AllowBasicMode bool
	// EnforceWindow rejects check-ins outside the session window.
	EnforceWindow bool
	// WindowBefore is how early before start a check-in opens.
	WindowBefore time.Duration
	// WindowAfter is how late after start a check-in stays open.
	WindowAfter time.Duration
}

// EligibilityService decides whether a check-in may proceed. Checks run
// in a fixed order so the kiosk always reports the most fundamental
// failure: missing student before missing session, duplicates before
// subscription state, subscription state before timing. The decision is
// advisory; the attendance unique index remains the final arbiter of
// duplicates.
type EligibilityService struct {
	students      eligibilityStudentRepository
	sessions      eligibilitySessionRepository
	subscriptions eligibilitySubscriptionRepository
	attendance    eligibilityAttendanceRepository
	logger        *zap.Logger
	config        EligibilityConfig
	now           func() time.Time
}

// NewEligibilityService constructs an EligibilityService.
func NewEligibilityService(
	students eligibilityStudentRepository,
	sessions eligibilitySessionRepository,
	subscriptions eligibilitySubscriptionRepository,
	attendance eligibilityAttendanceRepository,
	logger *zap.Logger,
	config EligibilityConfig,
) *EligibilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EligibilityService{
		students:      students,
		sessions:      sessions,
		subscriptions: subscriptions,
		attendance:    attendance,
		logger:        logger,
		config:        config,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Validate runs the full eligibility decision without recording
// anything.
func (s *EligibilityService) Validate(ctx context.Context, studentID, sessionID string) (*models.EligibilityResult, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.EligibilityResult{
				Eligible: false,
				Reason:   models.ReasonStudentNotFound,
				Message:  "student not found",
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if !student.Active {
		return &models.EligibilityResult{
			Eligible: false,
			Reason:   models.ReasonStudentNotFound,
			Message:  "student is inactive",
		}, nil
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.EligibilityResult{
				Eligible: false,
				Reason:   models.ReasonSessionNotFound,
				Message:  "class session not found",
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch session")
	}
	if session.Status == models.SessionCancelled {
		return &models.EligibilityResult{
			Eligible: false,
			Reason:   models.ReasonSessionCancelled,
			Message:  "class session was cancelled",
		}, nil
	}

	day := s.now().Truncate(24 * time.Hour)
	existing, err := s.attendance.FindForDay(ctx, studentID, sessionID, day)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing attendance")
	}
	if existing != nil {
		return &models.EligibilityResult{
			Eligible: false,
			Reason:   models.ReasonAlreadyCheckedIn,
			Message:  fmt.Sprintf("already checked in at %s", existing.CheckedInAt.Format("15:04")),
			ExistingRecord: &models.AttendanceDetail{
				AttendanceRecord: *existing,
				StudentName:      student.FullName,
				Registration:     student.Registration,
				CourseName:       session.CourseName,
				SessionTitle:     session.Title,
			},
		}, nil
	}

	mode := models.ModeFull
	reason := models.ReasonEligible
	if _, err := s.subscriptions.FindActiveByStudent(ctx, studentID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch subscription")
		}
		if !s.config.AllowBasicMode {
			return &models.EligibilityResult{
				Eligible: false,
				Reason:   models.ReasonNoActiveSubscription,
				Message:  "student has no active subscription",
			}, nil
		}
		mode = models.ModeBasic
		reason = models.ReasonEligibleBasic
	}

	if s.config.EnforceWindow {
		if ok, msg := s.withinWindow(session); !ok {
			return &models.EligibilityResult{
				Eligible: false,
				Reason:   models.ReasonOutsideWindow,
				Message:  msg,
			}, nil
		}
	}

	return &models.EligibilityResult{
		Eligible: true,
		Mode:     mode,
		Reason:   reason,
		Message:  "check-in allowed",
	}, nil
}

func (s *EligibilityService) withinWindow(session *models.Session) (bool, string) {
	now := s.now()
	opens := session.StartTime.Add(-s.config.WindowBefore)
	closes := session.StartTime.Add(s.config.WindowAfter)
	if now.Before(opens) {
		return false, fmt.Sprintf("check-in opens at %s", opens.Format("15:04"))
	}
	if now.After(closes) {
		return false, fmt.Sprintf("check-in closed at %s", closes.Format("15:04"))
	}
	return true, ""
}
