package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-checkin-api/internal/models"
	appErrors "github.com/noah-isme/academy-checkin-api/pkg/errors"
)

type checkinAttendanceRepository interface {
	Insert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	FindForDay(ctx context.Context, studentID, sessionID string, day time.Time) (*models.AttendanceRecord, error)
	ListForDay(ctx context.Context, day time.Time) ([]models.AttendanceDetail, error)
	SessionCounts(ctx context.Context, day time.Time) (map[string]int, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
	DayStats(ctx context.Context, day time.Time) (*models.AttendanceDayStats, error)
	CountByStudentAndCourse(ctx context.Context, studentID, courseID string) (int, error)
}

type checkinSessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	ListForDay(ctx context.Context, day time.Time) ([]models.Session, error)
}

type checkinStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type eligibilityValidator interface {
	Validate(ctx context.Context, studentID, sessionID string) (*models.EligibilityResult, error)
}

type checkinMetrics interface {
	RecordCheckin(method models.CheckinMethod, mode models.CheckinMode)
	RecordCheckinFailure(reason models.EligibilityReason)
}

// AvailabilityConfig frames the kiosk's check-in window around each
// session's start time for the today view.
type AvailabilityConfig struct {
	WindowBefore time.Duration
	WindowAfter  time.Duration
}

// CheckinService orchestrates the record step: validate eligibility,
// derive the lesson number and punctuality status, then hand the insert
// to the database where the unique index settles races.
type CheckinService struct {
	attendance  checkinAttendanceRepository
	sessions    checkinSessionRepository
	students    checkinStudentRepository
	eligibility eligibilityValidator
	metrics     checkinMetrics
	validator   *validator.Validate
	logger      *zap.Logger
	window      AvailabilityConfig
	now         func() time.Time
}

// NewCheckinService constructs a CheckinService.
func NewCheckinService(
	attendance checkinAttendanceRepository,
	sessions checkinSessionRepository,
	students checkinStudentRepository,
	eligibility eligibilityValidator,
	metrics checkinMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	window AvailabilityConfig,
) *CheckinService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if window.WindowBefore <= 0 {
		window.WindowBefore = 30 * time.Minute
	}
	if window.WindowAfter <= 0 {
		window.WindowAfter = 15 * time.Minute
	}
	return &CheckinService{
		attendance:  attendance,
		sessions:    sessions,
		students:    students,
		eligibility: eligibility,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		window:      window,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CheckIn records attendance for a student in a session. Eligibility is
// validated first, but the conditional insert is authoritative: if two
// requests race past validation, exactly one row lands and the loser
// gets the already-checked-in error.
func (s *CheckinService) CheckIn(ctx context.Context, req models.CheckinRequest) (*models.CheckinConfirmation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}
	method := models.ParseCheckinMethod(req.Method)
	if !method.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown check-in method: "+req.Method)
	}

	decision, err := s.eligibility.Validate(ctx, req.StudentID, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !decision.Eligible {
		s.recordFailure(decision.Reason)
		return nil, eligibilityError(decision)
	}

	session, err := s.sessions.FindByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.recordFailure(models.ReasonSessionNotFound)
			return nil, appErrors.Clone(appErrors.ErrSessionNotFound, "class session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch session")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.recordFailure(models.ReasonStudentNotFound)
			return nil, appErrors.Clone(appErrors.ErrStudentNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}

	now := s.now()
	status := models.AttendancePresent
	if now.After(session.StartTime) {
		status = models.AttendanceLate
	}

	var notes *string
	if req.Notes != "" {
		notes = &req.Notes
	}
	record := &models.AttendanceRecord{
		StudentID:    req.StudentID,
		SessionID:    req.SessionID,
		CourseID:     session.CourseID,
		Date:         now.Truncate(24 * time.Hour),
		LessonNumber: LessonNumber(session.CourseStart, now, session.TotalLessons),
		Status:       status,
		Mode:         decision.Mode,
		Method:       method,
		Notes:        notes,
		CheckedInAt:  now,
	}

	inserted, err := s.attendance.Insert(ctx, record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Conflict on the unique index: someone beat us to it.
			s.recordFailure(models.ReasonAlreadyCheckedIn)
			return nil, appErrors.Clone(appErrors.ErrAlreadyCheckedIn, "attendance already recorded for this session today")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	if s.metrics != nil {
		s.metrics.RecordCheckin(method, decision.Mode)
	}
	s.logger.Info("check-in recorded",
		zap.String("student_id", req.StudentID),
		zap.String("session_id", req.SessionID),
		zap.String("method", string(method)),
		zap.String("mode", string(decision.Mode)),
		zap.String("status", string(status)))

	return &models.CheckinConfirmation{
		Record:       *inserted,
		StudentName:  student.FullName,
		Registration: student.Registration,
		CourseName:   session.CourseName,
		LessonNumber: inserted.LessonNumber,
		CheckedInAt:  inserted.CheckedInAt,
		Mode:         inserted.Mode,
	}, nil
}

// Validate runs the eligibility decision without recording anything.
func (s *CheckinService) Validate(ctx context.Context, studentID, sessionID string) (*models.EligibilityResult, error) {
	return s.eligibility.Validate(ctx, studentID, sessionID)
}

// Today returns the day's recorded check-ins.
func (s *CheckinService) Today(ctx context.Context) ([]models.AttendanceDetail, error) {
	records, err := s.attendance.ListForDay(ctx, s.now().Truncate(24*time.Hour))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list today's attendance")
	}
	if records == nil {
		records = []models.AttendanceDetail{}
	}
	return records, nil
}

// History returns paginated attendance records matching the filter.
func (s *CheckinService) History(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	records, total, err := s.attendance.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	if records == nil {
		records = []models.AttendanceDetail{}
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Stats aggregates the day's check-ins.
func (s *CheckinService) Stats(ctx context.Context, day time.Time) (*models.AttendanceDayStats, error) {
	stats, err := s.attendance.DayStats(ctx, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	return stats, nil
}

// AvailableCourses builds the per-student today view: every session on
// today's calendar labeled with whether this student can still check in.
func (s *CheckinService) AvailableCourses(ctx context.Context, studentID string) ([]models.CourseAvailability, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStudentNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}

	now := s.now()
	day := now.Truncate(24 * time.Hour)
	sessions, err := s.sessions.ListForDay(ctx, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	counts, err := s.attendance.SessionCounts(ctx, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count check-ins")
	}

	availability := make([]models.CourseAvailability, 0, len(sessions))
	for _, session := range sessions {
		attended, err := s.attendance.CountByStudentAndCourse(ctx, studentID, session.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count course attendance")
		}
		row := models.CourseAvailability{
			SessionID:       session.ID,
			CourseID:        session.CourseID,
			Name:            session.CourseName,
			StartTime:       session.StartTime,
			EndTime:         session.EndTime,
			Capacity:        session.Capacity,
			CheckedIn:       counts[session.ID],
			AttendedLessons: attended,
		}

		opensAt := session.StartTime.Add(-s.window.WindowBefore)
		closesAt := session.StartTime.Add(s.window.WindowAfter)
		if _, err := s.attendance.FindForDay(ctx, studentID, session.ID, day); err == nil {
			row.HasCheckedIn = true
			row.Status = models.AvailabilityCheckedIn
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
		} else if now.After(session.EndTime) || now.After(closesAt) {
			row.Status = models.AvailabilityExpired
		} else if now.Before(opensAt) {
			row.Status = models.AvailabilityNotYet
		} else {
			row.Status = models.AvailabilityAvailable
			row.CanCheckIn = true
		}
		availability = append(availability, row)
	}
	return availability, nil
}

// LessonNumber derives which lesson of the course today's session is,
// assuming the two-lessons-per-week cadence the academy runs. It never
// exceeds the course's total lesson count.
func LessonNumber(courseStart, now time.Time, totalLessons int) int {
	if totalLessons <= 0 {
		totalLessons = 1
	}
	days := now.Sub(courseStart).Hours() / 24
	if days < 0 {
		days = 0
	}
	lesson := int(math.Floor(days/3.5))*2 + 1
	if lesson > totalLessons {
		lesson = totalLessons
	}
	return lesson
}

func (s *CheckinService) recordFailure(reason models.EligibilityReason) {
	if s.metrics != nil {
		s.metrics.RecordCheckinFailure(reason)
	}
}

// eligibilityError maps a rejection onto the typed error surface.
func eligibilityError(decision *models.EligibilityResult) error {
	switch decision.Reason {
	case models.ReasonStudentNotFound:
		return appErrors.Clone(appErrors.ErrStudentNotFound, decision.Message)
	case models.ReasonSessionNotFound:
		return appErrors.Clone(appErrors.ErrSessionNotFound, decision.Message)
	case models.ReasonSessionCancelled:
		return appErrors.Clone(appErrors.ErrSessionCancelled, decision.Message)
	case models.ReasonAlreadyCheckedIn:
		return appErrors.Clone(appErrors.ErrAlreadyCheckedIn, decision.Message)
	case models.ReasonNoActiveSubscription:
		return appErrors.Clone(appErrors.ErrNoActiveSubscription, decision.Message)
	case models.ReasonOutsideWindow:
		return appErrors.Clone(appErrors.ErrOutsideWindow, decision.Message)
	default:
		return appErrors.Clone(appErrors.ErrConflict, decision.Message)
	}
}
