package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-checkin-api/internal/models"
	appErrors "github.com/noah-isme/academy-checkin-api/pkg/errors"
)

type attendanceRepoStub struct {
	inserted  *models.AttendanceRecord
	conflict  bool
	existing  map[string]*models.AttendanceRecord
	counts    map[string]int
	attended  map[string]int
	forDay    []models.AttendanceDetail
	listTotal int
}

func (s *attendanceRepoStub) Insert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if s.conflict {
		return nil, sql.ErrNoRows
	}
	record.ID = "att-new"
	s.inserted = record
	return record, nil
}

func (s *attendanceRepoStub) FindForDay(ctx context.Context, studentID, sessionID string, day time.Time) (*models.AttendanceRecord, error) {
	if record, ok := s.existing[sessionID]; ok {
		return record, nil
	}
	return nil, sql.ErrNoRows
}

func (s *attendanceRepoStub) ListForDay(ctx context.Context, day time.Time) ([]models.AttendanceDetail, error) {
	return s.forDay, nil
}

func (s *attendanceRepoStub) SessionCounts(ctx context.Context, day time.Time) (map[string]int, error) {
	return s.counts, nil
}

func (s *attendanceRepoStub) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	return s.forDay, s.listTotal, nil
}

func (s *attendanceRepoStub) DayStats(ctx context.Context, day time.Time) (*models.AttendanceDayStats, error) {
	return &models.AttendanceDayStats{Date: day}, nil
}

func (s *attendanceRepoStub) CountByStudentAndCourse(ctx context.Context, studentID, courseID string) (int, error) {
	return s.attended[courseID], nil
}

type checkinSessionsStub struct {
	session  *models.Session
	sessions []models.Session
}

func (s *checkinSessionsStub) FindByID(ctx context.Context, id string) (*models.Session, error) {
	if s.session == nil {
		return nil, sql.ErrNoRows
	}
	return s.session, nil
}

func (s *checkinSessionsStub) ListForDay(ctx context.Context, day time.Time) ([]models.Session, error) {
	return s.sessions, nil
}

type eligibilityStub struct {
	result *models.EligibilityResult
	err    error
}

func (s *eligibilityStub) Validate(ctx context.Context, studentID, sessionID string) (*models.EligibilityResult, error) {
	return s.result, s.err
}

type metricsStub struct {
	checkins []string
	failures []models.EligibilityReason
}

func (m *metricsStub) RecordCheckin(method models.CheckinMethod, mode models.CheckinMode) {
	m.checkins = append(m.checkins, string(method)+"/"+string(mode))
}

func (m *metricsStub) RecordCheckinFailure(reason models.EligibilityReason) {
	m.failures = append(m.failures, reason)
}

func eligibleResult() *models.EligibilityResult {
	return &models.EligibilityResult{Eligible: true, Mode: models.ModeFull, Reason: models.ReasonEligible}
}

func newCheckinService(att *attendanceRepoStub, sessions *checkinSessionsStub, students *studentRepoStub, elig *eligibilityStub, metrics *metricsStub) *CheckinService {
	// A nil *metricsStub must become a nil interface, not a typed nil,
	// so the service's nil check can skip metrics recording.
	var m checkinMetrics
	if metrics != nil {
		m = metrics
	}
	return NewCheckinService(att, sessions, students, elig, m, nil, nil, AvailabilityConfig{})
}

func TestCheckInRecordsPresent(t *testing.T) {
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	att := &attendanceRepoStub{}
	metrics := &metricsStub{}
	svc := newCheckinService(
		att,
		&checkinSessionsStub{session: &models.Session{
			ID: "ses-1", CourseID: "crs-1", CourseName: "Muay Thai",
			StartTime: start, EndTime: start.Add(time.Hour),
			CourseStart: start.AddDate(0, 0, -7), TotalLessons: 24,
		}},
		&studentRepoStub{student: activeStudent()},
		&eligibilityStub{result: eligibleResult()},
		metrics,
	)
	svc.now = func() time.Time { return start.Add(-5 * time.Minute) }

	confirmation, err := svc.CheckIn(context.Background(), models.CheckinRequest{
		StudentID: "stu-1", SessionID: "ses-1", Method: "biometric",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendancePresent, confirmation.Record.Status)
	assert.Equal(t, models.MethodBiometric, confirmation.Record.Method)
	assert.Equal(t, models.ModeFull, confirmation.Mode)
	assert.Equal(t, "Ana Lima", confirmation.StudentName)
	assert.Equal(t, "Muay Thai", confirmation.CourseName)
	assert.Equal(t, []string{"BIOMETRIC/FULL"}, metrics.checkins)
}

func TestCheckInAfterStartIsLate(t *testing.T) {
	start := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	svc := newCheckinService(
		&attendanceRepoStub{},
		&checkinSessionsStub{session: &models.Session{
			ID: "ses-1", StartTime: start, EndTime: start.Add(time.Hour),
			CourseStart: start, TotalLessons: 24,
		}},
		&studentRepoStub{student: activeStudent()},
		&eligibilityStub{result: eligibleResult()},
		nil,
	)
	svc.now = func() time.Time { return start.Add(10 * time.Minute) }

	confirmation, err := svc.CheckIn(context.Background(), models.CheckinRequest{
		StudentID: "stu-1", SessionID: "ses-1", Method: "MANUAL",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceLate, confirmation.Record.Status)
}

func TestCheckInInsertConflictIsAuthoritative(t *testing.T) {
	// Eligibility said go, but a concurrent request landed first. The
	// unique index decides and this caller gets the conflict error.
	start := time.Now().UTC().Add(time.Hour)
	metrics := &metricsStub{}
	svc := newCheckinService(
		&attendanceRepoStub{conflict: true},
		&checkinSessionsStub{session: &models.Session{ID: "ses-1", StartTime: start, CourseStart: start, TotalLessons: 24}},
		&studentRepoStub{student: activeStudent()},
		&eligibilityStub{result: eligibleResult()},
		metrics,
	)

	_, err := svc.CheckIn(context.Background(), models.CheckinRequest{
		StudentID: "stu-1", SessionID: "ses-1", Method: "QR",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyCheckedIn))
	assert.Equal(t, []models.EligibilityReason{models.ReasonAlreadyCheckedIn}, metrics.failures)
}

func TestCheckInIneligibleMapsToTypedError(t *testing.T) {
	metrics := &metricsStub{}
	svc := newCheckinService(
		&attendanceRepoStub{},
		&checkinSessionsStub{},
		&studentRepoStub{student: activeStudent()},
		&eligibilityStub{result: &models.EligibilityResult{
			Eligible: false,
			Reason:   models.ReasonNoActiveSubscription,
			Message:  "student has no active subscription",
		}},
		metrics,
	)

	_, err := svc.CheckIn(context.Background(), models.CheckinRequest{
		StudentID: "stu-1", SessionID: "ses-1", Method: "KIOSK",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNoActiveSubscription))
	assert.Equal(t, []models.EligibilityReason{models.ReasonNoActiveSubscription}, metrics.failures)
}

func TestCheckInRejectsUnknownMethod(t *testing.T) {
	svc := newCheckinService(&attendanceRepoStub{}, &checkinSessionsStub{}, &studentRepoStub{}, &eligibilityStub{}, nil)

	_, err := svc.CheckIn(context.Background(), models.CheckinRequest{
		StudentID: "stu-1", SessionID: "ses-1", Method: "CARRIER_PIGEON",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestLessonNumber(t *testing.T) {
	courseStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		daysIn int
		want   int
	}{
		{0, 1},
		{3, 1},
		{4, 3},
		{7, 5},
		{14, 9},
		{365, 24},
	}
	for _, tc := range cases {
		now := courseStart.AddDate(0, 0, tc.daysIn)
		assert.Equal(t, tc.want, LessonNumber(courseStart, now, 24), "days in: %d", tc.daysIn)
	}

	// Before course start clamps to lesson 1.
	assert.Equal(t, 1, LessonNumber(courseStart, courseStart.AddDate(0, 0, -5), 24))
}

func TestAvailableCourses(t *testing.T) {
	now := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	sessions := []models.Session{
		{ID: "done", CourseID: "c1", CourseName: "Morning Class", StartTime: now.Add(-10 * time.Hour), EndTime: now.Add(-9 * time.Hour), Status: models.SessionCompleted},
		{ID: "mine", CourseID: "c2", CourseName: "Boxing", StartTime: now.Add(-30 * time.Minute), EndTime: now.Add(30 * time.Minute), Status: models.SessionInProgress},
		{ID: "missed", CourseID: "c3", CourseName: "Jiu-Jitsu", StartTime: now.Add(-20 * time.Minute), EndTime: now.Add(40 * time.Minute), Status: models.SessionInProgress},
		{ID: "open", CourseID: "c4", CourseName: "Judo", StartTime: now.Add(20 * time.Minute), EndTime: now.Add(80 * time.Minute), Status: models.SessionScheduled},
		{ID: "later", CourseID: "c5", CourseName: "Karate", StartTime: now.Add(5 * time.Hour), EndTime: now.Add(6 * time.Hour), Status: models.SessionScheduled},
	}
	att := &attendanceRepoStub{
		existing: map[string]*models.AttendanceRecord{"mine": {ID: "att-1", SessionID: "mine"}},
		counts:   map[string]int{"mine": 7, "open": 3},
		attended: map[string]int{"c2": 12, "c4": 4},
	}
	svc := newCheckinService(
		att,
		&checkinSessionsStub{sessions: sessions},
		&studentRepoStub{student: activeStudent()},
		&eligibilityStub{result: eligibleResult()},
		nil,
	)
	svc.now = func() time.Time { return now }

	availability, err := svc.AvailableCourses(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, availability, 5)

	byID := map[string]models.CourseAvailability{}
	for _, row := range availability {
		byID[row.SessionID] = row
	}

	assert.Equal(t, models.AvailabilityExpired, byID["done"].Status)
	assert.Equal(t, models.AvailabilityCheckedIn, byID["mine"].Status)
	assert.True(t, byID["mine"].HasCheckedIn)
	assert.Equal(t, 7, byID["mine"].CheckedIn)
	assert.Equal(t, 12, byID["mine"].AttendedLessons)
	// Still in progress, but past the 15-minute grace after start.
	assert.Equal(t, models.AvailabilityExpired, byID["missed"].Status)
	assert.False(t, byID["missed"].CanCheckIn)
	assert.Equal(t, models.AvailabilityAvailable, byID["open"].Status)
	assert.True(t, byID["open"].CanCheckIn)
	assert.Equal(t, 4, byID["open"].AttendedLessons)
	assert.Equal(t, models.AvailabilityNotYet, byID["later"].Status)
	assert.False(t, byID["later"].CanCheckIn)
}

func TestAvailableCoursesOpensWithinConfiguredWindow(t *testing.T) {
	now := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	sessions := []models.Session{
		{ID: "soon", CourseID: "c1", CourseName: "Judo", StartTime: now.Add(50 * time.Minute), EndTime: now.Add(110 * time.Minute), Status: models.SessionScheduled},
	}
	svc := NewCheckinService(
		&attendanceRepoStub{},
		&checkinSessionsStub{sessions: sessions},
		&studentRepoStub{student: activeStudent()},
		&eligibilityStub{result: eligibleResult()},
		nil, nil, nil,
		AvailabilityConfig{WindowBefore: time.Hour, WindowAfter: 15 * time.Minute},
	)
	svc.now = func() time.Time { return now }

	availability, err := svc.AvailableCourses(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, availability, 1)
	// 50 minutes ahead is inside a one-hour opening window.
	assert.Equal(t, models.AvailabilityAvailable, availability[0].Status)
	assert.True(t, availability[0].CanCheckIn)
}

func TestAvailableCoursesUnknownStudent(t *testing.T) {
	svc := newCheckinService(&attendanceRepoStub{}, &checkinSessionsStub{}, &studentRepoStub{}, &eligibilityStub{}, nil)

	_, err := svc.AvailableCourses(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStudentNotFound))
}
