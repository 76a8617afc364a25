package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-checkin-api/internal/models"
	appErrors "github.com/noah-isme/academy-checkin-api/pkg/errors"
)

type resolverStudentRepository interface {
	Search(ctx context.Context, query string, digits string, limit int) ([]models.StudentSummary, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	Create(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

type resolverSubscriptionRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Subscription, error)
}

// ResolverService turns free-text kiosk input into candidate students
// and carries the admin roster operations.
type ResolverService struct {
	students      resolverStudentRepository
	subscriptions resolverSubscriptionRepository
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewResolverService constructs a ResolverService.
func NewResolverService(students resolverStudentRepository, subscriptions resolverSubscriptionRepository, validate *validator.Validate, logger *zap.Logger) *ResolverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ResolverService{students: students, subscriptions: subscriptions, validator: validate, logger: logger}
}

// Search resolves a free-text query against name, email, registration
// and document number. Queries shorter than two characters after
// trimming are rejected; an empty result set is a normal outcome, not
// an error.
func (s *ResolverService) Search(ctx context.Context, query string, limit int) ([]models.StudentSummary, error) {
	trimmed := strings.TrimSpace(query)
	if len([]rune(trimmed)) < 2 {
		return nil, appErrors.Clone(appErrors.ErrInvalidQuery, "search query must have at least 2 characters")
	}

	digits := extractDigits(trimmed)
	// Punctuation-only input like "--" normalizes to nothing useful;
	// let the textual match run and return zero rows.
	results, err := s.students.Search(ctx, trimmed, digits, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search students")
	}

	lowered := strings.ToLower(trimmed)
	for i := range results {
		results[i].MatchedBy = matchedField(&results[i], lowered, digits)
	}
	if results == nil {
		results = []models.StudentSummary{}
	}
	return results, nil
}

// List returns the paginated admin roster.
func (s *ResolverService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, *models.Pagination, error) {
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ResolveByID fetches one student for the confirmation screen.
func (s *ResolverService) ResolveByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStudentNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	return student, nil
}

// CreateStudent enrolls a new student. New enrollments start active;
// subscriptions are granted separately.
func (s *ResolverService) CreateStudent(ctx context.Context, req models.CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student := &models.Student{
		Registration:   strings.TrimSpace(req.Registration),
		FullName:       strings.TrimSpace(req.FullName),
		Email:          strings.TrimSpace(req.Email),
		DocumentNumber: extractDigits(req.DocumentNumber),
		Category:       req.Category,
		Active:         true,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student enrolled",
		zap.String("student_id", student.ID),
		zap.String("registration", student.Registration))
	return student, nil
}

// DeactivateStudent marks a student inactive. The row is kept so past
// attendance stays attributable.
func (s *ResolverService) DeactivateStudent(ctx context.Context, id string) error {
	if _, err := s.students.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrStudentNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	if err := s.students.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.logger.Info("student deactivated", zap.String("student_id", id))
	return nil
}

// Subscriptions returns a student's full plan history, newest first.
func (s *ResolverService) Subscriptions(ctx context.Context, studentID string) ([]models.Subscription, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrStudentNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}
	subs, err := s.subscriptions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subscriptions")
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	return subs, nil
}

// extractDigits strips every non-digit rune so formatted document
// numbers like "123.456.789-00" match their stored form.
func extractDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func matchedField(student *models.StudentSummary, lowered, digits string) string {
	switch {
	case strings.Contains(strings.ToLower(student.FullName), lowered):
		return "name"
	case strings.Contains(strings.ToLower(student.Registration), lowered):
		return "registration"
	case strings.Contains(strings.ToLower(student.Email), lowered):
		return "email"
	case digits != "":
		return "document"
	default:
		return ""
	}
}
