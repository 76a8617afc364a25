package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-checkin-api/internal/models"
	appErrors "github.com/noah-isme/academy-checkin-api/pkg/errors"
)

type searchRepoStub struct {
	gotQuery    string
	gotDigits   string
	results     []models.StudentSummary
	student     *models.StudentDetail
	created     *models.Student
	deactivated string
}

func (s *searchRepoStub) Search(ctx context.Context, query string, digits string, limit int) ([]models.StudentSummary, error) {
	s.gotQuery = query
	s.gotDigits = digits
	return s.results, nil
}

func (s *searchRepoStub) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	return nil, 0, nil
}

func (s *searchRepoStub) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s.student == nil {
		return nil, sql.ErrNoRows
	}
	return s.student, nil
}

func (s *searchRepoStub) Create(ctx context.Context, student *models.Student) error {
	student.ID = "stu-new"
	s.created = student
	return nil
}

func (s *searchRepoStub) Deactivate(ctx context.Context, id string) error {
	s.deactivated = id
	return nil
}

type subscriptionHistoryRepoStub struct {
	subs []models.Subscription
}

func (s *subscriptionHistoryRepoStub) ListByStudent(ctx context.Context, studentID string) ([]models.Subscription, error) {
	return s.subs, nil
}

func TestSearchRejectsShortQueries(t *testing.T) {
	svc := NewResolverService(&searchRepoStub{}, nil, nil, nil)

	for _, q := range []string{"", "a", " a ", "  "} {
		_, err := svc.Search(context.Background(), q, 10)
		require.Error(t, err, "query %q", q)
		assert.True(t, appErrors.Is(err, appErrors.ErrInvalidQuery))
	}
}

func TestSearchTrimsAndExtractsDigits(t *testing.T) {
	repo := &searchRepoStub{}
	svc := NewResolverService(repo, nil, nil, nil)

	_, err := svc.Search(context.Background(), "  123.456-78  ", 10)
	require.NoError(t, err)
	assert.Equal(t, "123.456-78", repo.gotQuery)
	assert.Equal(t, "12345678", repo.gotDigits)
}

func TestSearchEmptyResultIsNotAnError(t *testing.T) {
	svc := NewResolverService(&searchRepoStub{}, nil, nil, nil)

	results, err := svc.Search(context.Background(), "zz", 10)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSearchAnnotatesMatchedField(t *testing.T) {
	repo := &searchRepoStub{results: []models.StudentSummary{
		{ID: "1", FullName: "Maria Souza", Registration: "R-001", Email: "maria@example.com"},
		{ID: "2", FullName: "João Pedro", Registration: "MAR-7", Email: "jp@example.com"},
	}}
	svc := NewResolverService(repo, nil, nil, nil)

	results, err := svc.Search(context.Background(), "mar", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "name", results[0].MatchedBy)
	assert.Equal(t, "registration", results[1].MatchedBy)
}

func TestResolveByIDNotFound(t *testing.T) {
	svc := NewResolverService(&searchRepoStub{}, nil, nil, nil)

	_, err := svc.ResolveByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStudentNotFound))
}

func TestResolveByID(t *testing.T) {
	repo := &searchRepoStub{student: &models.StudentDetail{Student: models.Student{ID: "stu-1", FullName: "Ana Lima"}}}
	svc := NewResolverService(repo, nil, nil, nil)

	student, err := svc.ResolveByID(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana Lima", student.FullName)
}

func TestCreateStudentEnrollsActive(t *testing.T) {
	repo := &searchRepoStub{}
	svc := NewResolverService(repo, nil, nil, nil)

	student, err := svc.CreateStudent(context.Background(), models.CreateStudentRequest{
		Registration:   " R-042 ",
		FullName:       "Bruno Costa",
		Email:          "bruno@example.com",
		DocumentNumber: "123.456.789-00",
		Category:       "adult",
	})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.Equal(t, "stu-new", student.ID)
	assert.Equal(t, "R-042", student.Registration)
	assert.Equal(t, "12345678900", student.DocumentNumber)
	assert.True(t, student.Active)
}

func TestCreateStudentValidatesPayload(t *testing.T) {
	svc := NewResolverService(&searchRepoStub{}, nil, nil, nil)

	_, err := svc.CreateStudent(context.Background(), models.CreateStudentRequest{FullName: "No Registration"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.CreateStudent(context.Background(), models.CreateStudentRequest{
		Registration: "R-1", FullName: "Bad Email", Email: "not-an-email",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestDeactivateStudent(t *testing.T) {
	repo := &searchRepoStub{student: &models.StudentDetail{Student: models.Student{ID: "stu-1"}}}
	svc := NewResolverService(repo, nil, nil, nil)

	require.NoError(t, svc.DeactivateStudent(context.Background(), "stu-1"))
	assert.Equal(t, "stu-1", repo.deactivated)
}

func TestDeactivateUnknownStudent(t *testing.T) {
	svc := NewResolverService(&searchRepoStub{}, nil, nil, nil)

	err := svc.DeactivateStudent(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStudentNotFound))
}

func TestSubscriptionsListsHistory(t *testing.T) {
	repo := &searchRepoStub{student: &models.StudentDetail{Student: models.Student{ID: "stu-1"}}}
	subs := &subscriptionHistoryRepoStub{subs: []models.Subscription{
		{ID: "sub-2", StudentID: "stu-1", Status: models.SubscriptionActive},
		{ID: "sub-1", StudentID: "stu-1", Status: models.SubscriptionCancelled},
	}}
	svc := NewResolverService(repo, subs, nil, nil)

	history, err := svc.Subscriptions(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "sub-2", history[0].ID)
}

func TestSubscriptionsEmptyHistoryIsNotAnError(t *testing.T) {
	repo := &searchRepoStub{student: &models.StudentDetail{Student: models.Student{ID: "stu-1"}}}
	svc := NewResolverService(repo, &subscriptionHistoryRepoStub{}, nil, nil)

	history, err := svc.Subscriptions(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestSubscriptionsUnknownStudent(t *testing.T) {
	svc := NewResolverService(&searchRepoStub{}, &subscriptionHistoryRepoStub{}, nil, nil)

	_, err := svc.Subscriptions(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrStudentNotFound))
}

func TestExtractDigits(t *testing.T) {
	assert.Equal(t, "12345678900", extractDigits("123.456.789-00"))
	assert.Equal(t, "", extractDigits("no digits here"))
	assert.Equal(t, "2026", extractDigits(" 20-26 "))
}

func TestSearchTwoRuneUnicodeQuery(t *testing.T) {
	repo := &searchRepoStub{}
	svc := NewResolverService(repo, nil, nil, nil)

	// Two multibyte runes satisfy the minimum length.
	_, err := svc.Search(context.Background(), "éà", 10)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower("éà"), strings.ToLower(repo.gotQuery))
}
