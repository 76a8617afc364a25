package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/academy-checkin-api/internal/models"
	appErrors "github.com/noah-isme/academy-checkin-api/pkg/errors"
)

type userRepoStub struct {
	user      *models.User
	lastLogin *time.Time
}

func (s *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *userRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	s.lastLogin = &ts
	return nil
}

func testAuthService(repo *userRepoStub) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "academy-checkin-api",
	})
}

func hashedUser(password string) *models.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return &models.User{
		ID:           "usr-1",
		Email:        "admin@academy.test",
		PasswordHash: string(hash),
		FullName:     "Front Desk",
		Role:         models.RoleAdmin,
		Active:       true,
	}
}

func TestLoginSuccess(t *testing.T) {
	repo := &userRepoStub{user: hashedUser("sup3rsecret")}
	svc := testAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@academy.test",
		Password: "sup3rsecret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, "usr-1", res.User.ID)
	assert.NotNil(t, repo.lastLogin)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := testAuthService(&userRepoStub{user: hashedUser("correct")})

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@academy.test",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := testAuthService(&userRepoStub{})

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@academy.test",
		Password: "whatever",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginInactiveAccount(t *testing.T) {
	user := hashedUser("sup3rsecret")
	user.Active = false
	svc := testAuthService(&userRepoStub{user: user})

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@academy.test",
		Password: "sup3rsecret",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestLoginInvalidPayload(t *testing.T) {
	svc := testAuthService(&userRepoStub{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email", Password: "x"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc := testAuthService(&userRepoStub{user: hashedUser("pw")})

	res, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "admin@academy.test",
		Password: "pw",
	})
	require.NoError(t, err)

	other := NewAuthService(&userRepoStub{}, nil, nil, AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Hour,
	})
	_, err = other.ValidateToken(res.AccessToken)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
