package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/colegio-app/colegio-api/internal/models"
	appErrors "github.com/colegio-app/colegio-api/pkg/errors"
)

type stubUserRepo struct {
	users      map[string]*models.User
	lastLogins []string
}

func (m *stubUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogins = append(m.lastLogins, id)
	return nil
}

type stubTeacherLinks struct {
	byUser map[string]*models.Teacher
}

func (m *stubTeacherLinks) FindByUserID(ctx context.Context, userID string) (*models.Teacher, error) {
	if t, ok := m.byUser[userID]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

type stubStudentLinks struct {
	byUser map[string]*models.Student
}

func (m *stubStudentLinks) FindByUserID(ctx context.Context, userID string) (*models.Student, error) {
	if s, ok := m.byUser[userID]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthFixture(t *testing.T) (*AuthService, *stubUserRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	users := &stubUserRepo{users: map[string]*models.User{
		"rosa@colegio.edu": {
			ID:           "u1",
			Email:        "rosa@colegio.edu",
			PasswordHash: string(hash),
			Role:         models.RoleTeacher,
			Active:       true,
		},
		"inactive@colegio.edu": {
			ID:           "u2",
			Email:        "inactive@colegio.edu",
			PasswordHash: string(hash),
			Role:         models.RoleStudent,
			Active:       false,
		},
	}}
	teachers := &stubTeacherLinks{byUser: map[string]*models.Teacher{
		"u1": {ID: "t1", Names: "Rosa", FatherLastName: "Flores"},
	}}
	students := &stubStudentLinks{byUser: map[string]*models.Student{}}

	svc := NewAuthService(users, teachers, students, nil, nil, AuthConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
		Issuer: "colegio-api",
	})
	return svc, users
}

func TestLoginIssuesTokenWithTeacherLink(t *testing.T) {
	svc, users := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "rosa@colegio.edu",
		Password: "secret123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	require.NotNil(t, resp.User.TeacherID)
	assert.Equal(t, "t1", *resp.User.TeacherID)
	assert.Nil(t, resp.User.StudentID)
	assert.Equal(t, []string{"u1"}, users.lastLogins)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	require.NotNil(t, claims.TeacherID)
	assert.Equal(t, "t1", *claims.TeacherID)
	assert.True(t, claims.HasPermission(models.PermViewStudents))
	assert.False(t, claims.HasPermission(models.PermManageQualifications))
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "rosa@colegio.edu",
		Password: "nope",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ghost@colegio.edu",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "inactive@colegio.edu",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, _ := newAuthFixture(t)
	other := NewAuthService(&stubUserRepo{}, nil, nil, nil, nil, AuthConfig{Secret: "different", Expiry: time.Hour})

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "rosa@colegio.edu",
		Password: "secret123",
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
}
