package service

import (
	"context"
	"testing"
	"time"

	"erp/internal/apperror"
	"erp/internal/config"
	"erp/internal/database/dbtest"
	"erp/internal/model"
	"erp/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUserService(t *testing.T) UserService {
	t.Helper()
	db := dbtest.New(t)
	return NewUserService(repository.NewUserRepository(db), config.JWTConfig{Secret: "test-secret", TTLHours: 2}, zap.NewNop())
}

func TestLoginIssuesSignedToken(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserRequest{Username: "ops", Email: "Ops@Example.com", Password: "secret1", Role: model.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", user.Email)
	assert.True(t, user.IsActive)

	tok, err := svc.Login(ctx, LoginUserRequest{Email: "ops@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), tok.ExpiresAt, time.Minute)

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, user.ID, claims["sub"])
	assert.Equal(t, model.RoleUser, claims["role"])

	_, err = svc.Login(ctx, LoginUserRequest{Email: "ops@example.com", Password: "wrong"})
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
	_, err = svc.Login(ctx, LoginUserRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))

	inactive := false
	_, err = svc.UpdateUser(ctx, user.ID, UpdateUserRequest{IsActive: &inactive})
	require.NoError(t, err)
	_, err = svc.Login(ctx, LoginUserRequest{Email: "ops@example.com", Password: "secret1"})
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
}

func TestCreateUserValidation(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserRequest{Username: "a", Email: "a@example.com", Password: "secret1", Role: "Root"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.CreateUser(ctx, CreateUserRequest{Username: "a", Email: "a@example.com", Password: "secret1", Role: model.RoleUser})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, CreateUserRequest{Username: "b", Email: "A@example.com", Password: "secret1", Role: model.RoleUser})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	_, err = svc.CreateUser(ctx, CreateUserRequest{Username: "a", Email: "b@example.com", Password: "secret1", Role: model.RoleUser})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestEnsureAdminAndLastAdminGuard(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()
	seed := config.AdminConfig{Username: "admin", Email: "admin@example.com", Password: "changeme"}

	require.NoError(t, svc.EnsureAdmin(ctx, seed))
	// a second run finds the admin and does nothing
	require.NoError(t, svc.EnsureAdmin(ctx, seed))

	users, total, err := svc.ListUsers(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, model.RoleAdmin, users[0].Role)

	err = svc.DeleteUser(ctx, users[0].ID)
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))

	second, err := svc.CreateUser(ctx, CreateUserRequest{Username: "admin2", Email: "admin2@example.com", Password: "changeme", Role: model.RoleAdmin})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteUser(ctx, users[0].ID))

	_, err = svc.GetUserByID(ctx, users[0].ID)
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(svc.DeleteUser(ctx, second.ID)))
}

func TestEnsureAdminWithoutCredentialsIsNoop(t *testing.T) {
	svc := newUserService(t)
	require.NoError(t, svc.EnsureAdmin(context.Background(), config.AdminConfig{}))
	_, total, err := svc.ListUsers(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestSetActiveKeepsOneActiveAdmin(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	boss, err := svc.CreateUser(ctx, CreateUserRequest{Username: "boss", Email: "boss@example.com", Password: "secret1", Role: model.RoleAdmin})
	require.NoError(t, err)
	clerk, err := svc.CreateUser(ctx, CreateUserRequest{Username: "clerk", Email: "clerk@example.com", Password: "secret1", Role: model.RoleUser})
	require.NoError(t, err)

	_, err = svc.SetActive(ctx, boss.ID, false)
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))

	got, err := svc.SetActive(ctx, clerk.ID, false)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	_, err = svc.Login(ctx, LoginUserRequest{Email: "clerk@example.com", Password: "secret1"})
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))

	got, err = svc.SetActive(ctx, clerk.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	_, err = svc.Login(ctx, LoginUserRequest{Email: "clerk@example.com", Password: "secret1"})
	require.NoError(t, err)

	// an inactive second admin does not count
	deputy, err := svc.CreateUser(ctx, CreateUserRequest{Username: "deputy", Email: "deputy@example.com", Password: "secret1", Role: model.RoleAdmin})
	require.NoError(t, err)
	_, err = svc.SetActive(ctx, deputy.ID, false)
	require.NoError(t, err)
	_, err = svc.SetActive(ctx, boss.ID, false)
	assert.Equal(t, apperror.KindInvalidState, apperror.KindOf(err))

	_, err = svc.SetActive(ctx, "not-a-uuid", true)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestChangeAndResetPassword(t *testing.T) {
	svc := newUserService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserRequest{Username: "ops", Email: "ops@example.com", Password: "secret1", Role: model.RoleUser})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "secret2"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	err = svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "short"})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	require.NoError(t, svc.ChangePassword(ctx, user.ID, ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2"}))
	_, err = svc.Login(ctx, LoginUserRequest{Email: "ops@example.com", Password: "secret1"})
	assert.Equal(t, apperror.KindUnauthorized, apperror.KindOf(err))
	_, err = svc.Login(ctx, LoginUserRequest{Email: "ops@example.com", Password: "secret2"})
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, user.ID, ResetPasswordRequest{NewPassword: "secret3"}))
	_, err = svc.Login(ctx, LoginUserRequest{Email: "ops@example.com", Password: "secret3"})
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, "00000000-0000-0000-0000-000000000001", ResetPasswordRequest{NewPassword: "secret4"})
	assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
}
