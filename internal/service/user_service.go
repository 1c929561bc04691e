package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"erp/internal/apperror"
	"erp/internal/config"
	"erp/internal/model"
	"erp/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
}

type UpdateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email" binding:"omitempty,email"`
	Password string `json:"password" binding:"omitempty,min=6"`
	Role     string `json:"role"`
	IsActive *bool  `json:"is_active"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// DTO for returning User without exposing the password hash
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id string) error
	// SetActive enables or disables a login. The last active Admin cannot be
	// disabled.
	SetActive(ctx context.Context, id string, active bool) (*UserResponse, error)
	// ChangePassword lets a user replace their own password after proving the
	// current one.
	ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error
	// ResetPassword sets a new password without the old one. Admin only.
	ResetPassword(ctx context.Context, id string, req ResetPasswordRequest) error
	// EnsureAdmin creates the configured administrator when no Admin exists yet.
	EnsureAdmin(ctx context.Context, admin config.AdminConfig) error
}

type userService struct {
	repo   repository.UserRepository
	jwt    config.JWTConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, jwtCfg config.JWTConfig, logger *zap.Logger) UserService {
	return &userService{repo: repo, jwt: jwtCfg, logger: logger, now: time.Now}
}

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

var errBadCredentials = apperror.Unauthorized("invalid email or password")

func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if !model.ValidRole(req.Role) {
		return nil, apperror.Validation("invalid role: must be %s or %s", model.RoleAdmin, model.RoleUser)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRegex.MatchString(email) {
		return nil, apperror.Validation("invalid email format")
	}

	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, apperror.Validation("username already exists")
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, apperror.Validation("email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal("failed to hash password", err)
	}

	user := &model.User{
		Username: req.Username,
		Email:    email,
		Password: string(hashedPassword),
		Role:     req.Role,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errBadCredentials
	}
	if !user.IsActive {
		return nil, apperror.Unauthorized("account is disabled")
	}

	expiresAt := s.now().Add(time.Duration(s.jwt.TTLHours) * time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"exp":  expiresAt.Unix(),
		"iat":  s.now().Unix(),
	})

	tokenString, err := token.SignedString(s.jwt.SigningKey())
	if err != nil {
		return nil, apperror.Internal("failed to generate token", err)
	}

	s.logger.Info("user logged in", zap.String("user_id", user.ID.String()), zap.String("role", user.Role))
	return &TokenResponse{Token: tokenString, ExpiresAt: expiresAt}, nil
}

func (s *userService) find(ctx context.Context, id string) (*model.User, error) {
	uid, err := parseID("user", id)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, uid)
	if err != nil {
		return nil, lookupErr(err, "user", id)
	}
	return user, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	page, limit = normalizePage(page, limit)

	users, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}
	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Role != "" {
		if !model.ValidRole(req.Role) {
			return nil, apperror.Validation("invalid role: must be %s or %s", model.RoleAdmin, model.RoleUser)
		}
		user.Role = req.Role
	}

	if req.Username != "" && req.Username != user.Username {
		if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
			return nil, apperror.Validation("username already exists")
		}
		user.Username = req.Username
	}

	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		if !emailRegex.MatchString(email) {
			return nil, apperror.Validation("invalid email format")
		}
		if _, err := s.repo.GetByEmail(ctx, email); err == nil {
			return nil, apperror.Validation("email already exists")
		}
		user.Email = email
	}

	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, apperror.Internal("failed to hash password", err)
		}
		user.Password = string(hashed)
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return mapToResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == model.RoleAdmin {
		admins, err := s.repo.CountByRole(ctx, model.RoleAdmin)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return apperror.InvalidState("cannot delete the last administrator")
		}
	}
	return s.repo.SoftDelete(ctx, user.ID)
}

func (s *userService) SetActive(ctx context.Context, id string, active bool) (*UserResponse, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsActive == active {
		return mapToResponse(user), nil
	}
	if !active && user.Role == model.RoleAdmin {
		admins, err := s.repo.CountActiveByRole(ctx, model.RoleAdmin)
		if err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, apperror.InvalidState("cannot deactivate the last active administrator")
		}
	}
	user.IsActive = active
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	s.logger.Info("user activation changed", zap.String("user_id", user.ID.String()), zap.Bool("active", active))
	return mapToResponse(user), nil
}

func (s *userService) setPassword(ctx context.Context, user *model.User, password string) error {
	if len(password) < 6 {
		return apperror.Validation("password must be at least 6 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperror.Internal("failed to hash password", err)
	}
	user.Password = string(hashed)
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (s *userService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	user, err := s.find(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return apperror.Validation("current password is incorrect")
	}
	return s.setPassword(ctx, user, req.NewPassword)
}

func (s *userService) ResetPassword(ctx context.Context, id string, req ResetPasswordRequest) error {
	user, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, user, req.NewPassword); err != nil {
		return err
	}
	s.logger.Info("password reset", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *userService) EnsureAdmin(ctx context.Context, admin config.AdminConfig) error {
	n, err := s.repo.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return nil
	}
	if admin.Email == "" || admin.Password == "" {
		s.logger.Warn("no administrator exists and ADMIN_EMAIL/ADMIN_PASSWORD are not set")
		return nil
	}

	if existing, err := s.repo.GetByEmail(ctx, strings.ToLower(admin.Email)); err == nil {
		existing.Role = model.RoleAdmin
		existing.IsActive = true
		return s.repo.Update(ctx, existing)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if _, err := s.CreateUser(ctx, CreateUserRequest{
		Username: admin.Username,
		Email:    admin.Email,
		Password: admin.Password,
		Role:     model.RoleAdmin,
	}); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	s.logger.Info("administrator seeded", zap.String("email", admin.Email))
	return nil
}
