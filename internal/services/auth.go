package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"taxdesk/internal/domain"
	"taxdesk/internal/metrics"
	"taxdesk/internal/util"
	apperrors "taxdesk/pkg/errors"
)

// LoginResult carries a bearer token for the staff endpoints
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// CreateUserParams describes a new staff account
type CreateUserParams struct {
	Username string
	Email    string
	Password string
	FullName string
	IsAdmin  bool
	IsStaff  bool
}

// AuthService authenticates staff accounts
type AuthService struct {
	db     *gorm.DB
	tokens *util.TokenManager
	log    *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(db *gorm.DB, tokens *util.TokenManager, log *zap.Logger) *AuthService {
	return &AuthService{db: db, tokens: tokens, log: log.Named("auth")}
}

// Login checks credentials and issues a token
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	unauthorized := apperrors.New(apperrors.ErrCodeUnauthorized, "incorrect username or password")

	var user domain.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		metrics.RecordAuthAttempt(false)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Info("login failed: unknown user", zap.String("username", username))
			return nil, unauthorized
		}
		s.log.Error("login failed: database error", zap.Error(err))
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to load user", err)
	}

	if !util.CheckPasswordHash(password, user.HashedPassword) {
		s.log.Info("login failed: bad password", zap.String("username", username))
		metrics.RecordAuthAttempt(false)
		return nil, unauthorized
	}
	if !user.IsActive {
		s.log.Info("login failed: inactive user", zap.String("username", username))
		metrics.RecordAuthAttempt(false)
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "user account is inactive")
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		s.log.Warn("failed to record last login", zap.Error(err))
	}

	token, err := s.tokens.GenerateToken(&user)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to generate token", err)
	}

	s.log.Info("login successful", zap.String("username", username), zap.Bool("admin", user.IsAdmin))
	metrics.RecordAuthAttempt(true)

	return &LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokens.Expiry().Seconds()),
	}, nil
}

// Authenticate resolves a bearer token to an active staff account
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeUnauthorized, "invalid or expired token", err)
	}

	var user domain.User
	if err := s.db.WithContext(ctx).Where("username = ?", claims.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "user not found")
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to load user", err)
	}

	if !user.IsActive {
		return nil, apperrors.New(apperrors.ErrCodeUnauthorized, "user account is inactive")
	}
	if !user.CanReadQueries() {
		return nil, apperrors.New(apperrors.ErrCodeForbidden, "staff or admin access required")
	}
	return &user, nil
}

// CreateUser adds a staff account; usernames and emails are unique
func (s *AuthService) CreateUser(ctx context.Context, p CreateUserParams) (*domain.User, error) {
	username := strings.TrimSpace(p.Username)
	email := strings.ToLower(strings.TrimSpace(p.Email))

	if username == "" {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, "username is required")
	}
	if !domain.IsEmailAddress(email) {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, "invalid email address")
	}
	if len(p.Password) < 8 {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, "password must be at least 8 characters")
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.User{}).
		Where("username = ? OR email = ?", username, email).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to check existing users", err)
	}
	if count > 0 {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, "username or email already registered")
	}

	hashed, err := util.HashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:       username,
		Email:          email,
		HashedPassword: hashed,
		IsActive:       true,
		IsAdmin:        p.IsAdmin,
		IsStaff:        p.IsStaff || p.IsAdmin,
	}
	if name := strings.TrimSpace(p.FullName); name != "" {
		user.FullName = &name
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to create user", err)
	}

	s.log.Info("user created", zap.String("username", username), zap.Uint("id", user.ID))
	return user, nil
}
