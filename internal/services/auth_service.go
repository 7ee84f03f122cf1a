package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"camp-ops-backend/internal/config"
	"camp-ops-backend/internal/models"
	"camp-ops-backend/internal/repositories"
	"camp-ops-backend/internal/utils"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

const sessionTTL = 12 * time.Hour

type AuthService struct {
	users repositories.UserRepository
	cfg   *config.Config
	now   func() time.Time
}

func NewAuthService(users repositories.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{users: users, cfg: cfg, now: time.Now}
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func IsValidRole(role string) bool {
	return role == models.RoleAdmin || role == models.RoleFinance || role == models.RoleStaff
}

func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*LoginResponse, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, NewServiceError("email and password are required", ErrInvalidInput, nil)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewServiceError("invalid credentials", ErrAuthRequired, nil)
		}
		return nil, NewServiceError("failed to load user", ErrStoreUnavailable, err)
	}
	if err := utils.CheckPassword(password, user.Password); err != nil {
		if !errors.Is(err, utils.ErrPasswordMismatch) {
			return nil, NewServiceError("stored credentials are unreadable", ErrStoreUnavailable, err)
		}
		return nil, NewServiceError("invalid credentials", ErrAuthRequired, nil)
	}

	expires := s.now().Add(sessionTTL)
	token, err := s.generateJWT(user, expires)
	if err != nil {
		return nil, NewServiceError("failed to generate token", ErrStoreUnavailable, err)
	}

	user.Password = ""
	return &LoginResponse{Token: token, ExpiresAt: expires, User: user}, nil
}

func (s *AuthService) CreateUser(ctx context.Context, email, password, role string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	role = strings.TrimSpace(strings.ToLower(role))

	if !IsValidRole(role) {
		return nil, NewServiceError("invalid role: must be admin, finance, or staff", ErrInvalidInput, nil)
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return nil, NewServiceError(err.Error(), ErrInvalidInput, err)
	}
	user := &models.User{Email: email, Password: hashed, Role: role}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrEmailTaken) {
			return nil, NewServiceError("email already registered", ErrInvalidInput, err)
		}
		return nil, NewServiceError("failed to create user", ErrStoreUnavailable, err)
	}

	user.Password = ""
	return user, nil
}

func (s *AuthService) generateJWT(user *models.User, expires time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"role":    user.Role,
		"exp":     expires.Unix(),
		"iat":     s.now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
}

func (s *AuthService) GetUserProfile(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storeError("user", err)
	}
	user.Password = ""
	return user, nil
}
