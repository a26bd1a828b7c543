package users

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-vitotrips/internal/apperror"
	"ms-vitotrips/internal/auth"
	"ms-vitotrips/internal/logger"
	"ms-vitotrips/internal/models"
)

const minPasswordLength = 8

type DBLayer interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// CacheEvicter drops cached principals of deleted accounts.
type CacheEvicter interface {
	Evict(ctx context.Context, email string) error
}

type UserService struct {
	DB     DBLayer
	Tokens *auth.TokenService
	Cache  CacheEvicter
	Logger *logger.Logger
}

func NewUserService(db DBLayer, tokens *auth.TokenService, cache CacheEvicter, log *logger.Logger) *UserService {
	return &UserService{DB: db, Tokens: tokens, Cache: cache, Logger: log}
}

// Register creates a TRAVELER account unless TOUR_OPERATOR is requested, and
// logs the new user in.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if req.Role == "" {
		req.Role = models.RoleTraveler
	}
	if req.Role == models.RoleAdmin {
		return nil, apperror.Validation("administrators are created by other administrators")
	}
	user, err := s.create(ctx, models.CreateUserRequest{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return nil, err
	}
	return s.authResponse(user)
}

func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.DB.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("bad credentials for %s", req.Email))
		return nil, ErrInvalidCredentials
	}
	return s.authResponse(user)
}

func (s *UserService) CreateUser(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	return s.create(ctx, req)
}

func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.DB.GetUserByID(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.DB.ListUsers(ctx)
}

func (s *UserService) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	if !role.Valid() {
		return nil, apperror.Validation("unknown role %q", role)
	}
	return s.DB.ListUsersByRole(ctx, role)
}

func (s *UserService) DeleteUser(ctx context.Context, id string) error {
	user, err := s.DB.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.DB.DeleteUser(ctx, id); err != nil {
		return err
	}
	if s.Cache != nil {
		if err := s.Cache.Evict(ctx, user.Email); err != nil {
			s.Logger.Warn("AUTH", fmt.Sprintf("failed to evict cached principal %s: %v", user.Email, err))
		}
	}
	s.Logger.Info("USERS", fmt.Sprintf("Deleted user %s", id))
	return nil
}

func (s *UserService) create(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	email := normalizeEmail(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.Validation("invalid email %q", req.Email)
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.Validation("name is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, apperror.Validation("password must be at least %d characters", minPasswordLength)
	}
	if !req.Role.Valid() {
		return nil, apperror.Validation("unknown role %q", req.Role)
	}

	existing, err := s.DB.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Validation("email %s is already registered", email)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.DB.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.Logger.Info("USERS", fmt.Sprintf("Created %s account %s", user.Role, user.Email))
	return user, nil
}

func (s *UserService) authResponse(user *models.User) (*models.AuthResponse, error) {
	token, err := s.Tokens.Issue(user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &models.AuthResponse{Token: token, Email: user.Email, Role: user.Role, Name: user.Name}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
