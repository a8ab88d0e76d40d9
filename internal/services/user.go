package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/fittrack/apiserver/internal/store"
	"github.com/fittrack/apiserver/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id string) error
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo        UserRepository
	adminSecret string
	log         *zap.Logger
}

func NewUserService(repo UserRepository, adminSecret string, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{repo: repo, adminSecret: adminSecret, log: log.Named("users")}
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	AdminSecret string
}

// Register creates an active account. A matching admin secret creates an
// admin account; a non-matching one is rejected.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return types.User{}, invalid("request", "missing required fields")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return types.User{}, invalid("email", "is not a valid address")
	}

	isAdmin := false
	if secret := strings.TrimSpace(in.AdminSecret); secret != "" {
		if s.adminSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.adminSecret)) != 1 {
			return types.User{}, invalid("adminSecret", "is not valid")
		}
		isAdmin = true
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, invalid("email", "is already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		s.log.Error("check email", zap.Error(err))
		return types.User{}, persistence("check email", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		IsAdmin:      isAdmin,
		IsActive:     true,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, invalid("email", "is already registered")
		}
		s.log.Error("create user", zap.String("username", in.Username), zap.Error(err))
		return types.User{}, persistence("create user", err)
	}
	return user, nil
}

// Authenticate checks an email/password pair. Unknown emails and wrong
// passwords both yield ErrValidation so callers cannot tell them apart.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return types.User{}, invalid("request", "missing credentials")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, invalid("credentials", "invalid email or password")
		}
		s.log.Error("load user by email", zap.Error(err))
		return types.User{}, persistence("load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, invalid("credentials", "invalid email or password")
	}
	if !user.IsActive {
		return types.User{}, fmt.Errorf("account is disabled: %w", ErrAuthorization)
	}
	return user, nil
}

// ResetPassword replaces the password of the account with the given username.
func (s *UserService) ResetPassword(ctx context.Context, username, newPassword string) (types.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || newPassword == "" {
		return types.User{}, invalid("request", "missing required fields")
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, invalid("username", "is not registered")
		}
		s.log.Error("load user by username", zap.Error(err))
		return types.User{}, persistence("load user", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}
	user.PasswordHash = string(hashed)

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		s.log.Error("update password", zap.String("user_id", user.ID), zap.Error(err))
		return types.User{}, persistence("update user", err)
	}
	return updated, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	id, err := ParseID("userId", id)
	if err != nil {
		return types.User{}, err
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, notFound("user", id)
		}
		s.log.Error("load user", zap.String("user_id", id), zap.Error(err))
		return types.User{}, persistence("load user", err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		s.log.Error("list users", zap.Error(err))
		return nil, persistence("list users", err)
	}
	return users, nil
}

// SetActive toggles the account's active flag.
func (s *UserService) SetActive(ctx context.Context, id string, active bool) (types.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	user.IsActive = active
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		s.log.Error("set active", zap.String("user_id", user.ID), zap.Error(err))
		return types.User{}, persistence("update user", err)
	}
	return updated, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	id, err := ParseID("userId", id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound("user", id)
		}
		s.log.Error("delete user", zap.String("user_id", id), zap.Error(err))
		return persistence("delete user", err)
	}
	return nil
}
