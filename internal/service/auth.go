package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/mindflow/internal/apperror"
	"github.com/sakif/mindflow/internal/auth"
	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/repository"
)

// Login failures share one message so callers cannot probe which emails
// are registered.
const msgInvalidCredentials = "Invalid email or password"

// AuthService handles registration, login and account deletion.
type AuthService struct {
	users          repository.UserRepository
	tokens         *auth.TokenService
	passwords      *auth.PasswordService
	initialCredits int
	logger         *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	initialCredits int,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:          users,
		tokens:         tokens,
		passwords:      passwords,
		initialCredits: initialCredits,
		logger:         logger,
	}
}

// AuthResult bundles the user with a freshly issued access token.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates an account with the configured starting credits and
// signs the new user in.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "Email and password are required")
	}

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperror.ValidationFailed("email", "User already exists")
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	hash, err := s.passwords.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, apperror.ValidationFailed("password", "Password must be 72 bytes or fewer")
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{
		Email:    email,
		Password: hash,
		Name:     strings.TrimSpace(name),
		Credits:  s.initialCredits,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration of the same email
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ValidationFailed("email", "User already exists")
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.Int("credits", user.Credits),
	)
	return &AuthResult{User: user, Token: token}, nil
}

// Login checks the credentials of an active account.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.ValidationFailed("", msgInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}
	if user.IsDeleted() {
		return nil, apperror.ValidationFailed("", msgInvalidCredentials)
	}

	if err := s.passwords.Verify(user.Password, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Info("login rejected", slog.String("user_id", user.ID))
			return nil, apperror.ValidationFailed("", msgInvalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	token, err := s.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token: %w", err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// DeleteAccount soft-deletes the user. Issued tokens stay valid until they
// expire, but login is refused from now on.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.users.SoftDelete(ctx, userID); err != nil {
		return fmt.Errorf("service/auth: deleting account: %w", err)
	}
	s.logger.Info("account deleted", slog.String("user_id", userID))
	return nil
}
