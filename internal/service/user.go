package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shelflineapp/shelfline-server/internal/auth"
	"github.com/shelflineapp/shelfline-server/internal/domain"
	domainerrors "github.com/shelflineapp/shelfline-server/internal/errors"
	"github.com/shelflineapp/shelfline-server/internal/id"
	"github.com/shelflineapp/shelfline-server/internal/ratelimit"
	"github.com/shelflineapp/shelfline-server/internal/store"
)

// invalidCredentialsMessage is deliberately identical for unknown users and
// wrong passwords so callers cannot enumerate usernames.
const invalidCredentialsMessage = "invalid username or password"

// UserService handles account registration, login, and token verification.
type UserService struct {
	store        *store.Store
	tokenService *auth.TokenService
	verifier     auth.CredentialVerifier
	loginLimiter *ratelimit.KeyedRateLimiter
	logger       *slog.Logger
}

// NewUserService creates a new user service.
func NewUserService(
	st *store.Store,
	tokenService *auth.TokenService,
	verifier auth.CredentialVerifier,
	loginLimiter *ratelimit.KeyedRateLimiter,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		store:        st,
		tokenService: tokenService,
		verifier:     verifier,
		loginLimiter: loginLimiter,
		logger:       logger,
	}
}

// CreateUserRequest contains new account data.
type CreateUserRequest struct {
	Username       string `json:"username" validate:"required,min=3"`
	FavouriteGenre string `json:"favouriteGenre" validate:"required,min=3"`
}

// LoginRequest contains login credentials.
// No shape validation: malformed input fails the same way as wrong
// credentials so the error reveals nothing about which part was bad.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries a freshly issued access token.
type TokenResponse struct {
	Value string `json:"value"`
}

// CreateUser registers a new account. No authentication is required.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*domain.User, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	userID, err := id.Generate("user")
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	user := &domain.User{
		Username:       req.Username,
		FavouriteGenre: req.FavouriteGenre,
	}
	user.ID = userID
	user.InitTimestamps()

	if err := s.store.Users.Create(ctx, userID, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.ValidationWithDetails(
				"username already taken",
				map[string]any{"username": req.Username},
			)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("user created", "user_id", userID, "username", user.Username)
	}

	return user, nil
}

// Login verifies credentials and issues an access token.
// Unknown usernames, wrong passwords, and empty input all produce the
// same error.
func (s *UserService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	if s.loginLimiter != nil && !s.loginLimiter.Allow(req.Username) {
		return nil, domainerrors.RateLimited("too many login attempts, slow down")
	}

	user, lookupErr := s.store.Users.GetByIndex(ctx, "username", req.Username)

	// Always run credential verification, even for unknown users, so the
	// two failure paths take comparable time.
	ok, err := s.verifier.Verify(req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	if lookupErr != nil {
		if errors.Is(lookupErr, store.ErrNotFound) {
			return nil, domainerrors.InvalidCredentials(invalidCredentialsMessage)
		}
		return nil, fmt.Errorf("look up user: %w", lookupErr)
	}
	if !ok {
		return nil, domainerrors.InvalidCredentials(invalidCredentialsMessage)
	}

	token, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	}

	return &TokenResponse{Value: token}, nil
}

// VerifyAccessToken resolves a bearer token to its user.
// Returns InvalidToken when the token fails verification, NotFound when the
// token is valid but its user no longer exists.
func (s *UserService) VerifyAccessToken(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokenService.VerifyAccessToken(token)
	if err != nil {
		return nil, domainerrors.ErrInvalidToken.WithCause(err)
	}

	user, err := s.store.Users.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFound("user no longer exists")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	return user, nil
}

// ListUsers returns all registered users.
func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	users := make([]*domain.User, 0)
	for user, err := range s.store.Users.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		users = append(users, user)
	}
	return users, nil
}
