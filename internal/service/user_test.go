package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelflineapp/shelfline-server/internal/auth"
	domainerrors "github.com/shelflineapp/shelfline-server/internal/errors"
	"github.com/shelflineapp/shelfline-server/internal/ratelimit"
	"github.com/shelflineapp/shelfline-server/internal/store"
)

const testSecret = "secret"

// setupUserTest creates a user service with temporary storage for testing.
func setupUserTest(t *testing.T, limiter *ratelimit.KeyedRateLimiter) (*UserService, *store.Store) {
	t.Helper()

	s, err := store.NewInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	authKey, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)

	tokenService, err := auth.NewTokenService(authKey, 24*time.Hour)
	require.NoError(t, err)

	verifier := auth.NewSharedSecretVerifier(testSecret)

	return NewUserService(s, tokenService, verifier, limiter, nil), s
}

func TestUserService_CreateUser_Success(t *testing.T) {
	svc, _ := setupUserTest(t, nil)

	user, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Username:       "mluukkai",
		FavouriteGenre: "refactoring",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "mluukkai", user.Username)
	assert.Equal(t, "refactoring", user.FavouriteGenre)
}

func TestUserService_CreateUser_ShortUsername(t *testing.T) {
	svc, _ := setupUserTest(t, nil)

	_, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Username:       "ab",
		FavouriteGenre: "classics",
	})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	var domainErr *domainerrors.Error
	require.True(t, domainerrors.As(err, &domainErr))
	assert.Contains(t, domainErr.Extensions(), "invalidArgs")
}

func TestUserService_CreateUser_DuplicateUsername(t *testing.T) {
	svc, _ := setupUserTest(t, nil)

	_, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Username:       "mluukkai",
		FavouriteGenre: "refactoring",
	})
	require.NoError(t, err)

	_, err = svc.CreateUser(context.Background(), CreateUserRequest{
		Username:       "mluukkai",
		FavouriteGenre: "classics",
	})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestUserService_Login_Success(t *testing.T) {
	svc, _ := setupUserTest(t, nil)

	user, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Username:       "mluukkai",
		FavouriteGenre: "refactoring",
	})
	require.NoError(t, err)

	token, err := svc.Login(context.Background(), LoginRequest{
		Username: "mluukkai",
		Password: testSecret,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token.Value)

	// The token resolves back to the same user.
	verified, err := svc.VerifyAccessToken(context.Background(), token.Value)
	require.NoError(t, err)
	assert.Equal(t, user.ID, verified.ID)
	assert.Equal(t, "mluukkai", verified.Username)
}

func TestUserService_Login_UniformFailures(t *testing.T) {
	svc, _ := setupUserTest(t, nil)

	_, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Username:       "mluukkai",
		FavouriteGenre: "refactoring",
	})
	require.NoError(t, err)

	// Unknown user and wrong password yield identical errors.
	_, unknownErr := svc.Login(context.Background(), LoginRequest{
		Username: "nobody",
		Password: testSecret,
	})
	_, wrongPassErr := svc.Login(context.Background(), LoginRequest{
		Username: "mluukkai",
		Password: "wrong",
	})

	require.Error(t, unknownErr)
	require.Error(t, wrongPassErr)
	assert.True(t, domainerrors.Is(unknownErr, domainerrors.ErrInvalidCredentials))
	assert.True(t, domainerrors.Is(wrongPassErr, domainerrors.ErrInvalidCredentials))
	assert.Equal(t, unknownErr.Error(), wrongPassErr.Error())

	// Empty credentials take the same path, not a validation error.
	_, emptyUserErr := svc.Login(context.Background(), LoginRequest{
		Username: "",
		Password: testSecret,
	})
	_, emptyPassErr := svc.Login(context.Background(), LoginRequest{
		Username: "mluukkai",
		Password: "",
	})

	require.Error(t, emptyUserErr)
	require.Error(t, emptyPassErr)
	assert.True(t, domainerrors.Is(emptyUserErr, domainerrors.ErrInvalidCredentials))
	assert.True(t, domainerrors.Is(emptyPassErr, domainerrors.ErrInvalidCredentials))
	assert.Equal(t, unknownErr.Error(), emptyUserErr.Error())
	assert.Equal(t, unknownErr.Error(), emptyPassErr.Error())
}

func TestUserService_Login_RateLimited(t *testing.T) {
	limiter := ratelimit.New(0.1, 2)
	svc, _ := setupUserTest(t, limiter)

	_, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Username:       "mluukkai",
		FavouriteGenre: "refactoring",
	})
	require.NoError(t, err)

	// Exhaust the burst.
	for i := 0; i < 2; i++ {
		_, err := svc.Login(context.Background(), LoginRequest{
			Username: "mluukkai",
			Password: "wrong",
		})
		require.True(t, domainerrors.Is(err, domainerrors.ErrInvalidCredentials))
	}

	_, err = svc.Login(context.Background(), LoginRequest{
		Username: "mluukkai",
		Password: testSecret,
	})
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrRateLimited))

	// Other usernames are unaffected.
	_, err = svc.Login(context.Background(), LoginRequest{
		Username: "someone-else",
		Password: testSecret,
	})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrInvalidCredentials))
}

func TestUserService_VerifyAccessToken_Invalid(t *testing.T) {
	svc, _ := setupUserTest(t, nil)

	_, err := svc.VerifyAccessToken(context.Background(), "garbage")
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrInvalidToken))
}

func TestUserService_VerifyAccessToken_DeletedUser(t *testing.T) {
	svc, s := setupUserTest(t, nil)

	user, err := svc.CreateUser(context.Background(), CreateUserRequest{
		Username:       "mluukkai",
		FavouriteGenre: "refactoring",
	})
	require.NoError(t, err)

	token, err := svc.Login(context.Background(), LoginRequest{
		Username: "mluukkai",
		Password: testSecret,
	})
	require.NoError(t, err)

	require.NoError(t, s.Users.Delete(context.Background(), user.ID))

	_, err = svc.VerifyAccessToken(context.Background(), token.Value)
	require.Error(t, err)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}
