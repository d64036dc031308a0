// Package graphql exposes the catalog as a GraphQL API with subscriptions.
package graphql

import (
	"context"
	"strings"

	"github.com/shelflineapp/shelfline-server/internal/domain"
	domainerrors "github.com/shelflineapp/shelfline-server/internal/errors"
	"github.com/shelflineapp/shelfline-server/internal/service"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const contextKeyUser contextKey = "current_user"

// BuildContext resolves the Authorization header to a request identity.
//
// A valid bearer token attaches its user to the returned context. A missing,
// malformed, unverifiable, or orphaned token yields an anonymous context
// rather than an error; operations that require identity fail later at the
// guard, not here.
func BuildContext(ctx context.Context, authorization string, users *service.UserService) context.Context {
	if authorization == "" {
		return ctx
	}

	// The scheme is matched case-insensitively, as clients disagree on
	// "Bearer" vs "bearer".
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ctx
	}

	user, err := users.VerifyAccessToken(ctx, strings.TrimSpace(parts[1]))
	if err != nil {
		return ctx
	}

	return context.WithValue(ctx, contextKeyUser, user)
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(ctx context.Context) *domain.User {
	if user, ok := ctx.Value(contextKeyUser).(*domain.User); ok {
		return user
	}
	return nil
}

// RequireUser returns the authenticated user or a NotAuthenticated error.
// Mutations that change the catalog call this before touching the store.
func RequireUser(ctx context.Context) (*domain.User, error) {
	user := CurrentUser(ctx)
	if user == nil {
		return nil, domainerrors.NotAuthenticated("not authenticated")
	}
	return user, nil
}
