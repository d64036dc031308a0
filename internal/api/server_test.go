package api

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelflineapp/shelfline-server/internal/auth"
	"github.com/shelflineapp/shelfline-server/internal/events"
	gql "github.com/shelflineapp/shelfline-server/internal/graphql"
	"github.com/shelflineapp/shelfline-server/internal/service"
	"github.com/shelflineapp/shelfline-server/internal/store"
)

const testSecret = "secret"

// setupServerTest wires a full server against temporary storage.
func setupServerTest(t *testing.T) *Server {
	t.Helper()

	discard := slog.New(slog.DiscardHandler)

	s, err := store.NewInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	notifier := events.NewNotifier(discard)
	ctx, cancel := context.WithCancel(context.Background())
	go notifier.Start(ctx)
	t.Cleanup(cancel)

	authKey, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	tokenService, err := auth.NewTokenService(authKey, time.Hour)
	require.NoError(t, err)

	users := service.NewUserService(s, tokenService, auth.NewSharedSecretVerifier(testSecret), nil, nil)
	catalog := service.NewCatalogService(s, nil, notifier, nil)

	schema, err := gql.NewSchema(catalog, users, notifier, discard)
	require.NoError(t, err)

	handler := gql.NewHandler(schema, users, discard)

	return NewServer(s, handler, "Shelfline Test", discard)
}

// postGraphQL sends a GraphQL request and decodes the response body.
func postGraphQL(t *testing.T, srv *Server, query, token string) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	body, err := json.Marshal(map[string]any{"query": query})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return decoded, rec
}

func TestServer_HealthCheck(t *testing.T) {
	srv := setupServerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "Shelfline Test", body["name"])
}

func TestServer_GraphQLQuery(t *testing.T) {
	srv := setupServerTest(t)

	body, rec := postGraphQL(t, srv, `{ bookCount authorCount }`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]any)
	assert.EqualValues(t, 0, data["bookCount"])
	assert.EqualValues(t, 0, data["authorCount"])
}

func TestServer_GraphQLAuthFlow(t *testing.T) {
	srv := setupServerTest(t)

	// Register and log in over the wire.
	body, _ := postGraphQL(t, srv, `
		mutation { createUser(username: "mluukkai", favouriteGenre: "refactoring") { username } }`, "")
	require.Nil(t, body["errors"], "unexpected errors: %v", body["errors"])

	body, _ = postGraphQL(t, srv, `
		mutation { login(username: "mluukkai", password: "secret") { value } }`, "")
	require.Nil(t, body["errors"], "unexpected errors: %v", body["errors"])

	token := body["data"].(map[string]any)["login"].(map[string]any)["value"].(string)
	require.NotEmpty(t, token)

	// Guarded mutation fails without the token.
	body, _ = postGraphQL(t, srv, `
		mutation { addBook(title: "Clean Code", author: "Robert Martin", published: 2008, genres: ["refactoring"]) { title } }`, "")
	errs := body["errors"].([]any)
	require.NotEmpty(t, errs)
	first := errs[0].(map[string]any)
	assert.Equal(t, "NOT_AUTHENTICATED", first["extensions"].(map[string]any)["code"])

	// And succeeds with it.
	body, _ = postGraphQL(t, srv, `
		mutation { addBook(title: "Clean Code", author: "Robert Martin", published: 2008, genres: ["refactoring"]) { title author { name } } }`, token)
	require.Nil(t, body["errors"], "unexpected errors: %v", body["errors"])

	book := body["data"].(map[string]any)["addBook"].(map[string]any)
	assert.Equal(t, "Clean Code", book["title"])
	assert.Equal(t, "Robert Martin", book["author"].(map[string]any)["name"])
}

func TestServer_GraphQLBadRequest(t *testing.T) {
	srv := setupServerTest(t)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Empty query is rejected too.
	req = httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader([]byte(`{"query": ""}`)))
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_GraphQLMethodNotAllowed(t *testing.T) {
	srv := setupServerTest(t)

	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
