package graphql

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelflineapp/shelfline-server/internal/auth"
	"github.com/shelflineapp/shelfline-server/internal/events"
	"github.com/shelflineapp/shelfline-server/internal/search"
	"github.com/shelflineapp/shelfline-server/internal/service"
	"github.com/shelflineapp/shelfline-server/internal/store"
)

const testSecret = "secret"

type schemaFixture struct {
	schema   *Schema
	store    *store.Store
	catalog  *service.CatalogService
	users    *service.UserService
	notifier *events.Notifier
}

// setupSchemaTest wires a full schema against temporary storage.
func setupSchemaTest(t *testing.T) *schemaFixture {
	t.Helper()

	s, err := store.NewInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	idx, err := search.NewSearchIndex(search.Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	notifier := events.NewNotifier(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go notifier.Start(ctx)
	t.Cleanup(cancel)

	authKey, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	tokenService, err := auth.NewTokenService(authKey, time.Hour)
	require.NoError(t, err)

	users := service.NewUserService(s, tokenService, auth.NewSharedSecretVerifier(testSecret), nil, nil)
	catalog := service.NewCatalogService(s, idx, notifier, nil)

	schema, err := NewSchema(catalog, users, notifier, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	return &schemaFixture{
		schema:   schema,
		store:    s,
		catalog:  catalog,
		users:    users,
		notifier: notifier,
	}
}

// exec runs a query against the schema with the given context.
func (f *schemaFixture) exec(ctx context.Context, query string, variables map[string]any) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         f.schema.Schema(),
		RequestString:  query,
		VariableValues: variables,
		Context:        ctx,
	})
}

// authedContext registers a user, logs in, and returns a context carrying
// the resulting bearer token's identity.
func (f *schemaFixture) authedContext(t *testing.T, username string) context.Context {
	t.Helper()

	_, err := f.users.CreateUser(context.Background(), service.CreateUserRequest{
		Username:       username,
		FavouriteGenre: "refactoring",
	})
	require.NoError(t, err)

	token, err := f.users.Login(context.Background(), service.LoginRequest{
		Username: username,
		Password: testSecret,
	})
	require.NoError(t, err)

	return BuildContext(context.Background(), "Bearer "+token.Value, f.users)
}

func (f *schemaFixture) addBook(t *testing.T, ctx context.Context, title, author string, published int, genres ...string) {
	t.Helper()

	_, err := f.catalog.AddBook(ctx, service.AddBookRequest{
		Title:     title,
		Author:    author,
		Published: published,
		Genres:    genres,
	})
	require.NoError(t, err)
}

func data(t *testing.T, result *graphql.Result) map[string]any {
	t.Helper()
	require.Empty(t, result.Errors, "unexpected errors: %v", result.Errors)
	m, ok := result.Data.(map[string]any)
	require.True(t, ok)
	return m
}

func TestSchema_Counts(t *testing.T) {
	f := setupSchemaTest(t)
	ctx := context.Background()

	f.addBook(t, ctx, "Clean Code", "Robert Martin", 2008, "refactoring")
	f.addBook(t, ctx, "Agile software development", "Robert Martin", 2002, "agile")
	f.addBook(t, ctx, "Refactoring, edition 2", "Martin Fowler", 2018, "refactoring")

	result := f.exec(ctx, `{ bookCount authorCount }`, nil)
	d := data(t, result)
	assert.Equal(t, 3, d["bookCount"])
	assert.Equal(t, 2, d["authorCount"])
}

func TestSchema_AllBooks_GenreFilter(t *testing.T) {
	f := setupSchemaTest(t)
	ctx := context.Background()

	f.addBook(t, ctx, "Clean Code", "Robert Martin", 2008, "refactoring")
	f.addBook(t, ctx, "Crime and punishment", "Fyodor Dostoevsky", 1866, "classic", "crime")

	result := f.exec(ctx, `{ allBooks(genre: "classic") { title author { name } genres } }`, nil)
	d := data(t, result)

	books, ok := d["allBooks"].([]any)
	require.True(t, ok)
	require.Len(t, books, 1)

	book := books[0].(map[string]any)
	assert.Equal(t, "Crime and punishment", book["title"])
	assert.Equal(t, "Fyodor Dostoevsky", book["author"].(map[string]any)["name"])

	// The author argument is tolerated but not applied.
	result = f.exec(ctx, `{ allBooks(author: "Robert Martin") { title } }`, nil)
	d = data(t, result)
	assert.Len(t, d["allBooks"].([]any), 2)
}

func TestSchema_AllAuthors_BookCountAndBorn(t *testing.T) {
	f := setupSchemaTest(t)
	ctx := context.Background()

	f.addBook(t, ctx, "Clean Code", "Robert Martin", 2008, "refactoring")
	f.addBook(t, ctx, "Agile software development", "Robert Martin", 2002, "agile")

	result := f.exec(ctx, `{ allAuthors { name born bookCount } }`, nil)
	d := data(t, result)

	authors, ok := d["allAuthors"].([]any)
	require.True(t, ok)
	require.Len(t, authors, 1)

	author := authors[0].(map[string]any)
	assert.Equal(t, "Robert Martin", author["name"])
	assert.Nil(t, author["born"])
	assert.Equal(t, 2, author["bookCount"])
}

func TestSchema_Me(t *testing.T) {
	f := setupSchemaTest(t)

	// Anonymous requests resolve me to null without an error.
	result := f.exec(context.Background(), `{ me { username favouriteGenre } }`, nil)
	d := data(t, result)
	assert.Nil(t, d["me"])

	ctx := f.authedContext(t, "mluukkai")
	result = f.exec(ctx, `{ me { username favouriteGenre } }`, nil)
	d = data(t, result)

	me, ok := d["me"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "mluukkai", me["username"])
	assert.Equal(t, "refactoring", me["favouriteGenre"])
}

const addBookMutation = `
	mutation AddBook($title: String!, $author: String!, $published: Int!, $genres: [String!]!) {
		addBook(title: $title, author: $author, published: $published, genres: $genres) {
			title
			published
			genres
			author { name bookCount }
		}
	}`

func TestSchema_AddBook_RequiresAuth(t *testing.T) {
	f := setupSchemaTest(t)

	result := f.exec(context.Background(), addBookMutation, map[string]any{
		"title":     "Clean Code",
		"author":    "Robert Martin",
		"published": 2008,
		"genres":    []any{"refactoring"},
	})

	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "not authenticated", result.Errors[0].Message)
	assert.Equal(t, "NOT_AUTHENTICATED", result.Errors[0].Extensions["code"])

	// Nothing was written.
	count, err := f.catalog.BookCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSchema_AddBook_Success(t *testing.T) {
	f := setupSchemaTest(t)
	ctx := f.authedContext(t, "mluukkai")

	result := f.exec(ctx, addBookMutation, map[string]any{
		"title":     "Clean Code",
		"author":    "Robert Martin",
		"published": 2008,
		"genres":    []any{"refactoring", "design"},
	})
	d := data(t, result)

	book, ok := d["addBook"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Clean Code", book["title"])
	assert.Equal(t, 2008, book["published"])
	assert.Equal(t, []any{"refactoring", "design"}, book["genres"])

	author := book["author"].(map[string]any)
	assert.Equal(t, "Robert Martin", author["name"])
	assert.Equal(t, 1, author["bookCount"])
}

func TestSchema_AddBook_ValidationExtensions(t *testing.T) {
	f := setupSchemaTest(t)
	ctx := f.authedContext(t, "mluukkai")

	result := f.exec(ctx, addBookMutation, map[string]any{
		"title":     "abc",
		"author":    "Robert Martin",
		"published": 2008,
		"genres":    []any{"refactoring"},
	})

	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "VALIDATION", result.Errors[0].Extensions["code"])
	assert.Contains(t, result.Errors[0].Extensions, "invalidArgs")
}

func TestSchema_EditAuthor(t *testing.T) {
	f := setupSchemaTest(t)
	ctx := f.authedContext(t, "mluukkai")

	f.addBook(t, ctx, "Clean Code", "Robert Martin", 2008, "refactoring")

	const mutation = `
		mutation EditAuthor($name: String!, $setBornTo: Int!) {
			editAuthor(name: $name, setBornTo: $setBornTo) { name born }
		}`

	result := f.exec(ctx, mutation, map[string]any{"name": "Robert Martin", "setBornTo": 1952})
	d := data(t, result)

	author, ok := d["editAuthor"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Robert Martin", author["name"])
	assert.Equal(t, 1952, author["born"])

	// An unknown author resolves to null, not an error.
	result = f.exec(ctx, mutation, map[string]any{"name": "Unknown Person", "setBornTo": 1980})
	d = data(t, result)
	assert.Nil(t, d["editAuthor"])
}

func TestSchema_EditAuthor_RequiresAuth(t *testing.T) {
	f := setupSchemaTest(t)

	result := f.exec(context.Background(), `
		mutation { editAuthor(name: "Robert Martin", setBornTo: 1952) { name } }`, nil)

	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "NOT_AUTHENTICATED", result.Errors[0].Extensions["code"])
}

func TestSchema_CreateUserAndLogin(t *testing.T) {
	f := setupSchemaTest(t)
	ctx := context.Background()

	result := f.exec(ctx, `
		mutation {
			createUser(username: "mluukkai", favouriteGenre: "refactoring") {
				username
				favouriteGenre
			}
		}`, nil)
	d := data(t, result)

	user := d["createUser"].(map[string]any)
	assert.Equal(t, "mluukkai", user["username"])

	result = f.exec(ctx, `
		mutation { login(username: "mluukkai", password: "secret") { value } }`, nil)
	d = data(t, result)

	token := d["login"].(map[string]any)["value"].(string)
	require.NotEmpty(t, token)

	// The token authenticates follow-up requests.
	authed := BuildContext(ctx, "Bearer "+token, f.users)
	result = f.exec(authed, `{ me { username } }`, nil)
	d = data(t, result)
	assert.Equal(t, "mluukkai", d["me"].(map[string]any)["username"])
}

func TestSchema_Login_InvalidCredentials(t *testing.T) {
	f := setupSchemaTest(t)
	ctx := context.Background()

	_, err := f.users.CreateUser(ctx, service.CreateUserRequest{
		Username:       "mluukkai",
		FavouriteGenre: "refactoring",
	})
	require.NoError(t, err)

	// Unknown user and wrong password are indistinguishable.
	unknown := f.exec(ctx, `mutation { login(username: "nobody", password: "secret") { value } }`, nil)
	wrongPass := f.exec(ctx, `mutation { login(username: "mluukkai", password: "wrong") { value } }`, nil)

	require.NotEmpty(t, unknown.Errors)
	require.NotEmpty(t, wrongPass.Errors)
	assert.Equal(t, "INVALID_CREDENTIALS", unknown.Errors[0].Extensions["code"])
	assert.Equal(t, wrongPass.Errors[0].Message, unknown.Errors[0].Message)
}

func TestSchema_SearchBooks(t *testing.T) {
	f := setupSchemaTest(t)
	ctx := context.Background()

	f.addBook(t, ctx, "Clean Code", "Robert Martin", 2008, "refactoring")
	f.addBook(t, ctx, "Crime and punishment", "Fyodor Dostoevsky", 1866, "classic")

	result := f.exec(ctx, `{ searchBooks(query: "dostoevsky") { title } }`, nil)
	d := data(t, result)

	books := d["searchBooks"].([]any)
	require.Len(t, books, 1)
	assert.Equal(t, "Crime and punishment", books[0].(map[string]any)["title"])
}

func TestSchema_BookAddedSubscription(t *testing.T) {
	f := setupSchemaTest(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := graphql.Subscribe(graphql.Params{
		Schema:        f.schema.Schema(),
		RequestString: `subscription { bookAdded { title author { name } genres } }`,
		Context:       ctx,
	})

	// Let the subscriber register before publishing.
	require.Eventually(t, func() bool {
		return f.notifier.SubscriberCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.addBook(t, context.Background(), "Clean Code", "Robert Martin", 2008, "refactoring")

	select {
	case result := <-results:
		require.NotNil(t, result)
		d := data(t, result)
		book := d["bookAdded"].(map[string]any)
		assert.Equal(t, "Clean Code", book["title"])
		assert.Equal(t, "Robert Martin", book["author"].(map[string]any)["name"])
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for subscription result")
	}

	// Cancelling the context ends the stream.
	cancel()
	require.Eventually(t, func() bool {
		return f.notifier.SubscriberCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchema_InternalErrorsAreMasked(t *testing.T) {
	f := setupSchemaTest(t)
	ctx := context.Background()

	f.addBook(t, ctx, "Clean Code", "Robert Martin", 2008, "refactoring")

	require.NoError(t, f.store.Close())

	// Count-backed fields never surface the storage engine's error text.
	result := f.exec(ctx, `{ bookCount }`, nil)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "internal server error", result.Errors[0].Message)
	assert.Equal(t, "INTERNAL", result.Errors[0].Extensions["code"])

	// List-backed fields fail the same way instead of reporting an
	// empty catalog.
	result = f.exec(ctx, `{ allBooks { title } }`, nil)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "internal server error", result.Errors[0].Message)
	assert.Equal(t, "INTERNAL", result.Errors[0].Extensions["code"])
}

func TestBuildContext_InvalidTokenIsAnonymous(t *testing.T) {
	f := setupSchemaTest(t)

	ctx := BuildContext(context.Background(), "Bearer garbage", f.users)
	assert.Nil(t, CurrentUser(ctx))

	ctx = BuildContext(context.Background(), "NotBearer abc", f.users)
	assert.Nil(t, CurrentUser(ctx))

	ctx = BuildContext(context.Background(), "", f.users)
	assert.Nil(t, CurrentUser(ctx))
}
