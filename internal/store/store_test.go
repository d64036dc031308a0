package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelflineapp/shelfline-server/internal/domain"
	"github.com/shelflineapp/shelfline-server/internal/store"
)

func TestStore_AuthorNameIndex(t *testing.T) {
	s := setupTestStore(t)

	author := &domain.Author{Name: "Robert Martin"}
	author.ID = "author-1"
	author.InitTimestamps()

	require.NoError(t, s.Authors.Create(context.Background(), author.ID, author))

	found, err := s.Authors.GetByIndex(context.Background(), "name", "Robert Martin")
	require.NoError(t, err)
	assert.Equal(t, "author-1", found.ID)

	// Same name again conflicts on the index.
	dup := &domain.Author{Name: "Robert Martin"}
	dup.ID = "author-2"
	err = s.Authors.Create(context.Background(), dup.ID, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestStore_UsernameUnique(t *testing.T) {
	s := setupTestStore(t)

	user := &domain.User{Username: "mluukkai", FavouriteGenre: "refactoring"}
	user.ID = "user-1"
	require.NoError(t, s.Users.Create(context.Background(), user.ID, user))

	dup := &domain.User{Username: "mluukkai"}
	dup.ID = "user-2"
	err := s.Users.Create(context.Background(), dup.ID, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	// Username matching is exact, not case-folded.
	other := &domain.User{Username: "MLuukkai"}
	other.ID = "user-3"
	require.NoError(t, s.Users.Create(context.Background(), other.ID, other))
}

func TestStore_InMemory(t *testing.T) {
	s, err := store.NewInMemory(nil)
	require.NoError(t, err)
	defer s.Close()

	book := &domain.Book{Title: "Clean Code", Published: 2008, AuthorID: "author-1", Genres: []string{"refactoring"}}
	book.ID = "book-1"
	require.NoError(t, s.Books.Create(context.Background(), book.ID, book))

	got, err := s.Books.Get(context.Background(), "book-1")
	require.NoError(t, err)
	assert.Equal(t, "Clean Code", got.Title)
	assert.True(t, got.HasGenre("refactoring"))
	assert.False(t, got.HasGenre("Refactoring"))
}
