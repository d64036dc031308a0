package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelflineapp/shelfline-server/internal/domain"
)

func setupTestIndex(t *testing.T) *SearchIndex {
	t.Helper()

	idx, err := NewSearchIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = idx.Close()
	})

	return idx
}

func indexTestBooks(t *testing.T, idx *SearchIndex) {
	t.Helper()

	books := []*BookDocument{
		{ID: "book-1", Title: "Clean Code", Author: "Robert Martin", Genres: []string{"refactoring"}, Published: 2008},
		{ID: "book-2", Title: "Agile software development", Author: "Robert Martin", Genres: []string{"agile", "patterns", "design"}, Published: 2002},
		{ID: "book-3", Title: "Refactoring, edition 2", Author: "Martin Fowler", Genres: []string{"refactoring"}, Published: 2018},
		{ID: "book-4", Title: "Crime and punishment", Author: "Fyodor Dostoevsky", Genres: []string{"classic", "crime"}, Published: 1866},
	}
	require.NoError(t, idx.IndexBooks(books))
}

func TestSearch_ByTitle(t *testing.T) {
	idx := setupTestIndex(t)
	indexTestBooks(t, idx)

	result, err := idx.Search(context.Background(), SearchParams{Query: "refactoring"})
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)

	// Title match should outrank the genre-only matches.
	assert.Equal(t, "book-3", result.Hits[0].ID)
}

func TestSearch_ByAuthor(t *testing.T) {
	idx := setupTestIndex(t)
	indexTestBooks(t, idx)

	result, err := idx.Search(context.Background(), SearchParams{Query: "dostoevsky"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "book-4", result.Hits[0].ID)
}

func TestSearch_NoResults(t *testing.T) {
	idx := setupTestIndex(t)
	indexTestBooks(t, idx)

	result, err := idx.Search(context.Background(), SearchParams{Query: "nonexistent"})
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
	assert.Equal(t, uint64(0), result.Total)
}

func TestIndexBook_FromDomain(t *testing.T) {
	idx := setupTestIndex(t)

	book := &domain.Book{Title: "The Demon", Published: 1872, AuthorID: "author-1", Genres: []string{"classic"}}
	book.ID = "book-9"

	require.NoError(t, idx.IndexBook(NewBookDocument(book, "Fyodor Dostoevsky")))

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	result, err := idx.Search(context.Background(), SearchParams{Query: "demon"})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "book-9", result.Hits[0].ID)
	assert.Equal(t, "The Demon", result.Hits[0].Title)
}

func TestDeleteBook(t *testing.T) {
	idx := setupTestIndex(t)
	indexTestBooks(t, idx)

	require.NoError(t, idx.DeleteBook("book-1"))

	result, err := idx.Search(context.Background(), SearchParams{Query: "clean"})
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
}

func TestRebuild_EmptiesIndex(t *testing.T) {
	idx := setupTestIndex(t)
	indexTestBooks(t, idx)

	require.NoError(t, idx.Rebuild())

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}
