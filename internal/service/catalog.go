package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shelflineapp/shelfline-server/internal/domain"
	"github.com/shelflineapp/shelfline-server/internal/events"
	"github.com/shelflineapp/shelfline-server/internal/id"
	"github.com/shelflineapp/shelfline-server/internal/search"
	"github.com/shelflineapp/shelfline-server/internal/store"
)

// CatalogService handles books and authors.
type CatalogService struct {
	store    *store.Store
	index    *search.SearchIndex
	notifier *events.Notifier
	logger   *slog.Logger
}

// NewCatalogService creates a new catalog service.
// The search index and notifier are optional; a nil value disables that concern.
func NewCatalogService(
	st *store.Store,
	index *search.SearchIndex,
	notifier *events.Notifier,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		store:    st,
		index:    index,
		notifier: notifier,
		logger:   logger,
	}
}

// AddBookRequest contains the arguments for adding a book.
// Published is range-checked rather than required so year zero is accepted.
type AddBookRequest struct {
	Title     string   `json:"title" validate:"required,min=5"`
	Author    string   `json:"author" validate:"required,min=4"`
	Published int      `json:"published" validate:"gte=-4000,lte=9999"`
	Genres    []string `json:"genres" validate:"required,min=1,dive,required"`
}

// BookCount returns the number of books in the catalog.
func (s *CatalogService) BookCount(ctx context.Context) (int, error) {
	return s.store.Books.Count(ctx)
}

// AuthorCount returns the number of authors in the catalog.
func (s *CatalogService) AuthorCount(ctx context.Context) (int, error) {
	return s.store.Authors.Count(ctx)
}

// AllBooks returns books, optionally filtered by genre.
//
// The author argument is accepted but not applied; the filter was never wired
// up in the schema this API replaces, and clients depend on getting the full
// list back. Callers wanting author-scoped results should filter client-side.
func (s *CatalogService) AllBooks(ctx context.Context, author, genre *string) ([]*domain.Book, error) {
	_ = author

	books := make([]*domain.Book, 0)
	for book, err := range s.store.Books.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list books: %w", err)
		}
		if genre != nil && *genre != "" && !book.HasGenre(*genre) {
			continue
		}
		books = append(books, book)
	}
	return books, nil
}

// AllAuthors returns every author in the catalog.
func (s *CatalogService) AllAuthors(ctx context.Context) ([]*domain.Author, error) {
	authors := make([]*domain.Author, 0)
	for author, err := range s.store.Authors.List(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list authors: %w", err)
		}
		authors = append(authors, author)
	}
	return authors, nil
}

// GetAuthor returns the author with the given ID.
func (s *CatalogService) GetAuthor(ctx context.Context, authorID string) (*domain.Author, error) {
	return s.store.Authors.Get(ctx, authorID)
}

// BookCountByAuthor returns how many books reference the given author.
func (s *CatalogService) BookCountByAuthor(ctx context.Context, authorID string) (int, error) {
	count := 0
	for book, err := range s.store.Books.List(ctx) {
		if err != nil {
			return 0, fmt.Errorf("list books: %w", err)
		}
		if book.AuthorID == authorID {
			count++
		}
	}
	return count, nil
}

// AddBook persists a new book, creating its author on first sight.
//
// The author upsert and the book write are separate transactions: if the book
// write fails after a new author was created, the author stays. Publication to
// subscribers and search indexing are best effort after the book is stored.
func (s *CatalogService) AddBook(ctx context.Context, req AddBookRequest) (*domain.Book, error) {
	if err := validate.Struct(req); err != nil {
		return nil, formatValidationError(err)
	}

	// Find or create the author in one store transaction, so concurrent
	// addBook calls for the same fresh name produce exactly one author.
	authorID, err := id.Generate("author")
	if err != nil {
		return nil, fmt.Errorf("generate author ID: %w", err)
	}

	newAuthor := &domain.Author{Name: req.Author}
	newAuthor.ID = authorID
	newAuthor.InitTimestamps()

	author, createdAuthor, err := s.store.Authors.GetOrCreate(ctx, "name", req.Author, authorID, newAuthor)
	if err != nil {
		return nil, fmt.Errorf("upsert author: %w", err)
	}
	if createdAuthor && s.logger != nil {
		s.logger.Info("author created", "author_id", author.ID, "name", author.Name)
	}

	bookID, err := id.Generate("book")
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	book := &domain.Book{
		Title:     req.Title,
		Published: req.Published,
		AuthorID:  author.ID,
		Genres:    req.Genres,
	}
	book.ID = bookID
	book.InitTimestamps()

	if err := s.store.Books.Create(ctx, bookID, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	if s.index != nil {
		if err := s.index.IndexBook(search.NewBookDocument(book, author.Name)); err != nil && s.logger != nil {
			s.logger.Warn("failed to index book", "book_id", bookID, "error", err)
		}
	}

	if s.notifier != nil {
		s.notifier.Publish(events.NewBookAddedEvent(book))
	}

	if s.logger != nil {
		s.logger.Info("book added", "book_id", bookID, "title", book.Title, "author_id", author.ID)
	}

	return book, nil
}

// EditAuthor updates an author's birth year, matched by exact name.
// Returns (nil, nil) when no author with that name exists; the caller
// surfaces the absence as a null result, not an error.
func (s *CatalogService) EditAuthor(ctx context.Context, name string, setBornTo int) (*domain.Author, error) {
	author, err := s.store.Authors.GetByIndex(ctx, "name", name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find author: %w", err)
	}

	born := setBornTo
	author.Born = &born
	author.Touch()

	if err := s.store.Authors.Update(ctx, author.ID, author); err != nil {
		return nil, fmt.Errorf("update author: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("author updated", "author_id", author.ID, "born", setBornTo)
	}

	return author, nil
}

// SearchBooks runs a full-text query over titles, author names, and genres.
// Hits are resolved back to stored books; index entries whose book has since
// vanished are skipped.
func (s *CatalogService) SearchBooks(ctx context.Context, query string, limit, offset int) ([]*domain.Book, error) {
	if s.index == nil {
		return nil, fmt.Errorf("search index not configured")
	}

	result, err := s.index.Search(ctx, search.SearchParams{
		Query:  query,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}

	books := make([]*domain.Book, 0, len(result.Hits))
	for _, hit := range result.Hits {
		book, err := s.store.Books.Get(ctx, hit.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("load book %s: %w", hit.ID, err)
		}
		books = append(books, book)
	}
	return books, nil
}

// ReindexAll rebuilds the search index from the store.
// Used at startup so the index reflects books written while search was down.
func (s *CatalogService) ReindexAll(ctx context.Context) error {
	if s.index == nil {
		return nil
	}

	authorNames := make(map[string]string)
	for author, err := range s.store.Authors.List(ctx) {
		if err != nil {
			return fmt.Errorf("list authors: %w", err)
		}
		authorNames[author.ID] = author.Name
	}

	docs := make([]*search.BookDocument, 0)
	for book, err := range s.store.Books.List(ctx) {
		if err != nil {
			return fmt.Errorf("list books: %w", err)
		}
		docs = append(docs, search.NewBookDocument(book, authorNames[book.AuthorID]))
	}

	if err := s.index.IndexBooks(docs); err != nil {
		return fmt.Errorf("index books: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("search index rebuilt", "books", len(docs))
	}
	return nil
}
