package search

import "github.com/shelflineapp/shelfline-server/internal/domain"

// BookDocument is the denormalized form of a book stored in the index.
// The author name is flattened in so a single query covers both.
type BookDocument struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Author    string   `json:"author"`
	Genres    []string `json:"genres"`
	Published int      `json:"published"`
}

// NewBookDocument builds an index document from a book and its author's name.
func NewBookDocument(book *domain.Book, authorName string) *BookDocument {
	return &BookDocument{
		ID:        book.ID,
		Title:     book.Title,
		Author:    authorName,
		Genres:    book.Genres,
		Published: book.Published,
	}
}

// ToMap converts the document to a map so field names match the mapping.
func (d *BookDocument) ToMap() map[string]any {
	return map[string]any{
		"id":        d.ID,
		"title":     d.Title,
		"author":    d.Author,
		"genres":    d.Genres,
		"published": d.Published,
	}
}
