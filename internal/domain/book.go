package domain

// Book represents a single catalogued title.
type Book struct {
	Record
	Title     string   `json:"title"`
	Published int      `json:"published"` // Year of publication
	AuthorID  string   `json:"author_id"` // References Author.ID
	Genres    []string `json:"genres"`
}

// HasGenre reports whether the book carries the given genre.
// Genres are free-form strings and match exactly.
func (b *Book) HasGenre(genre string) bool {
	for _, g := range b.Genres {
		if g == genre {
			return true
		}
	}
	return false
}
