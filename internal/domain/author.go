package domain

// Author represents a writer with books in the catalog.
// Authors are created implicitly the first time a book names them.
type Author struct {
	Record
	Name string `json:"name"`
	Born *int   `json:"born,omitempty"` // Birth year, nil when unknown
}
