package domain

// User represents an authenticated account in the system.
// Accounts carry no password of their own; login is verified against
// a server-wide credential by the auth package.
type User struct {
	Record
	Username       string `json:"username"`
	FavouriteGenre string `json:"favourite_genre,omitempty"`
}
