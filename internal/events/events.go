// Package events provides in-process fan-out of catalog change events to subscribers.
package events

import (
	"time"

	"github.com/shelflineapp/shelfline-server/internal/domain"
)

// EventType identifies the kind of catalog change.
type EventType string

const (
	// EventBookAdded is published after a new book lands in the catalog.
	EventBookAdded EventType = "book_added"
)

// Event is a catalog change notification.
type Event struct {
	Type       EventType    `json:"type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Book       *domain.Book `json:"book,omitempty"`
}

// NewBookAddedEvent builds a book added event for the given book.
func NewBookAddedEvent(book *domain.Book) Event {
	return Event{
		Type:       EventBookAdded,
		OccurredAt: time.Now(),
		Book:       book,
	}
}
