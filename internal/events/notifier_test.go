package events

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelflineapp/shelfline-server/internal/domain"
)

func newTestNotifier(t *testing.T) (*Notifier, context.CancelFunc) {
	t.Helper()

	n := NewNotifier(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go n.Start(ctx)

	t.Cleanup(cancel)
	return n, cancel
}

func waitForEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()

	select {
	case evt := <-ch:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestNotifier_DeliversToAllSubscribers(t *testing.T) {
	n, _ := newTestNotifier(t)

	sub1, err := n.Connect()
	require.NoError(t, err)
	sub2, err := n.Connect()
	require.NoError(t, err)

	assert.Equal(t, 2, n.SubscriberCount())

	book := &domain.Book{Title: "Clean Code", AuthorID: "author-1"}
	book.ID = "book-1"
	n.Publish(NewBookAddedEvent(book))

	evt1 := waitForEvent(t, sub1.EventChan)
	evt2 := waitForEvent(t, sub2.EventChan)

	assert.Equal(t, EventBookAdded, evt1.Type)
	assert.Equal(t, "book-1", evt1.Book.ID)
	assert.Equal(t, "book-1", evt2.Book.ID)
}

func TestNotifier_DisconnectStopsDelivery(t *testing.T) {
	n, _ := newTestNotifier(t)

	sub, err := n.Connect()
	require.NoError(t, err)

	n.Disconnect(sub.ID)
	assert.Equal(t, 0, n.SubscriberCount())

	// Done channel is closed on disconnect.
	select {
	case <-sub.Done:
	default:
		t.Fatal("expected Done to be closed")
	}

	// Disconnecting twice is harmless.
	n.Disconnect(sub.ID)
}

func TestNotifier_SlowSubscriberDoesNotBlock(t *testing.T) {
	n, _ := newTestNotifier(t)

	slow, err := n.Connect()
	require.NoError(t, err)

	// Never read from slow.EventChan; fill its buffer and then some.
	book := &domain.Book{Title: "Clean Code"}
	book.ID = "book-1"
	for i := 0; i < 250; i++ {
		n.Publish(NewBookAddedEvent(book))
	}

	// A fresh subscriber still receives events.
	fresh, err := n.Connect()
	require.NoError(t, err)

	n.Publish(NewBookAddedEvent(book))
	evt := waitForEvent(t, fresh.EventChan)
	assert.Equal(t, EventBookAdded, evt.Type)

	_ = slow
}

func TestNotifier_PublishAfterShutdownIsDropped(t *testing.T) {
	n := NewNotifier(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go n.Start(ctx)
	defer cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	require.NoError(t, n.Shutdown(shutdownCtx))

	// Must not panic on the closed channel.
	book := &domain.Book{Title: "Clean Code"}
	n.Publish(NewBookAddedEvent(book))
}

func TestNotifier_StartStopClosesSubscribers(t *testing.T) {
	n := NewNotifier(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	go func() {
		close(started)
		n.Start(ctx)
	}()
	<-started

	sub, err := n.Connect()
	require.NoError(t, err)

	cancel()

	select {
	case <-sub.Done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected subscriber to be closed on shutdown")
	}
}
