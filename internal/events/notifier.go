package events

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/shelflineapp/shelfline-server/internal/id"
)

// Subscriber represents a connected event consumer.
type Subscriber struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string
}

// Notifier manages subscribers and broadcasts catalog events to them.
// Delivery is best-effort: slow consumers have events dropped rather than
// stalling the broadcast loop.
type Notifier struct {
	subscribers map[string]*Subscriber
	events      chan Event
	logger      *slog.Logger
	wg          sync.WaitGroup
	mu          sync.RWMutex

	// Shutdown state - protected by shutdownMu
	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewNotifier creates a new Notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		subscribers: make(map[string]*Subscriber),
		events:      make(chan Event, 1000), // Buffer 1000 events
		logger:      logger,
	}
}

// Start begins the event broadcasting loop.
// This should be called once at server startup in a goroutine.
func (n *Notifier) Start(ctx context.Context) {
	n.wg.Add(1)
	defer n.wg.Done()

	n.logger.Info("event notifier starting")

	for {
		select {
		case event, ok := <-n.events:
			if !ok {
				// Shutdown closed the channel.
				n.logger.Info("event notifier stopping")
				n.closeAllSubscribers()
				return
			}
			n.broadcast(event)

		case <-ctx.Done():
			n.logger.Info("event notifier stopping")
			n.closeAllSubscribers()
			return
		}
	}
}

// Shutdown gracefully shuts down the notifier.
// It stops accepting new events, drains remaining events, and closes all subscribers.
func (n *Notifier) Shutdown(ctx context.Context) error {
	n.logger.Info("event notifier shutdown initiated")

	// Mark as shutdown AND close channel atomically while holding lock.
	// This prevents race with Publish() which holds read lock during send.
	n.shutdownMu.Lock()
	n.shutdown = true
	close(n.events)
	n.shutdownMu.Unlock()

	// Drain remaining events with context timeout.
	done := make(chan struct{})
	go func() {
		for event := range n.events {
			n.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
		n.logger.Info("pending events drained successfully")
	case <-ctx.Done():
		n.logger.Warn("event drain timeout, some events may be lost")
	}

	// Wait for broadcast goroutine to exit.
	n.wg.Wait()

	n.logger.Info("event notifier shutdown complete")
	return nil
}

// broadcast sends an event to all connected subscribers.
func (n *Notifier) broadcast(event Event) {
	var delivered, dropped int

	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, sub := range n.subscribers {
		// Non-blocking send (drop if subscriber is slow/stuck).
		select {
		case sub.EventChan <- event:
			delivered++
		default:
			dropped++
			n.logger.Warn("dropped event for slow subscriber",
				slog.String("subscriber_id", sub.ID),
				slog.String("event_type", string(event.Type)))
		}
	}

	n.logger.Debug("event broadcast",
		slog.String("event_type", string(event.Type)),
		slog.Group("stats",
			slog.Int("delivered", delivered),
			slog.Int("dropped", dropped)))
}

// Connect registers a new subscriber and returns it.
func (n *Notifier) Connect() (*Subscriber, error) {
	subID, err := id.Generate("sub")
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{
		ID:          subID,
		EventChan:   make(chan Event, 100), // Buffer 100 events per subscriber
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	n.mu.Lock()
	n.subscribers[sub.ID] = sub
	total := len(n.subscribers)
	n.mu.Unlock()

	n.logger.Info("event subscriber connected",
		slog.String("subscriber_id", subID),
		slog.Int("total_subscribers", total))
	return sub, nil
}

// Disconnect removes a subscriber and closes its channels.
func (n *Notifier) Disconnect(subID string) {
	n.mu.Lock()
	sub, ok := n.subscribers[subID]
	if !ok {
		n.mu.Unlock()
		return
	}
	delete(n.subscribers, subID)
	total := len(n.subscribers)
	n.mu.Unlock()

	close(sub.Done)
	close(sub.EventChan)

	n.logger.Info("event subscriber disconnected",
		slog.String("subscriber_id", subID),
		slog.Duration("duration", time.Since(sub.ConnectedAt)),
		slog.Int("total_subscribers", total))
}

// Publish queues an event for broadcasting to subscribers.
func (n *Notifier) Publish(event Event) {
	// Hold read lock through the entire send operation.
	// This prevents race with Shutdown() which holds write lock when closing channel.
	n.shutdownMu.RLock()
	defer n.shutdownMu.RUnlock()

	if n.shutdown {
		// Silently drop events after shutdown - this is expected during shutdown
		return
	}

	select {
	case n.events <- event:
		// Event queued for broadcast.
	default:
		// Event channel full, log and drop.
		n.logger.Error("event channel full, dropping event",
			slog.String("event_type", string(event.Type)))
	}
}

// Subscribers returns an iterator over all connected subscribers.
func (n *Notifier) Subscribers() iter.Seq[*Subscriber] {
	return func(yield func(*Subscriber) bool) {
		n.mu.RLock()
		defer n.mu.RUnlock()

		for _, sub := range n.subscribers {
			if !yield(sub) {
				return
			}
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (n *Notifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subscribers)
}

// closeAllSubscribers closes all subscriber connections (used during shutdown).
func (n *Notifier) closeAllSubscribers() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, sub := range n.subscribers {
		close(sub.Done)
		close(sub.EventChan)
	}
	n.subscribers = make(map[string]*Subscriber) // Clear the map

	n.logger.Info("all event subscribers disconnected")
}
