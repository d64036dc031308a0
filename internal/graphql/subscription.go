package graphql

import (
	"github.com/graphql-go/graphql"

	"github.com/shelflineapp/shelfline-server/internal/events"
)

// subscribeBookAdded connects the field to the event notifier. The returned
// channel yields each added book; the executor resolves every value through
// the field's Resolve func and pushes a result to the client.
func (s *Schema) subscribeBookAdded(p graphql.ResolveParams) (any, error) {
	sub, err := s.notifier.Connect()
	if err != nil {
		return nil, err
	}

	out := make(chan any)

	go func() {
		defer close(out)
		defer s.notifier.Disconnect(sub.ID)

		for {
			select {
			case evt, ok := <-sub.EventChan:
				if !ok {
					return
				}
				if evt.Type != events.EventBookAdded || evt.Book == nil {
					continue
				}
				select {
				case out <- evt.Book:
				case <-p.Context.Done():
					return
				case <-sub.Done:
					return
				}

			case <-sub.Done:
				return

			case <-p.Context.Done():
				return
			}
		}
	}()

	return out, nil
}
