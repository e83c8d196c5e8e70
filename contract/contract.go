//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"

	"community-hub/domain"
)

// Event is one server→client push: a named wire event plus its payload,
// already in wire shape. Payloads are fully built before fan-out so a
// subscriber can never observe a half-constructed one.
type Event struct {
	Name string
	Data any
}

// EventSink is the delivery end of one connection. Consume must not
// block past ctx; a full or closed sink drops the event.
type EventSink interface {
	Consume(ctx context.Context, e Event) error
}

// IRouter is the topic subscription registry shared by the relay and the
// call engines.
type IRouter interface {
	Register(connID string, sink EventSink)
	Unregister(connID string)
	Subscribe(connID string, topic domain.Topic)
	Unsubscribe(connID string, topic domain.Topic)
	Fanout(ctx context.Context, topic domain.Topic, e Event)
	// Broadcast delivers to every registered connection except the given one.
	Broadcast(ctx context.Context, exceptConnID string, e Event)
}

// GroupReader fetches group visibility and membership from the external
// store. Every group authorization decision goes through it at action time.
type GroupReader interface {
	GetGroup(ctx context.Context, groupID string) (domain.GroupInfo, error)
}

// Notification is the payload handed to the push collaborator.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Notifier delivers offline push notifications. Best effort: callers
// ignore the returned error beyond logging.
type Notifier interface {
	Notify(ctx context.Context, userIDs []string, n Notification) error
}
