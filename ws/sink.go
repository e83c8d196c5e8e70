// Package ws is the websocket transport of the hub: handshake
// authentication, the per-connection read/write pumps and the inline
// acknowledgement protocol.
package ws

import (
	"context"
	"fmt"

	"community-hub/contract"
)

// eventFrame is one server→client push.
type eventFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// ackFrame answers one client request, correlated by the request id.
type ackFrame struct {
	ID      uint64 `json:"id"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Sink adapts a connection's outbound channel to contract.EventSink.
// Consume never blocks the fan-out path: a full buffer drops the event
// for this connection only.
type Sink struct {
	out chan any
}

func NewSink(bufferSize int) *Sink {
	return &Sink{out: make(chan any, bufferSize)}
}

func (s *Sink) Consume(ctx context.Context, e contract.Event) error {
	select {
	case s.out <- eventFrame{Event: e.Name, Data: e.Data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("backpressure: event %s dropped", e.Name)
	}
}

// ack enqueues a reply frame. Replies wait for room instead of dropping;
// a client that cannot drain its own acks loses the connection.
func (s *Sink) ack(ctx context.Context, f ackFrame) error {
	select {
	case s.out <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
