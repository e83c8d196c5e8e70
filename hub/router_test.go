package hub

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"community-hub/contract"
	"community-hub/domain"
)

// recordingSink keeps every consumed event, safe for concurrent fan-out.
type recordingSink struct {
	mu     sync.Mutex
	events []contract.Event
}

func (s *recordingSink) Consume(_ context.Context, e contract.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Name)
	}
	return out
}

func Test_Fanout_Reaches_Only_Subscribers(t *testing.T) {
	req := require.New(t)
	r := NewRouter(slog.Default())
	ctx := context.Background()

	inRoom, outOfRoom := &recordingSink{}, &recordingSink{}
	r.Register("c1", inRoom)
	r.Register("c2", outOfRoom)
	r.Subscribe("c1", domain.Group("g1"))

	r.Fanout(ctx, domain.Group("g1"), contract.Event{Name: "group:new"})

	req.Equal([]string{"group:new"}, inRoom.names())
	req.Empty(outOfRoom.names())
}

func Test_Fanout_After_Unsubscribe_Delivers_Nothing(t *testing.T) {
	req := require.New(t)
	r := NewRouter(slog.Default())
	ctx := context.Background()

	sink := &recordingSink{}
	r.Register("c1", sink)
	r.Subscribe("c1", domain.Private("u1", "u2"))
	r.Unsubscribe("c1", domain.Private("u2", "u1"))

	r.Fanout(ctx, domain.Private("u1", "u2"), contract.Event{Name: "private:new"})

	req.Empty(sink.names())
}

func Test_Unregister_Drops_All_Subscriptions(t *testing.T) {
	req := require.New(t)
	r := NewRouter(slog.Default())
	ctx := context.Background()

	sink := &recordingSink{}
	r.Register("c1", sink)
	r.Subscribe("c1", domain.Community())
	r.Subscribe("c1", domain.Group("g1"))
	r.Unregister("c1")

	r.Fanout(ctx, domain.Community(), contract.Event{Name: "community:new"})
	r.Fanout(ctx, domain.Group("g1"), contract.Event{Name: "group:new"})

	req.Empty(sink.names())
	// Unregister twice must not panic
	r.Unregister("c1")
}

func Test_Subscribe_Before_Register_Is_Ignored(t *testing.T) {
	req := require.New(t)
	r := NewRouter(slog.Default())
	ctx := context.Background()

	sink := &recordingSink{}
	r.Subscribe("c1", domain.Community())
	r.Register("c1", sink)

	r.Fanout(ctx, domain.Community(), contract.Event{Name: "community:new"})

	req.Empty(sink.names())
}

func Test_Broadcast_Skips_The_Origin_Connection(t *testing.T) {
	req := require.New(t)
	r := NewRouter(slog.Default())
	ctx := context.Background()

	origin, other := &recordingSink{}, &recordingSink{}
	r.Register("c1", origin)
	r.Register("c2", other)

	r.Broadcast(ctx, "c1", contract.Event{Name: "presence:update"})

	req.Empty(origin.names())
	req.Equal([]string{"presence:update"}, other.names())
}
