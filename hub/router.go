package hub

import (
	"context"
	"log/slog"
	"sync"

	"community-hub/contract"
	"community-hub/domain"
)

// Router maps topics to the connections subscribed to them and resolves
// connections to their delivery sinks. It performs no authorization;
// callers decide whether a subscription is allowed before asking for it.
type Router struct {
	mu     sync.RWMutex
	sinks  map[string]contract.EventSink       // connID -> sink
	topics map[string]map[string]struct{}      // topic key -> connIDs
	joined map[string]map[string]domain.Topic  // connID -> topic key -> topic
	log    *slog.Logger
}

func NewRouter(log *slog.Logger) *Router {
	return &Router{
		sinks:  make(map[string]contract.EventSink),
		topics: make(map[string]map[string]struct{}),
		joined: make(map[string]map[string]domain.Topic),
		log:    log,
	}
}

// Register binds a connection to its sink. Called once at connection
// establishment, before any subscription.
func (r *Router) Register(connID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[connID] = sink
	r.joined[connID] = make(map[string]domain.Topic)
}

// Unregister drops the connection from every topic it joined and from
// the sink directory. Idempotent.
func (r *Router) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.joined[connID] {
		r.removeLocked(key, connID)
	}
	delete(r.joined, connID)
	delete(r.sinks, connID)
}

// Subscribe adds the connection to a topic's subscriber set. Idempotent.
func (r *Router) Subscribe(connID string, topic domain.Topic) {
	key := topic.String()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, registered := r.sinks[connID]; !registered {
		return
	}
	if _, ok := r.topics[key]; !ok {
		r.topics[key] = make(map[string]struct{})
	}
	r.topics[key][connID] = struct{}{}
	r.joined[connID][key] = topic
}

// Unsubscribe removes the connection from a topic. Idempotent.
func (r *Router) Unsubscribe(connID string, topic domain.Topic) {
	key := topic.String()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(key, connID)
	delete(r.joined[connID], key)
}

func (r *Router) removeLocked(topicKey, connID string) {
	if members, ok := r.topics[topicKey]; ok {
		delete(members, connID)
		// No empty sets left behind; topics only exist as their join graph.
		if len(members) == 0 {
			delete(r.topics, topicKey)
		}
	}
}

// Fanout delivers one event to every current subscriber of the topic.
// The subscriber list is snapshotted under the read lock and delivery
// happens outside it, so a subscriber removed mid-fanout is simply
// skipped by its own sink and one added mid-fanout may or may not see
// this particular event.
func (r *Router) Fanout(ctx context.Context, topic domain.Topic, e contract.Event) {
	key := topic.String()
	r.mu.RLock()
	members, ok := r.topics[key]
	sinks := make([]contract.EventSink, 0, len(members))
	if ok {
		for connID := range members {
			if sink, exists := r.sinks[connID]; exists {
				sinks = append(sinks, sink)
			}
		}
	}
	r.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Consume(ctx, e); err != nil {
			r.log.Debug("fanout delivery dropped", "topic", key, "event", e.Name, "error", err)
		}
	}
}

// Broadcast delivers to every registered connection except the given
// one, regardless of topic membership. Used for presence deltas.
func (r *Router) Broadcast(ctx context.Context, exceptConnID string, e contract.Event) {
	r.mu.RLock()
	sinks := make([]contract.EventSink, 0, len(r.sinks))
	for connID, sink := range r.sinks {
		if connID == exceptConnID {
			continue
		}
		sinks = append(sinks, sink)
	}
	r.mu.RUnlock()

	for _, sink := range sinks {
		if err := sink.Consume(ctx, e); err != nil {
			r.log.Debug("broadcast delivery dropped", "event", e.Name, "error", err)
		}
	}
}
