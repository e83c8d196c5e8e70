package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"community-hub/contract"
	"community-hub/domain"
	"community-hub/errors"
	"community-hub/push"
)

// Wire payloads of the pairwise call events. Field names mirror what the
// web and mobile clients already parse.

type CallIncoming struct {
	CallID     string           `json:"callId"`
	Kind       domain.CallKind  `json:"kind"`
	AutoAnswer bool             `json:"autoAnswer,omitempty"`
	From       domain.Principal `json:"from"`
}

type CallAccepted struct {
	CallID string           `json:"callId"`
	Kind   domain.CallKind  `json:"kind"`
	By     domain.Principal `json:"by"`
}

type CallRef struct {
	CallID string `json:"callId"`
}

type CallSDP struct {
	CallID string          `json:"callId"`
	SDP    json.RawMessage `json:"sdp"`
}

type CallCandidate struct {
	CallID    string          `json:"callId"`
	Candidate json.RawMessage `json:"candidate"`
}

// CallEngine owns the pairwise call sessions. Sessions are keyed by the
// caller-supplied call id and never persisted; negotiation payloads pass
// through opaquely.
type CallEngine struct {
	mu       sync.Mutex
	sessions map[string]*domain.CallSession

	router   contract.IRouter
	notifier *push.Dispatcher
	log      *slog.Logger

	ringTimeout time.Duration
}

func NewCallEngine(router contract.IRouter, notifier *push.Dispatcher, log *slog.Logger, ringTimeout time.Duration) *CallEngine {
	return &CallEngine{
		sessions:    make(map[string]*domain.CallSession),
		router:      router,
		notifier:    notifier,
		log:         log,
		ringTimeout: ringTimeout,
	}
}

// Invite creates a session in the Invited state and rings the callee's
// principal topic. A call id already in flight is rejected rather than
// overwritten, so the first callee's ringing UI is never orphaned.
// autoAnswer is honored only for administrators.
func (e *CallEngine) Invite(ctx context.Context, caller domain.Principal, calleeID, callID, kind string, autoAnswer bool) error {
	if calleeID == "" {
		return errors.Validationf("toUserId required")
	}
	if callID == "" {
		return errors.Validationf("callId required")
	}

	session := &domain.CallSession{
		CallID:     callID,
		Kind:       domain.NormalizeCallKind(kind),
		CallerID:   caller.ID,
		CalleeID:   calleeID,
		State:      domain.CallInvited,
		AutoAnswer: autoAnswer && caller.IsAdmin(),
		CreatedAt:  time.Now().UTC(),
	}

	e.mu.Lock()
	if _, exists := e.sessions[callID]; exists {
		e.mu.Unlock()
		return errors.Validationf("callId already in use")
	}
	e.sessions[callID] = session
	e.mu.Unlock()

	e.router.Fanout(ctx, domain.PrincipalTopic(calleeID), contract.Event{
		Name: contract.EventCallIncoming,
		Data: CallIncoming{
			CallID:     callID,
			Kind:       session.Kind,
			AutoAnswer: session.AutoAnswer,
			From:       caller.Profile(),
		},
	})
	e.notifier.Go([]string{calleeID}, contract.Notification{
		Title: "Incoming call",
		Body:  fmt.Sprintf("%s is calling you", caller.Name),
		Data:  map[string]string{"callId": callID, "kind": string(session.Kind)},
	})
	return nil
}

// Accept transitions Invited→Accepted. Only the designated callee may accept.
func (e *CallEngine) Accept(ctx context.Context, callee domain.Principal, callID string) error {
	e.mu.Lock()
	session, ok := e.sessions[callID]
	if !ok {
		e.mu.Unlock()
		return errors.ErrCallNotFound
	}
	if session.CalleeID != callee.ID {
		e.mu.Unlock()
		return errors.ErrForbidden
	}
	session.State = domain.CallAccepted
	callerID, kind := session.CallerID, session.Kind
	e.mu.Unlock()

	e.router.Fanout(ctx, domain.PrincipalTopic(callerID), contract.Event{
		Name: contract.EventCallAccepted,
		Data: CallAccepted{CallID: callID, Kind: kind, By: domain.Principal{ID: callee.ID, Name: callee.Name}},
	})
	return nil
}

// Reject is terminal: the session is removed and the caller notified.
func (e *CallEngine) Reject(ctx context.Context, callee domain.Principal, callID string) error {
	e.mu.Lock()
	session, ok := e.sessions[callID]
	if !ok {
		e.mu.Unlock()
		return errors.ErrCallNotFound
	}
	if session.CalleeID != callee.ID {
		e.mu.Unlock()
		return errors.ErrForbidden
	}
	delete(e.sessions, callID)
	callerID := session.CallerID
	e.mu.Unlock()

	e.router.Fanout(ctx, domain.PrincipalTopic(callerID), contract.Event{
		Name: contract.EventCallRejected,
		Data: CallRef{CallID: callID},
	})
	return nil
}

// Offer relays an SDP offer to the other party. No state transition.
func (e *CallEngine) Offer(ctx context.Context, userID, callID string, sdp json.RawMessage) error {
	return e.relay(ctx, userID, callID, contract.EventCallOffer, func() any {
		return CallSDP{CallID: callID, SDP: sdp}
	})
}

// Answer relays an SDP answer to the other party.
func (e *CallEngine) Answer(ctx context.Context, userID, callID string, sdp json.RawMessage) error {
	return e.relay(ctx, userID, callID, contract.EventCallAnswer, func() any {
		return CallSDP{CallID: callID, SDP: sdp}
	})
}

// ICE relays a single ICE candidate to the other party.
func (e *CallEngine) ICE(ctx context.Context, userID, callID string, candidate json.RawMessage) error {
	return e.relay(ctx, userID, callID, contract.EventCallICE, func() any {
		return CallCandidate{CallID: callID, Candidate: candidate}
	})
}

func (e *CallEngine) relay(ctx context.Context, userID, callID, eventName string, payload func() any) error {
	e.mu.Lock()
	session, ok := e.sessions[callID]
	if !ok {
		e.mu.Unlock()
		return errors.ErrCallNotFound
	}
	other := session.OtherParty(userID)
	e.mu.Unlock()
	if other == "" {
		return errors.ErrForbidden
	}

	e.router.Fanout(ctx, domain.PrincipalTopic(other), contract.Event{Name: eventName, Data: payload()})
	return nil
}

// Hangup ends the call from either side and removes the session.
func (e *CallEngine) Hangup(ctx context.Context, userID, callID string) error {
	e.mu.Lock()
	session, ok := e.sessions[callID]
	if !ok {
		e.mu.Unlock()
		return errors.ErrCallNotFound
	}
	other := session.OtherParty(userID)
	if other == "" {
		e.mu.Unlock()
		return errors.ErrForbidden
	}
	delete(e.sessions, callID)
	e.mu.Unlock()

	e.router.Fanout(ctx, domain.PrincipalTopic(other), contract.Event{
		Name: contract.EventCallHangup,
		Data: CallRef{CallID: callID},
	})
	return nil
}

// EndAllFor removes every session the principal participates in,
// notifying the other party exactly as a voluntary hangup would. Called
// when the principal's last connection closes.
func (e *CallEngine) EndAllFor(ctx context.Context, userID string) {
	e.mu.Lock()
	var ended []*domain.CallSession
	for id, session := range e.sessions {
		if session.OtherParty(userID) != "" {
			delete(e.sessions, id)
			ended = append(ended, session)
		}
	}
	e.mu.Unlock()

	for _, session := range ended {
		other := session.OtherParty(userID)
		e.router.Fanout(ctx, domain.PrincipalTopic(other), contract.Event{
			Name: contract.EventCallHangup,
			Data: CallRef{CallID: session.CallID},
		})
	}
}

// Run sweeps unanswered invites on a short interval until ctx is done.
// An invite older than the ring timeout ends with a hangup to both
// parties, the same shape a manual hangup produces.
func (e *CallEngine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.sweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.log.Debug("stopping call sweep")
			return ctx.Err()
		case now := <-ticker.C:
			e.sweep(ctx, now.UTC())
		}
	}
}

func (e *CallEngine) sweepInterval() time.Duration {
	if e.ringTimeout < 10*time.Second {
		return time.Second
	}
	return 5 * time.Second
}

func (e *CallEngine) sweep(ctx context.Context, now time.Time) {
	e.mu.Lock()
	var expired []*domain.CallSession
	for id, session := range e.sessions {
		if session.State == domain.CallInvited && now.Sub(session.CreatedAt) > e.ringTimeout {
			delete(e.sessions, id)
			expired = append(expired, session)
		}
	}
	e.mu.Unlock()

	for _, session := range expired {
		e.log.Info("ring timeout", "call_id", session.CallID, "caller", session.CallerID)
		evt := contract.Event{Name: contract.EventCallHangup, Data: CallRef{CallID: session.CallID}}
		e.router.Fanout(ctx, domain.PrincipalTopic(session.CallerID), evt)
		e.router.Fanout(ctx, domain.PrincipalTopic(session.CalleeID), evt)
	}
}
