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

// Wire payloads of the group call events.

type GroupCallIncoming struct {
	CallID  string           `json:"callId"`
	GroupID string           `json:"groupId"`
	Kind    domain.CallKind  `json:"kind"`
	From    domain.Principal `json:"from"`
}

type GroupCallParticipant struct {
	CallID  string           `json:"callId"`
	GroupID string           `json:"groupId"`
	User    domain.Principal `json:"user"`
}

type GroupCallLeft struct {
	CallID  string `json:"callId"`
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

type GroupCallSDP struct {
	CallID     string          `json:"callId"`
	GroupID    string          `json:"groupId"`
	FromUserID string          `json:"fromUserId"`
	SDP        json.RawMessage `json:"sdp"`
}

type GroupCallCandidate struct {
	CallID     string          `json:"callId"`
	GroupID    string          `json:"groupId"`
	FromUserID string          `json:"fromUserId"`
	Candidate  json.RawMessage `json:"candidate"`
}

// GroupCallEngine owns the multi-party call sessions. Mesh signaling is
// point-to-point: offers, answers and candidates go to one named
// participant's principal topic, never to the whole group.
type GroupCallEngine struct {
	mu       sync.Mutex
	sessions map[string]*domain.GroupCallSession

	router   contract.IRouter
	groups   contract.GroupReader
	notifier *push.Dispatcher
	log      *slog.Logger
}

func NewGroupCallEngine(router contract.IRouter, groups contract.GroupReader, notifier *push.Dispatcher, log *slog.Logger) *GroupCallEngine {
	return &GroupCallEngine{
		sessions: make(map[string]*domain.GroupCallSession),
		router:   router,
		groups:   groups,
		notifier: notifier,
		log:      log,
	}
}

// authorize fetches the group at action time and applies the shared
// access rule. Returning the group lets invite reuse the member list.
func (e *GroupCallEngine) authorize(ctx context.Context, p domain.Principal, groupID string) (domain.GroupInfo, error) {
	group, err := e.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return domain.GroupInfo{}, errors.ErrGroupNotFound
		}
		return domain.GroupInfo{}, fmt.Errorf("group lookup: %w", errors.ErrUpstream)
	}
	if !group.CanAccess(p) {
		return domain.GroupInfo{}, errors.ErrForbidden
	}
	return group, nil
}

// Invite starts a session with participants = {host} and announces it on
// the group topic. The group is fetched before any mutation so an
// upstream failure leaves no session behind.
func (e *GroupCallEngine) Invite(ctx context.Context, host domain.Principal, groupID, callID, kind string) error {
	if groupID == "" {
		return errors.Validationf("groupId required")
	}
	if callID == "" {
		return errors.Validationf("callId required")
	}

	group, err := e.authorize(ctx, host, groupID)
	if err != nil {
		return err
	}

	session := &domain.GroupCallSession{
		CallID:       callID,
		GroupID:      groupID,
		Kind:         domain.NormalizeCallKind(kind),
		HostID:       host.ID,
		Participants: map[string]struct{}{host.ID: {}},
		CreatedAt:    time.Now().UTC(),
	}

	e.mu.Lock()
	if _, exists := e.sessions[callID]; exists {
		e.mu.Unlock()
		return errors.Validationf("callId already in use")
	}
	e.sessions[callID] = session
	e.mu.Unlock()

	e.router.Fanout(ctx, domain.Group(groupID), contract.Event{
		Name: contract.EventGroupCallIncoming,
		Data: GroupCallIncoming{CallID: callID, GroupID: groupID, Kind: session.Kind, From: host.Profile()},
	})
	e.notifier.Go(group.MemberIDs(host.ID), contract.Notification{
		Title: "Group call started",
		Body:  fmt.Sprintf("%s started a call in %s", host.Name, group.Name),
		Data:  map[string]string{"callId": callID, "groupId": groupID, "kind": string(session.Kind)},
	})
	return nil
}

// Join adds an authorized participant to an existing session scoped to
// the given group and announces it to the group topic.
func (e *GroupCallEngine) Join(ctx context.Context, p domain.Principal, callID, groupID string) error {
	if groupID == "" {
		return errors.Validationf("groupId required")
	}
	if callID == "" {
		return errors.Validationf("callId required")
	}

	e.mu.Lock()
	session, ok := e.sessions[callID]
	if !ok || session.GroupID != groupID {
		e.mu.Unlock()
		return errors.ErrCallNotFound
	}
	e.mu.Unlock()

	// Authorization hits the external store; the participant set is only
	// touched after it succeeds.
	if _, err := e.authorize(ctx, p, groupID); err != nil {
		return err
	}

	e.mu.Lock()
	session, ok = e.sessions[callID]
	if !ok || session.GroupID != groupID {
		e.mu.Unlock()
		return errors.ErrCallNotFound
	}
	session.Participants[p.ID] = struct{}{}
	e.mu.Unlock()

	e.router.Fanout(ctx, domain.Group(groupID), contract.Event{
		Name: contract.EventGroupCallJoined,
		Data: GroupCallParticipant{CallID: callID, GroupID: groupID, User: p.Profile()},
	})
	return nil
}

// Offer relays an SDP offer to one named participant.
func (e *GroupCallEngine) Offer(ctx context.Context, userID, callID, toUserID string, sdp json.RawMessage) error {
	return e.relay(ctx, userID, callID, toUserID, func(groupID string) contract.Event {
		return contract.Event{
			Name: contract.EventGroupCallOffer,
			Data: GroupCallSDP{CallID: callID, GroupID: groupID, FromUserID: userID, SDP: sdp},
		}
	})
}

// Answer relays an SDP answer to one named participant.
func (e *GroupCallEngine) Answer(ctx context.Context, userID, callID, toUserID string, sdp json.RawMessage) error {
	return e.relay(ctx, userID, callID, toUserID, func(groupID string) contract.Event {
		return contract.Event{
			Name: contract.EventGroupCallAnswer,
			Data: GroupCallSDP{CallID: callID, GroupID: groupID, FromUserID: userID, SDP: sdp},
		}
	})
}

// ICE relays one candidate to one named participant.
func (e *GroupCallEngine) ICE(ctx context.Context, userID, callID, toUserID string, candidate json.RawMessage) error {
	return e.relay(ctx, userID, callID, toUserID, func(groupID string) contract.Event {
		return contract.Event{
			Name: contract.EventGroupCallICE,
			Data: GroupCallCandidate{CallID: callID, GroupID: groupID, FromUserID: userID, Candidate: candidate},
		}
	})
}

func (e *GroupCallEngine) relay(ctx context.Context, userID, callID, toUserID string, build func(groupID string) contract.Event) error {
	if toUserID == "" {
		return errors.Validationf("toUserId required")
	}

	e.mu.Lock()
	session, ok := e.sessions[callID]
	if !ok {
		e.mu.Unlock()
		return errors.ErrCallNotFound
	}
	if !session.HasParticipant(userID) {
		e.mu.Unlock()
		return errors.ErrForbidden
	}
	groupID := session.GroupID
	e.mu.Unlock()

	e.router.Fanout(ctx, domain.PrincipalTopic(toUserID), build(groupID))
	return nil
}

// Leave removes the participant and destroys the session once the set
// empties. A mismatched groupId reads as an unknown call.
func (e *GroupCallEngine) Leave(ctx context.Context, userID, callID, groupID string) error {
	e.mu.Lock()
	session, ok := e.sessions[callID]
	if !ok || (groupID != "" && session.GroupID != groupID) {
		e.mu.Unlock()
		return errors.ErrCallNotFound
	}
	if !session.HasParticipant(userID) {
		e.mu.Unlock()
		return errors.ErrForbidden
	}
	delete(session.Participants, userID)
	empty := len(session.Participants) == 0
	if empty {
		delete(e.sessions, callID)
	}
	resolvedGroup := session.GroupID
	e.mu.Unlock()

	e.router.Fanout(ctx, domain.Group(resolvedGroup), contract.Event{
		Name: contract.EventGroupCallLeft,
		Data: GroupCallLeft{CallID: callID, GroupID: resolvedGroup, UserID: userID},
	})
	if empty {
		e.log.Debug("group call ended", "call_id", callID, "group_id", resolvedGroup)
	}
	return nil
}

// LeaveAllFor unwinds the principal from every session, emitting the
// same participant-left events a voluntary leave would. Called when the
// principal's last connection closes.
func (e *GroupCallEngine) LeaveAllFor(ctx context.Context, userID string) {
	e.mu.Lock()
	var left []GroupCallLeft
	for id, session := range e.sessions {
		if !session.HasParticipant(userID) {
			continue
		}
		delete(session.Participants, userID)
		if len(session.Participants) == 0 {
			delete(e.sessions, id)
		}
		left = append(left, GroupCallLeft{CallID: id, GroupID: session.GroupID, UserID: userID})
	}
	e.mu.Unlock()

	for _, evt := range left {
		e.router.Fanout(ctx, domain.Group(evt.GroupID), contract.Event{
			Name: contract.EventGroupCallLeft,
			Data: evt,
		})
	}
}
