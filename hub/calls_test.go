package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"community-hub/domain"
	"community-hub/errors"
)

func newCallFixture(t *testing.T) (*CallEngine, *recordingSink, *recordingSink) {
	t.Helper()
	router := NewRouter(slog.Default())
	engine := NewCallEngine(router, nil, slog.Default(), time.Minute)

	caller, callee := &recordingSink{}, &recordingSink{}
	router.Register("conn-caller", caller)
	router.Register("conn-callee", callee)
	router.Subscribe("conn-caller", domain.PrincipalTopic("u1"))
	router.Subscribe("conn-callee", domain.PrincipalTopic("u2"))
	return engine, caller, callee
}

func Test_Call_Invite_Then_Reject(t *testing.T) {
	req := require.New(t)
	engine, caller, callee := newCallFixture(t)
	ctx := context.Background()

	alice := domain.Principal{ID: "u1", Name: "Alice", Role: domain.RoleMember}
	bob := domain.Principal{ID: "u2", Name: "Bob", Role: domain.RoleMember}

	req.NoError(engine.Invite(ctx, alice, "u2", "x1", "audio", false))
	req.Equal([]string{"call:incoming"}, callee.names())

	req.NoError(engine.Reject(ctx, bob, "x1"))
	req.Equal([]string{"call:rejected"}, caller.names())

	// The session is gone; further negotiation has nothing to relay
	err := engine.Offer(ctx, "u1", "x1", json.RawMessage(`{}`))
	req.ErrorIs(err, errors.ErrCallNotFound)
}

func Test_Call_Accept_Notifies_Caller(t *testing.T) {
	req := require.New(t)
	engine, caller, _ := newCallFixture(t)
	ctx := context.Background()

	alice := domain.Principal{ID: "u1", Name: "Alice"}
	bob := domain.Principal{ID: "u2", Name: "Bob"}

	req.NoError(engine.Invite(ctx, alice, "u2", "x1", "video", false))
	req.NoError(engine.Accept(ctx, bob, "x1"))
	req.Equal([]string{"call:accepted"}, caller.names())

	// Negotiation now flows both ways
	req.NoError(engine.Offer(ctx, "u1", "x1", json.RawMessage(`{"type":"offer"}`)))
	req.NoError(engine.Answer(ctx, "u2", "x1", json.RawMessage(`{"type":"answer"}`)))
	req.NoError(engine.ICE(ctx, "u1", "x1", json.RawMessage(`{}`)))
}

func Test_Call_Only_The_Callee_May_Accept(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newCallFixture(t)
	ctx := context.Background()

	alice := domain.Principal{ID: "u1", Name: "Alice"}
	stranger := domain.Principal{ID: "u3", Name: "Mallory"}

	req.NoError(engine.Invite(ctx, alice, "u2", "x1", "audio", false))
	req.ErrorIs(engine.Accept(ctx, stranger, "x1"), errors.ErrForbidden)
	req.ErrorIs(engine.Reject(ctx, stranger, "x1"), errors.ErrForbidden)
	req.ErrorIs(engine.Offer(ctx, "u3", "x1", nil), errors.ErrForbidden)
}

func Test_Call_Duplicate_CallID_Is_Rejected(t *testing.T) {
	req := require.New(t)
	engine, _, callee := newCallFixture(t)
	ctx := context.Background()

	alice := domain.Principal{ID: "u1", Name: "Alice"}

	req.NoError(engine.Invite(ctx, alice, "u2", "x1", "audio", false))
	err := engine.Invite(ctx, alice, "u2", "x1", "audio", false)
	req.ErrorIs(err, errors.ErrValidation)
	// Only the first invite rang
	req.Equal([]string{"call:incoming"}, callee.names())
}

func Test_Call_AutoAnswer_Requires_Admin(t *testing.T) {
	req := require.New(t)
	engine, _, callee := newCallFixture(t)
	ctx := context.Background()

	member := domain.Principal{ID: "u1", Name: "Alice", Role: domain.RoleMember}
	req.NoError(engine.Invite(ctx, member, "u2", "x1", "audio", true))

	admin := domain.Principal{ID: "u1", Name: "Alice", Role: domain.RoleAdmin}
	req.NoError(engine.Invite(ctx, admin, "u2", "x2", "audio", true))

	req.Len(callee.events, 2)
	first := callee.events[0].Data.(CallIncoming)
	second := callee.events[1].Data.(CallIncoming)
	req.False(first.AutoAnswer, "member cannot force auto answer")
	req.True(second.AutoAnswer)
}

func Test_Call_Unknown_Kind_Falls_Back_To_Audio(t *testing.T) {
	req := require.New(t)
	engine, _, callee := newCallFixture(t)
	ctx := context.Background()

	alice := domain.Principal{ID: "u1", Name: "Alice"}
	req.NoError(engine.Invite(ctx, alice, "u2", "x1", "hologram", false))

	incoming := callee.events[0].Data.(CallIncoming)
	req.Equal(domain.CallAudio, incoming.Kind)
}

func Test_Call_Disconnect_Ends_Sessions(t *testing.T) {
	req := require.New(t)
	engine, caller, _ := newCallFixture(t)
	ctx := context.Background()

	alice := domain.Principal{ID: "u1", Name: "Alice"}
	bob := domain.Principal{ID: "u2", Name: "Bob"}

	req.NoError(engine.Invite(ctx, alice, "u2", "x1", "audio", false))
	req.NoError(engine.Accept(ctx, bob, "x1"))

	engine.EndAllFor(ctx, "u2")

	req.Contains(caller.names(), "call:hangup")
	req.ErrorIs(engine.Hangup(ctx, "u1", "x1"), errors.ErrCallNotFound)
}

func Test_Call_Ring_Timeout_Hangs_Up_Both_Sides(t *testing.T) {
	req := require.New(t)
	router := NewRouter(slog.Default())
	engine := NewCallEngine(router, nil, slog.Default(), 50*time.Millisecond)
	ctx := context.Background()

	caller, callee := &recordingSink{}, &recordingSink{}
	router.Register("conn-caller", caller)
	router.Register("conn-callee", callee)
	router.Subscribe("conn-caller", domain.PrincipalTopic("u1"))
	router.Subscribe("conn-callee", domain.PrincipalTopic("u2"))

	alice := domain.Principal{ID: "u1", Name: "Alice"}
	req.NoError(engine.Invite(ctx, alice, "u2", "x1", "audio", false))

	engine.sweep(ctx, time.Now().UTC().Add(time.Second))

	req.Contains(caller.names(), "call:hangup")
	req.Contains(callee.names(), "call:hangup")
	req.ErrorIs(engine.Accept(ctx, domain.Principal{ID: "u2"}, "x1"), errors.ErrCallNotFound)
}

func Test_Call_Accepted_Session_Survives_The_Sweep(t *testing.T) {
	req := require.New(t)
	engine, _, _ := newCallFixture(t)
	ctx := context.Background()

	alice := domain.Principal{ID: "u1", Name: "Alice"}
	bob := domain.Principal{ID: "u2", Name: "Bob"}

	req.NoError(engine.Invite(ctx, alice, "u2", "x1", "audio", false))
	req.NoError(engine.Accept(ctx, bob, "x1"))

	engine.sweep(ctx, time.Now().UTC().Add(time.Hour))

	req.NoError(engine.Offer(ctx, "u1", "x1", json.RawMessage(`{}`)))
}
