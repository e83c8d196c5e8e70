// Package domain contains core concepts of the hub.
// This file defines the ephemeral call session records. Sessions live
// only in memory and are rebuilt from nothing on restart.
package domain

import "time"

type CallKind string

const (
	CallAudio CallKind = "audio"
	CallVideo CallKind = "video"
)

// NormalizeCallKind collapses any client-supplied kind to audio unless it
// is exactly "video".
func NormalizeCallKind(s string) CallKind {
	if s == string(CallVideo) {
		return CallVideo
	}
	return CallAudio
}

type CallState string

const (
	CallInvited  CallState = "invited"
	CallAccepted CallState = "accepted"
)

// CallSession is a pairwise call. Exactly two participants, fixed at
// creation; the session is removed on reject, hangup or ring timeout.
type CallSession struct {
	CallID     string
	Kind       CallKind
	CallerID   string
	CalleeID   string
	State      CallState
	AutoAnswer bool
	CreatedAt  time.Time
}

// OtherParty returns the opposite participant, or "" if the given
// principal is not part of the call.
func (c CallSession) OtherParty(userID string) string {
	switch userID {
	case c.CallerID:
		return c.CalleeID
	case c.CalleeID:
		return c.CallerID
	}
	return ""
}

// GroupCallSession is a multi-party call scoped to a group. The
// participant set starts as {host} and the session dies when it empties.
type GroupCallSession struct {
	CallID       string
	GroupID      string
	Kind         CallKind
	HostID       string
	Participants map[string]struct{}
	CreatedAt    time.Time
}

func (c GroupCallSession) HasParticipant(userID string) bool {
	_, ok := c.Participants[userID]
	return ok
}
