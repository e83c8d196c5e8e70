// Package domain contains core concepts of the hub.
// This file defines the Topic variants connections subscribe to.
package domain

import (
	"fmt"
	"strings"
)

type TopicKind string

const (
	TopicPrivate   TopicKind = "private"
	TopicGroup     TopicKind = "group"
	TopicCommunity TopicKind = "community"
	TopicPrincipal TopicKind = "principal"
)

// Topic is an addressable fan-out group. The zero value is invalid;
// use the constructors so the key stays canonical.
type Topic struct {
	Kind TopicKind
	// Ref is the pair id for private topics, the group id for group topics,
	// the principal id for principal topics and empty for community.
	Ref string
}

// PairID derives the deterministic private-conversation id for two
// principals. Either order yields the same id.
func PairID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// PairMembers splits a pair id back into its two principal ids.
func PairMembers(pairID string) (string, string) {
	parts := strings.SplitN(pairID, ":", 2)
	if len(parts) != 2 {
		return pairID, ""
	}
	return parts[0], parts[1]
}

func Private(a, b string) Topic      { return Topic{Kind: TopicPrivate, Ref: PairID(a, b)} }
func Group(groupID string) Topic     { return Topic{Kind: TopicGroup, Ref: groupID} }
func Community() Topic               { return Topic{Kind: TopicCommunity} }
func PrincipalTopic(id string) Topic { return Topic{Kind: TopicPrincipal, Ref: id} }

func (t Topic) String() string {
	if t.Ref == "" {
		return string(t.Kind)
	}
	return fmt.Sprintf("%s:%s", t.Kind, t.Ref)
}
