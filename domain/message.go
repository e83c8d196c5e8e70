// Package domain contains core concepts of the hub.
// This file defines Message records and their redaction rules.
// Messages are append-only; deletion is a soft marker on the record.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	MessagePrivate   MessageKind = "private"
	MessageGroup     MessageKind = "group"
	MessageCommunity MessageKind = "community"
)

// Media describes an already-uploaded attachment. The hub never touches
// the bytes, only the descriptor.
type Media struct {
	URL          string `json:"url"`
	PublicID     string `json:"publicId,omitempty"`
	ResourceType string `json:"resourceType,omitempty"`
}

// Message is a persisted chat record. From is populated with the sender's
// public profile before fan-out.
type Message struct {
	ID        uuid.UUID   `json:"_id"`
	Kind      MessageKind `json:"type"`
	From      Principal   `json:"from"`
	To        string      `json:"to,omitempty"`
	GroupID   string      `json:"group,omitempty"`
	Text      string      `json:"text"`
	Media     *Media      `json:"media,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`

	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	DeletedBy string     `json:"deletedBy,omitempty"`
}

func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Redacted returns a copy safe to show the given reader: soft-deleted
// content is blanked unless the reader is an administrator. This is a
// read-time transform; the stored record keeps its content.
func (m Message) Redacted(reader Principal) Message {
	if !m.Deleted() || reader.IsAdmin() {
		return m
	}
	m.Text = ""
	m.Media = nil
	return m
}

// Scope returns the storage scope the record belongs to, used as the
// key prefix discriminator.
func (m Message) Scope() string {
	switch m.Kind {
	case MessagePrivate:
		return "p:" + PairID(m.From.ID, m.To)
	case MessageGroup:
		return "g:" + m.GroupID
	default:
		return "c"
	}
}
