package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func deletedMessage() Message {
	now := time.Now().UTC()
	return Message{
		ID:        uuid.New(),
		Kind:      MessageGroup,
		From:      Principal{ID: "u1", Name: "Alice"},
		GroupID:   "g1",
		Text:      "this message will self destruct in 5 seconds",
		Media:     &Media{URL: "https://cdn.example/x.png"},
		CreatedAt: now,
		DeletedAt: &now,
		DeletedBy: "u1",
	}
}

func Test_Redacted_Blanks_Content_For_Members(t *testing.T) {
	req := require.New(t)

	m := deletedMessage()
	out := m.Redacted(Principal{ID: "u2", Role: RoleMember})

	req.Empty(out.Text)
	req.Nil(out.Media)
	req.True(out.Deleted())
	req.Equal(m.ID, out.ID)
	// The stored value is untouched
	req.NotEmpty(m.Text)
}

func Test_Redacted_Keeps_Content_For_Admins(t *testing.T) {
	req := require.New(t)

	m := deletedMessage()
	out := m.Redacted(Principal{ID: "mod", Role: RoleAdmin})

	req.Equal(m.Text, out.Text)
	req.NotNil(out.Media)
}

func Test_Redacted_Is_Noop_For_Live_Messages(t *testing.T) {
	req := require.New(t)

	m := deletedMessage()
	m.DeletedAt = nil
	out := m.Redacted(Principal{ID: "u2", Role: RoleMember})

	req.Equal(m, out)
}

func Test_Scope_Discriminates_Kinds(t *testing.T) {
	req := require.New(t)

	private := Message{Kind: MessagePrivate, From: Principal{ID: "u2"}, To: "u1"}
	req.Equal("p:u1:u2", private.Scope())

	group := Message{Kind: MessageGroup, GroupID: "g1"}
	req.Equal("g:g1", group.Scope())

	community := Message{Kind: MessageCommunity}
	req.Equal("c", community.Scope())
}
