package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"community-hub/domain"
	"community-hub/errors"
	"community-hub/mocks"
)

type fixture struct {
	messages *mocks.MockIMessageRepository
	users    *mocks.MockIUserRepository
	groups   *mocks.MockGroupReader
	router   *mocks.MockIRouter
	service  *ChatService
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := fixture{
		messages: mocks.NewMockIMessageRepository(ctrl),
		users:    mocks.NewMockIUserRepository(ctrl),
		groups:   mocks.NewMockGroupReader(ctrl),
		router:   mocks.NewMockIRouter(ctrl),
	}
	f.service = NewChatService(f.messages, f.users, f.groups, f.router, nil, slog.Default())
	return f
}

var (
	alice = domain.Principal{ID: "u1", Name: "Alice", Role: domain.RoleMember}
	admin = domain.Principal{ID: "mod", Name: "Mod", Role: domain.RoleAdmin}
)

func privateRoom() domain.GroupInfo {
	return domain.GroupInfo{
		ID:      "g1",
		Name:    "Board Room",
		Members: []domain.GroupMember{{UserID: "u1"}, {UserID: "u2"}},
	}
}

func Test_SendPrivate(t *testing.T) {
	t.Run("persists then fans out to pair and recipient", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.messages.EXPECT().StoreMessage(gomock.Any()).Return(nil)
		f.router.EXPECT().Fanout(gomock.Any(), domain.Private("u1", "u2"), gomock.Any())
		f.router.EXPECT().Fanout(gomock.Any(), domain.PrincipalTopic("u2"), gomock.Any())

		m, err := f.service.SendPrivate(context.Background(), alice, "u2", "hello", nil)

		req.NoError(err)
		req.Equal(domain.MessagePrivate, m.Kind)
		req.Equal("u2", m.To)
		req.Equal("u1", m.From.ID)
		req.NotEqual(uuid.Nil, m.ID)
	})

	t.Run("empty content is rejected before storage", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.messages.EXPECT().StoreMessage(gomock.Any()).Times(0)

		_, err := f.service.SendPrivate(context.Background(), alice, "u2", "", nil)

		req.ErrorIs(err, errors.ErrValidation)
		req.Equal("text or media required", err.Error())
	})

	t.Run("media alone is enough", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.messages.EXPECT().StoreMessage(gomock.Any()).Return(nil)
		f.router.EXPECT().Fanout(gomock.Any(), gomock.Any(), gomock.Any()).Times(2)

		m, err := f.service.SendPrivate(context.Background(), alice, "u2", "",
			&domain.Media{URL: "https://cdn.example/x.png"})

		req.NoError(err)
		req.NotNil(m.Media)
	})

	t.Run("storage failure aborts the fan-out", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.messages.EXPECT().StoreMessage(gomock.Any()).Return(errors.ErrUpstream)
		f.router.EXPECT().Fanout(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := f.service.SendPrivate(context.Background(), alice, "u2", "hello", nil)

		req.ErrorIs(err, errors.ErrUpstream)
	})
}

func Test_SendGroup(t *testing.T) {
	t.Run("member send reaches the group topic", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.groups.EXPECT().GetGroup(gomock.Any(), "g1").Return(privateRoom(), nil)
		f.messages.EXPECT().StoreMessage(gomock.Any()).Return(nil)
		f.router.EXPECT().Fanout(gomock.Any(), domain.Group("g1"), gomock.Any())

		m, err := f.service.SendGroup(context.Background(), alice, "g1", "hello room", nil)

		req.NoError(err)
		req.Equal("g1", m.GroupID)
	})

	t.Run("non-member send is never stored nor fanned out", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		outsider := domain.Principal{ID: "u9", Role: domain.RoleMember}
		f.groups.EXPECT().GetGroup(gomock.Any(), "g1").Return(privateRoom(), nil)
		f.messages.EXPECT().StoreMessage(gomock.Any()).Times(0)
		f.router.EXPECT().Fanout(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := f.service.SendGroup(context.Background(), outsider, "g1", "hello room", nil)

		req.ErrorIs(err, errors.ErrForbidden)
	})

	t.Run("unknown group is reported as such", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.groups.EXPECT().GetGroup(gomock.Any(), "nope").Return(domain.GroupInfo{}, errors.ErrGroupNotFound)

		_, err := f.service.SendGroup(context.Background(), alice, "nope", "anyone here", nil)

		req.ErrorIs(err, errors.ErrGroupNotFound)
	})

	t.Run("admin may post without membership", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.groups.EXPECT().GetGroup(gomock.Any(), "g1").Return(privateRoom(), nil)
		f.messages.EXPECT().StoreMessage(gomock.Any()).Return(nil)
		f.router.EXPECT().Fanout(gomock.Any(), domain.Group("g1"), gomock.Any())

		_, err := f.service.SendGroup(context.Background(), admin, "g1", "announcement", nil)

		req.NoError(err)
	})
}

func Test_JoinGroup_Is_Silent_On_Denial(t *testing.T) {
	t.Run("unauthorized join does not subscribe", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		outsider := domain.Principal{ID: "u9", Role: domain.RoleMember}
		f.groups.EXPECT().GetGroup(gomock.Any(), "g1").Return(privateRoom(), nil)
		f.router.EXPECT().Subscribe(gomock.Any(), gomock.Any()).Times(0)

		req.NoError(f.service.JoinGroup(context.Background(), "c1", outsider, "g1"))
	})

	t.Run("unknown group does not subscribe", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.groups.EXPECT().GetGroup(gomock.Any(), "nope").Return(domain.GroupInfo{}, errors.ErrGroupNotFound)
		f.router.EXPECT().Subscribe(gomock.Any(), gomock.Any()).Times(0)

		req.NoError(f.service.JoinGroup(context.Background(), "c1", alice, "nope"))
	})

	t.Run("store outage surfaces", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.groups.EXPECT().GetGroup(gomock.Any(), "g1").Return(domain.GroupInfo{}, errors.ErrUpstream)

		err := f.service.JoinGroup(context.Background(), "c1", alice, "g1")
		req.ErrorIs(err, errors.ErrUpstream)
	})

	t.Run("member join subscribes to the group topic", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		f.groups.EXPECT().GetGroup(gomock.Any(), "g1").Return(privateRoom(), nil)
		f.router.EXPECT().Subscribe("c1", domain.Group("g1"))

		req.NoError(f.service.JoinGroup(context.Background(), "c1", alice, "g1"))
	})
}

func Test_History_Redacts_Deleted_Content(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	now := time.Now().UTC()
	deleted := domain.Message{
		ID: uuid.New(), Kind: domain.MessageCommunity,
		From: domain.Principal{ID: "u2"}, Text: "oops",
		CreatedAt: now, DeletedAt: &now, DeletedBy: "u2",
	}
	live := domain.Message{
		ID: uuid.New(), Kind: domain.MessageCommunity,
		From: domain.Principal{ID: "u2"}, Text: "still here",
		CreatedAt: now,
	}

	f.messages.EXPECT().ListMessages("c", 50, gomock.Nil()).Return([]domain.Message{deleted, live}, nil, nil).Times(2)

	asMember, _, err := f.service.HistoryCommunity(context.Background(), alice, 0, nil)
	req.NoError(err)
	req.Empty(asMember[0].Text)
	req.Equal("still here", asMember[1].Text)

	asAdmin, _, err := f.service.HistoryCommunity(context.Background(), admin, 0, nil)
	req.NoError(err)
	req.Equal("oops", asAdmin[0].Text)
}

func Test_History_Limit_Is_Clamped(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.messages.EXPECT().ListMessages("c", 200, gomock.Nil()).Return(nil, nil, nil)
	_, _, err := f.service.HistoryCommunity(context.Background(), alice, 9999, nil)
	req.NoError(err)

	f.messages.EXPECT().ListMessages("c", 50, gomock.Nil()).Return(nil, nil, nil)
	_, _, err = f.service.HistoryCommunity(context.Background(), alice, -3, nil)
	req.NoError(err)
}

func Test_HistoryGroup_Requires_Access(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	outsider := domain.Principal{ID: "u9", Role: domain.RoleMember}
	f.groups.EXPECT().GetGroup(gomock.Any(), "g1").Return(privateRoom(), nil)

	_, _, err := f.service.HistoryGroup(context.Background(), outsider, "g1", 10, nil)
	req.ErrorIs(err, errors.ErrForbidden)
}

func Test_Delete(t *testing.T) {
	stored := func() domain.Message {
		return domain.Message{
			ID: uuid.New(), Kind: domain.MessagePrivate,
			From: domain.Principal{ID: "u1"}, To: "u2",
			Text: "take this back", CreatedAt: time.Now().UTC(),
		}
	}

	t.Run("sender may delete their own message", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		m := stored()
		f.messages.EXPECT().GetMessage(m.ID).Return(m, nil)
		f.messages.EXPECT().MarkDeleted(gomock.Any()).DoAndReturn(func(marked domain.Message) error {
			req.True(marked.Deleted())
			req.Equal("u1", marked.DeletedBy)
			return nil
		})

		req.NoError(f.service.Delete(context.Background(), alice, m.ID))
	})

	t.Run("someone else may not", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		m := stored()
		f.messages.EXPECT().GetMessage(m.ID).Return(m, nil)
		f.messages.EXPECT().MarkDeleted(gomock.Any()).Times(0)

		err := f.service.Delete(context.Background(), domain.Principal{ID: "u9"}, m.ID)
		req.ErrorIs(err, errors.ErrForbidden)
	})

	t.Run("admin may delete group messages they can access", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		m := stored()
		m.Kind = domain.MessageGroup
		m.To = ""
		m.GroupID = "g1"
		f.messages.EXPECT().GetMessage(m.ID).Return(m, nil)
		f.groups.EXPECT().GetGroup(gomock.Any(), "g1").Return(privateRoom(), nil)
		f.messages.EXPECT().MarkDeleted(gomock.Any()).Return(nil)

		req.NoError(f.service.Delete(context.Background(), admin, m.ID))
	})

	t.Run("unknown message", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		id := uuid.New()
		f.messages.EXPECT().GetMessage(id).Return(domain.Message{}, errors.ErrMessageNotFound)

		err := f.service.Delete(context.Background(), alice, id)
		req.ErrorIs(err, errors.ErrMessageNotFound)
	})
}
