//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"community-hub/contract"
	"community-hub/domain"
	"community-hub/errors"
	"community-hub/push"
	"community-hub/repositories"
)

const (
	historyMinLimit = 1
	historyMaxLimit = 200
)

type IChatService interface {
	JoinPrivate(connID string, me domain.Principal, otherUserID string) error
	JoinGroup(ctx context.Context, connID string, p domain.Principal, groupID string) error
	JoinCommunity(connID string)

	SendPrivate(ctx context.Context, sender domain.Principal, toUserID, text string, media *domain.Media) (domain.Message, error)
	SendGroup(ctx context.Context, sender domain.Principal, groupID, text string, media *domain.Media) (domain.Message, error)
	SendCommunity(ctx context.Context, sender domain.Principal, text string, media *domain.Media) (domain.Message, error)

	HistoryPrivate(ctx context.Context, reader domain.Principal, otherUserID string, limit int, cursor *string) ([]domain.Message, *string, error)
	HistoryGroup(ctx context.Context, reader domain.Principal, groupID string, limit int, cursor *string) ([]domain.Message, *string, error)
	HistoryCommunity(ctx context.Context, reader domain.Principal, limit int, cursor *string) ([]domain.Message, *string, error)

	Delete(ctx context.Context, actor domain.Principal, messageID uuid.UUID) error
}

// ChatService is the message relay: it authorizes a send, persists it,
// fans it out to the right topics and schedules offline push delivery.
type ChatService struct {
	messages repositories.IMessageRepository
	users    repositories.IUserRepository
	groups   contract.GroupReader
	router   contract.IRouter
	notifier *push.Dispatcher
	log      *slog.Logger
}

func NewChatService(
	messages repositories.IMessageRepository,
	users repositories.IUserRepository,
	groups contract.GroupReader,
	router contract.IRouter,
	notifier *push.Dispatcher,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		messages: messages,
		users:    users,
		groups:   groups,
		router:   router,
		notifier: notifier,
		log:      log,
	}
}

// JoinPrivate is advisory self-subscription: the pair id embeds the
// joiner's identity, so no external check is needed. Access control for
// private messages happens at send time.
func (s *ChatService) JoinPrivate(connID string, me domain.Principal, otherUserID string) error {
	if otherUserID == "" {
		return errors.Validationf("otherUserId required")
	}
	s.router.Subscribe(connID, domain.Private(me.ID, otherUserID))
	return nil
}

// JoinGroup checks visibility and membership at join time. An
// unauthorized or unknown group is a silent no-op; only an upstream
// failure surfaces.
func (s *ChatService) JoinGroup(ctx context.Context, connID string, p domain.Principal, groupID string) error {
	if groupID == "" {
		return errors.Validationf("groupId required")
	}
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("group lookup: %w", errors.ErrUpstream)
	}
	if !group.CanAccess(p) {
		return nil
	}
	s.router.Subscribe(connID, domain.Group(groupID))
	return nil
}

func (s *ChatService) JoinCommunity(connID string) {
	s.router.Subscribe(connID, domain.Community())
}

func validateContent(text string, media *domain.Media) error {
	if text == "" && (media == nil || media.URL == "") {
		return errors.Validationf("text or media required")
	}
	return nil
}

func (s *ChatService) newMessage(kind domain.MessageKind, sender domain.Principal, text string, media *domain.Media) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		Kind:      kind,
		From:      sender.Profile(),
		Text:      text,
		Media:     media,
		CreatedAt: time.Now().UTC(),
	}
}

// persist stores the record; a storage failure aborts the whole send
// before any fan-out.
func (s *ChatService) persist(m domain.Message) error {
	if err := s.messages.StoreMessage(m); err != nil {
		s.log.Error("message persistence failed", "kind", m.Kind, "error", err)
		return fmt.Errorf("store message: %w", errors.ErrUpstream)
	}
	return nil
}

func (s *ChatService) SendPrivate(ctx context.Context, sender domain.Principal, toUserID, text string, media *domain.Media) (domain.Message, error) {
	if toUserID == "" {
		return domain.Message{}, errors.Validationf("toUserId required")
	}
	if err := validateContent(text, media); err != nil {
		return domain.Message{}, err
	}

	m := s.newMessage(domain.MessagePrivate, sender, text, media)
	m.To = toUserID
	if err := s.persist(m); err != nil {
		return domain.Message{}, err
	}

	evt := contract.Event{Name: contract.EventPrivateNew, Data: m}
	s.router.Fanout(ctx, domain.Private(sender.ID, toUserID), evt)
	// The recipient hears about it even before joining the pair topic.
	s.router.Fanout(ctx, domain.PrincipalTopic(toUserID), evt)

	s.notifier.Go([]string{toUserID}, messageNotification(sender, text, media))
	return m, nil
}

func (s *ChatService) SendGroup(ctx context.Context, sender domain.Principal, groupID, text string, media *domain.Media) (domain.Message, error) {
	if groupID == "" {
		return domain.Message{}, errors.Validationf("groupId required")
	}
	if err := validateContent(text, media); err != nil {
		return domain.Message{}, err
	}

	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return domain.Message{}, errors.ErrGroupNotFound
		}
		return domain.Message{}, fmt.Errorf("group lookup: %w", errors.ErrUpstream)
	}
	if !group.CanAccess(sender) {
		return domain.Message{}, errors.ErrForbidden
	}

	m := s.newMessage(domain.MessageGroup, sender, text, media)
	m.GroupID = groupID
	if err := s.persist(m); err != nil {
		return domain.Message{}, err
	}

	s.router.Fanout(ctx, domain.Group(groupID), contract.Event{Name: contract.EventGroupNew, Data: m})
	s.notifier.Go(group.MemberIDs(sender.ID), messageNotification(sender, text, media))
	return m, nil
}

func (s *ChatService) SendCommunity(ctx context.Context, sender domain.Principal, text string, media *domain.Media) (domain.Message, error) {
	if err := validateContent(text, media); err != nil {
		return domain.Message{}, err
	}

	m := s.newMessage(domain.MessageCommunity, sender, text, media)
	if err := s.persist(m); err != nil {
		return domain.Message{}, err
	}

	s.router.Fanout(ctx, domain.Community(), contract.Event{Name: contract.EventCommunityNew, Data: m})

	// Community push targets every principal holding a credential,
	// resolved in the background so the send never waits on the scan.
	go func() {
		targets, err := s.users.ListPushTargets(context.Background())
		if err != nil {
			s.log.Debug("push target scan failed", "error", err)
			return
		}
		s.notifier.Go(lo.Without(targets, sender.ID), messageNotification(sender, text, media))
	}()
	return m, nil
}

func messageNotification(sender domain.Principal, text string, media *domain.Media) contract.Notification {
	body := text
	if body == "" && media != nil {
		body = "Sent an attachment"
	}
	return contract.Notification{Title: sender.Name, Body: body}
}

func normalizeLimit(limit int) int {
	if limit < historyMinLimit {
		return 50
	}
	return min(limit, historyMaxLimit)
}

func (s *ChatService) history(reader domain.Principal, scope string, limit int, cursor *string) ([]domain.Message, *string, error) {
	records, next, err := s.messages.ListMessages(scope, normalizeLimit(limit), cursor)
	if err != nil {
		return nil, nil, fmt.Errorf("list messages: %w", errors.ErrUpstream)
	}
	redacted := lo.Map(records, func(m domain.Message, _ int) domain.Message {
		return m.Redacted(reader)
	})
	return redacted, next, nil
}

func (s *ChatService) HistoryPrivate(_ context.Context, reader domain.Principal, otherUserID string, limit int, cursor *string) ([]domain.Message, *string, error) {
	if otherUserID == "" {
		return nil, nil, errors.Validationf("otherUserId required")
	}
	return s.history(reader, "p:"+domain.PairID(reader.ID, otherUserID), limit, cursor)
}

func (s *ChatService) HistoryGroup(ctx context.Context, reader domain.Principal, groupID string, limit int, cursor *string) ([]domain.Message, *string, error) {
	if groupID == "" {
		return nil, nil, errors.Validationf("groupId required")
	}
	group, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil, errors.ErrGroupNotFound
		}
		return nil, nil, fmt.Errorf("group lookup: %w", errors.ErrUpstream)
	}
	if !group.CanAccess(reader) {
		return nil, nil, errors.ErrForbidden
	}
	return s.history(reader, "g:"+groupID, limit, cursor)
}

func (s *ChatService) HistoryCommunity(_ context.Context, reader domain.Principal, limit int, cursor *string) ([]domain.Message, *string, error) {
	return s.history(reader, "c", limit, cursor)
}

// Delete soft-marks a record. Permitted for the original sender or an
// administrator; group records additionally require group access for a
// non-sender actor. The content survives in storage and is redacted at
// read time for non-administrators.
func (s *ChatService) Delete(ctx context.Context, actor domain.Principal, messageID uuid.UUID) error {
	m, err := s.messages.GetMessage(messageID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return errors.ErrMessageNotFound
		}
		return fmt.Errorf("load message: %w", errors.ErrUpstream)
	}

	if m.From.ID != actor.ID && !actor.IsAdmin() {
		return errors.ErrForbidden
	}
	if m.Kind == domain.MessageGroup {
		group, err := s.groups.GetGroup(ctx, m.GroupID)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return errors.ErrGroupNotFound
			}
			return fmt.Errorf("group lookup: %w", errors.ErrUpstream)
		}
		if !group.CanAccess(actor) {
			return errors.ErrForbidden
		}
	}

	now := time.Now().UTC()
	m.DeletedAt = &now
	m.DeletedBy = actor.ID
	if err := s.messages.MarkDeleted(m); err != nil {
		return fmt.Errorf("mark deleted: %w", errors.ErrUpstream)
	}
	return nil
}
