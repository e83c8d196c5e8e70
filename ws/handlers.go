package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"community-hub/errors"
)

// parse decodes and validates one request payload. Validation failures
// carry the wire field name so the client knows what it forgot.
func parse[T any](s *Server, raw json.RawMessage) (T, error) {
	var req T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			return req, errors.Validationf("malformed payload")
		}
	}
	if err := s.validate.Struct(&req); err != nil {
		var fields validator.ValidationErrors
		if stderrors.As(err, &fields) && len(fields) > 0 {
			field := fields[0]
			if field.Tag() == "required" {
				return req, errors.Validationf("%s required", field.Field())
			}
			return req, errors.Validationf("%s invalid", field.Field())
		}
		return req, errors.Validationf("invalid payload")
	}
	return req, nil
}

func (c *connection) ack(ctx context.Context, id uint64, data any, err error) {
	frame := ackFrame{ID: id, OK: err == nil, Data: data}
	if err != nil {
		frame.Message = errors.AckMessage(err)
		frame.Data = nil
	}
	if ackErr := c.sink.ack(ctx, frame); ackErr != nil {
		c.log.Debug("ack dropped", "request_id", id, "error", ackErr)
	}
}

// dispatch routes one request to its handler. A panicking handler costs
// the request a generic failure ack, never the connection.
func (c *connection) dispatch(ctx context.Context, env envelope) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("handler panic", "event", env.Event, "panic", r)
			c.ack(ctx, env.ID, nil, fmt.Errorf("handler panic"))
		}
	}()

	data, err := c.handle(ctx, env)
	c.ack(ctx, env.ID, data, err)
}

func (c *connection) handle(ctx context.Context, env envelope) (any, error) {
	s := c.server
	me := c.principal

	switch env.Event {
	case "private:join":
		req, err := parse[privateJoinReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.chat.JoinPrivate(c.id, me, req.OtherUserID)

	case "group:join":
		req, err := parse[groupJoinReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.chat.JoinGroup(ctx, c.id, me, req.GroupID)

	case "community:join":
		s.chat.JoinCommunity(c.id)
		return nil, nil

	case "private:send":
		req, err := parse[privateSendReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		m, err := s.chat.SendPrivate(ctx, me, req.ToUserID, req.Text, req.Media)
		if err != nil {
			return nil, err
		}
		return m, nil

	case "group:send":
		req, err := parse[groupSendReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		m, err := s.chat.SendGroup(ctx, me, req.GroupID, req.Text, req.Media)
		if err != nil {
			return nil, err
		}
		return m, nil

	case "community:send":
		req, err := parse[communitySendReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		m, err := s.chat.SendCommunity(ctx, me, req.Text, req.Media)
		if err != nil {
			return nil, err
		}
		return m, nil

	case "private:history":
		req, err := parse[privateHistoryReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		items, cursor, err := s.chat.HistoryPrivate(ctx, me, req.OtherUserID, req.Limit, req.Cursor)
		if err != nil {
			return nil, err
		}
		return historyPage{Items: items, Cursor: cursor}, nil

	case "group:history":
		req, err := parse[groupHistoryReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		items, cursor, err := s.chat.HistoryGroup(ctx, me, req.GroupID, req.Limit, req.Cursor)
		if err != nil {
			return nil, err
		}
		return historyPage{Items: items, Cursor: cursor}, nil

	case "community:history":
		req, err := parse[communityHistoryReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		items, cursor, err := s.chat.HistoryCommunity(ctx, me, req.Limit, req.Cursor)
		if err != nil {
			return nil, err
		}
		return historyPage{Items: items, Cursor: cursor}, nil

	case "message:delete":
		req, err := parse[messageDeleteReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		id, err := uuid.Parse(req.MessageID)
		if err != nil {
			return nil, errors.Validationf("messageId invalid")
		}
		return nil, s.chat.Delete(ctx, me, id)

	case "push:register":
		req, err := parse[pushRegisterReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		if err := s.users.SetPushToken(ctx, me.ID, req.Token); err != nil {
			return nil, fmt.Errorf("store push token: %w", errors.ErrUpstream)
		}
		return nil, nil

	case "call:invite":
		req, err := parse[callInviteReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.calls.Invite(ctx, me, req.ToUserID, req.CallID, req.Kind, req.AutoAnswer)

	case "call:accept":
		req, err := parse[callRefReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.calls.Accept(ctx, me, req.CallID)

	case "call:reject":
		req, err := parse[callRefReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.calls.Reject(ctx, me, req.CallID)

	case "call:offer":
		req, err := parse[callSDPReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.calls.Offer(ctx, me.ID, req.CallID, req.SDP)

	case "call:answer":
		req, err := parse[callSDPReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.calls.Answer(ctx, me.ID, req.CallID, req.SDP)

	case "call:ice":
		req, err := parse[callICEReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.calls.ICE(ctx, me.ID, req.CallID, req.Candidate)

	case "call:hangup":
		req, err := parse[callRefReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.calls.Hangup(ctx, me.ID, req.CallID)

	case "groupcall:invite":
		req, err := parse[groupCallInviteReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.groupCalls.Invite(ctx, me, req.GroupID, req.CallID, req.Kind)

	case "groupcall:join":
		req, err := parse[groupCallJoinReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.groupCalls.Join(ctx, me, req.CallID, req.GroupID)

	case "groupcall:offer":
		req, err := parse[groupCallSDPReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.groupCalls.Offer(ctx, me.ID, req.CallID, req.ToUserID, req.SDP)

	case "groupcall:answer":
		req, err := parse[groupCallSDPReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.groupCalls.Answer(ctx, me.ID, req.CallID, req.ToUserID, req.SDP)

	case "groupcall:ice":
		req, err := parse[groupCallICEReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.groupCalls.ICE(ctx, me.ID, req.CallID, req.ToUserID, req.Candidate)

	case "groupcall:leave":
		req, err := parse[groupCallLeaveReq](s, env.Data)
		if err != nil {
			return nil, err
		}
		return nil, s.groupCalls.Leave(ctx, me.ID, req.CallID, req.GroupID)

	default:
		return nil, errors.Validationf("unknown event %q", env.Event)
	}
}
