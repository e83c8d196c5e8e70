package ws

import (
	"encoding/json"

	"community-hub/domain"
)

// envelope is one client→server request. The id correlates the reply.
type envelope struct {
	ID    uint64          `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type privateJoinReq struct {
	OtherUserID string `json:"otherUserId" validate:"required"`
}

type groupJoinReq struct {
	GroupID string `json:"groupId" validate:"required"`
}

type privateSendReq struct {
	ToUserID string        `json:"toUserId" validate:"required"`
	Text     string        `json:"text"`
	Media    *domain.Media `json:"media"`
}

type groupSendReq struct {
	GroupID string        `json:"groupId" validate:"required"`
	Text    string        `json:"text"`
	Media   *domain.Media `json:"media"`
}

type communitySendReq struct {
	Text  string        `json:"text"`
	Media *domain.Media `json:"media"`
}

type privateHistoryReq struct {
	OtherUserID string  `json:"otherUserId" validate:"required"`
	Limit       int     `json:"limit"`
	Cursor      *string `json:"cursor"`
}

type groupHistoryReq struct {
	GroupID string  `json:"groupId" validate:"required"`
	Limit   int     `json:"limit"`
	Cursor  *string `json:"cursor"`
}

type communityHistoryReq struct {
	Limit  int     `json:"limit"`
	Cursor *string `json:"cursor"`
}

type historyPage struct {
	Items  []domain.Message `json:"items"`
	Cursor *string          `json:"cursor,omitempty"`
}

type messageDeleteReq struct {
	MessageID string `json:"messageId" validate:"required,uuid"`
}

type pushRegisterReq struct {
	Token string `json:"token" validate:"required"`
}

type callInviteReq struct {
	ToUserID   string `json:"toUserId" validate:"required"`
	CallID     string `json:"callId" validate:"required"`
	Kind       string `json:"kind"`
	AutoAnswer bool   `json:"autoAnswer"`
}

type callRefReq struct {
	CallID string `json:"callId" validate:"required"`
}

type callSDPReq struct {
	CallID string          `json:"callId" validate:"required"`
	SDP    json.RawMessage `json:"sdp"`
}

type callICEReq struct {
	CallID    string          `json:"callId" validate:"required"`
	Candidate json.RawMessage `json:"candidate"`
}

type groupCallInviteReq struct {
	GroupID string `json:"groupId" validate:"required"`
	CallID  string `json:"callId" validate:"required"`
	Kind    string `json:"kind"`
}

type groupCallJoinReq struct {
	CallID  string `json:"callId" validate:"required"`
	GroupID string `json:"groupId" validate:"required"`
}

type groupCallSDPReq struct {
	CallID   string          `json:"callId" validate:"required"`
	ToUserID string          `json:"toUserId" validate:"required"`
	SDP      json.RawMessage `json:"sdp"`
}

type groupCallICEReq struct {
	CallID    string          `json:"callId" validate:"required"`
	ToUserID  string          `json:"toUserId" validate:"required"`
	Candidate json.RawMessage `json:"candidate"`
}

type groupCallLeaveReq struct {
	CallID  string `json:"callId" validate:"required"`
	GroupID string `json:"groupId"`
}

type presenceState struct {
	OnlineUserIDs []string `json:"onlineUserIds"`
}

type presenceUpdate struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}
