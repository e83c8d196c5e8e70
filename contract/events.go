package contract

// Server→client wire event names. Client→server names live in the ws
// dispatch table; these are shared because engines and services emit them.
const (
	EventPresenceState  = "presence:state"
	EventPresenceUpdate = "presence:update"

	EventPrivateNew   = "private:new"
	EventGroupNew     = "group:new"
	EventCommunityNew = "community:new"

	EventCallIncoming = "call:incoming"
	EventCallAccepted = "call:accepted"
	EventCallRejected = "call:rejected"
	EventCallOffer    = "call:offer"
	EventCallAnswer   = "call:answer"
	EventCallICE      = "call:ice"
	EventCallHangup   = "call:hangup"

	EventGroupCallIncoming = "groupcall:incoming"
	EventGroupCallJoined   = "groupcall:participant-joined"
	EventGroupCallOffer    = "groupcall:offer"
	EventGroupCallAnswer   = "groupcall:answer"
	EventGroupCallICE      = "groupcall:ice"
	EventGroupCallLeft     = "groupcall:participant-left"
)
