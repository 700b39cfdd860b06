// Package signaling implements the relay channel between participants: the
// matchmaking server that pairs them into rooms and forwards their signaling
// payloads, and the client each participant uses to talk to it.
package signaling

import "encoding/json"

// MessageType identifies the kind of relay message.
type MessageType string

const (
	// Client → server.
	MsgJoinQueue   MessageType = "join_queue"
	MsgLeaveChat   MessageType = "leave_chat"
	MsgSendMessage MessageType = "send_message"

	// Server → client.
	MsgWaiting     MessageType = "waiting"
	MsgChatStarted MessageType = "chat_started"
	MsgChatEnded   MessageType = "chat_ended"
	MsgNewMessage  MessageType = "new_message"
	MsgError       MessageType = "error"

	// Both directions; relayed verbatim to the other room member.
	MsgSignal MessageType = "signal"
)

// Mode selects the waiting queue. Participants are only paired within the
// same mode.
type Mode string

const (
	ModeVideo Mode = "video"
	ModeText  Mode = "text"
)

func (m Mode) valid() bool {
	return m == ModeVideo || m == ModeText
}

// Reasons carried by chat_ended.
const (
	ReasonPeerLeft         = "peer-left"
	ReasonPeerDisconnected = "peer-disconnected"
)

// Role names carried by chat_started.
const (
	RoleInitiator = "initiator"
	RoleResponder = "responder"
)

// Message is the JSON structure exchanged over the WebSocket. Only the fields
// relevant to Type are set.
type Message struct {
	Type MessageType `json:"type"`
	Room string      `json:"room,omitempty"`
	Mode Mode        `json:"mode,omitempty"`

	// chat_started
	Role     string `json:"role,omitempty"`
	Priority int    `json:"priority,omitempty"`
	Name     string `json:"name,omitempty"`
	Peer     string `json:"peer,omitempty"`

	// chat_ended
	Reason string `json:"reason,omitempty"`

	// send_message / new_message
	Sender string `json:"sender,omitempty"`
	Text   string `json:"text,omitempty"`

	// signal: an encoded protocol.Signal, opaque to the server
	Signal json.RawMessage `json:"signal,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}
