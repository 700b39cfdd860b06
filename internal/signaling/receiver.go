package signaling

import (
	"context"

	"github.com/1ureka/beetv/internal/negotiation"
	"github.com/1ureka/beetv/internal/protocol"
	"github.com/1ureka/beetv/internal/util"
)

// Pairing is the matchmaker's notification that a room has formed.
type Pairing struct {
	Room     string
	Mode     Mode
	Role     negotiation.Role
	Priority int
	Name     string // own display name
	Peer     string // the other participant's display name
}

// Handler receives relay events from Dispatch. Methods are called one at a
// time, in arrival order.
type Handler interface {
	WaitingForMatch()
	PairingFormed(p Pairing)
	PairingEnded(room, reason string)
	OnSignal(room string, sig protocol.Signal)
	OnRelayChat(room, sender, text string)
	OnRelayError(msg string)
}

// Dispatch routes inbound messages to h until ctx is cancelled or the
// connection to the relay ends.
func (c *Client) Dispatch(ctx context.Context, h Handler) error {
	for {
		select {
		case msg := <-c.inbound:
			c.route(h, msg)

		case <-c.done:
			if err := c.Err(); err != nil {
				return err
			}
			return ErrClientClosed

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) route(h Handler, msg *Message) {
	switch msg.Type {
	case MsgWaiting:
		h.WaitingForMatch()

	case MsgChatStarted:
		role, err := negotiation.ParseRole(msg.Role)
		if err != nil {
			util.LogWarning("chat_started for room %s: %v", msg.Room, err)
		}
		h.PairingFormed(Pairing{
			Room:     msg.Room,
			Mode:     msg.Mode,
			Role:     role,
			Priority: msg.Priority,
			Name:     msg.Name,
			Peer:     msg.Peer,
		})

	case MsgChatEnded:
		h.PairingEnded(msg.Room, msg.Reason)

	case MsgSignal:
		sig, err := protocol.Decode(msg.Signal)
		if err != nil {
			util.LogWarning("dropping signal for room %s: %v", msg.Room, err)
			return
		}
		h.OnSignal(msg.Room, sig)

	case MsgNewMessage:
		h.OnRelayChat(msg.Room, msg.Sender, msg.Text)

	case MsgError:
		h.OnRelayError(msg.Error)

	default:
		util.LogDebug("ignoring relay message %q", msg.Type)
	}
}
