package signaling

import (
	"fmt"

	"github.com/1ureka/beetv/internal/protocol"
)

// write queues msg for the write pump.
func (c *Client) write(msg *Message) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrClientClosed
	}
}

// JoinQueue asks to be paired with the next participant waiting in mode.
// Any current room is left first.
func (c *Client) JoinQueue(mode Mode) error {
	return c.write(&Message{Type: MsgJoinQueue, Mode: mode})
}

// Leave ends the pairing in room.
func (c *Client) Leave(room string) error {
	return c.write(&Message{Type: MsgLeaveChat, Room: room})
}

// SendSignal relays sig to the other member of room.
func (c *Client) SendSignal(room string, sig protocol.Signal) error {
	data, err := protocol.Encode(sig)
	if err != nil {
		return fmt.Errorf("encode %s: %w", sig.Kind, err)
	}
	return c.write(&Message{Type: MsgSignal, Room: room, Signal: data})
}

// SendChat relays a chat line to both members of room.
func (c *Client) SendChat(room, text string) error {
	return c.write(&Message{Type: MsgSendMessage, Room: room, Text: text})
}
