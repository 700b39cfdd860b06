package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxChatText caps the text carried by one frame, well under the SCTP
// message size pion negotiates by default.
const MaxChatText = 4096

var ErrChatTooLong = errors.New("protocol: chat text too long")

// ChatFrame is a text message sent directly to the peer over the DataChannel
// once the connection is up.
type ChatFrame struct {
	Seq    uint32    `msgpack:"seq"`
	SentAt time.Time `msgpack:"sent_at"`
	Text   string    `msgpack:"text"`
}

// EncodeChat serializes a ChatFrame with msgpack.
func EncodeChat(f *ChatFrame) ([]byte, error) {
	if len(f.Text) > MaxChatText {
		return nil, fmt.Errorf("%w: %d bytes", ErrChatTooLong, len(f.Text))
	}
	return msgpack.Marshal(f)
}

// DecodeChat deserializes a ChatFrame.
func DecodeChat(data []byte) (*ChatFrame, error) {
	var f ChatFrame
	if err := msgpack.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode chat frame: %w", err)
	}
	if len(f.Text) > MaxChatText {
		return nil, fmt.Errorf("%w: %d bytes", ErrChatTooLong, len(f.Text))
	}
	return &f, nil
}
