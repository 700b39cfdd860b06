package transport

import (
	"context"
	"errors"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/beetv/internal/protocol"
	"github.com/1ureka/beetv/internal/util"
)

const (
	chatHighWater = 64 * 1024 // hold frames while bufferedAmount exceeds this
	chatLowWater  = 16 * 1024 // resume once it drops below this
	chatBacklog   = 32        // frames queued before SendChat starts refusing
)

var ErrChatBacklog = errors.New("transport: too many chat lines pending")

// chatWriter is the only goroutine that writes to the chat DataChannel. It
// holds frames until the channel opens and pauses while the SCTP buffer is
// above chatHighWater.
type chatWriter struct {
	dc      *webrtc.DataChannel
	pending chan *protocol.ChatFrame
	drained chan struct{}
	seq     uint32 // guarded by Transport.chatMu
}

func newChatWriter(ctx context.Context, dc *webrtc.DataChannel, open <-chan struct{}) *chatWriter {
	w := &chatWriter{
		dc:      dc,
		pending: make(chan *protocol.ChatFrame, chatBacklog),
		drained: make(chan struct{}, 1),
	}

	dc.SetBufferedAmountLowThreshold(chatLowWater)
	dc.OnBufferedAmountLow(func() {
		select {
		case w.drained <- struct{}{}:
		default:
		}
	})

	go w.run(ctx, open)
	return w
}

// enqueue stamps text with the next sequence number and queues it without
// blocking.
func (w *chatWriter) enqueue(text string) error {
	if len(text) > protocol.MaxChatText {
		return protocol.ErrChatTooLong
	}
	w.seq++
	f := &protocol.ChatFrame{Seq: w.seq, SentAt: time.Now(), Text: text}

	select {
	case w.pending <- f:
		return nil
	default:
		w.seq--
		return ErrChatBacklog
	}
}

func (w *chatWriter) run(ctx context.Context, open <-chan struct{}) {
	select {
	case <-open:
	case <-ctx.Done():
		return
	}

	for {
		var f *protocol.ChatFrame
		select {
		case f = <-w.pending:
		case <-ctx.Done():
			return
		}

		if w.dc.BufferedAmount() > chatHighWater {
			select {
			case <-w.drained:
			case <-ctx.Done():
				return
			}
		}

		data, err := protocol.EncodeChat(f)
		if err != nil {
			util.LogWarning("dropping chat line %d: %v", f.Seq, err)
			continue
		}
		if err := w.dc.Send(data); err != nil {
			util.LogError("failed to send chat line %d: %v", f.Seq, err)
			return
		}
	}
}
