package negotiation

import (
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/beetv/internal/util"
)

// CandidateBuffer holds remote ICE candidates that arrive before the remote
// description is set, and applies them in arrival order once it is.
//
// It is not safe for concurrent use; a Session only touches it from its loop.
type CandidateBuffer struct {
	apply   func(webrtc.ICECandidateInit) error
	log     util.Scope
	ready   bool
	pending []webrtc.ICECandidateInit
}

// NewCandidateBuffer returns an empty, not-ready buffer that hands candidates
// to apply.
func NewCandidateBuffer(log util.Scope, apply func(webrtc.ICECandidateInit) error) *CandidateBuffer {
	return &CandidateBuffer{apply: apply, log: log}
}

// Offer applies c right away if the buffer is ready, otherwise appends it.
// It reports whether c was handed to the connection.
func (b *CandidateBuffer) Offer(c webrtc.ICECandidateInit) bool {
	if b.ready {
		b.applyOne(c)
		return true
	}
	b.pending = append(b.pending, c)
	util.Stats.AddBuffered()
	b.log.Debugf("buffered remote candidate (%d pending)", len(b.pending))
	return false
}

// Flush marks the buffer ready and applies everything pending, oldest first.
// A candidate the connection rejects is dropped, not retried.
func (b *CandidateBuffer) Flush() (applied, dropped int) {
	b.ready = true
	pending := b.pending
	b.pending = nil

	for _, c := range pending {
		if b.applyOne(c) {
			applied++
		} else {
			dropped++
		}
	}
	if len(pending) > 0 {
		b.log.Debugf("flushed %d buffered candidates (%d dropped)", applied, dropped)
	}
	return applied, dropped
}

// Discard empties the buffer and returns it to not-ready. It returns the
// number of candidates thrown away.
func (b *CandidateBuffer) Discard() int {
	n := len(b.pending)
	b.pending = nil
	b.ready = false
	return n
}

func (b *CandidateBuffer) Len() int    { return len(b.pending) }
func (b *CandidateBuffer) Ready() bool { return b.ready }

func (b *CandidateBuffer) applyOne(c webrtc.ICECandidateInit) bool {
	if err := b.apply(c); err != nil {
		util.Stats.AddDropped()
		b.log.Warnf("remote candidate rejected: %v", err)
		return false
	}
	util.Stats.AddApplied()
	return true
}
