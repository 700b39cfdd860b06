// Package transport wraps a pion PeerConnection for one negotiation attempt:
// media tracks plus a pre-negotiated chat DataChannel.
package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/beetv/internal/protocol"
	"github.com/1ureka/beetv/internal/util"
)

var (
	ErrClosed       = errors.New("transport: closed")
	ErrChatNotReady = errors.New("transport: chat channel not open")
)

// Transport wraps a single PeerConnection + chat DataChannel pair. It is the
// connection a negotiation.Session drives; the session owns its lifetime.
//
// Done fires when the chat DataChannel closes, Close is called or the parent
// context is cancelled.
type Transport struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel

	chat       *chatWriter
	chatMu     sync.Mutex
	openSignal chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	onState func(webrtc.PeerConnectionState)

	closeOnce sync.Once
	closeErr  error
}

// NewTransport creates a Transport backed by a new PeerConnection and a
// pre-negotiated chat DataChannel.
func (a *API) NewTransport(ctx context.Context) (*Transport, error) {
	pc, err := a.newPeerConnection()
	if err != nil {
		return nil, err
	}

	dc, err := newChatChannel(pc)
	if err != nil {
		pc.Close()
		return nil, err
	}

	tCtx, tCancel := context.WithCancel(ctx)

	t := &Transport{
		pc:         pc,
		dc:         dc,
		openSignal: make(chan struct{}),
		ctx:        tCtx,
		cancel:     tCancel,
	}

	// DC open gate.
	var openOnce sync.Once
	dc.OnOpen(func() {
		util.LogDebug("chat channel open")
		openOnce.Do(func() { close(t.openSignal) })
	})

	// DC close → cancel transport context.
	dc.OnClose(func() {
		util.LogDebug("chat channel closed")
		tCancel()
	})

	// Forward PC state to the registered handler.
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		t.mu.RLock()
		fn := t.onState
		t.mu.RUnlock()

		util.LogDebug("PeerConnection state: %s", state.String())
		if fn != nil {
			fn(state)
		}
	})

	t.chat = newChatWriter(tCtx, dc, t.openSignal)

	return t, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Ready returns a channel that is closed when the chat DataChannel is open.
func (t *Transport) Ready() <-chan struct{} {
	return t.openSignal
}

// ChatReady reports whether chat frames can be sent directly to the peer.
func (t *Transport) ChatReady() bool {
	select {
	case <-t.openSignal:
		return t.ctx.Err() == nil
	default:
		return false
	}
}

// Done returns a channel that is closed when the Transport is shut down.
func (t *Transport) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Close shuts down the DataChannel and PeerConnection. Later calls return the
// first call's result.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		t.closeErr = errors.Join(t.dc.Close(), t.pc.Close())
	})
	return t.closeErr
}

// OnConnectionStateChange registers the handler for PeerConnection state
// changes, replacing any previous one.
func (t *Transport) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onState = fn
}

// ---------------------------------------------------------------------------
// Signaling
// ---------------------------------------------------------------------------

// CreateOffer generates an SDP offer.
func (t *Transport) CreateOffer() (webrtc.SessionDescription, error) {
	return t.pc.CreateOffer(nil)
}

// CreateAnswer generates an SDP answer.
func (t *Transport) CreateAnswer() (webrtc.SessionDescription, error) {
	return t.pc.CreateAnswer(nil)
}

// SetLocalDescription applies the local SDP and starts candidate gathering.
func (t *Transport) SetLocalDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetLocalDescription(sdp)
}

// SetRemoteDescription applies the remote SDP.
func (t *Transport) SetRemoteDescription(sdp webrtc.SessionDescription) error {
	return t.pc.SetRemoteDescription(sdp)
}

// OnICECandidate registers a callback invoked for every gathered local
// candidate. The end-of-gathering nil candidate is not forwarded.
func (t *Transport) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	t.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		fn(c.ToJSON())
	})
}

// AddICECandidate adds a remote ICE candidate received through signaling.
func (t *Transport) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return t.pc.AddICECandidate(candidate)
}

// ---------------------------------------------------------------------------
// Media
// ---------------------------------------------------------------------------

// AddTrack attaches a local track. Incoming RTCP for it is drained until the
// transport shuts down.
func (t *Transport) AddTrack(track webrtc.TrackLocal) error {
	rtpSender, err := t.pc.AddTrack(track)
	if err != nil {
		return err
	}

	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := rtpSender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

// OnRemoteTrack registers a callback invoked for every remote track.
func (t *Transport) OnRemoteTrack(fn func(*webrtc.TrackRemote)) {
	t.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		util.LogDebug("remote %s track %s (%s)", track.Kind(), track.ID(), track.Codec().MimeType)
		fn(track)
	})
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

// SendChat queues a text line for the peer. It fails fast when the chat
// channel is not open so callers can fall back to the relay.
func (t *Transport) SendChat(text string) error {
	if t.ctx.Err() != nil {
		return ErrClosed
	}
	if !t.ChatReady() {
		return ErrChatNotReady
	}

	t.chatMu.Lock()
	defer t.chatMu.Unlock()
	return t.chat.enqueue(text)
}

// OnChat registers a callback invoked for every inbound chat frame.
// Undecodable frames are logged and dropped.
func (t *Transport) OnChat(fn func(*protocol.ChatFrame)) {
	t.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		f, err := protocol.DecodeChat(msg.Data)
		if err != nil {
			util.LogWarning("dropping chat frame: %v", err)
			return
		}
		fn(f)
	})
}
