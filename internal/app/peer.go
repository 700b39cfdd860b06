package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/beetv/internal/media"
	"github.com/1ureka/beetv/internal/negotiation"
	"github.com/1ureka/beetv/internal/protocol"
	"github.com/1ureka/beetv/internal/signaling"
	"github.com/1ureka/beetv/internal/util"
)

var (
	ErrNotPaired = errors.New("app: not paired")
	ErrNoStream  = errors.New("app: no capture stream")
)

// chatConn is a connection that can also carry text directly to the peer.
// *transport.Transport implements it.
type chatConn interface {
	negotiation.Conn
	Ready() <-chan struct{}
	Done() <-chan struct{}
	ChatReady() bool
	SendChat(text string) error
	OnChat(fn func(*protocol.ChatFrame))
}

// Options configures a Peer. Capturer is only required in video mode.
type Options struct {
	Mode     signaling.Mode
	Relay    Relay
	Capturer media.Capturer
	NewConn  func(ctx context.Context) (negotiation.Conn, error)
	UI       UI
}

// Peer is one participant. It implements signaling.Handler: the relay
// drives pairings, and the user drives Next, End, RetryCapture and SendChat.
type Peer struct {
	mode     signaling.Mode
	relay    Relay
	capturer media.Capturer
	newConn  func(ctx context.Context) (negotiation.Conn, error)
	ui       UI

	mu     sync.Mutex
	ctx    context.Context
	stream *media.Stream
	cur    *pairing
}

// pairing is the state bound to one room.
type pairing struct {
	signaling.Pairing
	session *negotiation.Session

	mu   sync.Mutex
	conn chatConn // latest connection opened by session
}

func (pr *pairing) chat() chatConn {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return pr.conn
}

func (pr *pairing) setChat(c chatConn) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.conn = c
}

var _ signaling.Handler = (*Peer)(nil)

func NewPeer(opts Options) (*Peer, error) {
	if opts.Mode == "" {
		opts.Mode = signaling.ModeVideo
	}
	switch {
	case opts.Mode != signaling.ModeVideo && opts.Mode != signaling.ModeText:
		return nil, fmt.Errorf("app: unknown mode %q", opts.Mode)
	case opts.Relay == nil:
		return nil, errors.New("app: relay is required")
	case opts.NewConn == nil:
		return nil, errors.New("app: connection factory is required")
	case opts.UI == nil:
		return nil, errors.New("app: ui is required")
	case opts.Mode == signaling.ModeVideo && opts.Capturer == nil:
		return nil, errors.New("app: video mode needs a capturer")
	}

	return &Peer{
		mode:     opts.Mode,
		relay:    opts.Relay,
		capturer: opts.Capturer,
		newConn:  opts.NewConn,
		ui:       opts.UI,
		ctx:      context.Background(),
	}, nil
}

// Start acquires the capture device (video mode) and asks for a match. A
// refused device is reported to the UI and Start returns nil without
// queueing; RetryCapture tries again.
func (p *Peer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctx = ctx
	return p.queueLocked()
}

// RetryCapture re-requests the capture device after a refusal and queues on
// success. It is a no-op while a stream is held.
func (p *Peer) RetryCapture() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != signaling.ModeVideo || p.stream != nil {
		return nil
	}
	return p.queueLocked()
}

// Next ends the current pairing and looks for a new one. The old session is
// fully closed and the capture stream released before anything new starts.
func (p *Peer) Next() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.leaveLocked(); err != nil {
		return err
	}
	if err := p.releaseLocked(); err != nil {
		return err
	}
	return p.queueLocked()
}

// End leaves the current pairing and releases the capture device.
func (p *Peer) End() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.leaveLocked(); err != nil {
		return err
	}
	return p.releaseLocked()
}

// ToggleAudio mutes or unmutes the local audio and returns the new state.
func (p *Peer) ToggleAudio() (muted bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return false, ErrNoStream
	}
	muted = !p.stream.AudioMuted()
	p.stream.SetAudioMuted(muted)
	return muted, nil
}

// ToggleVideo turns the local video off or back on and returns true when it
// is now off.
func (p *Peer) ToggleVideo() (off bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return false, ErrNoStream
	}
	off = !p.stream.VideoMuted()
	p.stream.SetVideoMuted(off)
	return off, nil
}

// SendChat sends text to the current peer, directly over the connection when
// its chat channel is open and through the relay otherwise. The relay echoes
// lines back to the sender; direct lines are echoed locally.
func (p *Peer) SendChat(text string) error {
	if text == "" {
		return nil
	}

	p.mu.Lock()
	pr := p.cur
	p.mu.Unlock()
	if pr == nil {
		return ErrNotPaired
	}

	if cc := pr.chat(); cc != nil && cc.ChatReady() {
		err := cc.SendChat(text)
		if err == nil {
			p.ui.Chat(pr.Name, text)
			return nil
		}
		util.LogDebug("direct chat failed, using relay: %v", err)
	}
	return p.relay.SendChat(pr.Room, text)
}

// ──────────────────────────────────────────────────────────────────────────────
// signaling.Handler
// ──────────────────────────────────────────────────────────────────────────────

// WaitingForMatch closes any session still bound to a previous room before
// reporting that the peer is queued.
func (p *Peer) WaitingForMatch() {
	p.mu.Lock()
	if pr := p.closeLocked(); pr != nil {
		util.LogDebug("closed stale session for room %s while queued", pr.Room)
	}
	p.mu.Unlock()

	p.ui.Waiting()
}

func (p *Peer) PairingFormed(info signaling.Pairing) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closeLocked() != nil {
		util.LogWarning("paired into %s while another room was open", info.Room)
	}
	if p.mode == signaling.ModeVideo && p.stream == nil {
		util.LogWarning("paired into %s without a capture stream, leaving", info.Room)
		_ = p.relay.Leave(info.Room)
		return
	}

	var tracks []webrtc.TrackLocal
	if p.stream != nil {
		tracks = p.stream.Tracks()
	}

	pr := &pairing{Pairing: info}
	session, err := negotiation.NewSession(negotiation.Config{
		Room:     info.Room,
		Role:     info.Role,
		Priority: info.Priority,
		Tracks:   tracks,
		NewConn:  p.connFactory(p.ctx, pr),
		Signals:  p.relay,
		Observer: p.ui,
	})
	if err != nil {
		util.LogError("room %s: %v", info.Room, err)
		p.ui.Error(err.Error())
		return
	}
	pr.session = session
	p.cur = pr

	util.LogInfo("paired with %s as %s in room %s", info.Peer, info.Role, info.Room)
	p.ui.Paired(info.Room, info.Peer, info.Mode)

	if err := session.Start(p.ctx); err != nil {
		util.LogError("room %s: %v", info.Room, err)
		p.ui.Error(err.Error())
	}
}

func (p *Peer) PairingEnded(room, reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur == nil || p.cur.Room != room {
		util.LogDebug("ignoring end of room %s", room)
		return
	}
	p.closeLocked()
	util.LogInfo("room %s ended: %s", room, reason)
	p.ui.Ended(room, reason)
}

func (p *Peer) OnSignal(room string, sig protocol.Signal) {
	p.mu.Lock()
	pr, ctx := p.cur, p.ctx
	p.mu.Unlock()

	if pr == nil || pr.Room != room {
		util.Stats.AddMisrouted()
		util.LogDebug("dropping %s for room %s", sig.Kind, room)
		return
	}
	if err := pr.session.HandleSignal(ctx, room, sig); err != nil {
		p.ui.Error(err.Error())
	}
}

func (p *Peer) OnRelayChat(room, sender, text string) {
	p.mu.Lock()
	pr := p.cur
	p.mu.Unlock()

	if pr == nil || pr.Room != room {
		return
	}
	p.ui.Chat(sender, text)
}

func (p *Peer) OnRelayError(msg string) {
	util.LogWarning("relay: %s", msg)
	p.ui.Error(msg)
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

// connFactory opens connections for pr's session and keeps pr pointed at the
// latest one, which is the one carrying chat after a glare restart.
func (p *Peer) connFactory(ctx context.Context, pr *pairing) negotiation.ConnFactory {
	return func() (negotiation.Conn, error) {
		conn, err := p.newConn(ctx)
		if err != nil {
			return nil, err
		}
		if cc, ok := conn.(chatConn); ok {
			cc.OnChat(func(f *protocol.ChatFrame) {
				p.ui.Chat(pr.Peer, f.Text)
			})
			pr.setChat(cc)
			go p.watchChat(pr, cc)
		}
		return conn, nil
	}
}

// watchChat reports cc's chat channel to the UI once it opens. A connection
// replaced or closed first reports nothing.
func (p *Peer) watchChat(pr *pairing, cc chatConn) {
	select {
	case <-cc.Ready():
	case <-cc.Done():
		return
	}
	if pr.chat() == cc {
		p.ui.ChatOpen(pr.Peer)
	}
}

// queueLocked acquires capture when needed and joins the match queue.
func (p *Peer) queueLocked() error {
	if p.mode == signaling.ModeVideo && p.stream == nil {
		s, err := p.capturer.Acquire(p.ctx)
		if err != nil {
			var perr *media.PermissionError
			if errors.As(err, &perr) {
				util.LogWarning("%v", err)
				p.ui.OnPermissionDenied(err)
				return nil
			}
			return fmt.Errorf("acquire capture: %w", err)
		}
		p.stream = s
		p.ui.OnLocalStreamReady(s)
	}

	if err := p.relay.JoinQueue(p.mode); err != nil {
		return fmt.Errorf("join queue: %w", err)
	}
	return nil
}

// closeLocked closes the current session and waits until it is done.
func (p *Peer) closeLocked() *pairing {
	pr := p.cur
	if pr == nil {
		return nil
	}
	p.cur = nil

	_ = pr.session.Close()
	<-pr.session.Done()
	return pr
}

func (p *Peer) leaveLocked() error {
	pr := p.closeLocked()
	if pr == nil {
		return nil
	}
	if err := p.relay.Leave(pr.Room); err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	return nil
}

func (p *Peer) releaseLocked() error {
	if p.stream == nil {
		return nil
	}
	s := p.stream
	p.stream = nil
	if err := p.capturer.Release(s); err != nil {
		return fmt.Errorf("release capture: %w", err)
	}
	return nil
}
