package negotiation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/beetv/internal/protocol"
)

// fakeConn is an in-memory Conn. Descriptions are opaque strings; setting a
// local description "gathers" the configured candidates through the
// candidate callback, like a real connection does.
type fakeConn struct {
	id     int
	gather []string

	setRemoteErr error
	reject       string

	mu         sync.Mutex
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []string
	tracks     []string
	closes     int

	onCandidate func(webrtc.ICECandidateInit)
	onState     func(webrtc.PeerConnectionState)
	onTrack     func(*webrtc.TrackRemote)
}

func (c *fakeConn) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: fmt.Sprintf("offer-%d", c.id)}, nil
}

func (c *fakeConn) CreateAnswer() (webrtc.SessionDescription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		return webrtc.SessionDescription{}, errors.New("no remote offer")
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: fmt.Sprintf("answer-%d", c.id)}, nil
}

func (c *fakeConn) SetLocalDescription(d webrtc.SessionDescription) error {
	c.mu.Lock()
	c.local = &d
	cb := c.onCandidate
	c.mu.Unlock()

	for _, g := range c.gather {
		if cb != nil {
			cb(webrtc.ICECandidateInit{Candidate: fmt.Sprintf("%s@%d", g, c.id)})
		}
	}
	return nil
}

func (c *fakeConn) SetRemoteDescription(d webrtc.SessionDescription) error {
	if c.setRemoteErr != nil {
		return c.setRemoteErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remote = &d
	return nil
}

func (c *fakeConn) AddICECandidate(ci webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remote == nil {
		return errors.New("remote description not set")
	}
	if c.reject != "" && ci.Candidate == c.reject {
		return errors.New("malformed candidate")
	}
	c.candidates = append(c.candidates, ci.Candidate)
	return nil
}

func (c *fakeConn) AddTrack(t webrtc.TrackLocal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracks = append(c.tracks, t.ID())
	return nil
}

func (c *fakeConn) OnICECandidate(f func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCandidate = f
}

func (c *fakeConn) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = f
}

func (c *fakeConn) OnRemoteTrack(f func(*webrtc.TrackRemote)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTrack = f
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeConn) fireState(st webrtc.PeerConnectionState) {
	c.mu.Lock()
	cb := c.onState
	c.mu.Unlock()
	cb(st)
}

func (c *fakeConn) fireCandidate(s string) {
	c.mu.Lock()
	cb := c.onCandidate
	c.mu.Unlock()
	cb(webrtc.ICECandidateInit{Candidate: s})
}

func (c *fakeConn) fireTrack() {
	c.mu.Lock()
	cb := c.onTrack
	c.mu.Unlock()
	cb(nil)
}

func (c *fakeConn) snapshot() (local, remote string, candidates []string, closes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.local != nil {
		local = c.local.SDP
	}
	if c.remote != nil {
		remote = c.remote.SDP
	}
	return local, remote, append([]string(nil), c.candidates...), c.closes
}

// fakeFactory hands out fakeConns with sequential ids.
type fakeFactory struct {
	gather []string
	err    error
	tweak  func(*fakeConn)

	mu    sync.Mutex
	conns []*fakeConn
}

func (f *fakeFactory) New() (Conn, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeConn{id: len(f.conns) + 1, gather: f.gather}
	if f.tweak != nil {
		f.tweak(c)
	}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.conns)
}

func (f *fakeFactory) conn(i int) *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[i]
}

func (f *fakeFactory) last() *fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[len(f.conns)-1]
}

// recordingSender captures outgoing signals.
type recordingSender struct {
	err error

	mu   sync.Mutex
	sent []protocol.Signal
	room []string
}

func (r *recordingSender) SendSignal(room string, sig protocol.Signal) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sig)
	r.room = append(r.room, room)
	return nil
}

func (r *recordingSender) ofKind(k protocol.Kind) []protocol.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.Signal
	for _, s := range r.sent {
		if s.Kind == k {
			out = append(out, s)
		}
	}
	return out
}

// recordingObserver captures UI notifications.
type recordingObserver struct {
	mu     sync.Mutex
	states []ConnectionState
	tracks int
}

func (o *recordingObserver) OnRemoteStreamReady(*webrtc.TrackRemote) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tracks++
}

func (o *recordingObserver) OnConnectionStateChanged(st ConnectionState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, st)
}

func (o *recordingObserver) snapshot() ([]ConnectionState, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ConnectionState(nil), o.states...), o.tracks
}

type harness struct {
	s   *Session
	f   *fakeFactory
	out *recordingSender
	obs *recordingObserver
}

func newHarness(t *testing.T, room string, role Role, priority int, tiebreak uint64) *harness {
	t.Helper()
	h := &harness{
		f:   &fakeFactory{gather: []string{"host"}},
		out: &recordingSender{},
		obs: &recordingObserver{},
	}
	s, err := NewSession(Config{
		Room:     room,
		Role:     role,
		Priority: priority,
		Tiebreak: tiebreak,
		NewConn:  h.f.New,
		Signals:  h.out,
		Observer: h.obs,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	h.s = s
	t.Cleanup(func() { _ = s.Close() })
	return h
}

// settle waits until every task already posted to the loop has run.
func settle(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.do(ctx, func() error { return nil }); err != nil && !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("settle: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func offerSig(sdp string, priority int, tiebreak uint64) protocol.Signal {
	return protocol.Offer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}, priority, tiebreak)
}

func answerSig(sdp string) protocol.Signal {
	return protocol.Answer(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

func candSig(s string) protocol.Signal {
	return protocol.Candidate(webrtc.ICECandidateInit{Candidate: s})
}
