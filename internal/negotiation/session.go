package negotiation

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/1ureka/beetv/internal/protocol"
	"github.com/1ureka/beetv/internal/util"
)

// Config describes one pairing. Room, NewConn and Signals are required.
type Config struct {
	Room     string
	Role     Role
	Priority int

	// Tiebreak orders offers of equal Priority. Zero picks a random value.
	Tiebreak uint64

	// Tracks are attached to every connection the session opens.
	Tracks []webrtc.TrackLocal

	NewConn  ConnFactory
	Signals  SignalSender
	Observer Observer
}

// Session negotiates one peer connection for one room. All state lives on a
// private event loop; the exported methods post work to it and wait.
//
// A Session is single-use: once Closed it stays Closed. Pairing again means
// creating a new Session.
type Session struct {
	room     string
	role     Role
	priority int
	tiebreak uint64
	tracks   []webrtc.TrackLocal
	newConn  ConnFactory
	signals  SignalSender
	observer Observer
	log      util.Scope

	mbox *mailbox
	done chan struct{}

	// mu guards the fields read from outside the loop.
	mu    sync.Mutex
	phase Phase
	err   error

	// Loop-owned.
	conn   Conn
	gen    uint64
	opened bool
	local  *webrtc.SessionDescription
	remote *webrtc.SessionDescription
	buffer *CandidateBuffer
}

// NewSession creates an Idle session and starts its event loop. Nothing is
// negotiated until Start or an incoming offer.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Room == "" {
		return nil, errors.New("negotiation: empty room")
	}
	if cfg.NewConn == nil {
		return nil, errors.New("negotiation: nil connection factory")
	}
	if cfg.Signals == nil {
		return nil, errors.New("negotiation: nil signal sender")
	}

	s := &Session{
		room:     cfg.Room,
		role:     cfg.Role,
		priority: cfg.Priority,
		tiebreak: cfg.Tiebreak,
		tracks:   cfg.Tracks,
		newConn:  cfg.NewConn,
		signals:  cfg.Signals,
		observer: cfg.Observer,
		log:      util.Scope(shortRoom(cfg.Room)),
		mbox:     newMailbox(),
		done:     make(chan struct{}),
	}
	if s.tiebreak == 0 {
		s.tiebreak = randomTiebreak()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	s.buffer = NewCandidateBuffer(s.log, s.applyCandidate)

	go s.run()
	return s, nil
}

// Room returns the room this session is bound to.
func (s *Session) Room() string { return s.room }

// Role returns the role assigned at creation.
func (s *Session) Role() Role { return s.role }

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Err returns the cause of a failure teardown, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session reaches Closed and its connection has been
// released.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start begins negotiating according to the session's role. An initiator
// creates and sends its offer; a responder prepares a connection and waits
// for the remote offer. Start on a session that is already negotiating is a
// no-op.
func (s *Session) Start(ctx context.Context) error {
	return s.do(ctx, s.start)
}

// HandleSignal processes one payload relayed from the other peer. Payloads
// tagged with another room, or arriving after Close, are discarded. A non-nil
// error is a negotiation failure; the session has been torn down.
func (s *Session) HandleSignal(ctx context.Context, room string, sig protocol.Signal) error {
	err := s.do(ctx, func() error { return s.handleSignal(room, sig) })
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

// Close tears the session down: the connection is closed, buffered
// candidates are discarded and late events are ignored. Close is idempotent.
func (s *Session) Close() error {
	err := s.do(context.Background(), func() error {
		s.teardown(nil)
		return nil
	})
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

// ──────────────────────────────────────────────────────────────────────────────
// Event loop
// ──────────────────────────────────────────────────────────────────────────────

func (s *Session) run() {
	for range s.mbox.ready() {
		for _, task := range s.mbox.drain() {
			task()
			if s.closed() {
				close(s.done)
				return
			}
		}
	}
}

// do runs fn on the loop and waits for its result.
func (s *Session) do(ctx context.Context, fn func() error) error {
	res := make(chan error, 1)
	s.mbox.post(func() {
		if s.closed() {
			res <- ErrSessionClosed
			return
		}
		res <- fn()
	})

	select {
	case err := <-res:
		return err
	case <-s.done:
		// The task that closed the session writes its result before done.
		select {
		case err := <-res:
			return err
		default:
			return ErrSessionClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) closed() bool {
	return s.Phase() == PhaseClosed
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	prev := s.phase
	s.phase = p
	s.mu.Unlock()
	if prev != p {
		s.log.Debugf("phase %s -> %s", prev, p)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Loop-side handlers
// ──────────────────────────────────────────────────────────────────────────────

func (s *Session) start() error {
	if s.Phase() != PhaseIdle {
		return nil
	}

	switch s.role {
	case RoleInitiator:
		if err := s.openConn(); err != nil {
			return s.fail("open connection", err)
		}
		s.setPhase(PhaseAwaitingLocalOffer)

		offer, err := s.conn.CreateOffer()
		if err != nil {
			return s.fail("create offer", err)
		}
		if err := s.conn.SetLocalDescription(offer); err != nil {
			return s.fail("set local offer", err)
		}
		s.local = &offer
		if err := s.signals.SendSignal(s.room, protocol.Offer(offer, s.priority, s.tiebreak)); err != nil {
			return s.fail("send offer", err)
		}
		s.setPhase(PhaseAwaitingRemoteAnswer)
		s.log.Infof("offer sent, awaiting answer")

	case RoleResponder:
		if err := s.openConn(); err != nil {
			return s.fail("open connection", err)
		}
		s.setPhase(PhaseAwaitingRemoteOffer)
		s.log.Infof("awaiting offer")

	default:
		return ErrRoleUndetermined
	}
	return nil
}

func (s *Session) handleSignal(room string, sig protocol.Signal) error {
	if room != s.room {
		util.Stats.AddMisrouted()
		s.log.Debugf("discarding %s for room %s", sig.Kind, shortRoom(room))
		return nil
	}
	if err := sig.Validate(); err != nil {
		s.log.Warnf("discarding malformed signal: %v", err)
		return nil
	}

	switch sig.Kind {
	case protocol.KindOffer:
		return s.onRemoteOffer(sig)
	case protocol.KindAnswer:
		return s.onRemoteAnswer(*sig.Description)
	case protocol.KindCandidate:
		s.buffer.Offer(*sig.Candidate)
	}
	return nil
}

func (s *Session) onRemoteOffer(sig protocol.Signal) error {
	switch s.Phase() {
	case PhaseIdle:
		if err := s.openConn(); err != nil {
			return s.fail("open connection", err)
		}
		s.setPhase(PhaseAwaitingRemoteOffer)

	case PhaseAwaitingRemoteOffer:

	case PhaseAwaitingRemoteAnswer:
		if !s.yieldsTo(sig) {
			util.Stats.AddStale()
			s.log.Infof("offer collision: keeping local offer")
			return nil
		}
		util.Stats.AddGlareYield()
		s.log.Infof("offer collision: yielding to remote offer")
		if err := s.reopenConn(); err != nil {
			return s.fail("reopen connection", err)
		}
		s.setPhase(PhaseAwaitingRemoteOffer)

	default:
		util.Stats.AddStale()
		s.log.Debugf("discarding offer in phase %s", s.Phase())
		return nil
	}

	desc := *sig.Description
	if err := s.conn.SetRemoteDescription(desc); err != nil {
		return s.fail("set remote offer", err)
	}
	s.remote = &desc
	s.setPhase(PhaseAwaitingLocalAnswer)
	s.buffer.Flush()

	answer, err := s.conn.CreateAnswer()
	if err != nil {
		return s.fail("create answer", err)
	}
	if err := s.conn.SetLocalDescription(answer); err != nil {
		return s.fail("set local answer", err)
	}
	s.local = &answer
	if err := s.signals.SendSignal(s.room, protocol.Answer(answer)); err != nil {
		return s.fail("send answer", err)
	}
	s.setPhase(PhaseStable)
	s.log.Infof("answer sent")
	return nil
}

func (s *Session) onRemoteAnswer(desc webrtc.SessionDescription) error {
	if s.Phase() != PhaseAwaitingRemoteAnswer {
		util.Stats.AddStale()
		s.log.Debugf("discarding answer in phase %s", s.Phase())
		return nil
	}

	if err := s.conn.SetRemoteDescription(desc); err != nil {
		return s.fail("set remote answer", err)
	}
	s.remote = &desc
	s.buffer.Flush()
	s.setPhase(PhaseStable)
	s.log.Infof("answer applied")
	return nil
}

// yieldsTo decides a collision between the local pending offer and sig.
// A responder always yields; an initiator yields only to a higher-ranked offer.
func (s *Session) yieldsTo(sig protocol.Signal) bool {
	if s.role != RoleInitiator {
		return true
	}
	return sig.Outranks(s.priority, s.tiebreak)
}

// ──────────────────────────────────────────────────────────────────────────────
// Connection lifecycle
// ──────────────────────────────────────────────────────────────────────────────

// openConn creates a connection, wires its callbacks to the loop and attaches
// the local tracks. Callbacks carry the connection's generation so events
// from a replaced or closed connection are ignored.
func (s *Session) openConn() error {
	conn, err := s.newConn()
	if err != nil {
		return err
	}

	s.gen++
	gen := s.gen

	conn.OnICECandidate(func(c webrtc.ICECandidateInit) {
		s.mbox.post(func() { s.emitCandidate(gen, c) })
	})
	conn.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		s.mbox.post(func() { s.onConnState(gen, st) })
	})
	conn.OnRemoteTrack(func(track *webrtc.TrackRemote) {
		s.mbox.post(func() {
			if gen == s.gen && !s.closed() {
				s.observer.OnRemoteStreamReady(track)
			}
		})
	})

	for _, track := range s.tracks {
		if err := conn.AddTrack(track); err != nil {
			_ = conn.Close()
			return fmt.Errorf("attach track %s: %w", track.ID(), err)
		}
	}

	s.conn = conn
	if !s.opened {
		s.opened = true
		util.Stats.AddOpened()
	}
	return nil
}

// reopenConn replaces the connection after yielding in a collision. The
// local offer is discarded; buffered remote candidates are kept for the
// winning offer.
func (s *Session) reopenConn() error {
	s.closeConn()
	s.local = nil
	return s.openConn()
}

func (s *Session) closeConn() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil {
		s.log.Warnf("closing connection: %v", err)
	}
	s.conn = nil
	s.gen++
}

func (s *Session) applyCandidate(c webrtc.ICECandidateInit) error {
	if s.conn == nil {
		return errNoConnection
	}
	return s.conn.AddICECandidate(c)
}

func (s *Session) emitCandidate(gen uint64, c webrtc.ICECandidateInit) {
	if gen != s.gen || s.closed() {
		return
	}
	if err := s.signals.SendSignal(s.room, protocol.Candidate(c)); err != nil {
		s.log.Warnf("sending candidate: %v", err)
	}
}

func (s *Session) onConnState(gen uint64, st webrtc.PeerConnectionState) {
	if gen != s.gen || s.closed() {
		return
	}
	state, ok := connectionStateFrom(st)
	if !ok {
		return
	}
	s.log.Debugf("connection %s", state)

	switch state {
	case StateFailed:
		s.teardown(ErrConnectionFailed)
	case StateClosed:
		s.teardown(nil)
	case StateConnected:
		util.Stats.AddEstablished()
		s.log.Infof("connected")
		s.observer.OnConnectionStateChanged(state)
	default:
		s.observer.OnConnectionStateChanged(state)
	}
}

// fail tears the session down and wraps err for the caller.
func (s *Session) fail(op string, err error) error {
	s.log.Errorf("%s: %v", op, err)
	s.teardown(err)
	return &Error{Room: s.room, Op: op, Err: err}
}

// teardown moves the session to Closed. A non-nil cause is reported to the
// observer as Failed before the final Closed.
func (s *Session) teardown(cause error) {
	if s.closed() {
		return
	}
	prev := s.Phase()

	s.closeConn()
	discarded := s.buffer.Discard()
	s.local, s.remote = nil, nil

	s.mu.Lock()
	s.err = cause
	s.mu.Unlock()
	s.setPhase(PhaseClosed)

	if s.opened {
		util.Stats.AddClosed()
	}
	s.log.Infof("session closed (was %s, %d buffered candidates discarded)", prev, discarded)

	if cause != nil {
		s.observer.OnConnectionStateChanged(StateFailed)
	}
	s.observer.OnConnectionStateChanged(StateClosed)
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func randomTiebreak() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("negotiation: crypto/rand: %v", err))
	}
	if v := binary.BigEndian.Uint64(b[:]); v != 0 {
		return v
	}
	return 1
}

// shortRoom trims a room id for log prefixes.
func shortRoom(room string) string {
	if len(room) > 8 {
		return room[:8]
	}
	return room
}
