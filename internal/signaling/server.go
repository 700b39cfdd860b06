package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/gorilla/websocket"

	"github.com/1ureka/beetv/internal/util"
)

const memberSendBuffer = 64

// inbound is a message read from a member, waiting for the hub.
type inbound struct {
	from *member
	msg  *Message
}

// Server is the matchmaking relay. All matchmaking state is owned by the hub
// goroutine started by Run; connection handlers only exchange messages with
// it over channels.
type Server struct {
	register   chan *member
	unregister chan *member
	inbound    chan inbound
	healthReq  chan chan health
	done       chan struct{}

	mm *matchmaker
}

// NewServer creates a Server. Run must be started before it accepts clients.
func NewServer() *Server {
	return &Server{
		register:   make(chan *member),
		unregister: make(chan *member),
		inbound:    make(chan inbound),
		healthReq:  make(chan chan health),
		done:       make(chan struct{}),
		mm:         newMatchmaker(),
	}
}

// Handler returns the HTTP handler serving /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// ListenAndServe serves the relay on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start relay server: %w", err)
	}
	util.LogSuccess("relay listening on %s", listener.Addr())

	go s.Run(ctx)

	srv := &http.Server{Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run is the hub loop. It returns when ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case m := <-s.register:
			util.LogInfo("[%08x] connected as %s", m.id, m.name)

		case m := <-s.unregister:
			s.mm.dequeue(m)
			if r, other := s.mm.end(m); r != nil {
				util.LogInfo("[%08x] disconnected from room %s", m.id, r.id)
				s.deliver(other, &Message{Type: MsgChatEnded, Room: r.id, Reason: ReasonPeerDisconnected})
			}
			close(m.send)
			util.LogInfo("[%08x] disconnected", m.id)

		case in := <-s.inbound:
			s.handle(in.from, in.msg)

		case reply := <-s.healthReq:
			reply <- health{Status: "ok", Rooms: len(s.mm.rooms), Waiting: s.mm.waiting()}

		case <-ctx.Done():
			return
		}
	}
}

// handle applies one client message to the matchmaking state.
func (s *Server) handle(m *member, msg *Message) {
	switch msg.Type {
	case MsgJoinQueue:
		mode := msg.Mode
		if mode == "" {
			mode = ModeVideo
		}
		if !mode.valid() {
			s.deliver(m, &Message{Type: MsgError, Error: fmt.Sprintf("unknown mode %q", msg.Mode)})
			return
		}

		if r, other := s.mm.end(m); r != nil {
			s.deliver(other, &Message{Type: MsgChatEnded, Room: r.id, Reason: ReasonPeerLeft})
		}

		r := s.mm.join(m, mode)
		if r == nil {
			util.LogDebug("[%08x] waiting for a %s match", m.id, mode)
			s.deliver(m, &Message{Type: MsgWaiting, Mode: mode})
			return
		}

		util.LogInfo("room %s: %s (initiator) + %s (responder)", r.id, r.initiator.name, r.responder.name)
		s.deliver(r.initiator, &Message{
			Type: MsgChatStarted, Room: r.id, Mode: r.mode,
			Role: RoleInitiator, Priority: 0,
			Name: r.initiator.name, Peer: r.responder.name,
		})
		s.deliver(r.responder, &Message{
			Type: MsgChatStarted, Room: r.id, Mode: r.mode,
			Role: RoleResponder, Priority: 1,
			Name: r.responder.name, Peer: r.initiator.name,
		})

	case MsgLeaveChat:
		s.mm.dequeue(m)
		if s.mm.lookup(m, msg.Room) == nil {
			return
		}
		r, other := s.mm.end(m)
		util.LogInfo("[%08x] left room %s", m.id, r.id)
		s.deliver(other, &Message{Type: MsgChatEnded, Room: r.id, Reason: ReasonPeerLeft})

	case MsgSignal:
		r := s.mm.lookup(m, msg.Room)
		if r == nil || len(msg.Signal) == 0 {
			util.LogDebug("[%08x] dropping signal for room %s", m.id, msg.Room)
			return
		}
		s.deliver(r.other(m), &Message{Type: MsgSignal, Room: r.id, Signal: msg.Signal})

	case MsgSendMessage:
		r := s.mm.lookup(m, msg.Room)
		if r == nil || msg.Text == "" {
			return
		}
		out := &Message{Type: MsgNewMessage, Room: r.id, Sender: m.name, Text: msg.Text}
		s.deliver(r.initiator, out)
		s.deliver(r.responder, out)

	default:
		util.LogWarning("[%08x] unknown message type %q", m.id, msg.Type)
		s.deliver(m, &Message{Type: MsgError, Error: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

// deliver queues msg for m without blocking the hub. A member whose buffer is
// full misses the message.
func (s *Server) deliver(m *member, msg *Message) {
	if m == nil {
		return
	}
	select {
	case m.send <- msg:
	default:
		util.LogWarning("[%08x] send buffer full, dropping %s", m.id, msg.Type)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// HTTP
// ──────────────────────────────────────────────────────────────────────────────

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m := &member{
		id:   util.ConnID(conn.NetConn()),
		name: petname.Generate(2, "-"),
		send: make(chan *Message, memberSendBuffer),
	}

	select {
	case s.register <- m:
	case <-s.done:
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go writePump(conn, m.send)
	s.readPump(conn, m)
}

// readPump forwards a member's messages to the hub until the connection
// fails, then unregisters it.
func (s *Server) readPump(conn *websocket.Conn, m *member) {
	defer func() {
		select {
		case s.unregister <- m:
		case <-s.done:
		}
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				util.LogDebug("[%08x] read: %v", m.id, err)
			}
			return
		}

		select {
		case s.inbound <- inbound{from: m, msg: &msg}:
		case <-s.done:
			return
		}
	}
}

type health struct {
	Status  string `json:"status"`
	Rooms   int    `json:"rooms"`
	Waiting int    `json:"waiting"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reply := make(chan health, 1)
	select {
	case s.healthReq <- reply:
	case <-s.done:
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(<-reply)
}
