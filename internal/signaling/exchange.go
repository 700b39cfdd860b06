package signaling

import (
	"github.com/google/uuid"
)

// member is one connected participant as seen by the matchmaker.
type member struct {
	id   uint32
	name string
	send chan *Message

	queued Mode
	room   *room
}

// room is an active pairing of exactly two members.
type room struct {
	id        string
	mode      Mode
	initiator *member
	responder *member
}

func (r *room) other(m *member) *member {
	if r.initiator == m {
		return r.responder
	}
	return r.initiator
}

func (r *room) has(m *member) bool {
	return r.initiator == m || r.responder == m
}

// matchmaker owns the waiting queues and active rooms. It is only touched by
// the hub goroutine.
type matchmaker struct {
	queues map[Mode][]*member
	rooms  map[string]*room
	newID  func() string
}

func newMatchmaker() *matchmaker {
	return &matchmaker{
		queues: make(map[Mode][]*member),
		rooms:  make(map[string]*room),
		newID:  func() string { return uuid.NewString() },
	}
}

// join pairs m with the longest-waiting member of the same mode, or queues m
// when nobody is waiting. The waiting member becomes the initiator.
func (mm *matchmaker) join(m *member, mode Mode) *room {
	mm.dequeue(m)

	q := mm.queues[mode]
	if len(q) == 0 {
		mm.queues[mode] = append(q, m)
		m.queued = mode
		return nil
	}

	waiting := q[0]
	mm.queues[mode] = q[1:]
	waiting.queued = ""

	r := &room{id: mm.newID(), mode: mode, initiator: waiting, responder: m}
	for {
		if _, taken := mm.rooms[r.id]; !taken {
			break
		}
		r.id = mm.newID()
	}
	mm.rooms[r.id] = r
	waiting.room = r
	m.room = r
	return r
}

// dequeue removes m from whichever queue holds it.
func (mm *matchmaker) dequeue(m *member) {
	if m.queued == "" {
		return
	}
	q := mm.queues[m.queued]
	for i, w := range q {
		if w == m {
			mm.queues[m.queued] = append(q[:i:i], q[i+1:]...)
			break
		}
	}
	m.queued = ""
}

// end dissolves m's current room and returns the member left behind.
func (mm *matchmaker) end(m *member) (*room, *member) {
	r := m.room
	if r == nil {
		return nil, nil
	}
	other := r.other(m)
	delete(mm.rooms, r.id)
	r.initiator.room = nil
	r.responder.room = nil
	return r, other
}

// lookup returns the room with id if m is one of its members.
func (mm *matchmaker) lookup(m *member, id string) *room {
	r, ok := mm.rooms[id]
	if !ok || !r.has(m) {
		return nil
	}
	return r
}

func (mm *matchmaker) waiting() int {
	n := 0
	for _, q := range mm.queues {
		n += len(q)
	}
	return n
}
