package signaling

import (
	"fmt"
	"testing"
)

func newTestMatchmaker() *matchmaker {
	mm := newMatchmaker()
	n := 0
	mm.newID = func() string {
		n++
		return fmt.Sprintf("room-%d", n)
	}
	return mm
}

func TestMatchmaker_FIFO(t *testing.T) {
	mm := newTestMatchmaker()
	a, b, c := &member{name: "a"}, &member{name: "b"}, &member{name: "c"}

	if r := mm.join(a, ModeVideo); r != nil {
		t.Fatalf("first join paired immediately")
	}
	if r := mm.join(b, ModeVideo); r != nil {
		// a and b pair; c waits next
		if r.initiator != a || r.responder != b {
			t.Fatalf("initiator must be the waiting member")
		}
	} else {
		t.Fatalf("second join did not pair")
	}
	if r := mm.join(c, ModeVideo); r != nil {
		t.Fatalf("c paired with a busy member")
	}
	if mm.waiting() != 1 || len(mm.rooms) != 1 {
		t.Fatalf("waiting=%d rooms=%d", mm.waiting(), len(mm.rooms))
	}
}

func TestMatchmaker_RejoinWhileQueued(t *testing.T) {
	mm := newTestMatchmaker()
	a := &member{name: "a"}
	mm.join(a, ModeVideo)
	mm.join(a, ModeVideo)
	if mm.waiting() != 1 {
		t.Fatalf("member queued twice")
	}

	mm.join(a, ModeText)
	if len(mm.queues[ModeVideo]) != 0 || len(mm.queues[ModeText]) != 1 {
		t.Fatalf("switching mode must move the member")
	}
}

func TestMatchmaker_EndAndLookup(t *testing.T) {
	mm := newTestMatchmaker()
	a, b, x := &member{name: "a"}, &member{name: "b"}, &member{name: "x"}
	mm.join(a, ModeVideo)
	r := mm.join(b, ModeVideo)

	if mm.lookup(a, r.id) != r || mm.lookup(b, r.id) != r {
		t.Fatalf("members cannot find their room")
	}
	if mm.lookup(x, r.id) != nil {
		t.Fatalf("outsider found the room")
	}

	ended, other := mm.end(b)
	if ended != r || other != a {
		t.Fatalf("end returned %v, %v", ended, other)
	}
	if a.room != nil || b.room != nil || mm.lookup(a, r.id) != nil {
		t.Fatalf("room still reachable after end")
	}
	if ended, _ := mm.end(a); ended != nil {
		t.Fatalf("second end returned a room")
	}
}
