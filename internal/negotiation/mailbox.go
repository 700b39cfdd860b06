package negotiation

import "sync"

// mailbox is an unbounded FIFO of tasks for the session loop. post never
// blocks and may be called from any goroutine, including transport callbacks
// fired while the loop is inside the transport.
type mailbox struct {
	mu     sync.Mutex
	tasks  []func()
	notify chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) post(task func()) {
	m.mu.Lock()
	m.tasks = append(m.tasks, task)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// ready fires at least once after every post.
func (m *mailbox) ready() <-chan struct{} {
	return m.notify
}

func (m *mailbox) drain() []func() {
	m.mu.Lock()
	tasks := m.tasks
	m.tasks = nil
	m.mu.Unlock()
	return tasks
}
