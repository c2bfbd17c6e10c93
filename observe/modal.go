package observe

import (
	"sync"
	"time"
)

// ModalQueue holds blocking surface states raised by the backend (dialogs,
// file choosers, permission prompts) until a handler clears them. The queue
// is strictly first-in-first-out: only the head is visible, and only the head
// can be cleared. Raising is safe from backend event goroutines; Arrived
// lets an in-flight observation attempt lose the race to a fresh interrupt.
type ModalQueue struct {
	mu      sync.Mutex
	pending []Modal
	arrived chan struct{}
}

func NewModalQueue() *ModalQueue {
	return &ModalQueue{arrived: make(chan struct{}, 1)}
}

// Raise appends a modal to the queue and signals any waiting attempt.
func (q *ModalQueue) Raise(m Modal) {
	if m.RaisedAt.IsZero() {
		m.RaisedAt = time.Now()
	}
	q.mu.Lock()
	q.pending = append(q.pending, m)
	q.mu.Unlock()
	select {
	case q.arrived <- struct{}{}:
	default:
	}
}

// Peek returns the head of the queue without removing it.
func (q *ModalQueue) Peek() (Modal, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Modal{}, false
	}
	return q.pending[0], true
}

// Clear removes the head if it matches the given kind and, when tag is
// non-empty, the given handler tag. A mismatch leaves the queue untouched and
// returns false, so a handler for the wrong interrupt cannot consume someone
// else's modal.
func (q *ModalQueue) Clear(kind ModalKind, tag string) (Modal, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Modal{}, false
	}
	head := q.pending[0]
	if head.Kind != kind {
		return Modal{}, false
	}
	if tag != "" && head.Tag != tag {
		return Modal{}, false
	}
	q.pending = q.pending[1:]
	return head, true
}

// Len returns the number of pending modals.
func (q *ModalQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Snapshot copies the pending modals in queue order.
func (q *ModalQueue) Snapshot() []Modal {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Modal, len(q.pending))
	copy(out, q.pending)
	return out
}

// Drop discards every pending modal. Session teardown uses it so stale
// interrupts cannot leak into a fresh page.
func (q *ModalQueue) Drop() {
	q.mu.Lock()
	q.pending = nil
	q.mu.Unlock()
	select {
	case <-q.arrived:
	default:
	}
}

// Arrived signals that at least one Raise happened since the last receive.
// The signal is level-like, not counted: receivers must Peek afterwards and
// treat an empty queue as a spurious wakeup.
func (q *ModalQueue) Arrived() <-chan struct{} {
	return q.arrived
}
