package observe

import (
	"context"
	"time"
)

// DefaultDeadline bounds a single observation attempt.
const DefaultDeadline = 10 * time.Second

// Outcome classifies how an observation attempt ended.
type Outcome int

const (
	// OutcomeCompleted means the structural dump finished before anything
	// else happened. The dump may still carry an error.
	OutcomeCompleted Outcome = iota
	// OutcomeInterrupted means a modal surfaced before or during the dump.
	OutcomeInterrupted
	// OutcomeTimedOut means the deadline elapsed first.
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeInterrupted:
		return "interrupted"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Attempt is the result of one observation attempt.
type Attempt struct {
	ID      uint64
	Outcome Outcome
	Raw     string
	Err     error
	Modal   Modal
	Elapsed time.Duration
}

type dumpResult struct {
	raw string
	err error
}

// attempt races a structural dump against the session's interrupt queue and
// the configured deadline. When a modal wins or the deadline fires, the dump
// goroutine keeps running to completion in the background; its result lands
// in a buffered channel nobody reads and is collected. The attempt id is
// bumped before the dump starts, so a later attempt makes this one stale and
// the caller can refuse to apply its result.
func (o *Observer) attempt(ctx context.Context, be Backend, st *State) Attempt {
	if m, ok := st.Interrupts().Peek(); ok {
		return Attempt{ID: st.currentAttempt(), Outcome: OutcomeInterrupted, Modal: m}
	}

	id := st.beginAttempt()
	start := time.Now()

	ch := make(chan dumpResult, 1)
	go func() {
		raw, err := be.StructuralDump(ctx)
		ch <- dumpResult{raw: raw, err: err}
	}()

	deadline := o.deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	for {
		select {
		case r := <-ch:
			return Attempt{ID: id, Outcome: OutcomeCompleted, Raw: r.raw, Err: r.err, Elapsed: time.Since(start)}
		case <-st.Interrupts().Arrived():
			m, ok := st.Interrupts().Peek()
			if !ok {
				// the signal outlived its modal; keep racing
				continue
			}
			return Attempt{ID: id, Outcome: OutcomeInterrupted, Modal: m, Elapsed: time.Since(start)}
		case <-timer.C:
			return Attempt{ID: id, Outcome: OutcomeTimedOut, Elapsed: time.Since(start)}
		case <-ctx.Done():
			return Attempt{ID: id, Outcome: OutcomeTimedOut, Err: ctx.Err(), Elapsed: time.Since(start)}
		}
	}
}
