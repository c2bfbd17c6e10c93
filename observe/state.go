package observe

import (
	"net/url"
	"sync"
	"sync/atomic"
)

// DefaultMaxRawBytes caps the retained raw dump per session.
const DefaultMaxRawBytes = 1 << 20

// RawTruncationMarker is appended to a raw dump that was cut at the byte cap,
// so a later reader can tell a truncated baseline from a short one.
const RawTruncationMarker = "\n[truncated]"

// State is the bounded per-session observation memory: the last accepted
// tree, fingerprint, raw dump, and page identity, plus the pending interrupt
// queue and the attempt counter that serializes observations. All fields are
// guarded by one mutex; observation attempts are serialized by the caller but
// resets and interrupt handling may arrive from other goroutines.
type State struct {
	mu sync.Mutex

	fingerprint string
	tree        *Tree
	raw         string
	url         string
	title       string
	baseline    bool

	maxNodes    int
	maxRawBytes int

	attempt atomic.Uint64
	modals  *ModalQueue
}

// NewState returns an empty session state with the given retention caps.
// Non-positive caps fall back to the defaults.
func NewState(maxNodes, maxRawBytes int) *State {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	if maxRawBytes <= 0 {
		maxRawBytes = DefaultMaxRawBytes
	}
	return &State{
		maxNodes:    maxNodes,
		maxRawBytes: maxRawBytes,
		modals:      NewModalQueue(),
	}
}

// Interrupts exposes the session's modal queue.
func (s *State) Interrupts() *ModalQueue { return s.modals }

// MaxNodes returns the node cap applied to parsed trees.
func (s *State) MaxNodes() int { return s.maxNodes }

// beginAttempt advances the attempt counter and returns the new id. Exactly
// one observation attempt may hold the current id at a time.
func (s *State) beginAttempt() uint64 { return s.attempt.Add(1) }

// currentAttempt returns the most recently issued attempt id.
func (s *State) currentAttempt() uint64 { return s.attempt.Load() }

// HasBaseline reports whether an observation has been accepted since the
// last reset.
func (s *State) HasBaseline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseline
}

// Baseline returns the last accepted tree, raw dump, and page identity.
// The tree pointer is shared; callers must not mutate it.
func (s *State) Baseline() (t *Tree, raw, pageURL, title, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree, s.raw, s.url, s.title, s.fingerprint
}

// Apply installs an observation as the new baseline, enforcing the retention
// caps. The raw dump is cut at the byte cap with a trailing marker; the tree
// is assumed to already respect the node cap (the parser enforces it) but is
// clipped defensively when it does not.
func (s *State) Apply(t *Tree, raw string, info PageInfo) {
	if t == nil {
		t = &Tree{}
	}
	if len(t.Nodes) > s.maxNodes {
		clipped := &Tree{Nodes: t.Nodes[:s.maxNodes], Truncated: true}
		t = clipped
	}
	if len(raw) > s.maxRawBytes {
		raw = raw[:s.maxRawBytes] + RawTruncationMarker
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = t
	s.raw = raw
	s.fingerprint = Fingerprint(t)
	s.url = info.URL
	s.title = info.Title
	s.baseline = true
}

// Reset drops the baseline so the next observation reports a full snapshot.
// The interrupt queue and the attempt counter survive: a reset must not
// erase pending modals or let a stale attempt look current again.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree = nil
	s.raw = ""
	s.fingerprint = ""
	s.url = ""
	s.title = ""
	s.baseline = false
}

// Discontinuous reports whether moving from the recorded page to next is a
// hard navigation discontinuity, meaning the baseline no longer describes
// the same document family. Scheme or host changes qualify; path, query, and
// fragment changes do not, since soft navigations rewrite those freely.
func (s *State) Discontinuous(next string) bool {
	s.mu.Lock()
	prev := s.url
	ok := s.baseline
	s.mu.Unlock()
	if !ok || prev == "" || next == "" || prev == next {
		return false
	}
	pu, err1 := url.Parse(prev)
	nu, err2 := url.Parse(next)
	if err1 != nil || err2 != nil {
		return false
	}
	return pu.Scheme != nu.Scheme || pu.Host != nu.Host
}
