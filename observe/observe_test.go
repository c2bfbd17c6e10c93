package observe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// stubBackend serves canned dumps with optional latency, errors, and a hook
// fired at the start of each dump call.
type stubBackend struct {
	mu      sync.Mutex
	dumps   []string
	calls   int
	delay   time.Duration
	err     error
	info    PageInfo
	infoErr error
	onDump  func()
}

func (s *stubBackend) StructuralDump(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.calls++
	i := s.calls - 1
	delay := s.delay
	hook := s.onDump
	err := s.err
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dumps) == 0 {
		return "", nil
	}
	if i >= len(s.dumps) {
		i = len(s.dumps) - 1
	}
	return s.dumps[i], nil
}

func (s *stubBackend) PageInfo(context.Context) (PageInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info, s.infoErr
}

func (s *stubBackend) setInfo(info PageInfo) {
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
}

func (s *stubBackend) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

const (
	dumpCart = `- heading "Your cart"
- button "Checkout" [ref=e1]
- link "Continue shopping" [ref=e2]`

	dumpCartChanged = `- heading "Your cart"
- button "Checkout" [ref=e1] [disabled]
- link "Continue shopping" [ref=e2]
- alert "Card declined" [ref=e9]`
)

func newTestObserver() *Observer {
	return New(WithDeadline(2 * time.Second))
}

func TestObserveFirstIsFull(t *testing.T) {
	be := &stubBackend{dumps: []string{dumpCart}, info: PageInfo{URL: "https://shop.example/cart", Title: "Cart"}}
	st := NewState(0, 0)

	rep, err := newTestObserver().Observe(context.Background(), be, st)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if rep.Kind != ReportFull {
		t.Fatalf("Kind = %q, want %q", rep.Kind, ReportFull)
	}
	if got, want := len(rep.Tree.Nodes), 3; got != want {
		t.Errorf("tree has %d nodes, want %d", got, want)
	}
	if !st.HasBaseline() {
		t.Error("baseline not set after first observation")
	}

	out := rep.Render()
	if !strings.Contains(out, "url: https://shop.example/cart") {
		t.Errorf("render missing url line:\n%s", out)
	}
	if !strings.Contains(out, `[ref=e1]`) {
		t.Errorf("render missing ref marker:\n%s", out)
	}
}

func TestObserveNoChange(t *testing.T) {
	be := &stubBackend{dumps: []string{dumpCart}, info: PageInfo{URL: "https://shop.example/cart", Title: "Cart"}}
	st := NewState(0, 0)
	o := newTestObserver()

	if _, err := o.Observe(context.Background(), be, st); err != nil {
		t.Fatal(err)
	}
	rep, err := o.Observe(context.Background(), be, st)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Kind != ReportNoChange {
		t.Fatalf("Kind = %q, want %q", rep.Kind, ReportNoChange)
	}
	if out := rep.Render(); !strings.Contains(out, "no structural changes") {
		t.Errorf("render = %q, want no-change message", out)
	}
}

func TestObserveDiff(t *testing.T) {
	be := &stubBackend{dumps: []string{dumpCart, dumpCartChanged}, info: PageInfo{URL: "https://shop.example/cart", Title: "Cart"}}
	st := NewState(0, 0)
	o := newTestObserver()

	if _, err := o.Observe(context.Background(), be, st); err != nil {
		t.Fatal(err)
	}
	rep, err := o.Observe(context.Background(), be, st)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Kind != ReportDiff {
		t.Fatalf("Kind = %q, want %q", rep.Kind, ReportDiff)
	}
	if got, want := len(rep.Diff.Added), 1; got != want {
		t.Errorf("len(Added) = %d, want %d", got, want)
	}
	if got, want := len(rep.Diff.Modified), 1; got != want {
		t.Errorf("len(Modified) = %d, want %d", got, want)
	}

	out := rep.Render()
	alertAt := strings.Index(out, "! alert")
	if alertAt < 0 {
		t.Fatalf("error entry not surfaced:\n%s", out)
	}
	modAt := strings.Index(out, "~ button")
	if modAt >= 0 && alertAt > modAt {
		t.Errorf("alert rendered after modification:\n%s", out)
	}
}

func TestObserveURLChangeWithIdenticalTree(t *testing.T) {
	be := &stubBackend{dumps: []string{dumpCart}, info: PageInfo{URL: "https://shop.example/cart", Title: "Cart"}}
	st := NewState(0, 0)
	o := newTestObserver()

	if _, err := o.Observe(context.Background(), be, st); err != nil {
		t.Fatal(err)
	}
	be.setInfo(PageInfo{URL: "https://shop.example/checkout", Title: "Cart"})

	rep, err := o.Observe(context.Background(), be, st)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Kind != ReportDiff {
		t.Fatalf("Kind = %q, want %q", rep.Kind, ReportDiff)
	}
	if !rep.URLChanged {
		t.Error("URLChanged = false")
	}
	out := rep.Render()
	if !strings.HasPrefix(out, "url: https://shop.example/cart -> https://shop.example/checkout") {
		t.Errorf("url transition not first:\n%s", out)
	}
	if !strings.Contains(out, "no structural changes") {
		t.Errorf("missing quiet-tree note:\n%s", out)
	}
}

func TestObserveTimeout(t *testing.T) {
	be := &stubBackend{dumps: []string{dumpCart}, delay: 2 * time.Second}
	st := NewState(0, 0)
	o := New(WithDeadline(50 * time.Millisecond))

	start := time.Now()
	rep, err := o.Observe(context.Background(), be, st)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if rep.Kind != ReportTimeout {
		t.Fatalf("Kind = %q, want %q", rep.Kind, ReportTimeout)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took %s, want well under the dump latency", elapsed)
	}
	if st.HasBaseline() {
		t.Error("timed-out attempt updated the baseline")
	}
	if out := rep.Render(); !strings.Contains(out, "timed out") {
		t.Errorf("render = %q, want timeout placeholder", out)
	}
}

func TestObservePendingModalShortCircuits(t *testing.T) {
	be := &stubBackend{dumps: []string{dumpCart}}
	st := NewState(0, 0)
	st.Interrupts().Raise(Modal{Kind: ModalDialog, Tag: "d1", Description: `confirm: "Leave page?"`})

	rep, err := newTestObserver().Observe(context.Background(), be, st)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Kind != ReportModal {
		t.Fatalf("Kind = %q, want %q", rep.Kind, ReportModal)
	}
	if got := be.callCount(); got != 0 {
		t.Errorf("dump called %d times with pending modal, want 0", got)
	}
	if rep.Modal.Tag != "d1" {
		t.Errorf("Modal.Tag = %q, want d1", rep.Modal.Tag)
	}
	if out := rep.Render(); !strings.Contains(out, "blocked: dialog") {
		t.Errorf("render = %q, want blocked line", out)
	}
}

func TestObserveInterruptDuringDump(t *testing.T) {
	st := NewState(0, 0)
	be := &stubBackend{dumps: []string{dumpCart}, delay: 2 * time.Second}
	be.onDump = func() {
		time.AfterFunc(20*time.Millisecond, func() {
			st.Interrupts().Raise(Modal{Kind: ModalFileChooser, Tag: "f1"})
		})
	}

	start := time.Now()
	rep, err := newTestObserver().Observe(context.Background(), be, st)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Kind != ReportModal {
		t.Fatalf("Kind = %q, want %q", rep.Kind, ReportModal)
	}
	if rep.Modal.Kind != ModalFileChooser {
		t.Errorf("Modal.Kind = %q, want %q", rep.Modal.Kind, ModalFileChooser)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("interrupt took %s to win the race", elapsed)
	}
	if st.HasBaseline() {
		t.Error("interrupted attempt updated the baseline")
	}
}

func TestObserveStaleResultNotApplied(t *testing.T) {
	st := NewState(0, 0)
	be := &stubBackend{dumps: []string{dumpCart}}
	// a newer attempt starts while the dump is in flight
	be.onDump = func() { st.beginAttempt() }

	rep, err := newTestObserver().Observe(context.Background(), be, st)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Kind != ReportNoChange {
		t.Fatalf("Kind = %q, want %q", rep.Kind, ReportNoChange)
	}
	if st.HasBaseline() {
		t.Error("stale result was applied to the baseline")
	}
	if len(rep.Annotations) == 0 || !strings.Contains(rep.Annotations[0], "superseded") {
		t.Errorf("Annotations = %v, want superseded note", rep.Annotations)
	}
}

func TestObserveHardNavigationResets(t *testing.T) {
	be := &stubBackend{dumps: []string{dumpCart}, info: PageInfo{URL: "https://shop.example/cart", Title: "Cart"}}
	st := NewState(0, 0)
	o := newTestObserver()

	if _, err := o.Observe(context.Background(), be, st); err != nil {
		t.Fatal(err)
	}
	be.setInfo(PageInfo{URL: "https://other.example/landing", Title: "Landing"})

	rep, err := o.Observe(context.Background(), be, st)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Kind != ReportFull {
		t.Fatalf("Kind = %q after origin change, want %q", rep.Kind, ReportFull)
	}
	found := false
	for _, a := range rep.Annotations {
		if strings.Contains(a, "origin boundary") {
			found = true
		}
	}
	if !found {
		t.Errorf("Annotations = %v, want origin boundary note", rep.Annotations)
	}
}

func TestObserveDifferentialOff(t *testing.T) {
	be := &stubBackend{dumps: []string{dumpCart}, info: PageInfo{URL: "https://shop.example/"}}
	st := NewState(0, 0)
	o := newTestObserver()
	o.SetMode(false, GranularityTree)

	for i := 0; i < 2; i++ {
		rep, err := o.Observe(context.Background(), be, st)
		if err != nil {
			t.Fatal(err)
		}
		if rep.Kind != ReportFull {
			t.Fatalf("observation %d Kind = %q, want %q", i, rep.Kind, ReportFull)
		}
	}
}

func TestObserveGranularityRaw(t *testing.T) {
	be := &stubBackend{dumps: []string{dumpCart, dumpCartChanged}, info: PageInfo{URL: "https://shop.example/cart"}}
	st := NewState(0, 0)
	o := newTestObserver()
	o.SetMode(true, GranularityRaw)

	if _, err := o.Observe(context.Background(), be, st); err != nil {
		t.Fatal(err)
	}
	rep, err := o.Observe(context.Background(), be, st)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Kind != ReportDiff {
		t.Fatalf("Kind = %q, want %q", rep.Kind, ReportDiff)
	}
	if rep.Diff != nil {
		t.Error("tree diff present in raw-only mode")
	}
	if rep.Raw == nil || rep.Raw.Similarity >= 1 {
		t.Fatalf("Raw = %+v, want similarity below 1", rep.Raw)
	}
	if out := rep.Render(); !strings.Contains(out, "raw similarity:") {
		t.Errorf("render missing similarity line:\n%s", out)
	}
}

func TestObserveGranularityBoth(t *testing.T) {
	be := &stubBackend{dumps: []string{dumpCart, dumpCartChanged}, info: PageInfo{URL: "https://shop.example/cart"}}
	st := NewState(0, 0)
	o := newTestObserver()
	o.SetMode(true, GranularityBoth)

	if _, err := o.Observe(context.Background(), be, st); err != nil {
		t.Fatal(err)
	}
	rep, err := o.Observe(context.Background(), be, st)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Diff == nil || rep.Raw == nil {
		t.Fatalf("Diff = %v, Raw = %v, want both", rep.Diff, rep.Raw)
	}
}

func TestSnapshotForcesFull(t *testing.T) {
	be := &stubBackend{dumps: []string{dumpCart}, info: PageInfo{URL: "https://shop.example/cart"}}
	st := NewState(0, 0)
	o := newTestObserver()

	if _, err := o.Observe(context.Background(), be, st); err != nil {
		t.Fatal(err)
	}
	rep, err := o.Snapshot(context.Background(), be, st)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Kind != ReportFull {
		t.Fatalf("Kind = %q, want %q", rep.Kind, ReportFull)
	}
	if len(rep.Tree.Nodes) != 3 {
		t.Errorf("tree has %d nodes, want 3", len(rep.Tree.Nodes))
	}
}

func TestObserveDumpErrorDegrades(t *testing.T) {
	be := &stubBackend{err: errors.New("target crashed"), info: PageInfo{URL: "https://shop.example/"}}
	st := NewState(0, 0)

	rep, err := newTestObserver().Observe(context.Background(), be, st)
	if err != nil {
		t.Fatalf("Observe() error = %v, want degraded report", err)
	}
	if rep.Kind != ReportFull {
		t.Fatalf("Kind = %q, want %q", rep.Kind, ReportFull)
	}
	if len(rep.Tree.Nodes) != 0 {
		t.Errorf("tree has %d nodes, want 0", len(rep.Tree.Nodes))
	}
	found := false
	for _, a := range rep.Annotations {
		if strings.Contains(a, "degraded") {
			found = true
		}
	}
	if !found {
		t.Errorf("Annotations = %v, want degradation note", rep.Annotations)
	}
}

func TestObserveContextCancelled(t *testing.T) {
	be := &stubBackend{dumps: []string{dumpCart}, delay: 2 * time.Second}
	st := NewState(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	rep, err := newTestObserver().Observe(ctx, be, st)
	if err == nil {
		t.Fatal("Observe() error = nil, want context error")
	}
	if rep.Kind != ReportTimeout {
		t.Errorf("Kind = %q, want %q", rep.Kind, ReportTimeout)
	}
}

func TestObserverModeValidation(t *testing.T) {
	o := New()
	o.SetMode(false, Granularity("bogus"))
	diff, g := o.Mode()
	if diff {
		t.Error("differential = true, want false")
	}
	if g != GranularityTree {
		t.Errorf("granularity = %q after bogus set, want %q", g, GranularityTree)
	}
}
