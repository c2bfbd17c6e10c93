package observe

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Granularity selects which comparison layers a differential report carries.
type Granularity string

const (
	// GranularityTree reports keyed structural changes only.
	GranularityTree Granularity = "tree"
	// GranularityRaw reports raw-text similarity and a unified diff only.
	GranularityRaw Granularity = "raw"
	// GranularityBoth reports both layers.
	GranularityBoth Granularity = "both"
)

// ValidGranularity reports whether g is one of the known levels.
func ValidGranularity(g Granularity) bool {
	switch g {
	case GranularityTree, GranularityRaw, GranularityBoth:
		return true
	}
	return false
}

// Backend is the minimal surface the observer needs from a page. The
// structural dump is a line-oriented text rendering of the interactive
// surface; PageInfo identifies the document the dump was taken from.
type Backend interface {
	StructuralDump(ctx context.Context) (string, error)
	PageInfo(ctx context.Context) (PageInfo, error)
}

// Observer turns structural dumps into observation reports against a
// per-session State. Mode fields can be flipped at runtime between
// observations; one Observer serves one session.
type Observer struct {
	mu           sync.Mutex
	differential bool
	granularity  Granularity
	deadline     time.Duration
	log          *slog.Logger
}

// Option configures an Observer.
type Option func(*Observer)

// WithDifferential turns differential reporting on or off.
func WithDifferential(on bool) Option {
	return func(o *Observer) { o.differential = on }
}

// WithGranularity selects the comparison layers for differential reports.
func WithGranularity(g Granularity) Option {
	return func(o *Observer) {
		if ValidGranularity(g) {
			o.granularity = g
		}
	}
}

// WithDeadline bounds each observation attempt.
func WithDeadline(d time.Duration) Option {
	return func(o *Observer) {
		if d > 0 {
			o.deadline = d
		}
	}
}

// WithLogger sets the logger for degradation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *Observer) {
		if l != nil {
			o.log = l
		}
	}
}

// New returns an Observer with differential tree-level reporting and the
// default deadline.
func New(opts ...Option) *Observer {
	o := &Observer{
		differential: true,
		granularity:  GranularityTree,
		deadline:     DefaultDeadline,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetMode flips the runtime reporting mode. An invalid granularity is
// ignored so a bad request cannot wedge the session.
func (o *Observer) SetMode(differential bool, g Granularity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.differential = differential
	if ValidGranularity(g) {
		o.granularity = g
	}
}

// Mode returns the current reporting mode.
func (o *Observer) Mode() (differential bool, g Granularity) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.differential, o.granularity
}

func (o *Observer) mode() (bool, Granularity, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.differential, o.granularity, o.deadline
}

// Observe runs one observation attempt and reports what changed since the
// baseline, or the full surface when no baseline exists, differential mode
// is off, or navigation crossed an origin boundary. The returned error is
// non-nil only when the surrounding context was cancelled; every other
// failure degrades into an annotated report.
func (o *Observer) Observe(ctx context.Context, be Backend, st *State) (*Report, error) {
	return o.observe(ctx, be, st, false)
}

// Snapshot runs one observation attempt and always reports the full
// surface, re-baselining the session. The modal gate and the deadline
// apply exactly as in Observe.
func (o *Observer) Snapshot(ctx context.Context, be Backend, st *State) (*Report, error) {
	return o.observe(ctx, be, st, true)
}

func (o *Observer) observe(ctx context.Context, be Backend, st *State, forceFull bool) (*Report, error) {
	differential, granularity, deadline := o.mode()

	a := o.attempt(ctx, be, st)
	switch a.Outcome {
	case OutcomeInterrupted:
		m := a.Modal
		return &Report{Kind: ReportModal, Modal: &m, Elapsed: a.Elapsed}, nil
	case OutcomeTimedOut:
		rep := &Report{Kind: ReportTimeout, Elapsed: a.Elapsed, Deadline: deadline}
		if a.Err != nil {
			rep.Annotate("attempt aborted: %v", a.Err)
			return rep, a.Err
		}
		o.log.Warn("observation timed out", "deadline", deadline)
		return rep, nil
	}

	if a.ID != st.currentAttempt() {
		// a newer attempt began while this one was finishing; its result
		// must not touch the baseline
		rep := &Report{Kind: ReportNoChange, Elapsed: a.Elapsed}
		rep.Annotate("observation superseded by a newer attempt; state unchanged")
		o.log.Warn("stale observation discarded", "attempt", a.ID, "current", st.currentAttempt())
		return rep, nil
	}

	rep := &Report{Elapsed: a.Elapsed, Deadline: deadline}

	info, ierr := be.PageInfo(ctx)
	if ierr != nil {
		o.log.Warn("page info unavailable", "error", ierr)
		rep.Annotate("page identity unavailable: %v", ierr)
	}
	rep.Page = info

	raw := a.Raw
	if a.Err != nil {
		o.log.Warn("structural dump failed", "error", a.Err)
		rep.Annotate("observation degraded: %v", a.Err)
		raw = ""
	}

	tree := Parse(raw, st.MaxNodes())
	if raw != "" && len(tree.Nodes) == 0 {
		o.log.Warn("structural dump yielded no nodes", "bytes", len(raw))
		rep.Annotate("dump carried no recognizable nodes")
	}
	if tree.Truncated {
		rep.Annotate("surface truncated at %d nodes", st.MaxNodes())
	}

	prevTree, prevRaw, prevURL, prevTitle, prevFP := st.Baseline()
	hadBaseline := st.HasBaseline()
	hard := st.Discontinuous(info.URL)

	urlChanged := ierr == nil && hadBaseline && info.URL != "" && info.URL != prevURL
	titleChanged := ierr == nil && hadBaseline && info.Title != prevTitle
	if urlChanged {
		rep.URLChanged = true
		rep.PrevURL = prevURL
	}
	if titleChanged {
		rep.TitleChange = true
		rep.PrevTitle = prevTitle
	}

	if forceFull || !hadBaseline || !differential || hard {
		if hard {
			rep.Annotate("navigation crossed an origin boundary; baseline reset")
		}
		st.Apply(tree, raw, info)
		rep.Kind = ReportFull
		rep.Tree = tree
		return rep, nil
	}

	fp := Fingerprint(tree)
	if fp == prevFP {
		// identical fingerprints skip the diff pass, never the page
		// identity check above
		st.Apply(tree, raw, info)
		if urlChanged || titleChanged {
			rep.Kind = ReportDiff
			rep.Diff = &Diff{Unchanged: len(tree.Nodes)}
		} else {
			rep.Kind = ReportNoChange
		}
		return rep, nil
	}

	var diff *Diff
	if granularity != GranularityRaw {
		diff = Reconcile(prevTree, tree)
	}
	var rawDelta *RawDelta
	if granularity == GranularityRaw || granularity == GranularityBoth {
		rd, err := CompareRaw(prevRaw, raw)
		if err != nil {
			o.log.Warn("raw comparison failed", "error", err)
			rep.Annotate("raw comparison unavailable: %v", err)
		} else {
			rawDelta = &rd
		}
	}

	st.Apply(tree, raw, info)

	structurallyQuiet := diff.Empty()
	rawQuiet := rawDelta == nil || rawDelta.Similarity == 1
	if structurallyQuiet && rawQuiet && !urlChanged && !titleChanged {
		rep.Kind = ReportNoChange
		return rep, nil
	}
	rep.Kind = ReportDiff
	rep.Diff = diff
	rep.Raw = rawDelta
	return rep, nil
}
