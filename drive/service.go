package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/pilote/browser"
	"github.com/hazyhaar/pilote/idgen"
	"github.com/hazyhaar/pilote/journal"
	"github.com/hazyhaar/pilote/observe"
	"github.com/hazyhaar/pilote/sift"
)

// ErrSessionNotFound is returned when a tool names an unknown session.
var ErrSessionNotFound = errors.New("drive: session not found")

// ErrTooManySessions is returned when the registry is at capacity.
var ErrTooManySessions = errors.New("drive: too many open sessions")

// PageDriver is the per-session browser surface the service drives.
// *browser.Session satisfies it; tests substitute stubs.
type PageDriver interface {
	observe.Backend

	Navigate(ctx context.Context, url string) error
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Reload(ctx context.Context) error
	Click(ctx context.Context, ref string) error
	Type(ctx context.Context, ref, text string, submit bool) error
	Press(ctx context.Context, key string) error
	Hover(ctx context.Context, ref string) error
	SelectOption(ctx context.Context, ref string, values []string) error
	Scroll(ctx context.Context, dx, dy float64) error
	WaitStable(ctx context.Context, d time.Duration) error
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context, full bool) ([]byte, error)
	PDF(ctx context.Context) ([]byte, error)

	HandleDialog(ctx context.Context, tag string, accept bool, promptText string) (observe.Modal, error)
	FileUpload(ctx context.Context, tag string, paths []string) (observe.Modal, error)
	HandlePermission(ctx context.Context, tag string, allow bool) (observe.Modal, error)
	DismissNotification(tag string) (observe.Modal, error)

	Console() *browser.ConsoleLog
	Close() error
}

// openDriverFunc opens the browser side of a new session.
type openDriverFunc func(ctx context.Context, id string, queue *observe.ModalQueue, maxNodes int) (PageDriver, error)

// session pairs the browser side of a session with its observation state.
type session struct {
	id      string
	drv     PageDriver
	st      *observe.State
	obs     *observe.Observer
	created time.Time

	mu         sync.Mutex
	lastReport *observe.Report
}

func (s *session) setLastReport(r *observe.Report) {
	s.mu.Lock()
	s.lastReport = r
	s.mu.Unlock()
}

func (s *session) report() *observe.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}

// SessionInfo describes one open session for listing.
type SessionInfo struct {
	ID        string    `json:"id"`
	URL       string    `json:"url,omitempty"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Pending   int       `json:"pending_interrupts,omitempty"`
}

// Service orchestrates sessions: it composes the browser backend, the
// observation pipeline, the report filter, and the tool-call journal behind
// the MCP tool surface.
type Service struct {
	cfg       *Config
	mgr       *browser.Manager
	filter    *sift.Filter
	journal   *journal.Store
	log       *slog.Logger
	newID     idgen.Generator
	open      openDriverFunc
	sanitizer *bluemonday.Policy
	md        *converter.Converter

	mu       sync.Mutex
	sessions map[string]*session
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithJournal sets the tool-call journal store. Nil disables journaling.
func WithJournal(j *journal.Store) ServiceOption {
	return func(svc *Service) { svc.journal = j }
}

// WithFilter sets the report filter. Defaults to probing PATH for rg/grep.
func WithFilter(f *sift.Filter) ServiceOption {
	return func(svc *Service) { svc.filter = f }
}

// WithOpenDriver replaces how the browser side of a session is opened.
// Tests use it to substitute stub drivers.
func WithOpenDriver(open openDriverFunc) ServiceOption {
	return func(svc *Service) { svc.open = open }
}

// New creates a drive Service. mgr may be nil only when WithOpenDriver
// replaces session opening.
func New(mgr *browser.Manager, cfg *Config, logger *slog.Logger, opts ...ServiceOption) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	svc := &Service{
		cfg:       cfg,
		mgr:       mgr,
		log:       logger,
		newID:     idgen.Prefixed("sess_", idgen.NanoID(8)),
		sessions:  make(map[string]*session),
		sanitizer: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
	svc.open = func(ctx context.Context, id string, queue *observe.ModalQueue, maxNodes int) (PageDriver, error) {
		return browser.OpenSession(ctx, svc.mgr, id, queue, maxNodes, svc.log)
	}

	for _, opt := range opts {
		opt(svc)
	}

	if svc.filter == nil {
		fopts := []sift.Option{sift.WithLogger(logger)}
		if cfg.Filter.Binary != "" {
			fopts = append(fopts, sift.WithBinary(cfg.Filter.Binary))
		}
		svc.filter = sift.New(fopts...)
	}

	// Pages die with the Chrome process, so a recycle invalidates every
	// open session.
	if mgr != nil {
		mgr.SetRecycleCallback(&browser.RecycleCallback{
			BeforeRecycle: func() { svc.CloseAll("browser recycled") },
		})
	}

	return svc
}

// OpenSession opens a new browser session with fresh observation state.
func (svc *Service) OpenSession(ctx context.Context) (SessionInfo, error) {
	svc.mu.Lock()
	if len(svc.sessions) >= svc.cfg.MaxSessions {
		svc.mu.Unlock()
		return SessionInfo{}, fmt.Errorf("%w (max %d)", ErrTooManySessions, svc.cfg.MaxSessions)
	}
	svc.mu.Unlock()

	id := svc.newID()
	st := observe.NewState(svc.cfg.Observe.MaxNodes, svc.cfg.Observe.MaxRawBytes)

	drv, err := svc.open(ctx, id, st.Interrupts(), svc.cfg.Observe.MaxNodes)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("drive: open session: %w", err)
	}

	obs := observe.New(
		observe.WithDifferential(*svc.cfg.Observe.Differential),
		observe.WithGranularity(observe.Granularity(svc.cfg.Observe.Granularity)),
		observe.WithDeadline(svc.cfg.Observe.Deadline),
		observe.WithLogger(svc.log),
	)

	sess := &session{
		id:      id,
		drv:     drv,
		st:      st,
		obs:     obs,
		created: time.Now(),
	}

	svc.mu.Lock()
	// Re-check under lock; a racing open may have filled the last slot.
	if len(svc.sessions) >= svc.cfg.MaxSessions {
		svc.mu.Unlock()
		drv.Close()
		return SessionInfo{}, fmt.Errorf("%w (max %d)", ErrTooManySessions, svc.cfg.MaxSessions)
	}
	svc.sessions[id] = sess
	svc.mu.Unlock()

	metricSessionsOpen.Inc()
	svc.log.Info("drive: session opened", "session", id)
	return SessionInfo{ID: id, CreatedAt: sess.created}, nil
}

// CloseSession closes a session and destroys its observation state.
func (svc *Service) CloseSession(id string) error {
	svc.mu.Lock()
	sess, ok := svc.sessions[id]
	delete(svc.sessions, id)
	svc.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	err := sess.drv.Close()
	metricSessionsOpen.Dec()
	svc.log.Info("drive: session closed", "session", id)
	return err
}

// ListSessions returns info for every open session, oldest first.
func (svc *Service) ListSessions() []SessionInfo {
	svc.mu.Lock()
	out := make([]SessionInfo, 0, len(svc.sessions))
	for _, sess := range svc.sessions {
		_, _, u, title, _ := sess.st.Baseline()
		out = append(out, SessionInfo{
			ID:        sess.id,
			URL:       u,
			Title:     title,
			CreatedAt: sess.created,
			Pending:   sess.st.Interrupts().Len(),
		})
	}
	svc.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CloseAll closes every session. Used on shutdown and browser recycle.
func (svc *Service) CloseAll(reason string) {
	svc.mu.Lock()
	sessions := svc.sessions
	svc.sessions = make(map[string]*session)
	svc.mu.Unlock()

	for id, sess := range sessions {
		if err := sess.drv.Close(); err != nil {
			svc.log.Warn("drive: close session", "session", id, "error", err)
		}
	}
	if len(sessions) > 0 {
		metricSessionsOpen.Sub(float64(len(sessions)))
		svc.log.Info("drive: closed all sessions", "count", len(sessions), "reason", reason)
	}
}

// get looks up an open session.
func (svc *Service) get(id string) (*session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	sess, ok := svc.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// observeAfter runs an observation cycle after an action and renders the
// report. Observation failures beyond context cancellation surface inside
// the report, not as errors.
func (svc *Service) observeAfter(ctx context.Context, sess *session) (string, error) {
	rep, err := sess.obs.Observe(ctx, sess.drv, sess.st)
	if err != nil {
		return "", fmt.Errorf("drive: observe: %w", err)
	}
	sess.setLastReport(rep)
	return rep.Render(), nil
}

// Snapshot forces a full observation, resetting the diff baseline.
func (svc *Service) Snapshot(ctx context.Context, id string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	rep, err := sess.obs.Snapshot(ctx, sess.drv, sess.st)
	if err != nil {
		return "", fmt.Errorf("drive: snapshot: %w", err)
	}
	sess.setLastReport(rep)
	return rep.Render(), nil
}

// SetObserveMode updates a session's observation mode. Nil differential
// keeps the current value; empty granularity keeps the current value.
func (svc *Service) SetObserveMode(id string, differential *bool, granularity string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}

	diff, gran := sess.obs.Mode()
	if differential != nil {
		diff = *differential
	}
	if granularity != "" {
		g := observe.Granularity(granularity)
		if !observe.ValidGranularity(g) {
			return "", fmt.Errorf("drive: invalid granularity %q (want tree, raw, or both)", granularity)
		}
		gran = g
	}
	sess.obs.SetMode(diff, gran)

	return fmt.Sprintf("observation mode: differential=%t granularity=%s", diff, gran), nil
}

// ResetObservation clears a session's observation state. The next
// observation reports the full surface.
func (svc *Service) ResetObservation(id string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	sess.st.Reset()
	sess.setLastReport(nil)
	return "observation state cleared; next report will be full", nil
}

// JournalRecent returns recent tool invocations. session filters to one
// session when non-empty.
func (svc *Service) JournalRecent(ctx context.Context, session string, n int) ([]journal.Entry, error) {
	if svc.journal == nil {
		return nil, errors.New("drive: journal disabled (no data_dir configured)")
	}
	return svc.journal.Recent(ctx, session, n)
}
