package browser

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/pilote/idgen"
	"github.com/hazyhaar/pilote/observe"
)

//go:embed snapshot.js
var snapshotJS string

//go:embed hooks.js
var hooksJS string

var (
	dialogTag       = idgen.Prefixed("dlg_", idgen.NanoID(6))
	chooserTag      = idgen.Prefixed("upl_", idgen.NanoID(6))
	permissionTag   = idgen.Prefixed("prm_", idgen.NanoID(6))
	notificationTag = idgen.Prefixed("ntf_", idgen.NanoID(6))
)

// Session is one driven page: it produces structural dumps for the observer,
// surfaces dialogs and permission requests as interrupts, collects console
// traffic, and exposes the actions a remote caller steps the page with.
type Session struct {
	ID        string
	CreatedAt time.Time

	mgr     *Manager
	log     *slog.Logger
	queue   *observe.ModalQueue
	console *ConsoleLog

	mu       sync.Mutex
	page     *rod.Page
	maxNodes int
	chooser  *proto.PageFileChooserOpened
	closed   bool
	cancel   context.CancelFunc
}

// OpenSession creates a fresh page on the manager's browser and wires its
// event streams. The modal queue belongs to the session's observation state;
// raising happens here, clearing happens through the handler methods.
func OpenSession(ctx context.Context, mgr *Manager, id string, queue *observe.ModalQueue, maxNodes int, log *slog.Logger) (*Session, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	if log == nil {
		log = slog.Default()
	}
	if maxNodes <= 0 {
		maxNodes = observe.DefaultMaxNodes
	}

	var page *rod.Page
	var err error
	if mgr.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, mgr.cfg.ResourceBlocking); err != nil {
			log.Warn("browser: resource blocking failed", "error", err)
		}
	}

	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		mgr:       mgr,
		log:       log,
		queue:     queue,
		console:   NewConsoleLog(0),
		page:      page,
		maxNodes:  maxNodes,
	}

	if _, err := page.EvalOnNewDocument(hooksJS); err != nil {
		log.Warn("browser: install hooks failed", "error", err)
	}
	if err := (proto.RuntimeAddBinding{Name: "__pilote_evt"}).Call(page); err != nil {
		log.Warn("browser: add binding failed", "error", err)
	}
	if err := (proto.PageSetInterceptFileChooserDialog{Enabled: true}).Call(page); err != nil {
		log.Warn("browser: file chooser interception failed", "error", err)
	}

	evCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.pumpEvents(evCtx)

	return s, nil
}

// Page returns the underlying Rod page for specialised callers.
func (s *Session) Page() *rod.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Interrupts exposes the modal queue the session raises into.
func (s *Session) Interrupts() *observe.ModalQueue { return s.queue }

// Console exposes the session's console log.
func (s *Session) Console() *ConsoleLog { return s.console }

// StructuralDump renders the visible surface as the line-oriented text the
// observer parses. It implements observe.Backend.
func (s *Session) StructuralDump(ctx context.Context) (string, error) {
	page, err := s.livePage()
	if err != nil {
		return "", err
	}
	res, err := page.Context(ctx).Eval(snapshotJS, s.maxNodes)
	if err != nil {
		return "", fmt.Errorf("browser: surface dump: %w", err)
	}
	return res.Value.Str(), nil
}

// PageInfo reports the page's current URL and title. It implements
// observe.Backend.
func (s *Session) PageInfo(ctx context.Context) (observe.PageInfo, error) {
	page, err := s.livePage()
	if err != nil {
		return observe.PageInfo{}, err
	}
	info, err := page.Context(ctx).Info()
	if err != nil {
		return observe.PageInfo{}, fmt.Errorf("browser: page info: %w", err)
	}
	return observe.PageInfo{URL: info.URL, Title: info.Title}, nil
}

// HandleDialog clears the pending dialog interrupt and answers the browser
// dialog. PromptText is only sent when accepting a prompt.
func (s *Session) HandleDialog(ctx context.Context, tag string, accept bool, promptText string) (observe.Modal, error) {
	m, ok := s.queue.Clear(observe.ModalDialog, tag)
	if !ok {
		return observe.Modal{}, fmt.Errorf("browser: no pending dialog matches tag %q", tag)
	}
	page, err := s.livePage()
	if err != nil {
		return m, err
	}
	h := proto.PageHandleJavaScriptDialog{Accept: accept}
	if accept && promptText != "" {
		h.PromptText = promptText
	}
	if err := h.Call(page.Context(ctx)); err != nil {
		return m, fmt.Errorf("browser: handle dialog: %w", err)
	}
	s.log.Info("browser: dialog handled", "session", s.ID, "tag", m.Tag, "accept", accept)
	return m, nil
}

// FileUpload clears the pending file chooser interrupt and sets the given
// files on the input that opened it.
func (s *Session) FileUpload(ctx context.Context, tag string, paths []string) (observe.Modal, error) {
	if len(paths) == 0 {
		return observe.Modal{}, fmt.Errorf("browser: no files given")
	}
	s.mu.Lock()
	chooser := s.chooser
	s.mu.Unlock()
	if chooser == nil {
		return observe.Modal{}, fmt.Errorf("browser: no pending file chooser")
	}

	m, ok := s.queue.Clear(observe.ModalFileChooser, tag)
	if !ok {
		return observe.Modal{}, fmt.Errorf("browser: no pending file chooser matches tag %q", tag)
	}

	page, err := s.livePage()
	if err != nil {
		return m, err
	}
	set := proto.DOMSetFileInputFiles{
		Files:         paths,
		BackendNodeID: chooser.BackendNodeID,
	}
	if err := set.Call(page.Context(ctx)); err != nil {
		return m, fmt.Errorf("browser: set input files: %w", err)
	}

	s.mu.Lock()
	s.chooser = nil
	s.mu.Unlock()

	s.log.Info("browser: files attached", "session", s.ID, "tag", m.Tag, "count", len(paths))
	return m, nil
}

// HandlePermission clears the pending permission interrupt and resolves the
// page-side request.
func (s *Session) HandlePermission(ctx context.Context, tag string, allow bool) (observe.Modal, error) {
	m, ok := s.queue.Clear(observe.ModalPermissionPrompt, tag)
	if !ok {
		return observe.Modal{}, fmt.Errorf("browser: no pending permission request matches tag %q", tag)
	}
	page, err := s.livePage()
	if err != nil {
		return m, err
	}
	res, err := page.Context(ctx).Eval(`allow => window.__pilote_resolvePermission(allow)`, allow)
	if err != nil {
		return m, fmt.Errorf("browser: resolve permission: %w", err)
	}
	if !res.Value.Bool() {
		s.log.Warn("browser: no page-side permission request to resolve", "session", s.ID, "tag", tag)
	}
	s.log.Info("browser: permission handled", "session", s.ID, "tag", m.Tag, "allow", allow)
	return m, nil
}

// DismissNotification clears a pending notification interrupt. Notifications
// need no page-side answer.
func (s *Session) DismissNotification(tag string) (observe.Modal, error) {
	m, ok := s.queue.Clear(observe.ModalNotification, tag)
	if !ok {
		return observe.Modal{}, fmt.Errorf("browser: no pending notification matches tag %q", tag)
	}
	return m, nil
}

// Close tears down the page and stops the event pumps. Pending interrupts
// are dropped with it.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	page := s.page
	s.page = nil
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	s.queue.Drop()

	if page != nil {
		if err := page.Close(); err != nil {
			return fmt.Errorf("browser: close page: %w", err)
		}
	}
	return nil
}

func (s *Session) livePage() (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.page == nil {
		return nil, fmt.Errorf("browser: session %s is closed", s.ID)
	}
	return s.page, nil
}
