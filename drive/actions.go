package drive

import (
	"context"
	"fmt"
	"time"
)

// Action tools share one shape: perform the step, then observe and return
// the rendered report. Action failures are errors; everything the
// observation recovers from is annotated inside the report instead.

// Navigate loads a URL and reports the resulting surface.
func (svc *Service) Navigate(ctx context.Context, id, url string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	if err := sess.drv.Navigate(ctx, url); err != nil {
		return "", err
	}
	return svc.observeAfter(ctx, sess)
}

// NavigateBack goes one step back in history and reports.
func (svc *Service) NavigateBack(ctx context.Context, id string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	if err := sess.drv.Back(ctx); err != nil {
		return "", err
	}
	return svc.observeAfter(ctx, sess)
}

// NavigateForward goes one step forward in history and reports.
func (svc *Service) NavigateForward(ctx context.Context, id string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	if err := sess.drv.Forward(ctx); err != nil {
		return "", err
	}
	return svc.observeAfter(ctx, sess)
}

// Reload reloads the page and reports.
func (svc *Service) Reload(ctx context.Context, id string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	if err := sess.drv.Reload(ctx); err != nil {
		return "", err
	}
	return svc.observeAfter(ctx, sess)
}

// Click clicks the element behind a snapshot ref and reports.
func (svc *Service) Click(ctx context.Context, id, ref string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	if err := sess.drv.Click(ctx, ref); err != nil {
		return "", err
	}
	return svc.observeAfter(ctx, sess)
}

// TypeText types into the element behind a snapshot ref, optionally
// submitting with Enter, and reports.
func (svc *Service) TypeText(ctx context.Context, id, ref, text string, submit bool) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	if err := sess.drv.Type(ctx, ref, text, submit); err != nil {
		return "", err
	}
	return svc.observeAfter(ctx, sess)
}

// PressKey presses a named key or single character and reports.
func (svc *Service) PressKey(ctx context.Context, id, key string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	if err := sess.drv.Press(ctx, key); err != nil {
		return "", err
	}
	return svc.observeAfter(ctx, sess)
}

// Hover moves the pointer over the element behind a snapshot ref and reports.
func (svc *Service) Hover(ctx context.Context, id, ref string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	if err := sess.drv.Hover(ctx, ref); err != nil {
		return "", err
	}
	return svc.observeAfter(ctx, sess)
}

// SelectOption selects options in the element behind a snapshot ref by
// visible text and reports.
func (svc *Service) SelectOption(ctx context.Context, id, ref string, values []string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", fmt.Errorf("drive: select_option needs at least one value")
	}
	if err := sess.drv.SelectOption(ctx, ref, values); err != nil {
		return "", err
	}
	return svc.observeAfter(ctx, sess)
}

// Scroll scrolls the page by pixel deltas and reports.
func (svc *Service) Scroll(ctx context.Context, id string, dx, dy float64) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	if err := sess.drv.Scroll(ctx, dx, dy); err != nil {
		return "", err
	}
	return svc.observeAfter(ctx, sess)
}

const maxWait = 30 * time.Second

// Wait waits for the page to stabilize (or the duration to elapse) and
// reports. Durations are clamped to 30s.
func (svc *Service) Wait(ctx context.Context, id string, d time.Duration) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	if d <= 0 {
		d = time.Second
	}
	if d > maxWait {
		d = maxWait
	}
	if err := sess.drv.WaitStable(ctx, d); err != nil {
		return "", err
	}
	return svc.observeAfter(ctx, sess)
}

// HandleDialog accepts or dismisses the pending JavaScript dialog and
// reports the surface that the dialog was blocking.
func (svc *Service) HandleDialog(ctx context.Context, id, tag string, accept bool, promptText string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	m, err := sess.drv.HandleDialog(ctx, tag, accept, promptText)
	if err != nil {
		return "", err
	}
	rep, err := svc.observeAfter(ctx, sess)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("handled %s [%s]\n\n%s", m.Kind, m.Tag, rep), nil
}

// FileUpload resolves the pending file chooser with local paths and reports.
func (svc *Service) FileUpload(ctx context.Context, id, tag string, paths []string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("drive: file_upload needs at least one path")
	}
	m, err := sess.drv.FileUpload(ctx, tag, paths)
	if err != nil {
		return "", err
	}
	rep, err := svc.observeAfter(ctx, sess)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("handled %s [%s]\n\n%s", m.Kind, m.Tag, rep), nil
}

// HandlePermission grants or denies the pending permission prompt and
// reports.
func (svc *Service) HandlePermission(ctx context.Context, id, tag string, grant bool) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	m, err := sess.drv.HandlePermission(ctx, tag, grant)
	if err != nil {
		return "", err
	}
	rep, err := svc.observeAfter(ctx, sess)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("handled %s [%s]\n\n%s", m.Kind, m.Tag, rep), nil
}

// DismissNotification clears the pending notification interrupt and reports.
func (svc *Service) DismissNotification(ctx context.Context, id, tag string) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}
	m, err := sess.drv.DismissNotification(tag)
	if err != nil {
		return "", err
	}
	rep, err := svc.observeAfter(ctx, sess)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("dismissed %s [%s]\n\n%s", m.Kind, m.Tag, rep), nil
}

// ConsoleEntrySummary is the readback shape for console_read.
type ConsoleEntrySummary struct {
	Level string `json:"level"`
	Text  string `json:"text"`
	URL   string `json:"url,omitempty"`
	Line  int    `json:"line,omitempty"`
	At    string `json:"at"`
}

// ConsoleReadResult is the console_read response.
type ConsoleReadResult struct {
	Entries []ConsoleEntrySummary `json:"entries"`
	Dropped int                   `json:"dropped,omitempty"`
}

// ReadConsole returns the most recent console entries, oldest first.
func (svc *Service) ReadConsole(ctx context.Context, id string, n int, clear bool) (*ConsoleReadResult, error) {
	sess, err := svc.get(id)
	if err != nil {
		return nil, err
	}

	log := sess.drv.Console()
	entries := log.Recent(n)
	res := &ConsoleReadResult{
		Entries: make([]ConsoleEntrySummary, 0, len(entries)),
		Dropped: log.Dropped(),
	}
	for _, e := range entries {
		res.Entries = append(res.Entries, ConsoleEntrySummary{
			Level: e.Level,
			Text:  e.Text,
			URL:   e.URL,
			Line:  e.Line,
			At:    e.At.Format(time.RFC3339),
		})
	}
	if clear {
		log.Clear()
	}
	return res, nil
}
