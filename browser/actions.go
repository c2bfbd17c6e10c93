package browser

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

// Navigate loads a URL and waits for the load event, bounded by the
// manager's navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page, err := s.livePage()
	if err != nil {
		return err
	}
	navCtx, cancel := context.WithTimeout(ctx, s.mgr.NavTimeout())
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.log.Warn("browser: wait load timed out", "session", s.ID, "url", url, "error", err)
	}
	return nil
}

// Back goes one entry back in the page history.
func (s *Session) Back(ctx context.Context) error {
	return s.historyMove(ctx, "back")
}

// Forward goes one entry forward in the page history.
func (s *Session) Forward(ctx context.Context) error {
	return s.historyMove(ctx, "forward")
}

func (s *Session) historyMove(ctx context.Context, dir string) error {
	page, err := s.livePage()
	if err != nil {
		return err
	}
	navCtx, cancel := context.WithTimeout(ctx, s.mgr.NavTimeout())
	defer cancel()

	p := page.Context(navCtx)
	if dir == "back" {
		err = p.NavigateBack()
	} else {
		err = p.NavigateForward()
	}
	if err != nil {
		return fmt.Errorf("browser: navigate %s: %w", dir, err)
	}
	if err := p.WaitLoad(); err != nil {
		s.log.Warn("browser: wait load timed out", "session", s.ID, "error", err)
	}
	return nil
}

// Reload reloads the current page.
func (s *Session) Reload(ctx context.Context) error {
	page, err := s.livePage()
	if err != nil {
		return err
	}
	navCtx, cancel := context.WithTimeout(ctx, s.mgr.NavTimeout())
	defer cancel()

	if err := page.Context(navCtx).Reload(); err != nil {
		return fmt.Errorf("browser: reload: %w", err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		s.log.Warn("browser: wait load timed out", "session", s.ID, "error", err)
	}
	return nil
}

// Click clicks the element a snapshot reported under the given ref.
func (s *Session) Click(ctx context.Context, ref string) error {
	el, err := s.elementByRef(ctx, ref)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		s.log.Debug("browser: scroll into view failed", "session", s.ID, "ref", ref, "error", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click %s: %w", ref, err)
	}
	return nil
}

// Type replaces the content of the referenced field with text. Submit
// presses Enter afterwards.
func (s *Session) Type(ctx context.Context, ref, text string, submit bool) error {
	el, err := s.elementByRef(ctx, ref)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		s.log.Debug("browser: select all failed", "session", s.ID, "ref", ref, "error", err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("browser: type into %s: %w", ref, err)
	}
	if submit {
		page, err := s.livePage()
		if err != nil {
			return err
		}
		if err := page.Context(ctx).Keyboard.Press(input.Enter); err != nil {
			return fmt.Errorf("browser: submit %s: %w", ref, err)
		}
	}
	return nil
}

// Press sends one key to the page. Named keys cover the control set; a
// single character is sent as itself.
func (s *Session) Press(ctx context.Context, key string) error {
	page, err := s.livePage()
	if err != nil {
		return err
	}
	k, ok := namedKeys[key]
	if !ok {
		runes := []rune(key)
		if len(runes) != 1 {
			return fmt.Errorf("browser: unknown key %q", key)
		}
		// printable character: type it rather than press the raw key
		if err := page.Context(ctx).Keyboard.Type(input.Key(runes[0])); err != nil {
			return fmt.Errorf("browser: type %q: %w", key, err)
		}
		return nil
	}
	if err := page.Context(ctx).Keyboard.Press(k); err != nil {
		return fmt.Errorf("browser: press %s: %w", key, err)
	}
	return nil
}

// Hover moves the mouse over the referenced element.
func (s *Session) Hover(ctx context.Context, ref string) error {
	el, err := s.elementByRef(ctx, ref)
	if err != nil {
		return err
	}
	if err := el.Hover(); err != nil {
		return fmt.Errorf("browser: hover %s: %w", ref, err)
	}
	return nil
}

// SelectOption picks options on the referenced select element by visible
// text.
func (s *Session) SelectOption(ctx context.Context, ref string, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("browser: no option values given")
	}
	el, err := s.elementByRef(ctx, ref)
	if err != nil {
		return err
	}
	if err := el.Select(values, true, rod.SelectorTypeText); err != nil {
		return fmt.Errorf("browser: select on %s: %w", ref, err)
	}
	return nil
}

// Scroll scrolls the page by the given deltas in pixels.
func (s *Session) Scroll(ctx context.Context, dx, dy float64) error {
	page, err := s.livePage()
	if err != nil {
		return err
	}
	if err := page.Context(ctx).Mouse.Scroll(dx, dy, 1); err != nil {
		return fmt.Errorf("browser: scroll: %w", err)
	}
	return nil
}

// WaitStable waits until the page stops changing visually, up to the given
// quiet window.
func (s *Session) WaitStable(ctx context.Context, d time.Duration) error {
	page, err := s.livePage()
	if err != nil {
		return err
	}
	if d <= 0 {
		d = time.Second
	}
	if err := page.Context(ctx).WaitStable(d); err != nil {
		return fmt.Errorf("browser: wait stable: %w", err)
	}
	return nil
}

// HTML returns the page's current outer HTML.
func (s *Session) HTML(ctx context.Context) (string, error) {
	page, err := s.livePage()
	if err != nil {
		return "", err
	}
	html, err := page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("browser: html: %w", err)
	}
	return html, nil
}

// Screenshot captures the viewport, or the whole page when full is set,
// as PNG bytes.
func (s *Session) Screenshot(ctx context.Context, full bool) ([]byte, error) {
	page, err := s.livePage()
	if err != nil {
		return nil, err
	}
	data, err := page.Context(ctx).Screenshot(full, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// PDF renders the page to PDF.
func (s *Session) PDF(ctx context.Context) ([]byte, error) {
	page, err := s.livePage()
	if err != nil {
		return nil, err
	}
	r, err := page.Context(ctx).PDF(&proto.PagePrintToPDF{})
	if err != nil {
		return nil, fmt.Errorf("browser: pdf: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("browser: pdf read: %w", err)
	}
	return data, nil
}

// elementByRef resolves a snapshot ref to a live element via the page-side
// registry.
func (s *Session) elementByRef(ctx context.Context, ref string) (*rod.Element, error) {
	if ref == "" {
		return nil, fmt.Errorf("browser: empty ref")
	}
	page, err := s.livePage()
	if err != nil {
		return nil, err
	}
	el, err := page.Context(ctx).ElementByJS(rod.Eval(`r => window.__pilote && window.__pilote.lookup(r)`, ref))
	if err != nil {
		return nil, fmt.Errorf("browser: ref %s not on page (stale snapshot?): %w", ref, err)
	}
	return el, nil
}

// namedKeys maps key names from the tool surface onto rod keys.
var namedKeys = map[string]input.Key{
	"Enter":      input.Enter,
	"Tab":        input.Tab,
	"Escape":     input.Escape,
	"Backspace":  input.Backspace,
	"Delete":     input.Delete,
	"ArrowUp":    input.ArrowUp,
	"ArrowDown":  input.ArrowDown,
	"ArrowLeft":  input.ArrowLeft,
	"ArrowRight": input.ArrowRight,
	"PageUp":     input.PageUp,
	"PageDown":   input.PageDown,
	"Home":       input.Home,
	"End":        input.End,
	"Space":      input.Space,
}
