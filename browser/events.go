package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/pilote/observe"
)

// pumpEvents subscribes to the page's CDP streams and feeds them into the
// interrupt queue and the console log. It blocks until the session context
// is cancelled.
func (s *Session) pumpEvents(ctx context.Context) {
	page, err := s.livePage()
	if err != nil {
		return
	}
	page.Context(ctx).EachEvent(
		func(e *proto.PageJavascriptDialogOpening) {
			s.onDialog(e)
		},
		func(e *proto.PageFileChooserOpened) {
			s.onFileChooser(e)
		},
		func(e *proto.RuntimeConsoleAPICalled) {
			s.console.Add(consoleEntryFromEvent(e))
		},
		func(e *proto.RuntimeExceptionThrown) {
			s.console.Add(consoleEntryFromException(e))
		},
		func(e *proto.RuntimeBindingCalled) {
			s.onBinding(e)
		},
	)()
}

func (s *Session) onDialog(e *proto.PageJavascriptDialogOpening) {
	desc := fmt.Sprintf("%s: %q", e.Type, e.Message)
	if e.Type == proto.PageDialogTypePrompt && e.DefaultPrompt != "" {
		desc += fmt.Sprintf(" (default %q)", e.DefaultPrompt)
	}
	m := observe.Modal{
		Kind:        observe.ModalDialog,
		Tag:         dialogTag(),
		Description: desc,
	}
	s.queue.Raise(m)
	s.log.Info("browser: dialog opened", "session", s.ID, "tag", m.Tag, "type", e.Type)
}

func (s *Session) onFileChooser(e *proto.PageFileChooserOpened) {
	s.mu.Lock()
	s.chooser = e
	s.mu.Unlock()

	m := observe.Modal{
		Kind:        observe.ModalFileChooser,
		Tag:         chooserTag(),
		Description: fmt.Sprintf("file chooser opened (mode %s)", e.Mode),
	}
	s.queue.Raise(m)
	s.log.Info("browser: file chooser opened", "session", s.ID, "tag", m.Tag)
}

// onBinding receives __pilote_evt payloads from the injected hooks:
// permission requests and notification constructions.
func (s *Session) onBinding(e *proto.RuntimeBindingCalled) {
	if e.Name != "__pilote_evt" {
		return
	}
	var payload struct {
		Kind  string `json:"kind"`
		Name  string `json:"name"`
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
		s.log.Warn("browser: bad hook payload", "session", s.ID, "error", err)
		return
	}

	switch payload.Kind {
	case "permission":
		m := observe.Modal{
			Kind:        observe.ModalPermissionPrompt,
			Tag:         permissionTag(),
			Description: fmt.Sprintf("page requests %s access", payload.Name),
		}
		s.queue.Raise(m)
		s.log.Info("browser: permission requested", "session", s.ID, "tag", m.Tag, "name", payload.Name)
	case "notification":
		desc := fmt.Sprintf("notification %q", payload.Title)
		if payload.Body != "" {
			desc += fmt.Sprintf(": %s", payload.Body)
		}
		m := observe.Modal{
			Kind:        observe.ModalNotification,
			Tag:         notificationTag(),
			Description: desc,
		}
		s.queue.Raise(m)
		s.log.Info("browser: notification raised", "session", s.ID, "tag", m.Tag)
	default:
		s.log.Warn("browser: unknown hook event", "session", s.ID, "kind", payload.Kind)
	}
}

func consoleEntryFromEvent(e *proto.RuntimeConsoleAPICalled) ConsoleEntry {
	return ConsoleEntry{
		Level: string(e.Type),
		Text:  stringifyConsoleArgs(e.Args),
	}
}

func consoleEntryFromException(e *proto.RuntimeExceptionThrown) ConsoleEntry {
	d := e.ExceptionDetails
	text := d.Text
	if d.Exception != nil && d.Exception.Description != "" {
		text = d.Exception.Description
	}
	return ConsoleEntry{
		Level: "exception",
		Text:  text,
		URL:   d.URL,
		Line:  d.LineNumber,
	}
}

func stringifyConsoleArgs(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
		}
	}
	return strings.Join(parts, " ")
}
