package browser

import (
	"testing"

	"github.com/go-rod/rod/lib/proto"
)

func TestStringifyConsoleArgs(t *testing.T) {
	args := []*proto.RuntimeRemoteObject{
		nil,
		{Description: "Error: boom"},
		{Type: proto.RuntimeRemoteObjectTypeObject},
	}
	got := stringifyConsoleArgs(args)
	if got != "Error: boom" {
		t.Errorf("stringifyConsoleArgs = %q", got)
	}
}

func TestConsoleEntryFromException(t *testing.T) {
	e := &proto.RuntimeExceptionThrown{
		ExceptionDetails: &proto.RuntimeExceptionDetails{
			Text:       "Uncaught",
			URL:        "https://example.com/app.js",
			LineNumber: 42,
			Exception:  &proto.RuntimeRemoteObject{Description: "TypeError: x is not a function"},
		},
	}
	got := consoleEntryFromException(e)
	if got.Level != "exception" {
		t.Errorf("Level = %q, want exception", got.Level)
	}
	if got.Text != "TypeError: x is not a function" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.URL != "https://example.com/app.js" || got.Line != 42 {
		t.Errorf("URL/Line = %q/%d", got.URL, got.Line)
	}
}

func TestShouldBlock(t *testing.T) {
	blocked := map[string]bool{"images": true, "fonts": true}

	tests := []struct {
		resType string
		want    bool
	}{
		{"Image", true},
		{"Font", true},
		{"Stylesheet", false},
		{"Document", false},
		{"Media", false},
	}
	for _, tt := range tests {
		if got := shouldBlock(blocked, tt.resType); got != tt.want {
			t.Errorf("shouldBlock(%q) = %v, want %v", tt.resType, got, tt.want)
		}
	}
}
