package observe

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Node
		ok   bool
	}{
		{
			name: "button with ref",
			line: `- button "Submit order" [ref=e12]`,
			want: Node{Kind: KindInteractive, Ref: "e12", Text: "Submit order", Role: "button"},
			ok:   true,
		},
		{
			name: "link",
			line: `- link "Back to cart" [ref=e3]`,
			want: Node{Kind: KindNavigation, Ref: "e3", Text: "Back to cart", Role: "link"},
			ok:   true,
		},
		{
			name: "textbox with value attr",
			line: `- textbox "Email" [ref=e5] [value=a@b.c]`,
			want: Node{Kind: KindForm, Ref: "e5", Text: "Email", Role: "textbox", Attrs: map[string]string{"value": "a@b.c"}},
			ok:   true,
		},
		{
			name: "alert wins over role cue",
			line: `- button "Try again" [ref=e2] [error]`,
			want: Node{Kind: KindError, Ref: "e2", Text: "Try again", Role: "button", Attrs: map[string]string{"error": "true"}},
			ok:   true,
		},
		{
			name: "quoted text without ref",
			line: `- heading "Checkout"`,
			want: Node{Kind: KindContent, Text: "Checkout", Role: "heading"},
			ok:   true,
		},
		{
			name: "ref without text",
			line: `- img [ref=e77]`,
			want: Node{Kind: KindContent, Ref: "e77", Role: "img"},
			ok:   true,
		},
		{
			name: "bare flag attr",
			line: `- checkbox "Remember me" [ref=e9] [checked]`,
			want: Node{Kind: KindInteractive, Ref: "e9", Text: "Remember me", Role: "checkbox", Attrs: map[string]string{"checked": "true"}},
			ok:   true,
		},
		{
			name: "escaped quote in text",
			line: `- button "Say \"hi\"" [ref=e1]`,
			want: Node{Kind: KindInteractive, Ref: "e1", Text: `Say "hi"`, Role: "button"},
			ok:   true,
		},
		{
			name: "no marker no text",
			line: "generic container",
			ok:   false,
		},
		{
			name: "blank",
			line: "   ",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseLine(tt.line)
			if ok != tt.ok {
				t.Fatalf("parseLine(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if !ok {
				return
			}
			if got.Kind != tt.want.Kind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.want.Kind)
			}
			if got.Ref != tt.want.Ref {
				t.Errorf("Ref = %q, want %q", got.Ref, tt.want.Ref)
			}
			if got.Text != tt.want.Text {
				t.Errorf("Text = %q, want %q", got.Text, tt.want.Text)
			}
			if got.Role != tt.want.Role {
				t.Errorf("Role = %q, want %q", got.Role, tt.want.Role)
			}
			if got.AttrString() != tt.want.AttrString() {
				t.Errorf("Attrs = %q, want %q", got.AttrString(), tt.want.AttrString())
			}
		})
	}
}

func TestParseSkipsNoise(t *testing.T) {
	raw := strings.Join([]string{
		"page surface",
		`- navigation`,
		`- link "Home" [ref=e1]`,
		"",
		"  some stray text",
		`- button "Buy" [ref=e2]`,
	}, "\n")

	tree := Parse(raw, 0)
	if got, want := len(tree.Nodes), 2; got != want {
		t.Fatalf("len(Nodes) = %d, want %d", got, want)
	}
	if tree.Nodes[0].Ref != "e1" || tree.Nodes[1].Ref != "e2" {
		t.Errorf("refs = %q, %q, want e1, e2", tree.Nodes[0].Ref, tree.Nodes[1].Ref)
	}
	if tree.Truncated {
		t.Error("Truncated = true, want false")
	}
}

func TestParseNodeCap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "- button \"b%d\" [ref=e%d]\n", i, i)
	}

	tree := Parse(b.String(), 10)
	if got, want := len(tree.Nodes), 10; got != want {
		t.Fatalf("len(Nodes) = %d, want %d", got, want)
	}
	if !tree.Truncated {
		t.Error("Truncated = false, want true")
	}
}

func TestParseEmpty(t *testing.T) {
	for _, raw := range []string{"", "   \n\t\n"} {
		tree := Parse(raw, 0)
		if len(tree.Nodes) != 0 || tree.Truncated {
			t.Errorf("Parse(%q) = %d nodes truncated=%v, want empty", raw, len(tree.Nodes), tree.Truncated)
		}
	}
}

func TestParseTextBound(t *testing.T) {
	long := strings.Repeat("x", maxNodeText+40)
	tree := Parse(fmt.Sprintf("- heading %q [ref=e1]", long), 0)
	if len(tree.Nodes) != 1 {
		t.Fatalf("len(Nodes) = %d, want 1", len(tree.Nodes))
	}
	if got := len(tree.Nodes[0].Text); got != maxNodeText {
		t.Errorf("len(Text) = %d, want %d", got, maxNodeText)
	}
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want NodeKind
	}{
		{`- alert "Session expired"`, KindError},
		{`- status "error: card declined"`, KindError},
		{`- button "Go"`, KindInteractive},
		{`- combobox "Country"`, KindForm},
		{`- navigation "Main"`, KindNavigation},
		{`- paragraph "hello"`, KindContent},
	}
	for _, tt := range tests {
		if got := classifyLine(tt.line); got != tt.want {
			t.Errorf("classifyLine(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}
