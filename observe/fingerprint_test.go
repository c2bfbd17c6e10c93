package observe

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestFingerprintEmpty(t *testing.T) {
	if got := Fingerprint(nil); got != "" {
		t.Errorf("Fingerprint(nil) = %q, want empty", got)
	}
	if got := Fingerprint(&Tree{}); got != "" {
		t.Errorf("Fingerprint(empty) = %q, want empty", got)
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base := &Tree{Nodes: []Node{
		{Kind: KindInteractive, Ref: "e1", Text: "Buy", Role: "button"},
		{Kind: KindContent, Text: "Checkout", Role: "heading"},
	}}
	fp := Fingerprint(base)

	tests := []struct {
		name   string
		mutate func(t *Tree)
	}{
		{"text change", func(t *Tree) { t.Nodes[0].Text = "Sell" }},
		{"ref change", func(t *Tree) { t.Nodes[0].Ref = "e2" }},
		{"role change", func(t *Tree) { t.Nodes[1].Role = "banner" }},
		{"kind change", func(t *Tree) { t.Nodes[1].Kind = KindError }},
		{"node added", func(t *Tree) { t.Nodes = append(t.Nodes, Node{Kind: KindContent, Text: "x"}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mutated := &Tree{Nodes: append([]Node(nil), base.Nodes...)}
			tt.mutate(mutated)
			if Fingerprint(mutated) == fp {
				t.Error("fingerprint unchanged after mutation")
			}
		})
	}
}

func TestFingerprintIgnoresAttrsAndLongText(t *testing.T) {
	long := strings.Repeat("a", fingerprintText)
	a := &Tree{Nodes: []Node{{Kind: KindForm, Ref: "e1", Text: long + "tail-one", Role: "textbox"}}}
	b := &Tree{Nodes: []Node{{Kind: KindForm, Ref: "e1", Text: long + "tail-two", Role: "textbox", Attrs: map[string]string{"disabled": "true"}}}}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprint differs on attrs or text beyond the prefix")
	}
}

func TestFingerprintCap(t *testing.T) {
	var nodes []Node
	for i := 0; i < 500; i++ {
		nodes = append(nodes, Node{Kind: KindContent, Ref: "e1", Text: strings.Repeat("x", 40), Role: "paragraph"})
	}
	fp := Fingerprint(&Tree{Nodes: nodes})
	if len(fp) != fingerprintCap {
		t.Errorf("len(fp) = %d, want %d", len(fp), fingerprintCap)
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		tree := &Tree{}
		for i := 0; i < n; i++ {
			tree.Nodes = append(tree.Nodes, Node{
				Kind: NodeKind(rapid.SampledFrom([]string{
					string(KindInteractive), string(KindContent), string(KindNavigation), string(KindForm), string(KindError),
				}).Draw(t, "kind")),
				Ref:  rapid.StringN(0, 8, -1).Draw(t, "ref"),
				Text: rapid.StringN(0, 80, -1).Draw(t, "text"),
				Role: rapid.StringN(0, 12, -1).Draw(t, "role"),
			})
		}
		a := Fingerprint(tree)
		b := Fingerprint(&Tree{Nodes: append([]Node(nil), tree.Nodes...)})
		if a != b {
			t.Fatalf("fingerprint not deterministic: %q vs %q", a, b)
		}
		if len(a) > fingerprintCap {
			t.Fatalf("len(fp) = %d exceeds cap %d", len(a), fingerprintCap)
		}
	})
}
