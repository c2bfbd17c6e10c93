package observe

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

func node(kind NodeKind, ref, text, role string) Node {
	return Node{Kind: kind, Ref: ref, Text: text, Role: role}
}

func TestReconcileDisjoint(t *testing.T) {
	before := &Tree{Nodes: []Node{
		node(KindInteractive, "e1", "Buy", "button"),
		node(KindContent, "", "Old headline", "heading"),
	}}
	after := &Tree{Nodes: []Node{
		node(KindInteractive, "e2", "Sell", "button"),
		node(KindContent, "", "New headline", "heading"),
	}}

	d := Reconcile(before, after)
	if got, want := len(d.Added), 2; got != want {
		t.Errorf("len(Added) = %d, want %d", got, want)
	}
	if got, want := len(d.Removed), 2; got != want {
		t.Errorf("len(Removed) = %d, want %d", got, want)
	}
	if len(d.Modified) != 0 || d.Unchanged != 0 {
		t.Errorf("Modified = %d, Unchanged = %d, want 0, 0", len(d.Modified), d.Unchanged)
	}
}

func TestReconcileModified(t *testing.T) {
	before := &Tree{Nodes: []Node{
		node(KindInteractive, "e1", "Add to cart", "button"),
		node(KindForm, "e2", "Email", "textbox"),
	}}
	after := &Tree{Nodes: []Node{
		node(KindInteractive, "e1", "Remove from cart", "button"),
		node(KindForm, "e2", "Email", "textbox"),
	}}

	d := Reconcile(before, after)
	if len(d.Added) != 0 || len(d.Removed) != 0 {
		t.Errorf("Added = %d, Removed = %d, want 0, 0", len(d.Added), len(d.Removed))
	}
	if got, want := len(d.Modified), 1; got != want {
		t.Fatalf("len(Modified) = %d, want %d", got, want)
	}
	c := d.Modified[0]
	if c.Before.Text != "Add to cart" || c.After.Text != "Remove from cart" {
		t.Errorf("change = %q -> %q, want Add to cart -> Remove from cart", c.Before.Text, c.After.Text)
	}
	if d.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", d.Unchanged)
	}
}

func TestReconcileAttrsOnlyChange(t *testing.T) {
	before := &Tree{Nodes: []Node{
		{Kind: KindInteractive, Ref: "e1", Text: "Submit", Role: "button"},
	}}
	after := &Tree{Nodes: []Node{
		{Kind: KindInteractive, Ref: "e1", Text: "Submit", Role: "button", Attrs: map[string]string{"disabled": "true"}},
	}}

	d := Reconcile(before, after)
	if got, want := len(d.Modified), 1; got != want {
		t.Fatalf("len(Modified) = %d, want %d", got, want)
	}
}

func TestReconcileReorderIsQuiet(t *testing.T) {
	before := &Tree{Nodes: []Node{
		node(KindInteractive, "e1", "One", "button"),
		node(KindInteractive, "e2", "Two", "button"),
		node(KindInteractive, "e3", "Three", "button"),
	}}
	after := &Tree{Nodes: []Node{
		node(KindInteractive, "e3", "Three", "button"),
		node(KindInteractive, "e1", "One", "button"),
		node(KindInteractive, "e2", "Two", "button"),
	}}

	if d := Reconcile(before, after); !d.Empty() {
		t.Errorf("reorder produced %d added, %d removed, %d modified, want empty",
			len(d.Added), len(d.Removed), len(d.Modified))
	}
}

func TestReconcileKeyFallback(t *testing.T) {
	// unreferenced nodes key on kind and text, so a text edit reads as
	// remove plus add
	before := &Tree{Nodes: []Node{node(KindContent, "", "Loading", "status")}}
	after := &Tree{Nodes: []Node{node(KindContent, "", "Done", "status")}}

	d := Reconcile(before, after)
	if len(d.Added) != 1 || len(d.Removed) != 1 || len(d.Modified) != 0 {
		t.Errorf("got %d added, %d removed, %d modified, want 1, 1, 0",
			len(d.Added), len(d.Removed), len(d.Modified))
	}
}

func TestReconcileDuplicateKeysCollapse(t *testing.T) {
	before := &Tree{Nodes: []Node{
		node(KindContent, "", "item", "cell"),
		node(KindContent, "", "item", "cell"),
		node(KindContent, "", "item", "cell"),
	}}
	after := &Tree{Nodes: []Node{
		node(KindContent, "", "item", "cell"),
	}}

	d := Reconcile(before, after)
	if !d.Empty() {
		t.Errorf("duplicate collapse produced %d added, %d removed, %d modified, want empty",
			len(d.Added), len(d.Removed), len(d.Modified))
	}

	d = Reconcile(before, &Tree{})
	if got, want := len(d.Removed), 1; got != want {
		t.Errorf("len(Removed) = %d, want %d", got, want)
	}
}

func TestReconcileNilTrees(t *testing.T) {
	if d := Reconcile(nil, nil); !d.Empty() {
		t.Error("Reconcile(nil, nil) not empty")
	}
	after := &Tree{Nodes: []Node{node(KindInteractive, "e1", "Go", "button")}}
	if d := Reconcile(nil, after); len(d.Added) != 1 {
		t.Errorf("len(Added) = %d, want 1", len(d.Added))
	}
}

func TestNodeKey(t *testing.T) {
	tests := []struct {
		n    Node
		want string
	}{
		{node(KindInteractive, "e1", "Buy", "button"), "e1"},
		{node(KindContent, "", "Hello", "heading"), "content:Hello"},
		{node(KindError, "", "boom", ""), "error:boom"},
	}
	for _, tt := range tests {
		if got := tt.n.Key(); got != tt.want {
			t.Errorf("Key() = %q, want %q", got, tt.want)
		}
	}
}

func genTree(t *rapid.T, label string) *Tree {
	n := rapid.IntRange(0, 40).Draw(t, label+"_n")
	tree := &Tree{}
	for i := 0; i < n; i++ {
		tree.Nodes = append(tree.Nodes, Node{
			Kind: NodeKind(rapid.SampledFrom([]string{
				string(KindInteractive), string(KindContent), string(KindNavigation), string(KindForm), string(KindError),
			}).Draw(t, label+"_kind")),
			Ref:  rapid.SampledFrom([]string{"", "e1", "e2", "e3", "e4", "e5"}).Draw(t, label+"_ref"),
			Text: rapid.StringN(0, 20, -1).Draw(t, label+"_text"),
			Role: rapid.SampledFrom([]string{"", "button", "link", "heading"}).Draw(t, label+"_role"),
		})
	}
	return tree
}

func TestReconcileSelfIsEmpty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tree := genTree(t, "t")
		if d := Reconcile(tree, tree); !d.Empty() {
			t.Fatalf("Reconcile(T, T) = %d added, %d removed, %d modified, want empty",
				len(d.Added), len(d.Removed), len(d.Modified))
		}
	})
}

func TestReconcileSetsAreDisjoint(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		before := genTree(t, "a")
		after := genTree(t, "b")
		d := Reconcile(before, after)

		keys := make(map[string]string)
		record := func(key, set string) {
			if prev, ok := keys[key]; ok {
				t.Fatalf("key %q appears in both %s and %s", key, prev, set)
			}
			keys[key] = set
		}
		for i := range d.Added {
			record(d.Added[i].Key(), "added")
		}
		for i := range d.Removed {
			record(d.Removed[i].Key(), "removed")
		}
		for i := range d.Modified {
			record(d.Modified[i].After.Key(), "modified")
		}
	})
}

func TestReconcileLinear(t *testing.T) {
	// smoke for the cap-sized case
	before := &Tree{}
	after := &Tree{}
	for i := 0; i < DefaultMaxNodes; i++ {
		before.Nodes = append(before.Nodes, node(KindContent, fmt.Sprintf("e%d", i), "x", "cell"))
		after.Nodes = append(after.Nodes, node(KindContent, fmt.Sprintf("e%d", i+1), "x", "cell"))
	}
	d := Reconcile(before, after)
	if len(d.Added) != 1 || len(d.Removed) != 1 {
		t.Errorf("shifted refs: %d added, %d removed, want 1, 1", len(d.Added), len(d.Removed))
	}
}
