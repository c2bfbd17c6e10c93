// Package observe implements the live surface observation and reconciliation
// subsystem: it turns raw structural dumps of a driven page into lightweight
// node trees, decides whether an observation attempt completed, timed out or
// was pre-empted by a modal interrupt, and reports only the change since the
// previous observation instead of the whole structure.
package observe

import (
	"sort"
	"strings"
	"time"
)

// NodeKind classifies a structural element by what a caller can do with it.
type NodeKind string

const (
	KindInteractive NodeKind = "interactive"
	KindContent     NodeKind = "content"
	KindNavigation  NodeKind = "navigation"
	KindForm        NodeKind = "form"
	KindError       NodeKind = "error"
)

// Node is one structural element of an observed surface. Nodes are recreated
// on every parse and never mutated after creation.
type Node struct {
	Kind NodeKind          `json:"kind"`
	Ref  string            `json:"ref,omitempty"`
	Text string            `json:"text,omitempty"`
	Role string            `json:"role,omitempty"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Key returns the reconciliation identity of the node: the stable reference
// when the backend assigned one, otherwise kind and display text.
func (n Node) Key() string {
	if n.Ref != "" {
		return n.Ref
	}
	return string(n.Kind) + ":" + n.Text
}

// AttrString serializes the attribute map deterministically (sorted keys) so
// two nodes with equal attributes always compare equal.
func (n Node) AttrString() string {
	if len(n.Attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(n.Attrs[k])
	}
	return sb.String()
}

// Tree is an ordered list of nodes from one observation. It is owned by the
// observation call that produced it until handed to reconciliation, and is
// never shared or mutated concurrently.
type Tree struct {
	Nodes     []Node `json:"nodes"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Len returns the node count.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Nodes)
}

// Change pairs the before and after versions of a modified node.
type Change struct {
	Before Node `json:"before"`
	After  Node `json:"after"`
}

// Diff is the result of reconciling two trees. Produced fresh per call and
// immutable once returned.
type Diff struct {
	Added    []Node   `json:"added"`
	Removed  []Node   `json:"removed"`
	Modified []Change `json:"modified"`

	// Unchanged counts same-keyed nodes that compared equal. It is a
	// formatting aid, not part of the change sets.
	Unchanged int `json:"unchanged,omitempty"`
}

// Empty reports whether the diff contains no entries at all.
func (d *Diff) Empty() bool {
	return d == nil || (len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Modified) == 0)
}

// Size returns the total number of diff entries.
func (d *Diff) Size() int {
	if d == nil {
		return 0
	}
	return len(d.Added) + len(d.Removed) + len(d.Modified)
}

// PageInfo is the navigation identity of the surface at observation time.
type PageInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ModalKind tags the interrupt variants a surface can raise.
type ModalKind string

const (
	ModalDialog           ModalKind = "dialog"
	ModalFileChooser      ModalKind = "file_chooser"
	ModalPermissionPrompt ModalKind = "permission_prompt"
	ModalNotification     ModalKind = "notification"
)

// Modal is an asynchronous surface event that blocks further meaningful
// automation until explicitly cleared. Cleared exactly once, by the tool that
// claims to handle its kind; clearing with a mismatched tag is a no-op.
type Modal struct {
	Kind        ModalKind `json:"kind"`
	Description string    `json:"description"`
	Tag         string    `json:"tag"`
	RaisedAt    time.Time `json:"raised_at"`
}
