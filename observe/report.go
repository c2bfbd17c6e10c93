package observe

import (
	"fmt"
	"strings"
	"time"
)

// ReportKind labels the overall shape of an observation report.
type ReportKind string

const (
	// ReportFull carries a complete tree outline.
	ReportFull ReportKind = "full"
	// ReportDiff carries only what changed since the baseline.
	ReportDiff ReportKind = "diff"
	// ReportNoChange means the surface is identical to the baseline.
	ReportNoChange ReportKind = "no_change"
	// ReportTimeout means the attempt hit its deadline.
	ReportTimeout ReportKind = "timeout"
	// ReportModal means a blocking state preempted the attempt.
	ReportModal ReportKind = "modal"
)

// Report is the outcome of one observation, ready to be rendered for the
// caller. Exactly one of Tree, Diff, or Modal is populated depending on Kind;
// Raw rides along when raw granularity is enabled.
type Report struct {
	Kind ReportKind `json:"kind"`

	Page        PageInfo `json:"page"`
	PrevURL     string   `json:"prev_url,omitempty"`
	PrevTitle   string   `json:"prev_title,omitempty"`
	URLChanged  bool     `json:"url_changed,omitempty"`
	TitleChange bool     `json:"title_changed,omitempty"`

	Tree  *Tree     `json:"tree,omitempty"`
	Diff  *Diff     `json:"diff,omitempty"`
	Raw   *RawDelta `json:"raw,omitempty"`
	Modal *Modal    `json:"modal,omitempty"`

	Elapsed     time.Duration `json:"elapsed,omitempty"`
	Deadline    time.Duration `json:"-"`
	Annotations []string      `json:"annotations,omitempty"`
}

// Annotate appends a degradation note to the report.
func (r *Report) Annotate(format string, args ...any) {
	r.Annotations = append(r.Annotations, fmt.Sprintf(format, args...))
}

// Render formats the report as compact text. Page identity changes come
// first, then error-kind entries, then the body for the report kind, then
// any degradation notes.
func (r *Report) Render() string {
	var b strings.Builder

	switch r.Kind {
	case ReportModal:
		renderModal(&b, r.Modal)
		renderAnnotations(&b, r.Annotations)
		return strings.TrimRight(b.String(), "\n")
	case ReportTimeout:
		d := r.Deadline
		if d <= 0 {
			d = DefaultDeadline
		}
		fmt.Fprintf(&b, "snapshot timed out after %s; the page may still be loading\n", d)
		b.WriteString("retry the observation, or act on the last known state\n")
		renderAnnotations(&b, r.Annotations)
		return strings.TrimRight(b.String(), "\n")
	}

	renderPageLines(&b, r)

	switch r.Kind {
	case ReportNoChange:
		b.WriteString("no structural changes\n")
	case ReportFull:
		renderTree(&b, r.Tree)
	case ReportDiff:
		if r.Diff != nil {
			renderDiff(&b, r.Diff)
		}
	}

	if r.Raw != nil && r.Kind != ReportNoChange {
		renderRaw(&b, r.Raw)
	}
	renderAnnotations(&b, r.Annotations)
	return strings.TrimRight(b.String(), "\n")
}

func renderPageLines(b *strings.Builder, r *Report) {
	switch {
	case r.URLChanged && r.PrevURL != "":
		fmt.Fprintf(b, "url: %s -> %s\n", r.PrevURL, r.Page.URL)
	case r.Page.URL != "":
		fmt.Fprintf(b, "url: %s\n", r.Page.URL)
	}
	switch {
	case r.TitleChange && r.PrevTitle != "":
		fmt.Fprintf(b, "title: %q -> %q\n", r.PrevTitle, r.Page.Title)
	case r.Page.Title != "":
		fmt.Fprintf(b, "title: %q\n", r.Page.Title)
	}
}

func renderModal(b *strings.Builder, m *Modal) {
	if m == nil {
		b.WriteString("blocked by a modal state\n")
		return
	}
	fmt.Fprintf(b, "blocked: %s", m.Kind)
	if m.Tag != "" {
		fmt.Fprintf(b, " [tag=%s]", m.Tag)
	}
	if m.Description != "" {
		fmt.Fprintf(b, ": %s", m.Description)
	}
	b.WriteByte('\n')
	b.WriteString("handle it with the matching tool, then observe again\n")
}

func renderTree(b *strings.Builder, t *Tree) {
	if t == nil || len(t.Nodes) == 0 {
		b.WriteString("page surface is empty\n")
		return
	}
	fmt.Fprintf(b, "%d nodes\n", len(t.Nodes))
	for i := range t.Nodes {
		b.WriteString("- ")
		b.WriteString(formatNode(&t.Nodes[i]))
		b.WriteByte('\n')
	}
	if t.Truncated {
		b.WriteString("[tree truncated at node cap]\n")
	}
}

func renderDiff(b *strings.Builder, d *Diff) {
	if d.Empty() {
		b.WriteString("no structural changes\n")
		return
	}
	fmt.Fprintf(b, "%d added, %d removed, %d modified, %d unchanged\n",
		len(d.Added), len(d.Removed), len(d.Modified), d.Unchanged)

	// alerts first so error surfaces are never buried in a long diff
	for i := range d.Added {
		if d.Added[i].Kind == KindError {
			fmt.Fprintf(b, "! %s\n", formatNode(&d.Added[i]))
		}
	}
	for i := range d.Modified {
		if d.Modified[i].After.Kind == KindError {
			fmt.Fprintf(b, "! %s\n", formatNode(&d.Modified[i].After))
		}
	}

	for i := range d.Added {
		if d.Added[i].Kind == KindError {
			continue
		}
		fmt.Fprintf(b, "+ %s\n", formatNode(&d.Added[i]))
	}
	for i := range d.Removed {
		fmt.Fprintf(b, "- %s\n", formatNode(&d.Removed[i]))
	}
	for i := range d.Modified {
		c := &d.Modified[i]
		if c.After.Kind == KindError {
			continue
		}
		fmt.Fprintf(b, "~ %s\n", formatChange(c))
	}
}

func renderRaw(b *strings.Builder, rd *RawDelta) {
	fmt.Fprintf(b, "raw similarity: %.3f\n", rd.Similarity)
	if rd.Patch != "" {
		b.WriteString(rd.Patch)
		if !strings.HasSuffix(rd.Patch, "\n") {
			b.WriteByte('\n')
		}
	}
}

func renderAnnotations(b *strings.Builder, notes []string) {
	for _, n := range notes {
		fmt.Fprintf(b, "note: %s\n", n)
	}
}

// formatNode renders one node on a single line, close to the dump format so
// refs stay copy-pasteable into action tools.
func formatNode(n *Node) string {
	var b strings.Builder
	if n.Role != "" {
		b.WriteString(n.Role)
	} else {
		b.WriteString(string(n.Kind))
	}
	if n.Text != "" {
		fmt.Fprintf(&b, " %q", n.Text)
	}
	if n.Ref != "" {
		fmt.Fprintf(&b, " [ref=%s]", n.Ref)
	}
	if s := n.AttrString(); s != "" {
		fmt.Fprintf(&b, " {%s}", s)
	}
	return b.String()
}

// formatChange renders a modified pair, spelling out only the fields that
// actually differ.
func formatChange(c *Change) string {
	var b strings.Builder
	b.WriteString(formatNode(&c.After))
	var deltas []string
	if c.Before.Text != c.After.Text {
		deltas = append(deltas, fmt.Sprintf("text %q -> %q", c.Before.Text, c.After.Text))
	}
	if c.Before.Role != c.After.Role {
		deltas = append(deltas, fmt.Sprintf("role %s -> %s", c.Before.Role, c.After.Role))
	}
	if c.Before.Kind != c.After.Kind {
		deltas = append(deltas, fmt.Sprintf("kind %s -> %s", c.Before.Kind, c.After.Kind))
	}
	if a, z := c.Before.AttrString(), c.After.AttrString(); a != z {
		deltas = append(deltas, fmt.Sprintf("attrs {%s} -> {%s}", a, z))
	}
	if len(deltas) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(deltas, "; "))
	}
	return b.String()
}
