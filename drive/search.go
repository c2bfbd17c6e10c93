package drive

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/pilote/observe"
	"github.com/hazyhaar/pilote/sift"
)

// Search scopes.
const (
	ScopeLastDiff = "last_diff"
	ScopeTree     = "tree"
	ScopeConsole  = "console"
)

// SearchQuery is one snapshot_search request.
type SearchQuery struct {
	Scope         string
	Pattern       string
	Fields        []string
	CaseSensitive bool
	WholeWord     bool
	Invert        bool
	Context       int
	MaxMatches    int
}

// SearchReport filters a session's observation data through the external
// line matcher and returns the matching entries as text. Matcher problems
// degrade to unfiltered output with a reason, never to an error.
func (svc *Service) SearchReport(ctx context.Context, id string, q SearchQuery) (string, error) {
	sess, err := svc.get(id)
	if err != nil {
		return "", err
	}

	if q.Scope == "" {
		q.Scope = ScopeLastDiff
	}

	var entries []sift.Entry
	switch q.Scope {
	case ScopeLastDiff:
		entries = diffEntries(sess.report())
	case ScopeTree:
		tree, _, _, _, _ := sess.st.Baseline()
		entries = treeEntries(tree)
	case ScopeConsole:
		entries = consoleEntries(sess)
	default:
		return "", fmt.Errorf("drive: unknown search scope %q (want last_diff, tree, or console)", q.Scope)
	}

	if len(q.Fields) > 0 {
		for i := range entries {
			entries[i] = selectFields(entries[i], q.Fields)
		}
	}

	if len(entries) == 0 {
		return fmt.Sprintf("nothing to search in scope %s", q.Scope), nil
	}

	max := q.MaxMatches
	if max <= 0 {
		max = svc.cfg.Filter.MaxMatches
	}

	res := svc.filter.Apply(ctx, entries, sift.Options{
		Pattern:       q.Pattern,
		CaseSensitive: q.CaseSensitive,
		WholeWord:     q.WholeWord,
		Invert:        q.Invert,
		Context:       q.Context,
		MaxMatches:    max,
	})

	return renderSearch(entries, res, q.Scope), nil
}

func renderSearch(entries []sift.Entry, res sift.Result, scope string) string {
	var b strings.Builder

	if res.Degraded {
		fmt.Fprintf(&b, "filter degraded: %s; returning all entries\n", res.Reason)
	}
	if len(res.Indices) == 0 {
		fmt.Fprintf(&b, "no entries matched in scope %s", scope)
		return b.String()
	}

	tool := res.Tool
	if tool == "" {
		tool = "none"
	}
	fmt.Fprintf(&b, "matched %d of %d entries in scope %s (matcher: %s)\n", len(res.Indices), len(entries), scope, tool)
	for _, k := range res.Indices {
		b.WriteString("#")
		b.WriteString(strconv.Itoa(k))
		b.WriteString(" ")
		b.WriteString(entryLine(entries[k]))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func entryLine(e sift.Entry) string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Key+":"+f.Value)
	}
	return strings.Join(parts, " ")
}

// diffEntries flattens the last report's change sets. Nothing to search when
// the last report carried no diff.
func diffEntries(rep *observe.Report) []sift.Entry {
	if rep == nil || rep.Diff == nil {
		return nil
	}

	var entries []sift.Entry
	for _, n := range rep.Diff.Added {
		entries = append(entries, nodeEntry("added", n, ""))
	}
	for _, n := range rep.Diff.Removed {
		entries = append(entries, nodeEntry("removed", n, ""))
	}
	for _, ch := range rep.Diff.Modified {
		was := ""
		if ch.Before.Text != ch.After.Text {
			was = ch.Before.Text
		}
		entries = append(entries, nodeEntry("modified", ch.After, was))
	}
	return entries
}

func nodeEntry(op string, n observe.Node, was string) sift.Entry {
	e := sift.E("op", op, "kind", string(n.Kind))
	add := func(k, v string) {
		if v != "" {
			e.Fields = append(e.Fields, sift.Field{Key: k, Value: v})
		}
	}
	add("ref", n.Ref)
	add("text", n.Text)
	add("role", n.Role)
	add("attrs", n.AttrString())
	add("was", was)
	return e
}

func treeEntries(tree *observe.Tree) []sift.Entry {
	if tree == nil {
		return nil
	}
	entries := make([]sift.Entry, 0, len(tree.Nodes))
	for _, n := range tree.Nodes {
		entries = append(entries, nodeEntry("node", n, ""))
	}
	return entries
}

func consoleEntries(sess *session) []sift.Entry {
	recent := sess.drv.Console().Recent(0)
	entries := make([]sift.Entry, 0, len(recent))
	for _, c := range recent {
		e := sift.E("level", c.Level, "text", c.Text)
		if c.URL != "" {
			e.Fields = append(e.Fields, sift.Field{Key: "url", Value: c.URL})
		}
		if c.Line > 0 {
			e.Fields = append(e.Fields, sift.Field{Key: "line", Value: strconv.Itoa(c.Line)})
		}
		entries = append(entries, e)
	}
	return entries
}

// selectFields keeps only the requested field keys, preserving entry order.
func selectFields(e sift.Entry, keys []string) sift.Entry {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[strings.ToLower(strings.TrimSpace(k))] = true
	}
	out := sift.Entry{}
	for _, f := range e.Fields {
		if want[f.Key] {
			out.Fields = append(out.Fields, f)
		}
	}
	return out
}
