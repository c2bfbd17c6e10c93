package observe

import (
	"bufio"
	"regexp"
	"strings"
)

// maxNodeText bounds the display text kept per node. Longer text is cut at a
// rune boundary; the fingerprint uses an even shorter prefix (fingerprintText).
const maxNodeText = 200

// DefaultMaxNodes caps the tree size; the parser stops and flags truncation
// once the cap is reached rather than growing without bound.
const DefaultMaxNodes = 10_000

var (
	refRe    = regexp.MustCompile(`\[ref=([A-Za-z0-9_.-]+)\]`)
	quotedRe = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
	attrRe   = regexp.MustCompile(`\[([a-zA-Z][a-zA-Z0-9_-]*)(?:=([^\]]*))?\]`)
	roleRe   = regexp.MustCompile(`^\s*-?\s*([a-zA-Z][a-zA-Z0-9_-]*)`)
)

// Parse scans a raw structural dump line by line and extracts typed nodes.
// A line contributes a node only when it carries a reference marker or quoted
// text; everything else is treated as structural noise. This is a best-effort
// classifier over a textually regular dump format, not a grammar parser: a
// malformed dump degrades to fewer (or zero) nodes, never to an error.
func Parse(raw string, maxNodes int) *Tree {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	t := &Tree{}
	if strings.TrimSpace(raw) == "" {
		return t
	}

	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		n, ok := parseLine(line)
		if !ok {
			continue
		}
		if len(t.Nodes) >= maxNodes {
			t.Truncated = true
			break
		}
		t.Nodes = append(t.Nodes, n)
	}
	return t
}

// parseLine extracts one node from a dump line. The second return is false
// when the line has neither a ref marker nor quoted text.
func parseLine(line string) (Node, bool) {
	ref := ""
	if m := refRe.FindStringSubmatch(line); m != nil {
		ref = m[1]
	}
	text := ""
	hasText := false
	if m := quotedRe.FindStringSubmatch(line); m != nil {
		text = unescape(m[1])
		hasText = true
	}
	if ref == "" && !hasText {
		return Node{}, false
	}

	n := Node{
		Kind: classifyLine(line),
		Ref:  ref,
		Text: truncateRunes(text, maxNodeText),
		Role: leadingRole(line),
	}

	for _, m := range attrRe.FindAllStringSubmatch(line, -1) {
		key := m[1]
		if key == "ref" {
			continue
		}
		if n.Attrs == nil {
			n.Attrs = make(map[string]string, 2)
		}
		val := m[2]
		if val == "" {
			val = "true"
		}
		n.Attrs[key] = val
	}
	return n, true
}

// classifyLine infers the node kind from lexical cues in the line. Error cues
// dominate so alerts are never buried under their role; the remaining order
// follows specificity of the cue sets.
func classifyLine(line string) NodeKind {
	l := strings.ToLower(line)
	switch {
	case containsAny(l, "error", "alert"):
		return KindError
	case containsAny(l, "button", "clickable", "checkbox", "radio", "switch", "tab ", "menuitem", "option"):
		return KindInteractive
	case containsAny(l, "link", "nav"):
		return KindNavigation
	case containsAny(l, "form", "input", "textbox", "searchbox", "combobox", "textarea", "slider", "spinbutton"):
		return KindForm
	default:
		return KindContent
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// leadingRole returns the first bare word of the line, which the dump format
// uses for the semantic role. Empty when the line opens with something else.
func leadingRole(line string) string {
	m := roleRe.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return m[1]
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	r := strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\n`, "\n", `\t`, "\t")
	return r.Replace(s)
}

// truncateRunes cuts s to at most n runes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
