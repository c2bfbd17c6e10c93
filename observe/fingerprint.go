package observe

import "strings"

const (
	// fingerprintText is the per-node text prefix folded into the fingerprint.
	fingerprintText = 50
	// fingerprintCap bounds the whole fingerprint string. Trees whose
	// fingerprints diverge only beyond the cap compare equal; the keyed
	// reconciliation still sees the real nodes, so the cap only costs an
	// occasional skipped short-circuit in the other direction.
	fingerprintCap = 2_000
)

// Fingerprint reduces a tree to a bounded string used for cheap equality
// checks between consecutive observations. The string itself is the identity;
// it is never hashed. Equal fingerprints mean "do not bother diffing", nothing
// more: URL and title changes are tracked separately.
func Fingerprint(t *Tree) string {
	if t == nil || len(t.Nodes) == 0 {
		return ""
	}
	var b strings.Builder
	for i := range t.Nodes {
		n := &t.Nodes[i]
		b.WriteString(string(n.Kind))
		b.WriteByte('|')
		b.WriteString(n.Ref)
		b.WriteByte('|')
		b.WriteString(truncateRunes(n.Text, fingerprintText))
		b.WriteByte('|')
		b.WriteString(n.Role)
		b.WriteByte(';')
		if b.Len() >= fingerprintCap {
			break
		}
	}
	s := b.String()
	if len(s) > fingerprintCap {
		s = s[:fingerprintCap]
	}
	return s
}
