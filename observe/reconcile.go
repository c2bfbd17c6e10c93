package observe

// Reconcile compares two trees as keyed flat multisets and reports which
// entries appeared, disappeared, or changed in place. Ordering and nesting
// are deliberately ignored: a node that merely moved produces no entry at
// all. Duplicate keys collapse to the last occurrence, which keeps the pass
// linear and is good enough for surfaces where keys are overwhelmingly
// reference-backed.
func Reconcile(before, after *Tree) *Diff {
	d := &Diff{}
	if before == nil {
		before = &Tree{}
	}
	if after == nil {
		after = &Tree{}
	}

	old := make(map[string]*Node, len(before.Nodes))
	for i := range before.Nodes {
		old[before.Nodes[i].Key()] = &before.Nodes[i]
	}
	cur := make(map[string]*Node, len(after.Nodes))
	for i := range after.Nodes {
		cur[after.Nodes[i].Key()] = &after.Nodes[i]
	}

	seen := make(map[string]bool, len(after.Nodes))
	for i := range after.Nodes {
		n := &after.Nodes[i]
		key := n.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		prev, ok := old[key]
		if !ok {
			d.Added = append(d.Added, *n)
			continue
		}
		if nodeChanged(prev, n) {
			d.Modified = append(d.Modified, Change{Before: *prev, After: *n})
		} else {
			d.Unchanged++
		}
	}
	removed := make(map[string]bool)
	for i := range before.Nodes {
		key := before.Nodes[i].Key()
		if _, ok := cur[key]; ok {
			continue
		}
		if removed[key] {
			continue
		}
		removed[key] = true
		d.Removed = append(d.Removed, *old[key])
	}
	return d
}

// nodeChanged reports whether two same-keyed nodes differ in any compared
// dimension. Kind is part of the key for unreferenced nodes and is cheap to
// compare for referenced ones, so it is included too.
func nodeChanged(a, b *Node) bool {
	return a.Text != b.Text ||
		a.Role != b.Role ||
		a.Kind != b.Kind ||
		a.AttrString() != b.AttrString()
}
