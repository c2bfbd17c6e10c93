package observe

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// maxRawDiffBytes bounds the rendered unified diff so a page rewrite cannot
// flood the report.
const maxRawDiffBytes = 8 * 1024

// RawDelta is the raw-text comparison between two dumps.
type RawDelta struct {
	// Similarity is in [0,1]; 1 means byte-identical line sequences.
	Similarity float64
	// Patch holds unified diff hunks, possibly cut at maxRawDiffBytes.
	Patch     string
	Truncated bool
}

// CompareRaw computes line-level similarity and a bounded unified diff
// between two raw dumps. Identical inputs return similarity 1 and no patch.
func CompareRaw(before, after string) (RawDelta, error) {
	if before == after {
		return RawDelta{Similarity: 1}, nil
	}
	a := difflib.SplitLines(before)
	b := difflib.SplitLines(after)

	d := RawDelta{Similarity: difflib.NewMatcher(a, b).Ratio()}

	patch, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: "before",
		ToFile:   "after",
		Context:  2,
	})
	if err != nil {
		return d, fmt.Errorf("observe: raw diff: %w", err)
	}
	if len(patch) > maxRawDiffBytes {
		patch = patch[:maxRawDiffBytes] + "\n[diff truncated]"
		d.Truncated = true
	}
	d.Patch = patch
	return d, nil
}
