// Package sift filters sets of structured entries through an external line
// matcher (ripgrep, falling back to grep). Entries are serialized into a
// corpus of fixed three-line blocks, the matcher runs once over the whole
// corpus on stdin, and matched line numbers are mapped back to entry indices.
// When no usable matcher exists or it fails, filtering degrades to returning
// every entry with a reason instead of erroring.
package sift

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Entry is one filterable record: an ordered list of key/value fields that
// serialize onto a single corpus line.
type Entry struct {
	Fields []Field
}

// Field is one key/value pair of an entry.
type Field struct {
	Key   string
	Value string
}

// E builds an entry from alternating key/value pairs; a trailing odd key is
// dropped. It keeps call sites compact where entries are assembled by hand.
func E(kv ...string) Entry {
	e := Entry{}
	for i := 0; i+1 < len(kv); i += 2 {
		e.Fields = append(e.Fields, Field{Key: kv[i], Value: kv[i+1]})
	}
	return e
}

// Options control one filter pass.
type Options struct {
	// Pattern is the matcher's regular expression. Empty patterns match
	// every entry.
	Pattern       string
	CaseSensitive bool
	WholeWord     bool
	// Invert keeps entries whose fields line does not match.
	Invert bool
	// Context also keeps entries within this many blocks of a match.
	Context int
	// MaxMatches caps matched lines; zero means no cap.
	MaxMatches int
}

// Result is the outcome of one filter pass. Indices are entry positions in
// the input slice, ascending and deduplicated. Degraded means the matcher
// was unavailable or failed and Indices covers every entry.
type Result struct {
	Indices  []int
	Tool     string
	Degraded bool
	Reason   string
}

// runFunc executes the matcher binary with the corpus on stdin and returns
// its output and exit code. A non-nil error means the process could not run
// at all, not that it found nothing.
type runFunc func(ctx context.Context, bin string, args []string, stdin string) (stdout, stderr string, exitCode int, err error)

// Filter resolves and drives the external matcher. One Filter is safe for
// concurrent use; binary resolution happens once on first Apply.
type Filter struct {
	log     *slog.Logger
	resolve sync.Once
	bin     string
	tool    string
	run     runFunc
	prefer  string
}

// Option configures a Filter.
type Option func(*Filter)

// WithLogger sets the logger for degradation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(f *Filter) {
		if l != nil {
			f.log = l
		}
	}
}

// WithBinary pins the matcher binary instead of probing PATH.
func WithBinary(path string) Option {
	return func(f *Filter) { f.prefer = path }
}

// New returns a Filter that probes for rg first and grep second.
func New(opts ...Option) *Filter {
	f := &Filter{log: slog.Default(), run: execRun}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Apply filters entries by the given options. An empty pattern or empty
// input short-circuits without spawning the matcher.
func (f *Filter) Apply(ctx context.Context, entries []Entry, o Options) Result {
	if len(entries) == 0 {
		return Result{}
	}
	if strings.TrimSpace(o.Pattern) == "" {
		return Result{Indices: allIndices(len(entries))}
	}

	f.resolve.Do(f.resolveBinary)
	if f.bin == "" {
		f.log.Warn("no filter binary available, returning unfiltered entries")
		return Result{
			Indices:  allIndices(len(entries)),
			Degraded: true,
			Reason:   "no filter binary (rg or grep) on PATH",
		}
	}

	corpus := BuildCorpus(entries)
	args := f.buildArgs(o)
	out, errOut, code, err := f.run(ctx, f.bin, args, corpus)
	if err != nil {
		f.log.Warn("filter run failed", "tool", f.tool, "error", err)
		return Result{
			Indices:  allIndices(len(entries)),
			Tool:     f.tool,
			Degraded: true,
			Reason:   fmt.Sprintf("%s failed: %v", f.tool, err),
		}
	}
	switch code {
	case 0:
		// matches below
	case 1:
		// clean no-match
		return Result{Tool: f.tool}
	default:
		f.log.Warn("filter exited abnormally", "tool", f.tool, "code", code, "stderr", errOut)
		reason := fmt.Sprintf("%s exited with code %d", f.tool, code)
		if msg := firstLine(errOut); msg != "" {
			reason += ": " + msg
		}
		return Result{
			Indices:  allIndices(len(entries)),
			Tool:     f.tool,
			Degraded: true,
			Reason:   reason,
		}
	}

	return Result{Indices: MapMatches(out, len(entries)), Tool: f.tool}
}

// buildArgs assembles matcher arguments. rg and grep share every flag this
// bridge needs, so one builder serves both.
func (f *Filter) buildArgs(o Options) []string {
	args := []string{"-n"}
	if !o.CaseSensitive {
		args = append(args, "-i")
	}
	if o.WholeWord {
		args = append(args, "-w")
	}
	if o.Invert {
		args = append(args, "-v")
	}
	if o.Context > 0 {
		// one entry block is three lines
		args = append(args, "-C", strconv.Itoa(o.Context*3))
	}
	if o.MaxMatches > 0 {
		args = append(args, "-m", strconv.Itoa(o.MaxMatches))
	}
	if f.tool == "grep" {
		args = append(args, "-E")
	}
	args = append(args, "-e", o.Pattern)
	return args
}

// BuildCorpus serializes entries into the matcher corpus. Entry k occupies
// three 1-based lines: 3k+1 is the marker, 3k+2 the fields line, 3k+3 the
// separator. Only the fields line carries searchable content.
func BuildCorpus(entries []Entry) string {
	var b strings.Builder
	for k, e := range entries {
		b.WriteByte('#')
		b.WriteString(strconv.Itoa(k))
		b.WriteByte('\n')
		b.WriteString(fieldsLine(e))
		b.WriteByte('\n')
		b.WriteString("--\n")
	}
	return b.String()
}

// fieldsLine renders the searchable line of one entry. Newlines inside
// values would break the line discipline and are flattened to spaces.
func fieldsLine(e Entry) string {
	parts := make([]string, 0, len(e.Fields))
	for _, fd := range e.Fields {
		parts = append(parts, fd.Key+":"+flatten(fd.Value))
	}
	return strings.Join(parts, " ")
}

func flatten(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	r := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
	return r.Replace(s)
}

// MapMatches parses matcher output and maps line numbers back to entry
// indices. Only fields lines count: a line number l belongs to entry
// (l-2)/3 exactly when l % 3 == 2, which drops marker and separator hits
// from inverted or context output. Results are deduplicated, ascending, and
// clamped to the entry count.
func MapMatches(out string, n int) []int {
	seen := make(map[int]bool)
	var indices []int
	for _, line := range strings.Split(out, "\n") {
		num, ok := splitLineNumber(line)
		if !ok || num%3 != 2 {
			continue
		}
		k := (num - 2) / 3
		if k < 0 || k >= n || seen[k] {
			continue
		}
		seen[k] = true
		indices = append(indices, k)
	}
	sort.Ints(indices)
	return indices
}

// splitLineNumber extracts the leading line number from a matcher output
// line. Match lines use "N:" and context lines "N-"; both carry entries.
func splitLineNumber(line string) (int, bool) {
	i := strings.IndexAny(line, ":-")
	if i <= 0 {
		return 0, false
	}
	num, err := strconv.Atoi(line[:i])
	if err != nil || num <= 0 {
		return 0, false
	}
	return num, true
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}
