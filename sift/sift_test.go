package sift

import (
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"
)

func testEntries() []Entry {
	return []Entry{
		E("kind", "interactive", "ref", "e1", "text", "Submit order", "role", "button"),
		E("kind", "error", "ref", "e9", "text", "Payment failed", "role", "alert"),
		E("kind", "content", "text", "Your cart", "role", "heading"),
	}
}

// stubFilter wires a canned runFunc in place of the real matcher.
func stubFilter(run runFunc) *Filter {
	f := New()
	f.bin = "/usr/bin/rg"
	f.tool = "rg"
	f.run = run
	return f
}

func TestBuildCorpusLayout(t *testing.T) {
	corpus := BuildCorpus(testEntries())
	lines := strings.Split(strings.TrimRight(corpus, "\n"), "\n")

	if got, want := len(lines), 9; got != want {
		t.Fatalf("corpus has %d lines, want %d", got, want)
	}
	for k := 0; k < 3; k++ {
		if got, want := lines[3*k], "#"+string(rune('0'+k)); got != want {
			t.Errorf("line %d = %q, want %q", 3*k+1, got, want)
		}
		if got := lines[3*k+2]; got != "--" {
			t.Errorf("line %d = %q, want separator", 3*k+3, got)
		}
	}
	if got, want := lines[4], "kind:error ref:e9 text:Payment failed role:alert"; got != want {
		t.Errorf("fields line = %q, want %q", got, want)
	}
}

func TestBuildCorpusFlattensNewlines(t *testing.T) {
	corpus := BuildCorpus([]Entry{E("text", "line one\nline two\r\nline three")})
	lines := strings.Split(strings.TrimRight(corpus, "\n"), "\n")
	if got, want := len(lines), 3; got != want {
		t.Fatalf("corpus has %d lines, want %d", got, want)
	}
	if got, want := lines[1], "text:line one line two line three"; got != want {
		t.Errorf("fields line = %q, want %q", got, want)
	}
}

func TestMapMatches(t *testing.T) {
	tests := []struct {
		name string
		out  string
		n    int
		want []int
	}{
		{"every fields line", "2:a\n5:b\n8:c\n", 3, []int{0, 1, 2}},
		{"marker and separator dropped", "1:#0\n3:--\n4:#1\n5:b\n", 3, []int{1}},
		{"context separator", "2-a\n5:b\n", 3, []int{0, 1}},
		{"duplicates collapse", "5:b\n5:b\n2:a\n", 3, []int{0, 1}},
		{"out of range clamped", "2:a\n11:x\n", 3, []int{0}},
		{"garbage ignored", "no match lines here\n\n:\n", 3, nil},
		{"empty", "", 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapMatches(tt.out, tt.n)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("MapMatches(%q) = %v, want %v", tt.out, got, tt.want)
			}
		})
	}
}

func TestApplyMapsStubOutput(t *testing.T) {
	var gotArgs []string
	var gotStdin string
	f := stubFilter(func(_ context.Context, _ string, args []string, stdin string) (string, string, int, error) {
		gotArgs = args
		gotStdin = stdin
		return "2:kind:interactive\n8:kind:content\n", "", 0, nil
	})

	res := f.Apply(context.Background(), testEntries(), Options{Pattern: "kind"})
	if res.Degraded {
		t.Fatalf("Degraded = true: %s", res.Reason)
	}
	if want := []int{0, 2}; !reflect.DeepEqual(res.Indices, want) {
		t.Errorf("Indices = %v, want %v", res.Indices, want)
	}
	if !strings.Contains(gotStdin, "#0\n") {
		t.Errorf("stdin corpus missing marker:\n%s", gotStdin)
	}
	if gotArgs[len(gotArgs)-1] != "kind" || gotArgs[len(gotArgs)-2] != "-e" {
		t.Errorf("args = %v, want trailing -e pattern", gotArgs)
	}
}

func TestApplyNoMatch(t *testing.T) {
	f := stubFilter(func(context.Context, string, []string, string) (string, string, int, error) {
		return "", "", 1, nil
	})
	res := f.Apply(context.Background(), testEntries(), Options{Pattern: "zzz"})
	if res.Degraded || len(res.Indices) != 0 {
		t.Errorf("Result = %+v, want clean empty", res)
	}
}

func TestApplyBadPatternDegrades(t *testing.T) {
	f := stubFilter(func(context.Context, string, []string, string) (string, string, int, error) {
		return "", "regex parse error: unclosed group\n", 2, nil
	})
	res := f.Apply(context.Background(), testEntries(), Options{Pattern: "(oops"})
	if !res.Degraded {
		t.Fatal("Degraded = false for exit code 2")
	}
	if want := []int{0, 1, 2}; !reflect.DeepEqual(res.Indices, want) {
		t.Errorf("Indices = %v, want all entries", res.Indices)
	}
	if !strings.Contains(res.Reason, "regex parse error") {
		t.Errorf("Reason = %q, want matcher stderr included", res.Reason)
	}
}

func TestApplyRunErrorDegrades(t *testing.T) {
	f := stubFilter(func(context.Context, string, []string, string) (string, string, int, error) {
		return "", "", -1, errors.New("fork failed")
	})
	res := f.Apply(context.Background(), testEntries(), Options{Pattern: "x"})
	if !res.Degraded || len(res.Indices) != 3 {
		t.Errorf("Result = %+v, want degraded with all entries", res)
	}
}

func TestApplyMissingBinaryDegrades(t *testing.T) {
	f := New(WithBinary("/nonexistent/matcher-binary"))
	// keep PATH probing from finding a real tool
	t.Setenv("PATH", t.TempDir())

	res := f.Apply(context.Background(), testEntries(), Options{Pattern: "x"})
	if !res.Degraded || len(res.Indices) != 3 {
		t.Errorf("Result = %+v, want degraded with all entries", res)
	}
}

func TestApplyEmptyPatternKeepsAll(t *testing.T) {
	f := stubFilter(func(context.Context, string, []string, string) (string, string, int, error) {
		t.Fatal("matcher spawned for empty pattern")
		return "", "", 0, nil
	})
	res := f.Apply(context.Background(), testEntries(), Options{Pattern: "  "})
	if res.Degraded || len(res.Indices) != 3 {
		t.Errorf("Result = %+v, want all entries without degradation", res)
	}
}

func TestApplyEmptyEntries(t *testing.T) {
	f := stubFilter(nil)
	res := f.Apply(context.Background(), nil, Options{Pattern: "x"})
	if res.Degraded || len(res.Indices) != 0 {
		t.Errorf("Result = %+v, want empty", res)
	}
}

func TestBuildArgs(t *testing.T) {
	f := &Filter{tool: "rg"}
	got := f.buildArgs(Options{Pattern: "pay", WholeWord: true, Invert: true, Context: 2, MaxMatches: 7})
	want := []string{"-n", "-i", "-w", "-v", "-C", "6", "-m", "7", "-e", "pay"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildArgs = %v, want %v", got, want)
	}

	f = &Filter{tool: "grep"}
	got = f.buildArgs(Options{Pattern: "pay", CaseSensitive: true})
	want = []string{"-n", "-E", "-e", "pay"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildArgs(grep) = %v, want %v", got, want)
	}
}

func TestApplyRealMatcher(t *testing.T) {
	if _, err := exec.LookPath("rg"); err != nil {
		if _, err := exec.LookPath("grep"); err != nil {
			t.Skip("no rg or grep on PATH")
		}
	}
	f := New()

	res := f.Apply(context.Background(), testEntries(), Options{Pattern: "payment"})
	if res.Degraded {
		t.Fatalf("Degraded = true: %s", res.Reason)
	}
	if want := []int{1}; !reflect.DeepEqual(res.Indices, want) {
		t.Errorf("Indices = %v, want %v", res.Indices, want)
	}

	res = f.Apply(context.Background(), testEntries(), Options{Pattern: "payment", CaseSensitive: true})
	if len(res.Indices) != 0 {
		t.Errorf("case-sensitive Indices = %v, want none", res.Indices)
	}

	res = f.Apply(context.Background(), testEntries(), Options{Pattern: "kind:(interactive|content)"})
	if want := []int{0, 2}; !reflect.DeepEqual(res.Indices, want) {
		t.Errorf("alternation Indices = %v, want %v", res.Indices, want)
	}
}
