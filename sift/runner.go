package sift

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
)

// resolveBinary locates the matcher. A pinned binary is honored when it
// resolves; otherwise rg is preferred over grep for speed and saner defaults.
func (f *Filter) resolveBinary() {
	if f.bin != "" {
		return
	}
	if f.prefer != "" {
		if path, err := exec.LookPath(f.prefer); err == nil {
			f.bin = path
			f.tool = toolName(path)
			return
		}
		f.log.Warn("pinned filter binary not found, probing PATH", "binary", f.prefer)
	}
	for _, cand := range []string{"rg", "grep"} {
		if path, err := exec.LookPath(cand); err == nil {
			f.bin = path
			f.tool = cand
			return
		}
	}
}

func toolName(path string) string {
	base := filepath.Base(path)
	if strings.Contains(base, "grep") {
		return "grep"
	}
	return base
}

// execRun is the production runFunc: it feeds the corpus to the matcher on
// stdin and reports the exit code without treating "no match" as failure.
func execRun(ctx context.Context, bin string, args []string, stdin string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = strings.NewReader(stdin)
	out, err := cmd.Output()
	if err == nil {
		return string(out), "", 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return string(out), string(exitErr.Stderr), exitErr.ExitCode(), nil
	}
	return "", "", -1, err
}
