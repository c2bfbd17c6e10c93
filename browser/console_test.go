package browser

import (
	"fmt"
	"testing"
)

func TestConsoleLogRing(t *testing.T) {
	c := NewConsoleLog(3)
	for i := 0; i < 5; i++ {
		c.Add(ConsoleEntry{Level: "log", Text: fmt.Sprintf("m%d", i)})
	}

	got := c.Recent(0)
	if len(got) != 3 {
		t.Fatalf("Recent(0) returned %d entries, want 3", len(got))
	}
	for i, want := range []string{"m2", "m3", "m4"} {
		if got[i].Text != want {
			t.Errorf("entry %d = %q, want %q", i, got[i].Text, want)
		}
	}
	if got := c.Dropped(); got != 2 {
		t.Errorf("Dropped() = %d, want 2", got)
	}
}

func TestConsoleLogRecentN(t *testing.T) {
	c := NewConsoleLog(10)
	for i := 0; i < 4; i++ {
		c.Add(ConsoleEntry{Text: fmt.Sprintf("m%d", i)})
	}

	got := c.Recent(2)
	if len(got) != 2 || got[0].Text != "m2" || got[1].Text != "m3" {
		t.Fatalf("Recent(2) = %v", got)
	}
	if got := c.Recent(100); len(got) != 4 {
		t.Errorf("Recent(100) returned %d entries, want 4", len(got))
	}
}

func TestConsoleLogClear(t *testing.T) {
	c := NewConsoleLog(2)
	c.Add(ConsoleEntry{Text: "a"})
	c.Add(ConsoleEntry{Text: "b"})
	c.Add(ConsoleEntry{Text: "c"})

	c.Clear()
	if got := c.Recent(0); len(got) != 0 {
		t.Errorf("Recent after Clear = %v, want empty", got)
	}
	if got := c.Dropped(); got != 0 {
		t.Errorf("Dropped after Clear = %d, want 0", got)
	}

	c.Add(ConsoleEntry{Text: "d"})
	if got := c.Recent(0); len(got) != 1 || got[0].Text != "d" {
		t.Errorf("Recent after refill = %v", got)
	}
}

func TestConsoleLogStampsTime(t *testing.T) {
	c := NewConsoleLog(2)
	c.Add(ConsoleEntry{Text: "x"})
	if c.Recent(1)[0].At.IsZero() {
		t.Error("At not stamped on Add")
	}
}
