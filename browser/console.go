package browser

import (
	"sync"
	"time"
)

// DefaultConsoleCap bounds retained console entries per session.
const DefaultConsoleCap = 500

// ConsoleEntry is one captured console message or uncaught exception.
type ConsoleEntry struct {
	Level string    `json:"level"`
	Text  string    `json:"text"`
	URL   string    `json:"url,omitempty"`
	Line  int       `json:"line,omitempty"`
	At    time.Time `json:"at"`
}

// ConsoleLog is a bounded ring of console entries. Writers come from the CDP
// event pump; readers are tool calls.
type ConsoleLog struct {
	mu      sync.Mutex
	entries []ConsoleEntry
	start   int
	count   int
	dropped int
}

// NewConsoleLog returns a log retaining at most capEntries records.
// Non-positive caps fall back to the default.
func NewConsoleLog(capEntries int) *ConsoleLog {
	if capEntries <= 0 {
		capEntries = DefaultConsoleCap
	}
	return &ConsoleLog{entries: make([]ConsoleEntry, capEntries)}
}

// Add appends an entry, evicting the oldest once full.
func (c *ConsoleLog) Add(e ConsoleEntry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.count < len(c.entries) {
		c.entries[(c.start+c.count)%len(c.entries)] = e
		c.count++
		return
	}
	c.entries[c.start] = e
	c.start = (c.start + 1) % len(c.entries)
	c.dropped++
}

// Recent returns up to n entries, oldest first. n <= 0 returns everything
// retained.
func (c *ConsoleLog) Recent(n int) []ConsoleEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n <= 0 || n > c.count {
		n = c.count
	}
	out := make([]ConsoleEntry, 0, n)
	for i := c.count - n; i < c.count; i++ {
		out = append(out, c.entries[(c.start+i)%len(c.entries)])
	}
	return out
}

// Dropped reports how many entries were evicted since creation.
func (c *ConsoleLog) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Clear empties the log.
func (c *ConsoleLog) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start, c.count, c.dropped = 0, 0, 0
}
