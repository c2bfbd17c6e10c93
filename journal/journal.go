// Package journal persists a record of every tool invocation to SQLite
// asynchronously. Writes never block the caller: entries are queued on a
// buffered channel and flushed in batches, and are dropped when the buffer
// is full.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/pilote/dbopen"
)

// Schema for the tool_calls table. Call Store.Init() or apply manually.
const Schema = `
CREATE TABLE IF NOT EXISTS tool_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session TEXT,
	tool TEXT NOT NULL,
	outcome TEXT NOT NULL,
	detail TEXT,
	duration_us INTEGER NOT NULL,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_calls_ts ON tool_calls(timestamp);
CREATE INDEX IF NOT EXISTS idx_tool_calls_session ON tool_calls(session) WHERE session != '';
`

// Entry is a single tool-call record.
type Entry struct {
	Session    string `json:"session,omitempty"`
	Tool       string `json:"tool"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
	DurationUs int64  `json:"duration_us"`
	Timestamp  int64  `json:"timestamp"` // unix microseconds
}

// Time returns the entry timestamp as a time.Time.
func (e *Entry) Time() time.Time { return time.UnixMicro(e.Timestamp) }

// Store persists tool-call entries to a SQLite table asynchronously.
type Store struct {
	db   *sql.DB
	ch   chan *Entry
	done chan struct{}
	once sync.Once
}

// NewStore creates a journal store backed by the given database connection.
func NewStore(db *sql.DB) *Store {
	s := &Store{
		db:   db,
		ch:   make(chan *Entry, 1024),
		done: make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// Init creates the tool_calls table if it doesn't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// RecordAsync queues an entry for async persistence. Non-blocking; drops if
// the buffer is full. A zero Timestamp is stamped with the current time.
func (s *Store) RecordAsync(e *Entry) {
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMicro()
	}
	select {
	case s.ch <- e:
	default:
		// buffer full — drop silently to avoid backpressure on tool calls
	}
}

// Close drains the buffer and stops the flush goroutine. The database
// connection stays open; it belongs to the caller.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	return nil
}

// Recent returns the most recent entries, newest first. If session is
// non-empty only that session's entries are returned. n <= 0 defaults to 50.
func (s *Store) Recent(ctx context.Context, session string, n int) ([]Entry, error) {
	if n <= 0 {
		n = 50
	}

	q := `SELECT session, tool, outcome, detail, duration_us, timestamp
		FROM tool_calls`
	args := []any{}
	if session != "" {
		q += ` WHERE session = ?`
		args = append(args, session)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, n)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Session, &e.Tool, &e.Outcome, &e.Detail, &e.DurationUs, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than keep. Returns the number of rows removed.
func (s *Store) Prune(ctx context.Context, keep time.Duration) (int64, error) {
	cutoff := time.Now().Add(-keep).UnixMicro()
	res, err := dbopen.Exec(ctx, s.db, `DELETE FROM tool_calls WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return res.RowsAffected()
}

// RetentionLoop prunes old entries on a fixed interval until ctx is done.
// Run it in a goroutine.
func (s *Store) RetentionLoop(ctx context.Context, interval, keep time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Prune(ctx, keep)
			if err != nil {
				slog.Error("journal: retention prune failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("journal: pruned old entries", "rows", n)
			}
		}
	}
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]*Entry, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 64 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []*Entry) {
	if len(batch) == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("journal: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO tool_calls (session, tool, outcome, detail, duration_us, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("journal: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(e.Session, e.Tool, e.Outcome, e.Detail, e.DurationUs, e.Timestamp); err != nil {
			slog.Error("journal: insert", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("journal: commit", "error", err)
	}
}
