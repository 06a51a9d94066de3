// Package journal persists raw framed records as JSONL so a run can be
// replayed offline through the same parser and reducer that consumed it
// live.
package journal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rlmtrace/internal/events"
	"rlmtrace/internal/jsonx"
	"rlmtrace/internal/logging"
)

// Entry is one journaled record with its arrival time.
type Entry struct {
	TS    time.Time `json:"ts"`
	Event string    `json:"event,omitempty"`
	Data  string    `json:"data"`
}

// Writer appends records to a JSONL file. Safe for use from one consumer
// goroutine plus Close from another.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	logger logging.Logger
	now    func() time.Time
}

// NewWriter opens (or creates) the journal file for appending.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Writer{
		file:   file,
		logger: logging.NewComponentLogger("Journal"),
		now:    time.Now,
	}, nil
}

// Append writes one record. Failures are logged, not surfaced: journaling
// must never take down the live trace.
func (w *Writer) Append(rec events.Record) {
	if w == nil {
		return
	}
	entry := Entry{TS: w.now(), Event: rec.Event, Data: rec.Data}
	line, err := jsonx.Marshal(entry)
	if err != nil {
		w.logger.Warn("Failed to encode journal entry: %v", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return
	}
	if _, err := w.file.Write(append(line, '\n')); err != nil {
		w.logger.Warn("Failed to append journal entry: %v", err)
	}
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// Replay streams journaled records back in order. Lines that do not decode
// are skipped, mirroring the live parser's tolerance for malformed input.
func Replay(r io.Reader, fn func(events.Record)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 512*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := jsonx.Unmarshal(line, &entry); err != nil {
			continue
		}
		fn(events.Record{Event: entry.Event, Data: entry.Data})
	}
	return scanner.Err()
}

// ReplayFile replays a journal from disk.
func ReplayFile(path string, fn func(events.Record)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() { _ = file.Close() }()
	return Replay(file, fn)
}
