// Package sink is the durable, append-only record of every sample.
//
// The table is a CSV file: one header row naming the 15 channels, then one
// row per sample in arrival order. A Table holds the file open for the
// lifetime of a session and appends one row per sample; the cost of an
// append does not depend on how many rows the file already holds. An
// existing table is never truncated or rewritten.
package sink

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/xtxerr/groundlink/config"
	"github.com/xtxerr/groundlink/internal/errors"
	"github.com/xtxerr/groundlink/internal/telemetry"
)

// SyncMode controls how far an append is pushed before it returns.
type SyncMode string

const (
	// SyncFlush flushes the userspace buffer to the OS after each row.
	SyncFlush SyncMode = "flush"

	// SyncFsync additionally fsyncs the file after each row.
	SyncFsync SyncMode = "fsync"
)

// ParseSyncMode parses a sync mode name. An empty string selects flush.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(s) {
	case SyncFlush, "":
		return SyncFlush, nil
	case SyncFsync:
		return SyncFsync, nil
	default:
		return SyncFlush, errors.NewValidation("sync_mode", fmt.Sprintf("unknown sync mode %q", s))
	}
}

// Options configures a Table.
type Options struct {
	// SyncMode controls per-row durability.
	// Default: flush
	SyncMode SyncMode

	// BufferSize is the size of the write buffer.
	// Default: 4KB
	BufferSize int
}

// DefaultOptions returns default table options.
func DefaultOptions() Options {
	return Options{
		SyncMode:   config.DefaultTableSyncMode,
		BufferSize: 4 * 1024,
	}
}

// PersistenceError reports a failed durable write.
// It wraps ErrPersistence.
type PersistenceError struct {
	Path string
	Op   string
	Row  int64 // 1-based row in this handle, 0 when not row related
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("table %s: %s row %d: %v", e.Path, e.Op, e.Row, e.Err)
	}
	return fmt.Sprintf("table %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{e.Err, errors.ErrPersistence}
}

// Table is an open, append-only CSV table.
// It is safe for concurrent use, although ingestion uses a single writer.
type Table struct {
	mu sync.Mutex

	path   string
	file   *os.File
	buf    *bufio.Writer
	csv    *csv.Writer
	opts   Options
	closed bool
	failed error

	// Statistics
	stats Stats

	record []string
}

// Stats holds table statistics for one open handle.
type Stats struct {
	RowsAppended int64
	Flushes      int64
	Fsyncs       int64
	Errors       int64
}

// Open opens the table at path for appending, creating it with a header
// row when it does not exist or is empty. An existing table whose header
// does not match the channel layout is rejected with ErrHeaderMismatch.
func Open(path string, opts Options) (*Table, error) {
	if opts.SyncMode == "" {
		opts.SyncMode = DefaultOptions().SyncMode
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultOptions().BufferSize
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &PersistenceError{Path: path, Op: "create dir", Err: err}
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, &PersistenceError{Path: path, Op: "open", Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &PersistenceError{Path: path, Op: "stat", Err: err}
	}

	t := &Table{
		path:   path,
		file:   f,
		opts:   opts,
		record: make([]string, telemetry.FieldCount),
	}
	t.buf = bufio.NewWriterSize(f, opts.BufferSize)
	t.csv = csv.NewWriter(t.buf)

	if info.Size() == 0 {
		if err := t.csv.Write(telemetry.Header()); err != nil {
			f.Close()
			return nil, &PersistenceError{Path: path, Op: "write header", Err: err}
		}
		if err := t.syncUnlocked(); err != nil {
			f.Close()
			return nil, &PersistenceError{Path: path, Op: "write header", Err: err}
		}
		return t, nil
	}

	if err := checkHeader(f); err != nil {
		f.Close()
		return nil, &PersistenceError{Path: path, Op: "check header", Err: err}
	}
	if err := ensureTrailingNewline(f, info.Size()); err != nil {
		f.Close()
		return nil, &PersistenceError{Path: path, Op: "repair tail", Err: err}
	}

	return t, nil
}

// checkHeader verifies the first row of an existing table.
func checkHeader(f *os.File) error {
	r := csv.NewReader(io.NewSectionReader(f, 0, 1<<16))
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	want := telemetry.Header()
	if len(header) != len(want) {
		return fmt.Errorf("%d columns, want %d: %w", len(header), len(want), errors.ErrHeaderMismatch)
	}
	for i := range want {
		if header[i] != want[i] {
			return fmt.Errorf("column %d is %q, want %q: %w", i, header[i], want[i], errors.ErrHeaderMismatch)
		}
	}
	return nil
}

// ensureTrailingNewline terminates a last row cut short by a crash so the
// next append starts on its own line.
func ensureTrailingNewline(f *os.File, size int64) error {
	var last [1]byte
	if _, err := f.ReadAt(last[:], size-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err := f.Write([]byte{'\n'})
	return err
}

// Append writes one row and makes it durable according to the sync mode.
// After a failed append the table refuses further writes; reopen it.
func (t *Table) Append(s telemetry.Sample) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	row := t.stats.RowsAppended + 1

	if t.closed {
		return &PersistenceError{Path: t.path, Op: "append", Row: row, Err: errors.ErrSinkClosed}
	}
	if t.failed != nil {
		return &PersistenceError{Path: t.path, Op: "append", Row: row, Err: t.failed}
	}

	for i, v := range s.Fields {
		t.record[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}

	if err := t.csv.Write(t.record); err != nil {
		return t.fail("append", row, err)
	}
	if err := t.syncUnlocked(); err != nil {
		return t.fail("append", row, err)
	}

	t.stats.RowsAppended++
	return nil
}

func (t *Table) fail(op string, row int64, err error) error {
	t.stats.Errors++
	t.failed = err
	return &PersistenceError{Path: t.path, Op: op, Row: row, Err: err}
}

func (t *Table) syncUnlocked() error {
	t.csv.Flush()
	if err := t.csv.Error(); err != nil {
		return err
	}
	if err := t.buf.Flush(); err != nil {
		return err
	}
	t.stats.Flushes++

	if t.opts.SyncMode == SyncFsync {
		if err := t.file.Sync(); err != nil {
			return err
		}
		t.stats.Fsyncs++
	}
	return nil
}

// Close flushes and closes the table. It is idempotent.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var flushErr error
	if t.failed == nil {
		flushErr = t.syncUnlocked()
	}
	closeErr := t.file.Close()

	if flushErr != nil {
		return &PersistenceError{Path: t.path, Op: "close", Err: flushErr}
	}
	if closeErr != nil {
		return &PersistenceError{Path: t.path, Op: "close", Err: closeErr}
	}
	return nil
}

// Path returns the table path.
func (t *Table) Path() string {
	return t.path
}

// Stats returns statistics for this handle.
func (t *Table) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
