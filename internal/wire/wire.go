// Package wire provides record framing for the telemetry stream.
//
// The vehicle writes plain-text records over TCP. TCP preserves no message
// boundaries, so a read may return part of a record or several records at
// once. Two explicit framings are supported:
//
//   - FramingLine: each record ends with '\n' ("\r\n" tolerated). A final
//     unterminated record at end of stream is still delivered.
//   - FramingVarint: each record is prefixed by its length as a protobuf
//     unsigned varint.
//
// Records longer than the configured maximum are skipped and reported as
// ErrRecordTooLarge; the reader stays aligned on the next record.
package wire

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/xtxerr/groundlink/config"
	"github.com/xtxerr/groundlink/internal/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Framing selects how records are delimited on the wire.
type Framing int

const (
	FramingLine Framing = iota
	FramingVarint
)

// String returns the config name of the framing.
func (f Framing) String() string {
	switch f {
	case FramingLine:
		return "line"
	case FramingVarint:
		return "varint"
	default:
		return fmt.Sprintf("Framing(%d)", int(f))
	}
}

// ParseFraming parses a framing name. An empty string selects line framing.
func ParseFraming(s string) (Framing, error) {
	switch s {
	case "line", "":
		return FramingLine, nil
	case "varint":
		return FramingVarint, nil
	default:
		return FramingLine, errors.NewValidation("framing", fmt.Sprintf("unknown framing %q", s))
	}
}

// maxVarintLen is the longest varint accepted as a length prefix.
const maxVarintLen = 10

// Reader reads framed records from an io.Reader.
// It is safe for concurrent use, though records are only meaningful to a
// single consumer.
type Reader struct {
	mu      sync.Mutex
	r       *bufio.Reader
	framing Framing
	maxSize int
	buf     []byte
}

// NewReader creates a Reader. maxSize <= 0 selects DefaultMaxRecordSize.
func NewReader(r io.Reader, framing Framing, maxSize int) *Reader {
	if maxSize <= 0 {
		maxSize = config.DefaultMaxRecordSize
	}
	// The buffer must hold a full record plus its terminator.
	size := maxSize + 2
	if size < 4096 {
		size = 4096
	}
	return &Reader{
		r:       bufio.NewReaderSize(r, size),
		framing: framing,
		maxSize: maxSize,
	}
}

// Read returns the next record without its framing.
//
// The returned slice is only valid until the next call to Read.
// At end of stream Read returns io.EOF. A record over the size limit is
// consumed and reported as ErrRecordTooLarge; the caller may keep reading.
// Any other error is the underlying read error and ends the stream.
func (r *Reader) Read() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.framing {
	case FramingVarint:
		return r.readVarint()
	default:
		return r.readLine()
	}
}

func (r *Reader) readLine() ([]byte, error) {
	for {
		line, err := r.r.ReadSlice('\n')
		switch {
		case err == nil:
			record := trimEOL(line)
			if len(record) > r.maxSize {
				return nil, fmt.Errorf("%d bytes: %w", len(record), errors.ErrRecordTooLarge)
			}
			if len(bytes.TrimSpace(record)) == 0 {
				continue // keep-alive or blank line
			}
			return record, nil

		case err == bufio.ErrBufferFull:
			n, derr := r.discardLine()
			if derr != nil && derr != io.EOF {
				return nil, derr
			}
			return nil, fmt.Errorf("%d+ bytes: %w", len(line)+n, errors.ErrRecordTooLarge)

		case err == io.EOF:
			record := trimEOL(line)
			if len(bytes.TrimSpace(record)) == 0 {
				return nil, io.EOF
			}
			if len(record) > r.maxSize {
				return nil, fmt.Errorf("%d bytes: %w", len(record), errors.ErrRecordTooLarge)
			}
			// The slice is owned by bufio and stays valid until the next read.
			return record, nil

		default:
			return nil, err
		}
	}
}

// discardLine drops input up to and including the next newline.
func (r *Reader) discardLine() (int, error) {
	total := 0
	for {
		chunk, err := r.r.ReadSlice('\n')
		total += len(chunk)
		if err == bufio.ErrBufferFull {
			continue
		}
		return total, err
	}
}

func (r *Reader) readVarint() ([]byte, error) {
	var prefix [maxVarintLen]byte
	n := 0
	for {
		b, err := r.r.ReadByte()
		if err != nil {
			if err == io.EOF && n > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		prefix[n] = b
		n++
		if b < 0x80 {
			break
		}
		if n == maxVarintLen {
			return nil, fmt.Errorf("length prefix: %w", errors.ErrConnection)
		}
	}

	length, m := protowire.ConsumeVarint(prefix[:n])
	if m < 0 {
		return nil, fmt.Errorf("length prefix: %w: %v", errors.ErrConnection, protowire.ParseError(m))
	}

	if length > math.MaxInt64 {
		return nil, fmt.Errorf("length prefix %d: %w", length, errors.ErrConnection)
	}
	if length > uint64(r.maxSize) {
		if _, err := io.CopyN(io.Discard, r.r, int64(length)); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		return nil, fmt.Errorf("%d bytes: %w", length, errors.ErrRecordTooLarge)
	}

	if cap(r.buf) < int(length) {
		r.buf = make([]byte, length)
	}
	r.buf = r.buf[:length]
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return r.buf, nil
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}

// Writer writes framed records to an io.Writer.
// It is safe for concurrent use.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	framing Framing
	buf     []byte
}

// NewWriter creates a Writer with the given framing.
func NewWriter(w io.Writer, framing Framing) *Writer {
	return &Writer{w: w, framing: framing}
}

// Write frames and writes one record in a single Write call.
// Line-framed records must not contain '\n'.
func (w *Writer) Write(record []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = w.buf[:0]
	switch w.framing {
	case FramingVarint:
		w.buf = protowire.AppendVarint(w.buf, uint64(len(record)))
		w.buf = append(w.buf, record...)
	default:
		if bytes.IndexByte(record, '\n') >= 0 {
			return fmt.Errorf("write record: embedded newline")
		}
		w.buf = append(w.buf, record...)
		w.buf = append(w.buf, '\n')
	}

	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}
