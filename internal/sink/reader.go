package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/xtxerr/groundlink/internal/errors"
	"github.com/xtxerr/groundlink/internal/telemetry"
)

// RowError reports a table line that does not hold a sample, such as the
// partial row left by a crash.
type RowError struct {
	Line int // 1-based file line
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Scan reads the table at path row by row and calls fn for each sample.
// Row numbers count delivered samples from 1. Lines that do not hold a
// sample are skipped and passed to onError, which may be nil. Scanning
// stops at the first error returned by fn.
func Scan(path string, fn func(row int, s telemetry.Sample) error, onError func(*RowError)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return ScanReader(f, fn, onError)
}

// ScanReader is Scan over an arbitrary reader.
func ScanReader(r io.Reader, fn func(row int, s telemetry.Sample) error, onError func(*RowError)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil
	}
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

	skip := func(line int, err error) {
		if onError != nil {
			onError(&RowError{Line: line, Err: err})
		}
	}

	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skip(perr.Line, err)
				continue
			}
			return fmt.Errorf("after row %d: %w", row, err)
		}

		line, _ := cr.FieldPos(0)
		if len(rec) != telemetry.FieldCount {
			skip(line, fmt.Errorf("%d fields: %w", len(rec), errors.ErrFieldCount))
			continue
		}

		var s telemetry.Sample
		valid := true
		for i, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				skip(line, fmt.Errorf("column %s: %w", telemetry.Channel(i), errors.ErrNotNumeric))
				valid = false
				break
			}
			s.Fields[i] = v
		}
		if !valid {
			continue
		}

		row++
		if err := fn(row, s); err != nil {
			return err
		}
	}
}

// ReadAll returns every sample in the table at path, in row order.
// A missing table reads as empty. Lines that do not hold a sample are
// skipped.
func ReadAll(path string) ([]telemetry.Sample, error) {
	var out []telemetry.Sample
	err := Scan(path, func(_ int, s telemetry.Sample) error {
		out = append(out, s)
		return nil
	}, nil)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return out, err
}
