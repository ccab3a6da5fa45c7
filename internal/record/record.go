// Package record converts between raw telemetry records and Samples.
//
// A record is text: 15 decimal fields separated by commas, in the channel
// order defined by the telemetry package. Framing (where one record ends and
// the next begins) is the wire package's job; Parse receives exactly one
// record.
package record

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/xtxerr/groundlink/internal/errors"
	"github.com/xtxerr/groundlink/internal/telemetry"
)

// Separator is the field separator.
const Separator = ','

// maxRawInError bounds how much of a bad record is kept in a ParseError.
const maxRawInError = 256

// ParseError describes a record that could not be converted.
// It wraps ErrFieldCount or ErrNotNumeric, both of which are ErrParse.
type ParseError struct {
	Raw   string // the record, possibly truncated
	Field int    // zero-based field index, -1 for arity errors
	Count int    // number of fields seen
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field < 0 {
		return fmt.Sprintf("parse record: %d fields, want %d: %v", e.Count, telemetry.FieldCount, e.Err)
	}
	return fmt.Sprintf("parse record: field %d (%s): %v", e.Field, telemetry.Channel(e.Field), e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{e.Err, errors.ErrParse}
}

// Parse converts one record into a Sample.
// Surrounding whitespace, a trailing CR/LF and a legacy b'...' wrapper are
// stripped first. Parse never panics on malformed input.
func Parse(raw []byte) (telemetry.Sample, error) {
	var s telemetry.Sample

	body := Strip(raw)
	if bytes.Count(body, []byte{Separator})+1 != telemetry.FieldCount {
		return s, &ParseError{
			Raw:   truncate(raw),
			Field: -1,
			Count: bytes.Count(body, []byte{Separator}) + 1,
			Err:   errors.ErrFieldCount,
		}
	}

	for i := 0; i < telemetry.FieldCount; i++ {
		var token []byte
		if idx := bytes.IndexByte(body, Separator); idx >= 0 {
			token, body = body[:idx], body[idx+1:]
		} else {
			token, body = body, nil
		}

		v, err := strconv.ParseFloat(string(bytes.TrimSpace(token)), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return telemetry.Sample{}, &ParseError{
				Raw:   truncate(raw),
				Field: i,
				Count: telemetry.FieldCount,
				Err:   fmt.Errorf("%w: %q", errors.ErrNotNumeric, token),
			}
		}
		s.Fields[i] = v
	}

	return s, nil
}

// Strip removes transport framing around a record.
func Strip(raw []byte) []byte {
	body := bytes.TrimSpace(raw)
	if len(body) >= 3 && body[0] == 'b' && body[1] == '\'' && body[len(body)-1] == '\'' {
		body = body[2 : len(body)-1]
		body = bytes.TrimSuffix(body, []byte(`\n`))
		body = bytes.TrimSuffix(body, []byte(`\r`))
		body = bytes.TrimSpace(body)
	}
	return body
}

// Format renders a Sample as a record without terminator.
// Values use the shortest representation that round-trips.
func Format(s telemetry.Sample) []byte {
	return AppendFormat(make([]byte, 0, 16*telemetry.FieldCount), s)
}

// AppendFormat appends the record form of s to dst.
func AppendFormat(dst []byte, s telemetry.Sample) []byte {
	for i, v := range s.Fields {
		if i > 0 {
			dst = append(dst, Separator)
		}
		dst = strconv.AppendFloat(dst, v, 'f', -1, 64)
	}
	return dst
}

func truncate(raw []byte) string {
	if len(raw) > maxRawInError {
		return string(raw[:maxRawInError]) + "..."
	}
	return string(raw)
}
