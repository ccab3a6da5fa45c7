package record

import (
	"strings"
	"testing"

	"github.com/xtxerr/groundlink/internal/errors"
	"github.com/xtxerr/groundlink/internal/telemetry"
)

func TestParse_Reference(t *testing.T) {
	raw := "1.0,2.0,3.0,4.0,5.0,6.0,7.0,8.0,9.0,10.0,11.0,12.0,13.0,6.27,-75.57"

	s, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := [telemetry.FieldCount]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 6.27, -75.57}
	if s.Fields != want {
		t.Errorf("got %v, want %v", s.Fields, want)
	}
}

func TestParse_Framing(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"trailing newline", "1,2,3,4,5,6,7,8,9,10,11,12,13,14,15\n"},
		{"crlf", "1,2,3,4,5,6,7,8,9,10,11,12,13,14,15\r\n"},
		{"spaces", "  1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15  "},
		{"legacy wrapper", "b'1,2,3,4,5,6,7,8,9,10,11,12,13,14,15'"},
		{"legacy wrapper escaped newline", `b'1,2,3,4,5,6,7,8,9,10,11,12,13,14,15\r\n'`},
		{"exponent", "1e0,2,3,4,5,6,7,8,9,10,11,12,13,14,1.5e1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.raw, err)
			}
			if s.Get(telemetry.AccX) != 1 || s.Get(telemetry.Longitude) != 15 {
				t.Errorf("unexpected fields %v", s.Fields)
			}
		})
	}
}

func TestParse_FieldCount(t *testing.T) {
	for _, n := range []int{0, 1, 14, 16} {
		parts := make([]string, n)
		for i := range parts {
			parts[i] = "1.5"
		}
		raw := strings.Join(parts, ",")

		_, err := Parse([]byte(raw))
		if err == nil {
			t.Fatalf("%d fields: expected error", n)
		}
		if !errors.Is(err, errors.ErrFieldCount) {
			t.Errorf("%d fields: expected ErrFieldCount, got %v", n, err)
		}
		if !errors.Is(err, errors.ErrParse) {
			t.Errorf("%d fields: expected ErrParse in chain", n)
		}

		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("expected *ParseError, got %T", err)
		}
		if pe.Field != -1 {
			t.Errorf("expected Field=-1, got %d", pe.Field)
		}
	}
}

func TestParse_NotNumeric(t *testing.T) {
	tests := []struct {
		raw   string
		field int
	}{
		{"1,2,3,4,5,6,x,8,9,10,11,12,13,14,15", 6},
		{"1,2,3,4,5,6,7,8,9,10,11,12,13,14,", 14},
		{"NaN,2,3,4,5,6,7,8,9,10,11,12,13,14,15", 0},
		{"1,2,3,4,5,6,7,8,9,10,11,12,13,Inf,15", 13},
		{"1,2,3,4,5,6,7,8,9,10,11,12,13,1e999,15", 13},
	}

	for _, tt := range tests {
		_, err := Parse([]byte(tt.raw))
		if !errors.Is(err, errors.ErrNotNumeric) {
			t.Errorf("%q: expected ErrNotNumeric, got %v", tt.raw, err)
			continue
		}
		var pe *ParseError
		if errors.As(err, &pe) && pe.Field != tt.field {
			t.Errorf("%q: expected field %d, got %d", tt.raw, tt.field, pe.Field)
		}
	}
}

func TestParse_TruncatesRaw(t *testing.T) {
	raw := strings.Repeat("9", 1000)
	_, err := Parse([]byte(raw))

	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if len(pe.Raw) > maxRawInError+3 {
		t.Errorf("raw not truncated: %d bytes", len(pe.Raw))
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	var s telemetry.Sample
	for i := range s.Fields {
		s.Fields[i] = float64(i)*1.25 - 3
	}
	s.Set(telemetry.Latitude, 6.263432)
	s.Set(telemetry.Longitude, -75.561852)

	got, err := Parse(Format(s))
	if err != nil {
		t.Fatalf("Parse(Format): %v", err)
	}
	if got != s {
		t.Errorf("round trip mismatch: got %v, want %v", got.Fields, s.Fields)
	}
}
