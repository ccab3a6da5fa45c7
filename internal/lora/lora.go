// Package lora decodes the gateway's hex log lines.
//
// Each line is the hex encoding of three fields:
//
//	chars 0-7   RSSI, 32-bit two's complement, dBm
//	chars 8-15  SNR, 32-bit integer in tenths of a dB
//	chars 16-   UTF-8 payload, a "button, latitude, longitude" beacon
//
// The beacon carries only the position channels of a telemetry sample.
package lora

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xtxerr/groundlink/internal/errors"
	"github.com/xtxerr/groundlink/internal/geo"
)

const headerLen = 16

// Packet is one decoded log line.
type Packet struct {
	RSSI    int32   // dBm
	SNR     float64 // dB
	Payload string
}

// DecodeLine decodes one hex log line. Surrounding whitespace is ignored.
func DecodeLine(line string) (Packet, error) {
	line = strings.TrimSpace(line)
	if len(line) < headerLen {
		return Packet{}, fmt.Errorf("%d hex chars, want at least %d: %w", len(line), headerLen, errors.ErrDecode)
	}

	raw, err := hex.DecodeString(line)
	if err != nil {
		return Packet{}, fmt.Errorf("%w: %v", errors.ErrDecode, err)
	}

	payload := raw[headerLen/2:]
	if !utf8.Valid(payload) {
		return Packet{}, fmt.Errorf("payload is not UTF-8: %w", errors.ErrDecode)
	}

	return Packet{
		RSSI:    int32(binary.BigEndian.Uint32(raw[0:4])),
		SNR:     float64(int32(binary.BigEndian.Uint32(raw[4:8]))) / 10,
		Payload: string(payload),
	}, nil
}

// Beacon is the payload of a position packet.
type Beacon struct {
	Button   int
	Position geo.Point
}

// ParseBeacon parses a "button, latitude, longitude" payload.
// Coordinates are taken as decimal degrees.
func ParseBeacon(payload string) (Beacon, error) {
	fields := strings.Split(strings.TrimSpace(payload), ",")
	if len(fields) != 3 {
		return Beacon{}, fmt.Errorf("%d fields, want 3: %w", len(fields), errors.ErrDecode)
	}

	button, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Beacon{}, fmt.Errorf("button %q: %w", fields[0], errors.ErrDecode)
	}

	var coords [2]float64
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Beacon{}, fmt.Errorf("coordinate %q: %w", f, errors.ErrDecode)
		}
		coords[i] = v
	}

	return Beacon{Button: button, Position: geo.Point{Lat: coords[0], Lon: coords[1]}}, nil
}

// LineError reports a line that could not be decoded.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Scan decodes r line by line, calling fn for each packet. Blank lines are
// skipped. A line that fails to decode is passed to onError as a
// *LineError and scanning continues; a nil onError stops at the first bad
// line. Scan returns the first error from fn, onError or the reader.
func Scan(r io.Reader, fn func(line int, p Packet) error, onError func(error) error) error {
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		p, err := DecodeLine(text)
		if err != nil {
			lerr := &LineError{Line: n, Err: err}
			if onError == nil {
				return lerr
			}
			if err := onError(lerr); err != nil {
				return err
			}
			continue
		}

		if err := fn(n, p); err != nil {
			return err
		}
	}
	return sc.Err()
}
