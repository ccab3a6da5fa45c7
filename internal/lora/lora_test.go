package lora

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/xtxerr/groundlink/internal/errors"
)

func encode(rssi, snr, payload string) string {
	return rssi + snr + hex.EncodeToString([]byte(payload))
}

func TestDecodeLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		rssi    int32
		snr     float64
		payload string
	}{
		{"minus one", encode("FFFFFFFF", "00000064", "1,6.263432,-75.561852"), -1, 10.0, "1,6.263432,-75.561852"},
		{"typical", encode("FFFFFF9C", "0000005A", "0,6.2,-75.5"), -100, 9.0, "0,6.2,-75.5"},
		{"negative snr", encode("FFFFFF88", "FFFFFFEC", "x"), -120, -2.0, "x"},
		{"positive rssi", encode("00000010", "00000000", ""), 16, 0, ""},
		{"lower case", strings.ToLower(encode("FFFFFFFF", "00000064", "ok")), -1, 10.0, "ok"},
		{"trailing newline", encode("FFFFFFFE", "00000001", "a") + "\r\n", -2, 0.1, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeLine(tt.line)
			if err != nil {
				t.Fatalf("DecodeLine: %v", err)
			}
			if p.RSSI != tt.rssi {
				t.Errorf("RSSI = %d, want %d", p.RSSI, tt.rssi)
			}
			if p.SNR != tt.snr {
				t.Errorf("SNR = %v, want %v", p.SNR, tt.snr)
			}
			if p.Payload != tt.payload {
				t.Errorf("Payload = %q, want %q", p.Payload, tt.payload)
			}
		})
	}
}

func TestDecodeLine_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"short", "FFFFFFFF0000"},
		{"odd length", "FFFFFFFF000000641"},
		{"not hex", "FFFFFFFF0000006Z"},
		{"bad utf8", "FFFFFFFF00000064FF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLine(tt.line)
			if !errors.Is(err, errors.ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestParseBeacon(t *testing.T) {
	b, err := ParseBeacon(" 1, 6.263432 ,-75.561852\n")
	if err != nil {
		t.Fatalf("ParseBeacon: %v", err)
	}
	if b.Button != 1 || b.Position.Lat != 6.263432 || b.Position.Lon != -75.561852 {
		t.Errorf("unexpected beacon %+v", b)
	}

	for _, bad := range []string{"", "1,2", "1,2,3,4", "x,6.2,-75.5", "1,lat,-75.5"} {
		if _, err := ParseBeacon(bad); !errors.Is(err, errors.ErrDecode) {
			t.Errorf("ParseBeacon(%q): expected ErrDecode, got %v", bad, err)
		}
	}
}

func TestScan(t *testing.T) {
	input := strings.Join([]string{
		encode("FFFFFFFF", "00000064", "1,6.1,-75.1"),
		"",
		"nothex",
		encode("FFFFFF9C", "0000005A", "0,6.2,-75.2"),
	}, "\n")

	var lines []int
	var bad []error
	err := Scan(strings.NewReader(input), func(line int, p Packet) error {
		lines = append(lines, line)
		return nil
	}, func(err error) error {
		bad = append(bad, err)
		return nil
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(lines) != 2 || lines[0] != 1 || lines[1] != 4 {
		t.Errorf("decoded lines = %v, want [1 4]", lines)
	}
	if len(bad) != 1 {
		t.Fatalf("expected 1 bad line, got %d", len(bad))
	}
	var lerr *LineError
	if !errors.As(bad[0], &lerr) || lerr.Line != 3 {
		t.Errorf("unexpected line error %v", bad[0])
	}
}

func TestScan_StopOnError(t *testing.T) {
	err := Scan(strings.NewReader("zz\n"), func(int, Packet) error { return nil }, nil)
	var lerr *LineError
	if !errors.As(err, &lerr) || lerr.Line != 1 {
		t.Fatalf("expected *LineError on line 1, got %v", err)
	}
	if !errors.Is(err, errors.ErrDecode) {
		t.Error("expected ErrDecode in chain")
	}
}
