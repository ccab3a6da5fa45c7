package geo

import (
	"math"
	"testing"
)

func TestFromNMEA(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{615.8059, 6.263432},
		{-7533.7111, -75.561852},
		{4530.0, 45.5},
		{12000.0, 120},
		{-30.0, -0.5},
	}

	for _, tt := range tests {
		got := FromNMEA(tt.in)
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("FromNMEA(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPoint_Valid(t *testing.T) {
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{6.26, -75.56}, true},
		{Point{90, 180}, true},
		{Point{90.1, 0}, false},
		{Point{0, -180.5}, false},
		{Point{math.NaN(), 0}, false},
	}
	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("%v.Valid() = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestPointFromNMEA(t *testing.T) {
	p := PointFromNMEA(615.8059, -7533.7111)
	if !p.Valid() {
		t.Fatalf("expected valid point, got %v", p)
	}
	if p.String() != "6.263432,-75.561852" {
		t.Errorf("unexpected String() %q", p.String())
	}
}
