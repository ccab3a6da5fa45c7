// Package geo converts receiver coordinates to decimal degrees.
package geo

import (
	"fmt"
	"math"
)

// Point is a position in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Valid reports whether p lies within latitude and longitude bounds.
func (p Point) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsNaN(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 &&
		p.Lon >= -180 && p.Lon <= 180
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lon)
}

// FromNMEA converts a GPS ddmm.mmmm value (dddmm.mmmm for longitude) to
// decimal degrees. The sign of v is preserved.
func FromNMEA(v float64) float64 {
	sign := 1.0
	if v < 0 {
		sign, v = -1, -v
	}
	deg := math.Trunc(v / 100)
	minutes := v - deg*100
	return sign * (deg + minutes/60)
}

// PointFromNMEA converts a ddmm.mmmm latitude/longitude pair.
func PointFromNMEA(lat, lon float64) Point {
	return Point{Lat: FromNMEA(lat), Lon: FromNMEA(lon)}
}
