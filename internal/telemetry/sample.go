package telemetry

import (
	"fmt"
	"math"
	"strings"
)

// Channel identifies one scalar quantity inside a Sample.
// The numeric value is the field position on the wire and in the table.
type Channel int

const (
	AccX Channel = iota
	AccY
	AccZ
	GyroX
	GyroY
	GyroZ
	MagX
	MagY
	MagZ
	PWM1
	PWM2
	PWM3
	PWM4
	Latitude
	Longitude
)

const (
	// FieldCount is the arity of a record.
	FieldCount = 15

	// WindowedCount is the number of channels kept in the live windows.
	// Position channels only go to the durable table.
	WindowedCount = 13
)

var channelNames = [FieldCount]string{
	"AccX", "AccY", "AccZ",
	"GyroX", "GyroY", "GyroZ",
	"MagX", "MagY", "MagZ",
	"PWM1", "PWM2", "PWM3", "PWM4",
	"Latitude", "Longitude",
}

var channelUnits = [FieldCount]string{
	"g", "g", "g",
	"deg/s", "deg/s", "deg/s",
	"uT", "uT", "uT",
	"%", "%", "%", "%",
	"deg", "deg",
}

// String returns the channel name as used in the table header.
func (c Channel) String() string {
	if c.Valid() {
		return channelNames[c]
	}
	return fmt.Sprintf("Channel(%d)", int(c))
}

// Unit returns the display unit for the channel.
func (c Channel) Unit() string {
	if c.Valid() {
		return channelUnits[c]
	}
	return ""
}

// Valid reports whether c is one of the 15 known channels.
func (c Channel) Valid() bool {
	return c >= 0 && c < FieldCount
}

// Windowed reports whether c is kept in the live windows.
func (c Channel) Windowed() bool {
	return c >= 0 && c < WindowedCount
}

// ParseChannel resolves a channel by name, case-insensitively.
func ParseChannel(name string) (Channel, error) {
	for i, n := range channelNames {
		if strings.EqualFold(n, name) {
			return Channel(i), nil
		}
	}
	return -1, fmt.Errorf("unknown channel %q", name)
}

// Channels returns all 15 channels in wire order.
func Channels() []Channel {
	out := make([]Channel, FieldCount)
	for i := range out {
		out[i] = Channel(i)
	}
	return out
}

// WindowedChannels returns the 13 channels kept in the live windows.
func WindowedChannels() []Channel {
	out := make([]Channel, WindowedCount)
	for i := range out {
		out[i] = Channel(i)
	}
	return out
}

// Header returns the table header row.
func Header() []string {
	out := make([]string, FieldCount)
	copy(out, channelNames[:])
	return out
}

// Sample is one complete telemetry record.
// Fields are stored in wire order; use Get or the named accessors.
type Sample struct {
	Fields [FieldCount]float64
}

// Get returns the value of one channel.
func (s Sample) Get(c Channel) float64 {
	return s.Fields[c]
}

// Set stores the value of one channel.
func (s *Sample) Set(c Channel, v float64) {
	s.Fields[c] = v
}

// Acceleration returns the three acceleration axes in g.
func (s Sample) Acceleration() (x, y, z float64) {
	return s.Fields[AccX], s.Fields[AccY], s.Fields[AccZ]
}

// AngularRate returns the three gyro axes in deg/s.
func (s Sample) AngularRate() (x, y, z float64) {
	return s.Fields[GyroX], s.Fields[GyroY], s.Fields[GyroZ]
}

// MagneticField returns the three magnetometer axes in uT.
func (s Sample) MagneticField() (x, y, z float64) {
	return s.Fields[MagX], s.Fields[MagY], s.Fields[MagZ]
}

// DutyCycles returns the four actuator duty cycles in percent.
func (s Sample) DutyCycles() [4]float64 {
	return [4]float64{s.Fields[PWM1], s.Fields[PWM2], s.Fields[PWM3], s.Fields[PWM4]}
}

// Position returns latitude and longitude as received.
func (s Sample) Position() (lat, lon float64) {
	return s.Fields[Latitude], s.Fields[Longitude]
}

// Finite reports whether every field is a finite number.
func (s Sample) Finite() bool {
	for _, v := range s.Fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// FromSlice builds a Sample from exactly FieldCount values.
func FromSlice(values []float64) (Sample, error) {
	var s Sample
	if len(values) != FieldCount {
		return s, fmt.Errorf("expected %d values, got %d", FieldCount, len(values))
	}
	copy(s.Fields[:], values)
	return s, nil
}
