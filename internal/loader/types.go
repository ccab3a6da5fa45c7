// Package loader - Configuration Types
//
// Defines the YAML configuration structure for groundlinkd.
//
//	listen:    telemetry endpoint
//	log:       level and format
//	session:   read timeout, framing, record size limit
//	table:     durable CSV table
//	monitor:   live and retrospective refresh cadence
//	archive:   Parquet export
//	shutdown:  drain behavior

package loader

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xtxerr/groundlink/config"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for groundlinkd.
type Config struct {
	// Listen is the telemetry listen address.
	// Format: "host:port" or ":port"
	// Default: "0.0.0.0:8080"
	Listen string `yaml:"listen"`

	// Log configures logging output.
	Log LogConfig `yaml:"log"`

	// Session configures per-connection behavior.
	Session SessionConfig `yaml:"session"`

	// Table configures the durable CSV table.
	Table TableConfig `yaml:"table"`

	// Monitor configures the presentation refresh.
	Monitor MonitorConfig `yaml:"monitor"`

	// Archive configures Parquet export.
	Archive ArchiveConfig `yaml:"archive"`

	// Shutdown configures graceful shutdown.
	Shutdown ShutdownConfig `yaml:"shutdown"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level"`

	// Format is one of text, json, pretty.
	// Default: text
	Format string `yaml:"format"`
}

// SessionConfig configures connection sessions.
type SessionConfig struct {
	// ReadTimeout ends a session that receives nothing for this long.
	// 0 disables the timeout.
	// Default: 10s
	ReadTimeout Duration `yaml:"read_timeout"`

	// Framing is "line" or "varint".
	// Default: line
	Framing string `yaml:"framing"`

	// MaxRecordSize bounds one framed record.
	// Default: 4KB
	MaxRecordSize ByteSize `yaml:"max_record_size"`

	// PercentileAccuracy is the relative accuracy of the per-session
	// channel percentiles. 0 disables them.
	// Default: 0.01
	PercentileAccuracy float64 `yaml:"percentile_accuracy"`
}

// TableConfig configures the durable table.
type TableConfig struct {
	// Path is the CSV file every sample is appended to.
	// Default: "datos.csv"
	Path string `yaml:"path"`

	// SyncMode is "flush" or "fsync".
	// Default: flush
	SyncMode string `yaml:"sync_mode"`
}

// MonitorConfig configures the refresh loops.
type MonitorConfig struct {
	// RefreshInterval is the live view cadence.
	// Default: 50ms
	RefreshInterval Duration `yaml:"refresh_interval"`

	// HistoryInterval is the whole-table summary cadence. 0 disables it.
	// Default: 30s
	HistoryInterval Duration `yaml:"history_interval"`

	// MemoryLimit caps the query engine, e.g. "256MB".
	MemoryLimit string `yaml:"memory_limit"`
}

// ArchiveConfig configures Parquet export.
type ArchiveConfig struct {
	// Compression is one of none, snappy, zstd, lz4, gzip.
	// Default: zstd
	Compression string `yaml:"compression"`
}

// ShutdownConfig configures graceful shutdown.
type ShutdownConfig struct {
	// DrainTimeout is how long to wait for the active session to close.
	// Default: 5s
	DrainTimeout Duration `yaml:"drain_timeout"`
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Listen: config.DefaultListenAddress,

		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},

		Session: SessionConfig{
			ReadTimeout:        Duration(config.DefaultReadTimeout),
			Framing:            config.DefaultFraming,
			MaxRecordSize:      ByteSize(config.DefaultMaxRecordSize),
			PercentileAccuracy: 0.01,
		},

		Table: TableConfig{
			Path:     config.DefaultTablePath,
			SyncMode: config.DefaultTableSyncMode,
		},

		Monitor: MonitorConfig{
			RefreshInterval: Duration(config.DefaultRefreshInterval),
			HistoryInterval: Duration(config.DefaultHistoryInterval),
		},

		Archive: ArchiveConfig{
			Compression: config.DefaultArchiveCompression,
		},

		Shutdown: ShutdownConfig{
			DrainTimeout: Duration(config.DefaultDrainTimeout),
		},
	}
}

// =============================================================================
// Custom Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
// Supports: "10s", "50ms", "1m30s", or a plain integer number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		// Try as int (seconds)
		var i int
		if err := unmarshal(&i); err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	// A plain number arrives here as a string too.
	if secs, err := strconv.Atoi(s); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the value as a time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ByteSize is a size in bytes that can be unmarshaled from YAML.
// Supports: "4KB", "1MB", or plain bytes.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var i int64
		if err := unmarshal(&i); err != nil {
			return err
		}
		*b = ByteSize(i)
		return nil
	}
	size, err := parseByteSize(s)
	if err != nil {
		return err
	}
	*b = ByteSize(size)
	return nil
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}
