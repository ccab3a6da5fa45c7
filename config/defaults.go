// Package config provides configuration defaults for the groundlink
// ground-station receiver.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or command line flags.
package config

import "time"

// =============================================================================
// Network Defaults
// =============================================================================

const (
	// DefaultListenAddress is the default telemetry listen address.
	// The vehicle connects here and streams records.
	// Override via config: listen
	DefaultListenAddress = "0.0.0.0:8080"

	// DefaultReadTimeout is how long a session may go without receiving a
	// single byte before it is considered dead and torn down.
	// Override via config: session.read_timeout
	DefaultReadTimeout = 10 * time.Second

	// DefaultFraming is the record framing on the wire.
	// "line" - one record per '\n' terminated line
	// "varint" - unsigned varint length prefix + record bytes
	// Override via config: session.framing
	DefaultFraming = "line"

	// DefaultMaxRecordSize bounds a single framed record. A complete
	// 15-field record is well under 256 bytes; the margin absorbs
	// verbose float formatting.
	// Override via config: session.max_record_size
	DefaultMaxRecordSize = 4096
)

// =============================================================================
// Window Defaults
// =============================================================================

const (
	// WindowCapacity is the number of recent values kept per channel for
	// the live view. Not configurable: consumers size their plots to it.
	WindowCapacity = 50
)

// =============================================================================
// Table Defaults
// =============================================================================

const (
	// DefaultTablePath is the durable CSV table every sample is appended to.
	// Override via config: table.path
	DefaultTablePath = "datos.csv"

	// DefaultTableSyncMode controls durability of each appended row.
	// "flush" - flush the userspace buffer to the OS after each row
	// "fsync" - flush and fsync after each row
	// Override via config: table.sync_mode
	DefaultTableSyncMode = "flush"
)

// =============================================================================
// Monitor Defaults
// =============================================================================

const (
	// DefaultRefreshInterval is the live view refresh cadence.
	// Override via config: monitor.refresh_interval
	DefaultRefreshInterval = 50 * time.Millisecond

	// DefaultHistoryInterval is how often the retrospective table summary
	// is recomputed. Zero disables history refresh.
	// Override via config: monitor.history_interval
	DefaultHistoryInterval = 30 * time.Second
)

// =============================================================================
// Archive Defaults
// =============================================================================

const (
	// DefaultArchiveCompression is the Parquet codec used by groundctl export.
	// Override via config: archive.compression
	DefaultArchiveCompression = "zstd"
)

// =============================================================================
// Shutdown Defaults
// =============================================================================

const (
	// DefaultDrainTimeout is how long shutdown waits for the active session
	// to close its table handle.
	// Override via config: shutdown.drain_timeout
	DefaultDrainTimeout = 5 * time.Second
)
