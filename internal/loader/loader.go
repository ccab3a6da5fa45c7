// Package loader handles configuration file loading, validation, and
// conversion.
//
// This package is responsible for:
//   - Loading YAML configuration files
//   - Expanding environment variables
//   - Validating every setting in one pass
//   - Converting the file format into component configurations

package loader

import (
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/groundlink/internal/archive"
	"github.com/xtxerr/groundlink/internal/errors"
	"github.com/xtxerr/groundlink/internal/history"
	"github.com/xtxerr/groundlink/internal/logging"
	"github.com/xtxerr/groundlink/internal/server"
	"github.com/xtxerr/groundlink/internal/sink"
	"github.com/xtxerr/groundlink/internal/wire"
)

// minRecordSize fits one complete record with short fields.
const minRecordSize = 64

// =============================================================================
// Load
// =============================================================================

// Load loads configuration from a YAML file. Unset fields keep their
// defaults; ${VAR} references are expanded from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration and reports every problem at once.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	if cfg.Listen == "" {
		errs.AddMissing("listen")
	} else if _, port, err := net.SplitHostPort(cfg.Listen); err != nil {
		errs.AddField("listen", err.Error())
	} else if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		errs.AddField("listen", fmt.Sprintf("bad port %q", port))
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs.AddField("log.level", err.Error())
	}
	if _, err := logging.ParseFormat(cfg.Log.Format); err != nil {
		errs.AddField("log.format", err.Error())
	}

	if cfg.Session.ReadTimeout < 0 {
		errs.AddField("session.read_timeout", "cannot be negative")
	}
	if _, err := wire.ParseFraming(cfg.Session.Framing); err != nil {
		errs.Add(err)
	}
	if cfg.Session.MaxRecordSize < minRecordSize {
		errs.AddField("session.max_record_size", fmt.Sprintf("must be at least %d bytes", minRecordSize))
	}
	if a := cfg.Session.PercentileAccuracy; a < 0 || a >= 1 {
		errs.AddField("session.percentile_accuracy", "must be in [0, 1)")
	}

	if cfg.Table.Path == "" {
		errs.AddMissing("table.path")
	}
	if _, err := sink.ParseSyncMode(cfg.Table.SyncMode); err != nil {
		errs.Add(err)
	}

	if cfg.Monitor.RefreshInterval <= 0 {
		errs.AddField("monitor.refresh_interval", "must be positive")
	}
	if cfg.Monitor.HistoryInterval < 0 {
		errs.AddField("monitor.history_interval", "cannot be negative")
	}

	if _, err := archive.ParseCompressionType(cfg.Archive.Compression); err != nil {
		errs.Add(err)
	}

	if cfg.Shutdown.DrainTimeout < 0 {
		errs.AddField("shutdown.drain_timeout", "cannot be negative")
	}

	return errs.Err()
}

// =============================================================================
// Conversion
// =============================================================================

// ToServerConfig converts the file configuration to a listener
// configuration. The caller sets Store and OnSessionEnd.
func ToServerConfig(cfg *Config) (*server.Config, error) {
	framing, err := wire.ParseFraming(cfg.Session.Framing)
	if err != nil {
		return nil, err
	}
	syncMode, err := sink.ParseSyncMode(cfg.Table.SyncMode)
	if err != nil {
		return nil, err
	}

	sc := server.DefaultConfig()
	sc.Listen = cfg.Listen
	sc.ReadTimeout = cfg.Session.ReadTimeout.Duration()
	sc.Framing = framing
	sc.MaxRecordSize = int(cfg.Session.MaxRecordSize.Bytes())
	sc.PercentileAccuracy = cfg.Session.PercentileAccuracy
	sc.TablePath = cfg.Table.Path
	sc.TableOptions.SyncMode = syncMode
	return sc, nil
}

// ToHistoryOptions converts the monitor section to query engine options.
func ToHistoryOptions(cfg *Config) history.Options {
	opts := history.DefaultOptions()
	opts.MemoryLimit = cfg.Monitor.MemoryLimit
	return opts
}

// ToArchiveOptions converts the archive section to export options.
func ToArchiveOptions(cfg *Config) (archive.Options, error) {
	ct, err := archive.ParseCompressionType(cfg.Archive.Compression)
	if err != nil {
		return archive.Options{}, err
	}
	opts := archive.DefaultOptions()
	opts.Compression = ct
	return opts, nil
}

// =============================================================================
// Helpers
// =============================================================================

// parseByteSize parses a size string like "4KB" or "1MB".
func parseByteSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	// Longest suffix first so "KB" is not read as "B".
	units := []struct {
		suffix     string
		multiplier int64
	}{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}

	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			n, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parse byte size %q: %w", s, err)
			}
			return n * u.multiplier, nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse byte size %q: %w", s, err)
	}
	return n, nil
}
