// Package archive exports the persisted table to Parquet.
//
// The export is a columnar snapshot for offline analysis: one float64
// column per channel plus the 1-based row position. The CSV table stays the
// system of record.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/groundlink/internal/errors"
	"github.com/xtxerr/groundlink/internal/logging"
	"github.com/xtxerr/groundlink/internal/sink"
	"github.com/xtxerr/groundlink/internal/telemetry"
)

var log = logging.Component("archive")

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// BatchSize is the number of rows buffered per write call.
	BatchSize int
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

func (c CompressionType) String() string {
	switch c {
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	case CompressionGzip:
		return "gzip"
	default:
		return "none"
	}
}

// DefaultOptions returns default export options.
func DefaultOptions() Options {
	return Options{
		Compression: CompressionZstd,
		BatchSize:   1024,
	}
}

// ParseCompressionType parses a compression name.
func ParseCompressionType(s string) (CompressionType, error) {
	switch s {
	case "snappy":
		return CompressionSnappy, nil
	case "zstd", "":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "gzip":
		return CompressionGzip, nil
	case "none":
		return CompressionNone, nil
	default:
		return CompressionZstd, errors.NewValidation("compression", fmt.Sprintf("unknown codec %q", s))
	}
}

func codec(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// Row is one exported sample.
type Row struct {
	Seq       int64   `parquet:"seq"`
	AccX      float64 `parquet:"AccX"`
	AccY      float64 `parquet:"AccY"`
	AccZ      float64 `parquet:"AccZ"`
	GyroX     float64 `parquet:"GyroX"`
	GyroY     float64 `parquet:"GyroY"`
	GyroZ     float64 `parquet:"GyroZ"`
	MagX      float64 `parquet:"MagX"`
	MagY      float64 `parquet:"MagY"`
	MagZ      float64 `parquet:"MagZ"`
	PWM1      float64 `parquet:"PWM1"`
	PWM2      float64 `parquet:"PWM2"`
	PWM3      float64 `parquet:"PWM3"`
	PWM4      float64 `parquet:"PWM4"`
	Latitude  float64 `parquet:"Latitude"`
	Longitude float64 `parquet:"Longitude"`
}

// SampleToRow converts a sample at position seq to a Row.
func SampleToRow(seq int64, s *telemetry.Sample) Row {
	f := &s.Fields
	return Row{
		Seq:  seq,
		AccX: f[telemetry.AccX], AccY: f[telemetry.AccY], AccZ: f[telemetry.AccZ],
		GyroX: f[telemetry.GyroX], GyroY: f[telemetry.GyroY], GyroZ: f[telemetry.GyroZ],
		MagX: f[telemetry.MagX], MagY: f[telemetry.MagY], MagZ: f[telemetry.MagZ],
		PWM1: f[telemetry.PWM1], PWM2: f[telemetry.PWM2], PWM3: f[telemetry.PWM3], PWM4: f[telemetry.PWM4],
		Latitude: f[telemetry.Latitude], Longitude: f[telemetry.Longitude],
	}
}

// Sample converts a Row back to a sample.
func (r *Row) Sample() telemetry.Sample {
	return telemetry.Sample{Fields: [telemetry.FieldCount]float64{
		r.AccX, r.AccY, r.AccZ,
		r.GyroX, r.GyroY, r.GyroZ,
		r.MagX, r.MagY, r.MagZ,
		r.PWM1, r.PWM2, r.PWM3, r.PWM4,
		r.Latitude, r.Longitude,
	}}
}

// Result describes a finished export.
type Result struct {
	Rows    int64
	Skipped int64 // table lines that held no sample
	Bytes   int64
}

// Export writes every row of the CSV table at tablePath to a Parquet file
// at outPath. The file is written under a temporary name and renamed into
// place, so outPath never holds a partial export.
func Export(tablePath, outPath string, opts Options) (Result, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}

	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return Result{}, fmt.Errorf("create directory: %w", err)
		}
	}

	tmp := outPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return Result{}, fmt.Errorf("create file: %w", err)
	}

	res, err := write(f, tablePath, opts)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close file: %w", cerr)
	}
	if err != nil {
		os.Remove(tmp)
		return Result{}, err
	}

	if err := os.Rename(tmp, outPath); err != nil {
		os.Remove(tmp)
		return Result{}, fmt.Errorf("rename: %w", err)
	}

	if info, err := os.Stat(outPath); err == nil {
		res.Bytes = info.Size()
	}
	log.Info("table exported", "table", tablePath, "out", outPath,
		"rows", res.Rows, "skipped", res.Skipped, "bytes", res.Bytes, "compression", opts.Compression.String())
	return res, nil
}

func write(w io.Writer, tablePath string, opts Options) (Result, error) {
	writer := parquet.NewGenericWriter[Row](w, parquet.Compression(codec(opts.Compression)))

	var res Result
	batch := make([]Row, 0, opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := writer.Write(batch)
		res.Rows += int64(n)
		batch = batch[:0]
		if err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		return nil
	}

	err := sink.Scan(tablePath, func(row int, s telemetry.Sample) error {
		batch = append(batch, SampleToRow(int64(row), &s))
		if len(batch) == cap(batch) {
			return flush()
		}
		return nil
	}, func(rerr *sink.RowError) {
		res.Skipped++
		log.Warn("skipping table line", "table", tablePath, "line", rerr.Line, "error", rerr.Err)
	})
	if err == nil {
		err = flush()
	}
	if err != nil {
		writer.Close()
		return Result{}, fmt.Errorf("export %s: %w", tablePath, err)
	}

	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("close writer: %w", err)
	}
	return res, nil
}

// ReadAll reads every row of a Parquet export in file order.
func ReadAll(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	reader := parquet.NewGenericReader[Row](f)
	defer reader.Close()

	rows := make([]Row, reader.NumRows())
	n := 0
	for n < len(rows) {
		k, err := reader.Read(rows[n:])
		n += k
		if err == io.EOF || (err == nil && k == 0) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
	}
	return rows[:n], nil
}
