package main

import (
	"fmt"
	"io"

	"github.com/xtxerr/groundlink/config"
	"github.com/xtxerr/groundlink/internal/archive"
)

func runExport(args []string, stdout io.Writer) error {
	fset := newFlagSet("export", "--out FILE [flags]")
	table := fset.StringP("table", "t", config.DefaultTablePath, "CSV table path")
	out := fset.StringP("out", "o", "", "Parquet output path")
	compression := fset.String("compression", config.DefaultArchiveCompression, "none, snappy, zstd, lz4 or gzip")
	if err := parse(fset, args); err != nil {
		return err
	}
	if *out == "" {
		fset.Usage()
		return fmt.Errorf("--out is required")
	}

	ct, err := archive.ParseCompressionType(*compression)
	if err != nil {
		return err
	}
	opts := archive.DefaultOptions()
	opts.Compression = ct

	res, err := archive.Export(*table, *out, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported %d rows to %s (%d bytes, %s)\n", res.Rows, *out, res.Bytes, ct)
	return nil
}
