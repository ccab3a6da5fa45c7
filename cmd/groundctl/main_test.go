package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xtxerr/groundlink/internal/archive"
	"github.com/xtxerr/groundlink/internal/geo"
	"github.com/xtxerr/groundlink/internal/history"
	"github.com/xtxerr/groundlink/internal/record"
	"github.com/xtxerr/groundlink/internal/sink"
	testutil "github.com/xtxerr/groundlink/internal/testing"
	"github.com/xtxerr/groundlink/internal/wire"
)

func writeTable(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datos.csv")
	tbl, err := sink.Open(path, sink.DefaultOptions())
	require.NoError(t, err)
	for _, s := range testutil.Samples(n) {
		require.NoError(t, tbl.Append(s))
	}
	require.NoError(t, tbl.Close())
	return path
}

func TestDecode(t *testing.T) {
	log := "FFFFFFB000000064312C2034302E343136382C202D332E37303338\n\nnot hex\n"
	path := filepath.Join(t.TempDir(), "gateway.log")
	require.NoError(t, os.WriteFile(path, []byte(log), 0644))

	var out bytes.Buffer
	require.NoError(t, runDecode([]string{path}, &out))

	text := out.String()
	require.Contains(t, text, "-80")
	require.Contains(t, text, "10.0")
	require.Contains(t, text, "40.416800,-3.703800")
	require.Equal(t, 2, strings.Count(text, "\n"), "header plus one packet")

	require.Error(t, runDecode([]string{"--strict", path}, &out))
}

func TestSummary(t *testing.T) {
	path := writeTable(t, 20)

	var out bytes.Buffer
	require.NoError(t, runSummary([]string{"--table", path}, &out))
	require.Contains(t, out.String(), "AccX")
	require.Contains(t, out.String(), "P95")
}

func TestExport(t *testing.T) {
	path := writeTable(t, 7)
	outPath := filepath.Join(t.TempDir(), "vuelo.parquet")

	var out bytes.Buffer
	require.NoError(t, runExport([]string{"-t", path, "-o", outPath, "--compression", "snappy"}, &out))

	rows, err := archive.ReadAll(outPath)
	require.NoError(t, err)
	require.Len(t, rows, 7)

	require.Error(t, runExport([]string{"-t", path}, &out), "missing --out")
}

func TestSend(t *testing.T) {
	path := writeTable(t, 5)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan [][]byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			received <- nil
			return
		}
		defer conn.Close()

		var records [][]byte
		r := wire.NewReader(conn, wire.FramingVarint, 0)
		for {
			rec, err := r.Read()
			if err != nil {
				break
			}
			records = append(records, append([]byte(nil), rec...))
		}
		received <- records
	}()

	var out bytes.Buffer
	args := []string{"--addr", ln.Addr().String(), "--table", path, "--framing", "varint", "--count", "3"}
	require.NoError(t, runSend(args, &out))

	records := <-received
	require.Len(t, records, 3)
	for i, rec := range records {
		s, err := record.Parse(rec)
		require.NoError(t, err)
		require.Equal(t, testutil.Sample(i+1), s)
	}
}

func TestTail(t *testing.T) {
	path := writeTable(t, 20)

	var out bytes.Buffer
	require.NoError(t, runTail([]string{"-t", path, "-n", "3"}, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[0], "seq,AccX"), lines[0])
	for i, line := range lines[1:] {
		seq := 18 + i
		want := formatRow(history.Row{Seq: int64(seq), Sample: testutil.Sample(seq)})
		require.Equal(t, want, line)
	}
}

func TestTail_TrackNMEA(t *testing.T) {
	path := writeTable(t, 5)

	var out bytes.Buffer
	require.NoError(t, runTail([]string{"-t", path, "-n", "2", "--track", "--nmea"}, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	for i, line := range lines {
		lat, lon := testutil.Sample(4 + i).Position()
		require.Equal(t, geo.PointFromNMEA(lat, lon).String(), line)
	}

	out.Reset()
	require.NoError(t, runTail([]string{"-t", path, "-n", "1", "--track"}, &out))
	lat, lon := testutil.Sample(5).Position()
	require.Equal(t, geo.Point{Lat: lat, Lon: lon}.String(), strings.TrimSpace(out.String()))
}

func TestShell_Commands(t *testing.T) {
	path := writeTable(t, 12)
	svc, err := history.New(path, history.DefaultOptions())
	require.NoError(t, err)
	defer svc.Close()

	var out bytes.Buffer
	sh := &shell{svc: svc, out: &out}
	ctx := context.Background()

	run := func(line string) string {
		t.Helper()
		out.Reset()
		require.NoError(t, sh.dispatch(ctx, line))
		return out.String()
	}

	require.Equal(t, "12\n", run(".count"))

	recent := strings.Split(strings.TrimSpace(run(".recent 2")), "\n")
	require.Len(t, recent, 2)
	require.True(t, strings.HasPrefix(recent[0], "11,"), recent[0])
	require.True(t, strings.HasPrefix(recent[1], "12,"), recent[1])

	require.Contains(t, run(".summary"), "Longitude")
	require.Len(t, strings.Split(strings.TrimSpace(run(".track")), "\n"), 12)

	sql := run("SELECT count(*) AS n FROM telemetry WHERE seq > 10")
	require.Contains(t, sql, "(1 rows)")
	require.Contains(t, sql, "2")

	require.Error(t, sh.dispatch(ctx, ".bogus"))
	require.Error(t, sh.dispatch(ctx, ".recent zero"))

	require.False(t, sh.exit)
	run(".exit")
	require.True(t, sh.exit)
}
