// Package history answers retrospective queries over the persisted table.
//
// It uses an in-memory DuckDB database that reads the CSV table in place
// through a "telemetry" view. The table is never modified. A missing or
// empty table reads as zero rows.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/groundlink/internal/geo"
	"github.com/xtxerr/groundlink/internal/logging"
	"github.com/xtxerr/groundlink/internal/telemetry"
)

var log = logging.Component("history")

// Options configures the query engine.
type Options struct {
	// MemoryLimit caps DuckDB memory, e.g. "256MB". Empty keeps the default.
	MemoryLimit string

	// Threads is the DuckDB worker count. Rows are numbered in file order,
	// which a single thread guarantees.
	// Default: 1
	Threads int
}

// DefaultOptions returns default options.
func DefaultOptions() Options {
	return Options{Threads: 1}
}

// Service provides query capabilities over the table.
type Service struct {
	mu sync.RWMutex

	path      string
	db        *sql.DB
	viewReady bool

	group singleflight.Group

	cacheMu  sync.Mutex
	cacheKey tableVersion
	cached   []ChannelSummary

	// Statistics
	stats Stats
}

// Stats holds query statistics.
type Stats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Errors          int64
	CacheHits       int64
	CacheMisses     int64
}

// Row is one table row with its 1-based position.
type Row struct {
	Seq    int64
	Sample telemetry.Sample
}

// ChannelSummary is the whole-table summary of one channel.
type ChannelSummary struct {
	Channel telemetry.Channel
	Count   int64
	Min     float64
	Max     float64
	Avg     float64
}

// New opens a query engine over the CSV table at path.
func New(path string, opts Options) (*Service, error) {
	if opts.Threads <= 0 {
		opts.Threads = DefaultOptions().Threads
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// The in-memory database lives as long as one connection.
	db.SetMaxOpenConns(1)

	setup := []string{
		fmt.Sprintf("SET threads TO %d", opts.Threads),
		"SET preserve_insertion_order = true",
	}
	if opts.MemoryLimit != "" {
		setup = append(setup, fmt.Sprintf("SET memory_limit = %s", quote(opts.MemoryLimit)))
	}

	for _, stmt := range setup {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure duckdb: %w", err)
		}
	}

	return &Service{path: path, db: db}, nil
}

// ensureView creates the telemetry view on first use. read_csv needs the
// file to exist when the view is bound.
func (s *Service) ensureView() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.viewReady {
		return nil
	}
	if _, err := s.db.Exec(viewSQL(s.path)); err != nil {
		return fmt.Errorf("create view: %w", err)
	}
	s.viewReady = true
	return nil
}

// viewSQL defines the telemetry view with fixed column types so that an
// empty table still has a schema.
func viewSQL(path string) string {
	cols := make([]string, 0, telemetry.FieldCount)
	for _, c := range telemetry.Channels() {
		cols = append(cols, fmt.Sprintf("%s: 'DOUBLE'", quote(c.String())))
	}
	return fmt.Sprintf(
		"CREATE VIEW telemetry AS SELECT row_number() OVER () AS seq, * FROM read_csv(%s, header = true, auto_detect = false, ignore_errors = true, columns = {%s})",
		quote(path), strings.Join(cols, ", "))
}

// quote returns s as a SQL string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func ident(c telemetry.Channel) string {
	return `"` + c.String() + `"`
}

// Close closes the query engine.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the table path.
func (s *Service) Path() string {
	return s.path
}

// tableVersion identifies the table contents for caching.
type tableVersion struct {
	size    int64
	modTime time.Time
}

// version returns the table version, or ok=false when there is nothing
// to read.
func (s *Service) version() (tableVersion, bool) {
	info, err := os.Stat(s.path)
	if err != nil || info.Size() == 0 {
		return tableVersion{}, false
	}
	return tableVersion{size: info.Size(), modTime: info.ModTime()}, true
}

// Count returns the number of rows in the table.
func (s *Service) Count(ctx context.Context) (int64, error) {
	if _, ok := s.version(); !ok {
		return 0, nil
	}
	if err := s.ensureView(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM telemetry").Scan(&n); err != nil {
		s.countError()
		return 0, fmt.Errorf("count rows: %w", err)
	}
	s.countQuery(1)
	return n, nil
}

// Recent returns the last n rows in arrival order.
func (s *Service) Recent(ctx context.Context, n int) ([]Row, error) {
	if n <= 0 {
		return nil, nil
	}
	if _, ok := s.version(); !ok {
		return nil, nil
	}
	if err := s.ensureView(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT * FROM (SELECT * FROM telemetry ORDER BY seq DESC LIMIT $1) ORDER BY seq", n)
	if err != nil {
		s.countError()
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		s.countError()
		return nil, err
	}
	s.countQuery(len(out))
	return out, nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var r Row
		var fields [telemetry.FieldCount]sql.NullFloat64
		dest := make([]any, 0, telemetry.FieldCount+1)
		dest = append(dest, &r.Seq)
		for i := range fields {
			dest = append(dest, &fields[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, f := range fields {
			r.Sample.Fields[i] = f.Float64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary returns count, min, max and average of every channel over the
// whole table. Concurrent callers share one query, and the result is
// reused until the table changes.
func (s *Service) Summary(ctx context.Context) ([]ChannelSummary, error) {
	ver, ok := s.version()
	if !ok {
		return emptySummary(), nil
	}
	if err := s.ensureView(); err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	if s.cached != nil && s.cacheKey == ver {
		out := append([]ChannelSummary(nil), s.cached...)
		s.cacheMu.Unlock()
		s.countCache(true)
		return out, nil
	}
	s.cacheMu.Unlock()
	s.countCache(false)

	v, err, _ := s.group.Do("summary", func() (any, error) {
		return s.summary(ctx)
	})
	if err != nil {
		return nil, err
	}

	sum := v.([]ChannelSummary)
	s.cacheMu.Lock()
	s.cacheKey, s.cached = ver, sum
	s.cacheMu.Unlock()

	return append([]ChannelSummary(nil), sum...), nil
}

func emptySummary() []ChannelSummary {
	out := make([]ChannelSummary, telemetry.FieldCount)
	for i := range out {
		out[i].Channel = telemetry.Channel(i)
	}
	return out
}

func (s *Service) summary(ctx context.Context) ([]ChannelSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exprs := make([]string, 0, 1+3*telemetry.FieldCount)
	exprs = append(exprs, "count(*)")
	for _, c := range telemetry.Channels() {
		exprs = append(exprs,
			fmt.Sprintf("min(%s)", ident(c)),
			fmt.Sprintf("max(%s)", ident(c)),
			fmt.Sprintf("avg(%s)", ident(c)))
	}
	query := "SELECT " + strings.Join(exprs, ", ") + " FROM telemetry"

	var count int64
	vals := make([]sql.NullFloat64, 3*telemetry.FieldCount)
	dest := make([]any, 0, len(vals)+1)
	dest = append(dest, &count)
	for i := range vals {
		dest = append(dest, &vals[i])
	}

	if err := s.db.QueryRowContext(ctx, query).Scan(dest...); err != nil {
		s.countError()
		return nil, fmt.Errorf("query summary: %w", err)
	}

	out := emptySummary()
	for i := range out {
		out[i].Count = count
		out[i].Min = vals[3*i].Float64
		out[i].Max = vals[3*i+1].Float64
		out[i].Avg = vals[3*i+2].Float64
	}
	s.countQuery(1)
	log.Debug("summary computed", "rows", count)
	return out, nil
}

// Track returns the position of every row in arrival order. When nmea is
// set, values are converted from ddmm.mmmm to decimal degrees.
func (s *Service) Track(ctx context.Context, nmea bool) ([]geo.Point, error) {
	if _, ok := s.version(); !ok {
		return nil, nil
	}
	if err := s.ensureView(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := fmt.Sprintf("SELECT %s, %s FROM telemetry ORDER BY seq",
		ident(telemetry.Latitude), ident(telemetry.Longitude))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.countError()
		return nil, fmt.Errorf("query track: %w", err)
	}
	defer rows.Close()

	var out []geo.Point
	for rows.Next() {
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&lat, &lon); err != nil {
			s.countError()
			return nil, fmt.Errorf("scan position: %w", err)
		}
		p := geo.Point{Lat: lat.Float64, Lon: lon.Float64}
		if nmea {
			p = geo.PointFromNMEA(p.Lat, p.Lon)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		s.countError()
		return nil, err
	}
	s.countQuery(len(out))
	return out, nil
}

// ExecuteSQL runs an ad-hoc query. The table is available as the
// "telemetry" view with a leading seq column.
func (s *Service) ExecuteSQL(ctx context.Context, query string) ([]string, [][]any, error) {
	if _, ok := s.version(); ok {
		if err := s.ensureView(); err != nil {
			return nil, nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.countError()
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var results [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			s.countError()
			return nil, nil, err
		}
		results = append(results, values)
	}

	s.countQuery(len(results))
	return columns, results, rows.Err()
}

func (s *Service) countQuery(rows int) {
	s.cacheMu.Lock()
	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(rows)
	s.cacheMu.Unlock()
}

func (s *Service) countError() {
	s.cacheMu.Lock()
	s.stats.Errors++
	s.cacheMu.Unlock()
}

func (s *Service) countCache(hit bool) {
	s.cacheMu.Lock()
	if hit {
		s.stats.CacheHits++
	} else {
		s.stats.CacheMisses++
	}
	s.cacheMu.Unlock()
}

// Stats returns query statistics.
func (s *Service) Stats() Stats {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.stats
}
