package bridgestore

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/hydrotel/hydrobridge/hydrometer"
)

const schema = `
CREATE TABLE IF NOT EXISTS readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	totalLiters REAL,
	flowLmin REAL
);
CREATE INDEX IF NOT EXISTS idx_readings_ts ON readings (ts);
`

// SQLite is the Store implementation backed by a local SQLite file.
type SQLite struct {
	db     *sql.DB
	logger zerolog.Logger

	insert     *sql.Stmt
	recentDesc *sql.Stmt
	rangeAsc   *sql.Stmt
}

// Open creates the parent directory if needed, opens (or creates) the
// database file, and prepares the statements. WAL mode improves
// concurrent reads while the bridge is appending.
func Open(path string, logger zerolog.Logger) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir %v: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening %v: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Warn().Err(err).Msg("failed to enable WAL mode")
	}
	return New(db, logger)
}

// New initializes the schema on an existing database handle and prepares
// the statements. Useful for tests with an in-memory database.
func New(db *sql.DB, logger zerolog.Logger) (*SQLite, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing readings schema: %w", err)
	}

	store := &SQLite{db: db, logger: logger}

	var err error
	if store.insert, err = db.Prepare(
		"INSERT INTO readings (ts, totalLiters, flowLmin) VALUES (?, ?, ?)",
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	if store.recentDesc, err = db.Prepare(
		"SELECT ts, totalLiters, flowLmin FROM readings ORDER BY ts DESC LIMIT ?",
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing recent: %w", err)
	}
	if store.rangeAsc, err = db.Prepare(
		"SELECT ts, totalLiters, flowLmin FROM readings WHERE ts BETWEEN ? AND ? ORDER BY ts ASC",
	); err != nil {
		db.Close()
		return nil, fmt.Errorf("preparing range: %w", err)
	}
	return store, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Insert appends a reading. A zero timestamp is replaced by the current
// time and non-finite values coerce to zero, so a malformed reading can
// never poison the table or abort ingestion.
func (s *SQLite) Insert(reading hydrometer.Reading) {
	ts := reading.Ts
	if ts <= 0 {
		ts = hydrometer.Now()
	}
	if _, err := s.insert.Exec(ts, finite(reading.TotalLiters), finite(reading.FlowLmin)); err != nil {
		s.logger.Warn().Err(err).Int64("ts", ts).Msg("failed to insert reading")
	}
}

// Recent returns up to limit most-recent readings in ascending timestamp
// order. The query selects newest-first for index efficiency and the
// result is reversed for chart-friendly ordering.
func (s *SQLite) Recent(limit int) []hydrometer.Reading {
	rows, err := s.recentDesc.Query(ClampLimit(limit, DefaultRecentLimit))
	if err != nil {
		s.logger.Warn().Err(err).Msg("recent query failed")
		return nil
	}
	readings := scanReadings(rows, s.logger)
	reverse(readings)
	return readings
}

// Range returns readings with from <= ts <= to in ascending order.
func (s *SQLite) Range(from, to int64) []hydrometer.Reading {
	if from < 0 {
		from = 0
	}
	if to <= 0 {
		to = time.Now().UnixMilli()
	}
	rows, err := s.rangeAsc.Query(from, to)
	if err != nil {
		s.logger.Warn().Err(err).Msg("range query failed")
		return nil
	}
	return scanReadings(rows, s.logger)
}

func scanReadings(rows *sql.Rows, logger zerolog.Logger) []hydrometer.Reading {
	defer rows.Close()

	var readings []hydrometer.Reading
	for rows.Next() {
		var r hydrometer.Reading
		var total, flow sql.NullFloat64
		if err := rows.Scan(&r.Ts, &total, &flow); err != nil {
			logger.Warn().Err(err).Msg("failed to scan reading row")
			continue
		}
		r.TotalLiters = total.Float64
		r.FlowLmin = flow.Float64
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		logger.Warn().Err(err).Msg("reading rows iteration failed")
	}
	return readings
}

func reverse(readings []hydrometer.Reading) {
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
}

func finite(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}
