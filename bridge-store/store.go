// Package bridgestore provides the durable time-series store for meter
// readings: an append-only SQLite table with "most recent N" and
// "range [from,to]" queries. The store is a passive data sink — it knows
// nothing about the broadcast layer, and write failures are swallowed
// here because the bridge decides its fallback policy once at startup,
// not per reading.
package bridgestore

import "github.com/hydrotel/hydrobridge/hydrometer"

// Store is the pluggable append/query contract the ingestion bridge
// writes to. Implementations must order query results by ascending
// timestamp regardless of insertion order.
type Store interface {
	// Insert appends a reading. Never returns an error: malformed
	// numeric fields are coerced to zero and write failures are logged
	// and dropped.
	Insert(reading hydrometer.Reading)

	// Recent returns up to limit most-recent readings, oldest first.
	// limit is clamped to [1, 5000]; non-positive values use the
	// default of 500.
	Recent(limit int) []hydrometer.Reading

	// Range returns all readings with from <= ts <= to, ascending.
	// from <= 0 means the beginning of time; to <= 0 means now.
	Range(from, to int64) []hydrometer.Reading

	Close() error
}

const (
	// DefaultRecentLimit is used when Recent is called without a limit.
	DefaultRecentLimit = 500

	// MaxRecentLimit caps a caller-supplied limit.
	MaxRecentLimit = 5000
)

// ClampLimit applies the [1, MaxRecentLimit] bounds shared by every
// Store implementation and by the HTTP history endpoint.
func ClampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > MaxRecentLimit {
		return MaxRecentLimit
	}
	return limit
}
