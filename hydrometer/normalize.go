package hydrometer

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Normalize maps an arbitrary decoded payload onto a canonical Reading.
//
// Field aliases: "totalLiters" or "total" for volume, "flowLmin" or
// "flowRate" for rate (the firmware publishes "flowRate"), "ts" for the
// timestamp. Missing or non-numeric values coerce to 0; negative volume
// and rate coerce to 0; a missing or invalid timestamp falls back to the
// current time. Normalize is total: it never fails, whatever the device
// sent.
func Normalize(raw map[string]any) Reading {
	return NormalizeAt(raw, time.Now())
}

// NormalizeAt is Normalize with an explicit clock.
func NormalizeAt(raw map[string]any, now time.Time) Reading {
	reading := Reading{Ts: now.UnixMilli()}
	if raw == nil {
		return reading
	}

	if ts, ok := toNumber(raw["ts"]); ok && ts > 0 && !math.IsInf(ts, 0) {
		reading.Ts = int64(ts)
	}
	reading.TotalLiters = firstNumber(raw, "totalLiters", "total")
	reading.FlowLmin = firstNumber(raw, "flowLmin", "flowRate")
	return reading
}

// ParseReading decodes a JSON payload and normalizes it. Unlike
// Normalize, it reports malformed JSON so that the pub/sub ingestion
// path can discard the message instead of fabricating a zero reading.
func ParseReading(data []byte) (Reading, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Reading{}, err
	}
	return Normalize(raw), nil
}

// NormalizeCommand maps a decoded request body onto a Command, applying
// the same lenient coercion as Normalize. Anything beyond action and a
// numeric value is dropped: commands are forwarded, not interpreted.
func NormalizeCommand(raw map[string]any) Command {
	var cmd Command
	if raw == nil {
		return cmd
	}
	if action, ok := raw["action"].(string); ok {
		cmd.Action = action
	}
	if value, ok := toNumber(raw["value"]); ok {
		cmd.Value = &value
	}
	return cmd
}

// firstNumber returns the first key holding a usable numeric value,
// clamped to non-negative, or 0. Non-finite values coerce to 0 here so
// that NaN/Inf can never reach the cache; a reading must stay
// JSON-marshalable end to end.
func firstNumber(raw map[string]any, keys ...string) float64 {
	for _, key := range keys {
		value, present := raw[key]
		if !present {
			continue
		}
		number, ok := toNumber(value)
		if !ok || math.IsNaN(number) || math.IsInf(number, 0) {
			return 0
		}
		if number < 0 {
			return 0
		}
		return number
	}
	return 0
}

// toNumber coerces JSON scalar representations to float64. Numeric
// strings are accepted because some device firmwares quote their values.
func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
