// Package hydrometer defines the canonical data model for water-meter
// telemetry: a Reading (one timestamped cumulative-volume / flow-rate
// sample), an operator Command, and the normalizer that maps the varied
// payload shapes produced by devices onto the canonical Reading.
package hydrometer

import "time"

// Reading is one water-meter sample. Ts is epoch milliseconds.
// TotalLiters is the cumulative volume reported by the meter and is
// expected to be monotonic under normal operation; FlowLmin is the
// instantaneous rate in liters per minute. Readings are immutable once
// ingested.
type Reading struct {
	Ts          int64   `json:"ts"`
	TotalLiters float64 `json:"totalLiters"`
	FlowLmin    float64 `json:"flowLmin"`
}

// Command is an operator instruction republished to the device, e.g.
// {"action":"reset"} or {"action":"setCalibration","value":7.5}. Value is
// omitted from the wire form when absent. Commands are transient — they
// are forwarded, never persisted.
type Command struct {
	Action string   `json:"action"`
	Value  *float64 `json:"value,omitempty"`
}

// NewCommand builds a Command, attaching value only when hasValue is set.
func NewCommand(action string, value float64, hasValue bool) Command {
	cmd := Command{Action: action}
	if hasValue {
		cmd.Value = &value
	}
	return cmd
}

// Now returns the current time as epoch milliseconds, the timestamp unit
// used throughout the wire and storage formats.
func Now() int64 {
	return time.Now().UnixMilli()
}
