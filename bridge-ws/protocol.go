// Package bridgews implements the live subscriber channel: a websocket
// endpoint whose server pushes "data" events for every ingested reading
// and a one-time "history:init" snapshot on connect. Clients are not
// required to send anything; delivery is best-effort, at most once per
// connection.
package bridgews

import (
	"encoding/json"
	"fmt"
)

// Wire event names. These match the events the dashboard listens for.
const (
	EventData        = "data"
	EventHistoryInit = "history:init"
)

// Message is the envelope for every server-to-client frame.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseMessage decodes a frame. Used by tests and by any client-side
// tooling; the server itself ignores inbound frames.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid ws message: %w", err)
	}
	if msg.Event == "" {
		return nil, fmt.Errorf("missing event name")
	}
	return &msg, nil
}

// DataMessage builds a "data" frame carrying a single reading (or an
// empty object before the first ingestion).
func DataMessage(payload any) ([]byte, error) {
	return marshalMessage(EventData, payload)
}

// HistoryInitMessage builds the one-time snapshot frame carrying an
// array of recent readings.
func HistoryInitMessage(payload any) ([]byte, error) {
	return marshalMessage(EventHistoryInit, payload)
}

func marshalMessage(event string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling %v payload: %w", event, err)
	}
	frame, err := json.Marshal(Message{Event: event, Payload: body})
	if err != nil {
		return nil, fmt.Errorf("marshalling %v message: %w", event, err)
	}
	return frame, nil
}
