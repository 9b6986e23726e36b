package bridgews

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hydrotel/hydrobridge/hydrometer"
)

// SnapshotSize is how many recent readings a new subscriber receives in
// its history:init frame.
const SnapshotSize = 200

// Hub fans ingested readings out to every connected client. A single
// goroutine owns the client set, the last-known reading, and the replay
// buffer the snapshot is served from, so a new connection's snapshot and
// its subsequent live pushes are one ordered event stream: no reading
// can fall between them and none is delivered twice.
type Hub struct {
	logger zerolog.Logger

	register   chan *Client
	unregister chan *Client
	publish    chan hydrometer.Reading

	clients map[*Client]bool

	// Snapshot state, touched only by the Run goroutine after Prime.
	last    *hydrometer.Reading
	history []hydrometer.Reading
}

// NewHub returns an idle hub. Call Prime (optionally) and then Run.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan hydrometer.Reading, 256),
		clients:    make(map[*Client]bool),
	}
}

// Prime seeds the replay buffer and last-known reading from persisted
// history, so subscribers connecting right after a restart still get a
// snapshot. Must be called before Run.
func (h *Hub) Prime(last *hydrometer.Reading, history []hydrometer.Reading) {
	if len(history) > SnapshotSize {
		history = history[len(history)-SnapshotSize:]
	}
	h.history = append(h.history[:0], history...)
	h.last = last
}

// Publish hands a freshly ingested reading to the hub. It never blocks
// ingestion: if the hub is saturated the reading is dropped from the
// live stream (subscribers recover it from history on reconnect).
func (h *Hub) Publish(reading hydrometer.Reading) {
	select {
	case h.publish <- reading:
	default:
		h.logger.Warn().Int64("ts", reading.Ts).Msg("hub saturated, dropping live push")
	}
}

// Run processes register/unregister/publish events until ctx is done,
// then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.greet(client)
			h.clients[client] = true
			h.logger.Debug().Int("clients", len(h.clients)).Msg("subscriber connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug().Int("clients", len(h.clients)).Msg("subscriber disconnected")
			}

		case reading := <-h.publish:
			h.remember(reading)
			h.broadcast(reading)
		}
	}
}

// greet queues the handshake frames: the last-known reading (an empty
// object before first ingestion, matching /api/current), then the
// history snapshot if there is any.
func (h *Hub) greet(client *Client) {
	var lastPayload any = struct{}{}
	if h.last != nil {
		lastPayload = *h.last
	}
	if frame, err := DataMessage(lastPayload); err == nil {
		client.queue(frame)
	}

	if len(h.history) == 0 {
		return
	}
	frame, err := HistoryInitMessage(h.history)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to build history snapshot")
		return
	}
	client.queue(frame)
}

// remember tracks last/history from the delivered stream, not the
// bridge's cache. Under saturation Publish drops readings, so this view
// may trail /api/current; a subscriber's snapshot is only ever built
// from frames that were actually delivered, which keeps the
// no-gap/no-duplicate ordering per connection intact.
func (h *Hub) remember(reading hydrometer.Reading) {
	h.last = &reading
	h.history = append(h.history, reading)
	if len(h.history) > SnapshotSize {
		h.history = h.history[len(h.history)-SnapshotSize:]
	}
}

func (h *Hub) broadcast(reading hydrometer.Reading) {
	frame, err := DataMessage(reading)
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to marshal data frame")
		return
	}
	for client := range h.clients {
		select {
		case client.send <- frame:
		default:
			// Slow consumer: drop the connection rather than the stream.
			close(client.send)
			delete(h.clients, client)
			h.logger.Info().Msg("dropping slow subscriber")
		}
	}
}
