// Package bridge is the core of hydrobridge: it fans in readings from
// the MQTT data topic and the HTTP ingestion endpoint into one canonical
// stream, broadcasts every accepted reading to the live subscribers,
// records it durably (or in the memory ring when the store is absent),
// and republishes operator commands to the device.
package bridge

import (
	"sync"

	"github.com/rs/zerolog"

	bridgestore "github.com/hydrotel/hydrobridge/bridge-store"
	"github.com/hydrotel/hydrobridge/bridge-store/memring"
	bridgews "github.com/hydrotel/hydrobridge/bridge-ws"
	"github.com/hydrotel/hydrobridge/hydrometer"
)

// CommandPublisher forwards a command payload to the device's command
// topic. Implemented by bridgemqtt.Client.
type CommandPublisher interface {
	Publish(topic string, payload any) error
}

// Config wires the bridge's collaborators. Store may be nil: the bridge
// then runs degraded for the whole process lifetime, buffering history
// in the ring. The decision is made once, here, and never re-evaluated.
type Config struct {
	Logger   zerolog.Logger
	Store    bridgestore.Store
	Ring     *memring.Ring
	Hub      *bridgews.Hub
	Commands CommandPublisher
	CmdTopic string
}

// Bridge owns the process-wide ingestion state: the last-known reading
// and the chosen history sink. It is the sole writer to both.
type Bridge struct {
	logger   zerolog.Logger
	store    bridgestore.Store
	ring     *memring.Ring
	hub      *bridgews.Hub
	commands CommandPublisher
	cmdTopic string

	mu   sync.Mutex
	last *hydrometer.Reading
}

// New builds a bridge and primes the hub's snapshot buffer from the
// durable store, so subscribers connecting right after a restart still
// receive history. The last-known reading always starts empty: it
// reflects this process's ingestion, not stored history.
func New(cfg Config) *Bridge {
	b := &Bridge{
		logger:   cfg.Logger,
		store:    cfg.Store,
		ring:     cfg.Ring,
		hub:      cfg.Hub,
		commands: cfg.Commands,
		cmdTopic: cfg.CmdTopic,
	}
	if b.ring == nil {
		b.ring = memring.New(memring.DefaultCapacity)
	}
	if b.hub != nil && b.store != nil {
		b.hub.Prime(nil, b.store.Recent(bridgews.SnapshotSize))
	}
	if b.store == nil {
		b.logger.Warn().Msg("no durable store, running degraded on the memory ring")
	}
	return b
}

// Ingest is the single convergence point for both entry paths: it
// overwrites the last-known cache, hands the reading to the hub (before
// persistence, so subscribers never wait on storage latency), and then
// records it.
func (b *Bridge) Ingest(reading hydrometer.Reading) {
	b.mu.Lock()
	b.last = &reading
	b.mu.Unlock()

	if b.hub != nil {
		b.hub.Publish(reading)
	}

	if b.store != nil {
		b.store.Insert(reading)
	} else {
		b.ring.Push(reading)
	}
}

// HandleDeviceMessage is the MQTT adapter: it parses a data-topic
// payload and ingests it. A malformed message is logged and discarded —
// it must never crash the bridge or touch the last-known cache.
func (b *Bridge) HandleDeviceMessage(payload []byte) {
	reading, err := hydrometer.ParseReading(payload)
	if err != nil {
		b.logger.Warn().Err(err).Msg("invalid mqtt payload, discarding")
		payloadsDiscarded.Inc()
		return
	}
	b.Ingest(reading)
	readingsIngested.WithLabelValues("mqtt").Inc()
}

// Current returns the last-known reading; ok is false before the first
// ingestion of this process.
func (b *Bridge) Current() (hydrometer.Reading, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last == nil {
		return hydrometer.Reading{}, false
	}
	return *b.last, true
}

// Degraded reports whether the bridge is running without durable
// storage.
func (b *Bridge) Degraded() bool {
	return b.store == nil
}

// History answers a history query. In degraded mode it returns the
// ring's full contents and ignores the filters, exactly as the query
// endpoints advertise. Range filters take precedence over limit.
func (b *Bridge) History(from, to int64, limit int) []hydrometer.Reading {
	if b.store == nil {
		return b.ring.All()
	}
	if from > 0 || to > 0 {
		return b.store.Range(from, to)
	}
	return b.store.Recent(limit)
}

// SendCommand republishes an operator command on the device command
// topic. Publish failures surface to the caller; there is no retry.
func (b *Bridge) SendCommand(cmd hydrometer.Command) error {
	if err := b.commands.Publish(b.cmdTopic, cmd); err != nil {
		return err
	}
	commandsPublished.Inc()
	return nil
}
