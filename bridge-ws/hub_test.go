package bridgews

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/tj/assert"

	"github.com/hydrotel/hydrobridge/hydrometer"
)

func receiveFrame(t *testing.T, client *Client) *Message {
	t.Helper()
	select {
	case frame := <-client.send:
		msg, err := ParseMessage(frame)
		assert.NoError(t, err)
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func decodeReading(t *testing.T, payload json.RawMessage) hydrometer.Reading {
	t.Helper()
	var reading hydrometer.Reading
	assert.NoError(t, json.Unmarshal(payload, &reading))
	return reading
}

func TestHubHandshake(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	last := hydrometer.Reading{Ts: 3000, TotalLiters: 3}
	hub.Prime(&last, []hydrometer.Reading{{Ts: 1000}, {Ts: 2000}, {Ts: 3000, TotalLiters: 3}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{hub: hub, send: make(chan []byte, sendBufferSize)}
	hub.register <- client

	// First frame: the last-known reading.
	msg := receiveFrame(t, client)
	assert.Equal(t, EventData, msg.Event)
	assert.Equal(t, last, decodeReading(t, msg.Payload))

	// Second frame: the history snapshot, oldest first.
	msg = receiveFrame(t, client)
	assert.Equal(t, EventHistoryInit, msg.Event)
	var history []hydrometer.Reading
	assert.NoError(t, json.Unmarshal(msg.Payload, &history))
	assert.Len(t, history, 3)
	assert.Equal(t, int64(1000), history[0].Ts)

	// Live push arrives after the snapshot, no gap and no duplicate.
	hub.Publish(hydrometer.Reading{Ts: 4000, FlowLmin: 1.5})
	msg = receiveFrame(t, client)
	assert.Equal(t, EventData, msg.Event)
	assert.Equal(t, int64(4000), decodeReading(t, msg.Payload).Ts)
}

func TestHubHandshakeBeforeFirstIngestion(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{hub: hub, send: make(chan []byte, sendBufferSize)}
	hub.register <- client

	// Empty-object data frame and no history:init at all.
	msg := receiveFrame(t, client)
	assert.Equal(t, EventData, msg.Event)
	assert.Equal(t, "{}", string(msg.Payload))

	hub.Publish(hydrometer.Reading{Ts: 500})
	msg = receiveFrame(t, client)
	assert.Equal(t, EventData, msg.Event)
}

func TestHubSnapshotStaysBounded(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	// Drive the hub's event handlers directly so the test observes one
	// deterministic ordering of publishes and the handshake.
	for i := 0; i < SnapshotSize+50; i++ {
		hub.remember(hydrometer.Reading{Ts: int64(i)})
	}

	client := &Client{hub: hub, send: make(chan []byte, sendBufferSize)}
	hub.greet(client)

	_ = receiveFrame(t, client) // last-known
	msg := receiveFrame(t, client)
	assert.Equal(t, EventHistoryInit, msg.Event)
	var history []hydrometer.Reading
	assert.NoError(t, json.Unmarshal(msg.Payload, &history))
	assert.Len(t, history, SnapshotSize)
	assert.Equal(t, int64(50), history[0].Ts)
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{hub: hub, send: make(chan []byte, sendBufferSize)}
	hub.register <- client
	_ = receiveFrame(t, client)

	hub.unregister <- client
	if _, ok := <-client.send; ok {
		t.Fatal("send channel should be closed after unregister")
	}
}

func TestProtocolMessages(t *testing.T) {
	t.Run("data round trip", func(t *testing.T) {
		frame, err := DataMessage(hydrometer.Reading{Ts: 1, TotalLiters: 2, FlowLmin: 3})
		assert.NoError(t, err)
		msg, err := ParseMessage(frame)
		assert.NoError(t, err)
		assert.Equal(t, EventData, msg.Event)
	})

	t.Run("missing event rejected", func(t *testing.T) {
		_, err := ParseMessage([]byte(`{"payload":{}}`))
		assert.Error(t, err)
	})

	t.Run("invalid json rejected", func(t *testing.T) {
		_, err := ParseMessage([]byte(`nope`))
		assert.Error(t, err)
	})
}
