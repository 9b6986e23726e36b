package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/tj/assert"

	"github.com/hydrotel/hydrobridge/bridge-store/memring"
	"github.com/hydrotel/hydrobridge/hydrometer"
)

type fakeStore struct {
	readings []hydrometer.Reading
}

func (s *fakeStore) Insert(reading hydrometer.Reading) {
	s.readings = append(s.readings, reading)
}

func (s *fakeStore) Recent(limit int) []hydrometer.Reading {
	sorted := append([]hydrometer.Reading(nil), s.readings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Ts < sorted[j].Ts })
	if len(sorted) > limit {
		sorted = sorted[len(sorted)-limit:]
	}
	return sorted
}

func (s *fakeStore) Range(from, to int64) []hydrometer.Reading {
	var matched []hydrometer.Reading
	for _, reading := range s.Recent(len(s.readings)) {
		if reading.Ts >= from && reading.Ts <= to {
			matched = append(matched, reading)
		}
	}
	return matched
}

func (s *fakeStore) Close() error { return nil }

type fakePublisher struct {
	topic   string
	payload any
	err     error
}

func (p *fakePublisher) Publish(topic string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.topic = topic
	p.payload = payload
	return nil
}

func newTestBridge(t *testing.T, cfg Config) *Bridge {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	if cfg.CmdTopic == "" {
		cfg.CmdTopic = "hidrometro/leandro/cmd"
	}
	return New(cfg)
}

func serve(t *testing.T, b *Bridge, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	router := chi.NewRouter()
	b.Routes(router)

	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	assert.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func TestIngestPaths(t *testing.T) {
	t.Run("http and mqtt converge on the same cache", func(t *testing.T) {
		store := &fakeStore{}
		b := newTestBridge(t, Config{Store: store})

		w := serve(t, b, http.MethodPost, "/api/data", map[string]any{
			"totalLiters": 10.5,
			"flowLmin":    3.2,
			"ts":          1000,
		})
		assert.Equal(t, http.StatusOK, w.Code)

		current, ok := b.Current()
		assert.True(t, ok)
		assert.Equal(t, hydrometer.Reading{Ts: 1000, TotalLiters: 10.5, FlowLmin: 3.2}, current)

		b.HandleDeviceMessage([]byte(`{"totalLiters":11.0,"flowLmin":2.5,"ts":2000}`))
		current, ok = b.Current()
		assert.True(t, ok)
		assert.Equal(t, hydrometer.Reading{Ts: 2000, TotalLiters: 11.0, FlowLmin: 2.5}, current)

		assert.Len(t, store.readings, 2)
	})

	t.Run("malformed device payload is discarded", func(t *testing.T) {
		store := &fakeStore{}
		b := newTestBridge(t, Config{Store: store})

		b.HandleDeviceMessage([]byte("not json"))

		_, ok := b.Current()
		assert.False(t, ok)
		assert.Len(t, store.readings, 0)
	})

	t.Run("malformed http body is discarded but still acknowledged", func(t *testing.T) {
		store := &fakeStore{}
		b := newTestBridge(t, Config{Store: store})

		router := chi.NewRouter()
		b.Routes(router)

		req := httptest.NewRequest(http.MethodPost, "/api/data", bytes.NewBufferString("not json at all"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		decodeBody(t, w, &body)
		assert.Equal(t, "ok", body["status"])

		_, ok := b.Current()
		assert.False(t, ok)
		assert.Len(t, store.readings, 0)
	})

	t.Run("aliased fields and generated timestamps", func(t *testing.T) {
		store := &fakeStore{}
		b := newTestBridge(t, Config{Store: store})

		serve(t, b, http.MethodPost, "/api/data", map[string]any{
			"totalLiters": 10.5,
			"flowLmin":    3.2,
			"ts":          1000,
		})
		serve(t, b, http.MethodPost, "/api/data", map[string]any{
			"total":    12.0,
			"flowRate": 2.8,
		})

		current, ok := b.Current()
		assert.True(t, ok)
		assert.Equal(t, 12.0, current.TotalLiters)
		assert.Equal(t, 2.8, current.FlowLmin)
		assert.True(t, current.Ts >= 1000)

		w := serve(t, b, http.MethodGet, "/api/history?limit=2", nil)
		var body struct {
			History []hydrometer.Reading `json:"history"`
			Note    string               `json:"note"`
		}
		decodeBody(t, w, &body)
		assert.Len(t, body.History, 2)
		assert.Equal(t, "", body.Note)
		assert.True(t, body.History[0].Ts <= body.History[1].Ts)
		assert.Equal(t, 12.0, body.History[1].TotalLiters)
	})
}

func TestCurrentEndpoint(t *testing.T) {
	t.Run("empty object before first reading", func(t *testing.T) {
		b := newTestBridge(t, Config{Store: &fakeStore{}})
		w := serve(t, b, http.MethodGet, "/api/current", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "{}\n", w.Body.String())
	})

	t.Run("last reading after ingestion", func(t *testing.T) {
		b := newTestBridge(t, Config{Store: &fakeStore{}})
		b.Ingest(hydrometer.Reading{Ts: 42, TotalLiters: 1.5, FlowLmin: 0.5})

		w := serve(t, b, http.MethodGet, "/api/current", nil)
		var reading hydrometer.Reading
		decodeBody(t, w, &reading)
		assert.Equal(t, hydrometer.Reading{Ts: 42, TotalLiters: 1.5, FlowLmin: 0.5}, reading)
	})
}

func TestHistoryEndpoint(t *testing.T) {
	t.Run("range takes precedence over limit", func(t *testing.T) {
		store := &fakeStore{}
		b := newTestBridge(t, Config{Store: store})
		for i := int64(1); i <= 10; i++ {
			b.Ingest(hydrometer.Reading{Ts: i * 1000, TotalLiters: float64(i)})
		}

		w := serve(t, b, http.MethodGet, "/api/history?from=3000&to=5000&limit=1", nil)
		var body struct {
			History []hydrometer.Reading `json:"history"`
		}
		decodeBody(t, w, &body)
		assert.Len(t, body.History, 3)
		assert.Equal(t, int64(3000), body.History[0].Ts)
		assert.Equal(t, int64(5000), body.History[2].Ts)
	})

	t.Run("empty history is an array, not null", func(t *testing.T) {
		b := newTestBridge(t, Config{Store: &fakeStore{}})
		w := serve(t, b, http.MethodGet, "/api/history", nil)
		var body map[string]json.RawMessage
		decodeBody(t, w, &body)
		assert.Equal(t, "[]", string(body["history"]))
	})

	t.Run("degraded mode ignores filters and notes the fallback", func(t *testing.T) {
		b := newTestBridge(t, Config{Ring: memring.New(memring.DefaultCapacity)})
		for i := int64(1); i <= 5; i++ {
			b.Ingest(hydrometer.Reading{Ts: i * 1000, TotalLiters: float64(i)})
		}

		w := serve(t, b, http.MethodGet, "/api/history?from=2000&to=3000&limit=1", nil)
		var body struct {
			History []hydrometer.Reading `json:"history"`
			Note    string               `json:"note"`
		}
		decodeBody(t, w, &body)
		assert.Equal(t, "mem", body.Note)
		assert.Len(t, body.History, 5)
		assert.Equal(t, int64(1000), body.History[0].Ts)
	})
}

func TestCommandEndpoints(t *testing.T) {
	t.Run("post republishes on the command topic", func(t *testing.T) {
		publisher := &fakePublisher{}
		b := newTestBridge(t, Config{Store: &fakeStore{}, Commands: publisher})

		w := serve(t, b, http.MethodPost, "/api/cmd", map[string]any{
			"action": "setCalibration",
			"value":  450,
		})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "hidrometro/leandro/cmd", publisher.topic)

		cmd, ok := publisher.payload.(hydrometer.Command)
		assert.True(t, ok)
		assert.Equal(t, "setCalibration", cmd.Action)
		assert.NotNil(t, cmd.Value)
		assert.Equal(t, 450.0, *cmd.Value)

		var body struct {
			Status string             `json:"status"`
			Topic  string             `json:"topic"`
			Cmd    hydrometer.Command `json:"cmd"`
		}
		decodeBody(t, w, &body)
		assert.Equal(t, "sent", body.Status)
		assert.Equal(t, "hidrometro/leandro/cmd", body.Topic)
		assert.Equal(t, "setCalibration", body.Cmd.Action)
	})

	t.Run("get variant builds the command from query params", func(t *testing.T) {
		publisher := &fakePublisher{}
		b := newTestBridge(t, Config{Store: &fakeStore{}, Commands: publisher})

		w := serve(t, b, http.MethodGet, "/api/cmd?action=reset", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		cmd, ok := publisher.payload.(hydrometer.Command)
		assert.True(t, ok)
		assert.Equal(t, "reset", cmd.Action)
		assert.Nil(t, cmd.Value)
	})

	t.Run("publish failure surfaces as a 500", func(t *testing.T) {
		publisher := &fakePublisher{err: errors.New("broker unreachable")}
		b := newTestBridge(t, Config{Store: &fakeStore{}, Commands: publisher})

		w := serve(t, b, http.MethodPost, "/api/cmd", map[string]any{"action": "reset"})
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var body map[string]string
		decodeBody(t, w, &body)
		assert.Contains(t, body["error"], "broker unreachable")
	})
}

func TestDebugEndpoints(t *testing.T) {
	t.Run("history size reports the active sink", func(t *testing.T) {
		b := newTestBridge(t, Config{Ring: memring.New(memring.DefaultCapacity)})
		for i := 0; i < 3; i++ {
			b.Ingest(hydrometer.Reading{Ts: int64(i + 1)})
		}

		w := serve(t, b, http.MethodGet, "/api/debug/history-size", nil)
		var body struct {
			UsingDB bool `json:"usingDB"`
			MemSize int  `json:"memSize"`
		}
		decodeBody(t, w, &body)
		assert.False(t, body.UsingDB)
		assert.Equal(t, 3, body.MemSize)
	})

	t.Run("healthz", func(t *testing.T) {
		b := newTestBridge(t, Config{Store: &fakeStore{}})
		w := serve(t, b, http.MethodGet, "/healthz", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", w.Body.String())
	})
}

func TestRingEviction(t *testing.T) {
	b := newTestBridge(t, Config{Ring: memring.New(3)})
	for i := int64(1); i <= 5; i++ {
		b.Ingest(hydrometer.Reading{Ts: i})
	}

	history := b.History(0, 0, 0)
	assert.Len(t, history, 3)
	assert.Equal(t, int64(3), history[0].Ts)
	assert.Equal(t, int64(5), history[2].Ts)
}
