package bridge

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	bridgerest "github.com/hydrotel/hydrobridge/bridge-rest"
	bridgestore "github.com/hydrotel/hydrobridge/bridge-store"
	"github.com/hydrotel/hydrobridge/hydrometer"
)

// historyQueryLimit is the /api/history default, which intentionally
// differs from the store's own Recent default.
const historyQueryLimit = 1000

// Routes registers the bridge's HTTP surface on a router.
func (b *Bridge) Routes(r chi.Router) {
	r.Post("/api/data", b.handleData)
	r.Get("/api/current", b.handleCurrent)
	r.Get("/api/history", b.handleHistory)
	r.Post("/api/cmd", b.handleCommand)
	r.Get("/api/cmd", b.handleCommandQuery)
	r.Get("/api/debug/history-size", b.handleHistorySize)
	r.Get("/healthz", b.handleHealthz)
}

// handleData is the HTTP ingestion adapter. This is a trusted local
// path, so validation is loose: whatever the body decodes to is
// normalized, and the response is always 200 {"status":"ok"}. A body
// that is not JSON at all is logged and discarded without touching the
// cache, the subscribers, or storage.
func (b *Bridge) handleData(w http.ResponseWriter, req *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
		b.logger.Warn().Err(err).Msg("invalid /api/data body, discarding")
		payloadsDiscarded.Inc()
		bridgerest.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	b.Ingest(hydrometer.Normalize(raw))
	readingsIngested.WithLabelValues("http").Inc()
	bridgerest.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (b *Bridge) handleCurrent(w http.ResponseWriter, req *http.Request) {
	if reading, ok := b.Current(); ok {
		bridgerest.JSON(w, http.StatusOK, reading)
		return
	}
	bridgerest.JSON(w, http.StatusOK, struct{}{})
}

func (b *Bridge) handleHistory(w http.ResponseWriter, req *http.Request) {
	if b.Degraded() {
		bridgerest.JSON(w, http.StatusOK, map[string]any{
			"history": nonNil(b.ring.All()),
			"note":    "mem",
		})
		return
	}

	query := req.URL.Query()
	from := parseMillis(query.Get("from"))
	to := parseMillis(query.Get("to"))
	limit := bridgestore.ClampLimit(parseInt(query.Get("limit")), historyQueryLimit)

	history := b.History(from, to, limit)
	bridgerest.JSON(w, http.StatusOK, map[string]any{"history": nonNil(history)})
}

func (b *Bridge) handleCommand(w http.ResponseWriter, req *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(req.Body).Decode(&raw); err != nil {
		b.logger.Debug().Err(err).Msg("unparseable /api/cmd body")
	}
	b.publishCommand(w, hydrometer.NormalizeCommand(raw))
}

func (b *Bridge) handleCommandQuery(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	action := query.Get("action")

	var value float64
	hasValue := false
	if raw := query.Get("value"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			value, hasValue = parsed, true
		}
	}
	b.publishCommand(w, hydrometer.NewCommand(action, value, hasValue))
}

func (b *Bridge) publishCommand(w http.ResponseWriter, cmd hydrometer.Command) {
	if err := b.SendCommand(cmd); err != nil {
		b.logger.Error().Err(err).Str("action", cmd.Action).Msg("command publish failed")
		bridgerest.Error(w, http.StatusInternalServerError, err)
		return
	}
	bridgerest.JSON(w, http.StatusOK, map[string]any{
		"status": "sent",
		"topic":  b.cmdTopic,
		"cmd":    cmd,
	})
}

// handleHistorySize reports which sink is active and how full the ring
// is. Kept for the dashboard's debug panel.
func (b *Bridge) handleHistorySize(w http.ResponseWriter, req *http.Request) {
	bridgerest.JSON(w, http.StatusOK, map[string]any{
		"usingDB": !b.Degraded(),
		"memSize": b.ring.Len(),
	})
}

func (b *Bridge) handleHealthz(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func parseMillis(raw string) int64 {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func parseInt(raw string) int {
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}

func nonNil(readings []hydrometer.Reading) []hydrometer.Reading {
	if readings == nil {
		return []hydrometer.Reading{}
	}
	return readings
}
