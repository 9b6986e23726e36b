package bridgews

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard may be served from another origin; access control is
	// out of scope for this service.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler returns the upgrade endpoint that attaches new subscribers to
// the hub.
func Handler(hub *Hub, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("ws upgrade failed")
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			logger: logger,
			send:   make(chan []byte, sendBufferSize),
		}
		client.hub.register <- client

		go client.writePump()
		go client.readPump()
	}
}
