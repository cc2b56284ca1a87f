package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/devaloi/parley/internal/client"
	"github.com/devaloi/parley/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS handles WebSocket upgrade requests. The user query parameter is the
// sender identity of the session.
func ServeWS(h *hub.Hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := r.URL.Query().Get("user")
		if user == "" {
			writeError(w, http.StatusBadRequest, "user query param required")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("WebSocket upgrade failed", "error", err)
			return
		}

		c := client.New(h, conn, user, log)
		go c.ReadPump()
		go c.WritePump()
	}
}
