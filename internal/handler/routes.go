package handler

import (
	"log/slog"
	"net/http"

	"github.com/devaloi/parley/internal/hub"
)

// Routes registers every endpoint on a new mux.
func Routes(h *hub.Hub, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", Health())
	mux.HandleFunc("GET /api/rooms", ListRooms(h))
	mux.HandleFunc("POST /api/rooms", CreateRoom(h, log))
	mux.HandleFunc("GET /api/rooms/{id}", RoomInfo(h, log))
	mux.HandleFunc("DELETE /api/rooms/{id}", DeleteRoom(h, log))
	mux.HandleFunc("GET /api/rooms/{id}/messages", Messages(h, log))
	mux.HandleFunc("POST /api/rooms/{id}/messages", SendMessage(h, log))
	mux.HandleFunc("GET /ws", ServeWS(h, log))
	return mux
}
