package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/devaloi/parley/internal/domain"
	"github.com/devaloi/parley/internal/hub"
)

type createRoomRequest struct {
	Title string `json:"title"`
}

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

type pageResponse struct {
	Room      string           `json:"room"`
	Page      int              `json:"page"`
	HasOlder  bool             `json:"has_older"`
	Composing bool             `json:"composing"`
	Messages  []domain.Message `json:"messages"`
}

// Health returns a simple health check handler.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ListRooms returns the chatrooms matching the optional q filter.
func ListRooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.ListRooms(r.URL.Query().Get("q")))
	}
}

// CreateRoom creates a chatroom from a JSON {title} body.
func CreateRoom(h *hub.Hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		room, err := h.CreateRoom(req.Title)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, room)
	}
}

// RoomInfo returns one chatroom.
func RoomInfo(h *hub.Hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := h.Room(r.PathValue("id"))
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	}
}

// DeleteRoom deletes a chatroom and its messages.
func DeleteRoom(h *hub.Hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.DeleteRoom(r.PathValue("id")); err != nil {
			writeDomainError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Messages returns the visible slice of a room at ?page=N (default 1).
func Messages(h *hub.Hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "page must be a positive integer")
				return
			}
			page = n
		}
		msgs, page, hasOlder, err := h.Page(id, page)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, pageResponse{
			Room:      id,
			Page:      page,
			HasOlder:  hasOlder,
			Composing: h.Composing(id),
			Messages:  msgs,
		})
	}
}

// SendMessage appends a message from ?user=U and schedules the reply.
func SendMessage(h *hub.Hub, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		msg, err := h.Send(r.URL.Query().Get("user"), r.PathValue("id"), req.Text, req.Image)
		if err != nil {
			writeDomainError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func writeDomainError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		log.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
