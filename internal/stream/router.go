package stream

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router mounts the hub:
//
//	GET  /ws        websocket stream
//	GET  /state     current engine state
//	GET  /snapshot  snapshot at the current time
//	GET  /issues    validation issues of the loaded timeline
//	POST /control   transport command, same body as over the websocket
//	GET  /healthz
func (h *Hub) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/ws", h.ServeWS)
	r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.ctrl.State())
	})
	r.Get("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.ctrl.Snapshot())
	})
	r.Get("/issues", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.ctrl.Issues())
	})
	r.Post("/control", h.handleControl)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": h.ClientCount()})
	})
	return r
}

func (h *Hub) handleControl(w http.ResponseWriter, r *http.Request) {
	var cmd Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, Message{Type: TypeError, Error: "malformed command"})
		return
	}
	if err := h.Apply(cmd); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUnknownAction) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, Message{Type: TypeError, Error: err.Error()})
		return
	}
	state := h.ctrl.State()
	writeJSON(w, http.StatusOK, Message{Type: TypeState, State: &state})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
