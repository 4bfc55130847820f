package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cliphaven/cliphaven/internal/search"
	"github.com/cliphaven/cliphaven/internal/sessions"
)

// eventsKeepAlive is the idle interval between SSE pings.
const eventsKeepAlive = 15 * time.Second

// GET /api/v1/search?q=&limit=
func (h *Handlers) SearchItems(w http.ResponseWriter, r *http.Request) {
	res := h.Search.Search(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit", 0))
	respondJSON(w, http.StatusOK, res)
}

// POST /api/v1/search/sessions
func (h *Handlers) OpenSession(w http.ResponseWriter, r *http.Request) {
	s := h.Sessions.Create()
	respondJSON(w, http.StatusCreated, s.Update(""))
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*search.Session, bool) {
	s, err := h.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
		} else {
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return s, true
}

// GET /api/v1/search/sessions/{id}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		respondJSON(w, http.StatusOK, s.Snapshot())
	}
}

// POST /api/v1/search/sessions/{id}/query
func (h *Handlers) QuerySession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, s.Update(req.Query))
}

// POST /api/v1/search/sessions/{id}/select
func (h *Handlers) MoveSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Delta int `json:"delta"`
	}
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	snap := s.Move(req.Delta)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"snapshot": snap,
		"item":     s.Selected(),
	})
}

// GET /api/v1/search/sessions/{id}/events
func (h *Handlers) SessionEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	sse, ok := newSSE(w)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	sub := s.Subscribe()
	defer s.Unsubscribe(sub)
	if err := sse.send("snapshot", s.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(eventsKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-sub:
			if !open {
				sse.send("closed", map[string]string{"session_id": s.ID()})
				return
			}
			if err := sse.send("snapshot", snap); err != nil {
				return
			}
		case <-ticker.C:
			if err := sse.ping(); err != nil {
				return
			}
		}
	}
}

// DELETE /api/v1/search/sessions/{id}
func (h *Handlers) CloseSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Sessions.Delete(id); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "closed", "session_id": id})
}
