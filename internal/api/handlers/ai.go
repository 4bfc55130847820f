package handlers

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/internal/router"
	"github.com/cliphaven/cliphaven/pkg/models"
)

// askContextLimit is how many search results back a question that names no
// items.
const askContextLimit = 5

// resolveAsk validates the request and fills its context items. Without
// explicit ids the question itself is searched for context.
func (h *Handlers) resolveAsk(w http.ResponseWriter, r *http.Request) (*models.AskRequest, bool) {
	var req models.AskRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if err := h.checkProvider(req.Provider); err != nil {
		respondAIError(w, r, err)
		return nil, false
	}

	if len(req.ItemIDs) > 0 {
		req.Items = h.Items.Resolve(req.ItemIDs)
	} else if h.Search != nil && req.Question != "" {
		for _, it := range h.Search.Search(r.Context(), req.Question, askContextLimit).Items {
			req.Items = append(req.Items, *it)
		}
	}
	return &req, true
}

// POST /api/v1/ask
func (h *Handlers) Ask(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolveAsk(w, r)
	if !ok {
		return
	}
	completion, err := h.Router.Answer(r.Context(), req)
	if err != nil {
		respondAIError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, completion)
}

// POST /api/v1/ask/stream
func (h *Handlers) AskStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.resolveAsk(w, r)
	if !ok {
		return
	}
	if req.Question == "" {
		respondAIError(w, r, router.ErrEmptyInput)
		return
	}

	sse, ok := newSSE(w)
	if !ok {
		respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	_, err := h.Router.StreamAnswer(r.Context(), req, func(chunk models.StreamChunk) error {
		return sse.send("", chunk)
	})
	if err != nil && r.Context().Err() == nil {
		log.Warn().Err(err).Msg("Streamed answer failed")
		sse.send("", models.StreamChunk{Error: router.UserMessage(err), Done: true})
	}
}

// POST /api/v1/analyze-image
func (h *Handlers) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	var req models.ImageRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.checkProvider(req.Provider); err != nil {
		respondAIError(w, r, err)
		return
	}
	if req.MediaType == "" {
		req.MediaType = http.DetectContentType(req.Image)
	}
	completion, err := h.Router.AnalyzeImage(r.Context(), &req)
	if err != nil {
		respondAIError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, completion)
}
