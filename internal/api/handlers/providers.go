package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/internal/providers"
	"github.com/cliphaven/cliphaven/internal/router"
)

// secretKeys maps provider ids to the secret store key of their credential.
var secretKeys = map[string]string{
	providers.AnthropicID: providers.AnthropicSecretKey,
	providers.OpenAIID:    providers.OpenAISecretKey,
}

// GET /api/v1/providers
func (h *Handlers) ListProviders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Router.Providers(r.Context()))
}

// POST /api/v1/providers/{id}/probe
func (h *Handlers) ProbeProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.Router.Probe(r.Context(), id)
	if err != nil {
		if errors.Is(err, router.ErrUnknownProvider) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Str("provider", id).Bool("healthy", result.Healthy).Int64("latency_ms", result.LatencyMs).Msg("Provider probed")
	respondJSON(w, http.StatusOK, result)
}

// PUT /api/v1/providers/{id}/credential
func (h *Handlers) SaveCredential(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	key, ok := secretKeys[id]
	if !ok {
		respondError(w, http.StatusNotFound, "provider has no credential: "+id)
		return
	}
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := decode(w, r, &req); err != nil || strings.TrimSpace(req.APIKey) == "" {
		respondError(w, http.StatusBadRequest, "api_key is required")
		return
	}
	if !h.Secrets.Save(key, strings.TrimSpace(req.APIKey)) {
		respondError(w, http.StatusInternalServerError, "Failed to store credential")
		return
	}
	log.Info().Str("provider", id).Msg("Provider credential saved")
	respondJSON(w, http.StatusOK, map[string]string{"status": "saved", "provider": id})
}

// DELETE /api/v1/providers/{id}/credential
func (h *Handlers) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	key, ok := secretKeys[id]
	if !ok {
		respondError(w, http.StatusNotFound, "provider has no credential: "+id)
		return
	}
	if !h.Secrets.Delete(key) {
		respondError(w, http.StatusNotFound, "no credential stored for "+id)
		return
	}
	log.Info().Str("provider", id).Msg("Provider credential deleted")
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "provider": id})
}
