// Package handlers implements the HTTP handlers of the ClipHaven API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/internal/router"
	"github.com/cliphaven/cliphaven/internal/search"
	"github.com/cliphaven/cliphaven/internal/sessions"
	"github.com/cliphaven/cliphaven/internal/store"
	"github.com/cliphaven/cliphaven/pkg/contracts"
	"github.com/cliphaven/cliphaven/pkg/models"
)

// DefaultEnrichTimeout bounds the background tag + index work per item.
const DefaultEnrichTimeout = 2 * time.Minute

// Indexer keeps the semantic index in sync with the item store.
type Indexer interface {
	Index(ctx context.Context, item *models.Item) error
	Remove(ctx context.Context, item *models.Item) error
}

// Handlers holds all handler dependencies.
type Handlers struct {
	Router   *router.Router
	Items    *store.ItemStore
	Secrets  contracts.SecretStore
	Search   *search.Engine
	Sessions *sessions.Manager
	// Index is nil when semantic search is disabled.
	Index Indexer
	// AutoTag tags captured items in the background.
	AutoTag bool
	// DetectSensitive flags captured secrets and personal data.
	DetectSensitive bool

	enrichTimeout time.Duration
	wg            sync.WaitGroup
}

// New creates a Handlers instance with all dependencies.
func New(rt *router.Router, items *store.ItemStore, secrets contracts.SecretStore, engine *search.Engine, sess *sessions.Manager, index Indexer) *Handlers {
	return &Handlers{
		Router:          rt,
		Items:           items,
		Secrets:         secrets,
		Search:          engine,
		Sessions:        sess,
		Index:           index,
		AutoTag:         true,
		DetectSensitive: true,
		enrichTimeout:   DefaultEnrichTimeout,
	}
}

// Wait blocks until background item enrichment has finished.
func (h *Handlers) Wait() {
	h.wg.Wait()
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondAIError maps a router error to a response. Provider detail is
// logged, never returned.
func respondAIError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, router.ErrEmptyInput):
		respondError(w, http.StatusBadRequest, "Request has no content to send")
	case errors.Is(err, router.ErrUnknownProvider):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		log.Debug().Str("path", r.URL.Path).Msg("Client went away during AI request")
	default:
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("AI request failed")
		respondError(w, http.StatusServiceUnavailable, router.UserMessage(err))
	}
}

// maxBodyBytes bounds request bodies; images are the largest payload.
const maxBodyBytes = 32 << 20

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}
	return fallback
}

// checkProvider rejects an unknown explicit provider id.
func (h *Handlers) checkProvider(id string) error {
	if id == "" {
		return nil
	}
	if _, ok := h.Router.Registry().Get(id); !ok {
		return fmt.Errorf("%w: %s", router.ErrUnknownProvider, id)
	}
	return nil
}
