package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/internal/guardrails"
	"github.com/cliphaven/cliphaven/internal/store"
	"github.com/cliphaven/cliphaven/internal/vectorstore"
	"github.com/cliphaven/cliphaven/pkg/models"
)

// captureRequest is the body of POST /api/v1/items.
type captureRequest struct {
	Content   string          `json:"content"`
	Title     string          `json:"title"`
	SourceApp string          `json:"source_app"`
	Kind      models.ItemKind `json:"kind"`
	Tags      []string        `json:"tags"`
	Sensitive bool            `json:"sensitive"`
}

// GET /api/v1/items?limit=N
func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	items := h.Items.Items()
	if limit := queryInt(r, "limit", 0); limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	respondJSON(w, http.StatusOK, items)
}

// POST /api/v1/items
func (h *Handlers) CaptureItem(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "content is required")
		return
	}

	sensitive := req.Sensitive
	if !sensitive && h.DetectSensitive {
		if findings := guardrails.Scan(req.Content); guardrails.Classify(findings) {
			sensitive = true
			log.Info().Interface("findings", findings).Msg("Captured content flagged as sensitive")
		}
	}

	item := h.Items.Add(models.Item{
		Content:   req.Content,
		Title:     req.Title,
		SourceApp: req.SourceApp,
		Kind:      req.Kind,
		Tags:      req.Tags,
		Sensitive: sensitive,
	})
	log.Info().Str("item", item.ID).Str("kind", string(item.Kind)).Bool("sensitive", item.Sensitive).Msg("Item captured")

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.enrich(item)
	}()

	respondJSON(w, http.StatusCreated, item)
}

// enrich tags and indexes a new item. Failures only cost the enrichment.
func (h *Handlers) enrich(item *models.Item) {
	ctx, cancel := context.WithTimeout(context.Background(), h.enrichTimeout)
	defer cancel()

	if h.AutoTag && len(item.Tags) == 0 && item.Kind != models.ItemKindImage {
		res, err := h.Router.Tags(ctx, &models.TagRequest{Content: item.Content, LocalOnly: item.Sensitive})
		if err != nil {
			log.Warn().Err(err).Str("item", item.ID).Msg("Auto-tagging failed")
		} else if updated, err := h.Items.SetTags(item.ID, res.Tags); err == nil {
			item = updated
		}
	}

	if h.Index == nil {
		return
	}
	if err := h.Index.Index(ctx, item); err != nil {
		if errors.Is(err, vectorstore.ErrSkipped) {
			log.Debug().Err(err).Str("item", item.ID).Msg("Item not indexed")
			return
		}
		log.Warn().Err(err).Str("item", item.ID).Msg("Indexing failed")
	}
}

// GET /api/v1/items/{id}
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Items.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// DELETE /api/v1/items/{id}
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Items.Delete(chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if h.Index != nil {
		if err := h.Index.Remove(r.Context(), item); err != nil {
			log.Warn().Err(err).Str("item", item.ID).Msg("Failed to remove item from index")
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": item.ID})
}

// POST /api/v1/items/{id}/tags
func (h *Handlers) RetagItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Items.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	var req struct {
		Provider string `json:"provider"`
	}
	if r.ContentLength > 0 {
		if err := decode(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if err := h.checkProvider(req.Provider); err != nil {
		respondAIError(w, r, err)
		return
	}

	res, err := h.Router.Tags(r.Context(), &models.TagRequest{
		Content:   item.Content,
		Provider:  req.Provider,
		LocalOnly: item.Sensitive,
	})
	if err != nil {
		respondAIError(w, r, err)
		return
	}
	updated, err := h.Items.SetTags(item.ID, res.Tags)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"item":     updated,
		"provider": res.Provider,
		"usage":    res.Usage,
	})
}

func respondStoreError(w http.ResponseWriter, err error) {
	var nf *store.ErrNotFound
	if errors.As(err, &nf) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
