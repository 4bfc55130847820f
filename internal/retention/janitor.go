// Package retention purges clipboard items older than the configured
// retention window.
//
// The janitor runs as a background goroutine and respects context
// cancellation. When an archive store is configured, expired items are
// written there first; archive failures are fail-safe and nothing is deleted
// in that cycle. Sensitive items are never archived.
package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/pkg/contracts"
	"github.com/cliphaven/cliphaven/pkg/models"
)

// DefaultInterval is how often a cycle runs.
const DefaultInterval = time.Hour

// ItemStore is the part of the item store the janitor needs.
type ItemStore interface {
	Items() []*models.Item
	Delete(id string) (*models.Item, error)
}

// Remover drops items from the semantic index.
type Remover interface {
	Remove(ctx context.Context, item *models.Item) error
}

// CycleStats tracks what happened in a single retention cycle.
type CycleStats struct {
	Expired    int
	Archived   int
	Purged     int
	ArchiveKey string
	Errors     []error
}

// ArchiveRecord is the JSON document written to the archive store.
type ArchiveRecord struct {
	ID         string        `json:"id"`
	ArchivedAt time.Time     `json:"archived_at"`
	Cutoff     time.Time     `json:"cutoff"`
	Items      []models.Item `json:"items"`
}

// Janitor periodically purges expired items.
type Janitor struct {
	items    ItemStore
	maxAge   time.Duration
	interval time.Duration
	index    Remover
	archive  contracts.BlobStore
	now      func() time.Time
}

// Option configures a Janitor.
type Option func(*Janitor)

// WithIndex removes purged items from the semantic index.
func WithIndex(r Remover) Option {
	return func(j *Janitor) { j.index = r }
}

// WithArchive archives expired items before purging them.
func WithArchive(b contracts.BlobStore) Option {
	return func(j *Janitor) { j.archive = b }
}

// WithInterval sets the cycle interval. Values under a minute are ignored.
func WithInterval(d time.Duration) Option {
	return func(j *Janitor) {
		if d >= time.Minute {
			j.interval = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(j *Janitor) { j.now = now }
}

// NewJanitor creates a janitor purging items older than maxAge.
func NewJanitor(items ItemStore, maxAge time.Duration, opts ...Option) *Janitor {
	j := &Janitor{
		items:    items,
		maxAge:   maxAge,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start runs cycles until ctx is canceled. It blocks.
func (j *Janitor) Start(ctx context.Context) {
	log.Info().
		Dur("interval", j.interval).
		Dur("max_age", j.maxAge).
		Bool("archive", j.archive != nil).
		Msg("Retention janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	j.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Retention janitor stopped")
			return
		case <-ticker.C:
			j.RunCycle(ctx)
		}
	}
}

// RunCycle purges every item created before now - maxAge.
func (j *Janitor) RunCycle(ctx context.Context) CycleStats {
	var stats CycleStats
	cutoff := j.now().Add(-j.maxAge)

	var expired []*models.Item
	for _, it := range j.items.Items() {
		if it.CreatedAt.Before(cutoff) {
			expired = append(expired, it)
		}
	}
	stats.Expired = len(expired)
	if len(expired) == 0 {
		return stats
	}

	if j.archive != nil {
		key, n, err := j.archiveItems(ctx, expired, cutoff)
		if err != nil {
			log.Error().Err(err).Int("expired", len(expired)).Msg("Archive failed, skipping purge")
			stats.Errors = append(stats.Errors, err)
			return stats
		}
		stats.ArchiveKey, stats.Archived = key, n
	}

	for _, it := range expired {
		removed, err := j.items.Delete(it.ID)
		if err != nil {
			// Deleted concurrently.
			continue
		}
		stats.Purged++
		if j.index != nil {
			if err := j.index.Remove(ctx, removed); err != nil {
				stats.Errors = append(stats.Errors, fmt.Errorf("remove %s from index: %w", removed.ID, err))
			}
		}
	}

	log.Info().
		Int("expired", stats.Expired).
		Int("archived", stats.Archived).
		Int("purged", stats.Purged).
		Time("cutoff", cutoff).
		Msg("Retention cycle complete")
	return stats
}

func (j *Janitor) archiveItems(ctx context.Context, expired []*models.Item, cutoff time.Time) (string, int, error) {
	rec := ArchiveRecord{
		ID:         uuid.New().String(),
		ArchivedAt: j.now().UTC(),
		Cutoff:     cutoff.UTC(),
	}
	for _, it := range expired {
		if !it.Sensitive {
			rec.Items = append(rec.Items, *it)
		}
	}
	if len(rec.Items) == 0 {
		return "", 0, nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", 0, fmt.Errorf("marshal archive: %w", err)
	}
	key := "archive_" + rec.ArchivedAt.Format("20060102T150405") + "_" + rec.ID[:8]
	if err := j.archive.Put(ctx, key, data); err != nil {
		return "", 0, fmt.Errorf("write archive %s: %w", key, err)
	}
	return key, len(rec.Items), nil
}
