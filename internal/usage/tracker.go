// Package usage keeps a rolling log of completed AI provider calls and their
// estimated cost.
package usage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/pkg/contracts"
	"github.com/cliphaven/cliphaven/pkg/models"
)

// BlobKey is the blob store key holding the persisted log.
const BlobKey = "usage_log"

// Retention is how long records are kept.
const Retention = 30 * 24 * time.Hour

const formatVersion = 1

// persisted is the JSON shape written to the blob store.
type persisted struct {
	Version int                  `json:"version"`
	Records []models.UsageRecord `json:"records"`
}

// Tracker records provider calls. Safe for concurrent use. Blob writes happen
// outside mu, so readers never wait on disk.
type Tracker struct {
	mu      sync.Mutex
	records []models.UsageRecord
	seq     uint64 // bumped per snapshot, guarded by mu
	prices  PriceTable
	blobs   contracts.BlobStore // nil = no persistence
	now     func() time.Time

	writeMu sync.Mutex
	written uint64 // newest snapshot written, guarded by writeMu
}

// snapshot is a copy of the log taken under mu.
type snapshot struct {
	seq     uint64
	records []models.UsageRecord
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPrices replaces the default price table.
func WithPrices(p PriceTable) Option {
	return func(t *Tracker) { t.prices = p }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker and loads any previously persisted log from
// blobs. A missing or unreadable log starts empty.
func NewTracker(ctx context.Context, blobs contracts.BlobStore, opts ...Option) *Tracker {
	t := &Tracker{
		prices: DefaultPrices,
		blobs:  blobs,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.load(ctx)
	return t
}

func (t *Tracker) load(ctx context.Context) {
	if t.blobs == nil {
		return
	}
	data, err := t.blobs.Get(ctx, BlobKey)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load usage log, starting empty")
		return
	}
	if len(data) == 0 {
		return
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Msg("Usage log is malformed, starting empty")
		return
	}
	if p.Version != formatVersion {
		log.Warn().Int("version", p.Version).Msg("Unknown usage log version, starting empty")
		return
	}
	t.mu.Lock()
	t.records = p.Records
	t.pruneLocked()
	t.mu.Unlock()
	log.Debug().Int("records", len(p.Records)).Msg("Usage log loaded")
}

// RecordCall appends a record for one completed call, prunes expired records
// and persists the log. Persistence failures are logged, never returned.
func (t *Tracker) RecordCall(providerID string, estimatedTokens int) models.UsageRecord {
	if estimatedTokens < 0 {
		estimatedTokens = 0
	}
	rec := models.UsageRecord{
		ProviderID:      providerID,
		Timestamp:       t.now(),
		EstimatedTokens: estimatedTokens,
		EstimatedCost:   float64(estimatedTokens) / 1000 * t.prices.Price(providerID),
	}

	t.mu.Lock()
	t.records = append(t.records, rec)
	t.pruneLocked()
	if t.blobs == nil {
		t.mu.Unlock()
		return rec
	}
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.persist(snap)
	return rec
}

// Price returns the per-1K token price for a provider.
func (t *Tracker) Price(providerID string) float64 {
	return t.prices.Price(providerID)
}

// Today returns stats for the current local calendar day.
func (t *Tracker) Today() models.UsageStats {
	now := t.now()
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return t.Range(start, start.AddDate(0, 0, 1))
}

// Range returns stats for records with from <= timestamp < to.
func (t *Tracker) Range(from, to time.Time) models.UsageStats {
	stats := models.UsageStats{
		From:       from,
		To:         to,
		ByProvider: make(map[string]models.ProviderUsage),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.records {
		if r.Timestamp.Before(from) || !r.Timestamp.Before(to) {
			continue
		}
		stats.Calls++
		stats.Tokens += r.EstimatedTokens
		stats.Cost += r.EstimatedCost

		p := stats.ByProvider[r.ProviderID]
		p.Calls++
		p.Tokens += r.EstimatedTokens
		p.Cost += r.EstimatedCost
		stats.ByProvider[r.ProviderID] = p
	}
	return stats
}

// Records returns a copy of the log, oldest first.
func (t *Tracker) Records() []models.UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.UsageRecord, len(t.records))
	copy(out, t.records)
	return out
}

// pruneLocked drops records older than the retention window.
func (t *Tracker) pruneLocked() {
	cutoff := t.now().Add(-Retention)
	kept := t.records[:0]
	for _, r := range t.records {
		if !r.Timestamp.Before(cutoff) {
			kept = append(kept, r)
		}
	}
	t.records = kept
}

func (t *Tracker) snapshotLocked() snapshot {
	t.seq++
	recs := make([]models.UsageRecord, len(t.records))
	copy(recs, t.records)
	return snapshot{seq: t.seq, records: recs}
}

// persist writes snap unless a newer snapshot was already written.
func (t *Tracker) persist(snap snapshot) {
	if t.blobs == nil {
		return
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if snap.seq <= t.written {
		return
	}
	t.written = snap.seq

	data, err := json.Marshal(persisted{Version: formatVersion, Records: snap.records})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode usage log")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.blobs.Put(ctx, BlobKey, data); err != nil {
		log.Warn().Err(err).Msg("Failed to persist usage log")
	}
}
