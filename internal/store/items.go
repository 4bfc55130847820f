package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/pkg/models"
)

// DefaultItemCapacity bounds the working set; the oldest items are evicted.
const DefaultItemCapacity = 1000

// itemSnapshot is the JSON shape written to disk.
type itemSnapshot struct {
	Items []*models.Item `json:"items"`
}

// ItemStore holds captured clipboard items in memory, most recent first.
// Items() returns copies, so callers never observe later mutations.
type ItemStore struct {
	mu       sync.RWMutex
	items    []*models.Item // newest first
	capacity int
	now      func() time.Time

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{}
	saveDelay    time.Duration
}

// ItemOption configures an ItemStore.
type ItemOption func(*ItemStore)

// WithItemCapacity sets the maximum number of items kept.
func WithItemCapacity(n int) ItemOption {
	return func(s *ItemStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithSnapshot persists non-sensitive items to path. Writes are debounced.
func WithSnapshot(path string) ItemOption {
	return func(s *ItemStore) { s.snapshotPath = path }
}

// WithItemClock replaces the clock used to stamp new items.
func WithItemClock(now func() time.Time) ItemOption {
	return func(s *ItemStore) { s.now = now }
}

// NewItemStore creates an item store and loads the snapshot if configured.
func NewItemStore(opts ...ItemOption) *ItemStore {
	s := &ItemStore{
		capacity:  DefaultItemCapacity,
		now:       time.Now,
		saveCh:    make(chan struct{}, 1),
		doneCh:    make(chan struct{}),
		saveDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.snapshotPath != "" {
		if err := os.MkdirAll(filepath.Dir(s.snapshotPath), 0o700); err != nil {
			log.Warn().Err(err).Str("path", s.snapshotPath).Msg("Cannot create data dir, item persistence disabled")
			s.snapshotPath = ""
		}
	}
	if s.snapshotPath != "" {
		s.loadSnapshot()
		go s.saveLoop()
	}

	log.Info().Int("capacity", s.capacity).Str("snapshot", s.snapshotPath).Msg("Item store configured")
	return s
}

// Add stores a new item at the front. ID, EmbeddingID, CreatedAt and Kind
// are filled in when empty. The stored copy is returned.
func (s *ItemStore) Add(item models.Item) *models.Item {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.EmbeddingID == "" {
		item.EmbeddingID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}
	if item.Kind == "" {
		item.Kind = classify(item.Content)
	}
	stored := cloneItem(&item)

	s.mu.Lock()
	for i, it := range s.items {
		if it.ID == stored.ID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	s.items = append([]*models.Item{stored}, s.items...)
	var evicted []*models.Item
	if len(s.items) > s.capacity {
		evicted = s.items[s.capacity:]
		s.items = s.items[:s.capacity:s.capacity]
	}
	s.mu.Unlock()

	if len(evicted) > 0 {
		log.Debug().Int("evicted", len(evicted)).Msg("Evicted oldest items")
	}
	s.requestSave()
	return cloneItem(stored)
}

// Items returns a most-recent-first snapshot of the working set.
func (s *ItemStore) Items() []*models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Item, len(s.items))
	for i, it := range s.items {
		out[i] = cloneItem(it)
	}
	return out
}

// Get returns a copy of the item with the given id.
func (s *ItemStore) Get(id string) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.items {
		if it.ID == id {
			return cloneItem(it), nil
		}
	}
	return nil, &ErrNotFound{Entity: "item", Key: id}
}

// Resolve returns the items for ids, in the given order, skipping unknown ids.
func (s *ItemStore) Resolve(ids []string) []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Item, 0, len(ids))
	for _, id := range ids {
		for _, it := range s.items {
			if it.ID == id {
				out = append(out, *cloneItem(it))
				break
			}
		}
	}
	return out
}

// SetTags replaces the item's tags.
func (s *ItemStore) SetTags(id string, tags []string) (*models.Item, error) {
	s.mu.Lock()
	var updated *models.Item
	for _, it := range s.items {
		if it.ID == id {
			it.Tags = append([]string(nil), tags...)
			updated = cloneItem(it)
			break
		}
	}
	s.mu.Unlock()

	if updated == nil {
		return nil, &ErrNotFound{Entity: "item", Key: id}
	}
	s.requestSave()
	return updated, nil
}

// Delete removes the item and returns it.
func (s *ItemStore) Delete(id string) (*models.Item, error) {
	s.mu.Lock()
	var removed *models.Item
	for i, it := range s.items {
		if it.ID == id {
			removed = it
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if removed == nil {
		return nil, &ErrNotFound{Entity: "item", Key: id}
	}
	s.requestSave()
	return removed, nil
}

// Len returns the number of stored items.
func (s *ItemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close stops the save loop and writes a final snapshot. Safe to call
// multiple times.
func (s *ItemStore) Close() error {
	select {
	case <-s.doneCh:
		return nil
	default:
		close(s.doneCh)
	}
	if s.snapshotPath != "" {
		s.saveSnapshot()
	}
	return nil
}

// requestSave coalesces rapid writes into one disk flush.
func (s *ItemStore) requestSave() {
	if s.snapshotPath == "" {
		return
	}
	select {
	case s.saveCh <- struct{}{}:
	default:
	}
}

func (s *ItemStore) saveLoop() {
	for {
		select {
		case <-s.doneCh:
			return
		case <-s.saveCh:
			select {
			case <-time.After(s.saveDelay):
			case <-s.doneCh:
				return
			}
			s.saveSnapshot()
		}
	}
}

// saveSnapshot writes non-sensitive items via tmp+rename.
func (s *ItemStore) saveSnapshot() {
	s.mu.RLock()
	snap := itemSnapshot{Items: make([]*models.Item, 0, len(s.items))}
	for _, it := range s.items {
		if !it.Sensitive {
			snap.Items = append(snap.Items, it)
		}
	}
	data, err := json.Marshal(snap)
	s.mu.RUnlock()
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal item snapshot")
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := writeFileAtomic(s.snapshotPath, data, 0o600); err != nil {
		log.Error().Err(err).Str("path", s.snapshotPath).Msg("Failed to write item snapshot")
		return
	}
	log.Debug().Str("path", s.snapshotPath).Int("items", len(snap.Items)).Msg("Item snapshot saved")
}

func (s *ItemStore) loadSnapshot() {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.snapshotPath).Msg("Failed to read item snapshot")
		}
		return
	}
	var snap itemSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", s.snapshotPath).Msg("Failed to parse item snapshot, starting fresh")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range snap.Items {
		if it != nil && it.ID != "" {
			s.items = append(s.items, it)
		}
	}
	if len(s.items) > s.capacity {
		s.items = s.items[:s.capacity]
	}
	log.Info().Int("items", len(s.items)).Str("path", s.snapshotPath).Msg("Item snapshot loaded")
}

func cloneItem(it *models.Item) *models.Item {
	cp := *it
	cp.Tags = append([]string(nil), it.Tags...)
	return &cp
}

// classify guesses the kind of captured text.
func classify(content string) models.ItemKind {
	trimmed := strings.TrimSpace(content)
	if (strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://")) && !strings.ContainsAny(trimmed, " \n\t") {
		return models.ItemKindURL
	}
	if strings.Count(trimmed, "\n") >= 2 && strings.ContainsAny(trimmed, "{};") {
		return models.ItemKindCode
	}
	return models.ItemKindText
}
