package retention

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cliphaven/cliphaven/internal/store"
	"github.com/cliphaven/cliphaven/pkg/models"
)

type recordingIndex struct{ removed []string }

func (r *recordingIndex) Remove(_ context.Context, item *models.Item) error {
	r.removed = append(r.removed, item.ID)
	return nil
}

type failingBlobs struct{}

func (failingBlobs) Get(context.Context, string) ([]byte, error) { return nil, nil }
func (failingBlobs) Put(context.Context, string, []byte) error   { return errors.New("disk full") }

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func seed() *store.ItemStore {
	items := store.NewItemStore()
	items.Add(models.Item{ID: "old", Content: "old note", CreatedAt: now.Add(-40 * 24 * time.Hour)})
	items.Add(models.Item{ID: "old-secret", Content: "pwd", Sensitive: true, CreatedAt: now.Add(-31 * 24 * time.Hour)})
	items.Add(models.Item{ID: "fresh", Content: "new note", CreatedAt: now.Add(-time.Hour)})
	return items
}

func TestRunCycle_ArchivesThenPurges(t *testing.T) {
	items := seed()
	idx := &recordingIndex{}
	blobs := store.NewMemoryBlobStore()
	j := NewJanitor(items, 30*24*time.Hour, WithIndex(idx), WithArchive(blobs), WithClock(func() time.Time { return now }))

	stats := j.RunCycle(context.Background())
	if stats.Expired != 2 || stats.Purged != 2 || stats.Archived != 1 {
		t.Fatalf("stats = %+v, want 2 expired, 2 purged, 1 archived", stats)
	}
	if items.Len() != 1 {
		t.Errorf("items left = %d, want 1", items.Len())
	}
	if _, err := items.Get("fresh"); err != nil {
		t.Errorf("fresh item purged: %v", err)
	}
	if len(idx.removed) != 2 {
		t.Errorf("index removals = %v, want 2", idx.removed)
	}

	data, err := blobs.Get(context.Background(), stats.ArchiveKey)
	if err != nil {
		t.Fatalf("archive Get() error = %v", err)
	}
	var rec ArchiveRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("archive decode: %v", err)
	}
	if len(rec.Items) != 1 || rec.Items[0].ID != "old" {
		t.Errorf("archived = %+v, want only the non-sensitive item", rec.Items)
	}
}

func TestRunCycle_ArchiveFailureKeepsItems(t *testing.T) {
	items := seed()
	j := NewJanitor(items, 30*24*time.Hour, WithArchive(failingBlobs{}), WithClock(func() time.Time { return now }))

	stats := j.RunCycle(context.Background())
	if stats.Purged != 0 || len(stats.Errors) != 1 {
		t.Errorf("stats = %+v, want no purge and one error", stats)
	}
	if items.Len() != 3 {
		t.Errorf("items left = %d, want 3", items.Len())
	}
}

func TestRunCycle_NothingExpired(t *testing.T) {
	items := seed()
	j := NewJanitor(items, 90*24*time.Hour, WithClock(func() time.Time { return now }))
	if stats := j.RunCycle(context.Background()); stats.Expired != 0 || stats.Purged != 0 {
		t.Errorf("stats = %+v, want nothing", stats)
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	items := seed()
	j := NewJanitor(items, 30*24*time.Hour, WithClock(func() time.Time { return now }))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Start(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
	// Start runs one cycle before checking ctx.
	if items.Len() != 1 {
		t.Errorf("items left = %d, want 1", items.Len())
	}
}
