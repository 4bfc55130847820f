package sessions

import (
	"errors"
	"testing"
	"time"

	"github.com/cliphaven/cliphaven/internal/search"
	"github.com/cliphaven/cliphaven/pkg/models"
)

type emptySource struct{}

func (emptySource) Items() []*models.Item { return nil }

func newManager(idle time.Duration) *Manager {
	return NewManager(search.NewEngine(emptySource{}, nil, search.Config{}), idle)
}

func TestManager_CreateGetDelete(t *testing.T) {
	m := newManager(0)
	defer m.Close()

	s := m.Create()
	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if err := m.Delete(s.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete = %v, want ErrNotFound", err)
	}
	if err := m.Delete(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() = %v, want ErrNotFound", err)
	}
	if snap := s.Snapshot(); snap.State != search.StateClosed {
		t.Errorf("deleted session state = %s, want closed", snap.State)
	}
}

func TestManager_EvictIdle(t *testing.T) {
	m := newManager(time.Minute)
	defer m.Close()

	stale := m.Create()
	fresh := m.Create()

	if n := m.EvictIdle(time.Now()); n != 0 {
		t.Errorf("EvictIdle(now) = %d, want 0", n)
	}
	fresh.Update("x")
	if n := m.EvictIdle(fresh.LastActive().Add(59 * time.Second)); n != 0 {
		t.Errorf("EvictIdle(+59s) = %d, want 0", n)
	}
	if n := m.EvictIdle(stale.LastActive().Add(2 * time.Minute)); n < 1 {
		t.Errorf("EvictIdle(+2m) = %d, want stale session evicted", n)
	}
	if _, err := m.Get(stale.ID()); !errors.Is(err, ErrNotFound) {
		t.Error("stale session should be evicted")
	}
}

func TestManager_Close(t *testing.T) {
	m := newManager(0)
	s := m.Create()
	go m.Run(time.Hour)
	m.Close()
	m.Close()

	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}
	if s.Snapshot().State != search.StateClosed {
		t.Error("Close should close open sessions")
	}
}
