package search

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/pkg/models"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateSearching  State = "searching"
	StateReady      State = "ready"
	StateClosed     State = "closed"
)

// Snapshot is what a session currently displays.
type Snapshot struct {
	SessionID  string         `json:"session_id"`
	Generation uint64         `json:"generation"`
	Query      string         `json:"query"`
	State      State          `json:"state"`
	Results    []*models.Item `json:"results"`
	Selected   int            `json:"selected"`
	// LexicalCount is how many leading results are lexical matches.
	LexicalCount int  `json:"lexical_count"`
	Degraded     bool `json:"degraded,omitempty"`
}

// Session is one interactive search box. Every keystroke goes through
// Update; only the newest query's semantic results are ever applied.
type Session struct {
	id     string
	engine *Engine

	mu       sync.Mutex
	gen      uint64
	query    models.SearchQuery
	lexical  []*models.Item
	results  []*models.Item
	selected int
	state    State
	degraded bool
	timer    *time.Timer
	cancel   context.CancelFunc
	closed   bool
	subs     map[chan Snapshot]struct{}
	touched  time.Time
}

func newSession(id string, e *Engine) *Session {
	return &Session{
		id:      id,
		engine:  e,
		state:   StateIdle,
		query:   models.NewSearchQuery("", e.cfg.Limit),
		subs:    make(map[chan Snapshot]struct{}),
		touched: time.Now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Update applies a new query: the lexical result is computed and published
// immediately, any pending semantic work is canceled, and a new semantic
// lookup is scheduled after the debounce when the query is long enough.
func (s *Session) Update(raw string) Snapshot {
	live := s.engine.source.Items()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.snapshotLocked()
	}

	s.gen++
	s.touched = time.Now()
	s.selected = 0
	s.degraded = false
	s.query = models.NewSearchQuery(raw, s.engine.cfg.Limit)
	s.lexical = Filter(live, s.query.Text)
	s.results = Merge(s.lexical, nil, live, s.query.Limit)
	s.stopPendingLocked()

	if s.engine.wantsSemantic(s.query) {
		gen := s.gen
		s.state = StateDebouncing
		s.timer = time.AfterFunc(s.engine.cfg.Debounce, func() { s.runSemantic(gen) })
	} else {
		s.state = StateReady
	}

	snap := s.snapshotLocked()
	s.publishLocked(snap)
	return snap
}

// runSemantic executes the debounced lookup for generation gen.
func (s *Session) runSemantic(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.engine.cfg.SemanticTimeout)
	s.cancel = cancel
	s.state = StateSearching
	q := s.query
	s.publishLocked(s.snapshotLocked())
	s.mu.Unlock()

	hits, err := s.engine.searcher.Search(ctx, q.Text, q.Limit)
	cancel()
	live := s.engine.source.Items()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		log.Debug().Str("session", s.id).Uint64("generation", gen).Msg("Discarding stale semantic results")
		return
	}
	s.cancel = nil
	if err != nil {
		log.Warn().Err(err).Str("session", s.id).Msg("Semantic search failed, showing lexical results")
		hits = nil
		s.degraded = true
	}
	s.results = Merge(s.lexical, hits, live, q.Limit)
	s.state = StateReady
	s.clampLocked()
	s.publishLocked(s.snapshotLocked())
}

// Move shifts the selection by delta, staying within the results.
func (s *Session) Move(delta int) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.touched = time.Now()
		s.selected += delta
		s.clampLocked()
		s.publishLocked(s.snapshotLocked())
	}
	return s.snapshotLocked()
}

// Selected returns the selected item, or nil when there are no results.
func (s *Session) Selected() *models.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return nil
	}
	return s.results[s.selected]
}

// Snapshot returns the current view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// LastActive returns when the session last received input.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// Subscribe returns a channel receiving every new snapshot. Slow
// subscribers miss older snapshots rather than block the session. The channel is
// closed by Unsubscribe or Close.
func (s *Session) Subscribe() chan Snapshot {
	ch := make(chan Snapshot, 16)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (s *Session) Unsubscribe(ch chan Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
}

// Close cancels pending work and closes all subscriber channels. Later
// updates are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	s.stopPendingLocked()
	s.state = StateClosed
	for ch := range s.subs {
		close(ch)
	}
	s.subs = make(map[chan Snapshot]struct{})
}

func (s *Session) stopPendingLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) clampLocked() {
	if s.selected >= len(s.results) {
		s.selected = len(s.results) - 1
	}
	if s.selected < 0 {
		s.selected = 0
	}
}

func (s *Session) snapshotLocked() Snapshot {
	lexical := len(s.lexical)
	if lexical > len(s.results) {
		lexical = len(s.results)
	}
	results := make([]*models.Item, len(s.results))
	copy(results, s.results)
	return Snapshot{
		SessionID:    s.id,
		Generation:   s.gen,
		Query:        s.query.Text,
		State:        s.state,
		Results:      results,
		Selected:     s.selected,
		LexicalCount: lexical,
		Degraded:     s.degraded,
	}
}

// publishLocked fans snap out without blocking. A full subscriber loses its
// oldest pending snapshot, so the newest one always gets through.
func (s *Session) publishLocked(snap Snapshot) {
	for ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
