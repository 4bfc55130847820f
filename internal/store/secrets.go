package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// MemorySecretStore keeps secrets in memory only.
type MemorySecretStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemorySecretStore creates an empty in-memory secret store.
func NewMemorySecretStore() *MemorySecretStore {
	return &MemorySecretStore{secrets: make(map[string]string)}
}

func (m *MemorySecretStore) Save(key, value string) bool {
	m.mu.Lock()
	m.secrets[key] = value
	m.mu.Unlock()
	return true
}

func (m *MemorySecretStore) Load(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.secrets[key]
	return v, ok
}

func (m *MemorySecretStore) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[key]; !ok {
		return false
	}
	delete(m.secrets, key)
	return true
}

// FileSecretStore keeps secrets in a JSON file readable only by the owner.
// Every change rewrites the whole file.
type FileSecretStore struct {
	mu      sync.Mutex
	path    string
	secrets map[string]string
}

// NewFileSecretStore loads path if it exists. A missing file is an empty
// store; an unreadable or corrupt one is logged and treated as empty.
func NewFileSecretStore(path string) *FileSecretStore {
	s := &FileSecretStore{path: path, secrets: make(map[string]string)}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.secrets); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to parse secrets file, starting empty")
			s.secrets = make(map[string]string)
		}
	case !os.IsNotExist(err):
		log.Warn().Err(err).Str("path", path).Msg("Failed to read secrets file")
	}
	return s
}

// Save stores the value and reports whether it was persisted.
func (s *FileSecretStore) Save(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.secrets[key]
	s.secrets[key] = value
	if !s.flushLocked() {
		if had {
			s.secrets[key] = prev
		} else {
			delete(s.secrets, key)
		}
		return false
	}
	return true
}

func (s *FileSecretStore) Load(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.secrets[key]
	return v, ok
}

// Delete removes the key and reports whether it existed and the change was
// persisted.
func (s *FileSecretStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.secrets[key]
	if !ok {
		return false
	}
	delete(s.secrets, key)
	if !s.flushLocked() {
		s.secrets[key] = prev
		return false
	}
	return true
}

func (s *FileSecretStore) flushLocked() bool {
	data, err := json.Marshal(s.secrets)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal secrets")
		return false
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("Failed to create secrets dir")
		return false
	}
	if err := writeFileAtomic(s.path, data, 0o600); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("Failed to write secrets file")
		return false
	}
	return true
}
