package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrUnknownKey is returned by Get and Set for names that are not preferences.
var ErrUnknownKey = errors.New("unknown preference")

// Store holds the in-memory preferences and their file.
// All methods are thread-safe.
type Store struct {
	path   string
	remote Remote
	logger *slog.Logger

	// fileMu orders file writes and reloads with the in-memory change
	// they belong to. Acquired before mu.
	fileMu sync.Mutex

	mu    sync.RWMutex
	prefs Preferences
}

// NewStore creates a store backed by path. It starts with defaults; call Load.
// remote may be nil when no server synchronization is needed.
func NewStore(path string, remote Remote, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		remote: remote,
		logger: logger,
		prefs:  Defaults(),
	}
}

// Path returns the preferences file location.
func (s *Store) Path() string {
	return s.path
}

// Load merges the file over the defaults. A missing or malformed file
// leaves the defaults in effect and is not an error.
func (s *Store) Load() Preferences {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	prefs := Defaults()

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.logger.Debug("no preferences file, using defaults", "path", s.path)
	case err != nil:
		s.logger.Warn("failed to read preferences, using defaults", "path", s.path, "error", err)
	default:
		if err := yaml.Unmarshal(data, &prefs); err != nil {
			s.logger.Warn("malformed preferences, using defaults", "path", s.path, "error", err)
			prefs = Defaults()
		}
	}
	prefs.sanitize()

	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()
	return prefs
}

// Save writes the current preferences to the file.
func (s *Store) Save() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	s.mu.RLock()
	prefs := s.prefs
	s.mu.RUnlock()
	return s.write(prefs)
}

func (s *Store) write(prefs Preferences) error {
	data, err := yaml.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}

	// Write to a temp file and rename so a watcher never reads a partial file.
	tmp, err := os.CreateTemp(dir, ".preferences-*.yaml")
	if err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

// Preferences returns a copy of the current preferences.
func (s *Store) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// Update applies fn to the preferences and persists the result.
// Concurrent updates reach the file in the same order as memory.
func (s *Store) Update(fn func(*Preferences)) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	s.mu.Lock()
	next := s.prefs
	fn(&next)
	next.sanitize()
	s.prefs = next
	s.mu.Unlock()
	return s.write(next)
}

// Keys returns every preference name, sorted.
func (s *Store) Keys() []string {
	doc := s.document()
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a preference by its file key.
func (s *Store) Get(key string) (any, error) {
	doc := s.document()
	v, ok := doc[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return v, nil
}

// Set parses value as YAML and assigns it to the preference named key,
// then persists. A value of the wrong type is rejected without saving.
func (s *Store) Set(key, value string) error {
	doc := s.document()
	if _, ok := doc[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	var parsed any
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
		return fmt.Errorf("parse value for %s: %w", key, err)
	}
	doc[key] = parsed

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	next := Defaults()
	if err := yaml.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	return s.Update(func(p *Preferences) { *p = next })
}

// document renders the preferences as a key/value map.
func (s *Store) document() map[string]any {
	prefs := s.Preferences()
	data, _ := yaml.Marshal(prefs)
	doc := make(map[string]any)
	_ = yaml.Unmarshal(data, &doc)
	return doc
}
