package secrets

import (
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Store resolves secret names to values. Secrets come from the process
// environment, optionally overlaid with a .env file, and are handed out
// only to the one step that references them.
type Store struct {
	values map[string]string
}

// NewStore builds a store from the process environment.
func NewStore() *Store {
	s := &Store{values: make(map[string]string)}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			s.values[k] = v
		}
	}
	return s
}

// NewStoreFromMap is used by tests and by the server, which loads secrets
// once at startup instead of reading the ambient environment per run.
func NewStoreFromMap(values map[string]string) *Store {
	s := &Store{values: make(map[string]string, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// LoadDotenv overlays entries from a .env file. Missing file is not an
// error so a bare checkout still runs.
func (s *Store) LoadDotenv(path string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "read %s", path)
	}
	for k, v := range env {
		s.values[k] = v
	}
	return nil
}

// Get returns the secret value for name.
func (s *Store) Get(name string) (string, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Names returns the known secret names, sorted. Values are never exposed
// in bulk.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.values))
	for k := range s.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
