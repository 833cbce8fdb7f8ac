// Package sysprops holds the process-wide system properties consulted by the resolver after the
// caller supplied containers and before the OS environment.
//
// Properties are plain strings set at startup (for instance from -D flags or the configuration
// file). Individual keys can be denied, after which they read as absent and cannot be written.
package sysprops

import (
	"sync"

	"github.com/animalet/substvars/internal/snapshot"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrAccessDenied is returned when writing a denied key.
var ErrAccessDenied = errors.New("access to system property denied")

// Store is a thread-safe set of system properties.
type Store struct {
	mu     sync.RWMutex
	props  map[string]string
	denied map[string]struct{}
}

// Default is the store used by the package level helpers and by the default resolver.
var Default = New()

// New creates an empty Store.
func New() *Store {
	return &Store{
		props:  make(map[string]string),
		denied: make(map[string]struct{}),
	}
}

// Property returns the value of key. Denied keys are reported as absent.
func (s *Store) Property(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, denied := s.denied[key]; denied {
		return "", false
	}
	value, ok := s.props[key]
	return value, ok
}

// Get returns the value of key, or def when the key is absent or denied.
func (s *Store) Get(key, def string) string {
	if value, ok := s.Property(key); ok {
		return value
	}
	return def
}

// Set stores value under key.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, denied := s.denied[key]; denied {
		return errors.Wrapf(ErrAccessDenied, "failed to set system property [%s]", key)
	}
	s.props[key] = value
	return nil
}

// SetAll stores every entry of props. Entries that cannot be set are logged and skipped, the
// others are still applied; the returned error aggregates every failure.
func (s *Store) SetAll(props map[string]string) error {
	var result *multierror.Error
	for key, value := range props {
		if err := s.Set(key, value); err != nil {
			log.Error().Err(err).Str("key", key).Msg("Failed to set system property")
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.props, key)
}

// Deny makes keys unreadable and unwritable.
func (s *Store) Deny(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.denied[key] = struct{}{}
	}
}

// Clear drops every property and every denial.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props = make(map[string]string)
	s.denied = make(map[string]struct{})
}

// Snapshot returns a copy of the readable properties. Denied keys are left out.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := snapshot.MustCopy(&s.props)
	for key := range s.denied {
		delete(*copied, key)
	}
	return *copied
}

// Property reads key from Default.
func Property(key string) (string, bool) {
	return Default.Property(key)
}

// Get reads key from Default, falling back to def.
func Get(key, def string) string {
	return Default.Get(key, def)
}

// Set writes key to Default.
func Set(key, value string) error {
	return Default.Set(key, value)
}

// SetAll writes every entry of props to Default.
func SetAll(props map[string]string) error {
	return Default.SetAll(props)
}
