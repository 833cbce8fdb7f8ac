package properties

import (
	"sort"

	"github.com/animalet/substvars/internal/snapshot"
)

// Map is an immutable in-memory container.
type Map struct {
	values map[string]string
}

// NewMap copies values into a new Map. Later changes to values are not seen.
func NewMap(values map[string]string) *Map {
	return &Map{values: snapshot.Strings(values)}
}

// Property returns the value stored under key.
func (m *Map) Property(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the stored keys in sorted order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (m *Map) Len() int {
	return len(m.values)
}

// MapConfig configures an inline map source. Values are kept verbatim so they may hold
// placeholders resolved at lookup time.
type MapConfig struct {
	Values map[string]string `yaml:"values" expand:"-"`
}

// Validate accepts any map, including an empty one.
func (c MapConfig) Validate() error {
	return nil
}

// CreateClient builds the Map.
func (c MapConfig) CreateClient() (*Map, error) {
	return NewMap(c.Values), nil
}
