package properties

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ParseYAML decodes a YAML document into a Map. Nested mappings are flattened to dotted keys and
// sequence items are addressed by index, so
//
//	db:
//	  hosts: [a, b]
//
// yields "db.hosts.0" = "a" and "db.hosts.1" = "b". An empty document yields an empty Map.
func ParseYAML(data []byte) (*Map, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "error parsing YAML properties")
	}
	return &Map{values: flatten(doc)}, nil
}

// ParseTOML decodes a TOML document into a Map, flattening tables and arrays like ParseYAML.
func ParseTOML(data []byte) (*Map, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "error parsing TOML properties")
	}
	return &Map{values: flatten(doc)}, nil
}

// YAMLFile reads and parses a YAML properties file.
func YAMLFile(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading YAML properties file %q", path)
	}
	return ParseYAML(data)
}

// TOMLFile reads and parses a TOML properties file.
func TOMLFile(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading TOML properties file %q", path)
	}
	return ParseTOML(data)
}

// FileConfig points to a properties document on disk.
type FileConfig struct {
	Path string `yaml:"path"`
}

// Validate requires a path.
func (c FileConfig) Validate() error {
	if c.Path == "" {
		return errors.New("properties file path is required")
	}
	return nil
}

func flatten(doc map[string]any) map[string]string {
	out := make(map[string]string)
	for k, v := range doc {
		flattenInto(out, k, v)
	}
	return out
}

func flattenInto(out map[string]string, key string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			flattenInto(out, key+"."+k, child)
		}
	case map[any]any:
		for k, child := range v {
			flattenInto(out, key+"."+fmt.Sprint(k), child)
		}
	case []any:
		for i, child := range v {
			flattenInto(out, key+"."+strconv.Itoa(i), child)
		}
	case nil:
		out[key] = ""
	default:
		out[key] = scalar(v)
	}
}

func scalar(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case time.Time:
		return s.Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}
