package properties

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DirectoryConfig configures a directory of one-file-per-key properties, such as mounted Docker
// or Kubernetes secrets.
type DirectoryConfig struct {
	Dir string `yaml:"dir"`
}

// Validate checks that Dir names an existing directory.
func (c DirectoryConfig) Validate() error {
	if c.Dir == "" {
		return errors.New("dir is required for a directory source")
	}

	info, err := os.Stat(c.Dir)
	if os.IsNotExist(err) {
		return errors.Errorf("dir %q does not exist", c.Dir)
	}
	if err != nil {
		return errors.Wrapf(err, "error accessing dir %q", c.Dir)
	}
	if !info.IsDir() {
		return errors.Errorf("dir %q is not a directory", c.Dir)
	}
	return nil
}

// CreateClient builds the Directory container.
func (c DirectoryConfig) CreateClient() (*Directory, error) {
	return NewDirectory(c.Dir)
}

// Directory reads the property named key from the file <dir>/<key>. File contents are trimmed of
// surrounding whitespace. Keys that would escape the directory read as absent.
type Directory struct {
	dir string
}

// NewDirectory serves the files of dir, which is made absolute. The directory is not required to
// exist yet; missing files read as absent.
func NewDirectory(dir string) (*Directory, error) {
	if dir == "" {
		return nil, errors.New("no properties directory configured")
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve absolute path for properties directory")
	}
	return &Directory{dir: absDir}, nil
}

// Property returns the trimmed content of the file named key. Keys escaping the directory are
// refused.
func (d *Directory) Property(key string) (string, bool) {
	path, err := d.path(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Rejected directory property key")
		return "", false
	}

	// #nosec G304 -- the path is confined to the directory by d.path
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", path).Msg("Failed to read directory property")
		}
		return "", false
	}

	log.Debug().Str("file", path).Msg("Retrieved property from directory")
	return strings.TrimSpace(string(content)), true
}

func (d *Directory) path(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty key")
	}
	if filepath.IsAbs(key) {
		return "", errors.New("absolute paths not allowed")
	}

	cleanKey := filepath.Clean(key)
	if strings.Contains(cleanKey, "..") {
		return "", errors.New("path traversal detected")
	}

	path := filepath.Join(d.dir, cleanKey)
	if !strings.HasPrefix(path, d.dir+string(filepath.Separator)) {
		return "", errors.New("outside properties directory")
	}
	return path, nil
}
