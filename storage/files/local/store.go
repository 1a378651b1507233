package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
)

// Store is a core.FileStore writing files under a local directory.
// Files are served by the API under BaseURL.
type Store struct {
	dir     string
	baseURL string
}

var _ core.FileStore = (*Store)(nil)

func New(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.Wrapf(err, "creating storage directory %s", dir)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string { return s.dir }

// resolve maps a slash separated store path to a file path, refusing paths escaping the root.
func (s *Store) resolve(path string) (fp, rel string, err error) {
	clean := filepath.Clean(filepath.FromSlash("/" + path))
	if clean == string(filepath.Separator) {
		return "", "", errors.Errorf("invalid path %q", path)
	}
	return filepath.Join(s.dir, clean), filepath.ToSlash(clean), nil
}

func (s *Store) Upload(ctx context.Context, r io.Reader, path, contentType string) (string, error) {
	fp, rel, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fp), 0750); err != nil {
		return "", errors.Wrap(err, "creating directory")
	}

	f, err := os.Create(fp)
	if err != nil {
		return "", errors.Wrap(err, "creating file")
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(fp)
		return "", errors.Wrap(err, "writing file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, "closing file")
	}
	return s.baseURL + rel, nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	fp, _, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(fp); err != nil {
		if os.IsNotExist(err) {
			return core.ErrNotFound
		}
		return errors.Wrap(err, "removing file")
	}
	return nil
}
