package gcsfs

import (
	"context"
	"io"
	"net/url"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/zhuluh247/MySchool/core"
)

const publicHost = "https://storage.googleapis.com"

// Store is a core.FileStore keeping files in a Google Cloud Storage bucket.
type Store struct {
	client *storage.Client
	bucket string
}

var _ core.FileStore = (*Store)(nil)

// New creates a Store. Application default credentials are used when credentialsFile is empty.
func New(ctx context.Context, bucket, credentialsFile string, opts ...option.ClientOption) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating storage client")
	}
	return &Store{client: client, bucket: bucket}, nil
}

// ObjectURL returns the public URL of the object at path.
func (s *Store) ObjectURL(path string) string {
	u := url.URL{Path: "/" + s.bucket + "/" + path}
	return publicHost + u.EscapedPath()
}

func (s *Store) Upload(ctx context.Context, r io.Reader, path, contentType string) (string, error) {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", errors.Wrapf(err, "uploading %s", path)
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrapf(err, "finalizing upload of %s", path)
	}
	return s.ObjectURL(path), nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	err := s.client.Bucket(s.bucket).Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return core.ErrNotFound
	}
	return errors.Wrapf(err, "deleting %s", path)
}

func (s *Store) Close() error {
	return s.client.Close()
}
