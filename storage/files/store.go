package files

import (
	"context"

	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
	gcsfs "github.com/zhuluh247/MySchool/storage/files/gcs"
	localfs "github.com/zhuluh247/MySchool/storage/files/local"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

// Open opens the core.FileStore selected by conf.Storage.Driver.
func Open(ctx context.Context, conf *core.Config) (core.FileStore, error) {
	switch conf.Storage.Driver {
	case core.StorageLocal, "":
		store, err := localfs.New(conf.Storage.LocalDir, conf.Storage.BaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case core.StorageGCS:
		store, err := gcsfs.New(ctx, conf.Storage.Bucket, conf.Storage.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, errors.Wrapf(ErrUnknownDriver, "%q", conf.Storage.Driver)
}
