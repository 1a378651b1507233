package badgerdb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
)

// Config holds the options of the embedded database.
type Config struct {
	// Path is the data directory. Required unless InMemory is set.
	Path     string
	InMemory bool
	// Logger receives badger's own logs. Badger logs are discarded when nil.
	Logger core.Logger
}

// DB is a core.Gateway backed by an embedded badger key-value store.
// Records are stored as JSON under "<collection>/<id>" keys. Ids are time ordered (UUIDv7),
// so a prefix scan yields records in insertion order.
type DB struct {
	kv *badger.DB
}

var _ core.Gateway = (*DB)(nil)

type badgerLogger struct {
	logger core.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Open opens the badger database described by cfg.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, errors.Wrapf(err, "creating database directory %s", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	kv, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening badger database")
	}
	return &DB{kv: kv}, nil
}

func prefix(coll core.Collection) []byte {
	return []byte(string(coll) + "/")
}

func key(coll core.Collection, id string) []byte {
	return []byte(string(coll) + "/" + id)
}

func decode(val []byte, id string) (core.Record, error) {
	var rec core.Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, errors.Wrap(err, "decoding record")
	}
	if rec == nil {
		rec = make(core.Record)
	}
	rec[core.IDField] = id
	return rec, nil
}

func encode(rec core.Record) ([]byte, error) {
	stored := make(core.Record, len(rec))
	for k, v := range rec {
		if k != core.IDField {
			stored[k] = v
		}
	}
	val, err := json.Marshal(stored)
	return val, errors.Wrap(err, "encoding record")
}

func (db *DB) scan(ctx context.Context, coll core.Collection, match func(core.Record) bool) ([]core.Record, error) {
	recs := make([]core.Record, 0)
	pfx := prefix(coll)
	err := db.kv.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: pfx, PrefetchValues: true, PrefetchSize: 100})
		defer it.Close()

		for it.Seek(pfx); it.ValidForPrefix(pfx); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id := string(item.Key()[len(pfx):])
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := decode(val, id)
			if err != nil {
				return err
			}
			if match == nil || match(rec) {
				recs = append(recs, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fail(err, "scanning %s", coll)
	}
	return recs, nil
}

// fail wraps err with the failed operation. A closed database is reported as a shutdown error.
func fail(err error, format string, args ...interface{}) error {
	if errors.Is(err, badger.ErrDBClosed) {
		err = core.NewShutdownError(err.Error())
	}
	return errors.Wrapf(err, format, args...)
}

func (db *DB) GetAll(ctx context.Context, coll core.Collection) ([]core.Record, error) {
	return db.scan(ctx, coll, nil)
}

func (db *DB) Get(ctx context.Context, coll core.Collection, id string) (core.Record, error) {
	var rec core.Record
	err := db.kv.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(coll, id))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err = decode(val, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fail(err, "getting %s %q", coll, id)
	}
	return rec, nil
}

func (db *DB) Add(ctx context.Context, coll core.Collection, rec core.Record) (core.Record, error) {
	uid, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, "generating id")
	}
	id := uid.String()

	val, err := encode(rec)
	if err != nil {
		return nil, err
	}
	if err := db.kv.Update(func(txn *badger.Txn) error {
		return txn.Set(key(coll, id), val)
	}); err != nil {
		return nil, fail(err, "adding to %s", coll)
	}
	return decode(val, id)
}

func (db *DB) Update(ctx context.Context, coll core.Collection, id string, rec core.Record) error {
	val, err := encode(rec)
	if err != nil {
		return err
	}
	err = db.kv.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(coll, id)); err != nil {
			return err
		}
		return txn.Set(key(coll, id), val)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return core.ErrNotFound
	}
	return fail(err, "updating %s %q", coll, id)
}

func (db *DB) Delete(ctx context.Context, coll core.Collection, id string) error {
	err := db.kv.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(coll, id)); err != nil {
			return err
		}
		return txn.Delete(key(coll, id))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return core.ErrNotFound
	}
	return fail(err, "deleting %s %q", coll, id)
}

func (db *DB) Query(ctx context.Context, coll core.Collection, filter core.Filter) ([]core.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return db.scan(ctx, coll, filter.Match)
}

func (db *DB) Close() error {
	return db.kv.Close()
}
