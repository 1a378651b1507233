package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
)

type table struct {
	order []string // ids in insertion order
	rows  map[string]core.Record
}

// DB is a core.Gateway keeping every collection in memory.
type DB struct {
	mutex  sync.RWMutex
	tables map[core.Collection]*table
}

var _ core.Gateway = (*DB)(nil)

func New() *DB {
	return &DB{tables: make(map[core.Collection]*table)}
}

// table returns the table of coll. The write lock must be held when create is true.
func (db *DB) table(coll core.Collection, create bool) *table {
	tbl, ok := db.tables[coll]
	if !ok && create {
		tbl = &table{rows: make(map[string]core.Record)}
		db.tables[coll] = tbl
	}
	return tbl
}

func (db *DB) scan(coll core.Collection, match func(core.Record) bool) []core.Record {
	tbl := db.table(coll, false)
	if tbl == nil {
		return []core.Record{}
	}
	recs := make([]core.Record, 0, len(tbl.order))
	for _, id := range tbl.order {
		rec := tbl.rows[id]
		if match == nil || match(rec) {
			recs = append(recs, rec.Copy())
		}
	}
	return recs
}

func (db *DB) GetAll(ctx context.Context, coll core.Collection) ([]core.Record, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.scan(coll, nil), nil
}

func (db *DB) Get(ctx context.Context, coll core.Collection, id string) (core.Record, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	if tbl := db.table(coll, false); tbl != nil {
		if rec, ok := tbl.rows[id]; ok {
			return rec.Copy(), nil
		}
	}
	return nil, core.ErrNotFound
}

func (db *DB) Add(ctx context.Context, coll core.Collection, rec core.Record) (core.Record, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, "generating id")
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	stored := rec.Copy()
	if stored == nil {
		stored = make(core.Record)
	}
	stored[core.IDField] = id.String()

	tbl := db.table(coll, true)
	tbl.order = append(tbl.order, id.String())
	tbl.rows[id.String()] = stored
	return stored.Copy(), nil
}

func (db *DB) Update(ctx context.Context, coll core.Collection, id string, rec core.Record) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	tbl := db.table(coll, false)
	if tbl == nil {
		return core.ErrNotFound
	}
	if _, ok := tbl.rows[id]; !ok {
		return core.ErrNotFound
	}
	stored := rec.Copy()
	if stored == nil {
		stored = make(core.Record)
	}
	stored[core.IDField] = id
	tbl.rows[id] = stored
	return nil
}

func (db *DB) Delete(ctx context.Context, coll core.Collection, id string) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	tbl := db.table(coll, false)
	if tbl == nil {
		return core.ErrNotFound
	}
	if _, ok := tbl.rows[id]; !ok {
		return core.ErrNotFound
	}
	delete(tbl.rows, id)
	for i, oid := range tbl.order {
		if oid == id {
			tbl.order = append(tbl.order[:i], tbl.order[i+1:]...)
			break
		}
	}
	return nil
}

func (db *DB) Query(ctx context.Context, coll core.Collection, filter core.Filter) ([]core.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.scan(coll, filter.Match), nil
}

// Reset drops every collection.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.tables = make(map[core.Collection]*table)
}

func (db *DB) Close() error { return nil }
