package sqlxdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/zhuluh247/MySchool/core"
)

// sqlOperators maps filter operators to their SQL spelling. Values are compared as jsonb.
var sqlOperators = map[core.Operator]string{
	core.OpEq:  "=",
	core.OpNeq: "IS DISTINCT FROM",
	core.OpLt:  "<",
	core.OpLte: "<=",
	core.OpGt:  ">",
	core.OpGte: ">=",
}

// DB is a core.Gateway storing records as jsonb documents in the postgres `records` table.
type DB struct {
	db *sqlx.DB
}

var _ core.Gateway = (*DB)(nil)

func New(db *sqlx.DB) *DB {
	return &DB{db: db}
}

type row struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

func (r row) record() (core.Record, error) {
	var rec core.Record
	if err := json.Unmarshal(r.Data, &rec); err != nil {
		return nil, errors.Wrap(err, "decoding record")
	}
	if rec == nil {
		rec = make(core.Record)
	}
	rec[core.IDField] = r.ID
	return rec, nil
}

func records(rows []row) ([]core.Record, error) {
	recs := make([]core.Record, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func encode(rec core.Record) ([]byte, error) {
	stored := make(core.Record, len(rec))
	for k, v := range rec {
		if k != core.IDField {
			stored[k] = v
		}
	}
	data, err := json.Marshal(stored)
	return data, errors.Wrap(err, "encoding record")
}

func (db *DB) GetAll(ctx context.Context, coll core.Collection) ([]core.Record, error) {
	var rows []row
	q := `SELECT id, data FROM records WHERE collection = $1 ORDER BY seq`
	if err := db.db.SelectContext(ctx, &rows, q, string(coll)); err != nil {
		return nil, errors.Wrapf(err, "selecting %s", coll)
	}
	return records(rows)
}

func (db *DB) Get(ctx context.Context, coll core.Collection, id string) (core.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.ErrNotFound
	}
	var rows []row
	q := `SELECT id, data FROM records WHERE collection = $1 AND id = $2`
	if err := db.db.SelectContext(ctx, &rows, q, string(coll), id); err != nil {
		return nil, errors.Wrapf(err, "selecting %s %q", coll, id)
	}
	if len(rows) == 0 {
		return nil, core.ErrNotFound
	}
	return rows[0].record()
}

func (db *DB) Add(ctx context.Context, coll core.Collection, rec core.Record) (core.Record, error) {
	uid, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, "generating id")
	}
	data, err := encode(rec)
	if err != nil {
		return nil, err
	}

	q := `INSERT INTO records (collection, id, data) VALUES ($1, $2, $3)`
	if _, err := db.db.ExecContext(ctx, q, string(coll), uid.String(), data); err != nil {
		return nil, errors.Wrapf(err, "inserting into %s", coll)
	}
	return row{ID: uid.String(), Data: data}.record()
}

func (db *DB) Update(ctx context.Context, coll core.Collection, id string, rec core.Record) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrNotFound
	}
	data, err := encode(rec)
	if err != nil {
		return err
	}

	q := `UPDATE records SET data = $3, updated_at = now() WHERE collection = $1 AND id = $2`
	res, err := db.db.ExecContext(ctx, q, string(coll), id, data)
	if err != nil {
		return errors.Wrapf(err, "updating %s %q", coll, id)
	}
	return checkAffected(res.RowsAffected())
}

func (db *DB) Delete(ctx context.Context, coll core.Collection, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrNotFound
	}
	q := `DELETE FROM records WHERE collection = $1 AND id = $2`
	res, err := db.db.ExecContext(ctx, q, string(coll), id)
	if err != nil {
		return errors.Wrapf(err, "deleting %s %q", coll, id)
	}
	return checkAffected(res.RowsAffected())
}

func checkAffected(n int64, err error) error {
	if err != nil {
		return errors.Wrap(err, "getting affected rows")
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (db *DB) Query(ctx context.Context, coll core.Collection, filter core.Filter) ([]core.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	value, err := json.Marshal(filter.Value)
	if err != nil {
		return nil, errors.Wrap(err, "encoding filter value")
	}

	// a missing key yields SQL NULL; it compares as json null
	q := fmt.Sprintf(
		`SELECT id, data FROM records WHERE collection = $1 AND COALESCE(data -> $2, 'null'::jsonb) %s $3::jsonb ORDER BY seq`,
		sqlOperators[filter.Op],
	)
	if filter.Op != core.OpEq && filter.Op != core.OpNeq {
		// jsonb ordering across types differs from ours: only compare same-typed values
		q = fmt.Sprintf(
			`SELECT id, data FROM records WHERE collection = $1 AND jsonb_typeof(data -> $2) = jsonb_typeof($3::jsonb) AND data -> $2 %s $3::jsonb ORDER BY seq`,
			sqlOperators[filter.Op],
		)
	}

	var rows []row
	if err := db.db.SelectContext(ctx, &rows, q, string(coll), filter.Field, string(value)); err != nil {
		return nil, errors.Wrapf(err, "querying %s", coll)
	}
	return records(rows)
}

// Truncate deletes every record.
func (db *DB) Truncate(ctx context.Context) error {
	_, err := db.db.ExecContext(ctx, `TRUNCATE records`)
	return errors.Wrap(err, "truncating records")
}

func (db *DB) Close() error {
	return db.db.Close()
}
