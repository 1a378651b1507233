package core

import (
	"context"
	"encoding/json"
	"io"
	"reflect"

	"github.com/pkg/errors"
)

// Collection names a set of records held by a Gateway.
type Collection string

const (
	Users         Collection = "users"
	Students      Collection = "students"
	Results       Collection = "results"
	Behavior      Collection = "behavior"
	Activities    Collection = "activities"
	Classes       Collection = "classes"
	Subjects      Collection = "subjects"
	ClassSubjects Collection = "classSubjects"
	Documents     Collection = "documents"
)

var AllCollections = []Collection{
	Users, Students, Results, Behavior, Activities, Classes, Subjects, ClassSubjects, Documents,
}

// IDField is the record key holding the identifier assigned by the Gateway.
const IDField = "id"

// Record is a schemaless document. Values are JSON compatible.
type Record map[string]interface{}

// ID returns the identifier of the record, if any.
func (r Record) ID() string {
	id, _ := r[IDField].(string)
	return id
}

// Copy returns a deep copy of r with JSON normalised values.
func (r Record) Copy() Record {
	if r == nil {
		return nil
	}
	cp := make(Record, len(r))
	for k, v := range r {
		cp[k] = normalize(v)
	}
	return cp
}

// Operator is a comparison operator usable in a Filter.
type Operator string

const (
	OpEq  Operator = "=="
	OpNeq Operator = "!="
	OpLt  Operator = "<"
	OpLte Operator = "<="
	OpGt  Operator = ">"
	OpGte Operator = ">="
)

var ErrInvalidOperator = errors.New("invalid filter operator")

// Filter selects the records whose Field compares to Value with Op.
type Filter struct {
	Field string
	Op    Operator
	Value interface{}
}

// Where returns a Filter.
func Where(field string, op Operator, value interface{}) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

func (f Filter) Validate() error {
	switch f.Op {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		return nil
	}
	return errors.Wrapf(ErrInvalidOperator, "%q", f.Op)
}

// Match reports whether rec satisfies the filter.
// Ordering operators only match numbers against numbers and strings against strings.
// A missing field compares as null.
func (f Filter) Match(rec Record) bool {
	left := normalize(rec[f.Field])
	right := normalize(f.Value)

	switch f.Op {
	case OpEq:
		return reflect.DeepEqual(left, right)
	case OpNeq:
		return !reflect.DeepEqual(left, right)
	}

	cmp, ok := compare(left, right)
	if !ok {
		return false
	}
	switch f.Op {
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	}
	return false
}

func compare(a, b interface{}) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// normalize converts v to its JSON representation: float64, string, bool, nil, []interface{} or map[string]interface{}.
func normalize(v interface{}) interface{} {
	switch v.(type) {
	case nil, float64, string, bool:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// Gateway is the persistence boundary: generic CRUD and query over named collections.
// Get, Update and Delete return ErrNotFound when no record has the given id.
type Gateway interface {
	// GetAll returns every record of the collection in insertion order.
	GetAll(ctx context.Context, coll Collection) ([]Record, error)
	Get(ctx context.Context, coll Collection, id string) (Record, error)
	// Add stores a new record under a generated id and returns it with the id set.
	Add(ctx context.Context, coll Collection, rec Record) (Record, error)
	// Update replaces the stored record.
	Update(ctx context.Context, coll Collection, id string, rec Record) error
	Delete(ctx context.Context, coll Collection, id string) error
	// Query returns the records matching the filter in insertion order.
	Query(ctx context.Context, coll Collection, filter Filter) ([]Record, error)
	Close() error
}

// FileStore stores uploaded files and serves them at a public URL.
type FileStore interface {
	Upload(ctx context.Context, r io.Reader, path, contentType string) (url string, err error)
	Delete(ctx context.Context, path string) error
}

// ToRecord converts a JSON tagged struct into a Record.
func ToRecord(v interface{}) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshalling record")
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Wrap(err, "unmarshalling record")
	}
	return rec, nil
}

// FromRecord decodes rec into the JSON tagged struct pointed to by v.
func FromRecord(rec Record, v interface{}) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshalling record")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "unmarshalling record")
	}
	return nil
}

// FromRecords decodes every record into a T.
func FromRecords[T any](recs []Record) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := FromRecord(rec, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Store wraps a Gateway with typed helpers.
type Store[T any] struct {
	gw   Gateway
	coll Collection
}

func NewStore[T any](gw Gateway, coll Collection) Store[T] {
	return Store[T]{gw: gw, coll: coll}
}

func (s Store[T]) All(ctx context.Context) ([]T, error) {
	recs, err := s.gw.GetAll(ctx, s.coll)
	if err != nil {
		return nil, errors.Wrapf(err, "getting all %s", s.coll)
	}
	return FromRecords[T](recs)
}

func (s Store[T]) Get(ctx context.Context, id string) (T, error) {
	var v T
	rec, err := s.gw.Get(ctx, s.coll, id)
	if err != nil {
		return v, errors.Wrapf(err, "getting %s %q", s.coll, id)
	}
	err = FromRecord(rec, &v)
	return v, err
}

func (s Store[T]) Query(ctx context.Context, field string, op Operator, value interface{}) ([]T, error) {
	recs, err := s.gw.Query(ctx, s.coll, Where(field, op, value))
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", s.coll)
	}
	return FromRecords[T](recs)
}

// First returns the first record matching field == value, or ErrNotFound.
func (s Store[T]) First(ctx context.Context, field string, value interface{}) (T, error) {
	var v T
	found, err := s.Query(ctx, field, OpEq, value)
	if err != nil {
		return v, err
	}
	if len(found) == 0 {
		return v, errors.Wrapf(ErrNotFound, "%s with %s %v", s.coll, field, value)
	}
	return found[0], nil
}

func (s Store[T]) Add(ctx context.Context, v T) (T, error) {
	var out T
	rec, err := ToRecord(v)
	if err != nil {
		return out, err
	}
	delete(rec, IDField)
	rec, err = s.gw.Add(ctx, s.coll, rec)
	if err != nil {
		return out, errors.Wrapf(err, "adding to %s", s.coll)
	}
	err = FromRecord(rec, &out)
	return out, err
}

func (s Store[T]) Update(ctx context.Context, id string, v T) error {
	rec, err := ToRecord(v)
	if err != nil {
		return err
	}
	rec[IDField] = id
	if err := s.gw.Update(ctx, s.coll, id, rec); err != nil {
		return errors.Wrapf(err, "updating %s %q", s.coll, id)
	}
	return nil
}

func (s Store[T]) Delete(ctx context.Context, id string) error {
	if err := s.gw.Delete(ctx, s.coll, id); err != nil {
		return errors.Wrapf(err, "deleting %s %q", s.coll, id)
	}
	return nil
}
