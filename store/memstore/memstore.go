// Package memstore is an in-memory store.Transactional. Transactions work
// on a snapshot of the tables that replaces the committed state on success.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/dmitrijs2005/ormpb/errs"
	"github.com/dmitrijs2005/ormpb/model"
	"github.com/dmitrijs2005/ormpb/store"
)

var uuidType = reflect.TypeOf(uuid.UUID{})

type table struct {
	rows map[any]any
	next int64
}

type pair struct {
	left, right any
}

type state struct {
	tables map[*model.Meta]*table
	joins  map[*model.Field]map[pair]struct{}
}

func (s *state) clone() *state {
	out := &state{
		tables: make(map[*model.Meta]*table, len(s.tables)),
		joins:  make(map[*model.Field]map[pair]struct{}, len(s.joins)),
	}
	for m, t := range s.tables {
		out.tables[m] = &table{rows: maps.Clone(t.rows), next: t.next}
	}
	for k, j := range s.joins {
		out.joins[k] = maps.Clone(j)
	}
	return out
}

type Store struct {
	models *model.Registry

	mu   sync.Mutex
	data *state
	tx   bool
}

var _ store.Transactional = (*Store)(nil)

func New(models *model.Registry) *Store {
	return &Store{
		models: models,
		data:   &state{tables: map[*model.Meta]*table{}, joins: map[*model.Field]map[pair]struct{}{}},
	}
}

// Atomic runs fn against a snapshot and commits it when fn succeeds.
// Transactions are serialized; nested calls join the outer transaction.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.tx {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{models: s.models, data: s.data.clone(), tx: true}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *Store) lock() func() {
	if s.tx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) table(m *model.Meta) *table {
	t, ok := s.data.tables[m]
	if !ok {
		t = &table{rows: map[any]any{}}
		s.data.tables[m] = t
	}
	return t
}

func (s *Store) meta(entity any) (*model.Meta, error) {
	m, err := s.models.Meta(entity)
	if err != nil {
		return nil, err
	}
	return m, m.Check(entity)
}

// copyRow copies the stored columns of src into a new entity. References
// become stubs and collections are left empty.
func copyRow(m *model.Meta, src any) (any, error) {
	dst := m.New()
	for _, f := range m.Columns() {
		v := f.Value(src)
		if f.Relation == model.RelToOne {
			if v.IsNil() {
				continue
			}
			related := f.Related
			if !related.HasPK(v.Interface()) {
				return nil, fmt.Errorf("%s references an unsaved %s", f, related.Name)
			}
			stub := related.New()
			if err := related.SetPK(stub, related.PKValue(v.Interface())); err != nil {
				return nil, err
			}
			f.Value(dst).Set(reflect.ValueOf(stub))
			continue
		}
		f.Value(dst).Set(deepCopy(v))
	}
	return dst, nil
}

func deepCopy(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(deepCopy(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		inner := deepCopy(v.Elem())
		out := reflect.New(v.Type()).Elem()
		out.Set(inner)
		return out
	}
	return v
}

func (s *Store) Get(ctx context.Context, m *model.Meta, pk any) (any, error) {
	defer s.lock()()
	return s.get(m, pk)
}

func (s *Store) get(m *model.Meta, pk any) (any, error) {
	row, ok := s.table(m).rows[pk]
	if !ok {
		return nil, fmt.Errorf("%w: %s %v", errs.ErrNotFound, m.Name, pk)
	}
	return copyRow(m, row)
}

func (s *Store) Save(ctx context.Context, entity any) error {
	defer s.lock()()
	return s.save(entity)
}

func (s *Store) save(entity any) error {
	m, err := s.meta(entity)
	if err != nil {
		return err
	}
	t := s.table(m)

	for _, f := range m.Columns() {
		if f.Relation == model.RelToOne && !f.Null && f.Value(entity).IsNil() {
			return fmt.Errorf("%s is required", f)
		}
	}

	if !m.HasPK(entity) {
		pk := m.PK.Value(entity)
		switch {
		case pk.Type() == uuidType:
			pk.Set(reflect.ValueOf(uuid.New()))
		case pk.CanInt():
			t.next++
			pk.SetInt(t.next)
		default:
			return fmt.Errorf("%s: primary key %s must be set", m.Name, m.PK.Name)
		}
	}

	row, err := copyRow(m, entity)
	if err != nil {
		return err
	}
	pk := m.PKValue(entity)
	if n, ok := asInt(pk); ok && n > t.next {
		t.next = n
	}
	t.rows[pk] = row
	return nil
}

func asInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	if rv.CanInt() {
		return rv.Int(), true
	}
	return 0, false
}

func (s *Store) Delete(ctx context.Context, entity any) error {
	defer s.lock()()
	return s.delete(entity)
}

func (s *Store) delete(entity any) error {
	m, err := s.meta(entity)
	if err != nil {
		return err
	}
	pk := m.PKValue(entity)
	t := s.table(m)
	if _, ok := t.rows[pk]; !ok {
		return fmt.Errorf("%w: %s %v", errs.ErrNotFound, m.Name, pk)
	}
	delete(t.rows, pk)

	for f, j := range s.data.joins {
		for p := range j {
			if (f.Owner() == m && p.left == pk) || (f.Related == m && p.right == pk) {
				delete(j, p)
			}
		}
	}
	return nil
}

func (s *Store) join(f *model.Field) map[pair]struct{} {
	j, ok := s.data.joins[f]
	if !ok {
		j = map[pair]struct{}{}
		s.data.joins[f] = j
	}
	return j
}

func (s *Store) RelatedOne(ctx context.Context, entity any, f *model.Field) (any, error) {
	defer s.lock()()
	return s.relatedOne(entity, f)
}

func (s *Store) relatedOne(entity any, f *model.Field) (any, error) {
	switch f.Relation {
	case model.RelToOne:
		v := f.Value(entity)
		if v.IsNil() {
			return nil, nil
		}
		if !f.Related.HasPK(v.Interface()) {
			return v.Interface(), nil
		}
		return s.get(f.Related, f.Related.PKValue(v.Interface()))

	case model.RelToOneReverse:
		if !f.Owner().HasPK(entity) {
			v := f.Value(entity)
			if v.IsNil() {
				return nil, nil
			}
			return v.Interface(), nil
		}
		rows, err := s.reverseRows(entity, f)
		if err != nil || len(rows) == 0 {
			return nil, err
		}
		return rows[0], nil
	}
	return nil, fmt.Errorf("%s is not a to-one relation", f)
}

func (s *Store) RelatedMany(ctx context.Context, entity any, f *model.Field) ([]any, error) {
	defer s.lock()()
	return s.relatedMany(entity, f)
}

func (s *Store) relatedMany(entity any, f *model.Field) ([]any, error) {
	if !f.Owner().HasPK(entity) {
		v := f.Value(entity)
		out := make([]any, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			out = append(out, v.Index(i).Interface())
		}
		return out, nil
	}

	switch f.Relation {
	case model.RelToMany:
		return s.reverseRows(entity, f)
	case model.RelManyToMany:
		pk := f.Owner().PKValue(entity)
		var keys []any
		for p := range s.join(f) {
			if p.left == pk {
				keys = append(keys, p.right)
			}
		}
		sortKeys(keys)
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			e, err := s.get(f.Related, k)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s is not a collection", f)
}

// reverseRows loads the related entities whose remote reference points at
// entity, ordered by primary key.
func (s *Store) reverseRows(entity any, f *model.Field) ([]any, error) {
	remote, ok := f.Related.Field(f.Remote)
	if !ok {
		return nil, fmt.Errorf("%s has no field %s", f.Related, f.Remote)
	}
	pk := f.Owner().PKValue(entity)

	var keys []any
	for k, row := range s.table(f.Related).rows {
		ref := remote.Value(row)
		if !ref.IsNil() && f.Owner().PKValue(ref.Interface()) == pk {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)

	out := make([]any, 0, len(keys))
	for _, k := range keys {
		e, err := s.get(f.Related, k)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func sortKeys(keys []any) {
	sort.Slice(keys, func(i, j int) bool {
		a, aok := asInt(keys[i])
		b, bok := asInt(keys[j])
		if aok && bok {
			return a < b
		}
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})
}

func (s *Store) SetRelatedMany(ctx context.Context, entity any, f *model.Field, related []any) error {
	defer s.lock()()

	keep := lo.Map(related, func(e any, _ int) any { return f.Related.PKValue(e) })
	if err := s.deleteWhereNotIn(entity, f, keep); err != nil {
		return err
	}
	for _, e := range related {
		if err := s.addToMany(entity, f, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AddToMany(ctx context.Context, entity any, f *model.Field, related any) error {
	defer s.lock()()
	return s.addToMany(entity, f, related)
}

func (s *Store) addToMany(entity any, f *model.Field, related any) error {
	switch f.Relation {
	case model.RelToMany, model.RelToOneReverse:
		remote, ok := f.Related.Field(f.Remote)
		if !ok {
			return fmt.Errorf("%s has no field %s", f.Related, f.Remote)
		}
		if err := remote.Set(related, entity); err != nil {
			return err
		}
		return s.save(related)
	case model.RelManyToMany:
		if !f.Owner().HasPK(entity) || !f.Related.HasPK(related) {
			return fmt.Errorf("%s: both sides must be saved before they are joined", f)
		}
		s.join(f)[pair{f.Owner().PKValue(entity), f.Related.PKValue(related)}] = struct{}{}
		return nil
	}
	return fmt.Errorf("%s is not a collection", f)
}

func (s *Store) RemoveFromMany(ctx context.Context, entity any, f *model.Field, related any) error {
	defer s.lock()()
	return s.removeFromMany(entity, f, related)
}

func (s *Store) removeFromMany(entity any, f *model.Field, related any) error {
	switch f.Relation {
	case model.RelToMany, model.RelToOneReverse:
		remote, ok := f.Related.Field(f.Remote)
		if !ok {
			return fmt.Errorf("%s has no field %s", f.Related, f.Remote)
		}
		if !remote.Null {
			return s.delete(related)
		}
		if err := remote.Set(related, nil); err != nil {
			return err
		}
		return s.save(related)
	case model.RelManyToMany:
		delete(s.join(f), pair{f.Owner().PKValue(entity), f.Related.PKValue(related)})
		return nil
	}
	return fmt.Errorf("%s is not a collection", f)
}

func (s *Store) DeleteWhereNotIn(ctx context.Context, entity any, f *model.Field, keep []any) error {
	defer s.lock()()
	return s.deleteWhereNotIn(entity, f, keep)
}

func (s *Store) deleteWhereNotIn(entity any, f *model.Field, keep []any) error {
	if !f.Owner().HasPK(entity) {
		return nil
	}

	var current []any
	var err error
	if f.Relation == model.RelToOneReverse {
		current, err = s.reverseRows(entity, f)
	} else {
		current, err = s.relatedMany(entity, f)
	}
	if err != nil {
		return err
	}

	for _, e := range current {
		if lo.Contains(keep, f.Related.PKValue(e)) {
			continue
		}
		if f.Relation == model.RelManyToMany {
			err = s.removeFromMany(entity, f, e)
		} else {
			err = s.delete(e)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
