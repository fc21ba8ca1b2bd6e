// Package sqlstore is a store.Transactional over database/sql. Entities are
// stored one table per entity type, many-to-many relations in join tables.
// Postgres (through pgx) and SQLite (through modernc.org/sqlite) are
// supported.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/dmitrijs2005/ormpb/errs"
	"github.com/dmitrijs2005/ormpb/internal/dbx"
	"github.com/dmitrijs2005/ormpb/model"
	"github.com/dmitrijs2005/ormpb/store"
)

type Store struct {
	db      *sql.DB
	q       dbx.DBTX
	models  *model.Registry
	dialect Dialect
}

func New(db *sql.DB, models *model.Registry, dialect Dialect) *Store {
	return &Store{db: db, q: db, models: models, dialect: dialect}
}

// Atomic runs fn in a database transaction. Calls made on a transactional
// store join the running transaction.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	if s.db == nil {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &Store{q: tx, models: s.models, dialect: s.dialect})
	})
}

func (s *Store) meta(entity any) (*model.Meta, error) {
	m, err := s.models.Meta(entity)
	if err != nil {
		return nil, err
	}
	return m, m.Check(entity)
}

func columnNames(fields []*model.Field) []string {
	return lo.Map(fields, func(f *model.Field, _ int) string { return f.Column })
}

func (s *Store) selectFrom(m *model.Meta, alias string) string {
	cols := lo.Map(m.Columns(), func(f *model.Field, _ int) string {
		return alias + "." + quote(f.Column)
	})
	return fmt.Sprintf("SELECT %s FROM %s %s", strings.Join(cols, ", "), quote(m.Table), alias)
}

// query loads every row of m's type returned by a query built on
// selectFrom(m, "t").
func (s *Store) query(ctx context.Context, m *model.Meta, query string, args ...any) ([]any, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", m.Name, err)
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		e := m.New()
		if err := rows.Scan(scanTargets(m, e)...); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", m.Name, err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, m *model.Meta, pk any) (any, error) {
	query := s.selectFrom(m, "t") + fmt.Sprintf(" WHERE t.%s = %s", quote(m.PK.Column), s.dialect.placeholder(1))

	e := m.New()
	err := s.q.QueryRowContext(ctx, query, key(pk)).Scan(scanTargets(m, e)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %v", errs.ErrNotFound, m.Name, pk)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %v: %w", m.Name, pk, err)
	}
	return e, nil
}

// key converts a primary key value into a bind argument.
func key(v any) any {
	if id, ok := v.(uuid.UUID); ok {
		return id.String()
	}
	return v
}

func (s *Store) values(m *model.Meta, entity any, fields []*model.Field) ([]any, error) {
	args := make([]any, len(fields))
	for i, f := range fields {
		v, err := s.dialect.encode(f, entity)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// Save inserts entities without a primary key, letting the database assign
// it, and updates the others. An entity with a primary key that does not
// exist yet is inserted with that key.
func (s *Store) Save(ctx context.Context, entity any) error {
	m, err := s.meta(entity)
	if err != nil {
		return err
	}

	for _, f := range m.Columns() {
		if f.Relation == model.RelToOne && !f.Null && f.Value(entity).IsNil() {
			return fmt.Errorf("%s is required", f)
		}
	}

	if !m.HasPK(entity) {
		if m.PK.Value(entity).Type() == uuidType {
			if err := m.SetPK(entity, uuid.New()); err != nil {
				return err
			}
			return s.insert(ctx, m, entity, true)
		}
		return s.insert(ctx, m, entity, false)
	}

	updated, err := s.update(ctx, m, entity)
	if err != nil || updated {
		return err
	}
	return s.insert(ctx, m, entity, true)
}

func (s *Store) insert(ctx context.Context, m *model.Meta, entity any, withPK bool) error {
	fields := m.Columns()
	if !withPK {
		fields = lo.Reject(fields, func(f *model.Field, _ int) bool { return f.PK })
	}
	args, err := s.values(m, entity, fields)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(m.Table), quoteAll(columnNames(fields)), s.dialect.placeholders(0, len(fields)))

	if withPK {
		if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %s: %w", m.Name, err)
		}
		return nil
	}

	query += " RETURNING " + quote(m.PK.Column)
	pk := &column{field: m.PK, dst: m.PK.Value(entity)}
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(pk); err != nil {
		return fmt.Errorf("insert %s: %w", m.Name, err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, m *model.Meta, entity any) (bool, error) {
	fields := lo.Reject(m.Columns(), func(f *model.Field, _ int) bool { return f.PK })
	if len(fields) == 0 {
		return s.exists(ctx, m, entity)
	}
	args, err := s.values(m, entity, fields)
	if err != nil {
		return false, err
	}

	sets := make([]string, len(fields))
	for i, f := range fields {
		sets[i] = quote(f.Column) + " = " + s.dialect.placeholder(i+1)
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		quote(m.Table), strings.Join(sets, ", "), quote(m.PK.Column), s.dialect.placeholder(len(fields)+1))
	args = append(args, key(m.PKValue(entity)))

	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", m.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update %s: %w", m.Name, err)
	}
	return n > 0, nil
}

// exists stands in for update when the primary key is the only column.
func (s *Store) exists(ctx context.Context, m *model.Meta, entity any) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = %s",
		quote(m.Table), quote(m.PK.Column), s.dialect.placeholder(1))

	var one int
	err := s.q.QueryRowContext(ctx, query, key(m.PKValue(entity))).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update %s: %w", m.Name, err)
	}
	return true, nil
}

// Delete removes the entity's row and the join rows that point at it.
func (s *Store) Delete(ctx context.Context, entity any) error {
	m, err := s.meta(entity)
	if err != nil {
		return err
	}
	pk := key(m.PKValue(entity))

	for _, owner := range s.models.Metas() {
		for _, f := range owner.Fields {
			if f.Relation != model.RelManyToMany {
				continue
			}
			left, right := f.JoinColumns()
			if owner == m {
				if err := s.unjoin(ctx, f, left, pk); err != nil {
					return err
				}
			}
			if f.Related == m {
				if err := s.unjoin(ctx, f, right, pk); err != nil {
					return err
				}
			}
		}
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", quote(m.Table), quote(m.PK.Column), s.dialect.placeholder(1))
	res, err := s.q.ExecContext(ctx, query, pk)
	if err != nil {
		return fmt.Errorf("delete %s: %w", m.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s %v", errs.ErrNotFound, m.Name, m.PKValue(entity))
	}
	return nil
}

func (s *Store) unjoin(ctx context.Context, f *model.Field, col string, pk any) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", quote(f.JoinTable()), quote(col), s.dialect.placeholder(1))
	if _, err := s.q.ExecContext(ctx, query, pk); err != nil {
		return fmt.Errorf("delete %s: %w", f.JoinTable(), err)
	}
	return nil
}

// memory returns the in-memory value of a relation field as a list.
func memory(f *model.Field, entity any) []any {
	v := f.Value(entity)
	if v.Kind() != reflect.Slice {
		if v.IsNil() {
			return nil
		}
		return []any{v.Interface()}
	}
	out := make([]any, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		out = append(out, v.Index(i).Interface())
	}
	return out
}
