package sqlstore

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/ormpb/model"
)

func remoteOf(f *model.Field) (*model.Field, error) {
	remote, ok := f.Related.Field(f.Remote)
	if !ok {
		return nil, fmt.Errorf("%s has no field %s", f.Related, f.Remote)
	}
	return remote, nil
}

// reverseRows loads the related rows whose foreign key points at entity.
func (s *Store) reverseRows(ctx context.Context, entity any, f *model.Field, limit bool) ([]any, error) {
	remote, err := remoteOf(f)
	if err != nil {
		return nil, err
	}
	query := s.selectFrom(f.Related, "t") + fmt.Sprintf(" WHERE t.%s = %s ORDER BY t.%s",
		quote(remote.Column), s.dialect.placeholder(1), quote(f.Related.PK.Column))
	if limit {
		query += " LIMIT 1"
	}
	return s.query(ctx, f.Related, query, key(f.Owner().PKValue(entity)))
}

func (s *Store) RelatedOne(ctx context.Context, entity any, f *model.Field) (any, error) {
	switch f.Relation {
	case model.RelToOne:
		v := f.Value(entity)
		if v.IsNil() {
			return nil, nil
		}
		if !f.Related.HasPK(v.Interface()) {
			return v.Interface(), nil
		}
		return s.Get(ctx, f.Related, f.Related.PKValue(v.Interface()))

	case model.RelToOneReverse:
		if !f.Owner().HasPK(entity) {
			return lo.FirstOr(memory(f, entity), nil), nil
		}
		rows, err := s.reverseRows(ctx, entity, f, true)
		if err != nil {
			return nil, err
		}
		return lo.FirstOr(rows, nil), nil
	}
	return nil, fmt.Errorf("%s is not a to-one relation", f)
}

func (s *Store) RelatedMany(ctx context.Context, entity any, f *model.Field) ([]any, error) {
	if !f.Owner().HasPK(entity) {
		return memory(f, entity), nil
	}

	var (
		rows []any
		err  error
	)
	switch f.Relation {
	case model.RelToMany:
		rows, err = s.reverseRows(ctx, entity, f, false)
	case model.RelManyToMany:
		left, right := f.JoinColumns()
		query := s.selectFrom(f.Related, "t") + fmt.Sprintf(" JOIN %s j ON j.%s = t.%s WHERE j.%s = %s ORDER BY t.%s",
			quote(f.JoinTable()), quote(right), quote(f.Related.PK.Column),
			quote(left), s.dialect.placeholder(1), quote(f.Related.PK.Column))
		rows, err = s.query(ctx, f.Related, query, key(f.Owner().PKValue(entity)))
	default:
		return nil, fmt.Errorf("%s is not a collection", f)
	}
	if rows == nil && err == nil {
		rows = []any{}
	}
	return rows, err
}

func (s *Store) SetRelatedMany(ctx context.Context, entity any, f *model.Field, related []any) error {
	keep := lo.FilterMap(related, func(e any, _ int) (any, bool) {
		return f.Related.PKValue(e), f.Related.HasPK(e)
	})
	if err := s.DeleteWhereNotIn(ctx, entity, f, keep); err != nil {
		return err
	}
	for _, e := range related {
		if err := s.AddToMany(ctx, entity, f, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) AddToMany(ctx context.Context, entity any, f *model.Field, related any) error {
	switch f.Relation {
	case model.RelToMany, model.RelToOneReverse:
		remote, err := remoteOf(f)
		if err != nil {
			return err
		}
		if err := remote.Set(related, entity); err != nil {
			return err
		}
		return s.Save(ctx, related)

	case model.RelManyToMany:
		if !f.Owner().HasPK(entity) || !f.Related.HasPK(related) {
			return fmt.Errorf("%s: both sides must be saved before they are joined", f)
		}
		left, right := f.JoinColumns()
		query := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s) ON CONFLICT DO NOTHING",
			quote(f.JoinTable()), quote(left), quote(right), s.dialect.placeholders(0, 2))
		if _, err := s.q.ExecContext(ctx, query, key(f.Owner().PKValue(entity)), key(f.Related.PKValue(related))); err != nil {
			return fmt.Errorf("join %s: %w", f.JoinTable(), err)
		}
		return nil
	}
	return fmt.Errorf("%s is not a collection", f)
}

func (s *Store) RemoveFromMany(ctx context.Context, entity any, f *model.Field, related any) error {
	switch f.Relation {
	case model.RelToMany, model.RelToOneReverse:
		remote, err := remoteOf(f)
		if err != nil {
			return err
		}
		if !remote.Null {
			return s.Delete(ctx, related)
		}
		if err := remote.Set(related, nil); err != nil {
			return err
		}
		return s.Save(ctx, related)

	case model.RelManyToMany:
		left, right := f.JoinColumns()
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s AND %s = %s",
			quote(f.JoinTable()), quote(left), s.dialect.placeholder(1), quote(right), s.dialect.placeholder(2))
		if _, err := s.q.ExecContext(ctx, query, key(f.Owner().PKValue(entity)), key(f.Related.PKValue(related))); err != nil {
			return fmt.Errorf("unjoin %s: %w", f.JoinTable(), err)
		}
		return nil
	}
	return fmt.Errorf("%s is not a collection", f)
}

// DeleteWhereNotIn runs as one statement: DELETE ... WHERE fk = $1 AND pk
// NOT IN (...), the NOT IN part omitted when keep is empty.
func (s *Store) DeleteWhereNotIn(ctx context.Context, entity any, f *model.Field, keep []any) error {
	if !f.Owner().HasPK(entity) {
		return nil
	}

	var table, ownerCol, keyCol string
	switch f.Relation {
	case model.RelToMany, model.RelToOneReverse:
		remote, err := remoteOf(f)
		if err != nil {
			return err
		}
		table, ownerCol, keyCol = f.Related.Table, remote.Column, f.Related.PK.Column
	case model.RelManyToMany:
		left, right := f.JoinColumns()
		table, ownerCol, keyCol = f.JoinTable(), left, right
	default:
		return fmt.Errorf("%s is not a collection", f)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", quote(table), quote(ownerCol), s.dialect.placeholder(1))
	args := []any{key(f.Owner().PKValue(entity))}
	if len(keep) > 0 {
		query += fmt.Sprintf(" AND %s NOT IN (%s)", quote(keyCol), s.dialect.placeholders(1, len(keep)))
		args = append(args, lo.Map(keep, func(k any, _ int) any { return key(k) })...)
	}

	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}
