package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ormpb/errs"
	"github.com/dmitrijs2005/ormpb/internal/shop"
	"github.com/dmitrijs2005/ormpb/model"
	"github.com/dmitrijs2005/ormpb/store"
)

func setup(t *testing.T) (*Store, *model.Registry) {
	t.Helper()
	models := shop.NewRegistry()
	return New(models), models
}

func metaOf(t *testing.T, models *model.Registry, v any) *model.Meta {
	t.Helper()
	m, err := models.Meta(v)
	require.NoError(t, err)
	return m
}

func fieldOf(t *testing.T, m *model.Meta, name string) *model.Field {
	t.Helper()
	f, ok := m.Field(name)
	require.True(t, ok, name)
	return f
}

func TestSave_AssignsKeysAndCopies(t *testing.T) {
	s, models := setup(t)
	ctx := context.Background()

	note := "first"
	o := &shop.Order{Ref: uuid.New(), CreatedAt: time.Now(), Note: &note, Meta: map[string]any{"k": "v"}}
	require.NoError(t, s.Save(ctx, o))
	assert.Equal(t, int64(1), o.ID)

	note = "changed"
	o.Meta["k"] = "changed"

	got, err := s.Get(ctx, metaOf(t, models, o), int64(1))
	require.NoError(t, err)
	stored := got.(*shop.Order)
	assert.Equal(t, "first", *stored.Note)
	assert.Equal(t, "v", stored.Meta["k"])
	assert.NotSame(t, o, stored)

	explicit := &shop.Order{ID: 10, CreatedAt: time.Now()}
	require.NoError(t, s.Save(ctx, explicit))
	next := &shop.Order{CreatedAt: time.Now()}
	require.NoError(t, s.Save(ctx, next))
	assert.Equal(t, int64(11), next.ID)
}

func TestGet_NotFound(t *testing.T) {
	s, models := setup(t)

	_, err := s.Get(context.Background(), metaOf(t, models, &shop.Tag{}), int64(7))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSave_References(t *testing.T) {
	s, models := setup(t)
	ctx := context.Background()

	err := s.Save(ctx, &shop.LineItem{SKU: "x", Quantity: 1})
	assert.ErrorContains(t, err, "LineItem.order is required")

	err = s.Save(ctx, &shop.Order{Customer: &shop.Customer{Name: "unsaved"}})
	assert.ErrorContains(t, err, "unsaved Customer")

	c := &shop.Customer{Name: "Ada"}
	require.NoError(t, s.Save(ctx, c))
	o := &shop.Order{Customer: c}
	require.NoError(t, s.Save(ctx, o))

	got, err := s.Get(ctx, metaOf(t, models, o), o.ID)
	require.NoError(t, err)
	stub := got.(*shop.Order).Customer
	require.NotNil(t, stub)
	assert.Equal(t, c.ID, stub.ID)
	assert.Empty(t, stub.Name, "references load as stubs")

	one, err := s.RelatedOne(ctx, got, fieldOf(t, metaOf(t, models, o), "customer"))
	require.NoError(t, err)
	assert.Equal(t, "Ada", one.(*shop.Customer).Name)
}

func TestRelatedOne_Dangling(t *testing.T) {
	s, models := setup(t)
	ctx := context.Background()

	o := &shop.Order{Customer: &shop.Customer{ID: 42}}
	require.NoError(t, s.Save(ctx, o))

	_, err := s.RelatedOne(ctx, o, fieldOf(t, metaOf(t, models, o), "customer"))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRelatedMany_UnsavedUsesMemory(t *testing.T) {
	s, models := setup(t)

	o := &shop.Order{Items: []*shop.LineItem{{SKU: "a"}, {SKU: "b"}}}
	rows, err := s.RelatedMany(context.Background(), o, fieldOf(t, metaOf(t, models, o), "items"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[1].(*shop.LineItem).SKU)
}

func TestReverseRelation(t *testing.T) {
	s, models := setup(t)
	ctx := context.Background()
	om := metaOf(t, models, &shop.Order{})
	items := fieldOf(t, om, "items")

	o := &shop.Order{}
	require.NoError(t, s.Save(ctx, o))

	var saved []*shop.LineItem
	for _, sku := range []string{"a", "b", "c"} {
		li := &shop.LineItem{SKU: sku, Quantity: 1}
		require.NoError(t, s.AddToMany(ctx, o, items, li))
		saved = append(saved, li)
	}

	rows, err := s.RelatedMany(ctx, o, items)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	require.NoError(t, s.DeleteWhereNotIn(ctx, o, items, []any{saved[0].ID, saved[2].ID}))
	rows, err = s.RelatedMany(ctx, o, items)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].(*shop.LineItem).SKU)
	assert.Equal(t, "c", rows[1].(*shop.LineItem).SKU)

	// order is not nullable on line items, so removing deletes the row
	require.NoError(t, s.RemoveFromMany(ctx, o, items, saved[0]))
	_, err = s.Get(ctx, metaOf(t, models, &shop.LineItem{}), saved[0].ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestReverseRelation_NullableDetaches(t *testing.T) {
	s, models := setup(t)
	ctx := context.Background()
	cm := metaOf(t, models, &shop.Customer{})
	orders := fieldOf(t, cm, "orders")

	c := &shop.Customer{Name: "Ada"}
	require.NoError(t, s.Save(ctx, c))
	o := &shop.Order{}
	require.NoError(t, s.AddToMany(ctx, c, orders, o))

	require.NoError(t, s.RemoveFromMany(ctx, c, orders, o))
	got, err := s.Get(ctx, metaOf(t, models, o), o.ID)
	require.NoError(t, err)
	assert.Nil(t, got.(*shop.Order).Customer)
}

func TestManyToMany(t *testing.T) {
	s, models := setup(t)
	ctx := context.Background()
	om := metaOf(t, models, &shop.Order{})
	tags := fieldOf(t, om, "tags")

	o := &shop.Order{}
	require.NoError(t, s.Save(ctx, o))

	unsaved := &shop.Tag{Label: "new"}
	assert.Error(t, s.AddToMany(ctx, o, tags, unsaved))

	var all []any
	for _, label := range []string{"x", "y", "z"} {
		tag := &shop.Tag{Label: label}
		require.NoError(t, s.Save(ctx, tag))
		all = append(all, tag)
	}
	require.NoError(t, s.SetRelatedMany(ctx, o, tags, all))

	require.NoError(t, s.SetRelatedMany(ctx, o, tags, all[1:]))
	rows, err := s.RelatedMany(ctx, o, tags)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "y", rows[0].(*shop.Tag).Label)

	// detached tags stay
	_, err = s.Get(ctx, metaOf(t, models, &shop.Tag{}), all[0].(*shop.Tag).ID)
	require.NoError(t, err)

	// deleting a tag drops its join rows
	require.NoError(t, s.Delete(ctx, all[1]))
	rows, err = s.RelatedMany(ctx, o, tags)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "z", rows[0].(*shop.Tag).Label)
}

func TestAtomic(t *testing.T) {
	s, models := setup(t)
	ctx := context.Background()
	tm := metaOf(t, models, &shop.Tag{})

	boom := errors.New("boom")
	err := s.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		require.NoError(t, tx.Save(ctx, &shop.Tag{Label: "rolled back"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = s.Get(ctx, tm, int64(1))
	assert.ErrorIs(t, err, errs.ErrNotFound)

	err = s.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.Save(ctx, &shop.Tag{Label: "kept"}); err != nil {
			return err
		}
		return tx.(store.Atomic).Atomic(ctx, func(ctx context.Context, inner store.Store) error {
			return inner.Save(ctx, &shop.Tag{Label: "nested"})
		})
	})
	require.NoError(t, err)

	for _, pk := range []int64{1, 2} {
		_, err := s.Get(ctx, tm, pk)
		assert.NoError(t, err)
	}
}

func TestAtomic_PanicDiscardsWrites(t *testing.T) {
	s, models := setup(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
			_ = tx.Save(ctx, &shop.Tag{Label: "lost"})
			panic("boom")
		})
	})

	_, err := s.Get(ctx, metaOf(t, models, &shop.Tag{}), int64(1))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestSave_RejectsForeignType(t *testing.T) {
	s, _ := setup(t)
	assert.ErrorIs(t, s.Save(context.Background(), &struct{ ID int }{}), errs.ErrUnregistered)
}
