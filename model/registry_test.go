package model_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrijs2005/ormpb/errs"
	"github.com/dmitrijs2005/ormpb/internal/shop"
	"github.com/dmitrijs2005/ormpb/model"
)

func TestRegister_BuildsFieldTable(t *testing.T) {
	r := shop.NewRegistry()

	m, err := r.Meta(&shop.Order{})
	require.NoError(t, err)

	assert.Equal(t, "Order", m.Name)
	assert.Equal(t, "orders", m.Table)
	assert.Equal(t, "id", m.PK.Name)
	assert.Same(t, model.BigAutoField, m.PK.Type)

	want := map[string]struct {
		ft  *model.FieldType
		rel model.Relation
		col string
	}{
		"ref":        {model.UUIDField, model.RelNone, "ref"},
		"created_at": {model.DateTimeField, model.RelNone, "created_at"},
		"note":       {model.TextField, model.RelNone, "note"},
		"status":     {model.IntegerField, model.RelNone, "status"},
		"meta":       {model.JSONField, model.RelNone, "meta"},
		"customer":   {model.ForeignKey, model.RelToOne, "customer_id"},
		"items":      {model.ReverseManyToOne, model.RelToMany, ""},
		"tags":       {model.ManyToManyField, model.RelManyToMany, ""},
	}
	for name, w := range want {
		f, ok := m.Field(name)
		require.True(t, ok, name)
		assert.Same(t, w.ft, f.Type, name)
		assert.Equal(t, w.rel, f.Relation, name)
		assert.Equal(t, w.col, f.Column, name)
	}

	note, _ := m.Field("note")
	assert.True(t, note.Null)
	meta, _ := m.Field("meta")
	assert.True(t, meta.Null)

	tags, _ := m.Field("tags")
	assert.Equal(t, "order_tags", tags.JoinTable())
	l, rcol := tags.JoinColumns()
	assert.Equal(t, "order_id", l)
	assert.Equal(t, "tag_id", rcol)

	items, _ := m.Field("items")
	assert.Equal(t, "order", items.Remote)
	assert.Equal(t, "LineItem", items.Related.Name)

	cols := make([]string, 0)
	for _, f := range m.Columns() {
		cols = append(cols, f.Column)
	}
	assert.Equal(t, []string{"id", "ref", "created_at", "note", "status", "meta", "customer_id"}, cols)
}

func TestRegister_ReferenceProxy(t *testing.T) {
	r := shop.NewRegistry()
	m, err := r.Meta(reflect.TypeOf(shop.Order{}))
	require.NoError(t, err)

	proxy, ok := m.Field("customer_id")
	require.True(t, ok)
	assert.True(t, proxy.IsProxy())
	assert.Same(t, model.BigAutoField, proxy.Type)
	assert.False(t, proxy.Stored())

	o := &shop.Order{}
	assert.Nil(t, proxy.Get(o))

	require.NoError(t, proxy.Set(o, int64(7)))
	require.NotNil(t, o.Customer)
	assert.Equal(t, int64(7), o.Customer.ID)
	assert.Equal(t, int64(7), proxy.Get(o))

	require.NoError(t, proxy.Set(o, int64(0)))
	assert.Nil(t, o.Customer)
}

func TestRegister_DiscoversRelatedTypes(t *testing.T) {
	r := model.NewRegistry()
	_, err := r.Register(&shop.LineItem{}, model.Options{})
	require.NoError(t, err)

	// Order and, through it, Customer and Tag are discovered but not registered.
	om, err := r.Meta(&shop.Order{})
	require.NoError(t, err)
	assert.False(t, r.Registered(om))
	_, err = r.Meta(&shop.Tag{})
	require.NoError(t, err)

	_, err = r.DefaultMessage(om)
	assert.True(t, errors.Is(err, errs.ErrUnregistered))

	lm, err := r.Meta(&shop.LineItem{})
	require.NoError(t, err)
	_, err = r.DefaultMessage(lm)
	assert.True(t, errors.Is(err, errs.ErrNoMessageType))

	assert.Len(t, r.Metas(), 1)
}

func TestRegister_OptionValidation(t *testing.T) {
	tests := []struct {
		name string
		opts model.Options
	}{
		{"fields with exclude", model.Options{Fields: []string{"label"}, Exclude: []string{"id"}}},
		{"fields with extra", model.Options{Fields: []string{"label"}, Extra: []string{"id"}}},
		{"exclude and extra overlap", model.Options{Exclude: []string{"label"}, Extra: []string{"label"}}},
		{"unknown field", model.Options{Fields: []string{"nope"}}},
		{"unknown exclude", model.Options{Exclude: []string{"nope"}}},
		{"unknown null_as_empty", model.Options{NullAsEmpty: []string{"nope"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := model.NewRegistry()
			_, err := r.Register(&shop.Tag{}, tt.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrConfig))
		})
	}
}

func TestRegister_CustomFieldNamesAreKnown(t *testing.T) {
	r := model.NewRegistry()
	_, err := r.Register(&shop.Order{}, model.Options{
		Fields: []string{"ref", "display_ref"},
		Custom: map[string]model.CustomField{"display_ref": shop.DisplayRef},
	})
	require.NoError(t, err)
}

func TestRegister_Twice(t *testing.T) {
	r := shop.NewRegistry()
	_, err := r.Register(&shop.Tag{}, model.Options{})
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestRegister_MessageMappedOnce(t *testing.T) {
	r := model.NewRegistry()
	_, err := r.Register(&shop.Tag{}, model.Options{Messages: []protoreflect.MessageType{shop.TagType}})
	require.NoError(t, err)
	_, err = r.Register(&shop.Customer{}, model.Options{Messages: []protoreflect.MessageType{shop.TagType}})
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

func TestMetaForMessage(t *testing.T) {
	r := shop.NewRegistry()

	m, err := r.MetaForMessage(shop.OrderSummaryType.Descriptor().FullName())
	require.NoError(t, err)
	assert.Equal(t, "Order", m.Name)

	mt, err := r.DefaultMessage(m)
	require.NoError(t, err)
	assert.Equal(t, shop.OrderType, mt)

	_, err = r.MetaForMessage("shop.Nope")
	assert.True(t, errors.Is(err, errs.ErrUnregistered))
}

type badReverse struct {
	ID       int64          `orm:"id"`
	Children []*badReverse2 `orm:"children,reverse=owner"`
}

type badReverse2 struct {
	ID    int64 `orm:"id"`
	Other int64 `orm:"owner"`
}

type noKey struct {
	Name string
}

type bareSlice struct {
	ID   int64
	Tags []*shop.Tag
}

type scalars struct {
	ID      int32
	Small   int16
	Count   uint32
	Ratio   float32
	Data    []byte
	Labels  []string
	Any     any
	Ref     *uuid.UUID
	Seen    *time.Time
	private string
	Skipped string `orm:"-"`
}

func TestRegister_RejectsBadModels(t *testing.T) {
	for _, entity := range []any{&badReverse{}, &noKey{}, &bareSlice{}, 42} {
		_, err := model.NewRegistry().Register(entity, model.Options{})
		assert.True(t, errors.Is(err, errs.ErrConfig), "%T: %v", entity, err)
	}
}

func TestRegister_InfersScalarTypes(t *testing.T) {
	m, err := model.NewRegistry().Register(&scalars{}, model.Options{})
	require.NoError(t, err)

	want := map[string]*model.FieldType{
		"id":     model.AutoField,
		"small":  model.SmallIntegerField,
		"count":  model.PositiveIntegerField,
		"ratio":  model.FloatField,
		"data":   model.BinaryField,
		"labels": model.ArrayField,
		"any":    model.JSONField,
		"ref":    model.UUIDField,
		"seen":   model.DateTimeField,
	}
	for name, ft := range want {
		f, ok := m.Field(name)
		require.True(t, ok, name)
		assert.Same(t, ft, f.Type, name)
	}

	labels, _ := m.Field("labels")
	assert.Same(t, model.CharField, labels.Elem)

	seen, _ := m.Field("seen")
	assert.True(t, seen.Null)

	_, ok := m.Field("skipped")
	assert.False(t, ok)
	_, ok = m.Field("private")
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	_, err := model.Default.Register(&shop.Tag{}, model.Options{})
	require.NoError(t, err)
	require.Len(t, model.Default.Metas(), 1)

	model.Reset()
	assert.Empty(t, model.Default.Metas())
}
