package sqlstore_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrijs2005/ormpb/errs"
	"github.com/dmitrijs2005/ormpb/internal/shop"
	"github.com/dmitrijs2005/ormpb/mapper"
	"github.com/dmitrijs2005/ormpb/model"
	"github.com/dmitrijs2005/ormpb/serializer"
	"github.com/dmitrijs2005/ormpb/store/sqlstore"
)

func setupDB(t *testing.T) (*sqlstore.Store, *sql.DB, *model.Registry) {
	t.Helper()
	ctx := context.Background()

	db, err := sqlstore.Open(ctx, sqlstore.SQLite, ":memory:")
	require.NoError(t, err)
	// one connection, so every statement sees the same in-memory database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, sqlstore.Migrate(ctx, db, sqlstore.SQLite, shop.Migrations()))

	models := shop.NewRegistry()
	return sqlstore.New(db, models, sqlstore.SQLite), db, models
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestSQLite_SaveAndGet(t *testing.T) {
	s, _, models := setupDB(t)
	ctx := context.Background()

	note := "ring twice"
	created := time.Date(2024, 2, 29, 23, 59, 59, 123000000, time.UTC)
	c := &shop.Customer{Name: "Ada"}
	require.NoError(t, s.Save(ctx, c))
	o := &shop.Order{
		Ref:       uuid.New(),
		CreatedAt: created,
		Note:      &note,
		Status:    shop.StatusOpen,
		Meta:      map[string]any{"source": "app", "n": 2.0},
		Customer:  c,
	}
	require.NoError(t, s.Save(ctx, o))
	require.NotZero(t, o.ID)

	om, err := models.Meta(o)
	require.NoError(t, err)
	got, err := s.Get(ctx, om, o.ID)
	require.NoError(t, err)

	stored := got.(*shop.Order)
	assert.Equal(t, o.Ref, stored.Ref)
	assert.True(t, created.Equal(stored.CreatedAt))
	assert.Equal(t, time.UTC, stored.CreatedAt.Location())
	assert.Equal(t, note, *stored.Note)
	assert.Equal(t, shop.StatusOpen, stored.Status)
	assert.Equal(t, o.Meta, stored.Meta)
	assert.Equal(t, c.ID, stored.Customer.ID)

	o.Note = nil
	o.Meta = nil
	require.NoError(t, s.Save(ctx, o))
	got, err = s.Get(ctx, om, o.ID)
	require.NoError(t, err)
	assert.Nil(t, got.(*shop.Order).Note)
	assert.Nil(t, got.(*shop.Order).Meta)
}

func TestSQLite_MapperRoundTrip(t *testing.T) {
	s, db, models := setupDB(t)
	ctx := context.Background()
	m := mapper.New(models, serializer.NewRegistry(), s)

	in := shop.OrderType.New().Interface()
	require.NoError(t, protojson.Unmarshal([]byte(`{
		"ref": "3d8f1f8e-51a5-4a39-9a0e-6e3c1b2a9d44",
		"created_at": "2024-06-01T08:00:00Z",
		"status": "ORDER_STATUS_OPEN",
		"customer": {"name": "Grace"},
		"items": [{"sku": "tea", "quantity": 2}, {"sku": "cup", "quantity": 1}],
		"tags": [{"label": "gift"}]
	}`), in))

	saved, err := m.ToObject(ctx, in, nil)
	require.NoError(t, err)
	order := saved.(*shop.Order)
	assert.Equal(t, 1, count(t, db, "orders"))
	assert.Equal(t, 2, count(t, db, "line_item"))
	assert.Equal(t, 1, count(t, db, "order_tags"))

	out, err := m.ToMessage(ctx, order, nil)
	require.NoError(t, err)
	items := fieldValue(out, "items").List()
	require.Equal(t, 2, items.Len())
	assert.Equal(t, "cup", fieldValue(items.Get(1).Message().Interface(), "sku").String())
	assert.Equal(t, "Grace", fieldValue(fieldValue(out, "customer").Message().Interface(), "name").String())

	update := shop.OrderType.New().Interface()
	require.NoError(t, protojson.Unmarshal([]byte(`{
		"id": "1",
		"ref": "3d8f1f8e-51a5-4a39-9a0e-6e3c1b2a9d44",
		"items": [{"id": "2", "sku": "cup", "quantity": 3}, {"sku": "saucer", "quantity": 1}]
	}`), update))
	_, err = m.ToObject(ctx, update, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, count(t, db, "line_item"))
	assert.Equal(t, 0, count(t, db, "order_tags"))
	var qty int
	require.NoError(t, db.QueryRow(`SELECT quantity FROM line_item WHERE id = 2`).Scan(&qty))
	assert.Equal(t, 3, qty)
}

func TestSQLite_FailedSaveRollsBack(t *testing.T) {
	s, db, models := setupDB(t)
	m := mapper.New(models, serializer.NewRegistry(), s)

	in := shop.OrderType.New().Interface()
	require.NoError(t, protojson.Unmarshal([]byte(`{
		"ref": "3d8f1f8e-51a5-4a39-9a0e-6e3c1b2a9d44",
		"created_at": "2024-06-01T08:00:00Z",
		"customer": {"name": "Grace"},
		"items": [{"sku": "tea", "quantity": 2}, {"sku": "air", "quantity": 0}]
	}`), in))

	_, err := m.ToObject(context.Background(), in, nil)
	require.ErrorIs(t, err, errs.ErrValidation)

	for _, table := range []string{"customer", "orders", "line_item"} {
		assert.Equal(t, 0, count(t, db, table), table)
	}
}

func fieldValue(msg proto.Message, name string) protoreflect.Value {
	rm := msg.ProtoReflect()
	return rm.Get(rm.Descriptor().Fields().ByName(protoreflect.Name(name)))
}
