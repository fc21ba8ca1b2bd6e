package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrijs2005/ormpb/errs"
	"github.com/dmitrijs2005/ormpb/internal/shop"
	"github.com/dmitrijs2005/ormpb/mapper"
	"github.com/dmitrijs2005/ormpb/serializer"
	"github.com/dmitrijs2005/ormpb/store/sqlstore"
)

func seed(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shop.db")

	db, err := sqlstore.Open(ctx, sqlstore.SQLite, path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, sqlstore.Migrate(ctx, db, sqlstore.SQLite, shop.Migrations()))

	models := shop.NewRegistry()
	m := mapper.New(models, serializer.NewRegistry(), sqlstore.New(db, models, sqlstore.SQLite))

	in := shop.OrderType.New().Interface()
	require.NoError(t, protojson.Unmarshal([]byte(`{
		"ref": "3d8f1f8e-51a5-4a39-9a0e-6e3c1b2a9d44",
		"created_at": "2024-06-01T08:00:00Z",
		"customer": {"name": "Grace", "avatar": "avatars/grace.png"},
		"items": [{"sku": "tea", "quantity": 2}, {"sku": "cup", "quantity": 1}]
	}`), in))
	_, err = m.ToObject(ctx, in, nil)
	require.NoError(t, err)

	return path
}

func field(msg protoreflect.Message, name string) protoreflect.Value {
	return msg.Get(msg.Descriptor().Fields().ByName(protoreflect.Name(name)))
}

func TestRun_DumpsOrder(t *testing.T) {
	path := seed(t)

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"-dialect", "sqlite", "-d", path, "-id", "1",
		"-url", "-file-base-url", "https://cdn.example.com/media",
	}, &out, &bytes.Buffer{})
	require.NoError(t, err)

	msg := shop.OrderType.New().Interface()
	require.NoError(t, protojson.Unmarshal(out.Bytes(), msg))
	rm := msg.ProtoReflect()

	assert.Equal(t, int64(1), field(rm, "id").Int())
	assert.Equal(t, 2, field(rm, "items").List().Len())
	customer := field(rm, "customer").Message()
	assert.Equal(t, "Grace", field(customer, "name").String())
	assert.Equal(t, "https://cdn.example.com/media/avatars/grace.png", field(customer, "avatar").String())
}

func TestRun_Errors(t *testing.T) {
	path := seed(t)
	ctx := context.Background()

	err := run(ctx, []string{"-dialect", "sqlite", "-d", path}, &bytes.Buffer{}, &bytes.Buffer{})
	require.ErrorContains(t, err, "-id is required")

	err = run(ctx, []string{"-dialect", "sqlite", "-d", path, "-id", "99"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.ErrorIs(t, err, errs.ErrNotFound)

	err = run(ctx, []string{"-dialect", "oracle", "-id", "1"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.ErrorContains(t, err, "unknown SQL dialect")
}
