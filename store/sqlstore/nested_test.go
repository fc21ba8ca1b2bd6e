package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/dmitrijs2005/ormpb/errs"
	"github.com/dmitrijs2005/ormpb/mapper"
	"github.com/dmitrijs2005/ormpb/model"
	"github.com/dmitrijs2005/ormpb/serializer"
	"github.com/dmitrijs2005/ormpb/store/sqlstore"
)

const warehouseProto = `
name: "sqltest/warehouse.proto"
package: "sqltest"
syntax: "proto3"
message_type {
  name: "Warehouse"
  field { name: "id" number: 1 label: LABEL_OPTIONAL type: TYPE_INT64 }
  field { name: "name" number: 2 label: LABEL_OPTIONAL type: TYPE_STRING }
  field { name: "shelves" number: 3 label: LABEL_REPEATED type: TYPE_MESSAGE type_name: ".sqltest.Shelf" }
}
message_type {
  name: "Shelf"
  field { name: "id" number: 1 label: LABEL_OPTIONAL type: TYPE_INT64 }
  field { name: "code" number: 2 label: LABEL_OPTIONAL type: TYPE_STRING }
  field { name: "bins" number: 3 label: LABEL_REPEATED type: TYPE_MESSAGE type_name: ".sqltest.Bin" }
}
message_type {
  name: "Bin"
  field { name: "id" number: 1 label: LABEL_OPTIONAL type: TYPE_INT64 }
  field { name: "label" number: 2 label: LABEL_OPTIONAL type: TYPE_STRING }
}
`

const warehouseTables = `
CREATE TABLE warehouse (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL
);
CREATE TABLE shelf (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    warehouse_id INTEGER NOT NULL REFERENCES warehouse (id),
    code TEXT NOT NULL
);
CREATE TABLE bin (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    shelf_id INTEGER NOT NULL REFERENCES shelf (id),
    label TEXT NOT NULL
);
`

type warehouse struct {
	ID      int64    `orm:"id,pk"`
	Name    string   `orm:"name"`
	Shelves []*shelf `orm:"shelves,reverse=warehouse"`
}

type shelf struct {
	ID        int64      `orm:"id,pk"`
	Warehouse *warehouse `orm:"warehouse"`
	Code      string     `orm:"code"`
	Bins      []*bin     `orm:"bins,reverse=shelf"`
}

type bin struct {
	ID    int64  `orm:"id,pk"`
	Shelf *shelf `orm:"shelf"`
	Label string `orm:"label"`
}

var errNoLabel = errors.New("label is required")

func (b *bin) Validate(ctx context.Context) error {
	if b.Label == "" {
		return errNoLabel
	}
	return nil
}

func setupWarehouse(t *testing.T) (*mapper.Mapper, *sql.DB, protoreflect.MessageType) {
	t.Helper()
	ctx := context.Background()

	db, err := sqlstore.Open(ctx, sqlstore.SQLite, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.ExecContext(ctx, warehouseTables)
	require.NoError(t, err)

	fdp := &descriptorpb.FileDescriptorProto{}
	require.NoError(t, prototext.Unmarshal([]byte(warehouseProto), fdp))
	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	require.NoError(t, err)
	mt := func(name protoreflect.Name) protoreflect.MessageType {
		return dynamicpb.NewMessageType(fd.Messages().ByName(name))
	}

	models := model.NewRegistry()
	whType := mt("Warehouse")
	models.MustRegister(&warehouse{}, model.Options{Messages: []protoreflect.MessageType{whType}, Extra: []string{"id"}})
	models.MustRegister(&shelf{}, model.Options{Messages: []protoreflect.MessageType{mt("Shelf")}, Extra: []string{"id"}, Exclude: []string{"warehouse"}})
	models.MustRegister(&bin{}, model.Options{Messages: []protoreflect.MessageType{mt("Bin")}, Extra: []string{"id"}, Exclude: []string{"shelf"}})

	st := sqlstore.New(db, models, sqlstore.SQLite)
	return mapper.New(models, serializer.NewRegistry(), st), db, whType
}

func TestSQLite_NestedFailureRollsBackEveryLevel(t *testing.T) {
	m, db, whType := setupWarehouse(t)

	in := whType.New().Interface()
	require.NoError(t, protojson.Unmarshal([]byte(`{"name": "north",
		"shelves": [
			{"code": "A1", "bins": [{"label": "bolts"}, {"label": ""}]},
			{"code": "A2", "bins": [{"label": "nuts"}]}
		]}`), in))

	_, err := m.ToObject(context.Background(), in, nil)
	require.ErrorIs(t, err, errs.ErrValidation)
	require.ErrorIs(t, err, errNoLabel)

	for _, table := range []string{"warehouse", "shelf", "bin"} {
		assert.Equal(t, 0, count(t, db, table), table)
	}
}

func TestSQLite_NestedSaveWritesEveryLevel(t *testing.T) {
	m, db, whType := setupWarehouse(t)

	in := whType.New().Interface()
	require.NoError(t, protojson.Unmarshal([]byte(`{"name": "north",
		"shelves": [
			{"code": "A1", "bins": [{"label": "bolts"}]},
			{"code": "A2", "bins": [{"label": "nuts"}, {"label": "washers"}]}
		]}`), in))

	_, err := m.ToObject(context.Background(), in, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, count(t, db, "warehouse"))
	assert.Equal(t, 2, count(t, db, "shelf"))
	assert.Equal(t, 3, count(t, db, "bin"))

	var code string
	require.NoError(t, db.QueryRow(`SELECT s.code FROM bin b JOIN shelf s ON s.id = b.shelf_id WHERE b.label = 'washers'`).Scan(&code))
	assert.Equal(t, "A2", code)
}
