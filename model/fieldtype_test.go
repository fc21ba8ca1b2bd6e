package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldType_Ancestry(t *testing.T) {
	names := func(ft *FieldType) []string {
		var out []string
		for _, a := range ft.Ancestry() {
			out = append(out, a.Name())
		}
		return out
	}

	assert.Equal(t, []string{"ImageField", "FileField", "Field"}, names(ImageField))
	assert.Equal(t, []string{"BigAutoField", "BigIntegerField", "IntegerField", "Field"}, names(BigAutoField))
	assert.Equal(t, []string{"Field"}, names(BaseField))

	assert.True(t, OneToOneField.IsA(ForeignKey))
	assert.False(t, ForeignKey.IsA(OneToOneField))
}

func TestNewFieldType_Lookup(t *testing.T) {
	money := NewFieldType("MoneyField", IntegerField)

	got, ok := LookupFieldType("MoneyField")
	require.True(t, ok)
	assert.Same(t, money, got)
	assert.Same(t, IntegerField, got.Parent())

	_, ok = LookupFieldType("NoSuchField")
	assert.False(t, ok)
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"ID":         "id",
		"CreatedAt":  "created_at",
		"CustomerID": "customer_id",
		"SKU":        "sku",
		"LineItem":   "line_item",
		"HTTPServer": "http_server",
		"Field2Name": "field2_name",
	}
	for in, want := range tests {
		assert.Equal(t, want, SnakeCase(in), in)
	}
}

func TestParseTag(t *testing.T) {
	o, err := parseTag("Customer", "customer,null,fk=buyer_id")
	require.NoError(t, err)
	assert.Equal(t, "customer", o.name)
	assert.True(t, o.null)
	assert.Equal(t, "buyer_id", o.fk)

	o, err = parseTag("Tags", ",m2m=order_tags")
	require.NoError(t, err)
	assert.Equal(t, "tags", o.name)
	assert.True(t, o.m2m)
	assert.Equal(t, "order_tags", o.joinTable)

	o, err = parseTag("Secret", "-")
	require.NoError(t, err)
	assert.True(t, o.skip)

	_, err = parseTag("X", "x,type=")
	require.Error(t, err)

	_, err = parseTag("X", "x,unique")
	require.Error(t, err)
}
