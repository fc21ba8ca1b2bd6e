package shop

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrijs2005/ormpb/model"
)

//go:embed migrations
var migrations embed.FS

// Migrations returns the goose migrations of the shop tables, one directory
// per SQL dialect: sqlite and postgres.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// DisplayRef is the read-only display_ref field of OrderSummary.
var DisplayRef = model.ReadOnly("string", func(ctx context.Context, entity any) (any, error) {
	o, ok := entity.(*Order)
	if !ok {
		return nil, fmt.Errorf("display_ref: unexpected entity %T", entity)
	}
	return "ORD-" + strings.ToUpper(o.Ref.String()[:8]), nil
})

// Register maps the shop entities on r.
func Register(r *model.Registry) error {
	regs := []struct {
		entity any
		opts   model.Options
	}{
		{&Customer{}, model.Options{
			Messages: []protoreflect.MessageType{CustomerType},
			Extra:    []string{"id"},
			Exclude:  []string{"orders"},
		}},
		{&Order{}, model.Options{
			Messages:    []protoreflect.MessageType{OrderType, OrderSummaryType},
			Extra:       []string{"id"},
			Enums:       map[string]protoreflect.EnumDescriptor{"status": OrderStatus},
			Custom:      map[string]model.CustomField{"display_ref": DisplayRef},
			NullAsEmpty: []string{"note"},
			Table:       "orders",
		}},
		{&LineItem{}, model.Options{
			Messages: []protoreflect.MessageType{LineItemType},
			Extra:    []string{"id"},
			Exclude:  []string{"order"},
		}},
		{&Tag{}, model.Options{
			Messages: []protoreflect.MessageType{TagType},
			Extra:    []string{"id"},
		}},
	}

	for _, reg := range regs {
		if _, err := r.Register(reg.entity, reg.opts); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry with the shop entities registered.
func NewRegistry() *model.Registry {
	r := model.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}
