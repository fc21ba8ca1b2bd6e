// Package shop is a small order-management model used by the commands and
// by tests across the module: customers place orders made of line items,
// and orders carry tags.
package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID     int64    `orm:"id,pk"`
	Name   string   `orm:"name"`
	Email  *string  `orm:"email,type=EmailField"`
	Avatar string   `orm:"avatar,type=ImageField"`
	Orders []*Order `orm:"orders,reverse=customer"`
}

type Order struct {
	ID        int64          `orm:"id,pk"`
	Ref       uuid.UUID      `orm:"ref"`
	CreatedAt time.Time      `orm:"created_at"`
	Note      *string        `orm:"note,type=TextField"`
	Status    int32          `orm:"status"`
	Meta      map[string]any `orm:"meta,null"`
	Customer  *Customer      `orm:"customer,null"`
	Items     []*LineItem    `orm:"items,reverse=order"`
	Tags      []*Tag         `orm:"tags,m2m=order_tags"`
}

var errNoCreatedAt = errors.New("created_at is required")

func (o *Order) Validate(ctx context.Context) error {
	if o.CreatedAt.IsZero() {
		return errNoCreatedAt
	}
	return nil
}

type LineItem struct {
	ID       int64  `orm:"id,pk"`
	Order    *Order `orm:"order"`
	SKU      string `orm:"sku,type=SlugField"`
	Quantity int32  `orm:"quantity"`
}

func (i *LineItem) Validate(ctx context.Context) error {
	if i.Quantity <= 0 {
		return fmt.Errorf("line item %s: quantity must be positive, got %d", i.SKU, i.Quantity)
	}
	return nil
}

type Tag struct {
	ID    int64  `orm:"id,pk"`
	Label string `orm:"label"`
}

// Status values of Order.Status, matching the OrderStatus enum.
const (
	StatusUnspecified int32 = iota
	StatusOpen
	StatusPaid
	StatusShipped
)
