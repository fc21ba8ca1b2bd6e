// Package store defines the persistence boundary the mapper writes through.
// Implementations live in store/memstore and store/sqlstore.
package store

import (
	"context"

	"github.com/dmitrijs2005/ormpb/model"
)

// Store reads and writes entities. Not-found conditions are reported as
// errs.ErrNotFound.
type Store interface {
	// Get loads the entity of meta's type with the given primary key.
	// Forward to-one references come back as stubs carrying only the
	// related primary key; collections are left empty.
	Get(ctx context.Context, meta *model.Meta, pk any) (any, error)

	// Save inserts or updates entity. A zero primary key is assigned by the
	// store and written back to entity.
	Save(ctx context.Context, entity any) error

	Delete(ctx context.Context, entity any) error

	// RelatedOne resolves a to-one relation. It returns nil when the
	// relation is empty, the in-memory value when the related entity has
	// not been saved yet, and errs.ErrNotFound for a dangling reference.
	RelatedOne(ctx context.Context, entity any, field *model.Field) (any, error)

	// RelatedMany resolves a collection, ordered by primary key. An
	// unsaved entity's in-memory collection is returned as is.
	RelatedMany(ctx context.Context, entity any, field *model.Field) ([]any, error)

	// SetRelatedMany replaces the collection with related.
	SetRelatedMany(ctx context.Context, entity any, field *model.Field, related []any) error

	// AddToMany attaches related: it sets the foreign key of a reverse
	// relation or inserts a join row of a many-to-many relation.
	AddToMany(ctx context.Context, entity any, field *model.Field, related any) error

	// RemoveFromMany detaches related. Reverse relations with a non-null
	// foreign key delete the related row instead.
	RemoveFromMany(ctx context.Context, entity any, field *model.Field, related any) error

	// DeleteWhereNotIn removes every related entity whose primary key is
	// not in keep: rows of a reverse relation are deleted, join rows of a
	// many-to-many relation are detached.
	DeleteWhereNotIn(ctx context.Context, entity any, field *model.Field, keep []any) error
}

// Atomic runs fn inside one transaction. If fn returns an error or panics,
// every write made through tx is discarded.
type Atomic interface {
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// Transactional is a Store that can open transactions.
type Transactional interface {
	Store
	Atomic
}
