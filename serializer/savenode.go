package serializer

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/ormpb/errs"
	"github.com/dmitrijs2005/ormpb/model"
	"github.com/dmitrijs2005/ormpb/store"
)

type nodeState int

const (
	pending nodeState = iota
	saving
	saved
)

// SaveNode is an entity waiting to be persisted together with the relations
// that were deferred while reading a message.
type SaveNode struct {
	Entity any
	Meta   *model.Meta

	children []*Child
	forward  int
	state    nodeState
}

// Child is one deferred relation of a SaveNode.
type Child struct {
	Serializer Deferred
	Field      *model.Field
	Nodes      []*SaveNode
	// Reconcile makes the strategy drop related rows that are not among
	// Nodes.
	Reconcile bool
}

func NewNode(meta *model.Meta, entity any) *SaveNode {
	return &SaveNode{Entity: entity, Meta: meta}
}

func (n *SaveNode) Add(c *Child) {
	n.children = append(n.children, c)
}

func (n *SaveNode) Children() []*Child {
	return n.children
}

// Saved reports whether Save has completed for this node.
func (n *SaveNode) Saved() bool {
	return n.state == saved
}

// Keep lists the primary keys of the child entities that already have one.
func (c *Child) Keep() []any {
	return lo.FilterMap(c.Nodes, func(n *SaveNode, _ int) (any, bool) {
		if !n.Meta.HasPK(n.Entity) {
			return nil, false
		}
		return n.Meta.PKValue(n.Entity), true
	})
}

func isForward(c *Child, _ int) bool {
	return c.Field.Relation == model.RelToOne
}

// Save persists the node and everything below it. A node without children
// is validated and persisted directly; otherwise each child's strategy
// decides when the node itself is persisted. Forward to-one children run
// first so that the node is written with its references in place. A node
// is saved at most once per tree.
func (n *SaveNode) Save(ctx context.Context, tx store.Store, full bool) error {
	if n.state != pending {
		return nil
	}
	n.state = saving

	if err := n.save(ctx, tx, full); err != nil {
		n.state = pending
		return err
	}
	n.state = saved
	return nil
}

func (n *SaveNode) save(ctx context.Context, tx store.Store, full bool) error {
	if len(n.children) == 0 {
		return n.Persist(ctx, tx, full)
	}

	forward := lo.Filter(n.children, isForward)
	rest := lo.Reject(n.children, isForward)
	n.forward = len(forward)

	for _, c := range append(forward, rest...) {
		if err := c.Serializer.Save(ctx, tx, n, c, full); err != nil {
			return err
		}
	}
	return nil
}

// forwardDone persists the node once its last forward to-one child is in
// place.
func (n *SaveNode) forwardDone(ctx context.Context, tx store.Store, full bool) error {
	n.forward--
	if n.forward > 0 {
		return nil
	}
	return n.Persist(ctx, tx, full)
}

// Persist validates the entity when full is set and writes it.
func (n *SaveNode) Persist(ctx context.Context, tx store.Store, full bool) error {
	if full {
		if v, ok := n.Entity.(model.Validator); ok {
			if err := v.Validate(ctx); err != nil {
				return fmt.Errorf("%w: %s: %w", errs.ErrValidation, n.Meta.Name, err)
			}
		}
	}
	return tx.Save(ctx, n.Entity)
}
