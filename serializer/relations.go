package serializer

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrijs2005/ormpb/model"
	"github.com/dmitrijs2005/ormpb/store"
)

func singular(fd protoreflect.FieldDescriptor) error {
	if fd.Message() == nil || fd.IsList() || fd.IsMap() {
		return fmt.Errorf("field %s must be a singular message", fd.Name())
	}
	return nil
}

func repeatedMessage(fd protoreflect.FieldDescriptor) error {
	if fd.Message() == nil || !fd.IsList() {
		return fmt.Errorf("field %s must be a repeated message", fd.Name())
	}
	return nil
}

func writeOne(ctx context.Context, env Env, msg protoreflect.Message, fd protoreflect.FieldDescriptor, value any) error {
	if err := singular(fd); err != nil {
		return err
	}
	sub := msg.NewField(fd).Message()
	if err := env.Message(ctx, value, sub); err != nil {
		return err
	}
	msg.Set(fd, protoreflect.ValueOfMessage(sub))
	return nil
}

// writeMany clears the list before appending, so a reused message never
// keeps stale elements.
func writeMany(ctx context.Context, env Env, msg protoreflect.Message, fd protoreflect.FieldDescriptor, value any) error {
	if err := repeatedMessage(fd); err != nil {
		return err
	}
	related, ok := value.([]any)
	if !ok {
		return fmt.Errorf("expected a list of entities, got %T", value)
	}

	list := msg.Mutable(fd).List()
	list.Truncate(0)
	for _, e := range related {
		el := list.NewElement()
		if err := env.Message(ctx, e, el.Message()); err != nil {
			return err
		}
		list.Append(el)
	}
	return nil
}

func buildMany(ctx context.Context, env Env, field *model.Field, list protoreflect.List) ([]*SaveNode, error) {
	nodes := make([]*SaveNode, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		n, err := env.Build(ctx, list.Get(i).Message(), field.Related)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// ForwardOne handles to-one relations whose foreign key lives on the
// entity. The related entity is saved first, then the parent.
type ForwardOne struct{}

func (ForwardOne) Name() string { return "ForwardOne" }

func (ForwardOne) ToMessage(ctx context.Context, env Env, msg protoreflect.Message, fd protoreflect.FieldDescriptor, field *model.Field, value any) error {
	return writeOne(ctx, env, msg, fd, value)
}

func (s ForwardOne) ToObject(ctx context.Context, env Env, node *SaveNode, field *model.Field, fd protoreflect.FieldDescriptor, value protoreflect.Value) error {
	if err := singular(fd); err != nil {
		return err
	}
	child, err := env.Build(ctx, value.Message(), field.Related)
	if err != nil {
		return err
	}
	node.Add(&Child{Serializer: s, Field: field, Nodes: []*SaveNode{child}})
	return nil
}

func (ForwardOne) Save(ctx context.Context, tx store.Store, parent *SaveNode, child *Child, full bool) error {
	for _, n := range child.Nodes {
		if err := n.Save(ctx, tx, full); err != nil {
			return err
		}
		if err := child.Field.Set(parent.Entity, n.Entity); err != nil {
			return err
		}
	}
	return parent.forwardDone(ctx, tx, full)
}

// saveReverse persists the parent, drops related rows that are not kept,
// then points every child at the parent and saves it.
func saveReverse(ctx context.Context, tx store.Store, parent *SaveNode, child *Child, full bool) error {
	if err := parent.Persist(ctx, tx, full); err != nil {
		return err
	}
	if child.Reconcile {
		if err := tx.DeleteWhereNotIn(ctx, parent.Entity, child.Field, child.Keep()); err != nil {
			return err
		}
	}

	remote, ok := child.Field.Related.Field(child.Field.Remote)
	if !ok {
		return fmt.Errorf("%s has no field %s", child.Field.Related, child.Field.Remote)
	}
	for _, n := range child.Nodes {
		if err := remote.Set(n.Entity, parent.Entity); err != nil {
			return err
		}
		if err := n.Save(ctx, tx, full); err != nil {
			return err
		}
	}
	return nil
}

// ReverseMany handles collections whose foreign key lives on the related
// entity. The relation is replaced: rows missing from the message are
// deleted.
type ReverseMany struct{}

func (ReverseMany) Name() string { return "ReverseMany" }

func (ReverseMany) ToMessage(ctx context.Context, env Env, msg protoreflect.Message, fd protoreflect.FieldDescriptor, field *model.Field, value any) error {
	return writeMany(ctx, env, msg, fd, value)
}

func (s ReverseMany) ToObject(ctx context.Context, env Env, node *SaveNode, field *model.Field, fd protoreflect.FieldDescriptor, value protoreflect.Value) error {
	if err := repeatedMessage(fd); err != nil {
		return err
	}
	nodes, err := buildMany(ctx, env, field, value.List())
	if err != nil {
		return err
	}
	node.Add(&Child{Serializer: s, Field: field, Nodes: nodes, Reconcile: true})
	return nil
}

func (ReverseMany) Save(ctx context.Context, tx store.Store, parent *SaveNode, child *Child, full bool) error {
	return saveReverse(ctx, tx, parent, child, full)
}

// ReverseOne is ReverseMany for a single related entity.
type ReverseOne struct{}

func (ReverseOne) Name() string { return "ReverseOne" }

func (ReverseOne) ToMessage(ctx context.Context, env Env, msg protoreflect.Message, fd protoreflect.FieldDescriptor, field *model.Field, value any) error {
	return writeOne(ctx, env, msg, fd, value)
}

func (s ReverseOne) ToObject(ctx context.Context, env Env, node *SaveNode, field *model.Field, fd protoreflect.FieldDescriptor, value protoreflect.Value) error {
	if err := singular(fd); err != nil {
		return err
	}
	child, err := env.Build(ctx, value.Message(), field.Related)
	if err != nil {
		return err
	}
	node.Add(&Child{Serializer: s, Field: field, Nodes: []*SaveNode{child}, Reconcile: true})
	return nil
}

func (ReverseOne) Save(ctx context.Context, tx store.Store, parent *SaveNode, child *Child, full bool) error {
	return saveReverse(ctx, tx, parent, child, full)
}

// ManyToMany handles relations kept in a join table. The relation is
// replaced: join rows missing from the message are removed, the related
// entities themselves are kept.
type ManyToMany struct{}

func (ManyToMany) Name() string { return "ManyToMany" }

func (ManyToMany) ToMessage(ctx context.Context, env Env, msg protoreflect.Message, fd protoreflect.FieldDescriptor, field *model.Field, value any) error {
	return writeMany(ctx, env, msg, fd, value)
}

func (s ManyToMany) ToObject(ctx context.Context, env Env, node *SaveNode, field *model.Field, fd protoreflect.FieldDescriptor, value protoreflect.Value) error {
	if err := repeatedMessage(fd); err != nil {
		return err
	}
	nodes, err := buildMany(ctx, env, field, value.List())
	if err != nil {
		return err
	}
	node.Add(&Child{Serializer: s, Field: field, Nodes: nodes, Reconcile: true})
	return nil
}

func (ManyToMany) Save(ctx context.Context, tx store.Store, parent *SaveNode, child *Child, full bool) error {
	if err := parent.Persist(ctx, tx, full); err != nil {
		return err
	}
	if child.Reconcile {
		if err := tx.DeleteWhereNotIn(ctx, parent.Entity, child.Field, child.Keep()); err != nil {
			return err
		}
	}
	for _, n := range child.Nodes {
		if err := n.Save(ctx, tx, full); err != nil {
			return err
		}
		if err := tx.AddToMany(ctx, parent.Entity, child.Field, n.Entity); err != nil {
			return err
		}
	}
	return nil
}
