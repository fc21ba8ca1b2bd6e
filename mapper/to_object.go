package mapper

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrijs2005/ormpb/errs"
	"github.com/dmitrijs2005/ormpb/model"
	"github.com/dmitrijs2005/ormpb/serializer"
	"github.com/dmitrijs2005/ormpb/store"
)

type saveConfig struct {
	full bool
}

type SaveOption func(*saveConfig)

// FullValidation turns entity validation before each write on or off. It is
// on by default.
func FullValidation(on bool) SaveOption {
	return func(c *saveConfig) { c.full = on }
}

// ToNode reads msg into an entity and returns the unsaved root of its save
// tree. Nothing is written to tx; it is only used to load existing
// entities.
//
// With a nil entity the entity type is taken from the message type. An
// entity whose primary key is present in the message and found in tx is
// updated in place, otherwise a new entity is created.
func (m *Mapper) ToNode(ctx context.Context, tx store.Store, msg proto.Message, entity any) (*serializer.SaveNode, error) {
	meta, err := m.metaFor(msg.ProtoReflect(), entity)
	if err != nil {
		return nil, err
	}
	return m.toNode(ctx, m.session(tx), msg.ProtoReflect(), meta, entity)
}

// ToObject reads msg into an entity and saves the whole tree in one
// transaction. The saved root entity is returned.
func (m *Mapper) ToObject(ctx context.Context, msg proto.Message, entity any, opts ...SaveOption) (any, error) {
	c := saveConfig{full: true}
	for _, o := range opts {
		o(&c)
	}

	rm := msg.ProtoReflect()
	meta, err := m.metaFor(rm, entity)
	if err != nil {
		return nil, err
	}

	var root any
	err = m.store.Atomic(ctx, func(ctx context.Context, tx store.Store) error {
		node, err := m.toNode(ctx, m.session(tx), rm, meta, entity)
		if err != nil {
			return err
		}
		if err := node.Save(ctx, tx, c.full); err != nil {
			return err
		}
		root = node.Entity
		return nil
	})
	if err != nil {
		m.log.Error(ctx, "save rolled back", "entity", meta.Name, "message", string(rm.Descriptor().FullName()), "error", err)
		return nil, err
	}

	m.log.Debug(ctx, "message saved", "entity", meta.Name, "pk", meta.PKValue(root))
	return root, nil
}

// metaFor returns the entity type a message is read into.
func (m *Mapper) metaFor(msg protoreflect.Message, entity any) (*model.Meta, error) {
	if entity == nil {
		return m.models.MetaForMessage(msg.Descriptor().FullName())
	}
	meta, err := m.models.Meta(entity)
	if err != nil {
		return nil, err
	}
	return meta, meta.Check(entity)
}

func (m *Mapper) toNode(ctx context.Context, s *session, msg protoreflect.Message, meta *model.Meta, entity any) (*serializer.SaveNode, error) {
	if meta == nil {
		var err error
		if meta, err = m.metaFor(msg, entity); err != nil {
			return nil, err
		}
	}

	if entity == nil {
		found, node, err := m.lookup(ctx, s, msg, meta)
		if err != nil {
			return nil, err
		}
		if node != nil {
			return node, nil
		}
		entity = found
	}

	node := s.node(meta, entity)
	opts := m.models.Options(meta)

	m.fire(ctx, Event{Direction: errs.ToObject, Stage: Pre, Meta: meta, Message: msg, Entity: entity})

	fields := msg.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.HasPresence() && !msg.Has(fd) {
			continue
		}
		name := string(fd.Name())

		if cf, ok := opts.Custom[name]; ok {
			if err := cf.ToObject(ctx, entity, msg, fd); err != nil {
				return nil, &errs.FieldError{
					Entity: meta.Name, Field: name, FieldType: cf.ProtoType(),
					Serializer: fmt.Sprintf("%T", cf), Direction: errs.ToObject, Err: err,
				}
			}
			continue
		}

		field, ok := meta.Field(name)
		if !ok {
			continue
		}
		if err := m.fieldToObject(ctx, s, node, opts, msg, fd, field); err != nil {
			return nil, err
		}
	}

	m.fire(ctx, Event{Direction: errs.ToObject, Stage: Post, Meta: meta, Message: msg, Entity: entity})
	return node, nil
}

func (m *Mapper) fieldToObject(ctx context.Context, s *session, node *serializer.SaveNode, opts model.Options,
	msg protoreflect.Message, fd protoreflect.FieldDescriptor, field *model.Field) error {

	ser := m.serializers.Resolve(field.Type)
	value := msg.Get(fd)

	var err error
	if slices.Contains(opts.NullAsEmpty, field.Name) && fd.Kind() == protoreflect.StringKind &&
		!fd.IsList() && value.String() == "" {
		err = field.Set(node.Entity, nil)
	} else {
		err = ser.ToObject(ctx, s, node, field, fd, value)
	}
	if err != nil {
		return &errs.FieldError{
			Entity: node.Meta.Name, Field: field.Name, FieldType: field.Type.Name(),
			Serializer: ser.Name(), Direction: errs.ToObject, Err: err,
		}
	}
	return nil
}

// lookup finds the entity addressed by the primary key carried in msg. It
// returns the arena node when the entity was already read in this call,
// the stored entity when it exists, or a new entity otherwise.
func (m *Mapper) lookup(ctx context.Context, s *session, msg protoreflect.Message, meta *model.Meta) (any, *serializer.SaveNode, error) {
	entity := meta.New()

	fd := msg.Descriptor().Fields().ByName(protoreflect.Name(meta.PK.Name))
	if fd == nil || fd.IsList() || (fd.HasPresence() && !msg.Has(fd)) {
		return entity, nil, nil
	}

	ser := m.serializers.Resolve(meta.PK.Type)
	if err := ser.ToObject(ctx, s, serializer.NewNode(meta, entity), meta.PK, fd, msg.Get(fd)); err != nil {
		return nil, nil, &errs.FieldError{
			Entity: meta.Name, Field: meta.PK.Name, FieldType: meta.PK.Type.Name(),
			Serializer: ser.Name(), Direction: errs.ToObject, Err: err,
		}
	}
	if !meta.HasPK(entity) {
		return entity, nil, nil
	}

	pk := meta.PKValue(entity)
	if n, ok := s.arena[arenaKey{meta, pk}]; ok {
		return nil, n, nil
	}

	stored, err := s.tx.Get(ctx, meta, pk)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return entity, nil, nil
	case err != nil:
		return nil, nil, err
	}
	return stored, nil, nil
}
