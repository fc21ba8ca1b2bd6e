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
)

// ToMessage writes entity into msg and returns it. With a nil msg a new
// message of the entity's default message type is created.
//
// Every field of the message is visited: custom fields first, then entity
// fields through their serializer. Message fields without an entity
// counterpart are left alone. Null values leave fields with presence unset.
func (m *Mapper) ToMessage(ctx context.Context, entity any, msg proto.Message) (proto.Message, error) {
	meta, err := m.models.Meta(entity)
	if err != nil {
		return nil, err
	}
	if err := meta.Check(entity); err != nil {
		return nil, err
	}

	if msg == nil {
		mt, err := m.models.DefaultMessage(meta)
		if err != nil {
			return nil, err
		}
		msg = mt.New().Interface()
	}

	s := m.session(m.store)
	if err := m.toMessage(ctx, s, entity, msg.ProtoReflect()); err != nil {
		return nil, err
	}
	return msg, nil
}

func (m *Mapper) toMessage(ctx context.Context, s *session, entity any, msg protoreflect.Message) error {
	meta, err := m.models.Meta(entity)
	if err != nil {
		return err
	}
	opts := m.models.Options(meta)

	m.fire(ctx, Event{Direction: errs.ToMessage, Stage: Pre, Meta: meta, Message: msg, Entity: entity})

	fields := msg.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		name := string(fd.Name())

		if cf, ok := opts.Custom[name]; ok {
			if err := cf.ToMessage(ctx, entity, msg, fd); err != nil {
				return &errs.FieldError{
					Entity: meta.Name, Field: name, FieldType: cf.ProtoType(),
					Serializer: fmt.Sprintf("%T", cf), Direction: errs.ToMessage, Err: err,
				}
			}
			continue
		}

		field, ok := meta.Field(name)
		if !ok {
			continue
		}
		if err := m.fieldToMessage(ctx, s, meta, opts, entity, msg, fd, field); err != nil {
			return err
		}
	}

	m.fire(ctx, Event{Direction: errs.ToMessage, Stage: Post, Meta: meta, Message: msg, Entity: entity})
	m.log.Debug(ctx, "entity converted to message", "entity", meta.Name, "message", string(msg.Descriptor().FullName()))
	return nil
}

func (m *Mapper) fieldToMessage(ctx context.Context, s *session, meta *model.Meta, opts model.Options,
	entity any, msg protoreflect.Message, fd protoreflect.FieldDescriptor, field *model.Field) error {

	ser := m.serializers.Resolve(field.Type)
	wrap := func(err error) error {
		return &errs.FieldError{
			Entity: meta.Name, Field: field.Name, FieldType: field.Type.Name(),
			Serializer: ser.Name(), Direction: errs.ToMessage, Err: err,
		}
	}

	value, err := m.read(ctx, s, entity, field)
	if errors.Is(err, errs.ErrNotFound) && fd.HasPresence() {
		m.log.Warn(ctx, "dangling reference left unset", "entity", meta.Name, "field", field.Name, "error", err)
		msg.Clear(fd)
		return nil
	}
	if err != nil {
		return wrap(err)
	}

	if isNull(field, value) {
		switch {
		case fd.HasPresence():
			msg.Clear(fd)
			return nil
		case slices.Contains(opts.NullAsEmpty, field.Name) && fd.Kind() == protoreflect.StringKind && !fd.IsList():
			msg.Set(fd, protoreflect.ValueOfString(""))
			return nil
		}
		return wrap(errs.ErrNullValue)
	}

	if err := ser.ToMessage(ctx, s, msg, fd, field, value); err != nil {
		return wrap(err)
	}
	return nil
}

// read returns the field's value. Relations are resolved through the
// store so that persisted graphs load on demand.
func (m *Mapper) read(ctx context.Context, s *session, entity any, field *model.Field) (any, error) {
	switch field.Relation {
	case model.RelToOne, model.RelToOneReverse:
		return s.tx.RelatedOne(ctx, entity, field)
	case model.RelToMany, model.RelManyToMany:
		return s.tx.RelatedMany(ctx, entity, field)
	}
	return field.Get(entity), nil
}
