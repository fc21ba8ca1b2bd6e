package model

import (
	"context"
	"reflect"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrijs2005/ormpb/errs"
	"github.com/dmitrijs2005/ormpb/internal/protox"
)

// CustomField replaces the standard conversion of one message field.
// Either direction may be a no-op.
type CustomField interface {
	// ProtoType is the wire type written by the schema generator.
	ProtoType() string
	Nullable() bool
	ToMessage(ctx context.Context, entity any, msg protoreflect.Message, fd protoreflect.FieldDescriptor) error
	ToObject(ctx context.Context, entity any, msg protoreflect.Message, fd protoreflect.FieldDescriptor) error
}

// Validator is implemented by entities that check themselves before they
// are persisted.
type Validator interface {
	Validate(ctx context.Context) error
}

// FuncField is a CustomField built from callbacks. A nil Get or Set makes
// that direction a no-op.
type FuncField struct {
	Type string
	Null bool
	Get  func(ctx context.Context, entity any) (any, error)
	Set  func(ctx context.Context, entity any, v protoreflect.Value) error
}

// ReadOnly returns a computed field that is written to messages and ignored
// when reading them.
func ReadOnly(protoType string, get func(ctx context.Context, entity any) (any, error)) FuncField {
	return FuncField{Type: protoType, Get: get}
}

func (f FuncField) ProtoType() string { return f.Type }

func (f FuncField) Nullable() bool { return f.Null }

func (f FuncField) ToMessage(ctx context.Context, entity any, msg protoreflect.Message, fd protoreflect.FieldDescriptor) error {
	if f.Get == nil {
		return nil
	}
	v, err := f.Get(ctx, entity)
	if err != nil {
		return err
	}

	if v == nil {
		if fd.HasPresence() {
			msg.Clear(fd)
			return nil
		}
		return errs.ErrNullValue
	}

	switch v := v.(type) {
	case protoreflect.Value:
		msg.Set(fd, v)
		return nil
	case proto.Message:
		dst := msg.NewField(fd).Message()
		if err := protox.Copy(dst, v); err != nil {
			return err
		}
		msg.Set(fd, protoreflect.ValueOfMessage(dst))
		return nil
	}

	if fd.IsList() {
		return protox.FillList(fd, msg.Mutable(fd).List(), reflect.ValueOf(v))
	}
	pv, err := protox.ToValue(fd, v)
	if err != nil {
		return err
	}
	msg.Set(fd, pv)
	return nil
}

func (f FuncField) ToObject(ctx context.Context, entity any, msg protoreflect.Message, fd protoreflect.FieldDescriptor) error {
	if f.Set == nil {
		return nil
	}
	return f.Set(ctx, entity, msg.Get(fd))
}
