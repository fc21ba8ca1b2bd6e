package serializer

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/dmitrijs2005/ormpb/errs"
	"github.com/dmitrijs2005/ormpb/internal/protox"
	"github.com/dmitrijs2005/ormpb/model"
)

var (
	timestampName = (&timestamppb.Timestamp{}).ProtoReflect().Descriptor().FullName()
	valueName     = (&structpb.Value{}).ProtoReflect().Descriptor().FullName()
	structName    = (&structpb.Struct{}).ProtoReflect().Descriptor().FullName()
)

func setMessage(msg protoreflect.Message, fd protoreflect.FieldDescriptor, m proto.Message) error {
	dst := msg.NewField(fd).Message()
	if err := protox.Copy(dst, m); err != nil {
		return err
	}
	msg.Set(fd, protoreflect.ValueOfMessage(dst))
	return nil
}

// Default copies scalars, enums and repeated scalars as they are, converting
// between numeric kinds and rejecting values that do not fit.
type Default struct{}

func (Default) Name() string { return "Default" }

func (Default) ToMessage(ctx context.Context, env Env, msg protoreflect.Message, fd protoreflect.FieldDescriptor, field *model.Field, value any) error {
	if fd.IsList() {
		return protox.FillList(fd, msg.Mutable(fd).List(), reflect.ValueOf(value))
	}
	v, err := protox.ToValue(fd, value)
	if err != nil {
		return err
	}
	msg.Set(fd, v)
	return nil
}

func (Default) ToObject(ctx context.Context, env Env, node *SaveNode, field *model.Field, fd protoreflect.FieldDescriptor, value protoreflect.Value) error {
	if fd.IsList() {
		return field.SetList(node.Entity, value.List())
	}

	v := value.Interface()
	if fd.Kind() == protoreflect.EnumKind {
		t := field.GoType
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() == reflect.String {
			ev := fd.Enum().Values().ByNumber(value.Enum())
			if ev == nil {
				return fmt.Errorf("%w: %d is not a value of %s", errs.ErrRejected, value.Enum(), fd.Enum().FullName())
			}
			v = string(ev.Name())
		}
	}
	return field.Set(node.Entity, v)
}

// Time maps time.Time to google.protobuf.Timestamp (or an RFC 3339 string)
// in UTC. Values read back always carry the UTC location.
type Time struct{}

func (Time) Name() string { return "Time" }

func timeOf(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v != nil {
			return *v, true
		}
	}
	return time.Time{}, false
}

func (Time) ToMessage(ctx context.Context, env Env, msg protoreflect.Message, fd protoreflect.FieldDescriptor, field *model.Field, value any) error {
	t, ok := timeOf(value)
	if !ok {
		return fmt.Errorf("expected time.Time, got %T", value)
	}
	t = t.UTC()

	if fd.Kind() == protoreflect.StringKind {
		msg.Set(fd, protoreflect.ValueOfString(t.Format(time.RFC3339Nano)))
		return nil
	}
	if !protox.IsMessage(fd, timestampName) || fd.IsList() {
		return fmt.Errorf("field %s is not a %s", fd.Name(), timestampName)
	}
	return setMessage(msg, fd, timestamppb.New(t))
}

func (Time) ToObject(ctx context.Context, env Env, node *SaveNode, field *model.Field, fd protoreflect.FieldDescriptor, value protoreflect.Value) error {
	var t time.Time
	if fd.Kind() == protoreflect.StringKind {
		parsed, err := time.Parse(time.RFC3339Nano, value.String())
		if err != nil {
			return fmt.Errorf("%w: %v", errs.ErrRejected, err)
		}
		t = parsed
	} else {
		ts := &timestamppb.Timestamp{}
		if err := protox.Into(value.Message(), ts); err != nil {
			return err
		}
		if err := ts.CheckValid(); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrRejected, err)
		}
		t = ts.AsTime()
	}
	return field.Set(node.Entity, t.UTC())
}

// UUID maps uuid.UUID to its canonical string, or to 16 raw bytes when the
// message field is bytes. An empty string reads as uuid.Nil.
type UUID struct{}

func (UUID) Name() string { return "UUID" }

func (UUID) ToMessage(ctx context.Context, env Env, msg protoreflect.Message, fd protoreflect.FieldDescriptor, field *model.Field, value any) error {
	var id uuid.UUID
	switch v := value.(type) {
	case uuid.UUID:
		id = v
	case *uuid.UUID:
		id = *v
	default:
		return fmt.Errorf("expected uuid.UUID, got %T", value)
	}

	if fd.Kind() == protoreflect.BytesKind {
		msg.Set(fd, protoreflect.ValueOfBytes(append([]byte(nil), id[:]...)))
		return nil
	}
	msg.Set(fd, protoreflect.ValueOfString(id.String()))
	return nil
}

func (UUID) ToObject(ctx context.Context, env Env, node *SaveNode, field *model.Field, fd protoreflect.FieldDescriptor, value protoreflect.Value) error {
	var (
		id  uuid.UUID
		err error
	)
	switch {
	case fd.Kind() == protoreflect.BytesKind:
		id, err = uuid.FromBytes(value.Bytes())
	case value.String() == "":
		id = uuid.Nil
	default:
		id, err = uuid.Parse(value.String())
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrRejected, err)
	}
	return field.Set(node.Entity, id)
}

// File writes stored paths, or access URLs when URLs is set. A URL that
// cannot be resolved is written as "". Incoming values must be paths.
type File struct {
	URLs URLResolver
}

func (File) Name() string { return "File" }

func (s File) ToMessage(ctx context.Context, env Env, msg protoreflect.Message, fd protoreflect.FieldDescriptor, field *model.Field, value any) error {
	path, ok := value.(string)
	if p, isPtr := value.(*string); isPtr && p != nil {
		path, ok = *p, true
	}
	if !ok {
		return fmt.Errorf("expected a string path, got %T", value)
	}

	if s.URLs != nil && path != "" {
		url, err := s.URLs.URL(ctx, path)
		if err != nil {
			url = ""
		}
		path = url
	}
	msg.Set(fd, protoreflect.ValueOfString(path))
	return nil
}

func (File) ToObject(ctx context.Context, env Env, node *SaveNode, field *model.Field, fd protoreflect.FieldDescriptor, value protoreflect.Value) error {
	path := value.String()
	if strings.Contains(path, "://") {
		return fmt.Errorf("%w: %q is a URL, a stored file path is required", errs.ErrRejected, path)
	}
	return field.Set(node.Entity, path)
}

// JSON maps free-form values (maps, slices, strings, numbers, booleans and
// nil) to google.protobuf.Value, google.protobuf.Struct or JSON text.
type JSON struct{}

func (JSON) Name() string { return "JSON" }

func toStructValue(v any) (*structpb.Value, error) {
	if pv, err := structpb.NewValue(v); err == nil {
		return pv, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	pv := &structpb.Value{}
	if err := protojson.Unmarshal(b, pv); err != nil {
		return nil, err
	}
	return pv, nil
}

func (JSON) ToMessage(ctx context.Context, env Env, msg protoreflect.Message, fd protoreflect.FieldDescriptor, field *model.Field, value any) error {
	pv, err := toStructValue(value)
	if err != nil {
		return err
	}

	switch {
	case fd.IsList():
	case protox.IsMessage(fd, structName):
		s := pv.GetStructValue()
		if s == nil {
			return fmt.Errorf("a JSON object is required for %s, got %T", structName, value)
		}
		return setMessage(msg, fd, s)
	case protox.IsMessage(fd, valueName):
		return setMessage(msg, fd, pv)
	case fd.Kind() == protoreflect.StringKind:
		b, err := protojson.Marshal(pv)
		if err != nil {
			return err
		}
		msg.Set(fd, protoreflect.ValueOfString(string(b)))
		return nil
	}
	return fmt.Errorf("field %s cannot hold a JSON value", fd.Name())
}

func (JSON) ToObject(ctx context.Context, env Env, node *SaveNode, field *model.Field, fd protoreflect.FieldDescriptor, value protoreflect.Value) error {
	var out any
	switch {
	case protox.IsMessage(fd, structName):
		s := &structpb.Struct{}
		if err := protox.Into(value.Message(), s); err != nil {
			return err
		}
		out = s.AsMap()
	case protox.IsMessage(fd, valueName):
		pv := &structpb.Value{}
		if err := protox.Into(value.Message(), pv); err != nil {
			return err
		}
		out = pv.AsInterface()
	case fd.Kind() == protoreflect.StringKind:
		pv := &structpb.Value{}
		if err := protojson.Unmarshal([]byte(value.String()), pv); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrRejected, err)
		}
		out = pv.AsInterface()
	default:
		return fmt.Errorf("field %s cannot hold a JSON value", fd.Name())
	}

	if err := field.Set(node.Entity, out); err == nil || out == nil {
		return err
	}

	// Typed Go fields, such as map[string]string, go through encoding/json.
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	dst := reflect.New(field.GoType)
	if err := json.Unmarshal(b, dst.Interface()); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrRejected, err)
	}
	field.Value(node.Entity).Set(dst.Elem())
	return nil
}
