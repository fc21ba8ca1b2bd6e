package protox

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// IsMessage reports whether fd is a singular or repeated field of the named
// message type.
func IsMessage(fd protoreflect.FieldDescriptor, name protoreflect.FullName) bool {
	return fd.Message() != nil && fd.Message().FullName() == name
}

// Copy fills dst with the contents of src. The two may be backed by
// different implementations (generated and dynamicpb) as long as they
// describe the same message type.
func Copy(dst protoreflect.Message, src proto.Message) error {
	want := dst.Descriptor().FullName()
	if got := src.ProtoReflect().Descriptor().FullName(); got != want {
		return fmt.Errorf("cannot copy %s into %s", got, want)
	}
	b, err := proto.Marshal(src)
	if err != nil {
		return err
	}
	return proto.Unmarshal(b, dst.Interface())
}

// Into decodes src into the concrete message dst.
func Into(src protoreflect.Message, dst proto.Message) error {
	if m, ok := src.Interface().(proto.Message); ok && m.ProtoReflect().Type() == dst.ProtoReflect().Type() {
		proto.Reset(dst)
		proto.Merge(dst, m)
		return nil
	}
	want := dst.ProtoReflect().Descriptor().FullName()
	if got := src.Descriptor().FullName(); got != want {
		return fmt.Errorf("cannot read %s as %s", got, want)
	}
	b, err := proto.Marshal(src.Interface())
	if err != nil {
		return err
	}
	return proto.Unmarshal(b, dst)
}
