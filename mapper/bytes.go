package mapper

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrijs2005/ormpb/errs"
)

// MarshalEntity converts entity to its default message type and encodes it
// in the protobuf wire format.
func (m *Mapper) MarshalEntity(ctx context.Context, entity any) ([]byte, error) {
	msg, err := m.ToMessage(ctx, entity, nil)
	if err != nil {
		return nil, err
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", msg.ProtoReflect().Descriptor().FullName(), err)
	}
	return data, nil
}

// UnmarshalEntity decodes data as a message of type mt and saves it like
// ToObject. Undecodable input is rejected before any store access.
func (m *Mapper) UnmarshalEntity(ctx context.Context, data []byte, mt protoreflect.MessageType, entity any, opts ...SaveOption) (any, error) {
	msg := mt.New().Interface()
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", errs.ErrRejected, mt.Descriptor().FullName(), err)
	}
	return m.ToObject(ctx, msg, entity, opts...)
}
