package shop

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/timestamppb"
)

// Message types of shop.proto, built at init time and backed by dynamicpb.
var (
	File protoreflect.FileDescriptor

	OrderStatus protoreflect.EnumDescriptor

	CustomerType     protoreflect.MessageType
	OrderType        protoreflect.MessageType
	OrderSummaryType protoreflect.MessageType
	LineItemType     protoreflect.MessageType
	TagType          protoreflect.MessageType
)

type fieldOpt func(*descriptorpb.FieldDescriptorProto)

func repeated(f *descriptorpb.FieldDescriptorProto) {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
}

func optional(oneof int32) fieldOpt {
	return func(f *descriptorpb.FieldDescriptorProto) {
		f.Proto3Optional = proto.Bool(true)
		f.OneofIndex = proto.Int32(oneof)
	}
}

func ref(name string) fieldOpt {
	return func(f *descriptorpb.FieldDescriptorProto) {
		f.TypeName = proto.String(name)
	}
}

func field(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type, opts ...fieldOpt) *descriptorpb.FieldDescriptorProto {
	f := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	m := &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
	for _, f := range fields {
		if f.GetProto3Optional() {
			m.OneofDecl = append(m.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String("_" + f.GetName())})
		}
	}
	return m
}

const (
	tString  = descriptorpb.FieldDescriptorProto_TYPE_STRING
	tInt32   = descriptorpb.FieldDescriptorProto_TYPE_INT32
	tInt64   = descriptorpb.FieldDescriptorProto_TYPE_INT64
	tEnum    = descriptorpb.FieldDescriptorProto_TYPE_ENUM
	tMessage = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
)

func fileProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String("ormpb/shop.proto"),
		Package:    proto.String("shop"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"google/protobuf/struct.proto", "google/protobuf/timestamp.proto"},
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("OrderStatus"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("ORDER_STATUS_UNSPECIFIED"), Number: proto.Int32(0)},
				{Name: proto.String("ORDER_STATUS_OPEN"), Number: proto.Int32(1)},
				{Name: proto.String("ORDER_STATUS_PAID"), Number: proto.Int32(2)},
				{Name: proto.String("ORDER_STATUS_SHIPPED"), Number: proto.Int32(3)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			message("Customer",
				field("id", 1, tInt64),
				field("name", 2, tString),
				field("email", 3, tString, optional(0)),
				field("avatar", 4, tString),
			),
			message("Tag",
				field("id", 1, tInt64),
				field("label", 2, tString),
			),
			message("LineItem",
				field("id", 1, tInt64),
				field("sku", 2, tString),
				field("quantity", 3, tInt32),
			),
			message("Order",
				field("id", 1, tInt64),
				field("ref", 2, tString),
				field("created_at", 3, tMessage, ref(".google.protobuf.Timestamp")),
				field("note", 4, tString, optional(0)),
				field("status", 5, tEnum, ref(".shop.OrderStatus")),
				field("meta", 6, tMessage, ref(".google.protobuf.Value")),
				field("customer", 7, tMessage, ref(".shop.Customer")),
				field("items", 8, tMessage, ref(".shop.LineItem"), repeated),
				field("tags", 9, tMessage, ref(".shop.Tag"), repeated),
			),
			message("OrderSummary",
				field("id", 1, tInt64),
				field("customer_id", 2, tInt64),
				field("note", 3, tString),
				field("display_ref", 4, tString),
			),
		},
	}
}

func init() {
	fd, err := protodesc.NewFile(fileProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(err)
	}
	File = fd

	OrderStatus = fd.Enums().ByName("OrderStatus")
	CustomerType = dynamicpb.NewMessageType(fd.Messages().ByName("Customer"))
	OrderType = dynamicpb.NewMessageType(fd.Messages().ByName("Order"))
	OrderSummaryType = dynamicpb.NewMessageType(fd.Messages().ByName("OrderSummary"))
	LineItemType = dynamicpb.NewMessageType(fd.Messages().ByName("LineItem"))
	TagType = dynamicpb.NewMessageType(fd.Messages().ByName("Tag"))
}
