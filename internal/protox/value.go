// Package protox converts between Go values held in entity struct fields and
// protoreflect values held in message fields.
package protox

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"reflect"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// ErrNil is returned when a nil value reaches a conversion that needs one.
var ErrNil = errors.New("nil value")

func indirect(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid()
}

func asInt(rv reflect.Value) (int64, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

func asUint(rv reflect.Value) (uint64, bool) {
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < 0 {
			return 0, false
		}
		return uint64(i), true
	}
	return 0, false
}

func asFloat(rv reflect.Value) (float64, bool) {
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	if i, ok := asInt(rv); ok {
		return float64(i), true
	}
	return 0, false
}

// ToValue converts a Go scalar into a value for fd. For repeated fields the
// element kind of fd is used.
func ToValue(fd protoreflect.FieldDescriptor, v any) (protoreflect.Value, error) {
	rv, ok := indirect(v)
	if !ok {
		return protoreflect.Value{}, fmt.Errorf("field %s: %w", fd.Name(), ErrNil)
	}

	switch fd.Kind() {
	case protoreflect.BoolKind:
		if rv.Kind() == reflect.Bool {
			return protoreflect.ValueOfBool(rv.Bool()), nil
		}
	case protoreflect.StringKind:
		if rv.Kind() == reflect.String {
			return protoreflect.ValueOfString(rv.String()), nil
		}
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			return protoreflect.ValueOfString(s.String()), nil
		}
	case protoreflect.BytesKind:
		if isBytes(rv.Type()) {
			return protoreflect.ValueOfBytes(append([]byte(nil), rv.Bytes()...)), nil
		}
		if rv.Kind() == reflect.String {
			return protoreflect.ValueOfBytes([]byte(rv.String())), nil
		}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind:
		if i, ok := asInt(rv); ok && i >= math.MinInt32 && i <= math.MaxInt32 {
			return protoreflect.ValueOfInt32(int32(i)), nil
		}
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind:
		if i, ok := asInt(rv); ok {
			return protoreflect.ValueOfInt64(i), nil
		}
	case protoreflect.Uint32Kind, protoreflect.Fixed32Kind:
		if u, ok := asUint(rv); ok && u <= math.MaxUint32 {
			return protoreflect.ValueOfUint32(uint32(u)), nil
		}
	case protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		if u, ok := asUint(rv); ok {
			return protoreflect.ValueOfUint64(u), nil
		}
	case protoreflect.FloatKind:
		if f, ok := asFloat(rv); ok {
			return protoreflect.ValueOfFloat32(float32(f)), nil
		}
	case protoreflect.DoubleKind:
		if f, ok := asFloat(rv); ok {
			return protoreflect.ValueOfFloat64(f), nil
		}
	case protoreflect.EnumKind:
		if i, ok := asInt(rv); ok && i >= math.MinInt32 && i <= math.MaxInt32 {
			return protoreflect.ValueOfEnum(protoreflect.EnumNumber(i)), nil
		}
		if rv.Kind() == reflect.String {
			if ev := fd.Enum().Values().ByName(protoreflect.Name(rv.String())); ev != nil {
				return protoreflect.ValueOfEnum(ev.Number()), nil
			}
		}
	}

	return protoreflect.Value{}, fmt.Errorf("cannot convert %s to %s field %s", rv.Type(), fd.Kind(), fd.Name())
}

// FillList replaces the contents of list with the elements of the slice src.
func FillList(fd protoreflect.FieldDescriptor, list protoreflect.List, src reflect.Value) error {
	list.Truncate(0)
	src = reflect.Indirect(src)
	if !src.IsValid() {
		return nil
	}
	if src.Kind() != reflect.Slice && src.Kind() != reflect.Array {
		return fmt.Errorf("cannot fill repeated field %s from %s", fd.Name(), src.Type())
	}
	for i := 0; i < src.Len(); i++ {
		v, err := ToValue(fd, src.Index(i).Interface())
		if err != nil {
			return err
		}
		list.Append(v)
	}
	return nil
}

// Assign stores v into dst, converting between numeric kinds, allocating
// pointers for nullable fields and rejecting values that would overflow.
func Assign(dst reflect.Value, v any) error {
	if !dst.CanSet() {
		return fmt.Errorf("cannot set value of type %s", dst.Type())
	}

	if v == nil {
		switch dst.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			dst.SetZero()
			return nil
		}
		return fmt.Errorf("cannot assign nil to %s", dst.Type())
	}

	src := reflect.ValueOf(v)
	if isBytes(dst.Type()) && isBytes(src.Type()) {
		// never alias the message's buffer
		dst.Set(reflect.ValueOf(bytes.Clone(src.Bytes())).Convert(dst.Type()))
		return nil
	}
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}

	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := Assign(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}

	switch dst.Kind() {
	case reflect.Bool:
		if src.Kind() == reflect.Bool {
			dst.SetBool(src.Bool())
			return nil
		}
	case reflect.String:
		if src.Kind() == reflect.String {
			dst.SetString(src.String())
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if i, ok := asInt(src); ok {
			if dst.OverflowInt(i) {
				return fmt.Errorf("value %d overflows %s", i, dst.Type())
			}
			dst.SetInt(i)
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if u, ok := asUint(src); ok {
			if dst.OverflowUint(u) {
				return fmt.Errorf("value %d overflows %s", u, dst.Type())
			}
			dst.SetUint(u)
			return nil
		}
	case reflect.Float32, reflect.Float64:
		if f, ok := asFloat(src); ok {
			if dst.OverflowFloat(f) {
				return fmt.Errorf("value %g overflows %s", f, dst.Type())
			}
			dst.SetFloat(f)
			return nil
		}
	case reflect.Interface:
		if src.Type().Implements(dst.Type()) {
			dst.Set(src)
			return nil
		}
	}

	return fmt.Errorf("cannot assign %s to %s", src.Type(), dst.Type())
}

// AssignList replaces the slice dst with the converted elements of list.
func AssignList(dst reflect.Value, list protoreflect.List) error {
	if dst.Kind() != reflect.Slice {
		return fmt.Errorf("cannot assign a repeated value to %s", dst.Type())
	}
	out := reflect.MakeSlice(dst.Type(), list.Len(), list.Len())
	for i := 0; i < list.Len(); i++ {
		if err := Assign(out.Index(i), list.Get(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	dst.Set(out)
	return nil
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}
