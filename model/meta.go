// Package model describes entity types: the semantic field types, the field
// descriptor table built by reflection over `orm` struct tags, and the
// registry that ties entity types to message types and mapping options.
package model

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrijs2005/ormpb/internal/protox"
)

// Relation is the relation kind of a field.
type Relation int

const (
	RelNone Relation = iota
	RelToOne
	RelToOneReverse
	RelToMany
	RelManyToMany
)

func (r Relation) String() string {
	switch r {
	case RelToOne:
		return "to-one"
	case RelToOneReverse:
		return "reverse to-one"
	case RelToMany:
		return "reverse to-many"
	case RelManyToMany:
		return "many-to-many"
	}
	return "none"
}

// Field describes one entity field.
type Field struct {
	Name   string
	GoName string
	Index  []int
	GoType reflect.Type
	Type   *FieldType
	// Elem is the element type of an ArrayField.
	Elem *FieldType

	Null   bool
	PK     bool
	Column string

	Relation Relation
	Related  *Meta
	// Remote names the forward to-one field on Related that a reverse
	// relation mirrors.
	Remote string
	// Proxy is set on reference proxies (x_id) and points at the forward
	// to-one field x.
	Proxy *Field

	joinTable string
	owner     *Meta
}

func (f *Field) Owner() *Meta { return f.owner }

func (f *Field) IsRelation() bool { return f.Relation != RelNone }

func (f *Field) IsProxy() bool { return f.Proxy != nil }

// ToMany reports whether the field holds a collection of related entities.
func (f *Field) ToMany() bool {
	return f.Relation == RelToMany || f.Relation == RelManyToMany
}

// Stored reports whether the field owns a column in its entity's table.
func (f *Field) Stored() bool {
	return !f.IsProxy() && (f.Relation == RelNone || f.Relation == RelToOne)
}

// JoinTable is the join table of a many-to-many field.
func (f *Field) JoinTable() string {
	if f.joinTable != "" {
		return f.joinTable
	}
	return f.owner.Table + "_" + f.Name
}

// JoinColumns returns the join table columns pointing at the owner and at
// the related entity.
func (f *Field) JoinColumns() (string, string) {
	l, r := SnakeCase(f.owner.Name), SnakeCase(f.Related.Name)
	if l == r {
		return "from_" + l + "_id", "to_" + r + "_id"
	}
	return l + "_id", r + "_id"
}

func (f *Field) String() string {
	return f.owner.Name + "." + f.Name
}

// Value returns the addressable struct field of entity. It panics if entity
// is not a non-nil pointer to the owner's struct type.
func (f *Field) Value(entity any) reflect.Value {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != f.owner.Type {
		panic(fmt.Sprintf("model: %s used with %T", f, entity))
	}
	return rv.Elem().FieldByIndex(f.Index)
}

// Get returns the field's current value. A reference proxy returns the
// related entity's primary key, or nil when the reference is unset.
func (f *Field) Get(entity any) any {
	v := f.Value(entity)
	if f.IsProxy() {
		if v.IsNil() {
			return nil
		}
		return f.Related.PKValue(v.Interface())
	}
	return v.Interface()
}

// Set assigns v to the field, converting numeric kinds and allocating
// pointers as needed. Setting a reference proxy replaces the reference with
// an unloaded stub carrying only the primary key.
func (f *Field) Set(entity any, v any) error {
	dst := f.Value(entity)
	if !f.IsProxy() {
		return protox.Assign(dst, v)
	}

	if v == nil || reflect.ValueOf(v).IsZero() {
		dst.SetZero()
		return nil
	}
	if !dst.IsNil() && reflect.DeepEqual(f.Related.PKValue(dst.Interface()), v) {
		return nil
	}
	stub := f.Related.New()
	if err := f.Related.SetPK(stub, v); err != nil {
		return err
	}
	dst.Set(reflect.ValueOf(stub))
	return nil
}

// SetList replaces a repeated scalar field with the elements of list.
func (f *Field) SetList(entity any, list protoreflect.List) error {
	return protox.AssignList(f.Value(entity), list)
}

// Meta is the field descriptor table of one entity type.
type Meta struct {
	Name  string
	Type  reflect.Type
	Table string
	PK    *Field
	// Fields lists the declared fields in declaration order. Reference
	// proxies are reachable through Field only.
	Fields []*Field

	byName map[string]*Field
}

// Field looks a field up by name, including reference proxies.
func (m *Meta) Field(name string) (*Field, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// New returns a pointer to a new zero entity.
func (m *Meta) New() any {
	return reflect.New(m.Type).Interface()
}

// Check reports whether entity is a non-nil pointer to this meta's type.
func (m *Meta) Check(entity any) error {
	rv := reflect.ValueOf(entity)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != m.Type {
		return fmt.Errorf("expected *%s, got %T", m.Type, entity)
	}
	return nil
}

func (m *Meta) PKValue(entity any) any {
	return m.PK.Get(entity)
}

// HasPK reports whether the entity's primary key is non-zero.
func (m *Meta) HasPK(entity any) bool {
	return !m.PK.Value(entity).IsZero()
}

func (m *Meta) SetPK(entity any, v any) error {
	return m.PK.Set(entity, v)
}

// Columns lists the fields stored in the entity's own table.
func (m *Meta) Columns() []*Field {
	out := make([]*Field, 0, len(m.Fields))
	for _, f := range m.Fields {
		if f.Stored() {
			out = append(out, f)
		}
	}
	return out
}

func (m *Meta) String() string { return m.Name }
