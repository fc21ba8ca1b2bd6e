package model

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/ormpb/errs"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	jsonMapType = reflect.TypeOf(map[string]any(nil))
)

// builder reflects over struct types, discovering related entity types as
// it goes. Metas under construction are visible to later lookups, so
// cyclic references resolve to the same Meta.
type builder struct {
	metas   map[reflect.Type]*Meta
	created []*Meta
	reverse []*Field
}

func isEntityType(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t != timeType
}

func (b *builder) meta(t reflect.Type) (*Meta, error) {
	if m, ok := b.metas[t]; ok {
		return m, nil
	}

	m := &Meta{
		Name:   t.Name(),
		Type:   t,
		Table:  SnakeCase(t.Name()),
		byName: map[string]*Field{},
	}
	b.metas[t] = m
	b.created = append(b.created, m)

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Anonymous {
			continue
		}

		opts, err := parseTag(sf.Name, sf.Tag.Get(tagName))
		if err != nil {
			return nil, errs.Config("%s.%s: %v", m.Name, sf.Name, err)
		}
		if opts.skip {
			continue
		}

		f, err := b.field(m, sf, opts)
		if err != nil {
			return nil, errs.Config("%s.%s: %v", m.Name, sf.Name, err)
		}
		if _, dup := m.byName[f.Name]; dup {
			return nil, errs.Config("%s: duplicate field name %q", m.Name, f.Name)
		}
		if f.PK {
			if m.PK != nil {
				return nil, errs.Config("%s: more than one primary key", m.Name)
			}
			m.PK = f
		}
		m.Fields = append(m.Fields, f)
		m.byName[f.Name] = f
	}

	if m.PK == nil {
		f, ok := m.byName["id"]
		if !ok || f.IsRelation() {
			return nil, errs.Config("%s: no primary key", m.Name)
		}
		f.PK = true
		f.Type = pkType(f)
		m.PK = f
	}

	return m, nil
}

func (b *builder) field(m *Meta, sf reflect.StructField, opts tagOptions) (*Field, error) {
	f := &Field{
		Name:      opts.name,
		GoName:    sf.Name,
		Index:     sf.Index,
		GoType:    sf.Type,
		Null:      opts.null,
		PK:        opts.pk,
		Column:    opts.column,
		joinTable: opts.joinTable,
		owner:     m,
	}
	if f.Column == "" {
		f.Column = f.Name
	}

	t := sf.Type
	switch {
	case t.Kind() == reflect.Pointer && isEntityType(t.Elem()):
		related, err := b.meta(t.Elem())
		if err != nil {
			return nil, err
		}
		f.Related = related
		if opts.reverse != "" {
			f.Relation = RelToOneReverse
			f.Type = ReverseOneToOne
			f.Remote = opts.reverse
			f.Column = ""
			b.reverse = append(b.reverse, f)
			break
		}
		f.Relation = RelToOne
		f.Type = ForeignKey
		switch {
		case opts.fk != "":
			f.Column = opts.fk
		case opts.column == "":
			f.Column = f.Name + "_id"
		}

	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Pointer && isEntityType(t.Elem().Elem()):
		related, err := b.meta(t.Elem().Elem())
		if err != nil {
			return nil, err
		}
		f.Related = related
		f.Column = ""
		switch {
		case opts.m2m:
			f.Relation = RelManyToMany
			f.Type = ManyToManyField
		case opts.reverse != "":
			f.Relation = RelToMany
			f.Type = ReverseManyToOne
			f.Remote = opts.reverse
			b.reverse = append(b.reverse, f)
		default:
			return nil, fmt.Errorf("collection of %s needs reverse= or m2m", related.Name)
		}

	default:
		if t.Kind() == reflect.Pointer {
			f.Null = true
			t = t.Elem()
		}
		ft, elem, err := inferType(t)
		if err != nil {
			return nil, err
		}
		f.Type, f.Elem = ft, elem
	}

	if f.PK && f.IsRelation() {
		return nil, fmt.Errorf("a relation cannot be the primary key")
	}

	if opts.typeName != "" {
		ft, ok := LookupFieldType(opts.typeName)
		if !ok {
			return nil, fmt.Errorf("unknown field type %q", opts.typeName)
		}
		f.Type = ft
	} else if f.PK {
		f.Type = pkType(f)
	}

	return f, nil
}

func pkType(f *Field) *FieldType {
	switch f.GoType.Kind() {
	case reflect.Int64:
		return BigAutoField
	case reflect.Int, reflect.Int32:
		return AutoField
	}
	return f.Type
}

func inferType(t reflect.Type) (*FieldType, *FieldType, error) {
	switch {
	case t == timeType:
		return DateTimeField, nil, nil
	case t == uuidType:
		return UUIDField, nil, nil
	case t == jsonMapType, t.Kind() == reflect.Interface && t.NumMethod() == 0:
		return JSONField, nil, nil
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		return BinaryField, nil, nil
	}

	switch t.Kind() {
	case reflect.String:
		return CharField, nil, nil
	case reflect.Bool:
		return BooleanField, nil, nil
	case reflect.Int8, reflect.Int16:
		return SmallIntegerField, nil, nil
	case reflect.Int, reflect.Int32:
		return IntegerField, nil, nil
	case reflect.Int64:
		return BigIntegerField, nil, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return PositiveIntegerField, nil, nil
	case reflect.Float32, reflect.Float64:
		return FloatField, nil, nil
	case reflect.Map:
		if t.Key().Kind() == reflect.String {
			return JSONField, nil, nil
		}
	case reflect.Slice:
		elem, _, err := inferType(t.Elem())
		if err == nil && !elem.IsA(JSONField) && !elem.IsA(ArrayField) {
			return ArrayField, elem, nil
		}
	}

	return nil, nil, fmt.Errorf("unsupported Go type %s", t)
}

// finish adds reference proxies and checks that every reverse relation
// mirrors a forward to-one on the related entity.
func (b *builder) finish() error {
	for _, f := range b.reverse {
		remote, ok := f.Related.byName[f.Remote]
		if !ok || remote.Relation != RelToOne || remote.Related != f.owner {
			return errs.Config("%s: reverse=%s must name a to-one field of %s pointing at %s",
				f, f.Remote, f.Related.Name, f.owner.Name)
		}
	}

	for _, m := range b.created {
		for _, f := range m.Fields {
			if f.Relation != RelToOne {
				continue
			}
			name := f.Name + "_id"
			if _, exists := m.byName[name]; exists {
				continue
			}
			pk := f.Related.PK
			m.byName[name] = &Field{
				Name:    name,
				GoName:  f.GoName,
				Index:   f.Index,
				GoType:  pk.GoType,
				Type:    pk.Type,
				Null:    f.Null,
				Column:  f.Column,
				Related: f.Related,
				Proxy:   f,
				owner:   m,
			}
		}
	}

	return nil
}
