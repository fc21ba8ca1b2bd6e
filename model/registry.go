package model

import (
	"fmt"
	"maps"
	"reflect"
	"sync"

	"github.com/samber/lo"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrijs2005/ormpb/errs"
)

// Options is the mapping configuration of one entity type.
type Options struct {
	// Messages lists the message types the entity converts to and from.
	// The first one is the default.
	Messages []protoreflect.MessageType

	// Fields is an explicit inclusion list for schema generation. It cannot
	// be combined with Exclude or Extra.
	Fields []string
	// Exclude removes fields from the generated schema.
	Exclude []string
	// Extra adds fields the generated schema would otherwise omit: the
	// primary key, reference proxies or custom fields.
	Extra []string

	// Enums overrides the wire type of scalar fields with an enum.
	Enums map[string]protoreflect.EnumDescriptor
	// Custom replaces the standard conversion of the named message fields.
	Custom map[string]CustomField

	// NullAsEmpty lists nullable fields whose null is written as "" to a
	// string message field without presence, and whose "" reads back as null.
	NullAsEmpty []string

	// Table overrides the default snake_case table name.
	Table string
}

// Registry associates entity types with message types and options. It is
// populated at startup and read concurrently afterwards.
type Registry struct {
	mu        sync.RWMutex
	metas     map[reflect.Type]*Meta
	options   map[*Meta]*Options
	order     []*Meta
	byMessage map[protoreflect.FullName]*Meta
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.Reset()
	return r
}

// Default is the process-wide registry.
var Default = NewRegistry()

// Reset empties the default registry.
func Reset() { Default.Reset() }

// Reset forgets every registration.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metas = map[reflect.Type]*Meta{}
	r.options = map[*Meta]*Options{}
	r.order = nil
	r.byMessage = map[protoreflect.FullName]*Meta{}
}

func structType(v any) (reflect.Type, error) {
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || !isEntityType(t) {
		return nil, fmt.Errorf("%w: %v is not an entity struct", errs.ErrUnregistered, t)
	}
	return t, nil
}

// Register builds the Meta of entity's type, and of every entity type it
// references, and stores opts for it.
func (r *Registry) Register(entity any, opts Options) (*Meta, error) {
	t, err := structType(entity)
	if err != nil {
		return nil, errs.Config("%v", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.metas[t]; ok && r.options[m] != nil {
		return nil, errs.Config("%s is already registered", m.Name)
	}

	b := &builder{metas: maps.Clone(r.metas)}
	m, err := b.meta(t)
	if err != nil {
		return nil, err
	}
	if err := b.finish(); err != nil {
		return nil, err
	}
	if err := validateOptions(m, &opts); err != nil {
		return nil, err
	}
	for _, mt := range opts.Messages {
		if other, ok := r.byMessage[mt.Descriptor().FullName()]; ok && other != m {
			return nil, errs.Config("message %s is already mapped to %s", mt.Descriptor().FullName(), other.Name)
		}
	}

	r.metas = b.metas
	if opts.Table != "" {
		m.Table = opts.Table
	}
	stored := opts
	r.options[m] = &stored
	r.order = append(r.order, m)
	for _, mt := range opts.Messages {
		r.byMessage[mt.Descriptor().FullName()] = m
	}

	return m, nil
}

// MustRegister is Register for package initialization; it panics on error.
func (r *Registry) MustRegister(entity any, opts Options) *Meta {
	m, err := r.Register(entity, opts)
	if err != nil {
		panic(err)
	}
	return m
}

func validateOptions(m *Meta, opts *Options) error {
	if len(opts.Fields) > 0 && (len(opts.Exclude) > 0 || len(opts.Extra) > 0) {
		return errs.Config("%s: fields cannot be combined with exclude or extra", m.Name)
	}
	if both := lo.Intersect(opts.Exclude, opts.Extra); len(both) > 0 {
		return errs.Config("%s: exclude and extra overlap on %v", m.Name, both)
	}

	known := func(name string, customOK bool) bool {
		if _, ok := m.byName[name]; ok {
			return true
		}
		_, ok := opts.Custom[name]
		return customOK && ok
	}
	check := func(list string, names []string, customOK bool) error {
		for _, name := range names {
			if !known(name, customOK) {
				return errs.Config("%s: %s names unknown field %q", m.Name, list, name)
			}
		}
		return nil
	}

	if err := check("fields", opts.Fields, true); err != nil {
		return err
	}
	if err := check("extra", opts.Extra, true); err != nil {
		return err
	}
	if err := check("exclude", opts.Exclude, false); err != nil {
		return err
	}
	if err := check("null_as_empty", opts.NullAsEmpty, false); err != nil {
		return err
	}
	for name, ed := range opts.Enums {
		f, ok := m.byName[name]
		if !ok {
			return errs.Config("%s: enums names unknown field %q", m.Name, name)
		}
		if f.IsRelation() || ed == nil {
			return errs.Config("%s: field %q cannot take an enum", m.Name, name)
		}
	}
	for i, mt := range opts.Messages {
		if mt == nil {
			return errs.Config("%s: message type %d is nil", m.Name, i)
		}
	}

	return nil
}

// Meta returns the Meta of an entity, its struct type or a reflect.Type.
// Entity types discovered through relations are known even when they were
// never registered themselves.
func (r *Registry) Meta(v any) (*Meta, error) {
	t, err := structType(v)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.metas[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnregistered, t)
	}
	return m, nil
}

// MetaForMessage returns the entity type registered for a message type.
func (r *Registry) MetaForMessage(name protoreflect.FullName) (*Meta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byMessage[name]
	if !ok {
		return nil, fmt.Errorf("%w: no entity for message %s", errs.ErrUnregistered, name)
	}
	return m, nil
}

// DefaultMessage returns the first message type registered for m.
func (r *Registry) DefaultMessage(m *Meta) (protoreflect.MessageType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	opts := r.options[m]
	if opts == nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnregistered, m)
	}
	if len(opts.Messages) == 0 {
		return nil, fmt.Errorf("%w: %s", errs.ErrNoMessageType, m)
	}
	return opts.Messages[0], nil
}

// Options returns the options m was registered with, or zero Options for a
// type that was only discovered.
func (r *Registry) Options(m *Meta) Options {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if opts := r.options[m]; opts != nil {
		return *opts
	}
	return Options{}
}

// Registered reports whether m was registered explicitly.
func (r *Registry) Registered(m *Meta) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.options[m] != nil
}

// Metas lists registered metas in registration order.
func (r *Registry) Metas() []*Meta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Meta(nil), r.order...)
}
