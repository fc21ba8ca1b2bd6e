// Package serializer converts single entity fields to and from message
// fields. Serializers are registered per semantic field type and resolved
// by walking the type's ancestry, most specific first.
package serializer

import (
	"context"
	"sync"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrijs2005/ormpb/model"
	"github.com/dmitrijs2005/ormpb/store"
)

// Env is what a serializer may call back into while converting a field.
// The mapper implements it once per conversion call.
type Env interface {
	Store() store.Store
	Models() *model.Registry
	// Message fills msg from entity.
	Message(ctx context.Context, entity any, msg protoreflect.Message) error
	// Build turns msg into an unsaved SaveNode for an entity of meta's type.
	Build(ctx context.Context, msg protoreflect.Message, meta *model.Meta) (*SaveNode, error)
}

// Serializer converts one field in both directions.
type Serializer interface {
	Name() string
	// ToMessage writes value, the entity's non-null field value, to fd.
	ToMessage(ctx context.Context, env Env, msg protoreflect.Message, fd protoreflect.FieldDescriptor, field *model.Field, value any) error
	// ToObject applies value to node's entity, directly or by adding a
	// deferred child to node.
	ToObject(ctx context.Context, env Env, node *SaveNode, field *model.Field, fd protoreflect.FieldDescriptor, value protoreflect.Value) error
}

// Deferred is a serializer that persists its relation as part of
// SaveNode.Save. Save decides when the parent itself is persisted.
type Deferred interface {
	Serializer
	Save(ctx context.Context, tx store.Store, parent *SaveNode, child *Child, full bool) error
}

// URLResolver turns a stored file path into an access URL.
type URLResolver interface {
	URL(ctx context.Context, path string) (string, error)
}

// Registry maps semantic field types to serializers.
type Registry struct {
	mu     sync.RWMutex
	byType map[*model.FieldType]Serializer
}

type config struct {
	urls URLResolver
}

type Option func(*config)

// WithFileURLs makes file fields emit resolved URLs instead of stored paths.
func WithFileURLs(r URLResolver) Option {
	return func(c *config) { c.urls = r }
}

// NewRegistry returns a registry holding the built-in serializers.
func NewRegistry(opts ...Option) *Registry {
	var c config
	for _, o := range opts {
		o(&c)
	}

	r := &Registry{byType: map[*model.FieldType]Serializer{}}
	r.Register(model.DateTimeField, Time{})
	r.Register(model.UUIDField, UUID{})
	r.Register(model.FileField, File{URLs: c.urls})
	r.Register(model.JSONField, JSON{})
	r.Register(model.ForeignKey, ForwardOne{})
	r.Register(model.ReverseManyToOne, ReverseMany{})
	r.Register(model.ReverseOneToOne, ReverseOne{})
	r.Register(model.ManyToManyField, ManyToMany{})
	return r
}

// Register binds s to ft and, through ancestry, to every subtype without a
// more specific registration.
func (r *Registry) Register(ft *model.FieldType, s Serializer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[ft] = s
}

// Resolve returns the serializer registered for the most specific type in
// ft's ancestry, or Default.
func (r *Registry) Resolve(ft *model.FieldType) Serializer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range ft.Ancestry() {
		if s, ok := r.byType[a]; ok {
			return s
		}
	}
	return Default{}
}
