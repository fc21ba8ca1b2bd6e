// Package mapper converts entities to messages and messages to entities.
//
// Reading a message produces a tree of serializer.SaveNode values; ToObject
// builds that tree and saves it inside one store transaction, so either
// every write of the tree is committed or none is.
package mapper

import (
	"context"
	"reflect"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/dmitrijs2005/ormpb/internal/logging"
	"github.com/dmitrijs2005/ormpb/model"
	"github.com/dmitrijs2005/ormpb/serializer"
	"github.com/dmitrijs2005/ormpb/store"
)

type Mapper struct {
	models      *model.Registry
	serializers *serializer.Registry
	store       store.Transactional
	log         logging.Logger
	hooks       []Hook
}

type Option func(*Mapper)

func WithLogger(l logging.Logger) Option {
	return func(m *Mapper) { m.log = l }
}

// WithHook adds a hook fired before and after every entity conversion.
func WithHook(h Hook) Option {
	return func(m *Mapper) { m.hooks = append(m.hooks, h) }
}

func New(models *model.Registry, serializers *serializer.Registry, st store.Transactional, opts ...Option) *Mapper {
	m := &Mapper{
		models:      models,
		serializers: serializers,
		store:       st,
		log:         logging.Discard(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

type arenaKey struct {
	meta *model.Meta
	pk   any
}

// session is the per-call state behind serializer.Env. Its arena makes sure
// that one persisted entity maps to one SaveNode; entities without a
// primary key get a fresh token each time.
type session struct {
	m     *Mapper
	tx    store.Store
	arena map[arenaKey]*serializer.SaveNode
	token int
}

func (m *Mapper) session(tx store.Store) *session {
	return &session{m: m, tx: tx, arena: map[arenaKey]*serializer.SaveNode{}}
}

func (s *session) Store() store.Store { return s.tx }

func (s *session) Models() *model.Registry { return s.m.models }

func (s *session) Message(ctx context.Context, entity any, msg protoreflect.Message) error {
	return s.m.toMessage(ctx, s, entity, msg)
}

func (s *session) Build(ctx context.Context, msg protoreflect.Message, meta *model.Meta) (*serializer.SaveNode, error) {
	return s.m.toNode(ctx, s, msg, meta, nil)
}

type newToken int

func (s *session) node(meta *model.Meta, entity any) *serializer.SaveNode {
	var key arenaKey
	if meta.HasPK(entity) {
		key = arenaKey{meta, meta.PKValue(entity)}
	} else {
		s.token++
		key = arenaKey{meta, newToken(s.token)}
	}

	if n, ok := s.arena[key]; ok {
		return n
	}
	n := serializer.NewNode(meta, entity)
	s.arena[key] = n
	return n
}

// isNull reports whether a field value is a null: a nil interface or a nil
// pointer. Nil maps and slices only count for nullable fields.
func isNull(field *model.Field, v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	case reflect.Map, reflect.Slice:
		return field.Null && rv.IsNil()
	}
	return false
}
