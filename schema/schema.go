// Package schema generates proto3 schema text from registered entity types.
package schema

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/dmitrijs2005/ormpb/errs"
	"github.com/dmitrijs2005/ormpb/model"
)

// Well-known wire types.
const (
	Timestamp = "google.protobuf.Timestamp"
	Duration  = "google.protobuf.Duration"
	Value     = "google.protobuf.Value"
	Struct    = "google.protobuf.Struct"
	ListValue = "google.protobuf.ListValue"
	Any       = "google.protobuf.Any"
)

var imports = map[string]string{
	Timestamp: "google/protobuf/timestamp.proto",
	Duration:  "google/protobuf/duration.proto",
	Value:     "google/protobuf/struct.proto",
	Struct:    "google/protobuf/struct.proto",
	ListValue: "google/protobuf/struct.proto",
	Any:       "google/protobuf/any.proto",
}

// DefaultWireTypes returns a fresh copy of the semantic type to wire type
// table. Types not listed inherit the entry of their closest ancestor.
func DefaultWireTypes() map[*model.FieldType]string {
	return map[*model.FieldType]string{
		model.CharField:            "string",
		model.UUIDField:            "string",
		model.FileField:            "string",
		model.IntegerField:         "int32",
		model.BigIntegerField:      "int64",
		model.PositiveIntegerField: "uint32",
		model.FloatField:           "double",
		model.BooleanField:         "bool",
		model.BinaryField:          "bytes",
		model.DateTimeField:        Timestamp,
		model.JSONField:            Value,
	}
}

type Option func(*Generator)

// WithWireType maps ft, and the types below it without an entry of their
// own, to wire.
func WithWireType(ft *model.FieldType, wire string) Option {
	return func(g *Generator) { g.wire[ft] = wire }
}

// WithPackage emits a package statement.
func WithPackage(pkg string) Option {
	return func(g *Generator) { g.pkg = pkg }
}

// WithGoPackage emits an option go_package statement.
func WithGoPackage(pkg string) Option {
	return func(g *Generator) { g.goPkg = pkg }
}

type Generator struct {
	models *model.Registry
	wire   map[*model.FieldType]string
	pkg    string
	goPkg  string
}

func New(models *model.Registry, opts ...Option) *Generator {
	g := &Generator{models: models, wire: DefaultWireTypes()}
	for _, o := range opts {
		o(g)
	}
	return g
}

type field struct {
	name     string
	wire     string
	optional bool
}

type message struct {
	name   string
	fields []field
}

// run holds the state of one Generate call.
type run struct {
	g        *Generator
	messages []*message
	seen     map[*model.Meta]bool
}

// Generate returns the schema of metas and of every entity type they reach
// through included relation fields. Output is stable for a given registry
// and option set.
func (g *Generator) Generate(metas ...*model.Meta) (string, error) {
	r := &run{g: g, seen: map[*model.Meta]bool{}}
	for _, m := range metas {
		if err := r.visit(m); err != nil {
			return "", err
		}
	}
	return g.render(r.messages), nil
}

// GenerateAll generates the schema of every registered entity type.
func (g *Generator) GenerateAll() (string, error) {
	return g.Generate(g.models.Metas()...)
}

func (r *run) visit(m *model.Meta) error {
	if r.seen[m] {
		return nil
	}
	r.seen[m] = true

	msg := &message{name: m.Name}
	r.messages = append(r.messages, msg)

	opts := r.g.models.Options(m)
	for _, name := range fieldNames(m, opts) {
		f, err := r.field(m, opts, name)
		if err != nil {
			return err
		}
		msg.fields = append(msg.fields, f)
	}
	return nil
}

// fieldNames lists the message fields of m: the inclusion list when given,
// else the declared fields without the primary key and the excluded ones,
// followed by the extra fields.
func fieldNames(m *model.Meta, opts model.Options) []string {
	if len(opts.Fields) > 0 {
		return opts.Fields
	}

	names := lo.FilterMap(m.Fields, func(f *model.Field, _ int) (string, bool) {
		if f.PK && !lo.Contains(opts.Extra, f.Name) {
			return "", false
		}
		return f.Name, !lo.Contains(opts.Exclude, f.Name)
	})
	for _, name := range opts.Extra {
		if !lo.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}

func (r *run) field(m *model.Meta, opts model.Options, name string) (field, error) {
	if cf, ok := opts.Custom[name]; ok {
		return field{name: name, wire: cf.ProtoType(), optional: cf.Nullable() && scalar(cf.ProtoType())}, nil
	}

	f, ok := m.Field(name)
	if !ok {
		return field{}, errs.Config("%s: no field %q", m.Name, name)
	}

	if ed, ok := opts.Enums[name]; ok {
		return field{name: name, wire: string(ed.Name()), optional: f.Null}, nil
	}

	if f.IsRelation() {
		if err := r.visit(f.Related); err != nil {
			return field{}, err
		}
		wire := f.Related.Name
		if f.ToMany() {
			wire = "repeated " + wire
		}
		return field{name: name, wire: wire}, nil
	}

	if f.Type.IsA(model.ArrayField) {
		wire, err := r.g.wireType(m, f, f.Elem)
		if err != nil {
			return field{}, err
		}
		return field{name: name, wire: "repeated " + wire}, nil
	}

	wire, err := r.g.wireType(m, f, f.Type)
	if err != nil {
		return field{}, err
	}
	return field{name: name, wire: wire, optional: f.Null && scalar(wire)}, nil
}

func (g *Generator) wireType(m *model.Meta, f *model.Field, ft *model.FieldType) (string, error) {
	for _, t := range ft.Ancestry() {
		if wire, ok := g.wire[t]; ok {
			return wire, nil
		}
	}
	return "", errs.Config("%s.%s: no wire type for %s", m.Name, f.Name, ft)
}

// scalar reports whether wire lacks presence of its own: anything but a
// message type.
func scalar(wire string) bool {
	switch wire {
	case "string", "bytes", "bool", "float", "double",
		"int32", "int64", "uint32", "uint64", "sint32", "sint64",
		"fixed32", "fixed64", "sfixed32", "sfixed64":
		return true
	}
	return false
}

func (g *Generator) render(messages []*message) string {
	var b strings.Builder

	b.WriteString("syntax = \"proto3\";\n")
	if g.pkg != "" {
		fmt.Fprintf(&b, "\npackage %s;\n", g.pkg)
	}
	if g.goPkg != "" {
		fmt.Fprintf(&b, "\noption go_package = %q;\n", g.goPkg)
	}

	used := map[string]bool{}
	for _, m := range messages {
		for _, f := range m.fields {
			if path, ok := imports[strings.TrimPrefix(f.wire, "repeated ")]; ok {
				used[path] = true
			}
		}
	}
	if len(used) > 0 {
		paths := lo.Keys(used)
		slices.Sort(paths)
		b.WriteString("\n")
		for _, p := range paths {
			fmt.Fprintf(&b, "import %q;\n", p)
		}
	}

	for _, m := range messages {
		fmt.Fprintf(&b, "\nmessage %s {\n", m.name)
		for i, f := range m.fields {
			line := fmt.Sprintf("%s %s = %d;", f.wire, f.name, i+1)
			if f.optional {
				line = fmt.Sprintf("oneof %s_value { %s }", f.name, line)
			}
			fmt.Fprintf(&b, "    %s\n", line)
		}
		b.WriteString("}\n")
	}

	return b.String()
}
