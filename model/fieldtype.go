package model

import "sync"

// FieldType is a semantic field type. Every type has at most one parent, so
// its ancestry is a simple chain computed once at construction.
type FieldType struct {
	name     string
	parent   *FieldType
	ancestry []*FieldType
}

var (
	typesMu sync.RWMutex
	types   = map[string]*FieldType{}
)

// NewFieldType declares a semantic type and makes it available to
// LookupFieldType and to `type=` tag options. Redeclaring a name replaces
// the lookup entry but not types already built from the old one.
func NewFieldType(name string, parent *FieldType) *FieldType {
	t := &FieldType{name: name, parent: parent}
	t.ancestry = append([]*FieldType{t}, parent.Ancestry()...)

	typesMu.Lock()
	types[name] = t
	typesMu.Unlock()

	return t
}

// LookupFieldType returns the type declared under name.
func LookupFieldType(name string) (*FieldType, bool) {
	typesMu.RLock()
	defer typesMu.RUnlock()
	t, ok := types[name]
	return t, ok
}

func (t *FieldType) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

func (t *FieldType) String() string { return t.Name() }

func (t *FieldType) Parent() *FieldType {
	if t == nil {
		return nil
	}
	return t.parent
}

// Ancestry lists the type itself followed by its parents, most specific
// first. The returned slice must not be modified.
func (t *FieldType) Ancestry() []*FieldType {
	if t == nil {
		return nil
	}
	return t.ancestry
}

// IsA reports whether other appears in t's ancestry.
func (t *FieldType) IsA(other *FieldType) bool {
	for _, a := range t.Ancestry() {
		if a == other {
			return true
		}
	}
	return false
}

// Built-in semantic types.
var (
	BaseField = NewFieldType("Field", nil)

	CharField  = NewFieldType("CharField", BaseField)
	TextField  = NewFieldType("TextField", CharField)
	SlugField  = NewFieldType("SlugField", CharField)
	EmailField = NewFieldType("EmailField", CharField)

	IntegerField         = NewFieldType("IntegerField", BaseField)
	SmallIntegerField    = NewFieldType("SmallIntegerField", IntegerField)
	BigIntegerField      = NewFieldType("BigIntegerField", IntegerField)
	PositiveIntegerField = NewFieldType("PositiveIntegerField", IntegerField)
	AutoField            = NewFieldType("AutoField", IntegerField)
	BigAutoField         = NewFieldType("BigAutoField", BigIntegerField)

	FloatField    = NewFieldType("FloatField", BaseField)
	BooleanField  = NewFieldType("BooleanField", BaseField)
	DateTimeField = NewFieldType("DateTimeField", BaseField)
	UUIDField     = NewFieldType("UUIDField", BaseField)
	FileField     = NewFieldType("FileField", BaseField)
	ImageField    = NewFieldType("ImageField", FileField)
	JSONField     = NewFieldType("JSONField", BaseField)
	BinaryField   = NewFieldType("BinaryField", BaseField)
	ArrayField    = NewFieldType("ArrayField", BaseField)

	RelatedField     = NewFieldType("RelatedField", BaseField)
	ForeignKey       = NewFieldType("ForeignKey", RelatedField)
	OneToOneField    = NewFieldType("OneToOneField", ForeignKey)
	ManyToManyField  = NewFieldType("ManyToManyField", RelatedField)
	ReverseManyToOne = NewFieldType("ReverseManyToOne", RelatedField)
	ReverseOneToOne  = NewFieldType("ReverseOneToOne", ReverseManyToOne)
)
