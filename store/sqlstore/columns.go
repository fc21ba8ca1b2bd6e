package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/ormpb/internal/protox"
	"github.com/dmitrijs2005/ormpb/model"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
)

// jsonColumn reports whether a field is stored as JSON text.
func jsonColumn(f *model.Field) bool {
	return f.Type.IsA(model.JSONField) || f.Type.IsA(model.ArrayField)
}

// encode returns the value bound for f's column.
func (d Dialect) encode(f *model.Field, entity any) (any, error) {
	v := f.Value(entity)

	if f.Relation == model.RelToOne {
		if v.IsNil() {
			return nil, nil
		}
		if !f.Related.HasPK(v.Interface()) {
			return nil, fmt.Errorf("%s references an unsaved %s", f, f.Related.Name)
		}
		return f.Related.PKValue(v.Interface()), nil
	}

	if jsonColumn(f) {
		if (v.Kind() == reflect.Map || v.Kind() == reflect.Slice || v.Kind() == reflect.Pointer) && v.IsNil() {
			return nil, nil
		}
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		return string(b), nil
	}

	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}

	switch v.Type() {
	case timeType:
		t := v.Interface().(time.Time).UTC()
		if d.textTime {
			return t.Format(time.RFC3339Nano), nil
		}
		return t, nil
	case uuidType:
		return v.Interface().(uuid.UUID).String(), nil
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.String:
		return v.String(), nil
	}
	return v.Interface(), nil
}

// column scans one column straight into an entity field.
type column struct {
	field *model.Field
	dst   reflect.Value
}

func scanTargets(m *model.Meta, entity any) []any {
	cols := m.Columns()
	out := make([]any, len(cols))
	for i, f := range cols {
		out[i] = &column{field: f, dst: f.Value(entity)}
	}
	return out
}

var timeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a time", s)
}

func (c *column) Scan(src any) error {
	if err := c.scan(src); err != nil {
		return fmt.Errorf("scan %s: %w", c.field, err)
	}
	return nil
}

func (c *column) scan(src any) error {
	f, dst := c.field, c.dst

	if src == nil {
		dst.SetZero()
		return nil
	}

	if f.Relation == model.RelToOne {
		stub := f.Related.New()
		pk := &column{field: f.Related.PK, dst: f.Related.PK.Value(stub)}
		if err := pk.scan(src); err != nil {
			return err
		}
		dst.Set(reflect.ValueOf(stub))
		return nil
	}

	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		inner := &column{field: f, dst: p.Elem()}
		if err := inner.scan(src); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}

	if jsonColumn(f) {
		var b []byte
		switch s := src.(type) {
		case string:
			b = []byte(s)
		case []byte:
			b = s
		default:
			var err error
			if b, err = json.Marshal(s); err != nil {
				return err
			}
		}
		out := reflect.New(dst.Type())
		if err := json.Unmarshal(b, out.Interface()); err != nil {
			return err
		}
		dst.Set(out.Elem())
		return nil
	}

	switch dst.Type() {
	case timeType:
		switch s := src.(type) {
		case time.Time:
			dst.Set(reflect.ValueOf(s.UTC()))
			return nil
		case string:
			t, err := parseTime(s)
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(t))
			return nil
		case []byte:
			t, err := parseTime(string(s))
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(t))
			return nil
		}
	case uuidType:
		if b, ok := src.([16]byte); ok {
			dst.Set(reflect.ValueOf(uuid.UUID(b)))
			return nil
		}
	}

	if reflect.PointerTo(dst.Type()).Implements(scannerType) {
		return dst.Addr().Interface().(sql.Scanner).Scan(src)
	}
	if n, ok := src.(int64); ok && dst.Kind() == reflect.Bool {
		dst.SetBool(n != 0)
		return nil
	}
	if b, ok := src.([]byte); ok && dst.Kind() == reflect.String {
		dst.SetString(string(b))
		return nil
	}
	if b, ok := src.([]byte); ok && dst.Kind() == reflect.Slice && dst.Type().Elem().Kind() == reflect.Uint8 {
		dst.SetBytes(append([]byte(nil), b...))
		return nil
	}
	return protox.Assign(dst, src)
}
