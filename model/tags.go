package model

import (
	"fmt"
	"strings"
	"unicode"
)

const tagName = "orm"

type tagOptions struct {
	name      string
	skip      bool
	pk        bool
	null      bool
	typeName  string
	column    string
	fk        string
	reverse   string
	m2m       bool
	joinTable string
}

// parseTag reads `orm:"name,pk,null,type=T,column=c,fk=c,reverse=f,m2m[=table]"`.
func parseTag(goName, tag string) (tagOptions, error) {
	var o tagOptions
	if tag == "-" {
		o.skip = true
		return o, nil
	}

	parts := strings.Split(tag, ",")
	o.name = strings.TrimSpace(parts[0])
	if o.name == "" {
		o.name = SnakeCase(goName)
	}

	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		key, value, hasValue := strings.Cut(p, "=")
		switch key {
		case "pk":
			o.pk = true
		case "null":
			o.null = true
		case "m2m":
			o.m2m = true
			o.joinTable = value
		case "type", "column", "fk", "reverse":
			if !hasValue || value == "" {
				return o, fmt.Errorf("option %q needs a value", key)
			}
			switch key {
			case "type":
				o.typeName = value
			case "column":
				o.column = value
			case "fk":
				o.fk = value
			case "reverse":
				o.reverse = value
			}
		case "":
		default:
			return o, fmt.Errorf("unknown option %q", p)
		}
	}

	return o, nil
}

// SnakeCase converts a Go identifier to snake_case, keeping initialisms
// together: CreatedAt -> created_at, CustomerID -> customer_id.
func SnakeCase(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := rs[i-1]
				nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
