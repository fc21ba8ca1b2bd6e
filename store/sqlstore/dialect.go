package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect holds the differences between the supported SQL databases.
type Dialect struct {
	// Name is also the name of the dialect's migration directory.
	Name string
	// Driver is the database/sql driver name.
	Driver string
	// Goose is the goose dialect name.
	Goose string

	numbered bool
	textTime bool
}

var (
	Postgres = Dialect{Name: "postgres", Driver: "pgx", Goose: "pgx", numbered: true}
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite", Goose: "sqlite3", textTime: true}
)

// ParseDialect returns the dialect called name.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unknown SQL dialect %q", name)
}

// placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// placeholders returns count bind parameters starting after the first
// `from` already used ones.
func (d Dialect) placeholders(from, count int) string {
	ps := make([]string, count)
	for i := range ps {
		ps[i] = d.placeholder(from + i + 1)
	}
	return strings.Join(ps, ", ")
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = quote(n)
	}
	return strings.Join(q, ", ")
}
