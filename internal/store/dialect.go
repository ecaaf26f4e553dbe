package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/scopedb/internal/config"
)

// sqliteTimeLayout is fixed width so that text comparison in SQLite orders
// timestamps chronologically.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

// dialect adapts "?" queries and time arguments to one engine.
type dialect struct {
	name string
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case config.DriverSQLite, config.DriverPostgres:
		return dialect{name: driver}, nil
	}
	return dialect{}, fmt.Errorf("unsupported driver %q", driver)
}

// rebind rewrites "?" placeholders to "$n" for PostgreSQL. Queries built in
// this package never carry a literal "?".
func (d dialect) rebind(query string) string {
	if d.name != config.DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// arg converts one argument for the engine. Times are always sent in UTC.
func (d dialect) arg(v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	if d.name == config.DriverSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func (d dialect) args(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = d.arg(v)
	}
	return out
}

// placeholders returns n comma separated "?" markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// parseTime reads a start time column back as UTC.
func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case []byte:
		return parseTimeString(string(t))
	case string:
		return parseTimeString(t)
	}
	return time.Time{}, fmt.Errorf("unexpected time value %T", v)
}

func parseTimeString(s string) (time.Time, error) {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable time %q", s)
}
