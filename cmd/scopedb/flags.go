package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/scopedb/internal/filter"
	"github.com/banshee-data/scopedb/internal/query"
)

// csvList is a comma separated flag value.
type csvList []string

func (c *csvList) String() string { return strings.Join(*c, ",") }

func (c *csvList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*c = append(*c, part)
		}
	}
	return nil
}

// whereList collects repeated --where expressions.
type whereList []string

func (w *whereList) String() string { return strings.Join(*w, " AND ") }

func (w *whereList) Set(v string) error {
	*w = append(*w, v)
	return nil
}

type queryFlags struct {
	begin, end string
	where      whereList
	signals    csvList
	arrays     csvList
	metrics    csvList
}

func (q *queryFlags) register(fs *flag.FlagSet, payload bool) {
	fs.StringVar(&q.begin, "begin", "", "Earliest scan start time (RFC 3339)")
	fs.StringVar(&q.end, "end", "", "Latest scan start time (RFC 3339)")
	fs.Var(&q.where, "where", `Metadata constraint, e.g. "a<2" or "c='on'" (repeatable)`)
	fs.Var(&q.signals, "signals", "Comma separated signal names")
	if payload {
		fs.Var(&q.arrays, "arrays", "Comma separated array names, e.g. raw,power_spectrum")
		fs.Var(&q.metrics, "metrics", "Comma separated waveform metric names, e.g. mean,rms")
	}
}

func (q *queryFlags) options() (query.Options, error) {
	var f filter.Filter
	var err error
	if f.Begin, err = parseBound(q.begin); err != nil {
		return query.Options{}, fmt.Errorf("invalid --begin: %w", err)
	}
	if f.End, err = parseBound(q.end); err != nil {
		return query.Options{}, fmt.Errorf("invalid --end: %w", err)
	}

	names := make([]string, 0, len(q.where))
	ops := make([]string, 0, len(q.where))
	values := make([]any, 0, len(q.where))
	for _, expr := range q.where {
		name, op, value, err := parseWhere(expr)
		if err != nil {
			return query.Options{}, err
		}
		names, ops, values = append(names, name), append(ops, op), append(values, value)
	}
	if f.Constraints, err = filter.Constraints(names, ops, values); err != nil {
		return query.Options{}, err
	}

	return query.Options{
		Filter:  f,
		Signals: q.signals,
		Arrays:  q.arrays,
		Metrics: q.metrics,
	}, nil
}

func parseBound(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const operatorChars = "<>!="

// parseWhere splits "name op value". A value in single or double quotes is
// text; otherwise a value that parses as a number is numeric and anything
// else is text. The operator itself is validated by filter.Constraints.
func parseWhere(expr string) (name, op string, value any, err error) {
	i := strings.IndexAny(expr, operatorChars)
	if i < 0 {
		return "", "", nil, fmt.Errorf("constraint %q has no operator", expr)
	}
	j := i
	for j < len(expr) && strings.IndexByte(operatorChars, expr[j]) >= 0 {
		j++
	}

	name = strings.TrimSpace(expr[:i])
	op = expr[i:j]
	raw := strings.TrimSpace(expr[j:])
	if name == "" || raw == "" {
		return "", "", nil, fmt.Errorf("constraint %q needs a name and a value", expr)
	}

	if len(raw) >= 2 && (raw[0] == '\'' || raw[0] == '"') && raw[len(raw)-1] == raw[0] {
		return name, op, raw[1 : len(raw)-1], nil
	}
	if f, perr := strconv.ParseFloat(raw, 64); perr == nil {
		return name, op, f, nil
	}
	return name, op, raw, nil
}
