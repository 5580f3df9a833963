package remote

import (
	"cmp"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Op is a filter comparison.
type Op string

const (
	Eq     Op = "=="
	Lt     Op = "<"
	Lte    Op = "<="
	Gt     Op = ">"
	Gte    Op = ">="
	Prefix Op = "prefix"
)

// Filter restricts a query to documents whose Field compares to Value.
// A document without Field never matches.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order sorts query results by Field. Documents lacking the field sort first.
type Order struct {
	Field string
	Desc  bool
}

// Query is a conjunction of filters with an ordering and an optional limit.
// Results with equal sort keys are ordered by document id.
type Query struct {
	Filters []Filter
	Orders  []Order
	Limit   int
}

// Where starts a query with one filter.
func Where(field string, op Op, v any) Query {
	return Query{}.Where(field, op, v)
}

// Where adds a filter.
func (q Query) Where(field string, op Op, v any) Query {
	q.Filters = append(slices.Clip(q.Filters), Filter{Field: field, Op: op, Value: v})
	return q
}

// OrderBy adds a sort key.
func (q Query) OrderBy(field string, desc bool) Query {
	q.Orders = append(slices.Clip(q.Orders), Order{Field: field, Desc: desc})
	return q
}

// Take limits the number of results. Zero means no limit.
func (q Query) Take(n int) Query {
	q.Limit = n
	return q
}

var fieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate rejects unknown operators and field names that are not plain identifiers.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		if !fieldName.MatchString(f.Field) {
			return fmt.Errorf("remote: invalid filter field %q", f.Field)
		}
		switch f.Op {
		case Eq, Lt, Lte, Gt, Gte:
		case Prefix:
			if _, ok := f.Value.(string); !ok {
				return fmt.Errorf("remote: prefix filter on %q needs a string", f.Field)
			}
		default:
			return fmt.Errorf("remote: unknown operator %q", f.Op)
		}
	}
	for _, o := range q.Orders {
		if !fieldName.MatchString(o.Field) {
			return fmt.Errorf("remote: invalid order field %q", o.Field)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("remote: negative limit %d", q.Limit)
	}
	return nil
}

// Matches reports whether data satisfies every filter.
func (q Query) Matches(data map[string]any) bool {
	for _, f := range q.Filters {
		v, ok := data[f.Field]
		if !ok {
			return false
		}
		if !f.matches(v) {
			return false
		}
	}
	return true
}

func (f Filter) matches(v any) bool {
	if f.Op == Prefix {
		s, ok := v.(string)
		p, _ := f.Value.(string)
		return ok && strings.HasPrefix(s, p)
	}
	c, ok := compareValues(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case Eq:
		return c == 0
	case Lt:
		return c < 0
	case Lte:
		return c <= 0
	case Gt:
		return c > 0
	case Gte:
		return c >= 0
	}
	return false
}

// Apply filters, sorts and limits docs in process. Backends without a
// native query engine use it.
func (q Query) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d.Data) {
			out = append(out, d)
		}
	}
	slices.SortStableFunc(out, func(a, b Document) int {
		for _, o := range q.Orders {
			c := compareField(a.Data, b.Data, o.Field)
			if o.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func compareField(a, b map[string]any, field string) int {
	av, aok := a[field]
	bv, bok := b[field]
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return -1
	case !bok:
		return 1
	}
	if c, ok := compareValues(av, bv); ok {
		return c
	}
	// Mixed types order by type rank.
	return cmp.Compare(typeRank(av), typeRank(bv))
}

// compareValues compares two JSON scalars of the same kind.
func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0, true
		}
		return 0, false
	}
	if af, ok := number(a); ok {
		bf, ok := number(b)
		if !ok {
			return 0, false
		}
		return cmp.Compare(af, bf), true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func typeRank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := number(v); ok {
		return 2
	}
	switch v.(type) {
	case bool:
		return 1
	case string:
		return 3
	}
	return 4
}
