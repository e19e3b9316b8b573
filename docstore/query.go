// ABOUTME: In-process query evaluation shared by the memory and badger backends
// ABOUTME: Applies filters, ordering, cursor and limit over raw documents
package docstore

import (
	"reflect"
	"sort"
	"strings"
)

// evalQuery filters, orders and paginates docs. Every doc must carry PathKey;
// paths are the tiebreak so pagination is stable.
func evalQuery(docs []Document, q Query) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if matchesAll(d, q.Filters) {
			out = append(out, d)
		}
	}

	orderBy := q.OrderBy
	if len(orderBy) == 0 {
		orderBy = []Order{{Field: "createdAt"}}
	}
	sort.Slice(out, func(i, j int) bool {
		for _, o := range orderBy {
			c := compareValues(out[i][o.Field], out[j][o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		pi, _ := out[i][PathKey].(string)
		pj, _ := out[j][PathKey].(string)
		return pi < pj
	})

	if q.Cursor != "" {
		start := 0
		for i, d := range out {
			if p, _ := d[PathKey].(string); p == q.Cursor {
				start = i + 1
				break
			}
		}
		out = out[start:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matchesAll(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !matchFilter(doc, f) {
			return false
		}
	}
	return true
}

func matchFilter(doc Document, f Filter) bool {
	got := doc[f.Field]
	switch f.Op {
	case "==":
		return equalValues(got, f.Value)
	case "!=":
		return !equalValues(got, f.Value)
	case "<":
		return compareValues(got, f.Value) < 0
	case "<=":
		return compareValues(got, f.Value) <= 0
	case ">":
		return compareValues(got, f.Value) > 0
	case ">=":
		return compareValues(got, f.Value) >= 0
	case "in":
		rv := reflect.ValueOf(f.Value)
		if rv.Kind() != reflect.Slice {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if equalValues(got, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	case "array-contains":
		arr, ok := got.([]any)
		if !ok {
			return false
		}
		for _, v := range arr {
			if equalValues(v, f.Value) {
				return true
			}
		}
		return false
	}
	return false
}

func equalValues(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two document values: numbers numerically, strings
// lexically (RFC 3339 timestamps order correctly this way), bools
// false<true. Missing values sort first.
func compareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case !ab && bb:
				return -1
			case ab && !bb:
				return 1
			}
			return 0
		}
	}
	return 0
}

func asFloat(v any) (float64, bool) {
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
	}
	return 0, false
}
