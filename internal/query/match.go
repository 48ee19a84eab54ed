package query

import (
	"fmt"
	"strings"
	"time"
)

// Match evaluates predicates against an in-memory row. lookup returns the
// row's value for a field and false when the field is unknown or null; a
// null never satisfies a predicate, matching SQL semantics.
func Match(preds []Predicate, lookup func(field string) (any, bool)) bool {
	for _, p := range preds {
		v, ok := lookup(p.Field)
		if !ok || !matchOne(p, v) {
			return false
		}
	}
	return true
}

func matchOne(p Predicate, v any) bool {
	switch want := p.Value.(type) {
	case time.Time:
		got, ok := v.(time.Time)
		if !ok || got.IsZero() {
			return false
		}
		switch p.Op {
		case OpGte:
			return !got.Before(want)
		case OpLte:
			return !got.After(want)
		case OpEq:
			return got.Equal(want)
		}
		return false
	case int64:
		got, ok := v.(int64)
		return ok && p.Op == OpEq && got == want
	default:
		got := fmt.Sprint(v)
		w := fmt.Sprint(want)
		switch p.Op {
		case OpEq:
			return got == w
		case OpContains:
			return strings.Contains(strings.ToLower(got), strings.ToLower(w))
		}
		return false
	}
}
