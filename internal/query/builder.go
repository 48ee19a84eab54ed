// Package query assembles parameterised WHERE clauses and pagination from
// optional list filters. Field names come from code, values are always bound.
package query

import (
	"fmt"
	"strings"
	"time"
)

// Op is a comparison operator supported by the builder.
type Op string

const (
	OpEq       Op = "="
	OpGte      Op = ">="
	OpLte      Op = "<="
	OpContains Op = "ilike"
)

// Placeholder values sent by the UI meaning "no constraint".
var placeholders = map[string]struct{}{
	"":     {},
	"tous": {},
	"all":  {},
}

// IsPlaceholder reports whether v carries no constraint.
func IsPlaceholder(v string) bool {
	_, ok := placeholders[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

// Predicate is a single typed condition.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// Builder collects predicates in insertion order; the zero value is ready to use.
type Builder struct {
	preds []Predicate
}

// Eq adds an equality predicate unless value is a placeholder.
func (b *Builder) Eq(field, value string) *Builder {
	if IsPlaceholder(value) {
		return b
	}
	b.preds = append(b.preds, Predicate{Field: field, Op: OpEq, Value: strings.TrimSpace(value)})
	return b
}

// EqInt adds an equality predicate on a numeric column when ok is true.
func (b *Builder) EqInt(field string, value int64, ok bool) *Builder {
	if !ok {
		return b
	}
	b.preds = append(b.preds, Predicate{Field: field, Op: OpEq, Value: value})
	return b
}

// Gte adds a lower bound when t is non-zero.
func (b *Builder) Gte(field string, t time.Time) *Builder {
	if t.IsZero() {
		return b
	}
	b.preds = append(b.preds, Predicate{Field: field, Op: OpGte, Value: t})
	return b
}

// Lte adds an upper bound when t is non-zero.
func (b *Builder) Lte(field string, t time.Time) *Builder {
	if t.IsZero() {
		return b
	}
	b.preds = append(b.preds, Predicate{Field: field, Op: OpLte, Value: t})
	return b
}

// Contains adds a case-insensitive substring match.
func (b *Builder) Contains(field, value string) *Builder {
	if IsPlaceholder(value) {
		return b
	}
	b.preds = append(b.preds, Predicate{Field: field, Op: OpContains, Value: strings.TrimSpace(value)})
	return b
}

// Predicates returns a copy of the collected predicates.
func (b *Builder) Predicates() []Predicate {
	out := make([]Predicate, len(b.preds))
	copy(out, b.preds)
	return out
}

// Where renders "where ... and ..." with placeholders numbered after offset
// ($offset+1, ...). It returns an empty clause when there are no predicates.
func (b *Builder) Where(offset int) (string, []any) {
	if len(b.preds) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(b.preds))
	args := make([]any, 0, len(b.preds))
	for i, p := range b.preds {
		n := offset + i + 1
		switch p.Op {
		case OpContains:
			conds = append(conds, fmt.Sprintf("%s ilike $%d", p.Field, n))
			args = append(args, "%"+escapeLike(fmt.Sprint(p.Value))+"%")
		default:
			conds = append(conds, fmt.Sprintf("%s %s $%d", p.Field, p.Op, n))
			args = append(args, p.Value)
		}
	}
	return "where " + strings.Join(conds, " and "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
