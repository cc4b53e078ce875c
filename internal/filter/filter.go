// Package filter implements the predicate language used by extractor
// bindings: an ordered set of Eq/Neq comparisons against a content item's
// metadata, combined with logical AND. A predicate tree can be interpreted
// directly against an in-memory metadata map, or compiled into parameterized
// SQL fragments for candidate-selection queries. Raw string concatenation of
// values into SQL is never used.
package filter

import (
	"fmt"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/extractionplatform/pkg/errors"
)

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
)

// Predicate compares one metadata field against a scalar value.
type Predicate struct {
	Op    Op     `json:"op"`
	Field string `json:"field"`
	Value any    `json:"value"`
}

// Eq builds an equality predicate.
func Eq(field string, value any) Predicate {
	return Predicate{Op: OpEq, Field: field, Value: value}
}

// Neq builds an inequality predicate.
func Neq(field string, value any) Predicate {
	return Predicate{Op: OpNeq, Field: field, Value: value}
}

// Validate checks that the predicate is well formed: a known operator, a
// non-empty field, and a scalar value. Bindings are validated at
// registration time so selection queries never fail on bad stored filters.
func (p Predicate) Validate() error {
	if p.Op != OpEq && p.Op != OpNeq {
		return apperrors.Configuration("filter on field %q: unknown operator %q", p.Field, p.Op)
	}
	if p.Field == "" {
		return apperrors.Configuration("filter with empty field")
	}
	if _, err := scalarString(p.Value); err != nil {
		return apperrors.Configuration("filter on field %q: %v", p.Field, err)
	}
	return nil
}

// ValidateAll validates every predicate in the set.
func ValidateAll(preds []Predicate) error {
	for _, p := range preds {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Match interprets the predicate against a metadata map. A missing field
// evaluates to false for both operators, mirroring SQL NULL comparison
// semantics in the compiled form.
func (p Predicate) Match(metadata map[string]any) bool {
	raw, ok := metadata[p.Field]
	if !ok {
		return false
	}
	got, err := scalarString(raw)
	if err != nil {
		return false
	}
	want, err := scalarString(p.Value)
	if err != nil {
		return false
	}
	switch p.Op {
	case OpEq:
		return got == want
	case OpNeq:
		return got != want
	default:
		return false
	}
}

// MatchAll reports whether the metadata satisfies every predicate.
func MatchAll(preds []Predicate, metadata map[string]any) bool {
	for _, p := range preds {
		if !p.Match(metadata) {
			return false
		}
	}
	return true
}

// Compile turns the predicate set into SQL fragments over a JSONB metadata
// column, using placeholders starting at argIndex. The returned clause begins
// with " AND" and is safe to append to a WHERE clause; the values come back
// as bind arguments, never inline.
func Compile(preds []Predicate, column string, argIndex int) (string, []any, error) {
	var clause string
	args := make([]any, 0, len(preds)*2)
	for _, p := range preds {
		value, err := scalarString(p.Value)
		if err != nil {
			return "", nil, apperrors.Configuration("filter on field %q: %v", p.Field, err)
		}
		op := "="
		if p.Op == OpNeq {
			op = "!="
		} else if p.Op != OpEq {
			return "", nil, apperrors.Configuration("filter on field %q: unknown operator %q", p.Field, p.Op)
		}
		clause += fmt.Sprintf(" AND %s->>$%d %s $%d", column, argIndex, op, argIndex+1)
		args = append(args, p.Field, value)
		argIndex += 2
	}
	return clause, args, nil
}

// scalarString canonicalizes a scalar JSON value the way Postgres renders it
// through the ->> operator. Composite values are a configuration error.
func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case nil:
		return "", fmt.Errorf("null is not a comparable scalar")
	default:
		return "", fmt.Errorf("value %v is not a comparable scalar", v)
	}
}
