package repository

import (
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Operator is a comparison applied by a Condition.
type Operator string

const (
	OpEq     Operator = "eq"
	OpNe     Operator = "ne"
	OpLt     Operator = "lt"
	OpLe     Operator = "le"
	OpGt     Operator = "gt"
	OpGe     Operator = "ge"
	OpIn     Operator = "in"
	OpNotIn  Operator = "not_in"
	OpLike   Operator = "like"
	OpILike  Operator = "ilike"
	OpIsNull Operator = "is_null"
)

var operators = map[Operator]struct{}{
	OpEq: {}, OpNe: {}, OpLt: {}, OpLe: {}, OpGt: {}, OpGe: {},
	OpIn: {}, OpNotIn: {}, OpLike: {}, OpILike: {}, OpIsNull: {},
}

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	_, ok := operators[op]
	return ok
}

// OrKey is the filter key whose value is a nested map of OR-combined conditions.
const OrKey = "__or__"

const opSeparator = "__"

// Condition is one typed predicate: Field Op Value.
type Condition struct {
	Field string
	Op    Operator
	Value any
}

func (c Condition) String() string {
	return fmt.Sprintf("%s__%s=%v", c.Field, c.Op, c.Value)
}

// Filter is a conjunction of And conditions plus one disjunction group.
// An empty Or group adds no predicate.
type Filter struct {
	And []Condition
	Or  []Condition
}

// Where returns a filter with a single equality condition.
func Where(field string, value any) Filter {
	return Filter{And: []Condition{{Field: field, Op: OpEq, Value: value}}}
}

// ParseFilters converts the field__op=value convention into a Filter.
// A key without an operator suffix means equality. Keys are processed in
// sorted order so generated SQL is stable. Operator validity is checked
// later against the entity schema, together with field names.
func ParseFilters(raw map[string]any) Filter {
	var f Filter
	for _, key := range sortedKeys(raw) {
		value := raw[key]
		if key == OrKey {
			nested, ok := value.(map[string]any)
			if !ok {
				log.WithField("value", value).Warn("Ignoring __or__ filter that is not an object")
				continue
			}
			for _, nk := range sortedKeys(nested) {
				f.Or = append(f.Or, parseCondition(nk, nested[nk]))
			}
			continue
		}
		f.And = append(f.And, parseCondition(key, value))
	}
	return f
}

func parseCondition(key string, value any) Condition {
	field, op, found := strings.Cut(key, opSeparator)
	if !found {
		return Condition{Field: key, Op: OpEq, Value: value}
	}
	return Condition{Field: field, Op: Operator(op), Value: value}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortField is one ORDER BY term.
type SortField struct {
	Field string
	Desc  bool
}

// ParseSort converts tokens like "-created_at" into SortFields.
// Comma-separated tokens inside one string are split.
func ParseSort(tokens ...string) []SortField {
	var out []SortField
	for _, token := range tokens {
		for _, part := range strings.Split(token, ",") {
			part = strings.TrimSpace(part)
			if part == "" || part == "-" {
				continue
			}
			if strings.HasPrefix(part, "-") {
				out = append(out, SortField{Field: part[1:], Desc: true})
			} else {
				out = append(out, SortField{Field: strings.TrimPrefix(part, "+")})
			}
		}
	}
	return out
}
