// internal/criteria/operators.go
package criteria

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"
)

/*
 * Operator comparison logic.
 *
 * Compare dispatches on (operator, resolved kind, parameter kind). Every
 * combination not listed below evaluates to false; a malformed comparison
 * never aborts the surrounding clause tree.
 *
 * Table:
 *   - $exists vs set: set emptiness against a Bool parameter
 *   - $exists vs other: absence against a Bool parameter
 *   - $starts_with/$ends_with/$contains: folded, trimmed Text; any set member
 *   - $before/$after: Instant vs now + offset seconds (Number or Integer)
 *   - $eq/$ne: Absent handled explicitly, set membership, then scalars
 *   - ordering: Integer/Number coerce to float64, same kinds compare through
 *     one three-way result table; Bool only supports $eq/$ne
 *   - Bool vs Integer: always false
 */

// LogicalOperator combines subclauses.
type LogicalOperator int

const (
	LogicalAnd LogicalOperator = iota + 1
	LogicalOr
	LogicalNot
)

var logicalTokens = map[LogicalOperator]string{
	LogicalAnd: "$and",
	LogicalOr:  "$or",
	LogicalNot: "$not",
}

func (op LogicalOperator) String() string {
	if tok, ok := logicalTokens[op]; ok {
		return tok
	}
	return "$unknown"
}

// ConditionalOperator compares a resolved field value against a parameter.
type ConditionalOperator int

const (
	OpExists ConditionalOperator = iota + 1
	OpEquals
	OpNotEquals
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpStartsWith
	OpEndsWith
	OpContains
	OpBefore
	OpAfter
)

var conditionalTokens = map[string]ConditionalOperator{
	"$exists":      OpExists,
	"$eq":          OpEquals,
	"$ne":          OpNotEquals,
	"$lt":          OpLessThan,
	"$lte":         OpLessThanOrEqual,
	"$gt":          OpGreaterThan,
	"$gte":         OpGreaterThanOrEqual,
	"$starts_with": OpStartsWith,
	"$ends_with":   OpEndsWith,
	"$contains":    OpContains,
	"$before":      OpBefore,
	"$after":       OpAfter,
}

var conditionalNames = func() map[ConditionalOperator]string {
	names := make(map[ConditionalOperator]string, len(conditionalTokens))
	for tok, op := range conditionalTokens {
		names[op] = tok
	}
	return names
}()

// ParseConditionalOperator maps a manifest token ("$gte") to its operator.
func ParseConditionalOperator(token string) (ConditionalOperator, bool) {
	op, ok := conditionalTokens[token]
	return op, ok
}

func (op ConditionalOperator) String() string {
	if tok, ok := conditionalNames[op]; ok {
		return tok
	}
	return "$unknown"
}

// Compare applies op to a resolved value and a literal parameter.
// now anchors the relative $before/$after comparisons.
func Compare(op ConditionalOperator, value, param Value, now time.Time) bool {
	if value == nil {
		value = Absent{}
	}
	if param == nil {
		param = Absent{}
	}

	switch v := value.(type) {
	case AnswerIDs:
		return compareAnswerIDs(op, v, param)
	case AnswerValues:
		return compareAnswerValues(op, v, param)
	}

	switch op {
	case OpExists:
		want, ok := param.(Bool)
		if !ok {
			return false
		}
		return !IsAbsent(value) == bool(want)
	case OpStartsWith, OpEndsWith, OpContains:
		vs, ok1 := value.(Text)
		ps, ok2 := param.(Text)
		if !ok1 || !ok2 {
			return false
		}
		return matchText(op, string(vs), string(ps))
	case OpBefore, OpAfter:
		return compareRelative(op, value, param, now)
	case OpEquals, OpNotEquals:
		return compareEquality(op, value, param)
	case OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual:
		return compareScalars(op, value, param)
	default:
		return false
	}
}

// compareEquality gives nullable equality a total order: two absent values
// are equal, an absent value never equals a present one.
func compareEquality(op ConditionalOperator, value, param Value) bool {
	valueAbsent, paramAbsent := IsAbsent(value), IsAbsent(param)
	switch {
	case valueAbsent && paramAbsent:
		return op == OpEquals
	case valueAbsent || paramAbsent:
		return op == OpNotEquals
	}
	return compareScalars(op, value, param)
}

// compareScalars handles same-kind pairs and Integer/Number mixing.
// Returns false for any other pairing, including Bool vs Integer.
func compareScalars(op ConditionalOperator, value, param Value) bool {
	switch v := value.(type) {
	case Integer:
		switch p := param.(type) {
		case Integer:
			return compareOrdered(op, int64(v), int64(p))
		case Number:
			return compareOrdered(op, float64(v), float64(p))
		}
	case Number:
		switch p := param.(type) {
		case Number:
			return compareOrdered(op, float64(v), float64(p))
		case Integer:
			return compareOrdered(op, float64(v), float64(p))
		}
	case Bool:
		if p, ok := param.(Bool); ok && (op == OpEquals || op == OpNotEquals) {
			return (v == p) == (op == OpEquals)
		}
	case Text:
		if p, ok := param.(Text); ok {
			return compareOrdered(op, normalizeText(string(v)), normalizeText(string(p)))
		}
	case Instant:
		if p, ok := param.(Instant); ok {
			return orderedResult(op, v.t.Compare(p.t))
		}
	case Version:
		if p, ok := param.(Version); ok {
			return orderedResult(op, v.Compare(p))
		}
	}
	return false
}

// compareOrdered is the generic comparator shared by numbers and text.
func compareOrdered[T cmp.Ordered](op ConditionalOperator, a, b T) bool {
	return orderedResult(op, cmp.Compare(a, b))
}

// orderedResult maps a three-way comparison result through op.
func orderedResult(op ConditionalOperator, c int) bool {
	switch op {
	case OpEquals:
		return c == 0
	case OpNotEquals:
		return c != 0
	case OpLessThan:
		return c < 0
	case OpLessThanOrEqual:
		return c <= 0
	case OpGreaterThan:
		return c > 0
	case OpGreaterThanOrEqual:
		return c >= 0
	default:
		return false
	}
}

// compareRelative compares an Instant against now shifted by an offset in
// seconds: $before passes when value < now+offset, $after when value > now+offset.
func compareRelative(op ConditionalOperator, value, param Value, now time.Time) bool {
	instant, ok := value.(Instant)
	if !ok {
		return false
	}

	var offset float64
	switch p := param.(type) {
	case Number:
		offset = float64(p)
	case Integer:
		offset = float64(p)
	default:
		return false
	}

	if math.IsNaN(offset) {
		return false
	}

	// Seconds between the instant and now, compared against the offset
	// without converting the offset to a time.Duration.
	diff := float64(instant.t.Unix()-now.Unix()) +
		float64(instant.t.Nanosecond()-now.Nanosecond())/float64(time.Second)
	if op == OpBefore {
		return diff < offset
	}
	return diff > offset
}

// matchText applies a substring predicate after normalizing both sides.
func matchText(op ConditionalOperator, value, param string) bool {
	v, p := normalizeText(value), normalizeText(param)
	switch op {
	case OpStartsWith:
		return strings.HasPrefix(v, p)
	case OpEndsWith:
		return strings.HasSuffix(v, p)
	case OpContains:
		return strings.Contains(v, p)
	default:
		return false
	}
}

// compareAnswerIDs tests a set of historical choice ids.
// $exists tests emptiness, $eq/$ne test membership.
func compareAnswerIDs(op ConditionalOperator, set AnswerIDs, param Value) bool {
	switch op {
	case OpExists:
		want, ok := param.(Bool)
		if !ok {
			return false
		}
		return (len(set) > 0) == bool(want)
	case OpEquals, OpNotEquals:
		if IsAbsent(param) {
			return op == OpNotEquals
		}
		id, ok := param.(Text)
		if !ok {
			return false
		}
		return slices.Contains(set, string(id)) == (op == OpEquals)
	case OpStartsWith, OpEndsWith, OpContains:
		p, ok := param.(Text)
		if !ok {
			return false
		}
		return slices.ContainsFunc(set, func(id string) bool {
			return matchText(op, id, string(p))
		})
	default:
		return false
	}
}

// compareAnswerValues tests a set of historical answer values.
// Membership uses the scalar equality rules, so "Yes" matches "yes" and 3
// matches 3.0.
func compareAnswerValues(op ConditionalOperator, set AnswerValues, param Value) bool {
	switch op {
	case OpExists:
		want, ok := param.(Bool)
		if !ok {
			return false
		}
		return (len(set) > 0) == bool(want)
	case OpEquals, OpNotEquals:
		member := slices.ContainsFunc(set, func(v Value) bool {
			return compareEquality(OpEquals, v, param)
		})
		return member == (op == OpEquals)
	case OpStartsWith, OpEndsWith, OpContains:
		p, ok := param.(Text)
		if !ok {
			return false
		}
		return slices.ContainsFunc(set, func(v Value) bool {
			t, ok := v.(Text)
			return ok && matchText(op, string(t), string(p))
		})
	default:
		return false
	}
}
