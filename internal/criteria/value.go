// internal/criteria/value.go
package criteria

import (
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

/*
 * Values flowing through the engine.
 *
 * One sealed sum type covers both sides of a comparison:
 *   - Scalars: Number, Integer, Bool, Text, Instant, Version
 *   - Absent: the field has no value (or could not be resolved)
 *   - Sets: AnswerIDs and AnswerValues, historical survey answers that only
 *     a state provider produces
 *
 * A parameter (the literal side of a test) is always a scalar or Absent; the
 * decoder guarantees this. The unexported isValue method closes the set so
 * the operator table in operators.go is an exhaustive type switch.
 */

// Kind discriminates Value implementations.
type Kind int

const (
	KindAbsent Kind = iota
	KindNumber
	KindInteger
	KindBool
	KindText
	KindInstant
	KindVersion
	KindAnswerIDs
	KindAnswerValues
)

var kindNames = [...]string{
	KindAbsent:       "absent",
	KindNumber:       "number",
	KindInteger:      "integer",
	KindBool:         "bool",
	KindText:         "text",
	KindInstant:      "instant",
	KindVersion:      "version",
	KindAnswerIDs:    "answer_ids",
	KindAnswerValues: "answer_values",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Value is a resolved field value or a literal parameter.
type Value interface {
	Kind() Kind
	String() string
	isValue()
}

// Absent is the missing value.
type Absent struct{}

// Number is a real-valued scalar.
type Number float64

// Integer is an integral scalar.
type Integer int64

// Bool is a boolean scalar.
type Bool bool

// Text is a string scalar.
type Text string

// Instant is a point in time.
type Instant struct {
	t time.Time
}

// AnswerIDs is the set of choice ids a person has selected historically.
type AnswerIDs []string

// AnswerValues is the set of answer values a person has given historically.
// Members are Text, Number or Integer.
type AnswerValues []Value

// InstantOf wraps t as an Instant.
func InstantOf(t time.Time) Instant { return Instant{t: t} }

// Range of seconds since epoch accepted for datetime literals:
// 0001-01-01T00:00:00Z through 9999-12-31T23:59:59Z.
const (
	MinInstantSeconds = -62135596800
	MaxInstantSeconds = 253402300799
)

// InstantFromSeconds builds an Instant from (fractional) seconds since epoch.
// It reports false for NaN, infinities and values outside
// [MinInstantSeconds, MaxInstantSeconds].
func InstantFromSeconds(sec float64) (Instant, bool) {
	if math.IsNaN(sec) || sec < MinInstantSeconds || sec > MaxInstantSeconds {
		return Instant{}, false
	}
	whole := int64(sec)
	frac := sec - float64(whole)
	return Instant{t: time.Unix(whole, int64(frac*float64(time.Second))).UTC()}, true
}

// Time returns the wrapped time.
func (i Instant) Time() time.Time { return i.t }

func (Absent) Kind() Kind       { return KindAbsent }
func (Number) Kind() Kind       { return KindNumber }
func (Integer) Kind() Kind      { return KindInteger }
func (Bool) Kind() Kind         { return KindBool }
func (Text) Kind() Kind         { return KindText }
func (Instant) Kind() Kind      { return KindInstant }
func (Version) Kind() Kind      { return KindVersion }
func (AnswerIDs) Kind() Kind    { return KindAnswerIDs }
func (AnswerValues) Kind() Kind { return KindAnswerValues }

func (Absent) isValue()       {}
func (Number) isValue()       {}
func (Integer) isValue()      {}
func (Bool) isValue()         {}
func (Text) isValue()         {}
func (Instant) isValue()      {}
func (Version) isValue()      {}
func (AnswerIDs) isValue()    {}
func (AnswerValues) isValue() {}

func (Absent) String() string    { return "null" }
func (n Number) String() string  { return strconv.FormatFloat(float64(n), 'g', -1, 64) }
func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }
func (b Bool) String() string    { return strconv.FormatBool(bool(b)) }
func (t Text) String() string    { return strconv.Quote(string(t)) }

func (i Instant) String() string {
	return "datetime(" + i.t.UTC().Format(time.RFC3339) + ")"
}

func (s AnswerIDs) String() string {
	quoted := make([]string, len(s))
	for i, id := range s {
		quoted[i] = strconv.Quote(id)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func (s AnswerValues) String() string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// IsAbsent reports whether v is nil or Absent.
func IsAbsent(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Absent)
	return ok
}

func orAbsent(v Value) Value {
	if v == nil {
		return Absent{}
	}
	return v
}

// normalizeText trims surrounding whitespace, NFC-normalizes and case-folds s
// so "  Hello " and "HELLO" compare equal.
// cases.Caser is stateful, so a fresh one is created per call.
func normalizeText(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
