// internal/criteria/operators_test.go
package criteria

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func TestCompare(t *testing.T) {
	earlier := InstantOf(testNow.Add(-30 * time.Minute))
	later := InstantOf(testNow.Add(time.Hour))

	tests := []struct {
		name  string
		op    ConditionalOperator
		value Value
		param Value
		want  bool
	}{
		// $exists
		{"exists true on present", OpExists, Integer(1), Bool(true), true},
		{"exists true on absent", OpExists, Absent{}, Bool(true), false},
		{"exists false on absent", OpExists, Absent{}, Bool(false), true},
		{"exists false on present", OpExists, Text("x"), Bool(false), false},
		{"exists with non-bool param", OpExists, Integer(1), Integer(1), false},
		{"exists on nil value", OpExists, nil, Bool(false), true},

		// $eq / $ne with absent
		{"absent eq absent", OpEquals, Absent{}, Absent{}, true},
		{"absent ne absent", OpNotEquals, Absent{}, Absent{}, false},
		{"absent eq present", OpEquals, Absent{}, Text("a"), false},
		{"absent ne present", OpNotEquals, Absent{}, Text("a"), true},
		{"present eq absent param", OpEquals, Integer(3), Absent{}, false},
		{"present ne absent param", OpNotEquals, Integer(3), Absent{}, true},

		// numbers
		{"integer eq integer", OpEquals, Integer(3), Integer(3), true},
		{"integer eq number", OpEquals, Integer(3), Number(3.0), true},
		{"number ne integer", OpNotEquals, Number(3.5), Integer(3), true},
		{"integer lt number", OpLessThan, Integer(2), Number(2.5), true},
		{"number lte integer", OpLessThanOrEqual, Number(2), Integer(2), true},
		{"integer gt integer", OpGreaterThan, Integer(10), Integer(9), true},
		{"number gte number", OpGreaterThanOrEqual, Number(1.5), Number(1.6), false},

		// bool
		{"bool eq bool", OpEquals, Bool(true), Bool(true), true},
		{"bool ne bool", OpNotEquals, Bool(true), Bool(false), true},
		{"bool lt bool", OpLessThan, Bool(false), Bool(true), false},
		{"bool eq integer", OpEquals, Bool(true), Integer(1), false},
		{"bool ne integer", OpNotEquals, Bool(true), Integer(1), false},
		{"integer eq bool", OpEquals, Integer(1), Bool(true), false},
		{"integer ne bool", OpNotEquals, Integer(1), Bool(true), false},
		{"bool lt integer", OpLessThan, Bool(false), Integer(1), false},
		{"integer lt bool", OpLessThan, Integer(0), Bool(true), false},
		{"bool gte integer", OpGreaterThanOrEqual, Bool(true), Integer(0), false},
		{"integer gte bool", OpGreaterThanOrEqual, Integer(1), Bool(false), false},

		// text
		{"text eq folded and trimmed", OpEquals, Text(" Hello "), Text("HELLO"), true},
		{"text ne", OpNotEquals, Text("hello"), Text("world"), true},
		{"text lt folded", OpLessThan, Text("apple"), Text("Banana"), true},
		{"text gte", OpGreaterThanOrEqual, Text("b"), Text("B"), true},
		{"text eq integer", OpEquals, Text("3"), Integer(3), false},
		{"starts_with", OpStartsWith, Text("Hello World"), Text("hello"), true},
		{"ends_with", OpEndsWith, Text("Hello World"), Text("WORLD"), true},
		{"contains", OpContains, Text("Hello World"), Text("LO W"), true},
		{"contains miss", OpContains, Text("Hello World"), Text("xyz"), false},
		{"starts_with on integer", OpStartsWith, Integer(12), Text("1"), false},
		{"contains on absent", OpContains, Absent{}, Text("a"), false},

		// versions
		{"version lt", OpLessThan, MustParseVersion("1.2.3"), MustParseVersion("1.10.0"), true},
		{"version eq missing patch", OpEquals, MustParseVersion("2.0"), MustParseVersion("2.0.0"), true},
		{"version gte prerelease", OpGreaterThanOrEqual, MustParseVersion("4.1.0"), MustParseVersion("4.1.0-beta.2"), true},
		{"version eq text", OpEquals, MustParseVersion("1.0.0"), Text("1.0.0"), false},

		// instants
		{"instant lt instant", OpLessThan, earlier, later, true},
		{"instant eq instant", OpEquals, earlier, InstantOf(earlier.Time()), true},
		{"after negative offset", OpAfter, earlier, Integer(-3600), true},
		{"before negative offset", OpBefore, earlier, Integer(-3600), false},
		{"before smaller offset", OpBefore, earlier, Number(-900), true},
		{"after positive offset", OpAfter, later, Number(1800), true},
		{"before text param", OpBefore, earlier, Text("-3600"), false},
		{"after non-instant", OpAfter, Integer(5), Integer(0), false},
		{"after absent", OpAfter, Absent{}, Integer(0), false},
		{"before offset beyond duration range", OpBefore, InstantOf(testNow), Number(1e12), true},
		{"after offset beyond duration range", OpAfter, InstantOf(testNow), Integer(1e12), false},
		{"after negative offset beyond duration range", OpAfter, InstantOf(testNow), Number(-1e12), true},
		{"before negative offset beyond duration range", OpBefore, InstantOf(testNow), Integer(-1e12), false},
		{"before infinite offset", OpBefore, InstantOf(testNow), Number(math.Inf(1)), true},
		{"after infinite offset", OpAfter, InstantOf(testNow), Number(math.Inf(1)), false},
		{"before nan offset", OpBefore, InstantOf(testNow), Number(math.NaN()), false},
		{"after nan offset", OpAfter, InstantOf(testNow), Number(math.NaN()), false},
		{"distant instant before", OpBefore, InstantOf(time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)), Integer(0), false},
		{"distant instant after", OpAfter, InstantOf(time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)), Number(1e9), true},

		// answer id sets
		{"ids exists on empty", OpExists, AnswerIDs{}, Bool(true), false},
		{"ids not exists on empty", OpExists, AnswerIDs{}, Bool(false), true},
		{"ids exists on non-empty", OpExists, AnswerIDs{"a"}, Bool(true), true},
		{"ids eq member", OpEquals, AnswerIDs{"a", "b"}, Text("a"), true},
		{"ids ne member", OpNotEquals, AnswerIDs{"a", "b"}, Text("a"), false},
		{"ids ne non-member", OpNotEquals, AnswerIDs{"a", "b"}, Text("c"), true},
		{"ids eq absent", OpEquals, AnswerIDs{"a"}, Absent{}, false},
		{"ids ne absent", OpNotEquals, AnswerIDs{"a"}, Absent{}, true},
		{"ids contains", OpContains, AnswerIDs{"choice_1", "other"}, Text("OICE"), true},
		{"ids lt", OpLessThan, AnswerIDs{"a"}, Text("b"), false},

		// answer value sets
		{"values eq folded", OpEquals, AnswerValues{Text("Yes"), Integer(3)}, Text("yes"), true},
		{"values eq numeric", OpEquals, AnswerValues{Text("Yes"), Integer(3)}, Number(3.0), true},
		{"values ne non-member", OpNotEquals, AnswerValues{Text("Yes"), Integer(3)}, Number(4), true},
		{"values starts_with", OpStartsWith, AnswerValues{Integer(3), Text("Maybe later")}, Text("maybe"), true},
		{"values exists empty", OpExists, AnswerValues{}, Bool(false), true},
		{"values gt", OpGreaterThan, AnswerValues{Integer(3)}, Integer(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compare(tt.op, tt.value, tt.param, testNow)
			if got != tt.want {
				t.Errorf("Compare(%s, %v, %v) = %v, want %v", tt.op, tt.value, tt.param, got, tt.want)
			}
		})
	}
}

func TestParseConditionalOperator(t *testing.T) {
	for _, tok := range []string{"$exists", "$eq", "$ne", "$lt", "$lte", "$gt", "$gte", "$starts_with", "$ends_with", "$contains", "$before", "$after"} {
		op, ok := ParseConditionalOperator(tok)
		if !ok {
			t.Errorf("ParseConditionalOperator(%q) ok = false, want true", tok)
			continue
		}
		if op.String() != tok {
			t.Errorf("String() = %q, want %q", op.String(), tok)
		}
	}

	if _, ok := ParseConditionalOperator("$regex"); ok {
		t.Errorf("ParseConditionalOperator($regex) ok = true, want false")
	}
}

func TestCompare_PropertyEqualityIsNegation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("$ne is the negation of $eq for same-kind integers", prop.ForAll(
		func(a, b int64) bool {
			eq := Compare(OpEquals, Integer(a), Integer(b), testNow)
			ne := Compare(OpNotEquals, Integer(a), Integer(b), testNow)
			return eq != ne
		},
		gen.Int64Range(-1000, 1000),
		gen.Int64Range(-1000, 1000),
	))

	properties.Property("integer and number operands order identically", prop.ForAll(
		func(a, b int64) bool {
			for _, op := range []ConditionalOperator{OpLessThan, OpLessThanOrEqual, OpGreaterThan, OpGreaterThanOrEqual} {
				if Compare(op, Integer(a), Integer(b), testNow) != Compare(op, Integer(a), Number(float64(b)), testNow) {
					return false
				}
			}
			return true
		},
		gen.Int64Range(-1000, 1000),
		gen.Int64Range(-1000, 1000),
	))

	properties.Property("text equality ignores case and surrounding space", prop.ForAll(
		func(s string) bool {
			return Compare(OpEquals, Text("  "+s+" "), Text(s), testNow)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
