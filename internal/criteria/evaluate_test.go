// internal/criteria/evaluate_test.go
package criteria

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sebdah/goldie/v2"

	"github.com/apptentive/engagekit/internal/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// traceRecorder collects trace lines into a newline-terminated transcript.
type traceRecorder struct {
	lines []string
}

func (r *traceRecorder) record(line string) { r.lines = append(r.lines, line) }

func (r *traceRecorder) bytes() []byte {
	return []byte(strings.Join(r.lines, "\n") + "\n")
}

func assertGoldenTrace(t *testing.T, name string, trace []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, trace)
}

func TestEvaluate_GoldenTrace(t *testing.T) {
	clause := MustDecode(`{
		"person/name": {"$starts_with": "an"},
		"$or": [{"device/os_version": {"$gte": 10}}, {"app_release/debug": true}],
		"$not": [{"missing/field": {"$exists": true}}]
	}`)
	state := MapState{
		"person/name":       Text("Annie"),
		"device/os_version": Integer(9),
		"app_release/debug": Bool(true),
	}

	rec := &traceRecorder{}
	ok := Evaluate(clause, state, WithLogger(quietLogger()), WithTrace(rec.record))
	if !ok {
		t.Errorf("Evaluate() = false, want true")
	}

	assertGoldenTrace(t, "trace_mixed_clauses", rec.bytes())
}

func TestEvaluate_GoldenTraceEmptyCriteria(t *testing.T) {
	rec := &traceRecorder{}
	if !Evaluate(MustDecode(`{}`), nil, WithTrace(rec.record)) {
		t.Errorf("Evaluate({}) = false, want true")
	}

	assertGoldenTrace(t, "trace_empty_criteria", rec.bytes())
}

func TestEvaluate_NilClause(t *testing.T) {
	if Evaluate(nil, MapState{}) {
		t.Errorf("Evaluate(nil) = true, want false")
	}
}

func TestEvaluate_ShortCircuitOrder(t *testing.T) {
	var resolved []string
	state := StateFunc(func(field FieldPath) (Value, error) {
		resolved = append(resolved, field.String())
		return Integer(1), nil
	})

	clause := MustDecode(`{"c": 1, "a": 2, "b": 1}`)
	if Evaluate(clause, state, WithLogger(quietLogger())) {
		t.Errorf("Evaluate() = true, want false")
	}

	want := []string{"c", "a"}
	if strings.Join(resolved, ",") != strings.Join(want, ",") {
		t.Errorf("resolution order = %v, want %v", resolved, want)
	}
}

func TestEvaluate_ResolveOncePerConditional(t *testing.T) {
	calls := 0
	state := StateFunc(func(field FieldPath) (Value, error) {
		calls++
		return Integer(5), nil
	})

	if !Evaluate(MustDecode(`{"n": {"$gte": 1, "$lt": 10, "$ne": 7}}`), state) {
		t.Errorf("Evaluate() = false, want true")
	}
	if calls != 1 {
		t.Errorf("Resolve calls = %d, want 1", calls)
	}
}

func TestEvaluate_ProviderFailureIsAbsent(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	failing := StateFunc(func(field FieldPath) (Value, error) {
		return nil, errors.New("backing store unavailable")
	})
	panicking := StateFunc(func(field FieldPath) (Value, error) {
		panic("boom")
	})

	tests := []struct {
		name  string
		doc   string
		state StateProvider
		want  bool
	}{
		{"error then eq", `{"f": 1}`, failing, false},
		{"error then ne", `{"f": {"$ne": 1}}`, failing, true},
		{"error then not exists", `{"f": {"$exists": false}}`, failing, true},
		{"panic then exists", `{"f": {"$exists": true}}`, panicking, false},
		{"panic then eq null", `{"f": null}`, panicking, true},
		{"nil provider", `{"f": {"$exists": false}}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(MustDecode(tt.doc), tt.state, WithLogger(logger))
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}

	if !strings.Contains(logs.String(), "field resolution failed") {
		t.Errorf("logs = %q, want resolution failure warning", logs.String())
	}
}

func TestEvaluate_UnknownFieldIsAbsent(t *testing.T) {
	state := StateFunc(func(field FieldPath) (Value, error) {
		return nil, types.ErrUnknownField
	})

	if !Evaluate(MustDecode(`{"no/such/field": {"$exists": false}}`), state, WithLogger(quietLogger())) {
		t.Errorf("Evaluate() = false, want true for unknown field")
	}
}

func TestEvaluate_RelativeTimeUsesClock(t *testing.T) {
	installed := InstantOf(testNow.Add(-30 * time.Minute))
	state := MapState{"time_at_install/total": installed}
	clock := func() time.Time { return testNow }

	tests := []struct {
		doc  string
		want bool
	}{
		{`{"time_at_install/total": {"$after": -3600}}`, true},
		{`{"time_at_install/total": {"$before": -3600}}`, false},
		{`{"time_at_install/total": {"$before": -900}}`, true},
	}

	for _, tt := range tests {
		got := Evaluate(MustDecode(tt.doc), state, WithClock(clock))
		if got != tt.want {
			t.Errorf("Evaluate(%s) = %v, want %v", tt.doc, got, tt.want)
		}
	}
}

func TestEvaluator_BeginAssignsIDAndClock(t *testing.T) {
	e := NewEvaluator(WithClock(func() time.Time { return testNow }))

	a := e.Begin(MapState{})
	b := e.Begin(MapState{})
	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("IDs = %q, %q, want distinct non-empty", a.ID(), b.ID())
	}
	if !a.Now().Equal(testNow) {
		t.Errorf("Now() = %v, want %v", a.Now(), testNow)
	}
}

func TestEvaluator_ConcurrentTraces(t *testing.T) {
	var mu sync.Mutex
	lines := 0
	e := NewEvaluator(WithLogger(quietLogger()), WithTrace(func(line string) {
		mu.Lock()
		lines++
		mu.Unlock()
	}))

	clause := MustDecode(`{"$or": [{"n": {"$gt": 5}}, {"n": {"$lt": 0}}]}`)

	var wg sync.WaitGroup
	results := make([]bool, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.Evaluate(clause, MapState{"n": Integer(int64(i))})
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		if want := i > 5; got != want {
			t.Errorf("results[%d] = %v, want %v", i, got, want)
		}
	}
	if lines == 0 {
		t.Errorf("trace lines = 0, want > 0")
	}
}

func TestEvaluate_PropertyNotIsNand(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	clause := MustDecode(`{"$not": [{"a": true}, {"b": true}]}`)

	properties.Property("$not over two documents is NAND", prop.ForAll(
		func(a, b bool) bool {
			state := MapState{"a": Bool(a), "b": Bool(b)}
			return Evaluate(clause, state) == !(a && b)
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestEvaluate_PropertyDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	clause := MustDecode(`{"$or": [{"n": {"$gte": 10, "$lt": 20}}, {"s": {"$contains": "x"}}]}`)

	properties.Property("same clause and state give the same result and trace", prop.ForAll(
		func(n int64, s string) bool {
			state := MapState{"n": Integer(n), "s": Text(s)}
			first, second := &traceRecorder{}, &traceRecorder{}
			r1 := Evaluate(clause, state, WithTrace(first.record))
			r2 := Evaluate(clause, state, WithTrace(second.record))
			return r1 == r2 && bytes.Equal(first.bytes(), second.bytes())
		},
		gen.Int64Range(0, 30),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
