// internal/criteria/evaluate.go
package criteria

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/apptentive/engagekit/internal/types"
)

/*
 * Clause evaluation orchestration.
 *
 * An Evaluator is long-lived configuration (logger, clock, trace sink). Each
 * top-level Evaluate call creates a fresh Evaluation holding the state
 * provider, a single "now", and the trace indentation depth. Nothing mutable
 * is shared between calls, so one Evaluator serves concurrent callers and
 * their traces never interleave indentation.
 *
 * Resolution failures are contained in Evaluation.resolve: the error is
 * logged and traced, and the field evaluates as Absent. A failing provider
 * can make a clause false (or true, via $ne / $exists false), but can never
 * abort targeting.
 *
 * Tracing is a side channel. TraceFunc receives one formatted line per
 * node event and cannot influence results.
 */

// TraceFunc receives one human-readable trace line, already indented.
type TraceFunc func(line string)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for resolution failures and debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock sets the time source for $before/$after comparisons.
func WithClock(clock func() time.Time) Option {
	return func(e *Evaluator) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithTrace installs a trace sink. A nil sink disables tracing.
func WithTrace(trace TraceFunc) Option {
	return func(e *Evaluator) {
		e.trace = trace
	}
}

// Evaluator evaluates clause trees against state providers.
type Evaluator struct {
	logger *slog.Logger
	clock  func() time.Time
	trace  TraceFunc
}

// NewEvaluator creates an evaluator. Defaults: slog.Default(), time.Now, no trace.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{
		logger: slog.Default().With("component", "criteria"),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate reports whether clause holds for state. Safe for concurrent use.
func (e *Evaluator) Evaluate(clause Clause, state StateProvider) bool {
	if clause == nil {
		return false
	}
	return clause.IsSatisfied(e.Begin(state))
}

// Begin starts a top-level evaluation with fresh trace state.
func (e *Evaluator) Begin(state StateProvider) *Evaluation {
	id := types.NewEvaluationID()
	return &Evaluation{
		id:     id,
		state:  state,
		now:    e.clock(),
		logger: e.logger.With("evaluation_id", string(id)),
		trace:  e.trace,
	}
}

// Evaluate is a convenience for a one-off evaluation with default options.
func Evaluate(clause Clause, state StateProvider, opts ...Option) bool {
	return NewEvaluator(opts...).Evaluate(clause, state)
}

// Evaluation is the per-call context threaded through IsSatisfied.
// Not safe for concurrent use; create one per top-level evaluation.
type Evaluation struct {
	id     types.EvaluationID
	state  StateProvider
	now    time.Time
	logger *slog.Logger
	trace  TraceFunc
	depth  int
}

// ID returns the evaluation's correlation id.
func (ev *Evaluation) ID() types.EvaluationID { return ev.id }

// Now returns the instant relative comparisons are anchored to.
func (ev *Evaluation) Now() time.Time { return ev.now }

// resolve asks the state provider for field, converting errors and panics
// into Absent.
func (ev *Evaluation) resolve(field FieldPath) (value Value) {
	defer func() {
		if r := recover(); r != nil {
			value = ev.unresolved(field, fmt.Errorf("state provider panic: %v", r))
		}
	}()

	if ev.state == nil {
		return ev.unresolved(field, fmt.Errorf("%w: no state provider", types.ErrUnknownField))
	}
	v, err := ev.state.Resolve(field)
	if err != nil {
		return ev.unresolved(field, err)
	}
	return orAbsent(v)
}

func (ev *Evaluation) unresolved(field FieldPath, err error) Value {
	ev.logger.Warn("field resolution failed, treating as absent",
		"field", field.String(),
		"error", err,
	)
	ev.tracef("%q could not be resolved: %v", field.String(), err)
	return Absent{}
}

func (ev *Evaluation) indent()  { ev.depth++ }
func (ev *Evaluation) outdent() { ev.depth-- }

func (ev *Evaluation) tracef(format string, args ...any) {
	if ev.trace == nil {
		return
	}
	ev.trace(strings.Repeat("  ", ev.depth) + "- " + fmt.Sprintf(format, args...))
}
