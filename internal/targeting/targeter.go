// Package targeting selects the interaction to show when an application event
// is engaged.
//
// A Targeter holds the installed server manifest and an optional local
// override manifest as one immutable snapshot behind an atomic pointer.
// Load, SetOverride and ClearOverride build a complete replacement and swap
// it in, so a concurrent Engage sees either the whole old snapshot or the
// whole new one.
package targeting

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apptentive/engagekit/internal/criteria"
	"github.com/apptentive/engagekit/internal/manifest"
	"github.com/apptentive/engagekit/internal/types"
)

// Manifest sources.
const (
	SourceServer   = "server"
	SourceOverride = "override"
)

// Option configures a Targeter.
type Option func(*Targeter)

// WithLogger sets the targeter's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Targeter) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithEvaluator sets the evaluator used for invocation criteria.
func WithEvaluator(e *criteria.Evaluator) Option {
	return func(t *Targeter) {
		if e != nil {
			t.evaluator = e
		}
	}
}

// WithMetrics records engagement and load metrics.
func WithMetrics(m *Metrics) Option {
	return func(t *Targeter) {
		t.metrics = m
	}
}

// snapshot is the installed state. Replaced wholesale, never mutated.
type snapshot struct {
	server   *Index
	override *Index
}

func (s *snapshot) active() (*Index, string) {
	if s == nil {
		return nil, ""
	}
	if s.override != nil {
		return s.override, SourceOverride
	}
	if s.server != nil {
		return s.server, SourceServer
	}
	return nil, ""
}

// Targeter maps engaged events to interactions. Safe for concurrent use.
type Targeter struct {
	current atomic.Pointer[snapshot]
	writeMu sync.Mutex

	evaluator *criteria.Evaluator
	logger    *slog.Logger
	metrics   *Metrics
}

// New creates a Targeter with no manifest installed.
func New(opts ...Option) *Targeter {
	t := &Targeter{
		logger: slog.Default().With("component", "targeting"),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.evaluator == nil {
		t.evaluator = criteria.NewEvaluator(criteria.WithLogger(t.logger))
	}
	t.current.Store(&snapshot{})
	return t
}

// Load installs m as the server manifest. On any error nothing is installed
// and the previous manifest stays active.
func (t *Targeter) Load(m *manifest.Manifest) error {
	idx, err := t.build(m, SourceServer)
	if err != nil {
		return err
	}

	t.swap(func(s snapshot) snapshot {
		s.server = idx
		return s
	})
	t.logger.Info("manifest installed", "source", SourceServer, "interactions", idx.Len())
	t.metrics.recordLoad(SourceServer, LoadOK)
	t.metrics.setActive(SourceServer, idx.Len())
	return nil
}

// SetOverride installs m as a local manifest that shadows the server manifest
// until ClearOverride. The server manifest is kept untouched.
func (t *Targeter) SetOverride(m *manifest.Manifest) error {
	idx, err := t.build(m, SourceOverride)
	if err != nil {
		return err
	}

	t.swap(func(s snapshot) snapshot {
		s.override = idx
		return s
	})
	t.logger.Info("manifest installed", "source", SourceOverride, "interactions", idx.Len())
	t.metrics.recordLoad(SourceOverride, LoadOK)
	t.metrics.setActive(SourceOverride, idx.Len())
	return nil
}

// ClearOverride drops the local manifest, reactivating the server manifest.
func (t *Targeter) ClearOverride() {
	t.swap(func(s snapshot) snapshot {
		s.override = nil
		return s
	})
	t.logger.Info("override manifest cleared")
	t.metrics.setActive(SourceOverride, 0)
}

// Source reports which manifest is active: SourceOverride, SourceServer, or
// "" when none is installed.
func (t *Targeter) Source() string {
	_, source := t.current.Load().active()
	return source
}

func (t *Targeter) build(m *manifest.Manifest, source string) (*Index, error) {
	idx, err := BuildIndex(m)
	if err == nil {
		return idx, nil
	}

	var dup *DuplicateInteractionError
	if errors.As(err, &dup) {
		t.logger.Error("manifest rejected: duplicate interaction id",
			"source", source,
			"interaction_id", string(dup.ID),
			"first_index", dup.FirstIndex,
			"duplicate_index", dup.DuplicateIndex,
			"error", err,
		)
		t.metrics.recordLoad(source, LoadDuplicate)
	} else {
		t.logger.Error("manifest rejected", "source", source, "error", err)
		t.metrics.recordLoad(source, LoadRejected)
	}
	return nil, fmt.Errorf("install %s manifest: %w", source, err)
}

func (t *Targeter) swap(update func(snapshot) snapshot) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	next := update(*t.current.Load())
	t.current.Store(&next)
}

// Engage returns the interaction of the first invocation registered for event
// whose criteria hold for state. An unknown event or no passing invocation
// returns false; both are logged, neither is an error.
func (t *Targeter) Engage(event types.EventName, state criteria.StateProvider) (types.InteractionID, bool) {
	idx, source := t.current.Load().active()
	if idx == nil {
		t.logger.Warn("no manifest installed", "event", event.String())
		t.metrics.recordEngagement(OutcomeNoManifest)
		return "", false
	}

	invs, ok := idx.Invocations(event)
	if !ok {
		t.logger.Info("no invocations for event", "event", event.String(), "local", event.IsLocal(), "source", source)
		t.metrics.recordEngagement(OutcomeUnknownEvent)
		return "", false
	}

	id, ok := t.firstPassing(invs, state, event)
	if !ok {
		t.logger.Info("no invocation passed", "event", event.String(), "source", source, "candidates", len(invs))
		t.metrics.recordEngagement(OutcomeNoMatch)
		return "", false
	}

	t.logger.Info("interaction selected", "event", event.String(), "source", source, "interaction_id", string(id))
	t.metrics.recordEngagement(OutcomeSelected)
	return id, true
}

// FirstPassing evaluates invs in order against state and returns the first
// passing interaction id. For callers already holding a candidate list.
func (t *Targeter) FirstPassing(invs []manifest.Invocation, state criteria.StateProvider) (types.InteractionID, bool) {
	return t.firstPassing(invs, state, "")
}

func (t *Targeter) firstPassing(invs []manifest.Invocation, state criteria.StateProvider, event types.EventName) (types.InteractionID, bool) {
	for i, inv := range invs {
		start := time.Now()
		passed := t.evaluator.Evaluate(inv.Criteria, state)
		t.metrics.observeEvaluation(time.Since(start))

		t.logger.Debug("invocation evaluated",
			"event", event.String(),
			"position", i,
			"interaction_id", string(inv.InteractionID),
			"criteria", clauseString(inv.Criteria),
			"passed", passed,
		)
		if passed {
			return inv.InteractionID, true
		}
	}
	return "", false
}

// Interaction returns the descriptor for id from the active manifest.
func (t *Targeter) Interaction(id types.InteractionID) (manifest.Interaction, bool) {
	idx, _ := t.current.Load().active()
	if idx == nil {
		return manifest.Interaction{}, false
	}
	return idx.Interaction(id)
}

// CanShow reports whether the active manifest has any invocation for event.
func (t *Targeter) CanShow(event types.EventName) bool {
	idx, _ := t.current.Load().active()
	if idx == nil {
		return false
	}
	invs, ok := idx.Invocations(event)
	return ok && len(invs) > 0
}

func clauseString(c criteria.Clause) string {
	if c == nil {
		return "<nil>"
	}
	return c.String()
}
