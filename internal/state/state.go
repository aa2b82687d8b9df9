// Package state resolves criteria field paths against a snapshot of the
// application, device, person and engagement history.
//
// Root dispatches on the first path segment to one sub-provider per domain.
// Every sub-provider is itself a criteria.StateProvider and receives the path
// with the root segment already consumed.
package state

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/apptentive/engagekit/internal/criteria"
	"github.com/apptentive/engagekit/internal/types"
)

// Root segments.
const (
	KeyApplication   = "application"
	KeySDK           = "sdk"
	KeyCurrentTime   = "current_time"
	KeyIsUpdate      = "is_update"
	KeyTimeAtInstall = "time_at_install"
	KeyDevice        = "device"
	KeyPerson        = "person"
	KeyCodePoint     = "code_point"
	KeyInteractions  = "interactions"
	KeyRandom        = "random"
)

// Option configures a Root.
type Option func(*Root)

// WithClock sets the time source for current_time.
func WithClock(clock func() time.Time) Option {
	return func(r *Root) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithRand sets the source for random percentages.
func WithRand(rng *rand.Rand) Option {
	return func(r *Root) {
		if rng != nil {
			r.rng = rng
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Root) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Root is the top-level state provider.
type Root struct {
	providers map[string]criteria.StateProvider
	clock     func() time.Time
	rng       *rand.Rand
	logger    *slog.Logger
}

// NewRoot builds the provider tree for snap.
func NewRoot(snap *Snapshot, opts ...Option) *Root {
	if snap == nil {
		snap = &Snapshot{}
	}

	r := &Root{
		clock:  time.Now,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger: slog.Default().With("component", "state"),
	}
	for _, opt := range opts {
		opt(r)
	}

	engagement := &Engagement{CodePoints: snap.CodePoints, Interactions: snap.Interactions}
	r.providers = map[string]criteria.StateProvider{
		KeyApplication:   &Application{Release: snap.Application},
		KeySDK:           &SDKInfo{SDK: snap.SDK},
		KeyCurrentTime:   criteria.StateFunc(r.currentTime),
		KeyIsUpdate:      &IsUpdate{Install: snap.Install},
		KeyTimeAtInstall: &TimeAtInstall{Install: snap.Install},
		KeyDevice:        &DeviceInfo{Device: snap.Device},
		KeyPerson:        &PersonInfo{Person: snap.Person},
		KeyCodePoint:     engagement,
		KeyInteractions:  engagement,
		KeyRandom:        NewRandom(r.rng, snap.Random),
	}
	return r
}

// Register installs or replaces the provider for a root segment.
// Not safe to call concurrently with Resolve.
func (r *Root) Register(key string, provider criteria.StateProvider) {
	r.providers[key] = provider
}

// Resolve implements criteria.StateProvider.
func (r *Root) Resolve(field criteria.FieldPath) (criteria.Value, error) {
	key := field.Key()
	provider, ok := r.providers[key]
	if !ok {
		return nil, unknownField(field)
	}

	next, err := field.Advance(1)
	if err != nil {
		return nil, err
	}

	v, err := provider.Resolve(next)
	if err != nil {
		r.logger.Debug("field not resolved", "field", field.String(), "provider", key, "error", err)
		return nil, err
	}
	return v, nil
}

func (r *Root) currentTime(field criteria.FieldPath) (criteria.Value, error) {
	if !field.Resolved() {
		return nil, unknownField(field)
	}
	return criteria.InstantOf(r.clock()), nil
}

func unknownField(field criteria.FieldPath) error {
	return fmt.Errorf("%w: %s", types.ErrUnknownField, field)
}

// leaf returns the final segment when exactly one segment remains.
func leaf(field criteria.FieldPath) (string, bool) {
	keys := field.Keys()
	if len(keys) != 1 {
		return "", false
	}
	return keys[0], true
}
