package state

import (
	"math/rand/v2"
	"sync"

	"github.com/apptentive/engagekit/internal/criteria"
)

// Random resolves random/percent, a fresh value in [0, 100) on every lookup,
// and random/<key>/percent, drawn once per key and then stable.
type Random struct {
	mu     sync.Mutex
	rng    *rand.Rand
	stable map[string]float64
}

// NewRandom creates a Random. pinned preloads stable per-key values.
func NewRandom(rng *rand.Rand, pinned map[string]float64) *Random {
	stable := make(map[string]float64, len(pinned))
	for k, v := range pinned {
		stable[k] = v
	}
	return &Random{rng: rng, stable: stable}
}

// Resolve implements criteria.StateProvider.
func (r *Random) Resolve(field criteria.FieldPath) (criteria.Value, error) {
	keys := field.Keys()
	switch {
	case len(keys) == 1 && keys[0] == "percent":
		return criteria.Number(r.draw()), nil
	case len(keys) == 2 && keys[1] == "percent":
		return criteria.Number(r.stablePercent(keys[0])), nil
	default:
		return nil, unknownField(field)
	}
}

func (r *Random) draw() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() * 100
}

func (r *Random) stablePercent(key string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.stable[key]; ok {
		return v
	}
	v := r.rng.Float64() * 100
	r.stable[key] = v
	return v
}
