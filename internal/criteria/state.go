package criteria

import (
	"fmt"

	"github.com/apptentive/engagekit/internal/types"
)

// StateProvider resolves a field path against current device, person,
// app-release and engagement state. Implementations return an error wrapping
// types.ErrUnknownField for paths they do not recognize.
type StateProvider interface {
	Resolve(field FieldPath) (Value, error)
}

// StateFunc adapts a function to StateProvider.
type StateFunc func(field FieldPath) (Value, error)

// Resolve implements StateProvider.
func (f StateFunc) Resolve(field FieldPath) (Value, error) {
	return f(field)
}

// MapState resolves full path strings from a fixed map.
// Used by tests and by callers evaluating a narrow, precomputed state.
type MapState map[string]Value

// Resolve implements StateProvider. The lookup uses the unconsumed remainder
// so a MapState can also sit below a dispatcher.
func (m MapState) Resolve(field FieldPath) (Value, error) {
	v, ok := m[field.Remainder()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownField, field)
	}
	return v, nil
}
