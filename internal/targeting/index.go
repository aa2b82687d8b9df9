package targeting

import (
	"errors"
	"fmt"

	"github.com/apptentive/engagekit/internal/manifest"
	"github.com/apptentive/engagekit/internal/types"
)

// Index is the lookup structure built from one manifest. Never mutated after
// BuildIndex returns; a new manifest produces a new Index.
type Index struct {
	interactions map[types.InteractionID]manifest.Interaction
	targets      map[types.EventName][]manifest.Invocation
}

// DuplicateInteractionError reports an interaction id registered twice in one
// manifest. The first registration is the one kept.
type DuplicateInteractionError struct {
	ID             types.InteractionID
	FirstIndex     int
	DuplicateIndex int
}

func (e *DuplicateInteractionError) Error() string {
	return fmt.Sprintf("interaction %q at interactions[%d] duplicates interactions[%d]", e.ID, e.DuplicateIndex, e.FirstIndex)
}

func (e *DuplicateInteractionError) Unwrap() error { return types.ErrDuplicateInteraction }

// BuildIndex indexes m. Duplicate interaction ids yield a non-nil index that
// keeps the first registration of each id, together with an error joining one
// *DuplicateInteractionError per duplicate. Callers must not install an index
// returned with an error.
func BuildIndex(m *manifest.Manifest) (*Index, error) {
	if m == nil {
		return nil, types.ErrNoManifest
	}

	idx := &Index{
		interactions: make(map[types.InteractionID]manifest.Interaction, len(m.Interactions)),
		targets:      make(map[types.EventName][]manifest.Invocation, len(m.Targets)),
	}

	firstSeen := make(map[types.InteractionID]int, len(m.Interactions))
	var dups []error
	for i, in := range m.Interactions {
		if first, ok := firstSeen[in.ID]; ok {
			dups = append(dups, &DuplicateInteractionError{ID: in.ID, FirstIndex: first, DuplicateIndex: i})
			continue
		}
		firstSeen[in.ID] = i
		idx.interactions[in.ID] = in
	}

	for event, invs := range m.Targets {
		idx.targets[event] = invs
	}

	return idx, errors.Join(dups...)
}

// Interaction returns the descriptor registered under id.
func (idx *Index) Interaction(id types.InteractionID) (manifest.Interaction, bool) {
	in, ok := idx.interactions[id]
	return in, ok
}

// Invocations returns the ordered invocation list for event.
func (idx *Index) Invocations(event types.EventName) ([]manifest.Invocation, bool) {
	invs, ok := idx.targets[event]
	return invs, ok
}

// Len returns the number of indexed interactions.
func (idx *Index) Len() int {
	return len(idx.interactions)
}
