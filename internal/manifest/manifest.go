// Package manifest decodes the server-delivered engagement manifest: the
// interaction descriptors and the per-event invocation lists that reference
// them.
//
// Decoding is all-or-nothing. Any criteria document that fails to decode
// aborts the whole manifest so a caller never installs a partial one.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/apptentive/engagekit/internal/criteria"
	"github.com/apptentive/engagekit/internal/types"
)

// Manifest is a decoded manifest. Immutable once returned by Decode.
type Manifest struct {
	Interactions []Interaction
	Targets      map[types.EventName][]Invocation

	// Expiry is the server-suggested cache lifetime in seconds, 0 if unset.
	Expiry float64
}

// Interaction describes one interaction. Configuration is opaque to the
// engine and passed through to whoever presents the interaction.
type Interaction struct {
	ID            types.InteractionID `json:"id"`
	Type          string              `json:"type"`
	DisplayType   string              `json:"display_type,omitempty"`
	Version       int                 `json:"version,omitempty"`
	APIVersion    int                 `json:"api_version,omitempty"`
	Configuration json.RawMessage     `json:"configuration,omitempty"`
}

// Invocation pairs an interaction with the criteria that gate it.
type Invocation struct {
	InteractionID types.InteractionID
	Criteria      criteria.Clause
}

type wireManifest struct {
	Interactions []Interaction                `json:"interactions"`
	Targets      map[string][]wireInvocation `json:"targets"`
	Expiry       float64                     `json:"expiry,omitempty"`
}

type wireInvocation struct {
	InteractionID types.InteractionID `json:"interaction_id"`
	Criteria      json.RawMessage     `json:"criteria"`
}

// Decode parses a manifest document. Errors wrap types.ErrInvalidManifest and,
// for criteria failures, the underlying *criteria.DecodeError.
//
// A missing or null criteria member decodes like {}: the invocation always
// passes.
func Decode(data []byte) (*Manifest, error) {
	var wire wireManifest
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidManifest, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after manifest", types.ErrInvalidManifest)
	}

	for i, in := range wire.Interactions {
		if in.ID == "" {
			return nil, fmt.Errorf("%w: interactions[%d]: %w", types.ErrInvalidManifest, i, types.ErrMissingInteractionID)
		}
	}

	m := &Manifest{
		Interactions: wire.Interactions,
		Targets:      make(map[types.EventName][]Invocation, len(wire.Targets)),
		Expiry:       wire.Expiry,
	}

	// Sorted so the first reported error does not depend on map iteration.
	events := make([]string, 0, len(wire.Targets))
	for event := range wire.Targets {
		events = append(events, event)
	}
	sort.Strings(events)

	for _, event := range events {
		wireInvs := wire.Targets[event]
		invs := make([]Invocation, 0, len(wireInvs))
		for i, w := range wireInvs {
			if w.InteractionID == "" {
				return nil, fmt.Errorf("%w: targets[%q][%d]: %w", types.ErrInvalidManifest, event, i, types.ErrMissingInteractionID)
			}
			clause, err := decodeCriteria(w.Criteria)
			if err != nil {
				return nil, fmt.Errorf("%w: targets[%q][%d]: %w", types.ErrInvalidManifest, event, i, err)
			}
			invs = append(invs, Invocation{InteractionID: w.InteractionID, Criteria: clause})
		}
		m.Targets[types.EventName(event)] = invs
	}

	return m, nil
}

// Load reads and decodes a manifest from r.
func Load(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Decode(data)
}

func decodeCriteria(raw json.RawMessage) (criteria.Clause, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &criteria.ImplicitAnd{}, nil
	}
	return criteria.Decode(trimmed)
}

// Events returns the event names that have invocation lists, sorted.
func (m *Manifest) Events() []types.EventName {
	events := make([]types.EventName, 0, len(m.Targets))
	for event := range m.Targets {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
	return events
}
