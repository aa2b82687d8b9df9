package cmd

import (
	"fmt"
	"os"

	"github.com/apptentive/engagekit/internal/manifest"
	"github.com/apptentive/engagekit/internal/state"
	"github.com/apptentive/engagekit/internal/types"
)

// readManifest reads and decodes the manifest at path, returning the raw
// document alongside it for storage.
func readManifest(path string) (*manifest.Manifest, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := manifest.Decode(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, data, nil
}

// readSnapshot loads a YAML state snapshot; an empty path yields empty state.
func readSnapshot(path string) (*state.Snapshot, error) {
	if path == "" {
		return &state.Snapshot{}, nil
	}
	return state.LoadSnapshot(path)
}

// eventName maps a CLI event argument to its engaged name. Local events are
// given bare and escaped into the local#app# namespace; interaction events
// are namespaced by the interaction type.
func eventName(arg string, local bool, interactionType string) types.EventName {
	switch {
	case interactionType != "":
		return types.InternalEvent(interactionType, arg)
	case local:
		return types.LocalEvent(arg)
	default:
		return types.EventName(arg)
	}
}
