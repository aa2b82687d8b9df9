package types

import "github.com/google/uuid"

// EvaluationID correlates the trace lines and log records of one
// top-level targeting decision.
type EvaluationID string

// RevisionID identifies a stored manifest revision.
type RevisionID string

// NewEvaluationID generates a UUIDv7 evaluation identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewEvaluationID() EvaluationID {
	return EvaluationID(uuid.Must(uuid.NewV7()).String())
}

// NewRevisionID generates a UUIDv7 manifest revision identifier.
// Time-ordered IDs keep revision inserts clustered in B-tree pages.
func NewRevisionID() RevisionID {
	return RevisionID(uuid.Must(uuid.NewV7()).String())
}

// ParseRevisionID validates and converts a string to RevisionID.
func ParseRevisionID(s string) (RevisionID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return RevisionID(s), nil
}
