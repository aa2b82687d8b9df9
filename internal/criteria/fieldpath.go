// internal/criteria/fieldpath.go
package criteria

import (
	"fmt"
	"strings"

	"github.com/apptentive/engagekit/internal/types"
)

/*
 * Field paths for state resolution.
 *
 * A field path is a slash-delimited address into device, person, app-release
 * and engagement-history state ("code_point/local#app#launch/invokes/total").
 * Resolvers consume it one segment at a time: a root provider dispatches on
 * Key(), advances, and hands the remainder to a sub-provider.
 *
 * Parent() exposes the most recently consumed segment so a resolver can give
 * the same trailing segment different meanings depending on where it sits
 * (invokes under a code point vs. under an interaction).
 *
 * FieldPath is an immutable value; Advance returns a copy sharing the
 * segment slice, which is never written after parsing.
 */

// FieldPath is a parsed field path with a resolution cursor.
type FieldPath struct {
	fullPath string
	segments []string
	position int
}

// ParseFieldPath parses a literal path positioned at its first segment.
// Returns ErrMalformedFieldPath for empty paths or empty segments and
// ErrFieldPathTooDeep beyond MaxFieldPathSegments.
func ParseFieldPath(path string) (FieldPath, error) {
	if path == "" {
		return FieldPath{}, fmt.Errorf("%w: empty path", types.ErrMalformedFieldPath)
	}

	segments := strings.Split(path, "/")
	if len(segments) > types.MaxFieldPathSegments {
		return FieldPath{}, fmt.Errorf("%w: %q has %d segments", types.ErrFieldPathTooDeep, path, len(segments))
	}
	for i, seg := range segments {
		if seg == "" {
			return FieldPath{}, fmt.Errorf("%w: %q has empty segment at %d", types.ErrMalformedFieldPath, path, i)
		}
	}

	return FieldPath{fullPath: path, segments: segments}, nil
}

// NewFieldPathAt parses path and positions the cursor at position.
// Returns ErrFieldPathPosition when position is not a valid segment index.
func NewFieldPathAt(path string, position int) (FieldPath, error) {
	fp, err := ParseFieldPath(path)
	if err != nil {
		return FieldPath{}, err
	}
	if position < 0 || position >= len(fp.segments) {
		return FieldPath{}, fmt.Errorf("%w: position %d in %q (%d segments)", types.ErrFieldPathPosition, position, path, len(fp.segments))
	}
	fp.position = position
	return fp, nil
}

// MustParseFieldPath is ParseFieldPath for literals known to be valid.
// Panics on error; intended for tests and package-level tables.
func MustParseFieldPath(path string) FieldPath {
	fp, err := ParseFieldPath(path)
	if err != nil {
		panic(err)
	}
	return fp
}

// Advance returns a copy with the cursor moved forward by steps.
// Moving to exactly the segment count is allowed (the path is then fully
// consumed); moving beyond it returns ErrFieldPathPosition.
func (p FieldPath) Advance(steps int) (FieldPath, error) {
	next := p.position + steps
	if steps < 0 || next > len(p.segments) {
		return FieldPath{}, fmt.Errorf("%w: cannot advance %q from %d by %d", types.ErrFieldPathPosition, p.fullPath, p.position, steps)
	}
	p.position = next
	return p, nil
}

// String returns the original path text.
func (p FieldPath) String() string {
	return p.fullPath
}

// Position returns the index of the current segment.
func (p FieldPath) Position() int {
	return p.position
}

// Keys returns the segments from the cursor onward.
func (p FieldPath) Keys() []string {
	return p.segments[p.position:]
}

// ParentKeys returns the consumed segments, most recently consumed first.
func (p FieldPath) ParentKeys() []string {
	parents := make([]string, p.position)
	for i := 0; i < p.position; i++ {
		parents[i] = p.segments[p.position-1-i]
	}
	return parents
}

// Key returns the current segment, or "" when the path is fully consumed.
func (p FieldPath) Key() string {
	if p.position >= len(p.segments) {
		return ""
	}
	return p.segments[p.position]
}

// Parent returns the segment immediately before the cursor, or "" at the root.
func (p FieldPath) Parent() string {
	if p.position == 0 {
		return ""
	}
	return p.segments[p.position-1]
}

// Remainder returns the unconsumed segments joined with "/".
func (p FieldPath) Remainder() string {
	return strings.Join(p.Keys(), "/")
}

// Resolved reports whether every segment has been consumed.
func (p FieldPath) Resolved() bool {
	return p.position >= len(p.segments)
}

// IsZero reports whether p is the zero FieldPath (never parsed).
func (p FieldPath) IsZero() bool {
	return p.segments == nil
}
