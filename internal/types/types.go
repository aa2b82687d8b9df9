// Package types provides identifiers, limits and sentinel errors shared across
// engagekit components.
//
// Zero-dependency design: types.go and errors.go use only the standard library
// so the engine packages can import them freely. ID utilities in ids.go import
// uuid but are isolated from the evaluation path.
package types

import "strings"

// InteractionID identifies an interaction descriptor within a manifest.
// Stable across manifest revisions; the server assigns it.
type InteractionID string

// EventName is the engaged event a target list is keyed by, e.g.
// "local#app#launch" or "com.apptentive#Survey#submit".
type EventName string

// String implements fmt.Stringer.
func (e EventName) String() string { return string(e) }

// Event name prefixes used by the manifest's targets map.
const (
	localEventVendor     = "local"
	localEventType       = "app"
	internalEventVendor  = "com.apptentive"
	eventSeparator       = "#"
	eventComponentsCount = 3
)

var eventEscaper = strings.NewReplacer("%", "%25", "/", "%2F", "#", "%23")

// LocalEvent builds the event name for a host-application event.
// The name is percent-escaped so it survives as a single field path segment.
func LocalEvent(name string) EventName {
	return EventName(localEventVendor + eventSeparator + localEventType + eventSeparator + eventEscaper.Replace(name))
}

// InternalEvent builds the event name emitted by an interaction itself.
func InternalEvent(interactionType, name string) EventName {
	return EventName(internalEventVendor + eventSeparator + eventEscaper.Replace(interactionType) + eventSeparator + eventEscaper.Replace(name))
}

// IsLocal reports whether the event was engaged by the host application.
func (e EventName) IsLocal() bool {
	parts := strings.SplitN(string(e), eventSeparator, eventComponentsCount)
	return len(parts) == eventComponentsCount && parts[0] == localEventVendor && parts[1] == localEventType
}

// Resource limits enforced by the decoder to keep evaluation bounded.
const (
	// MaxClauseDepth limits nesting of logical clauses in a criteria document.
	// 32 levels is far beyond any hand-written targeting rule and prevents
	// stack exhaustion on hostile manifests.
	MaxClauseDepth = 32

	// MaxFieldPathSegments limits the number of segments in a field path.
	// The deepest known path (interactions/<id>/current_answer/value) uses 4.
	MaxFieldPathSegments = 16
)
