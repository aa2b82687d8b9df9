package types

import "errors"

// Sentinel errors for engagekit operations.
var (
	// ErrMalformedFieldPath indicates an empty path or an empty path segment.
	ErrMalformedFieldPath = errors.New("malformed field path")

	// ErrFieldPathTooDeep indicates a field path exceeds MaxFieldPathSegments.
	ErrFieldPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrFieldPathPosition indicates a position at or beyond the last segment.
	ErrFieldPathPosition = errors.New("field path position out of range")

	// ErrUnknownField indicates a state provider cannot resolve a field path.
	ErrUnknownField = errors.New("unrecognized field")

	// ErrUnrecognizedShape indicates a criteria node matches none of the
	// literal, operator-object or clause-document shapes.
	ErrUnrecognizedShape = errors.New("unrecognized criteria shape")

	// ErrUnknownOperator indicates an unrecognized conditional operator token.
	ErrUnknownOperator = errors.New("unknown conditional operator")

	// ErrUnknownLogicalOperator indicates an unrecognized $-prefixed clause key.
	ErrUnknownLogicalOperator = errors.New("unknown logical operator")

	// ErrUnknownLiteralType indicates a complex literal with an unknown _type.
	ErrUnknownLiteralType = errors.New("unknown complex literal type")

	// ErrMalformedLiteral indicates a complex literal with a bad payload.
	ErrMalformedLiteral = errors.New("malformed literal")

	// ErrEmptyClause indicates an empty clause array, document or operator object.
	ErrEmptyClause = errors.New("empty clause")

	// ErrClauseTooDeep indicates criteria nesting exceeds MaxClauseDepth.
	ErrClauseTooDeep = errors.New("criteria nesting exceeds maximum depth")

	// ErrInvalidManifest indicates a manifest document that cannot be decoded.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrMissingInteractionID indicates an interaction or invocation without an id.
	ErrMissingInteractionID = errors.New("interaction id required")

	// ErrDuplicateInteraction indicates two interactions share an id in one manifest.
	ErrDuplicateInteraction = errors.New("duplicate interaction id")

	// ErrNoManifest indicates no manifest has been installed or stored.
	ErrNoManifest = errors.New("no manifest available")
)
