// Package cosv implements the COSV ingestion and conflict-resolution
// pipeline: payload decoding, identifier and alias resolution, metadata
// resolution, severity aggregation and the create/update orchestration.
package cosv

import "fmt"

// ParseError reports byte content that could not be decoded into any COSV
// record. It is never retried; callers surface the message verbatim.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string {
	return "cosv parse failed: " + e.Msg
}

// ValidationError reports a record that cannot be committed: missing summary,
// severity or language, or a malformed ranges.events structure.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// ConflictError reports an alias bound to a different catalog entry under the
// FAIL policy, or a store-level uniqueness violation between concurrent commits.
type ConflictError struct {
	Alias   string
	BoundTo string
	Msg     string
}

func (e *ConflictError) Error() string {
	if e.Alias != "" {
		return fmt.Sprintf("alias conflict: %s already bound to %s", e.Alias, e.BoundTo)
	}
	return e.Msg
}

// DictionaryError reports a resolved category, tag or language value that is
// unknown to its dictionary.
type DictionaryError struct {
	Kind  ConflictType
	Value string
}

func (e *DictionaryError) Error() string {
	switch e.Kind {
	case ConflictCategoryNotFound:
		return "category not found: " + e.Value
	case ConflictTagNotFound:
		return "tag not found: " + e.Value
	case ConflictLanguageInvalid:
		return "invalid language: " + e.Value
	default:
		return "dictionary error: " + e.Value
	}
}

// PermissionError reports a caller without rights over the target organization.
type PermissionError struct {
	Msg string
}

func (e *PermissionError) Error() string {
	return e.Msg
}

// NotFoundError reports a missing raw file or catalog entry.
type NotFoundError struct {
	What string
	UUID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.UUID)
}
