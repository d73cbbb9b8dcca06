// Package prompt renders merge contexts into the natural-language
// reconciliation requests sent to the completion service, and applies the
// length/event budget that keeps them inside a context window.
package prompt

import (
	"errors"
)

// Validation errors
var (
	ErrNilContext    = errors.New("merge context is nil")
	ErrEmptyFilePath = errors.New("file path is required")
	ErrEmptyTaskID   = errors.New("task ID is required")
	ErrNoConflicts   = errors.New("at least one conflict is required")
)

// Variant identifies which request shape a caller asked for.
type Variant string

const (
	// VariantTimeline is the full narrative request built from the
	// file's evolution history.
	VariantTimeline Variant = "timeline"
	// VariantSimple is the three-body request: main, worktree, ancestor.
	VariantSimple Variant = "simple"
	// VariantConflictOnly iterates only the unresolved conflict regions.
	VariantConflictOnly Variant = "conflict_only"
)

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	switch v {
	case VariantTimeline, VariantSimple, VariantConflictOnly:
		return true
	}
	return false
}
