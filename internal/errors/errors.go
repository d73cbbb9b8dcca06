// Package errors provides centralized error definitions and error handling
// utilities for the driftline codebase. It defines domain-specific errors,
// sentinel errors, and classification helpers used across the timeline,
// git, and resolution subsystems.
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Timeline-related sentinel errors
var (
	// ErrTimelineNotFound indicates that no timeline exists for a file path.
	ErrTimelineNotFound = New("timeline not found")
	// ErrViewNotFound indicates that a task has no view for a file.
	ErrViewNotFound = New("task file view not found")
	// ErrViewTerminal indicates a status transition on a non-active view.
	ErrViewTerminal = New("task file view already merged or abandoned")
)

// Git-related sentinel errors
var (
	// ErrNotGitRepository indicates that the directory is not a git repository.
	ErrNotGitRepository = New("not a git repository")
	// ErrCommitNotFound indicates that a commit could not be resolved.
	ErrCommitNotFound = New("commit not found")
	// ErrFileNotInCommit indicates that a file does not exist at a commit.
	ErrFileNotInCommit = New("file not present at commit")
	// ErrBranchNotFound indicates that a branch could not be found.
	ErrBranchNotFound = New("branch not found")
)

// Resolution-related sentinel errors
var (
	// ErrNoResolution indicates the completion response carried no usable
	// resolution for one or more conflicts.
	ErrNoResolution = New("no resolution found in response")
	// ErrUnparsableResponse indicates the completion response could not be
	// mapped to the conflicts it was asked to resolve.
	ErrUnparsableResponse = New("completion response unparsable")
	// ErrNoMergeContext indicates a merge context could not be built for a
	// (task, file) pair.
	ErrNoMergeContext = New("no merge context available")
)

// baseError provides common functionality for all error types.
type baseError struct {
	message string
	cause   error
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// GitError represents an error from a git read operation, with optional
// repository and revision context.
type GitError struct {
	baseError
	Repository string
	Revision   string
	Path       string
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithRevision adds a revision to the error context.
func (e *GitError) WithRevision(rev string) *GitError {
	e.Revision = rev
	return e
}

// WithPath adds a file path to the error context.
func (e *GitError) WithPath(path string) *GitError {
	e.Path = path
	return e
}

// Error returns the formatted error message including context.
func (e *GitError) Error() string {
	msg := e.baseError.Error()
	if e.Revision != "" {
		msg = fmt.Sprintf("%s (revision: %s)", msg, e.Revision)
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (path: %s)", msg, e.Path)
	}
	return msg
}

// TimelineError represents an error from the timeline store or tracker.
type TimelineError struct {
	baseError
	FilePath string
	TaskID   string
}

// NewTimelineError creates a new TimelineError.
func NewTimelineError(message string, cause error) *TimelineError {
	return &TimelineError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithFile adds a file path to the error context.
func (e *TimelineError) WithFile(path string) *TimelineError {
	e.FilePath = path
	return e
}

// WithTask adds a task ID to the error context.
func (e *TimelineError) WithTask(taskID string) *TimelineError {
	e.TaskID = taskID
	return e
}

// Error returns the formatted error message including context.
func (e *TimelineError) Error() string {
	msg := e.baseError.Error()
	if e.FilePath != "" {
		msg = fmt.Sprintf("%s (file: %s)", msg, e.FilePath)
	}
	if e.TaskID != "" {
		msg = fmt.Sprintf("%s (task: %s)", msg, e.TaskID)
	}
	return msg
}

// NotFoundError indicates a resource could not be found.
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message: fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// IsNotFound reports whether err indicates a missing resource of any kind.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return true
	}
	return errors.Is(err, ErrTimelineNotFound) ||
		errors.Is(err, ErrViewNotFound) ||
		errors.Is(err, ErrCommitNotFound) ||
		errors.Is(err, ErrFileNotInCommit) ||
		errors.Is(err, ErrBranchNotFound)
}
