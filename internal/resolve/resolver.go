// Package resolve wires the reconciliation pipeline together: merge
// context → prompt → completion call → conflict codec → resolved file
// content.
package resolve

import (
	"context"

	"github.com/google/uuid"

	"github.com/driftline/driftline/internal/completion"
	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/conflict"
	apperrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/internal/logging"
	"github.com/driftline/driftline/internal/prompt"
	"github.com/driftline/driftline/internal/timeline"
)

// Resolver drives merge reconciliation for one repository. Callers must
// not run two attempts concurrently for the same (task, file) pair; the
// completion call and reassembly are not idempotent against interleaved
// workspace mutations.
type Resolver struct {
	tracker *timeline.Tracker
	svc     completion.Service
	cfg     *config.Config
	logger  *logging.Logger
}

// New creates a Resolver. A nil config uses defaults; a nil logger is a
// no-op logger.
func New(tracker *timeline.Tracker, svc completion.Service, cfg *config.Config, logger *logging.Logger) *Resolver {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Resolver{tracker: tracker, svc: svc, cfg: cfg, logger: logger}
}

// ResolveConflicts takes merged text still containing conflict markers
// and returns conflict-free content. Marker-free input passes through
// unchanged. Conflicts the response does not resolve fall back to the
// task's own worktree side; a response with no usable resolution at all
// is a merge failure the caller must retry or escalate.
func (r *Resolver) ResolveConflicts(ctx context.Context, taskID, file, mergedText, language string) (string, error) {
	conflicts, _ := conflict.ParseConflictMarkersContext(mergedText, r.cfg.Conflict.ContextLines)
	if len(conflicts) == 0 {
		return mergedText, nil
	}

	attemptID := uuid.NewString()
	log := r.logger.WithTask(taskID).WithFile(file).With("attempt_id", attemptID)
	log.Info("resolving conflicts", "conflicts", len(conflicts))

	var intent *timeline.TaskIntent
	if mc, ok := r.tracker.GetMergeContext(taskID, file); ok {
		intent = &mc.Intent
	}

	p, err := prompt.BuildConflictOnlyPrompt(conflicts, language, intent)
	if err != nil {
		return "", err
	}

	response, err := r.svc.Complete(ctx, p)
	if err != nil {
		return "", err
	}

	resolutions := conflict.ExtractConflictResolutions(response, conflicts, language)
	if len(resolutions) == 0 {
		log.Warn("no resolutions extracted from response")
		return "", apperrors.NewTimelineError("merge failed", apperrors.ErrUnparsableResponse).
			WithTask(taskID).
			WithFile(file)
	}
	if len(resolutions) < len(conflicts) {
		log.Warn("partial resolutions, falling back to worktree side",
			"error", apperrors.ErrNoResolution,
			"resolved", len(resolutions), "conflicts", len(conflicts))
	}

	return conflict.ReassembleWithResolutions(mergedText, conflicts, resolutions), nil
}

// ResolveTimeline asks for a full-file reconciliation built from the
// file's recorded evolution. Returns the merged content the completion
// produced, or ErrNoMergeContext when the (task, file) pair was never
// tracked.
func (r *Resolver) ResolveTimeline(ctx context.Context, taskID, file string) (string, error) {
	mc, ok := r.tracker.GetMergeContext(taskID, file)
	if !ok {
		return "", apperrors.NewNotFoundError("merge context", taskID+":"+file).
			WithCause(apperrors.ErrNoMergeContext)
	}

	prompt.OptimizeForLength(mc, r.cfg.Prompt.MaxContentChars, r.cfg.Prompt.MaxEvolutionEvents)

	p, err := prompt.BuildTimelineMergePrompt(mc)
	if err != nil {
		return "", err
	}

	attemptID := uuid.NewString()
	log := r.logger.WithTask(taskID).WithFile(file).With("attempt_id", attemptID)
	log.Info("requesting timeline merge",
		"events", len(mc.EvolutionSinceBranch), "pending_tasks", mc.TotalPendingTasks)

	response, err := r.svc.Complete(ctx, p)
	if err != nil {
		return "", err
	}

	content, ok := extractMergedFile(response)
	if !ok {
		return "", apperrors.NewTimelineError("merge failed", apperrors.ErrUnparsableResponse).
			WithTask(taskID).
			WithFile(file)
	}
	return content, nil
}

// extractMergedFile pulls the merged file body out of a full-file
// response: the single fenced code block when there is exactly one,
// nothing otherwise.
func extractMergedFile(response string) (string, bool) {
	blocks := conflict.FencedBlocks(response)
	if len(blocks) != 1 {
		return "", false
	}
	return blocks[0], true
}
