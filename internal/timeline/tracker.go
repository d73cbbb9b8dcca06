package timeline

import (
	"sort"
	"time"

	apperrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/internal/gitio"
	"github.com/driftline/driftline/internal/logging"
)

// Git is the read-only git collaborator the tracker depends on.
// *gitio.Repo satisfies it; tests substitute fakes.
type Git interface {
	CurrentMainCommit() (string, error)
	FileContentAtCommit(path, commit string) (string, error)
	FilesChangedInCommit(commit string) ([]string, error)
	CommitInfo(commit string) (gitio.CommitInfo, error)
	ChangedFilesInWorktree(root string) ([]string, error)
	WorktreeFileContent(path string) (string, error)
	BranchPoint(taskID string) (string, error)
	CountCommitsBetween(a, b string) (int, error)
	TargetBranch() (string, error)
}

// Tracker is the only writer of the timeline data model. It exposes
// lifecycle hooks (task start, main commit, worktree change, merged,
// abandoned) and the read queries built on top of them.
//
// Hooks are fire-and-forget notifications: a missing timeline or view is
// a benign no-op, git failures during discovery degrade gracefully, and
// persistence failures never surface to the caller.
type Tracker struct {
	store  *Store
	git    Git
	logger *logging.Logger

	now func() time.Time
}

// NewTracker creates a Tracker over the given store and git collaborator.
// A nil logger defaults to a no-op logger.
func NewTracker(store *Store, git Git, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Tracker{
		store:  store,
		git:    git,
		logger: logger,
		now:    time.Now,
	}
}

// TaskStartOptions carries the optional arguments of OnTaskStart.
type TaskStartOptions struct {
	// BranchPointCommit is the commit the task diverged at. Empty means
	// the current main commit.
	BranchPointCommit string
	// Intent describes the task's purpose.
	Intent *TaskIntent
}

// OnTaskStart registers a task's views for the files it intends to touch.
// Branch-point content is read at the branch-point commit; a file that
// does not exist there starts from empty content (the new-file case).
func (tr *Tracker) OnTaskStart(taskID string, files []string, opts TaskStartOptions) {
	log := tr.logger.WithTask(taskID)

	branchCommit := opts.BranchPointCommit
	if branchCommit == "" {
		current, err := tr.git.CurrentMainCommit()
		if err != nil {
			log.Warn("failed to resolve current main commit", "error", err)
			return
		}
		branchCommit = current
	}

	intent := TaskIntent{}
	if opts.Intent != nil {
		intent = *opts.Intent
	}

	for _, file := range files {
		content, err := tr.git.FileContentAtCommit(file, branchCommit)
		if err != nil {
			if !apperrors.Is(err, apperrors.ErrFileNotInCommit) {
				log.WithFile(file).Debug("branch point content unavailable", "error", err)
			}
			content = ""
		}

		tr.store.Mutate(file, true, func(t *FileTimeline) bool {
			if _, exists := t.Views[taskID]; exists {
				// Repeated identical start calls are idempotent.
				return false
			}
			t.Views[taskID] = &TaskFileView{
				TaskID: taskID,
				BranchPoint: BranchPoint{
					Commit:    branchCommit,
					Content:   content,
					Timestamp: tr.now(),
				},
				Intent:        intent,
				CommitsBehind: 0,
				Status:        StatusActive,
			}
			return true
		})
	}

	log.Info("task registered", "files", len(files), "branch_point", branchCommit)
}

// OnMainBranchCommit records a step of main's evolution for every changed
// file that already has a timeline. Files no task has touched are
// silently ignored.
func (tr *Tracker) OnMainBranchCommit(commitID string) {
	files, err := tr.git.FilesChangedInCommit(commitID)
	if err != nil {
		tr.logger.Warn("failed to list files changed in commit", "commit", commitID, "error", err)
		return
	}

	info, err := tr.git.CommitInfo(commitID)
	if err != nil {
		tr.logger.Debug("commit info unavailable", "commit", commitID, "error", err)
		info = gitio.CommitInfo{}
	}

	for _, file := range files {
		if !tr.store.Has(file) {
			continue
		}
		content, err := tr.git.FileContentAtCommit(file, commitID)
		if err != nil {
			tr.logger.WithFile(file).Debug("content not retrievable for commit", "commit", commitID, "error", err)
			continue
		}

		tr.store.Mutate(file, false, func(t *FileTimeline) bool {
			tr.appendEventLocked(t, MainBranchEvent{
				Commit:      commitID,
				Timestamp:   tr.now(),
				Content:     content,
				Source:      SourceHuman,
				Message:     info.Message,
				DiffSummary: info.DiffSummary,
			})
			return true
		})
	}
}

// OnTaskWorktreeChange replaces the task's observed worktree content for a
// file. A task with no view for the file is a no-op, nothing persisted.
func (tr *Tracker) OnTaskWorktreeChange(taskID, file, content string) {
	tr.store.Mutate(file, true, func(t *FileTimeline) bool {
		view, ok := t.Views[taskID]
		if !ok {
			return false
		}
		view.Worktree = &WorktreeState{
			Content:    content,
			ModifiedAt: tr.now(),
		}
		return true
	})
}

// OnTaskMerged marks every view of the task merged and, where the merged
// file content is retrievable at commitID, appends a merged_task event to
// the file's history. Status changes even when content is not
// retrievable.
func (tr *Tracker) OnTaskMerged(taskID, commitID string) {
	log := tr.logger.WithTask(taskID)

	var diffSummary string
	if info, err := tr.git.CommitInfo(commitID); err == nil {
		diffSummary = info.DiffSummary
	}

	for _, file := range tr.GetFilesForTask(taskID) {
		content, contentErr := tr.git.FileContentAtCommit(file, commitID)

		tr.store.Mutate(file, false, func(t *FileTimeline) bool {
			view, ok := t.Views[taskID]
			if !ok {
				return false
			}
			if view.Status == StatusActive {
				view.Status = StatusMerged
				mergedAt := tr.now()
				view.MergedAt = &mergedAt
			} else {
				log.WithFile(file).Debug("view unchanged", "error", apperrors.ErrViewTerminal)
			}

			if contentErr == nil {
				tr.appendEventLocked(t, MainBranchEvent{
					Commit:         commitID,
					Timestamp:      tr.now(),
					Content:        content,
					Source:         SourceMergedTask,
					Message:        "Merged changes from task " + taskID,
					DiffSummary:    diffSummary,
					MergedFromTask: taskID,
				})
			}
			return true
		})
	}

	log.Info("task merged", "commit", commitID)
}

// OnTaskAbandoned marks every view of the task abandoned. Missing views
// are silently ignored.
func (tr *Tracker) OnTaskAbandoned(taskID string) {
	log := tr.logger.WithTask(taskID)

	for _, file := range tr.GetFilesForTask(taskID) {
		tr.store.Mutate(file, false, func(t *FileTimeline) bool {
			view, ok := t.Views[taskID]
			if !ok {
				return false
			}
			if view.Status != StatusActive {
				log.WithFile(file).Debug("view unchanged", "error", apperrors.ErrViewTerminal)
				return false
			}
			view.Status = StatusAbandoned
			return true
		})
	}

	log.Info("task abandoned")
}

// appendEventLocked appends an event and advances the drift counter of
// every other active view. Terminal views keep their frozen counters.
// Must be called under the path lock (inside Store.Mutate).
func (tr *Tracker) appendEventLocked(t *FileTimeline, ev MainBranchEvent) {
	t.AppendEvent(ev)
	for _, view := range t.Views {
		if view.Status != StatusActive {
			continue
		}
		if ev.MergedFromTask != "" && ev.MergedFromTask == view.TaskID {
			continue
		}
		view.CommitsBehind++
	}
}

// GetMergeContext assembles the bounded reconciliation input for one
// (task, file) pair. Returns false when no timeline exists for the file
// or the task has no view of it.
func (tr *Tracker) GetMergeContext(taskID, file string) (*MergeContext, bool) {
	snapshot, ok := tr.store.Snapshot(file)
	if !ok {
		return nil, false
	}
	view, ok := snapshot.View(taskID)
	if !ok {
		return nil, false
	}

	mc := &MergeContext{
		FilePath:           file,
		TaskID:             taskID,
		Intent:             view.Intent,
		BranchPoint:        view.BranchPoint,
		TotalCommitsBehind: view.CommitsBehind,
	}

	// Workspace content: last observed worktree state, else a live read.
	if view.Worktree != nil {
		mc.TaskWorktreeContent = view.Worktree.Content
	} else if content, err := tr.git.WorktreeFileContent(file); err == nil {
		mc.TaskWorktreeContent = content
	}

	mc.EvolutionSinceBranch = snapshot.EventsSince(view.BranchPoint.Commit)

	// Current main state: the newest recorded event wins; otherwise ask
	// git directly.
	if n := len(snapshot.MainBranchHistory); n > 0 {
		latest := snapshot.MainBranchHistory[n-1]
		mc.CurrentMainContent = latest.Content
		mc.CurrentMainCommit = latest.Commit
	} else {
		if commit, err := tr.git.CurrentMainCommit(); err == nil {
			mc.CurrentMainCommit = commit
			if content, err := tr.git.FileContentAtCommit(file, commit); err == nil {
				mc.CurrentMainContent = content
			}
		}
	}

	for _, other := range snapshot.ActiveViews() {
		if other.TaskID == taskID {
			continue
		}
		mc.OtherPendingTasks = append(mc.OtherPendingTasks, PendingTaskSummary{
			TaskID:            other.TaskID,
			Intent:            other.Intent.Text(),
			BranchPointCommit: other.BranchPoint.Commit,
			CommitsBehind:     other.CommitsBehind,
		})
	}
	mc.TotalPendingTasks = len(mc.OtherPendingTasks)

	return mc, true
}

// GetFilesForTask returns every file path the task has a view for,
// sorted.
func (tr *Tracker) GetFilesForTask(taskID string) []string {
	var files []string
	for _, path := range tr.store.Paths() {
		tr.store.Read(path, func(t *FileTimeline) {
			if _, ok := t.Views[taskID]; ok {
				files = append(files, path)
			}
		})
	}
	sort.Strings(files)
	return files
}

// GetPendingTasksForFile returns the active views on a file, sorted by
// task ID. A missing timeline yields an empty slice.
func (tr *Tracker) GetPendingTasksForFile(file string) []TaskFileView {
	var pending []TaskFileView
	tr.store.Read(file, func(t *FileTimeline) {
		for _, v := range t.ActiveViews() {
			pending = append(pending, *v)
		}
	})
	return pending
}

// GetTaskDrift returns commits-behind per file for the task's active
// views. Merged and abandoned views are excluded.
func (tr *Tracker) GetTaskDrift(taskID string) map[string]int {
	drift := make(map[string]int)
	for _, path := range tr.store.Paths() {
		tr.store.Read(path, func(t *FileTimeline) {
			if v, ok := t.Views[taskID]; ok && v.Status == StatusActive {
				drift[path] = v.CommitsBehind
			}
		})
	}
	return drift
}

// HasTimeline reports whether any task has touched the file.
func (tr *Tracker) HasTimeline(file string) bool {
	return tr.store.Has(file)
}

// GetTimeline returns a snapshot of the file's timeline.
func (tr *Tracker) GetTimeline(file string) (*FileTimeline, bool) {
	return tr.store.Snapshot(file)
}

// CaptureWorktreeState reads every changed file in the task's live
// workspace and records the content through the worktree-change path.
// Git failures abort silently; tracking must not destabilize the caller.
func (tr *Tracker) CaptureWorktreeState(taskID, workspaceRoot string) {
	log := tr.logger.WithTask(taskID)

	files, err := tr.git.ChangedFilesInWorktree(workspaceRoot)
	if err != nil {
		log.Debug("failed to list changed worktree files", "error", err)
		return
	}

	for _, file := range files {
		content, err := tr.git.WorktreeFileContent(file)
		if err != nil {
			log.WithFile(file).Debug("failed to read worktree file", "error", err)
			continue
		}
		tr.OnTaskWorktreeChange(taskID, file, content)
	}
}

// InitializeFromWorktree bootstraps tracking for a task that already has
// live changes but was never registered. Every step fails soft: an
// unresolvable branch point or an empty change set aborts without error.
func (tr *Tracker) InitializeFromWorktree(taskID, workspaceRoot string, intent *TaskIntent, targetBranch string) {
	log := tr.logger.WithTask(taskID)

	branchPoint, err := tr.git.BranchPoint(taskID)
	if err != nil {
		log.Debug("branch point unresolvable, skipping initialization", "error", err)
		return
	}

	files, err := tr.git.ChangedFilesInWorktree(workspaceRoot)
	if err != nil {
		log.Debug("failed to list changed worktree files", "error", err)
		return
	}
	if len(files) == 0 {
		return
	}

	tr.OnTaskStart(taskID, files, TaskStartOptions{
		BranchPointCommit: branchPoint,
		Intent:            intent,
	})

	// Commits-behind against the supplied or auto-detected target branch.
	target := targetBranch
	if target == "" {
		if detected, err := tr.git.TargetBranch(); err == nil {
			target = detected
		}
	}
	if target != "" {
		if behind, err := tr.git.CountCommitsBetween(branchPoint, target); err == nil {
			for _, file := range files {
				tr.store.Mutate(file, false, func(t *FileTimeline) bool {
					view, ok := t.Views[taskID]
					if !ok || view.Status != StatusActive {
						return false
					}
					if behind > view.CommitsBehind {
						view.CommitsBehind = behind
						return true
					}
					return false
				})
			}
		}
	}

	tr.CaptureWorktreeState(taskID, workspaceRoot)
}
