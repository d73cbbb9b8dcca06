// Package timeline implements the per-file event log of main-branch
// evolution, the per-task-per-file view bookkeeping, and merge context
// construction for reconciling task workspaces against main.
package timeline

import (
	"sort"
	"time"
)

// ViewStatus is the lifecycle state of a task's relationship to one file.
type ViewStatus string

const (
	// StatusActive means the task is still working; its view may drift.
	StatusActive ViewStatus = "active"
	// StatusMerged means the task's changes landed on main.
	StatusMerged ViewStatus = "merged"
	// StatusAbandoned means the task was dropped without merging.
	StatusAbandoned ViewStatus = "abandoned"
)

// Valid reports whether s is a known status.
func (s ViewStatus) Valid() bool {
	switch s {
	case StatusActive, StatusMerged, StatusAbandoned:
		return true
	}
	return false
}

// Terminal reports whether s is a final state. Terminal views never
// transition again and their drift counters are frozen.
func (s ViewStatus) Terminal() bool {
	return s == StatusMerged || s == StatusAbandoned
}

// EventSource identifies what produced a main-branch event.
type EventSource string

const (
	// SourceHuman is a commit made directly on main.
	SourceHuman EventSource = "human"
	// SourceMergedTask is a commit produced by another task merging in.
	SourceMergedTask EventSource = "merged_task"
)

// BranchPoint is the immutable snapshot of a file at the moment a task
// diverged from main.
type BranchPoint struct {
	Commit    string    `json:"commit"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TaskIntent describes what a task is trying to accomplish.
type TaskIntent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	FromPlan    bool   `json:"from_plan"`
}

// Text returns the best human-readable intent: the description, or the
// title when the description is empty.
func (i TaskIntent) Text() string {
	if i.Description != "" {
		return i.Description
	}
	return i.Title
}

// WorktreeState is the most recently observed content of a file inside a
// task's live workspace. It is replaced wholesale on every update.
type WorktreeState struct {
	Content    string    `json:"content"`
	ModifiedAt time.Time `json:"modified_at"`
}

// TaskFileView is one task's relationship to one file.
type TaskFileView struct {
	TaskID        string         `json:"task_id"`
	BranchPoint   BranchPoint    `json:"branch_point"`
	Intent        TaskIntent     `json:"intent"`
	Worktree      *WorktreeState `json:"worktree,omitempty"`
	CommitsBehind int            `json:"commits_behind"`
	Status        ViewStatus     `json:"status"`
	MergedAt      *time.Time     `json:"merged_at,omitempty"`
}

// MainBranchEvent is one recorded step in main's evolution of a file.
// Events are append-only; they are never reordered or mutated.
type MainBranchEvent struct {
	Commit         string      `json:"commit"`
	Timestamp      time.Time   `json:"timestamp"`
	Content        string      `json:"content"`
	Source         EventSource `json:"source"`
	Message        string      `json:"message"`
	DiffSummary    string      `json:"diff_summary,omitempty"`
	MergedFromTask string      `json:"merged_from_task,omitempty"`
}

// FileTimeline is the root aggregate for one file path: the ordered
// main-branch history plus every task's view of the file.
type FileTimeline struct {
	FilePath          string                   `json:"file_path"`
	MainBranchHistory []MainBranchEvent        `json:"main_branch_history"`
	Views             map[string]*TaskFileView `json:"views"`
}

// NewFileTimeline creates an empty timeline for a file path.
func NewFileTimeline(filePath string) *FileTimeline {
	return &FileTimeline{
		FilePath:          filePath,
		MainBranchHistory: make([]MainBranchEvent, 0),
		Views:             make(map[string]*TaskFileView),
	}
}

// AppendEvent records one more step of main's evolution. History is
// append-only; this is the only way it grows.
func (t *FileTimeline) AppendEvent(ev MainBranchEvent) {
	t.MainBranchHistory = append(t.MainBranchHistory, ev)
}

// View returns the task's view of this file, if one exists.
func (t *FileTimeline) View(taskID string) (*TaskFileView, bool) {
	v, ok := t.Views[taskID]
	return v, ok
}

// ActiveViews returns all views with status active, sorted by task ID for
// deterministic output.
func (t *FileTimeline) ActiveViews() []*TaskFileView {
	var active []*TaskFileView
	for _, v := range t.Views {
		if v.Status == StatusActive {
			active = append(active, v)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].TaskID < active[j].TaskID })
	return active
}

// EventsSince returns the slice of history appended after the given
// commit. If the commit does not appear in the history (the usual case
// for a branch point that predates tracking), the whole history is
// returned: everything recorded happened after the task diverged.
func (t *FileTimeline) EventsSince(commit string) []MainBranchEvent {
	idx := -1
	for i, ev := range t.MainBranchHistory {
		if ev.Commit == commit {
			idx = i
		}
	}

	events := t.MainBranchHistory[idx+1:]
	out := make([]MainBranchEvent, len(events))
	copy(out, events)
	return out
}

// Clone returns a deep copy of the timeline. Readers hold copies so that
// writers can keep mutating the original under the path lock.
func (t *FileTimeline) Clone() *FileTimeline {
	clone := &FileTimeline{
		FilePath:          t.FilePath,
		MainBranchHistory: make([]MainBranchEvent, len(t.MainBranchHistory)),
		Views:             make(map[string]*TaskFileView, len(t.Views)),
	}
	copy(clone.MainBranchHistory, t.MainBranchHistory)

	for id, v := range t.Views {
		vc := *v
		if v.Worktree != nil {
			wt := *v.Worktree
			vc.Worktree = &wt
		}
		if v.MergedAt != nil {
			ts := *v.MergedAt
			vc.MergedAt = &ts
		}
		clone.Views[id] = &vc
	}
	return clone
}

// PendingTaskSummary describes another active task touching the same file,
// as embedded in a merge context.
type PendingTaskSummary struct {
	TaskID            string
	Intent            string
	BranchPointCommit string
	CommitsBehind     int
}

// MergeContext is the ephemeral, per-attempt bundle of everything needed
// to ask for a reconciliation of one file for one task. It is constructed
// fresh per call and never persisted.
type MergeContext struct {
	FilePath string
	TaskID   string

	Intent      TaskIntent
	BranchPoint BranchPoint

	// EvolutionSinceBranch is every main-branch event after the task's
	// branch point, in application order.
	EvolutionSinceBranch []MainBranchEvent

	TaskWorktreeContent string
	CurrentMainContent  string
	CurrentMainCommit   string

	OtherPendingTasks []PendingTaskSummary

	TotalCommitsBehind int
	TotalPendingTasks  int
}
