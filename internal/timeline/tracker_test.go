package timeline

import (
	"testing"
	"time"

	apperrors "github.com/driftline/driftline/internal/errors"
	"github.com/driftline/driftline/internal/gitio"
)

// fakeGit is an in-memory Git collaborator. Content is keyed by
// commit then file path; files absent at a commit behave like the
// new-file case.
type fakeGit struct {
	mainCommit   string
	contents     map[string]map[string]string // commit -> path -> content
	changed      map[string][]string          // commit -> changed paths
	commitInfo   map[string]gitio.CommitInfo
	worktree     map[string]string // path -> live content
	branchPoints map[string]string // taskID -> commit
	behind       map[string]int    // "a..b" -> count
	target       string
}

func newFakeGit() *fakeGit {
	return &fakeGit{
		mainCommit:   "main-1",
		contents:     make(map[string]map[string]string),
		changed:      make(map[string][]string),
		commitInfo:   make(map[string]gitio.CommitInfo),
		worktree:     make(map[string]string),
		branchPoints: make(map[string]string),
		behind:       make(map[string]int),
		target:       "main",
	}
}

func (g *fakeGit) setContent(commit, path, content string) {
	if g.contents[commit] == nil {
		g.contents[commit] = make(map[string]string)
	}
	g.contents[commit][path] = content
}

func (g *fakeGit) CurrentMainCommit() (string, error) { return g.mainCommit, nil }

func (g *fakeGit) FileContentAtCommit(path, commit string) (string, error) {
	files, ok := g.contents[commit]
	if !ok {
		return "", apperrors.NewGitError("commit not found", apperrors.ErrCommitNotFound).WithRevision(commit)
	}
	content, ok := files[path]
	if !ok {
		return "", apperrors.NewGitError("file not in commit", apperrors.ErrFileNotInCommit).WithPath(path)
	}
	return content, nil
}

func (g *fakeGit) FilesChangedInCommit(commit string) ([]string, error) {
	return g.changed[commit], nil
}

func (g *fakeGit) CommitInfo(commit string) (gitio.CommitInfo, error) {
	return g.commitInfo[commit], nil
}

func (g *fakeGit) ChangedFilesInWorktree(root string) ([]string, error) {
	var paths []string
	for p := range g.worktree {
		paths = append(paths, p)
	}
	return paths, nil
}

func (g *fakeGit) WorktreeFileContent(path string) (string, error) {
	content, ok := g.worktree[path]
	if !ok {
		return "", apperrors.NewGitError("file not found", apperrors.ErrFileNotInCommit).WithPath(path)
	}
	return content, nil
}

func (g *fakeGit) BranchPoint(taskID string) (string, error) {
	bp, ok := g.branchPoints[taskID]
	if !ok {
		return "", apperrors.NewGitError("branch not found", apperrors.ErrBranchNotFound).WithRevision(taskID)
	}
	return bp, nil
}

func (g *fakeGit) CountCommitsBetween(a, b string) (int, error) {
	return g.behind[a+".."+b], nil
}

func (g *fakeGit) TargetBranch() (string, error) { return g.target, nil }

func newTestTracker(t *testing.T) (*Tracker, *fakeGit, *Store) {
	t.Helper()
	git := newFakeGit()
	store := NewStore(newMemPersist(), nil)
	tracker := NewTracker(store, git, nil)
	tracker.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	return tracker, git, store
}

func TestTracker_OnTaskStart(t *testing.T) {
	tracker, git, store := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "package a\n")

	tracker.OnTaskStart("task-1", []string{"src/a.go", "src/new.go"}, TaskStartOptions{
		Intent: &TaskIntent{Title: "add feature"},
	})

	snap, ok := store.Snapshot("src/a.go")
	if !ok {
		t.Fatal("timeline not created for src/a.go")
	}
	view := snap.Views["task-1"]
	if view == nil {
		t.Fatal("view not created")
	}
	if view.Status != StatusActive {
		t.Errorf("status = %q, want active", view.Status)
	}
	if view.BranchPoint.Commit != "main-1" {
		t.Errorf("branch point commit = %q, want main-1", view.BranchPoint.Commit)
	}
	if view.BranchPoint.Content != "package a\n" {
		t.Errorf("branch point content = %q", view.BranchPoint.Content)
	}
	if view.Intent.Title != "add feature" {
		t.Errorf("intent not recorded: %+v", view.Intent)
	}

	// New file: branch point content empty, tracking still established.
	snap, ok = store.Snapshot("src/new.go")
	if !ok {
		t.Fatal("timeline not created for new file")
	}
	if snap.Views["task-1"].BranchPoint.Content != "" {
		t.Error("new file should start from empty branch point content")
	}
}

func TestTracker_OnTaskStart_Idempotent(t *testing.T) {
	tracker, git, store := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "v1")

	tracker.OnTaskStart("task-1", []string{"src/a.go"}, TaskStartOptions{})

	git.mainCommit = "main-2"
	git.setContent("main-2", "src/a.go", "v2")
	tracker.OnTaskStart("task-1", []string{"src/a.go"}, TaskStartOptions{})

	snap, _ := store.Snapshot("src/a.go")
	if got := snap.Views["task-1"].BranchPoint.Commit; got != "main-1" {
		t.Errorf("repeated start must not move the branch point, got %q", got)
	}
}

func TestTracker_OnTaskStart_ExplicitBranchPoint(t *testing.T) {
	tracker, git, store := newTestTracker(t)
	git.setContent("old-5", "src/a.go", "old content")

	tracker.OnTaskStart("task-1", []string{"src/a.go"}, TaskStartOptions{
		BranchPointCommit: "old-5",
	})

	snap, _ := store.Snapshot("src/a.go")
	view := snap.Views["task-1"]
	if view.BranchPoint.Commit != "old-5" || view.BranchPoint.Content != "old content" {
		t.Errorf("unexpected branch point: %+v", view.BranchPoint)
	}
}

func TestTracker_OnMainBranchCommit(t *testing.T) {
	tracker, git, store := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "v1")
	tracker.OnTaskStart("task-1", []string{"src/a.go"}, TaskStartOptions{})

	git.changed["main-2"] = []string{"src/a.go", "src/untracked.go"}
	git.setContent("main-2", "src/a.go", "v2")
	git.setContent("main-2", "src/untracked.go", "x")
	git.commitInfo["main-2"] = gitio.CommitInfo{Message: "tighten validation", DiffSummary: "+3 -1"}

	tracker.OnMainBranchCommit("main-2")

	snap, _ := store.Snapshot("src/a.go")
	if len(snap.MainBranchHistory) != 1 {
		t.Fatalf("expected 1 event, got %d", len(snap.MainBranchHistory))
	}
	ev := snap.MainBranchHistory[0]
	if ev.Commit != "main-2" || ev.Content != "v2" || ev.Source != SourceHuman {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Message != "tighten validation" || ev.DiffSummary != "+3 -1" {
		t.Errorf("commit info not carried: %+v", ev)
	}
	if snap.Views["task-1"].CommitsBehind != 1 {
		t.Errorf("drift = %d, want 1", snap.Views["task-1"].CommitsBehind)
	}

	// Files no task ever touched stay untracked.
	if store.Has("src/untracked.go") {
		t.Error("untracked file gained a timeline")
	}
}

func TestTracker_OnMainBranchCommit_SkipsUnretrievableContent(t *testing.T) {
	tracker, git, store := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "v1")
	tracker.OnTaskStart("task-1", []string{"src/a.go"}, TaskStartOptions{})

	// Changed list names the file but content cannot be read at the commit.
	git.changed["main-2"] = []string{"src/a.go"}
	git.contents["main-2"] = map[string]string{}

	tracker.OnMainBranchCommit("main-2")

	snap, _ := store.Snapshot("src/a.go")
	if len(snap.MainBranchHistory) != 0 {
		t.Errorf("expected no event for unretrievable content, got %d", len(snap.MainBranchHistory))
	}
	if snap.Views["task-1"].CommitsBehind != 0 {
		t.Errorf("drift advanced without an event: %d", snap.Views["task-1"].CommitsBehind)
	}
}

func TestTracker_OnTaskWorktreeChange(t *testing.T) {
	tracker, git, store := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "v1")
	tracker.OnTaskStart("task-1", []string{"src/a.go"}, TaskStartOptions{})

	tracker.OnTaskWorktreeChange("task-1", "src/a.go", "v1 plus work")
	tracker.OnTaskWorktreeChange("task-1", "src/a.go", "v1 plus more work")

	snap, _ := store.Snapshot("src/a.go")
	wt := snap.Views["task-1"].Worktree
	if wt == nil {
		t.Fatal("worktree state not recorded")
	}
	if wt.Content != "v1 plus more work" {
		t.Errorf("worktree content not replaced wholesale: %q", wt.Content)
	}
}

func TestTracker_OnTaskWorktreeChange_NoViewIsNoop(t *testing.T) {
	tracker, _, store := newTestTracker(t)

	tracker.OnTaskWorktreeChange("ghost", "src/a.go", "content")

	snap, ok := store.Snapshot("src/a.go")
	if ok && len(snap.Views) != 0 {
		t.Errorf("worktree change for unknown task must not create a view: %+v", snap.Views)
	}
}

func TestTracker_OnTaskMerged(t *testing.T) {
	tracker, git, store := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "v1")
	tracker.OnTaskStart("task-1", []string{"src/a.go"}, TaskStartOptions{})
	tracker.OnTaskStart("task-2", []string{"src/a.go"}, TaskStartOptions{})

	git.setContent("merge-1", "src/a.go", "v1 merged")
	tracker.OnTaskMerged("task-1", "merge-1")

	snap, _ := store.Snapshot("src/a.go")

	merged := snap.Views["task-1"]
	if merged.Status != StatusMerged {
		t.Errorf("status = %q, want merged", merged.Status)
	}
	if merged.MergedAt == nil {
		t.Error("MergedAt not set")
	}

	if len(snap.MainBranchHistory) != 1 {
		t.Fatalf("expected 1 merged event, got %d", len(snap.MainBranchHistory))
	}
	ev := snap.MainBranchHistory[0]
	if ev.Source != SourceMergedTask || ev.MergedFromTask != "task-1" {
		t.Errorf("unexpected merged event: %+v", ev)
	}
	if ev.Message != "Merged changes from task task-1" {
		t.Errorf("unexpected message: %q", ev.Message)
	}

	// The merging task's own drift counter does not advance for its own
	// merge commit; the other active view's does.
	if merged.CommitsBehind != 0 {
		t.Errorf("merged task drift = %d, want 0", merged.CommitsBehind)
	}
	if snap.Views["task-2"].CommitsBehind != 1 {
		t.Errorf("other task drift = %d, want 1", snap.Views["task-2"].CommitsBehind)
	}
}

func TestTracker_OnTaskMerged_ContentUnretrievable(t *testing.T) {
	tracker, git, store := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "v1")
	tracker.OnTaskStart("task-1", []string{"src/a.go"}, TaskStartOptions{})

	// No content registered for the merge commit.
	tracker.OnTaskMerged("task-1", "merge-x")

	snap, _ := store.Snapshot("src/a.go")
	if snap.Views["task-1"].Status != StatusMerged {
		t.Error("status must change even when content is unretrievable")
	}
	if len(snap.MainBranchHistory) != 0 {
		t.Errorf("no event should be recorded without content, got %d", len(snap.MainBranchHistory))
	}
}

func TestTracker_TerminalViewStaysTerminal(t *testing.T) {
	tracker, git, store := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "v1")
	tracker.OnTaskStart("task-1", []string{"src/a.go"}, TaskStartOptions{})
	tracker.OnTaskAbandoned("task-1")

	// Late lifecycle notifications must not resurrect an abandoned view.
	git.setContent("merge-1", "src/a.go", "merged")
	tracker.OnTaskMerged("task-1", "merge-1")
	tracker.OnTaskAbandoned("task-1")

	snap, _ := store.Snapshot("src/a.go")
	view := snap.Views["task-1"]
	if view.Status != StatusAbandoned {
		t.Errorf("status = %q, want abandoned", view.Status)
	}
	if view.MergedAt != nil {
		t.Error("abandoned view must not gain a merge timestamp")
	}
}

func TestTracker_OnTaskAbandoned_FreezesDrift(t *testing.T) {
	tracker, git, store := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "v1")
	tracker.OnTaskStart("task-1", []string{"src/a.go"}, TaskStartOptions{})
	tracker.OnTaskStart("task-2", []string{"src/a.go"}, TaskStartOptions{})

	tracker.OnTaskAbandoned("task-1")

	git.changed["main-2"] = []string{"src/a.go"}
	git.setContent("main-2", "src/a.go", "v2")
	tracker.OnMainBranchCommit("main-2")

	snap, _ := store.Snapshot("src/a.go")
	if snap.Views["task-1"].Status != StatusAbandoned {
		t.Errorf("status = %q, want abandoned", snap.Views["task-1"].Status)
	}
	if snap.Views["task-1"].CommitsBehind != 0 {
		t.Errorf("abandoned view drift advanced: %d", snap.Views["task-1"].CommitsBehind)
	}
	if snap.Views["task-2"].CommitsBehind != 1 {
		t.Errorf("active view drift = %d, want 1", snap.Views["task-2"].CommitsBehind)
	}
}

func TestTracker_GetMergeContext(t *testing.T) {
	tracker, git, _ := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "base")
	tracker.OnTaskStart("task-1", []string{"src/a.go"}, TaskStartOptions{
		Intent: &TaskIntent{Title: "refactor parser"},
	})
	tracker.OnTaskStart("task-2", []string{"src/a.go"}, TaskStartOptions{
		Intent: &TaskIntent{Description: "add caching"},
	})
	tracker.OnTaskWorktreeChange("task-1", "src/a.go", "base plus my work")

	git.changed["main-2"] = []string{"src/a.go"}
	git.setContent("main-2", "src/a.go", "base evolved")
	git.commitInfo["main-2"] = gitio.CommitInfo{Message: "rework error paths"}
	tracker.OnMainBranchCommit("main-2")

	mc, ok := tracker.GetMergeContext("task-1", "src/a.go")
	if !ok {
		t.Fatal("expected merge context")
	}

	if mc.FilePath != "src/a.go" || mc.TaskID != "task-1" {
		t.Errorf("identity fields wrong: %+v", mc)
	}
	if mc.Intent.Title != "refactor parser" {
		t.Errorf("intent = %+v", mc.Intent)
	}
	if mc.BranchPoint.Commit != "main-1" || mc.BranchPoint.Content != "base" {
		t.Errorf("branch point = %+v", mc.BranchPoint)
	}
	if mc.TaskWorktreeContent != "base plus my work" {
		t.Errorf("worktree content = %q", mc.TaskWorktreeContent)
	}
	if len(mc.EvolutionSinceBranch) != 1 || mc.EvolutionSinceBranch[0].Commit != "main-2" {
		t.Errorf("evolution = %+v", mc.EvolutionSinceBranch)
	}
	if mc.CurrentMainCommit != "main-2" || mc.CurrentMainContent != "base evolved" {
		t.Errorf("current main = %q at %q", mc.CurrentMainContent, mc.CurrentMainCommit)
	}
	if mc.TotalCommitsBehind != 1 {
		t.Errorf("TotalCommitsBehind = %d, want 1", mc.TotalCommitsBehind)
	}
	if len(mc.OtherPendingTasks) != 1 || mc.OtherPendingTasks[0].TaskID != "task-2" {
		t.Fatalf("other pending tasks = %+v", mc.OtherPendingTasks)
	}
	if mc.OtherPendingTasks[0].Intent != "add caching" {
		t.Errorf("pending intent = %q", mc.OtherPendingTasks[0].Intent)
	}
	if mc.TotalPendingTasks != 1 {
		t.Errorf("TotalPendingTasks = %d, want 1", mc.TotalPendingTasks)
	}
}

func TestTracker_GetMergeContext_Missing(t *testing.T) {
	tracker, git, _ := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "base")
	tracker.OnTaskStart("task-1", []string{"src/a.go"}, TaskStartOptions{})

	if _, ok := tracker.GetMergeContext("task-1", "src/other.go"); ok {
		t.Error("expected no context for an untracked file")
	}
	if _, ok := tracker.GetMergeContext("ghost", "src/a.go"); ok {
		t.Error("expected no context for a task without a view")
	}
}

func TestTracker_GetMergeContext_NoEventsFallsBackToGit(t *testing.T) {
	tracker, git, _ := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "live main content")
	tracker.OnTaskStart("task-1", []string{"src/a.go"}, TaskStartOptions{})

	mc, ok := tracker.GetMergeContext("task-1", "src/a.go")
	if !ok {
		t.Fatal("expected merge context")
	}
	if mc.CurrentMainCommit != "main-1" || mc.CurrentMainContent != "live main content" {
		t.Errorf("expected live git fallback, got %q at %q", mc.CurrentMainContent, mc.CurrentMainCommit)
	}
	if len(mc.EvolutionSinceBranch) != 0 {
		t.Errorf("expected empty evolution, got %d events", len(mc.EvolutionSinceBranch))
	}
}

func TestTracker_GetFilesForTask(t *testing.T) {
	tracker, git, _ := newTestTracker(t)
	git.setContent("main-1", "src/b.go", "b")
	git.setContent("main-1", "src/a.go", "a")
	tracker.OnTaskStart("task-1", []string{"src/b.go", "src/a.go"}, TaskStartOptions{})
	tracker.OnTaskStart("task-2", []string{"src/a.go"}, TaskStartOptions{})

	files := tracker.GetFilesForTask("task-1")
	if len(files) != 2 || files[0] != "src/a.go" || files[1] != "src/b.go" {
		t.Errorf("unexpected files: %v", files)
	}
	if files := tracker.GetFilesForTask("ghost"); len(files) != 0 {
		t.Errorf("expected no files for unknown task, got %v", files)
	}
}

func TestTracker_GetTaskDrift_ActiveOnly(t *testing.T) {
	tracker, git, _ := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "a")
	git.setContent("main-1", "src/b.go", "b")
	tracker.OnTaskStart("task-1", []string{"src/a.go", "src/b.go"}, TaskStartOptions{})

	git.changed["main-2"] = []string{"src/a.go", "src/b.go"}
	git.setContent("main-2", "src/a.go", "a2")
	git.setContent("main-2", "src/b.go", "b2")
	tracker.OnMainBranchCommit("main-2")

	drift := tracker.GetTaskDrift("task-1")
	if drift["src/a.go"] != 1 || drift["src/b.go"] != 1 {
		t.Errorf("unexpected drift: %v", drift)
	}

	tracker.OnTaskMerged("task-1", "merge-1")
	if drift := tracker.GetTaskDrift("task-1"); len(drift) != 0 {
		t.Errorf("merged views must drop out of drift: %v", drift)
	}
}

func TestTracker_GetPendingTasksForFile(t *testing.T) {
	tracker, git, _ := newTestTracker(t)
	git.setContent("main-1", "src/a.go", "a")
	tracker.OnTaskStart("task-b", []string{"src/a.go"}, TaskStartOptions{})
	tracker.OnTaskStart("task-a", []string{"src/a.go"}, TaskStartOptions{})
	tracker.OnTaskAbandoned("task-b")

	pending := tracker.GetPendingTasksForFile("src/a.go")
	if len(pending) != 1 || pending[0].TaskID != "task-a" {
		t.Errorf("unexpected pending tasks: %+v", pending)
	}
	if pending := tracker.GetPendingTasksForFile("src/none.go"); len(pending) != 0 {
		t.Errorf("expected empty slice for untracked file, got %+v", pending)
	}
}

func TestTracker_InitializeFromWorktree(t *testing.T) {
	tracker, git, store := newTestTracker(t)
	git.branchPoints["task-1"] = "bp-1"
	git.setContent("bp-1", "src/a.go", "branch point content")
	git.worktree["src/a.go"] = "live content"
	git.behind["bp-1..main"] = 4

	tracker.InitializeFromWorktree("task-1", "/work/task-1", &TaskIntent{Title: "late start"}, "")

	snap, ok := store.Snapshot("src/a.go")
	if !ok {
		t.Fatal("timeline not bootstrapped")
	}
	view := snap.Views["task-1"]
	if view.BranchPoint.Commit != "bp-1" || view.BranchPoint.Content != "branch point content" {
		t.Errorf("branch point = %+v", view.BranchPoint)
	}
	if view.CommitsBehind != 4 {
		t.Errorf("drift = %d, want 4", view.CommitsBehind)
	}
	if view.Worktree == nil || view.Worktree.Content != "live content" {
		t.Errorf("worktree state = %+v", view.Worktree)
	}
}

func TestTracker_InitializeFromWorktree_NoBranchPoint(t *testing.T) {
	tracker, git, store := newTestTracker(t)
	git.worktree["src/a.go"] = "live content"

	tracker.InitializeFromWorktree("task-1", "/work/task-1", nil, "")

	if store.Has("src/a.go") {
		t.Error("initialization must abort when the branch point is unresolvable")
	}
}
