package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/driftline/driftline/internal/timeline"
)

func testMergeContext() *timeline.MergeContext {
	return &timeline.MergeContext{
		FilePath: "src/main.go",
		TaskID:   "task-1",
		Intent:   timeline.TaskIntent{Title: "add retry logic"},
		BranchPoint: timeline.BranchPoint{
			Commit:    "abc123",
			Content:   "package main\n",
			Timestamp: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		EvolutionSinceBranch: []timeline.MainBranchEvent{
			{Commit: "def456", Source: timeline.SourceHuman, Message: "tighten validation", DiffSummary: "+3 -1"},
			{Commit: "ghi789", Source: timeline.SourceMergedTask, Message: "Merged changes from task task-9", MergedFromTask: "task-9"},
		},
		TaskWorktreeContent: "package main\n// my work\n",
		CurrentMainContent:  "package main\n// evolved\n",
		CurrentMainCommit:   "ghi789",
		OtherPendingTasks: []timeline.PendingTaskSummary{
			{TaskID: "task-2", Intent: "add caching", BranchPointCommit: "abc123", CommitsBehind: 2},
		},
		TotalCommitsBehind: 2,
		TotalPendingTasks:  1,
	}
}

func TestBuildTimelineMergePrompt(t *testing.T) {
	p, err := BuildTimelineMergePrompt(testMergeContext())
	if err != nil {
		t.Fatalf("BuildTimelineMergePrompt failed: %v", err)
	}

	wantFragments := []string{
		"src/main.go",
		"task-1",
		"add retry logic",
		"abc123",
		"def456",
		"tighten validation",
		"MERGED FROM task-9",
		"PRESERVE all changes from main branch",
		"Task task-2 (branched at abc123, 2 commits behind): add caching",
		"1 other task(s)",
		"package main\n// evolved\n",
		"package main\n// my work\n",
	}
	for _, frag := range wantFragments {
		if !strings.Contains(p, frag) {
			t.Errorf("prompt missing %q", frag)
		}
	}
}

func TestBuildTimelineMergePrompt_DiffSummaryFallback(t *testing.T) {
	mc := testMergeContext()
	mc.EvolutionSinceBranch = []timeline.MainBranchEvent{
		{Commit: "c1", Source: timeline.SourceHuman, Message: "no stats recorded"},
	}

	p, err := BuildTimelineMergePrompt(mc)
	if err != nil {
		t.Fatalf("BuildTimelineMergePrompt failed: %v", err)
	}
	if !strings.Contains(p, "See content evolution below") {
		t.Error("missing diff-summary fallback line")
	}
}

func TestBuildTimelineMergePrompt_NoEventsNoPending(t *testing.T) {
	mc := testMergeContext()
	mc.EvolutionSinceBranch = nil
	mc.OtherPendingTasks = nil
	mc.TotalPendingTasks = 0

	p, err := BuildTimelineMergePrompt(mc)
	if err != nil {
		t.Fatalf("BuildTimelineMergePrompt failed: %v", err)
	}
	if !strings.Contains(p, "No main branch changes recorded since the branch point.") {
		t.Error("missing empty-evolution line")
	}
	if !strings.Contains(p, "No other tasks are pending for this file") {
		t.Error("missing empty-pending line")
	}
}

func TestBuildTimelineMergePrompt_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*timeline.MergeContext) *timeline.MergeContext
		wantErr error
	}{
		{"nil context", func(mc *timeline.MergeContext) *timeline.MergeContext { return nil }, ErrNilContext},
		{"empty file path", func(mc *timeline.MergeContext) *timeline.MergeContext { mc.FilePath = ""; return mc }, ErrEmptyFilePath},
		{"empty task id", func(mc *timeline.MergeContext) *timeline.MergeContext { mc.TaskID = ""; return mc }, ErrEmptyTaskID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTimelineMergePrompt(tt.mutate(testMergeContext()))
			if err != tt.wantErr {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVariant_Valid(t *testing.T) {
	for _, v := range []Variant{VariantTimeline, VariantSimple, VariantConflictOnly} {
		if !v.Valid() {
			t.Errorf("%q should be valid", v)
		}
	}
	if Variant("bogus").Valid() {
		t.Error("unknown variant should be invalid")
	}
}
