package prompt

import (
	"fmt"
	"strings"

	"github.com/driftline/driftline/internal/timeline"
)

// BuildTimelineMergePrompt renders the full narrative request: the task's
// intent, the branch point, every recorded step of main's evolution since
// then, the other pending tasks, and the merge instructions.
func BuildTimelineMergePrompt(mc *timeline.MergeContext) (string, error) {
	if mc == nil {
		return "", ErrNilContext
	}
	if mc.FilePath == "" {
		return "", ErrEmptyFilePath
	}
	if mc.TaskID == "" {
		return "", ErrEmptyTaskID
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "# Merge Reconciliation: %s\n\n", mc.FilePath)
	fmt.Fprintf(&sb, "Task %s needs its changes to %s reconciled with everything that landed on the main branch since it diverged.\n\n", mc.TaskID, mc.FilePath)

	sb.WriteString("## Task Intent\n\n")
	intent := mc.Intent.Text()
	if intent == "" {
		intent = "(no recorded intent)"
	}
	sb.WriteString(intent)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "## Branch Point\n\nThe task diverged from main at commit %s.\n\n", mc.BranchPoint.Commit)
	writeFileSection(&sb, "File content at branch point", mc.BranchPoint.Content)

	writeEvolutionSection(&sb, mc.EvolutionSinceBranch)

	fmt.Fprintf(&sb, "## Current Main Branch Content (commit %s)\n\n", mc.CurrentMainCommit)
	writeFenced(&sb, mc.CurrentMainContent)

	sb.WriteString("## Task Workspace Content\n\n")
	writeFenced(&sb, mc.TaskWorktreeContent)

	writePendingTasksSection(&sb, mc.OtherPendingTasks)

	sb.WriteString("## Instructions\n\n")
	sb.WriteString("Produce the fully merged content of the file.\n")
	sb.WriteString("- PRESERVE all changes from main branch\n")
	sb.WriteString("- Integrate the task's workspace changes on top of them\n")
	fmt.Fprintf(&sb, "- Keep the result compatible with the %d other task(s) that will merge into this file afterward\n", mc.TotalPendingTasks)
	sb.WriteString("- Respond with the complete merged file in a single fenced code block\n")

	return sb.String(), nil
}

// writeEvolutionSection renders one entry per main-branch event.
func writeEvolutionSection(sb *strings.Builder, events []timeline.MainBranchEvent) {
	sb.WriteString("## Main Branch Evolution Since Branch Point\n\n")
	if len(events) == 0 {
		sb.WriteString("No main branch changes recorded since the branch point.\n\n")
		return
	}

	for _, ev := range events {
		label := "main branch"
		if ev.Source == timeline.SourceMergedTask {
			label = "MERGED FROM " + ev.MergedFromTask
		}
		fmt.Fprintf(sb, "- Commit %s (%s): %s\n", ev.Commit, label, ev.Message)
		if ev.DiffSummary != "" {
			indented := "    " + strings.ReplaceAll(ev.DiffSummary, "\n", "\n    ")
			sb.WriteString(indented)
			sb.WriteString("\n")
		} else {
			sb.WriteString("    See content evolution below\n")
		}
	}
	sb.WriteString("\n")

	// The latest content already appears in the current-main section; the
	// intermediate snapshots stay out of the prompt to hold the budget.
}

// writePendingTasksSection renders the other active tasks touching the
// same file.
func writePendingTasksSection(sb *strings.Builder, pending []timeline.PendingTaskSummary) {
	sb.WriteString("## Other Pending Tasks\n\n")
	if len(pending) == 0 {
		sb.WriteString("No other tasks are pending for this file\n\n")
		return
	}

	for _, p := range pending {
		intent := p.Intent
		if intent == "" {
			intent = "(no recorded intent)"
		}
		fmt.Fprintf(sb, "- Task %s (branched at %s, %d commits behind): %s\n",
			p.TaskID, p.BranchPointCommit, p.CommitsBehind, intent)
	}
	sb.WriteString("\n")
}

func writeFileSection(sb *strings.Builder, title, content string) {
	fmt.Fprintf(sb, "### %s\n\n", title)
	writeFenced(sb, content)
}

func writeFenced(sb *strings.Builder, content string) {
	sb.WriteString("```\n")
	sb.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n\n")
}
