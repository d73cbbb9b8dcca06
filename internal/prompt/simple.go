package prompt

import (
	"fmt"
	"strings"

	"github.com/driftline/driftline/internal/timeline"
)

// SimpleInput carries the three full file bodies of a classic three-way
// merge request.
type SimpleInput struct {
	// MainContent is the file as it stands on main.
	MainContent string
	// WorktreeContent is the file as the task's workspace has it.
	WorktreeContent string
	// AncestorContent is the file at the common ancestor. HasAncestor is
	// false for the new-file case.
	AncestorContent string
	HasAncestor     bool

	// Language is the target language of the file, for the code fences.
	Language string
	// TaskName identifies the task or spec being merged.
	TaskName string
	// Intent optionally describes the feature branch's purpose.
	Intent *timeline.TaskIntent
}

// BuildSimpleMergePrompt renders the three-body request: main, worktree,
// and common ancestor in full, with an optional feature-intent section.
func BuildSimpleMergePrompt(in SimpleInput) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Three-Way Merge: %s\n\n", in.TaskName)
	fmt.Fprintf(&sb, "Merge the feature branch version of this %s file with the main branch version.\n\n", in.Language)

	if in.Intent != nil {
		sb.WriteString("## FEATURE BRANCH INTENT\n\n")
		if in.Intent.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", in.Intent.Title)
		}
		if in.Intent.Description != "" {
			fmt.Fprintf(&sb, "Description: %s\n", in.Intent.Description)
		}
		fmt.Fprintf(&sb, "Summary: %s\n\n", in.Intent.Text())
	}

	sb.WriteString("## Main Branch Version\n\n")
	writeFencedLang(&sb, in.Language, in.MainContent)

	sb.WriteString("## Feature Branch Version\n\n")
	writeFencedLang(&sb, in.Language, in.WorktreeContent)

	sb.WriteString("## Common Ancestor Version\n\n")
	if in.HasAncestor {
		writeFencedLang(&sb, in.Language, in.AncestorContent)
	} else {
		sb.WriteString("(File did not exist in common ancestor)\n\n")
	}

	sb.WriteString("## Instructions\n\n")
	sb.WriteString("Produce the merged file, preserving the intent of both versions.\n")
	sb.WriteString("PRESERVE all changes from main branch while integrating the feature branch changes.\n")
	fmt.Fprintf(&sb, "Respond with the complete merged file in a single fenced %s code block.\n", in.Language)

	return sb.String()
}

func writeFencedLang(sb *strings.Builder, lang, content string) {
	fmt.Fprintf(sb, "```%s\n", lang)
	sb.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n\n")
}
