package prompt

import (
	"fmt"
	"strings"

	"github.com/driftline/driftline/internal/conflict"
	"github.com/driftline/driftline/internal/timeline"
)

// BuildConflictOnlyPrompt renders only the unresolved conflict regions,
// each with its two sides and surrounding context, paired with the
// resolution placeholder the response protocol expects back.
func BuildConflictOnlyPrompt(conflicts []conflict.Conflict, language string, intent *timeline.TaskIntent) (string, error) {
	if len(conflicts) == 0 {
		return "", ErrNoConflicts
	}

	var sb strings.Builder

	sb.WriteString("# Resolve Merge Conflicts\n\n")
	fmt.Fprintf(&sb, "The following %s file regions could not be merged automatically. Resolve each conflict, preserving the intent of both sides.\n\n", language)

	if intent != nil {
		sb.WriteString("## FEATURE BRANCH INTENT\n\n")
		if intent.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", intent.Title)
		}
		if intent.Description != "" {
			fmt.Fprintf(&sb, "Description: %s\n", intent.Description)
		}
		fmt.Fprintf(&sb, "Summary: %s\n\n", intent.Text())
	}

	for _, c := range conflicts {
		fmt.Fprintf(&sb, "--- %s ---\n", c.ID)
		if c.ContextBefore != "" {
			sb.WriteString("Context before:\n")
			writeFencedLang(&sb, language, c.ContextBefore)
		}
		sb.WriteString("Main branch side:\n")
		writeFencedLang(&sb, language, c.MainLines)
		sb.WriteString("Feature branch side:\n")
		writeFencedLang(&sb, language, c.WorktreeLines)
		if c.ContextAfter != "" {
			sb.WriteString("Context after:\n")
			writeFencedLang(&sb, language, c.ContextAfter)
		}
		fmt.Fprintf(&sb, "Reply for this region with:\n\n--- %s RESOLVED ---\n", c.ID)
		fmt.Fprintf(&sb, "```%s\n<resolved content>\n```\n\n", language)
	}

	if len(conflicts) > 1 {
		sb.WriteString("(continue for each conflict)\n")
	}

	return sb.String(), nil
}
