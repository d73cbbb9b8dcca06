package conflict

import (
	"sort"
	"strings"
)

// ReassembleWithResolutions splices resolutions into the original merged
// text, replacing each conflict span. A conflict with no entry in
// resolutions falls back to its own worktree-side content: the task's
// work is never silently discarded in favor of main. Text outside
// conflict spans passes through unchanged, and the result carries no
// marker triads.
func ReassembleWithResolutions(original string, conflicts []Conflict, resolutions map[string]string) string {
	if len(conflicts) == 0 {
		return original
	}

	// Input order is not trusted; splice in offset order.
	ordered := make([]Conflict, len(conflicts))
	copy(ordered, conflicts)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	var sb strings.Builder
	pos := 0
	for _, c := range ordered {
		if c.Start < pos || c.End > len(original) {
			continue
		}
		sb.WriteString(original[pos:c.Start])

		replacement, ok := resolutions[c.ID]
		if !ok {
			replacement = c.WorktreeLines
		}
		sb.WriteString(replacement)

		// The span consumed the newline terminating the closing marker
		// line; restore it so surrounding lines stay separated. An empty
		// replacement deletes the region outright.
		if replacement != "" && !strings.HasSuffix(replacement, "\n") &&
			strings.HasSuffix(original[c.Start:c.End], "\n") {
			sb.WriteString("\n")
		}

		pos = c.End
	}
	sb.WriteString(original[pos:])
	return sb.String()
}
