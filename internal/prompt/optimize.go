package prompt

import (
	"fmt"
	"unicode/utf8"

	"github.com/driftline/driftline/internal/timeline"
)

// OptimizeForLength applies the length/event budget to a merge context,
// mutating and returning the same object.
//
// Each of the three file bodies (branch point, task worktree, current
// main) is independently capped at maxContentChars; the excess is
// replaced by an omission marker appended to the retained head. The
// evolution list is capped at maxEvents by keeping the first and last
// halves and collapsing the middle into one placeholder event whose
// message carries the omitted count. Both caps are exclusive: content or
// lists exactly at the cap are untouched. A cap of zero disables that
// budget.
func OptimizeForLength(mc *timeline.MergeContext, maxContentChars, maxEvents int) *timeline.MergeContext {
	if mc == nil {
		return nil
	}

	if maxContentChars > 0 {
		mc.BranchPoint.Content = capContent(mc.BranchPoint.Content, maxContentChars)
		mc.TaskWorktreeContent = capContent(mc.TaskWorktreeContent, maxContentChars)
		mc.CurrentMainContent = capContent(mc.CurrentMainContent, maxContentChars)
	}

	if maxEvents > 0 && len(mc.EvolutionSinceBranch) > maxEvents {
		mc.EvolutionSinceBranch = capEvents(mc.EvolutionSinceBranch, maxEvents)
	}

	return mc
}

// capContent truncates content over the cap, appending an omission marker
// to the retained head. Content at or under the cap is returned as-is.
// The cut never lands inside a multi-byte rune.
func capContent(content string, max int) string {
	if len(content) <= max {
		return content
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	omitted := utf8.RuneCountInString(content[cut:])
	return content[:cut] + fmt.Sprintf("…%d chars omitted…", omitted)
}

// capEvents keeps the first and last halves of the list and inserts one
// synthetic placeholder event between them. Callers guarantee
// len(events) > max > 0.
func capEvents(events []timeline.MainBranchEvent, max int) []timeline.MainBranchEvent {
	head := max / 2
	tail := max - head
	omitted := len(events) - head - tail

	out := make([]timeline.MainBranchEvent, 0, max+1)
	out = append(out, events[:head]...)
	out = append(out, timeline.MainBranchEvent{
		Commit:  "...",
		Source:  timeline.SourceHuman,
		Message: fmt.Sprintf("%d commits omitted", omitted),
	})
	out = append(out, events[len(events)-tail:]...)
	return out
}
