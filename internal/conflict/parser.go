// Package conflict implements the conflict-marker codec: parsing
// three-way conflict markers out of merged text, splicing resolutions
// back in, and recovering resolutions from a completion response.
package conflict

import (
	"fmt"
	"strings"
)

// Marker prefixes of the standard three-way conflict triad. Each appears
// on its own line.
const (
	markerOurs      = "<<<<<<<"
	markerSeparator = "======="
	markerTheirs    = ">>>>>>>"
)

// DefaultContextLines is how many lines of surrounding context a parsed
// conflict carries on each side.
const DefaultContextLines = 3

// Conflict is one unresolved region parsed out of merged text.
type Conflict struct {
	// ID is a 1-based sequential identifier of the form "CONFLICT_<n>".
	ID string
	// Start and End are byte offsets of the conflict block (markers
	// included) in the original text. When the block ends with a
	// newline, End covers it.
	Start int
	End   int
	// MainLines is the main-branch side of the region; WorktreeLines the
	// task's side. Either may legitimately be empty.
	MainLines     string
	WorktreeLines string
	// ContextBefore and ContextAfter are up to DefaultContextLines lines
	// surrounding the block, for conflict-only prompts.
	ContextBefore string
	ContextAfter  string
}

// line is one line of input with its byte offsets.
type line struct {
	text  string // without trailing newline
	start int
	end   int // offset just past the line's newline (or EOF)
}

func splitLines(text string) []line {
	var lines []line
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, line{text: text[start:i], start: start, end: i + 1})
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, line{text: text[start:], start: start, end: len(text)})
	}
	return lines
}

// ParseConflictMarkers scans text for conflict marker triads and returns
// the conflicts plus the clean sections strictly between them (and before
// the first / after the last). Text with no complete triad yields zero
// conflicts and one clean section equal to the whole input. The parser
// never fails: malformed or truncated markers are treated as plain text.
func ParseConflictMarkers(text string) ([]Conflict, []string) {
	return ParseConflictMarkersContext(text, DefaultContextLines)
}

// ParseConflictMarkersContext is ParseConflictMarkers with a configurable
// number of context lines per side.
func ParseConflictMarkersContext(text string, contextLines int) ([]Conflict, []string) {
	if contextLines < 0 {
		contextLines = DefaultContextLines
	}
	lines := splitLines(text)

	var conflicts []Conflict
	i := 0
	for i < len(lines) {
		if !strings.HasPrefix(lines[i].text, markerOurs) {
			i++
			continue
		}

		sep := -1
		for j := i + 1; j < len(lines); j++ {
			if lines[j].text == markerSeparator {
				sep = j
				break
			}
		}
		if sep == -1 {
			break
		}

		end := -1
		for j := sep + 1; j < len(lines); j++ {
			if strings.HasPrefix(lines[j].text, markerTheirs) {
				end = j
				break
			}
		}
		if end == -1 {
			break
		}

		c := Conflict{
			ID:            fmt.Sprintf("CONFLICT_%d", len(conflicts)+1),
			Start:         lines[i].start,
			End:           lines[end].end,
			MainLines:     joinLineTexts(lines[i+1 : sep]),
			WorktreeLines: joinLineTexts(lines[sep+1 : end]),
			ContextBefore: contextBefore(lines, i, contextLines),
			ContextAfter:  contextAfter(lines, end, contextLines),
		}
		conflicts = append(conflicts, c)
		i = end + 1
	}

	return conflicts, cleanSections(text, conflicts)
}

// cleanSections slices the text segments outside the conflict spans, in
// order. Zero conflicts yields the whole input as one section.
func cleanSections(text string, conflicts []Conflict) []string {
	if len(conflicts) == 0 {
		return []string{text}
	}

	var sections []string
	pos := 0
	for _, c := range conflicts {
		sections = append(sections, text[pos:c.Start])
		pos = c.End
	}
	sections = append(sections, text[pos:])
	return sections
}

func joinLineTexts(lines []line) string {
	texts := make([]string, len(lines))
	for i, l := range lines {
		texts[i] = l.text
	}
	return strings.Join(texts, "\n")
}

func contextBefore(lines []line, idx, n int) string {
	from := idx - n
	if from < 0 {
		from = 0
	}
	return joinLineTexts(lines[from:idx])
}

func contextAfter(lines []line, idx, n int) string {
	to := idx + 1 + n
	if to > len(lines) {
		to = len(lines)
	}
	return joinLineTexts(lines[idx+1 : to])
}
