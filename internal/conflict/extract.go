package conflict

import (
	"regexp"
	"strings"
)

// fencedBlockRegex matches a fenced code block with an optional language
// tag on the opening fence.
var fencedBlockRegex = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*[ \t]*\r?\n(.*?)```")

// resolutionMarkerPattern builds the case-insensitive, whitespace-tolerant
// pattern for "--- <id> RESOLVED ---" followed by a fenced code block.
func resolutionMarkerPattern(id string) *regexp.Regexp {
	return regexp.MustCompile(
		"(?is)---\\s*" + regexp.QuoteMeta(id) + "\\s+RESOLVED\\s*---\\s*\r?\n\\s*```[a-zA-Z0-9_+-]*[ \t]*\r?\n(.*?)```",
	)
}

// ExtractConflictResolutions recovers per-conflict resolutions from a
// completion response. For each conflict it searches for the marker
// "--- <id> RESOLVED ---" followed by a fenced code block; the block body
// is the resolution. The language tag on the fence, if any, is ignored.
//
// When no markers are found at all and there is exactly one conflict, the
// first fenced code block anywhere in the response is used for that
// conflict. Conflicts with no discoverable resolution are absent from the
// returned map; whether that is a merge failure is the caller's call.
func ExtractConflictResolutions(response string, conflicts []Conflict, language string) map[string]string {
	resolutions := make(map[string]string)

	for _, c := range conflicts {
		m := resolutionMarkerPattern(c.ID).FindStringSubmatch(response)
		if m == nil {
			continue
		}
		resolutions[c.ID] = trimBlockBody(m[1])
	}

	if len(resolutions) == 0 && len(conflicts) == 1 {
		if m := fencedBlockRegex.FindStringSubmatch(response); m != nil {
			resolutions[conflicts[0].ID] = trimBlockBody(m[1])
		}
	}

	return resolutions
}

// FencedBlocks returns the bodies of every fenced code block in the
// text, in order.
func FencedBlocks(text string) []string {
	var blocks []string
	for _, m := range fencedBlockRegex.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, trimBlockBody(m[1]))
	}
	return blocks
}

// trimBlockBody strips the newline that separates the block body from the
// closing fence. Interior whitespace is preserved verbatim.
func trimBlockBody(body string) string {
	body = strings.TrimSuffix(body, "\n")
	return strings.TrimSuffix(body, "\r")
}
