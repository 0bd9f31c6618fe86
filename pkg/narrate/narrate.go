// Package narrate turns model output into plain prose suitable for speech.
//
// Sanitize removes hidden reasoning blocks emitted by reasoning models and
// strips markdown so that playback engines do not read symbols aloud.
package narrate

import (
	"regexp"
	"strings"
)

// maxPasses bounds the fixpoint loop in Sanitize.
const maxPasses = 64

var (
	reasoningBlock = regexp.MustCompile(`(?is)<(think|thinking|reasoning|reflection)\b[^>]*>.*?</(?:think|thinking|reasoning|reflection)\s*>`)
	orphanCloser   = regexp.MustCompile(`(?is)^.*</(?:think|thinking|reasoning|reflection)\s*>`)
	danglingOpener = regexp.MustCompile(`(?is)<(?:think|thinking|reasoning|reflection)\b[^>]*>.*$`)

	fencedCode = regexp.MustCompile("(?s)```[^\\n]*\\n.*?```")
	strayFence = regexp.MustCompile("```+")
	inlineCode = regexp.MustCompile("`([^`\\n]*)`")

	image = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	link  = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	html  = regexp.MustCompile(`</?[A-Za-z][^>\n]*>`)

	horizontalRule = regexp.MustCompile(`(?m)^[ \t]*(?:[-*_][ \t]*){3,}$`)
	tableSeparator = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t]*:?-{2,}:?[ \t]*(?:\|[ \t]*:?-{2,}:?[ \t]*)*\|?[ \t]*$\n?`)

	bold          = regexp.MustCompile(`(\*\*|__)(\S(?:.*?\S)?)(\*\*|__)`)
	italicStar    = regexp.MustCompile(`\*(\S(?:[^*\n]*?\S)?)\*`)
	italicUnder   = regexp.MustCompile(`(^|[^\w])_(\S(?:[^_\n]*?\S)?)_([^\w]|$)`)
	strikethrough = regexp.MustCompile(`~~(.*?)~~`)

	linePrefix  = regexp.MustCompile(`(?m)^[ \t]*(?:(?:#{1,6}|>|[-*+•]|\d{1,3}[.)])[ \t]+)+`)
	bareHeading = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]*$`)
	pipes       = regexp.MustCompile(`[ \t]*\|[ \t]*`)

	spaces        = regexp.MustCompile(`[ \t]+`)
	padding       = regexp.MustCompile(`(?m)^[ \t]+|[ \t]+$`)
	blankLineRuns = regexp.MustCompile(`\n{3,}`)
)

// Sanitize returns text with reasoning blocks and markdown markup removed.
// Applying it to its own output returns the output unchanged.
func Sanitize(text string) string {
	out := clean(text)
	for i := 0; i < maxPasses; i++ {
		next := clean(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")

	s = reasoningBlock.ReplaceAllString(s, "")
	s = orphanCloser.ReplaceAllString(s, "")
	s = danglingOpener.ReplaceAllString(s, "")

	s = fencedCode.ReplaceAllString(s, "")
	s = strayFence.ReplaceAllString(s, "")
	s = inlineCode.ReplaceAllString(s, "$1")

	s = image.ReplaceAllString(s, "$1")
	s = link.ReplaceAllString(s, "$1")
	s = html.ReplaceAllString(s, "")

	s = horizontalRule.ReplaceAllString(s, "")
	s = tableSeparator.ReplaceAllString(s, "")

	s = bold.ReplaceAllString(s, "$2")
	s = strikethrough.ReplaceAllString(s, "$1")
	s = italicStar.ReplaceAllString(s, "$1")
	s = italicUnder.ReplaceAllString(s, "$1$2$3")

	s = linePrefix.ReplaceAllString(s, "")
	s = bareHeading.ReplaceAllString(s, "")
	s = pipes.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "*", "")

	s = spaces.ReplaceAllString(s, " ")
	s = padding.ReplaceAllString(s, "")
	s = blankLineRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
