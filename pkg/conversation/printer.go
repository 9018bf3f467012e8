package conversation

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"
)

const shownContentLength = 60

var whitespaceRun = regexp.MustCompile(`\s+`)

// Fprint writes a one-line summary per turn: index, first letter of the role
// and the content with long texts abbreviated in the middle.
func (l *Log) Fprint(w io.Writer) error {
	for i, t := range l.turns {
		role, _ := utf8.DecodeRuneInString(t.Role)
		if role == utf8.RuneError {
			role = '?'
		}
		if _, err := fmt.Fprintf(w, "%3d: (%c) %s\n", i, role, abbreviate(t.Content)); err != nil {
			return err
		}
	}
	return nil
}

func (l *Log) String() string {
	var sb strings.Builder
	_ = l.Fprint(&sb)
	return sb.String()
}

func abbreviate(content string) string {
	runes := []rune(content)
	if len(runes) <= shownContentLength {
		return whitespaceRun.ReplaceAllString(content, " ")
	}
	trimmed := []rune(strings.TrimSpace(content))
	half := shownContentLength / 2
	if len(trimmed) <= shownContentLength {
		return whitespaceRun.ReplaceAllString(string(trimmed), " ")
	}
	head := whitespaceRun.ReplaceAllString(string(trimmed[:half]), " ")
	tail := whitespaceRun.ReplaceAllString(string(trimmed[len(trimmed)-half:]), " ")
	return head + " ... " + tail
}
