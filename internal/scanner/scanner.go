// Package scanner implements balanced-delimiter matching for LaTeX source
// text. It is the matching primitive every protection and extraction pass is
// built on: braces, brackets, and named \begin/\end environment pairs, with
// escaped delimiters skipped.
//
// All positions are byte offsets. LaTeX delimiters are ASCII, so byte-level
// scanning is safe on UTF-8 input.
package scanner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnbalanced is returned when the input ends before a matching closing
// delimiter is found. Callers decide whether that is fatal or whether the
// span degrades to literal text; the protection passes always choose the
// latter.
var ErrUnbalanced = errors.New("unbalanced delimiter")

// IsEscaped reports whether the character at pos is preceded by an odd
// number of backslashes.
func IsEscaped(text string, pos int) bool {
	count := 0
	for i := pos - 1; i >= 0 && text[i] == '\\'; i-- {
		count++
	}
	return count%2 == 1
}

// MatchDelimiter scans text starting at pos, which must point just past an
// already-consumed opening delimiter, and returns the offset one past the
// matching closer. Nested unescaped open/close pairs of the same kind are
// counted; escaped delimiters are ignored.
func MatchDelimiter(text string, pos int, open, close byte) (int, error) {
	depth := 1
	for i := pos; i < len(text); i++ {
		c := text[i]
		if c != open && c != close {
			continue
		}
		if IsEscaped(text, i) {
			continue
		}
		if c == open {
			depth++
		} else {
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("scanning for %q from offset %d: %w", string(close), pos, ErrUnbalanced)
}

// MatchBrace returns the offset one past the brace matching an opening brace
// that was consumed just before pos.
func MatchBrace(text string, pos int) (int, error) {
	return MatchDelimiter(text, pos, '{', '}')
}

// MatchBracket returns the offset one past the bracket matching an opening
// bracket that was consumed just before pos.
func MatchBracket(text string, pos int) (int, error) {
	return MatchDelimiter(text, pos, '[', ']')
}

// MatchEnvironment scans text starting at pos, which must point just past a
// \begin{name} tag, and returns the offset one past the matching \end{name}.
// Only tags carrying the identical environment name change the depth: a
// \begin{figure} is never closed by an \end{table}.
func MatchEnvironment(text string, pos int, name string) (int, error) {
	beginTag := "\\begin{" + name + "}"
	endTag := "\\end{" + name + "}"

	depth := 1
	searchPos := pos

	for depth > 0 && searchPos < len(text) {
		nextBegin := strings.Index(text[searchPos:], beginTag)
		nextEnd := strings.Index(text[searchPos:], endTag)

		if nextEnd == -1 {
			return 0, fmt.Errorf("scanning for \\end{%s} from offset %d: %w", name, pos, ErrUnbalanced)
		}

		if nextBegin != -1 && nextBegin < nextEnd {
			depth++
			searchPos += nextBegin + len(beginTag)
		} else {
			depth--
			if depth == 0 {
				return searchPos + nextEnd + len(endTag), nil
			}
			searchPos += nextEnd + len(endTag)
		}
	}

	return 0, fmt.Errorf("scanning for \\end{%s} from offset %d: %w", name, pos, ErrUnbalanced)
}

// Argument is one scanned command argument: an optional [..] or mandatory
// {..} group. Start and End delimit the group including its delimiters.
type Argument struct {
	Optional bool
	Start    int
	End      int
}

// Inner returns the argument text without its surrounding delimiters.
func (a Argument) Inner(text string) string {
	return text[a.Start+1 : a.End-1]
}

// ScanArguments reads the run of optional and mandatory argument groups
// starting at pos (just past a command head such as `\section` or
// `\section*`). Whitespace between groups is tolerated as long as it stays
// on one line; a blank line ends the argument list. Scanning stops at the
// first character that opens neither group kind, or at an unbalanced group,
// in which case the arguments scanned so far are returned along with the
// error.
func ScanArguments(text string, pos int) ([]Argument, int, error) {
	var args []Argument
	i := pos

	for i < len(text) {
		j := i
		newlines := 0
		for j < len(text) && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n') {
			if text[j] == '\n' {
				newlines++
			}
			j++
		}
		if newlines > 1 || j >= len(text) {
			break
		}

		switch text[j] {
		case '{':
			end, err := MatchBrace(text, j+1)
			if err != nil {
				return args, i, err
			}
			args = append(args, Argument{Optional: false, Start: j, End: end})
			i = end
		case '[':
			end, err := MatchBracket(text, j+1)
			if err != nil {
				return args, i, err
			}
			args = append(args, Argument{Optional: true, Start: j, End: end})
			i = end
		default:
			return args, i, nil
		}
	}

	return args, i, nil
}

// LastMandatory returns the last non-optional argument, or false when the
// list holds none. Section-style commands put the translatable text in the
// final brace group, after any short-title option.
func LastMandatory(args []Argument) (Argument, bool) {
	for i := len(args) - 1; i >= 0; i-- {
		if !args[i].Optional {
			return args[i], true
		}
	}
	return Argument{}, false
}
