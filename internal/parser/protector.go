package parser

import (
	"regexp"
	"strings"

	"latex-chunker/internal/logger"
	"latex-chunker/internal/scanner"
	"latex-chunker/internal/types"
)

// Environments masked whole by default: display math, verbatim/listing
// blocks, graphics, floats, tables, and lists. A name present here is
// replaced by a single placeholder covering the entire \begin..\end span.
var defaultProtectedEnvironments = []string{
	"equation", "equation*",
	"align", "align*",
	"gather", "gather*",
	"multline", "multline*",
	"eqnarray", "eqnarray*",
	"split",
	"displaymath", "math",
	"array",
	"tikzpicture",
	"lstlisting",
	"verbatim", "verbatim*",
	"minted",
	"algorithm", "algorithmic", "algorithm2e",
	"figure", "figure*",
	"table", "table*",
	"tabular", "tabular*", "tabularx",
	"longtable", "longtable*",
	"itemize", "enumerate", "description",
}

var (
	authorHeadRE  = regexp.MustCompile(`\\author\b`)
	captionHeadRE = regexp.MustCompile(`\\caption\b`)
	beginTagRE    = regexp.MustCompile(`\\begin\{([^}]+)\}`)
)

// protectAuthorBlocks masks every \author{...} group, including nested
// braces (\and, \thanks, affiliation markup), as a single placeholder.
// Author names must survive byte for byte; translating them corrupts the
// paper's attribution.
func (s *session) protectAuthorBlocks(text string) string {
	var sb strings.Builder
	pos := 0

	for pos < len(text) {
		loc := authorHeadRE.FindStringIndex(text[pos:])
		if loc == nil {
			sb.WriteString(text[pos:])
			break
		}

		start := pos + loc[0]
		headEnd := pos + loc[1]
		sb.WriteString(text[pos:start])

		openBrace := headEnd
		for openBrace < len(text) && (text[openBrace] == ' ' || text[openBrace] == '\t') {
			openBrace++
		}
		if openBrace >= len(text) || text[openBrace] != '{' {
			sb.WriteString(text[start:headEnd])
			pos = headEnd
			continue
		}

		end, err := scanner.MatchBrace(text, openBrace+1)
		if err != nil {
			// Unbalanced author block: leave it as literal text.
			logger.Warn("unbalanced author block left unprotected", logger.Int("offset", start))
			sb.WriteString(text[start:headEnd])
			pos = headEnd
			continue
		}

		sb.WriteString(s.addProtected("AUTHOR", text[start:end]))
		pos = end
	}

	return sb.String()
}

// extractCaptions lifts the mandatory argument of every \caption command
// into a chunk before float environments are masked, so caption text stays
// translatable even though its surrounding figure or table does not. The
// optional short-caption argument is left untouched.
func (s *session) extractCaptions(text string) string {
	var sb strings.Builder
	pos := 0

	for pos < len(text) {
		loc := captionHeadRE.FindStringIndex(text[pos:])
		if loc == nil {
			sb.WriteString(text[pos:])
			break
		}

		start := pos + loc[0]
		headEnd := pos + loc[1]
		if headEnd < len(text) && text[headEnd] == '*' {
			headEnd++
		}
		sb.WriteString(text[pos:start])

		args, _, err := scanner.ScanArguments(text, headEnd)
		arg, ok := scanner.LastMandatory(args)
		if err != nil || !ok {
			sb.WriteString(text[start:headEnd])
			pos = headEnd
			continue
		}

		inner := arg.Inner(text)
		trimmed := strings.TrimSpace(inner)
		if trimmed == "" || strings.HasPrefix(trimmed, "[[") {
			sb.WriteString(text[start:arg.End])
			pos = arg.End
			continue
		}

		sb.WriteString(text[start : arg.Start+1])
		sb.WriteString(s.addChunk(inner, types.ContextCaption))
		sb.WriteString("}")
		pos = arg.End
	}

	return sb.String()
}

// protectEnvironments masks every protected \begin{env}..\end{env} span as
// one placeholder. Masking is outer-first and non-reentrant: once an outer
// environment is masked, nothing inside it is scanned again, so a tabular
// inside a table yields a single placeholder. An unbalanced environment is
// recoverable: the \begin tag stays literal and scanning resumes after it.
func (s *session) protectEnvironments(text string) string {
	var sb strings.Builder
	pos := 0

	for pos < len(text) {
		loc := beginTagRE.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			sb.WriteString(text[pos:])
			break
		}

		start := pos + loc[0]
		tagEnd := pos + loc[1]
		name := text[pos+loc[2] : pos+loc[3]]
		sb.WriteString(text[pos:start])

		if !s.protectedEnvs[name] {
			sb.WriteString(text[start:tagEnd])
			pos = tagEnd
			continue
		}

		end, err := scanner.MatchEnvironment(text, tagEnd, name)
		if err != nil {
			logger.Warn("unbalanced environment left unprotected",
				logger.String("environment", name),
				logger.Int("offset", start))
			sb.WriteString(text[start:tagEnd])
			pos = tagEnd
			continue
		}

		sb.WriteString(s.addProtected("ENV", text[start:end]))
		pos = end
	}

	return sb.String()
}

// protectInlineMath masks $...$, $$...$$, \(...\), and \[...\] spans with a
// single explicit left-to-right scan. Regex alternation cannot keep the four
// delimiter pairs from bleeding into each other, so the scan tracks them
// directly. An unterminated opener degrades to literal text.
func (s *session) protectInlineMath(text string) string {
	var sb strings.Builder
	i := 0

	for i < len(text) {
		c := text[i]

		if c == '\\' && i+1 < len(text) {
			next := text[i+1]
			if next == '(' || next == '[' {
				closer := "\\)"
				if next == '[' {
					closer = "\\]"
				}
				if end := strings.Index(text[i+2:], closer); end >= 0 {
					spanEnd := i + 2 + end + len(closer)
					sb.WriteString(s.addProtected("MATH", text[i:spanEnd]))
					i = spanEnd
					continue
				}
				logger.Warn("unterminated math delimiter left as text",
					logger.String("delimiter", string(c)+string(next)),
					logger.Int("offset", i))
			}
			// Escaped pair (\$, \\, \%), or an unmatched opener: copy both
			// bytes so the second is never rescanned as a delimiter.
			sb.WriteByte(c)
			sb.WriteByte(next)
			i += 2
			continue
		}

		if c == '$' {
			if i+1 < len(text) && text[i+1] == '$' {
				if end := strings.Index(text[i+2:], "$$"); end >= 0 {
					spanEnd := i + 2 + end + 2
					sb.WriteString(s.addProtected("MATH", text[i:spanEnd]))
					i = spanEnd
					continue
				}
				logger.Warn("unterminated display math left as text", logger.Int("offset", i))
				sb.WriteString("$$")
				i += 2
				continue
			}

			closer := -1
			for j := i + 1; j < len(text); j++ {
				if text[j] == '$' && !scanner.IsEscaped(text, j) {
					closer = j
					break
				}
			}
			if closer >= 0 {
				sb.WriteString(s.addProtected("MATH", text[i:closer+1]))
				i = closer + 1
				continue
			}
			logger.Warn("unterminated inline math left as text", logger.Int("offset", i))
		}

		sb.WriteByte(c)
		i++
	}

	return sb.String()
}

// protectedCommand describes one command whose invocation is masked whole.
type protectedCommand struct {
	kind      string
	mandatory int
	head      *regexp.Regexp
}

func command(name, kind string, mandatory int) protectedCommand {
	return protectedCommand{
		kind:      kind,
		mandatory: mandatory,
		head:      regexp.MustCompile(`\\` + name + `\b`),
	}
}

// protectedCommands lists the masked commands in processing order. The
// order is fixed so placeholder numbering is reproducible: all citations
// first, then references, and so on.
var protectedCommands = []protectedCommand{
	command("cite", "CITE", 1),
	command("ref", "REF", 1),
	command("eqref", "REF", 1),
	command("label", "LABEL", 1),
	command("url", "URL", 1),
	command("href", "HREF", 2),
	command("footnote", "FOOTNOTE", 1),
	command("includegraphics", "GRAPHICS", 1),
}

// protectCommands masks each listed command together with its optional and
// mandatory arguments. A head whose arguments cannot be captured (missing
// or unbalanced braces) stays literal.
func (s *session) protectCommands(text string) string {
	for _, cmd := range protectedCommands {
		text = s.protectCommand(text, cmd)
	}
	return text
}

func (s *session) protectCommand(text string, cmd protectedCommand) string {
	var sb strings.Builder
	pos := 0

	for pos < len(text) {
		loc := cmd.head.FindStringIndex(text[pos:])
		if loc == nil {
			sb.WriteString(text[pos:])
			break
		}

		start := pos + loc[0]
		headEnd := pos + loc[1]
		if headEnd < len(text) && text[headEnd] == '*' {
			headEnd++
		}
		sb.WriteString(text[pos:start])

		args, _, err := scanner.ScanArguments(text, headEnd)
		taken, spanEnd := takeArguments(args, cmd.mandatory)
		if err != nil && len(taken) < cmd.mandatory {
			logger.Warn("unbalanced command arguments left as text",
				logger.String("command", cmd.kind),
				logger.Int("offset", start))
			sb.WriteString(text[start:headEnd])
			pos = headEnd
			continue
		}
		if len(taken) < cmd.mandatory {
			sb.WriteString(text[start:headEnd])
			pos = headEnd
			continue
		}

		sb.WriteString(s.addProtected(cmd.kind, text[start:spanEnd]))
		pos = spanEnd
	}

	return sb.String()
}

// takeArguments selects leading arguments until the required number of
// mandatory groups has been consumed, returning the mandatory groups taken
// and the offset one past the last selected argument. Trailing groups that
// merely follow the command in the source are left alone.
func takeArguments(args []scanner.Argument, mandatory int) ([]scanner.Argument, int) {
	var taken []scanner.Argument
	end := 0
	for _, a := range args {
		end = a.End
		if !a.Optional {
			taken = append(taken, a)
			if len(taken) == mandatory {
				break
			}
		}
	}
	return taken, end
}

// protectTerms masks configured never-translate terms wherever they occur
// as whole words. Terms are processed in configuration order; each
// occurrence gets its own placeholder.
func (s *session) protectTerms(text string) string {
	for _, term := range s.cfg.PreserveTerms {
		if term == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			continue
		}

		var sb strings.Builder
		pos := 0
		for pos < len(text) {
			loc := re.FindStringIndex(text[pos:])
			if loc == nil {
				sb.WriteString(text[pos:])
				break
			}
			sb.WriteString(text[pos : pos+loc[0]])
			sb.WriteString(s.addProtected("TERM", text[pos+loc[0]:pos+loc[1]]))
			pos += loc[1]
		}
		text = sb.String()
	}
	return text
}
