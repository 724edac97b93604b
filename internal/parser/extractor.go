package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"latex-chunker/internal/scanner"
	"latex-chunker/internal/types"
)

// Environments whose body text is translated while the \begin/\end frame
// stays in the template.
var defaultTranslatableEnvironments = []string{
	"abstract", "quote", "quotation",
}

// sectionCommand is a sectioning-style command whose final mandatory brace
// argument holds translatable heading text.
type sectionCommand struct {
	context types.ChunkContext
	head    *regexp.Regexp
}

func heading(name string, context types.ChunkContext) sectionCommand {
	return sectionCommand{
		context: context,
		head:    regexp.MustCompile(`\\` + name + `\b`),
	}
}

// sectionCommands in processing order. Optional short-title arguments and
// the star form stay verbatim in the template; only the final mandatory
// argument is lifted.
var sectionCommands = []sectionCommand{
	heading("title", types.ContextTitle),
	heading("part", types.ContextSection),
	heading("chapter", types.ContextSection),
	heading("section", types.ContextSection),
	heading("subsection", types.ContextSection),
	heading("subsubsection", types.ContextSection),
	heading("paragraph", types.ContextSection),
	heading("subparagraph", types.ContextSection),
}

// extractSectionCommands lifts heading text into chunks. When body text
// follows the command on the same source line, that trailing text becomes
// its own paragraph chunk instead of being absorbed into the heading or
// silently skipped by the line-based paragraph pass.
func (s *session) extractSectionCommands(text string) string {
	for _, cmd := range sectionCommands {
		text = s.extractSectionCommand(text, cmd)
	}
	return text
}

func (s *session) extractSectionCommand(text string, cmd sectionCommand) string {
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
		arg, ok := scanner.LastMandatory(args)
		if err != nil || !ok {
			sb.WriteString(text[start:headEnd])
			pos = headEnd
			continue
		}

		inner := arg.Inner(text)
		trimmed := strings.TrimSpace(inner)
		if trimmed == "" || isPlaceholderOnly(trimmed) {
			sb.WriteString(text[start:arg.End])
			pos = arg.End
			continue
		}

		sb.WriteString(text[start : arg.Start+1])
		sb.WriteString(s.addChunk(inner, cmd.context))
		sb.WriteString("}")
		pos = arg.End

		// Heading commands swallow trailing same-line text from the
		// paragraph pass, so chunk it here as an independent paragraph.
		lineEnd := strings.IndexByte(text[pos:], '\n')
		if lineEnd == -1 {
			lineEnd = len(text) - pos
		}
		rest := text[pos : pos+lineEnd]
		if restTrimmed := strings.TrimSpace(rest); restTrimmed != "" && !isPlaceholderOnly(restTrimmed) {
			lead := len(rest) - len(strings.TrimLeft(rest, " \t"))
			sb.WriteString(rest[:lead])
			sb.WriteString(s.addChunk(rest[lead:], types.ContextParagraph))
			pos += lineEnd
		}
	}

	return sb.String()
}

// extractTitle lifts the \title argument found in the preamble. The body
// pass never sees preamble text, so the title gets its own scan.
func (s *session) extractTitle(preamble string) string {
	cmd := sectionCommands[0]
	return s.extractSectionCommand(preamble, cmd)
}

// extractTranslatableEnvironments replaces the body of each translatable
// environment with a chunk placeholder, keeping the \begin and \end tags in
// the template. The chunk holds the exact inner bytes so an untranslated
// reconstruction is byte-identical.
func (s *session) extractTranslatableEnvironments(text string) string {
	for _, env := range s.translatableEnvs {
		text = s.extractTranslatableEnvironment(text, env)
	}
	return text
}

func (s *session) extractTranslatableEnvironment(text, env string) string {
	beginTag := "\\begin{" + env + "}"
	context := types.ContextParagraph
	if env == "abstract" {
		context = types.ContextAbstract
	}

	var sb strings.Builder
	pos := 0

	for pos < len(text) {
		idx := strings.Index(text[pos:], beginTag)
		if idx == -1 {
			sb.WriteString(text[pos:])
			break
		}

		start := pos + idx
		innerStart := start + len(beginTag)
		sb.WriteString(text[pos:start])

		end, err := scanner.MatchEnvironment(text, innerStart, env)
		if err != nil {
			sb.WriteString(beginTag)
			pos = innerStart
			continue
		}

		endTag := "\\end{" + env + "}"
		innerEnd := end - len(endTag)
		inner := text[innerStart:innerEnd]

		sb.WriteString(beginTag)
		if strings.TrimSpace(inner) == "" || isPlaceholderOnly(strings.TrimSpace(inner)) {
			sb.WriteString(inner)
		} else {
			sb.WriteString(s.addChunk(inner, context))
		}
		sb.WriteString(endTag)
		pos = end
	}

	return sb.String()
}

// structuralPrefixes marks lines that delimit paragraphs: sectioning and
// environment boundaries, table rules, comments, and similar layout-only
// lines. They pass through the template verbatim.
var structuralPrefixes = []string{
	"\\begin{", "\\end{",
	"\\section", "\\subsection", "\\subsubsection",
	"\\chapter", "\\part",
	"\\title", "\\author", "\\date", "\\maketitle",
	"\\bibliographystyle", "\\bibliography",
	"\\tableofcontents", "\\listoffigures", "\\listoftables",
	"\\newpage", "\\clearpage", "\\pagebreak", "\\balance",
	"\\item", "\\caption", "\\centering", "\\label",
	"\\toprule", "\\midrule", "\\bottomrule", "\\hline",
	"\\appendix", "\\input", "\\include",
	"%", "[", "]", "&",
}

func isStructuralLine(trimmed string) bool {
	if trimmed == "" {
		return true
	}
	for _, p := range structuralPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return strings.HasSuffix(trimmed, "\\\\")
}

var (
	placeholderTokenRE = regexp.MustCompile(`\[\[[A-Z]+_\d+\]\]|\{\{CHUNK_[0-9a-f]+\}\}`)
	commandTokenRE     = regexp.MustCompile(`\\[a-zA-Z]+\*?(?:\[[^\]]*\])*(?:\{[^{}]*\})*`)
	syntaxCharRE       = regexp.MustCompile(`[{}\[\]\\~]`)
)

// cleanedLength measures the text that would actually reach a translator:
// placeholders, command invocations, and bare syntax characters are
// stripped before counting runes. Residual markup-only paragraphs stay in
// the template untouched instead of wasting a translation call.
func cleanedLength(text string) int {
	cleaned := placeholderTokenRE.ReplaceAllString(text, "")
	cleaned = commandTokenRE.ReplaceAllString(cleaned, "")
	cleaned = syntaxCharRE.ReplaceAllString(cleaned, "")
	return utf8.RuneCountInString(strings.TrimSpace(cleaned))
}

func isPlaceholderOnly(trimmed string) bool {
	return strings.TrimSpace(placeholderTokenRE.ReplaceAllString(trimmed, "")) == ""
}

// chunkParagraphs walks the body line by line, accumulating runs of
// non-structural lines into paragraphs separated by blank or structural
// lines. A paragraph becomes a chunk when its cleaned length exceeds the
// configured minimum; shorter runs stay verbatim in the template.
func (s *session) chunkParagraphs(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	var para []string

	flush := func() {
		if len(para) == 0 {
			return
		}
		paraText := strings.Join(para, "\n")
		para = para[:0]

		if cleanedLength(paraText) < s.minParagraph {
			out = append(out, paraText)
			return
		}
		out = append(out, s.addChunk(paraText, types.ContextParagraph))
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if isStructuralLine(trimmed) {
			flush()
			out = append(out, line)
			continue
		}
		para = append(para, line)
	}
	flush()

	return strings.Join(out, "\n")
}
