package parser

import (
	"strings"

	"latex-chunker/internal/config"
	"latex-chunker/internal/document"
	"latex-chunker/internal/logger"
)

const beginDocumentTag = "\\begin{document}"

// Parse partitions LaTeX source into a document model. Protection runs
// before extraction, in a fixed pass order, so placeholder numbering and
// chunk ids are reproducible for byte-identical input:
//
//  1. author blocks
//  2. captions (lifted before their floats are masked)
//  3. protected environments, outer-first
//  4. math spans
//  5. protected commands, in command order
//  6. never-translate terms
//  7. heading text, translatable environment bodies, paragraphs
//
// Parse is lenient about malformed input: an unbalanced construct stays
// literal text and parsing continues. The only hard failure is a
// placeholder collision, which signals a bug rather than bad input; every
// other document yields a model that reconstructs to the original bytes.
func Parse(source string, cfg *config.Config) (*document.LaTeXDocument, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := newSession(cfg)

	preamble, body := splitPreamble(source)
	preamble = s.extractTitle(preamble)

	body = s.protectAuthorBlocks(body)
	body = s.extractCaptions(body)
	body = s.protectEnvironments(body)
	body = s.protectInlineMath(body)
	body = s.protectCommands(body)
	body = s.protectTerms(body)

	body = s.extractSectionCommands(body)
	body = s.extractTranslatableEnvironments(body)
	body = s.chunkParagraphs(body)

	doc := &document.LaTeXDocument{
		Preamble:     preamble,
		BodyTemplate: body,
		Chunks:       s.chunks,
	}

	if err := doc.CheckPlaceholderUniqueness(); err != nil {
		return nil, err
	}

	logger.Info("document parsed",
		logger.Int("sourceLength", len(source)),
		logger.Int("chunks", len(doc.Chunks)),
		logger.Int("translatable", len(doc.TranslatableChunks())),
		logger.Int("placeholders", s.counter))

	return doc, nil
}

// splitPreamble divides source at the end of \begin{document}. Fragments
// without the tag are treated as all body, so snippets parse the same way
// full documents do.
func splitPreamble(source string) (preamble, body string) {
	idx := strings.Index(source, beginDocumentTag)
	if idx == -1 {
		return "", source
	}
	cut := idx + len(beginDocumentTag)
	return source[:cut], source[cut:]
}
