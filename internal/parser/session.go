// Package parser turns raw LaTeX source into a document model: protected
// constructs become placeholders, translatable spans become chunks, and the
// remaining text becomes the body template.
package parser

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"latex-chunker/internal/config"
	"latex-chunker/internal/document"
	"latex-chunker/internal/types"
)

// session carries the mutable state of one parse call: the document-scoped
// placeholder counter and the chunk list under construction. A session is
// used by exactly one Parse invocation; independent documents parse
// concurrently with independent sessions and no shared state.
type session struct {
	cfg *config.Config

	counter int
	chunks  []document.Chunk

	protectedEnvs    map[string]bool
	translatableEnvs []string
	minParagraph     int
}

func newSession(cfg *config.Config) *session {
	s := &session{
		cfg:          cfg,
		minParagraph: cfg.MinParagraphLength,
	}
	if s.minParagraph <= 0 {
		s.minParagraph = config.DefaultMinParagraphLength
	}

	s.protectedEnvs = make(map[string]bool, len(defaultProtectedEnvironments))
	for _, env := range defaultProtectedEnvironments {
		s.protectedEnvs[env] = true
	}
	for _, env := range cfg.ExtraProtectedEnvironments {
		s.protectedEnvs[env] = true
	}

	s.translatableEnvs = append(s.translatableEnvs, defaultTranslatableEnvironments...)
	for _, env := range cfg.ExtraTranslatableEnvironments {
		s.translatableEnvs = append(s.translatableEnvs, env)
	}
	// An environment marked translatable wins over the protected set.
	for _, env := range s.translatableEnvs {
		delete(s.protectedEnvs, env)
	}

	return s
}

// nextPlaceholder mints the next [[KIND_n]] token. The counter is monotonic
// for the whole document, never per chunk, so tokens cannot collide.
func (s *session) nextPlaceholder(kind string) string {
	s.counter++
	return fmt.Sprintf("[[%s_%d]]", kind, s.counter)
}

// chunkID derives a stable chunk id from the chunk's ordinal, context, and
// content. Byte-identical input yields byte-identical ids run over run,
// which is what external resumable-translation stores key on; the ordinal
// keeps repeated content unique within a document.
func (s *session) chunkID(context types.ChunkContext, content string) string {
	h := blake3.New()
	fmt.Fprintf(h, "%d|%s|", len(s.chunks), context)
	h.WriteString(content)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}

// addChunk records a translatable chunk and returns its body-template
// placeholder.
func (s *session) addChunk(content string, context types.ChunkContext) string {
	id := s.chunkID(context, content)
	s.chunks = append(s.chunks, document.Chunk{
		ID:      id,
		Content: content,
		Context: context,
	})
	return document.ChunkPlaceholder(id)
}

// addProtected records a protected span under a fresh placeholder and
// returns the placeholder token that replaces it in the text.
func (s *session) addProtected(kind, original string) string {
	placeholder := s.nextPlaceholder(kind)
	id := s.chunkID(types.ContextProtected, placeholder)
	s.chunks = append(s.chunks, document.Chunk{
		ID:      id,
		Content: placeholder,
		Context: types.ContextProtected,
		PreservedElements: map[string]string{
			placeholder: original,
		},
	})
	return placeholder
}
