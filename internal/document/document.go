// Package document holds the parsed representation of a LaTeX document and
// performs reconstruction: substituting chunk translations back into the
// body template and restoring every protected element.
package document

import (
	"strings"

	"latex-chunker/internal/logger"
	"latex-chunker/internal/types"
)

// Chunk is a unit of text designated for independent translation. IDs are
// unique document-wide and stable across repeated parses of byte-identical
// input, so external progress stores can key on them.
type Chunk struct {
	ID      string             `json:"id"`
	Content string             `json:"content"`
	Context types.ChunkContext `json:"context"`
	// PreservedElements maps placeholder tokens to the original LaTeX they
	// stand for. Every placeholder in the document belongs to exactly one
	// chunk's map.
	PreservedElements map[string]string `json:"preserved_elements,omitempty"`
}

// Placeholder returns the body-template token that marks where this chunk's
// text belongs.
func (c *Chunk) Placeholder() string {
	return ChunkPlaceholder(c.ID)
}

// ChunkPlaceholder formats the body-template token for a chunk id.
func ChunkPlaceholder(id string) string {
	return "{{CHUNK_" + id + "}}"
}

// restore replaces every occurrence of this chunk's preserved placeholders
// in text with the recorded originals.
func (c *Chunk) restore(text string) string {
	for placeholder, original := range c.PreservedElements {
		text = strings.ReplaceAll(text, placeholder, original)
	}
	return text
}

// LaTeXDocument is a parsed document: the preamble (verbatim except for an
// extracted \title argument), a body template whose translatable spans are
// chunk placeholders, and the ordered chunk list.
type LaTeXDocument struct {
	Preamble     string  `json:"preamble"`
	BodyTemplate string  `json:"body_template"`
	Chunks       []Chunk `json:"chunks"`
}

// TranslatableChunks returns the chunks that should be dispatched for
// translation, in document order.
func (d *LaTeXDocument) TranslatableChunks() []Chunk {
	var out []Chunk
	for _, c := range d.Chunks {
		if c.Context.Translatable() {
			out = append(out, c)
		}
	}
	return out
}

// maxRestoreIterations bounds the substitute/restore alternation during
// reconstruction. Placeholder nesting depth is bounded by the number of
// protection passes, so a small constant suffices; the cap only guards
// against pathological self-referencing input.
const maxRestoreIterations = 10

// Reconstruct rebuilds the full document text. translations maps chunk id to
// translated text; a chunk without an entry falls back to its original
// content, so Reconstruct(nil) reproduces the source document exactly.
//
// Substitution runs in two phases. Phase 1 replaces chunk placeholders in
// document order, using the translation when present. A protected span may
// hide chunk placeholders inside its stored original (a caption extracted
// from a float that was masked whole afterwards), so phase 1 alternates
// chunk substitution with restoration of protected-chunk placeholders until
// neither changes the text. Phase 2 then restores every remaining preserved
// element of every chunk, which also covers placeholders that arrived
// embedded in chunk content (inline math inside a caption).
//
// Reconstruct never fails: unknown placeholders are left untouched rather
// than guessed at.
func (d *LaTeXDocument) Reconstruct(translations map[string]string) string {
	result := d.Preamble + d.BodyTemplate

	// Phase 1: chunk substitution with exposure of nested placeholders.
	for iter := 0; iter < maxRestoreIterations; iter++ {
		changed := false

		for i := range d.Chunks {
			chunk := &d.Chunks[i]
			placeholder := chunk.Placeholder()
			if !strings.Contains(result, placeholder) {
				continue
			}
			text := chunk.Content
			if t, ok := translations[chunk.ID]; ok && chunk.Context.Translatable() {
				text = t
			}
			result = strings.ReplaceAll(result, placeholder, text)
			changed = true
		}

		for i := range d.Chunks {
			chunk := &d.Chunks[i]
			if chunk.Context != types.ContextProtected {
				continue
			}
			for placeholder, original := range chunk.PreservedElements {
				if strings.Contains(result, placeholder) {
					result = strings.ReplaceAll(result, placeholder, original)
					changed = true
				}
			}
		}

		if !changed {
			break
		}
	}

	// Phase 2: restore every remaining preserved element.
	for i := range d.Chunks {
		result = d.Chunks[i].restore(result)
	}

	logger.Debug("document reconstructed",
		logger.Int("chunks", len(d.Chunks)),
		logger.Int("translations", len(translations)),
		logger.Int("resultLength", len(result)))

	return result
}

// CheckPlaceholderUniqueness verifies that no placeholder token is recorded
// by more than one chunk. A collision means the session counter was misused
// and is a programming error, never something to repair silently.
func (d *LaTeXDocument) CheckPlaceholderUniqueness() error {
	seen := make(map[string]string)
	for _, c := range d.Chunks {
		for placeholder := range c.PreservedElements {
			if owner, dup := seen[placeholder]; dup {
				return types.NewAppErrorWithDetails(
					types.ErrPlaceholderCollision,
					"placeholder recorded by two chunks",
					placeholder+" owned by chunks "+owner+" and "+c.ID,
					nil,
				)
			}
			seen[placeholder] = c.ID
		}
	}
	return nil
}
