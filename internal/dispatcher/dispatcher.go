// Package dispatcher fans translatable chunks out to a translation backend
// with bounded concurrency, validates each result structurally, and
// collects the translations that survived. Chunks whose translation failed
// or was structurally damaged are simply absent from the result map, so
// reconstruction falls back to their original text.
package dispatcher

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"latex-chunker/internal/document"
	"latex-chunker/internal/logger"
	"latex-chunker/internal/validator"
)

// Translator is the backend a dispatcher drives. OpenAIClient is the
// production implementation; tests substitute their own.
type Translator interface {
	TranslateChunk(ctx context.Context, chunk document.Chunk, targetLanguage string) (string, error)
}

// ProgressCallback reports per-chunk completion. done counts finished
// chunks regardless of outcome.
type ProgressCallback func(done, total int, chunkID string)

// ChunkFailure records why one chunk's translation was discarded.
type ChunkFailure struct {
	ChunkID string   `json:"chunk_id"`
	Reasons []string `json:"reasons"`
}

// Report summarizes one dispatch run.
type Report struct {
	JobID      string         `json:"job_id"`
	Total      int            `json:"total"`
	Translated int            `json:"translated"`
	Failed     []ChunkFailure `json:"failed,omitempty"`
}

// Dispatcher coordinates concurrent chunk translation.
type Dispatcher struct {
	translator     Translator
	concurrency    int
	targetLanguage string
}

// New creates a dispatcher. concurrency caps in-flight translation
// requests; values below one are raised to one.
func New(translator Translator, concurrency int, targetLanguage string) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		translator:     translator,
		concurrency:    concurrency,
		targetLanguage: targetLanguage,
	}
}

// Dispatch translates every translatable chunk of doc and returns the
// accepted translations keyed by chunk id, plus a report. A failed or
// rejected chunk never aborts the run and never appears in the map.
//
// Context cancellation stops new work; chunks already in flight finish and
// their results are kept.
func (d *Dispatcher) Dispatch(ctx context.Context, doc *document.LaTeXDocument, progress ProgressCallback) (map[string]string, *Report) {
	chunks := doc.TranslatableChunks()
	report := &Report{
		JobID: uuid.NewString(),
		Total: len(chunks),
	}

	logger.Info("dispatching chunks for translation",
		logger.String("jobID", report.JobID),
		logger.Int("chunks", len(chunks)),
		logger.Int("concurrency", d.concurrency))

	translations := make(map[string]string, len(chunks))
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		done int
	)
	sem := make(chan struct{}, d.concurrency)

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(chunk document.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()

			translated, reasons := d.translateOne(ctx, chunk)

			mu.Lock()
			done++
			current := done
			if reasons == nil {
				translations[chunk.ID] = translated
				report.Translated++
			} else {
				report.Failed = append(report.Failed, ChunkFailure{ChunkID: chunk.ID, Reasons: reasons})
			}
			mu.Unlock()

			if progress != nil {
				progress(current, len(chunks), chunk.ID)
			}
		}(chunk)
	}

	wg.Wait()

	logger.Info("dispatch finished",
		logger.String("jobID", report.JobID),
		logger.Int("translated", report.Translated),
		logger.Int("failed", len(report.Failed)))

	return translations, report
}

// translateOne runs one chunk through the backend and the structural
// checks. A nil reasons slice means the translation was accepted.
func (d *Dispatcher) translateOne(ctx context.Context, chunk document.Chunk) (string, []string) {
	translated, err := d.translator.TranslateChunk(ctx, chunk, d.targetLanguage)
	if err != nil {
		logger.Warn("chunk translation failed, keeping original",
			logger.String("chunkID", chunk.ID),
			logger.Err(err))
		return "", []string{err.Error()}
	}

	// An empty response for non-empty content is a dropped chunk, not a
	// translation; keep the original rather than blanking the document.
	if strings.TrimSpace(translated) == "" && strings.TrimSpace(chunk.Content) != "" {
		logger.Warn("chunk translation empty, keeping original",
			logger.String("chunkID", chunk.ID))
		return "", []string{"backend returned an empty translation"}
	}

	result := validator.Validate(chunk.Content, translated)
	validator.ValidatePlaceholders(chunk.Content, translated, result)
	if !result.Passed {
		logger.Warn("chunk translation rejected by validation",
			logger.String("chunkID", chunk.ID),
			logger.Int("errors", len(result.Errors)))
		return "", result.Errors
	}
	for _, w := range result.Warnings {
		logger.Debug("validation warning", logger.String("chunkID", chunk.ID), logger.String("warning", w))
	}

	return translated, nil
}
