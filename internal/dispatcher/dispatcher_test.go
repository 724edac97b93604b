package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"latex-chunker/internal/document"
	"latex-chunker/internal/types"
)

// ============================================================
// Test Helpers
// ============================================================

type translatorFunc func(ctx context.Context, chunk document.Chunk, targetLanguage string) (string, error)

func (f translatorFunc) TranslateChunk(ctx context.Context, chunk document.Chunk, targetLanguage string) (string, error) {
	return f(ctx, chunk, targetLanguage)
}

func testDoc(n int) *document.LaTeXDocument {
	doc := &document.LaTeXDocument{}
	for i := 0; i < n; i++ {
		doc.Chunks = append(doc.Chunks, document.Chunk{
			ID:      string(rune('a' + i)),
			Content: "chunk content long enough to look like a real paragraph",
			Context: types.ContextParagraph,
		})
	}
	return doc
}

// ============================================================
// Dispatch Behavior
// ============================================================

func TestDispatchTranslatesAllChunks(t *testing.T) {
	fake := translatorFunc(func(ctx context.Context, chunk document.Chunk, lang string) (string, error) {
		return "translated " + chunk.ID, nil
	})

	doc := testDoc(5)
	d := New(fake, 3, "Chinese")

	translations, report := d.Dispatch(context.Background(), doc, nil)

	if len(translations) != 5 {
		t.Fatalf("translations = %d, want 5", len(translations))
	}
	if report.Translated != 5 || len(report.Failed) != 0 {
		t.Errorf("report = %+v, want 5 translated", report)
	}
	if report.JobID == "" {
		t.Error("report has no job id")
	}
	if translations["a"] != "translated a" {
		t.Errorf("translations[a] = %q", translations["a"])
	}
}

func TestDispatchSkipsProtectedChunks(t *testing.T) {
	var calls int32
	fake := translatorFunc(func(ctx context.Context, chunk document.Chunk, lang string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return chunk.Content, nil
	})

	doc := testDoc(2)
	doc.Chunks = append(doc.Chunks, document.Chunk{
		ID:      "prot",
		Content: "[[CITE_1]]",
		Context: types.ContextProtected,
	})

	d := New(fake, 2, "Chinese")
	translations, report := d.Dispatch(context.Background(), doc, nil)

	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("backend calls = %d, want 2", calls)
	}
	if _, ok := translations["prot"]; ok {
		t.Error("protected chunk was translated")
	}
	if report.Total != 2 {
		t.Errorf("report.Total = %d, want 2", report.Total)
	}
}

func TestDispatchFailedChunkAbsentFromResult(t *testing.T) {
	fake := translatorFunc(func(ctx context.Context, chunk document.Chunk, lang string) (string, error) {
		if chunk.ID == "b" {
			return "", errors.New("backend exploded")
		}
		return chunk.Content, nil
	})

	doc := testDoc(3)
	d := New(fake, 2, "Chinese")
	translations, report := d.Dispatch(context.Background(), doc, nil)

	if _, ok := translations["b"]; ok {
		t.Error("failed chunk present in translations")
	}
	if len(translations) != 2 {
		t.Errorf("translations = %d, want 2", len(translations))
	}
	if len(report.Failed) != 1 || report.Failed[0].ChunkID != "b" {
		t.Errorf("report.Failed = %+v, want chunk b", report.Failed)
	}

	// Reconstruction falls back to the original content for the failed chunk.
	doc.BodyTemplate = document.ChunkPlaceholder("b")
	if got := doc.Reconstruct(translations); got != doc.Chunks[1].Content {
		t.Errorf("Reconstruct() = %q, want original content fallback", got)
	}
}

func TestDispatchDiscardsEmptyTranslation(t *testing.T) {
	fake := translatorFunc(func(ctx context.Context, chunk document.Chunk, lang string) (string, error) {
		return "  \n", nil
	})

	doc := testDoc(1)
	d := New(fake, 1, "Chinese")
	translations, report := d.Dispatch(context.Background(), doc, nil)

	if len(translations) != 0 {
		t.Error("empty translation was accepted")
	}
	if len(report.Failed) != 1 || len(report.Failed[0].Reasons) == 0 {
		t.Errorf("report.Failed = %+v, want one failure with a reason", report.Failed)
	}

	doc.BodyTemplate = document.ChunkPlaceholder("a")
	if got := doc.Reconstruct(translations); got != doc.Chunks[0].Content {
		t.Errorf("Reconstruct() = %q, want original content fallback", got)
	}
}

func TestDispatchRejectsStructurallyDamagedTranslation(t *testing.T) {
	source := `cites \cite{doe2020} here with plenty of surrounding words`
	fake := translatorFunc(func(ctx context.Context, chunk document.Chunk, lang string) (string, error) {
		return "translation that dropped the citation entirely", nil
	})

	doc := &document.LaTeXDocument{Chunks: []document.Chunk{
		{ID: "a", Content: source, Context: types.ContextParagraph},
	}}

	d := New(fake, 1, "Chinese")
	translations, report := d.Dispatch(context.Background(), doc, nil)

	if len(translations) != 0 {
		t.Error("damaged translation was accepted")
	}
	if len(report.Failed) != 1 {
		t.Fatalf("report.Failed = %d entries, want 1", len(report.Failed))
	}
	if len(report.Failed[0].Reasons) == 0 {
		t.Error("rejection carries no reasons")
	}
}

func TestDispatchHonorsConcurrencyLimit(t *testing.T) {
	const limit = 2
	var inflight, peak int32

	fake := translatorFunc(func(ctx context.Context, chunk document.Chunk, lang string) (string, error) {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
		return chunk.Content, nil
	})

	d := New(fake, limit, "Chinese")
	d.Dispatch(context.Background(), testDoc(8), nil)

	if got := atomic.LoadInt32(&peak); got > limit {
		t.Errorf("peak in-flight = %d, want <= %d", got, limit)
	}
}

func TestDispatchProgressCallback(t *testing.T) {
	fake := translatorFunc(func(ctx context.Context, chunk document.Chunk, lang string) (string, error) {
		return chunk.Content, nil
	})

	var mu sync.Mutex
	var calls []int
	d := New(fake, 2, "Chinese")
	d.Dispatch(context.Background(), testDoc(4), func(done, total int, chunkID string) {
		mu.Lock()
		defer mu.Unlock()
		if total != 4 {
			t.Errorf("progress total = %d, want 4", total)
		}
		calls = append(calls, done)
	})

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 4 {
		t.Errorf("progress calls = %d, want 4", len(calls))
	}
}

func TestDispatchCancelledContextStopsNewWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	fake := translatorFunc(func(ctx context.Context, chunk document.Chunk, lang string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return chunk.Content, nil
	})

	d := New(fake, 2, "Chinese")
	translations, _ := d.Dispatch(ctx, testDoc(6), nil)

	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("backend calls after cancellation = %d, want 0", calls)
	}
	if len(translations) != 0 {
		t.Errorf("translations = %d, want 0", len(translations))
	}
}
