package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrNotReady is returned by Ask before any document was ingested.
	ErrNotReady = errors.New("no document has been ingested")
	// ErrNoText is returned when a PDF yields no extractable text.
	ErrNoText = errors.New("document contains no extractable text")
)

type Options struct {
	ChunkSize      int
	ChunkOverlap   int
	TopK           int
	ScoreThreshold float64
	// EmbedBatchSize bounds the number of chunks sent per embedding call.
	EmbedBatchSize int
}

// Assistant answers questions about the documents ingested into its store.
type Assistant struct {
	loader    Loader
	embedder  Embedder
	generator Generator
	store     VectorStore
	splitter  *RecursiveSplitter

	topK      int
	threshold float64
	batchSize int

	mu    sync.RWMutex
	ready bool
}

func NewAssistant(loader Loader, embedder Embedder, generator Generator, store VectorStore, opts Options) *Assistant {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 50
	}
	return &Assistant{
		loader:    loader,
		embedder:  embedder,
		generator: generator,
		store:     store,
		splitter:  NewRecursiveSplitter(opts.ChunkSize, opts.ChunkOverlap),
		topK:      opts.TopK,
		threshold: opts.ScoreThreshold,
		batchSize: opts.EmbedBatchSize,
	}
}

// Ingest loads, chunks, embeds and indexes the PDF at path.
func (a *Assistant) Ingest(ctx context.Context, path string) error {
	doc, err := a.loader.Load(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	chunks := a.chunk(doc)
	if len(chunks) == 0 {
		return ErrNoText
	}

	// Every batch is embedded before anything is indexed, so a failed
	// ingest leaves no chunks of this document behind.
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += a.batchSize {
		end := min(start+a.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		batchVectors, err := a.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(batchVectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(batchVectors), len(batch))
		}
		vectors = append(vectors, batchVectors...)
	}

	if err := a.store.Add(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}

	a.mu.Lock()
	a.ready = true
	a.mu.Unlock()

	return nil
}

func (a *Assistant) chunk(doc *Document) []Chunk {
	var chunks []Chunk
	for _, page := range doc.Pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		for _, text := range a.splitter.Split(page.Text) {
			idx := len(chunks)
			chunks = append(chunks, Chunk{
				ID:         fmt.Sprintf("%s:%d", doc.ID, idx),
				DocumentID: doc.ID,
				Source:     doc.Source,
				Page:       page.Number,
				Index:      idx,
				Text:       text,
			})
		}
	}
	return chunks
}

// Ask answers question from the chunks most similar to it.
func (a *Assistant) Ask(ctx context.Context, question string) (string, error) {
	if !a.Ready() {
		return "", ErrNotReady
	}

	vector, err := a.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return "", fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := a.store.Search(ctx, vector, a.topK, a.threshold)
	if err != nil {
		return "", fmt.Errorf("failed to search chunks: %w", err)
	}

	answer, err := a.generator.Generate(ctx, systemPrompt, buildPrompt(question, results))
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	return strings.TrimSpace(answer), nil
}

// Clear empties the store. Calling it on an empty assistant is a no-op.
func (a *Assistant) Clear(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	a.mu.Lock()
	a.ready = false
	a.mu.Unlock()
	return nil
}

// Ready reports whether a document has been ingested since the last Clear.
func (a *Assistant) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ready
}
