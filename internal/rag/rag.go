// Package rag implements the document assistant: PDF pages are split into
// overlapping chunks, embedded and indexed; questions are answered by a
// language model from the closest chunks.
package rag

import "context"

// Page is the extracted plain text of one PDF page (1-based).
type Page struct {
	Number int
	Text   string
}

// Document is a loaded source file.
type Document struct {
	ID     string
	Source string
	Pages  []Page
}

// Chunk is the unit of retrieval.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string
	Page       int
	Index      int
	Text       string
}

// SearchResult is a chunk with its cosine similarity to the query.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Loader reads a file on disk into pages of text.
type Loader interface {
	Load(ctx context.Context, path string) (*Document, error)
}

// Embedder turns text into vectors. Documents and queries are embedded
// separately because some providers tune the vector to the task.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for a system instruction and a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// VectorStore persists chunk vectors and supports similarity search.
type VectorStore interface {
	Add(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	// Search returns at most k results scoring at least minScore, best first.
	Search(ctx context.Context, vector []float32, k int, minScore float64) ([]SearchResult, error)
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}
