package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	doc *Document
	err error
}

func (l *fakeLoader) Load(ctx context.Context, path string) (*Document, error) {
	return l.doc, l.err
}

// keywordEmbedder maps text onto a fixed vocabulary so similarity is
// predictable in tests.
type keywordEmbedder struct {
	vocab    []string
	docCalls int
	err      error
	// failFrom makes EmbedDocuments fail from that call number on (1-based).
	failFrom int
}

func (e *keywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(e.vocab))
	for i, w := range e.vocab {
		if strings.Contains(lower, w) {
			v[i] = 1
		}
	}
	return v
}

func (e *keywordEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	e.docCalls++
	if e.err != nil && (e.failFrom == 0 || e.docCalls >= e.failFrom) {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

type recordingGenerator struct {
	system string
	prompt string
	answer string
	err    error
}

func (g *recordingGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	g.system = system
	g.prompt = prompt
	return g.answer, g.err
}

func newTestAssistant(doc *Document) (*Assistant, *keywordEmbedder, *recordingGenerator, *MemoryStore) {
	embedder := &keywordEmbedder{vocab: []string{"cat", "dog", "summary"}}
	generator := &recordingGenerator{answer: "  The document is about cats.  "}
	store := NewMemoryStore()
	a := NewAssistant(&fakeLoader{doc: doc}, embedder, generator, store, Options{
		ChunkSize:      40,
		ChunkOverlap:   0,
		TopK:           3,
		ScoreThreshold: 0.5,
		EmbedBatchSize: 2,
	})
	return a, embedder, generator, store
}

func TestAssistant_IngestThenAsk(t *testing.T) {
	ctx := context.Background()
	doc := &Document{
		ID:     "doc1",
		Source: "doc.pdf",
		Pages: []Page{
			{Number: 1, Text: "Cats sleep a lot.\n\nCats purr."},
			{Number: 2, Text: "   "},
			{Number: 3, Text: "Dogs bark at night."},
		},
	}
	a, embedder, generator, store := newTestAssistant(doc)

	assert.False(t, a.Ready())
	require.NoError(t, a.Ingest(ctx, "/tmp/whatever.pdf"))
	assert.True(t, a.Ready())

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, embedder.docCalls)

	answer, err := a.Ask(ctx, "What about the cat?")
	require.NoError(t, err)
	assert.Equal(t, "The document is about cats.", answer)
	assert.Equal(t, systemPrompt, generator.system)
	assert.Contains(t, generator.prompt, "Question: What about the cat?")
	assert.Contains(t, generator.prompt, "Cats sleep a lot.")
	assert.Contains(t, generator.prompt, "(page 1)")
	assert.NotContains(t, generator.prompt, "Dogs bark")
}

func TestAssistant_IngestBatchesEmbeddings(t *testing.T) {
	ctx := context.Background()
	doc := &Document{ID: "d", Pages: []Page{
		{Number: 1, Text: "cat one"},
		{Number: 2, Text: "cat two"},
		{Number: 3, Text: "cat three"},
	}}
	a, embedder, _, store := newTestAssistant(doc)

	require.NoError(t, a.Ingest(ctx, "x.pdf"))
	assert.Equal(t, 2, embedder.docCalls)

	n, _ := store.Len(ctx)
	assert.Equal(t, 3, n)
}

func TestAssistant_AskBeforeIngest(t *testing.T) {
	a, _, generator, _ := newTestAssistant(&Document{})

	_, err := a.Ask(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Empty(t, generator.prompt)
}

func TestAssistant_IngestErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("loader failure", func(t *testing.T) {
		loadErr := errors.New("corrupt pdf")
		a := NewAssistant(&fakeLoader{err: loadErr}, &keywordEmbedder{}, &recordingGenerator{}, NewMemoryStore(), Options{})
		err := a.Ingest(ctx, "bad.pdf")
		assert.ErrorIs(t, err, loadErr)
		assert.False(t, a.Ready())
	})

	t.Run("no text", func(t *testing.T) {
		a, _, _, _ := newTestAssistant(&Document{Pages: []Page{{Number: 1, Text: "\n \n"}}})
		assert.ErrorIs(t, a.Ingest(ctx, "scan.pdf"), ErrNoText)
		assert.False(t, a.Ready())
	})

	t.Run("embedder failure", func(t *testing.T) {
		a, embedder, _, _ := newTestAssistant(&Document{Pages: []Page{{Number: 1, Text: "cat"}}})
		embedder.err = errors.New("quota exceeded")
		assert.ErrorIs(t, a.Ingest(ctx, "x.pdf"), embedder.err)
		assert.False(t, a.Ready())
	})
}

func TestAssistant_ClearResetsReadiness(t *testing.T) {
	ctx := context.Background()
	a, _, _, store := newTestAssistant(&Document{ID: "d", Pages: []Page{{Number: 1, Text: "cat"}}})
	require.NoError(t, a.Ingest(ctx, "x.pdf"))

	require.NoError(t, a.Clear(ctx))
	require.NoError(t, a.Clear(ctx))

	assert.False(t, a.Ready())
	n, _ := store.Len(ctx)
	assert.Zero(t, n)
}

func TestAssistant_AskWithoutMatchesStillAsksModel(t *testing.T) {
	ctx := context.Background()
	a, _, generator, _ := newTestAssistant(&Document{ID: "d", Pages: []Page{{Number: 1, Text: "cat"}}})
	require.NoError(t, a.Ingest(ctx, "x.pdf"))
	generator.answer = "I don't know."

	answer, err := a.Ask(ctx, "Tell me about dogs")
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", answer)
	assert.NotContains(t, generator.prompt, "[1]")
}

func TestAssistant_FailedIngestLeavesNoChunks(t *testing.T) {
	ctx := context.Background()
	good := &Document{ID: "good", Source: "good.pdf", Pages: []Page{{Number: 1, Text: "cat facts"}}}
	a, embedder, generator, store := newTestAssistant(good)
	require.NoError(t, a.Ingest(ctx, "good.pdf"))

	// Three chunks in batches of two: the first batch embeds, the second fails.
	a.loader = &fakeLoader{doc: &Document{ID: "bad", Source: "bad.pdf", Pages: []Page{
		{Number: 1, Text: "dog one"},
		{Number: 2, Text: "dog two"},
		{Number: 3, Text: "dog three"},
	}}}
	embedder.err = errors.New("quota")
	embedder.failFrom = embedder.docCalls + 2

	err := a.Ingest(ctx, "bad.pdf")
	require.ErrorIs(t, err, embedder.err)
	assert.Equal(t, 3, embedder.docCalls)
	assert.True(t, a.Ready(), "the earlier document stays usable")

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits, err := store.Search(ctx, embedder.vector("dog"), 3, 0.5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = a.Ask(ctx, "What about the dog?")
	require.NoError(t, err)
	assert.NotContains(t, generator.prompt, "dog one")
}
