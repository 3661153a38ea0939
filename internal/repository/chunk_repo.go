package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"chatpdf/internal/rag"
)

// ChunkRepo stores chunk embeddings in PostgreSQL with pgvector. Rows are
// partitioned by collection, one collection per session.
type ChunkRepo struct {
	pool *pgxpool.Pool
}

func NewChunkRepo(pool *pgxpool.Pool) *ChunkRepo {
	return &ChunkRepo{pool: pool}
}

// Collection returns a rag.VectorStore over the rows of one collection.
func (r *ChunkRepo) Collection(name string) *ChunkCollection {
	return &ChunkCollection{pool: r.pool, name: name}
}

// Purge removes every chunk. Collections do not outlive the process that
// created them, so rows left by a previous run are stale.
func (r *ChunkRepo) Purge(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM document_chunks")
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type ChunkCollection struct {
	pool *pgxpool.Pool
	name string
}

var _ rag.VectorStore = (*ChunkCollection)(nil)

// Add inserts all chunks in one transaction.
func (c *ChunkCollection) Add(ctx context.Context, chunks []rag.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if len(chunks) == 0 {
		return nil
	}

	query := `INSERT INTO document_chunks
		(id, collection, chunk_id, document_id, source, page, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	batch := &pgx.Batch{}
	for i, ch := range chunks {
		batch.Queue(query,
			uuid.New(), c.name, ch.ID, ch.DocumentID, ch.Source, ch.Page, ch.Index, ch.Text,
			pgvector.NewVector(vectors[i]),
		)
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	return tx.Commit(ctx)
}

func (c *ChunkCollection) Search(ctx context.Context, vector []float32, k int, minScore float64) ([]rag.SearchResult, error) {
	if k <= 0 {
		k = 3
	}

	// <=> is cosine distance, so 1 - distance is cosine similarity.
	query := `SELECT chunk_id, document_id, source, page, chunk_index, content,
			1 - (embedding <=> $2) AS score
		FROM document_chunks
		WHERE collection = $1 AND 1 - (embedding <=> $2) >= $3
		ORDER BY embedding <=> $2
		LIMIT $4`

	rows, err := c.pool.Query(ctx, query, c.name, pgvector.NewVector(vector), minScore, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []rag.SearchResult
	for rows.Next() {
		var res rag.SearchResult
		if err := rows.Scan(
			&res.Chunk.ID, &res.Chunk.DocumentID, &res.Chunk.Source,
			&res.Chunk.Page, &res.Chunk.Index, &res.Chunk.Text, &res.Score,
		); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (c *ChunkCollection) Clear(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, "DELETE FROM document_chunks WHERE collection = $1", c.name)
	return err
}

func (c *ChunkCollection) Len(ctx context.Context) (int, error) {
	var n int
	err := c.pool.QueryRow(ctx, "SELECT COUNT(*) FROM document_chunks WHERE collection = $1", c.name).Scan(&n)
	return n, err
}
