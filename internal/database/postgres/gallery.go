package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/faceid/internal/database"
	"github.com/kozaktomas/faceid/internal/embedding"
)

// GalleryRepository stores face embeddings in the face_embeddings table.
// The encoded text is the source of truth; the vector column mirrors it for
// SQL-side nearest neighbor queries.
type GalleryRepository struct {
	pool  *Pool
	codec embedding.Codec
}

// NewGalleryRepository creates a new PostgreSQL gallery repository
func NewGalleryRepository(pool *Pool, codec embedding.Codec) *GalleryRepository {
	return &GalleryRepository{pool: pool, codec: codec}
}

// LoadGallery returns every stored embedding ordered by identity
func (r *GalleryRepository) LoadGallery(ctx context.Context) ([]database.StoredEmbedding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT identity, embedding_text, enrollment_id, updated_at
		FROM face_embeddings
		ORDER BY identity
	`)
	if err != nil {
		return nil, fmt.Errorf("query gallery: %w", err)
	}
	defer rows.Close()

	var out []database.StoredEmbedding
	for rows.Next() {
		var e database.StoredEmbedding
		if err := rows.Scan(&e.Identity, &e.Encoded, &e.EnrollmentID, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan gallery row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery: %w", err)
	}
	return out, nil
}

// HasEmbedding checks if an embedding exists for the identity
func (r *GalleryRepository) HasEmbedding(ctx context.Context, identity string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM face_embeddings WHERE identity = $1)", identity).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check embedding exists: %w", err)
	}
	return exists, nil
}

// Count returns the number of stored embeddings
func (r *GalleryRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_embeddings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// SaveEmbedding inserts or replaces the embedding for e.Identity
func (r *GalleryRepository) SaveEmbedding(ctx context.Context, e database.StoredEmbedding) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO face_embeddings (identity, embedding_text, embedding, enrollment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (identity) DO UPDATE SET
			embedding_text = EXCLUDED.embedding_text,
			embedding = EXCLUDED.embedding,
			enrollment_id = EXCLUDED.enrollment_id,
			updated_at = EXCLUDED.updated_at
	`, e.Identity, e.Encoded, r.vectorColumn(e), e.EnrollmentID, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save embedding for %s: %w", e.Identity, err)
	}
	return nil
}

// vectorColumn returns the value for the vector column, NULL when the encoded
// text does not decode to a full face embedding.
func (r *GalleryRepository) vectorColumn(e database.StoredEmbedding) any {
	v, err := r.codec.Decode(e.Encoded)
	if err != nil || len(v) != database.FaceEmbeddingDim {
		slog.Warn("embedding not mirrored to vector column", "identity", e.Identity, "error", err)
		return nil
	}
	return pgvector.NewVector(v.Float32())
}

// DeleteEmbedding removes the embedding for an identity
func (r *GalleryRepository) DeleteEmbedding(ctx context.Context, identity string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM face_embeddings WHERE identity = $1", identity); err != nil {
		return fmt.Errorf("delete embedding for %s: %w", identity, err)
	}
	return nil
}

// Get returns the stored record for identity, nil if not found
func (r *GalleryRepository) Get(ctx context.Context, identity string) (*database.StoredEmbedding, error) {
	var e database.StoredEmbedding
	err := r.pool.QueryRow(ctx, `
		SELECT identity, embedding_text, enrollment_id, updated_at
		FROM face_embeddings
		WHERE identity = $1
	`, identity).Scan(&e.Identity, &e.Encoded, &e.EnrollmentID, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	return &e, nil
}

// NearestIdentities ranks stored identities by cosine distance to query using
// the pgvector HNSW index.
func (r *GalleryRepository) NearestIdentities(ctx context.Context, query []float32, limit int) ([]database.Neighbor, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", database.HNSWEfSearch)); err != nil {
		return nil, fmt.Errorf("set ef_search: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT identity, embedding <=> $1 AS distance
		FROM face_embeddings
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, fmt.Errorf("query nearest identities: %w", err)
	}
	defer rows.Close()

	var out []database.Neighbor
	for rows.Next() {
		var n database.Neighbor
		if err := rows.Scan(&n.Identity, &n.Distance); err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbors: %w", err)
	}
	return out, nil
}

var (
	_ database.GalleryWriter   = (*GalleryRepository)(nil)
	_ database.NearestSearcher = (*GalleryRepository)(nil)
)
