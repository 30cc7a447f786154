package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/kozaktomas/faceid/internal/config"
	"github.com/kozaktomas/faceid/internal/database"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Registry keeps face embeddings in a text column of an existing person
// table (students.face_embedding by default). Rows with a NULL embedding are
// not part of the gallery, and SaveEmbedding never creates rows.
type Registry struct {
	pool *Pool

	selectAll string
	selectOne string
	countAll  string
	update    string
	clear     string
}

// NewRegistry validates the table layout and prepares the queries.
func NewRegistry(pool *Pool, cfg *config.RegistryConfig) (*Registry, error) {
	for _, name := range []string{cfg.Table, cfg.IDColumn, cfg.EmbeddingColumn} {
		if !identifierRe.MatchString(name) {
			return nil, fmt.Errorf("invalid registry identifier %q", name)
		}
	}

	t, id, col := quote(cfg.Table), quote(cfg.IDColumn), quote(cfg.EmbeddingColumn)
	return &Registry{
		pool:      pool,
		selectAll: fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IS NOT NULL ORDER BY %s", id, col, t, col, id),
		selectOne: fmt.Sprintf("SELECT %s IS NOT NULL FROM %s WHERE %s = ?", col, t, id),
		countAll:  fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NOT NULL", t, col),
		update:    fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", t, col, id),
		clear:     fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = ?", t, col, id),
	}, nil
}

func quote(name string) string {
	return "`" + name + "`"
}

// LoadGallery returns every row with an embedding, ordered by the id column
func (r *Registry) LoadGallery(ctx context.Context) ([]database.StoredEmbedding, error) {
	rows, err := r.pool.db.QueryContext(ctx, r.selectAll)
	if err != nil {
		return nil, fmt.Errorf("query registry embeddings: %w", err)
	}
	defer rows.Close()

	var out []database.StoredEmbedding
	for rows.Next() {
		var e database.StoredEmbedding
		if err := rows.Scan(&e.Identity, &e.Encoded); err != nil {
			return nil, fmt.Errorf("scan registry row: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registry rows: %w", err)
	}
	return out, nil
}

// HasEmbedding reports whether the identity's row has an embedding
func (r *Registry) HasEmbedding(ctx context.Context, identity string) (bool, error) {
	var has bool
	err := r.pool.db.QueryRowContext(ctx, r.selectOne, identity).Scan(&has)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check registry embedding: %w", err)
	}
	return has, nil
}

// Count returns the number of rows with an embedding
func (r *Registry) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.db.QueryRowContext(ctx, r.countAll).Scan(&count); err != nil {
		return 0, fmt.Errorf("count registry embeddings: %w", err)
	}
	return count, nil
}

// SaveEmbedding writes the encoded embedding to the identity's row. The row
// must exist.
func (r *Registry) SaveEmbedding(ctx context.Context, e database.StoredEmbedding) error {
	// Verify the row exists first (MySQL RowsAffected returns 0 when data is unchanged)
	var hasEmbedding sql.NullBool
	err := r.pool.db.QueryRowContext(ctx, r.selectOne, e.Identity).Scan(&hasEmbedding)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", database.ErrUnknownIdentity, e.Identity)
	}
	if err != nil {
		return fmt.Errorf("check registry row: %w", err)
	}

	if _, err := r.pool.db.ExecContext(ctx, r.update, e.Encoded, e.Identity); err != nil {
		return fmt.Errorf("update registry embedding: %w", err)
	}
	return nil
}

// DeleteEmbedding clears the embedding column, the row itself is kept
func (r *Registry) DeleteEmbedding(ctx context.Context, identity string) error {
	if _, err := r.pool.db.ExecContext(ctx, r.clear, identity); err != nil {
		return fmt.Errorf("clear registry embedding: %w", err)
	}
	return nil
}

// Initialize connects to the registry database and registers the "mariadb"
// gallery backend.
func Initialize(cfg *config.RegistryConfig) (*Pool, error) {
	pool, err := NewPool(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	reg, err := NewRegistry(pool, cfg)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	database.RegisterGalleryBackend(BackendName, func() database.GalleryWriter { return reg })
	return pool, nil
}

var _ database.GalleryWriter = (*Registry)(nil)
