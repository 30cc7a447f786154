package database

import (
	"context"
	"errors"
)

// ErrUnknownIdentity is returned by stores that only accept embeddings for
// identities that already exist in an external registry.
var ErrUnknownIdentity = errors.New("identity not found in registry")

// GalleryReader provides read-only access to stored face embeddings
type GalleryReader interface {
	// LoadGallery returns every stored embedding ordered by identity
	LoadGallery(ctx context.Context) ([]StoredEmbedding, error)
	// HasEmbedding checks if an embedding is stored for the identity
	HasEmbedding(ctx context.Context, identity string) (bool, error)
	// Count returns the number of stored embeddings
	Count(ctx context.Context) (int, error)
}

// GalleryWriter provides write access to stored face embeddings
type GalleryWriter interface {
	GalleryReader

	// SaveEmbedding inserts or replaces the embedding for e.Identity
	SaveEmbedding(ctx context.Context, e StoredEmbedding) error

	// DeleteEmbedding removes the embedding for an identity. Deleting an
	// identity without an embedding is not an error.
	DeleteEmbedding(ctx context.Context, identity string) error
}

// NearestSearcher is implemented by backends that can rank identities on the
// database side.
type NearestSearcher interface {
	NearestIdentities(ctx context.Context, query []float32, limit int) ([]Neighbor, error)
}
