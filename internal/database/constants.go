package database

import "github.com/kozaktomas/faceid/internal/embedding"

// FaceEmbeddingDim is the fixed dimension for face embeddings (512 for buffalo_l/ResNet100)
const FaceEmbeddingDim = embedding.Dim

// HNSW index parameters for 512-dim face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// to make up for removed identities still present in the graph.
	HNSWSearchMultiplier = 3
)
