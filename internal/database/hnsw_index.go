package database

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	Count     int       `json:"count"`
	Checksum  string    `json:"checksum"` // fingerprint of the identities in the graph
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"`
}

const hnswMetadataVersion = 1

var ErrDimensionMismatch = errors.New("vector dimension does not match index")

// NeighborIndex wraps an HNSW graph keyed by identity. Removed identities stay
// in the graph until the next rebuild and are filtered out of results.
type NeighborIndex struct {
	graph   *hnsw.Graph[string]
	vectors map[string][]float32 // live identities
	dim     int
	mu      sync.RWMutex
}

// NewNeighborIndex creates a new empty index.
func NewNeighborIndex() *NeighborIndex {
	return &NeighborIndex{
		vectors: make(map[string][]float32),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents. Entries with an empty vector are skipped.
func (h *NeighborIndex) Build(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("length mismatch: %d ids, %d vectors", len(ids), len(vectors))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = nil
	h.dim = 0
	h.vectors = make(map[string][]float32, len(ids))

	if len(ids) == 0 {
		return nil
	}

	g := newGraph()
	for i, id := range ids {
		v := vectors[i]
		if len(v) == 0 {
			continue
		}
		if h.dim == 0 {
			h.dim = len(v)
		} else if len(v) != h.dim {
			return fmt.Errorf("%w: %s has %d, want %d", ErrDimensionMismatch, id, len(v), h.dim)
		}
		g.Add(hnsw.MakeNode(id, v))
		h.vectors[id] = v
	}

	h.graph = g
	return nil
}

// Add inserts or replaces the vector for id.
func (h *NeighborIndex) Add(id string, v []float32) error {
	if len(v) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dim != 0 && len(v) != h.dim {
		return fmt.Errorf("%w: %s has %d, want %d", ErrDimensionMismatch, id, len(v), h.dim)
	}
	if h.graph == nil {
		h.graph = newGraph()
	}
	h.dim = len(v)

	h.graph.Add(hnsw.MakeNode(id, v))
	h.vectors[id] = v
	return nil
}

// Delete removes id from search results.
func (h *NeighborIndex) Delete(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.vectors, id)
}

// Search returns up to k live identities nearest to query, closest first.
// exclude is left out of the results (typically the query's own identity).
func (h *NeighborIndex) Search(query []float32, k int, exclude string) ([]Neighbor, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if k <= 0 || h.graph == nil || len(h.vectors) == 0 {
		return nil, nil
	}
	if len(query) != h.dim {
		return nil, fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(query), h.dim)
	}

	nodes := h.graph.Search(query, (k+1)*HNSWSearchMultiplier)

	out := make([]Neighbor, 0, k)
	for _, n := range nodes {
		if n.Key == exclude {
			continue
		}
		v, ok := h.vectors[n.Key]
		if !ok {
			continue
		}
		// Distance from the live vector, the graph node may be stale.
		out = append(out, Neighbor{Identity: n.Key, Distance: float64(hnsw.CosineDistance(query, v))})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Count returns the number of live identities.
func (h *NeighborIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.vectors)
}

// IsEmpty returns true if no graph is loaded.
func (h *NeighborIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil
}

// SaveWithMetadata persists the graph to path and metadata to path.meta.
// An empty index removes both files.
func (h *NeighborIndex) SaveWithMetadata(path string, metadata HNSWIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		// best-effort cleanup
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if err := h.graph.Export(f); err != nil {
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}

	metadata.Version = hnswMetadataVersion
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}

	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	return metadata, nil
}

// LoadGraph loads a graph exported by SaveWithMetadata and attaches the live
// vectors. Graph nodes without a live vector are ignored by Search.
func (h *NeighborIndex) LoadGraph(path string, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("length mismatch: %d ids, %d vectors", len(ids), len(vectors))
	}

	saved, err := hnsw.LoadSavedGraph[string](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.graph = saved.Graph
	h.dim = 0
	h.vectors = make(map[string][]float32, len(ids))
	for i, id := range ids {
		if len(vectors[i]) == 0 {
			continue
		}
		h.vectors[id] = vectors[i]
		h.dim = len(vectors[i])
	}
	return nil
}

// GalleryChecksum fingerprints stored records so a persisted index built from
// a different gallery is detected as stale.
func GalleryChecksum(records []StoredEmbedding) string {
	h := sha256.New()
	for _, r := range records {
		h.Write([]byte(r.Identity))
		h.Write([]byte{0})
		h.Write([]byte(r.Encoded))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
