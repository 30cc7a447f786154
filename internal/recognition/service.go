// Package recognition is the face recognition service: it turns images into
// embeddings, matches them against the enrolled gallery and keeps the gallery
// store, the in-memory matcher and the neighbor index in step.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/faceid/internal/database"
	"github.com/kozaktomas/faceid/internal/embedding"
	"github.com/kozaktomas/faceid/internal/extractor"
	"github.com/kozaktomas/faceid/internal/matcher"
)

const defaultNeighbors = 5

var (
	// ErrImageNotProcessable covers every way a face image or query vector can
	// be unusable. Its text is shown to API clients.
	ErrImageNotProcessable = errors.New("could not process this image")
	ErrNotEnrolled         = errors.New("identity has no enrolled face")
	ErrNoExtractor         = errors.New("face extractor not configured")
	ErrUnsupported         = errors.New("not supported by the gallery backend")

	// ErrExtractorUnavailable means the extractor could not be reached or
	// failed on its side; the image itself may be fine.
	ErrExtractorUnavailable = errors.New("face extractor unavailable")
)

// Extractor computes the embedding of the single face in an image.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (embedding.Vector, error)
}

// Options configures a Service.
type Options struct {
	// Threshold is the default match threshold, in (0, 1).
	Threshold float64
	// Neighbors is how many nearest identities are checked for duplicates.
	Neighbors int
	// IndexPath persists the neighbor index when set.
	IndexPath string
	// Logger is optional. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Service coordinates extraction, matching and persistence. Identification
// never blocks on mutations; mutations are serialized.
type Service struct {
	extractor Extractor
	store     database.GalleryWriter
	codec     embedding.Codec
	ledger    *matcher.Ledger
	engine    *matcher.Engine
	index     *database.NeighborIndex
	neighbors int
	indexPath string
	logger    *slog.Logger

	mu sync.Mutex // serializes mutations across store, ledger and index
}

// NewService creates a service with an empty gallery; call Sync to load it.
// extractor may be nil when only embeddings are submitted.
func NewService(extractor Extractor, store database.GalleryWriter, codec embedding.Codec, opts Options) (*Service, error) {
	if store == nil {
		return nil, errors.New("gallery store is required")
	}
	if codec == nil {
		codec = embedding.JSONCodec{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = matcher.DefaultThreshold
	}
	neighbors := opts.Neighbors
	if neighbors <= 0 {
		neighbors = defaultNeighbors
	}

	g := matcher.NewGallery()
	engine, err := matcher.NewEngine(g, threshold, logger.With("component", "matcher"))
	if err != nil {
		return nil, err
	}

	return &Service{
		extractor: extractor,
		store:     store,
		codec:     codec,
		ledger:    matcher.NewLedger(g),
		engine:    engine,
		index:     database.NewNeighborIndex(),
		neighbors: neighbors,
		indexPath: opts.IndexPath,
		logger:    logger,
	}, nil
}

// Threshold returns the default match threshold.
func (s *Service) Threshold() float64 {
	return s.engine.Threshold()
}

// Sync reloads the whole gallery from the store and rebuilds the neighbor index.
func (s *Service) Sync(ctx context.Context) (matcher.LoadStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.store.LoadGallery(ctx)
	if err != nil {
		return matcher.LoadStats{}, fmt.Errorf("load gallery: %w", err)
	}

	stored := make([]matcher.StoredEntry, len(records))
	for i, r := range records {
		stored[i] = matcher.StoredEntry{Identity: r.Identity, Encoded: r.Encoded}
	}
	stats := s.ledger.Load(stored, s.codec)

	for _, e := range s.ledger.Entries() {
		if e.Err != nil {
			s.logger.Warn("corrupt gallery record", "identity", e.Identity, "error", e.Err)
		}
	}

	if err := s.rebuildIndex(records); err != nil {
		// The matcher does not depend on the index; keep serving.
		s.logger.Error("rebuild neighbor index", "error", err)
	}

	s.logger.Info("gallery synced", "loaded", stats.Loaded, "corrupt", stats.Corrupt)
	return stats, nil
}

func (s *Service) rebuildIndex(records []database.StoredEmbedding) error {
	var ids []string
	var vecs [][]float32
	for _, e := range s.ledger.Entries() {
		if e.Err == nil {
			ids = append(ids, e.Identity)
			vecs = append(vecs, e.Vector.Float32())
		}
	}

	if s.indexPath == "" {
		return s.index.Build(ids, vecs)
	}

	checksum := database.GalleryChecksum(records)
	if meta, err := database.LoadHNSWMetadata(s.indexPath); err == nil && meta.Checksum == checksum && meta.Count == len(ids) {
		if err := s.index.LoadGraph(s.indexPath, ids, vecs); err == nil {
			s.logger.Info("loaded neighbor index", "path", s.indexPath, "count", len(ids))
			return nil
		}
		s.logger.Warn("persisted neighbor index unreadable, rebuilding", "path", s.indexPath)
	}

	if err := s.index.Build(ids, vecs); err != nil {
		return err
	}
	meta := database.HNSWIndexMetadata{Count: len(ids), Checksum: checksum, BuildTime: time.Now()}
	if err := s.index.SaveWithMetadata(s.indexPath, meta); err != nil {
		return fmt.Errorf("save neighbor index: %w", err)
	}
	return nil
}

// Identification is the outcome of an identify call.
type Identification struct {
	matcher.Result
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
}

// Identify extracts the face embedding from image and matches it.
// threshold <= 0 uses the default.
func (s *Service) Identify(ctx context.Context, image []byte, threshold float64) (*Identification, error) {
	if s.extractor == nil {
		return nil, ErrNoExtractor
	}
	v, err := s.extractor.Extract(ctx, image)
	if err != nil {
		s.logger.Warn("face extraction failed", "error", err)
		return nil, extractionError(err)
	}
	return s.IdentifyEmbedding(ctx, v, threshold)
}

// extractionError separates problems with the image from extractor outages.
func extractionError(err error) error {
	switch {
	case errors.Is(err, extractor.ErrNoFace),
		errors.Is(err, extractor.ErrMultipleFaces),
		errors.Is(err, extractor.ErrEmptyEmbedding),
		errors.Is(err, extractor.ErrInvalidImage),
		errors.Is(err, embedding.ErrInvalidVector):
		return fmt.Errorf("%w: %w", ErrImageNotProcessable, err)
	default:
		return fmt.Errorf("%w: %w", ErrExtractorUnavailable, err)
	}
}

// IdentifyEmbedding matches a raw embedding. threshold <= 0 uses the default.
func (s *Service) IdentifyEmbedding(_ context.Context, raw embedding.Vector, threshold float64) (*Identification, error) {
	if threshold <= 0 {
		threshold = s.engine.Threshold()
	}
	res, err := s.engine.FindBestMatchWithThreshold(raw, threshold)
	if err != nil {
		if errors.Is(err, embedding.ErrInvalidVector) || errors.Is(err, embedding.ErrDimensionMismatch) {
			return nil, fmt.Errorf("%w: %w", ErrImageNotProcessable, err)
		}
		return nil, err
	}
	return &Identification{Result: res, Threshold: threshold, Message: describe(res, threshold)}, nil
}

func describe(res matcher.Result, threshold float64) string {
	switch res.Reason {
	case matcher.ReasonMatched:
		return fmt.Sprintf("Identified %s (similarity: %.2f%%)", res.Identity, res.Similarity*100)
	case matcher.ReasonEmptyGallery:
		return "No identities with registered faces in the gallery"
	default:
		return fmt.Sprintf("No matching identity found (best similarity: %.2f%%, threshold: %.2f%%)",
			res.Similarity*100, threshold*100)
	}
}

// Neighbor is an enrolled identity close to another embedding.
type Neighbor struct {
	Identity   string  `json:"identity"`
	Similarity float64 `json:"similarity"`
}

// Enrollment is the outcome of an enroll call.
type Enrollment struct {
	Identity           string           `json:"identity"`
	EnrollmentID       string           `json:"enrollment_id"`
	Vector             embedding.Vector `json:"-"`
	PossibleDuplicates []Neighbor       `json:"possible_duplicates"`
}

// Enroll extracts the face embedding from image and stores it for id.
func (s *Service) Enroll(ctx context.Context, id string, image []byte) (*Enrollment, error) {
	if s.extractor == nil {
		return nil, ErrNoExtractor
	}
	v, err := s.extractor.Extract(ctx, image)
	if err != nil {
		s.logger.Warn("face extraction failed", "identity", id, "error", err)
		return nil, extractionError(err)
	}
	return s.EnrollEmbedding(ctx, id, v)
}

// EnrollEmbedding stores raw for id, replacing any previous embedding. The
// gallery only sees the new vector once the store write has succeeded.
func (s *Service) EnrollEmbedding(ctx context.Context, id string, raw embedding.Vector) (*Enrollment, error) {
	id = CanonicalIdentity(id)
	if id == "" {
		return nil, matcher.ErrEmptyIdentity
	}

	stored, err := embedding.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageNotProcessable, err)
	}
	encoded, err := s.codec.Encode(stored)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, hadPrev := s.ledger.Get(id)
	rec := database.StoredEmbedding{
		Identity:     id,
		Encoded:      encoded,
		EnrollmentID: newEnrollmentID(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.store.SaveEmbedding(ctx, rec); err != nil {
		return nil, fmt.Errorf("save embedding: %w", err)
	}

	// Normalize is deterministic, so this stores the vector just persisted.
	if _, err := s.ledger.Enroll(id, raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageNotProcessable, err)
	}
	if err := s.index.Add(id, stored.Float32()); err != nil {
		s.logger.Warn("neighbor index not updated", "identity", id, "error", err)
	}

	dups, err := s.nearest(id, stored, s.neighbors, s.engine.Threshold())
	if err != nil {
		s.logger.Warn("duplicate check failed", "identity", id, "error", err)
	}
	if len(dups) > 0 {
		s.logger.Warn("enrolled face resembles other identities", "identity", id, "duplicates", len(dups),
			"closest", dups[0].Identity, "similarity", dups[0].Similarity)
	}

	s.logger.Info("enrolled face", "identity", id, "enrollment_id", rec.EnrollmentID, "replaced", hadPrev)
	return &Enrollment{
		Identity:           id,
		EnrollmentID:       rec.EnrollmentID,
		Vector:             stored,
		PossibleDuplicates: dups,
	}, nil
}

func newEnrollmentID() string {
	return uuid.NewString()
}

// Clear removes the enrolled face for id from the store and the gallery. It
// reports whether the gallery held an entry for id.
func (s *Service) Clear(ctx context.Context, id string) (bool, error) {
	id = CanonicalIdentity(id)
	if id == "" {
		return false, matcher.ErrEmptyIdentity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteEmbedding(ctx, id); err != nil {
		return false, fmt.Errorf("delete embedding: %w", err)
	}
	removed := s.ledger.Remove(id)
	s.index.Delete(id)

	if removed {
		s.logger.Info("cleared face", "identity", id)
	}
	return removed, nil
}

// HasEmbedding reports whether id has a usable enrolled face.
func (s *Service) HasEmbedding(id string) bool {
	return s.ledger.HasEmbedding(CanonicalIdentity(id))
}

// Neighbors returns up to k enrolled identities most similar to id's face,
// most similar first. k <= 0 uses the configured neighbor count.
func (s *Service) Neighbors(_ context.Context, id string, k int) ([]Neighbor, error) {
	id = CanonicalIdentity(id)
	e, ok := s.ledger.Get(id)
	if !ok || e.Err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotEnrolled, id)
	}
	if k <= 0 {
		k = s.neighbors
	}
	return s.nearest(id, e.Vector, k, 0)
}

// NearestStored ranks identities with the store's own vector search, for
// backends that have one.
func (s *Service) NearestStored(ctx context.Context, id string, k int) ([]Neighbor, error) {
	searcher, ok := s.store.(database.NearestSearcher)
	if !ok {
		return nil, ErrUnsupported
	}
	id = CanonicalIdentity(id)
	e, ok := s.ledger.Get(id)
	if !ok || e.Err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotEnrolled, id)
	}
	if k <= 0 {
		k = s.neighbors
	}

	ranked, err := searcher.NearestIdentities(ctx, e.Vector.Float32(), k+1)
	if err != nil {
		return nil, err
	}
	out := make([]Neighbor, 0, k)
	for _, n := range ranked {
		if n.Identity == id || len(out) == k {
			continue
		}
		out = append(out, Neighbor{Identity: n.Identity, Similarity: 1 - n.Distance})
	}
	return out, nil
}

// nearest asks the index for candidates and rescores them exactly against
// the gallery, keeping those with similarity >= minSimilarity.
func (s *Service) nearest(id string, v embedding.Vector, k int, minSimilarity float64) ([]Neighbor, error) {
	found, err := s.index.Search(v.Float32(), k, id)
	if err != nil {
		return nil, err
	}

	out := make([]Neighbor, 0, len(found))
	for _, n := range found {
		other, ok := s.ledger.Get(n.Identity)
		if !ok || other.Err != nil {
			continue
		}
		score, err := embedding.Score(v, other.Vector)
		if err != nil {
			continue
		}
		if score >= minSimilarity {
			out = append(out, Neighbor{Identity: n.Identity, Similarity: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out, nil
}

// GalleryStats summarizes the in-memory gallery.
type GalleryStats struct {
	Count      int      `json:"count"`
	Corrupt    []string `json:"corrupt"`
	Indexed    int      `json:"indexed"`
	Threshold  float64  `json:"threshold"`
	Identities []string `json:"identities"`
}

// Stats returns a summary of the current gallery.
func (s *Service) Stats() GalleryStats {
	ids := s.ledger.Identities()
	corrupt := s.ledger.Corrupt()
	if corrupt == nil {
		corrupt = []string{}
	}
	return GalleryStats{
		Count:      len(ids) - len(corrupt),
		Corrupt:    corrupt,
		Indexed:    s.index.Count(),
		Threshold:  s.engine.Threshold(),
		Identities: ids,
	}
}
