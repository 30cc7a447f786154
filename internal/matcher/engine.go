package matcher

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kozaktomas/faceid/internal/embedding"
)

// DefaultThreshold is the minimum similarity for a match when none is configured.
const DefaultThreshold = 0.5

// ErrInvalidThreshold is returned for a threshold outside the open interval (0, 1).
var ErrInvalidThreshold = errors.New("similarity threshold must be in (0, 1)")

// Reason explains a Result.
type Reason string

const (
	ReasonMatched        Reason = "matched"
	ReasonBelowThreshold Reason = "below_threshold"
	ReasonEmptyGallery   Reason = "empty_gallery"
)

// Result is the outcome of one scan. Similarity is the best score found even
// when no match is declared. Scanned counts scored entries, Skipped counts
// entries that could not be scored.
type Result struct {
	Matched    bool    `json:"matched"`
	Identity   string  `json:"identity,omitempty"`
	Similarity float64 `json:"similarity"`
	Reason     Reason  `json:"reason"`
	Scanned    int     `json:"scanned"`
	Skipped    int     `json:"skipped"`
}

// ValidateThreshold checks that t lies in (0, 1).
func ValidateThreshold(t float64) error {
	if !(t > 0 && t < 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, t)
	}
	return nil
}

// FindBestMatch scans entries linearly and returns the closest identity if
// its similarity to query is at least threshold. query and every scorable
// entry must already be unit length. The first entry holding the maximum
// score wins ties.
func FindBestMatch(query embedding.Vector, entries []Entry, threshold float64) Result {
	return scan(query, entries, threshold, nil)
}

func scan(query embedding.Vector, entries []Entry, threshold float64, logger *slog.Logger) Result {
	if len(entries) == 0 {
		return Result{Reason: ReasonEmptyGallery}
	}

	var res Result
	bestIdx := -1
	best := 0.0

	for i := range entries {
		e := &entries[i]
		if e.Err != nil {
			res.Skipped++
			if logger != nil {
				logger.Warn("skipping corrupt gallery entry", "identity", e.Identity, "error", e.Err)
			}
			continue
		}

		s, err := embedding.Score(query, e.Vector)
		if err != nil {
			res.Skipped++
			if logger != nil {
				logger.Warn("skipping gallery entry", "identity", e.Identity, "error", err)
			}
			continue
		}
		res.Scanned++

		if logger != nil {
			logger.Debug("gallery score", "identity", e.Identity, "similarity", s)
		}
		if bestIdx < 0 || s > best {
			best = s
			bestIdx = i
		}
	}

	res.Similarity = best
	if bestIdx >= 0 && best >= threshold {
		res.Matched = true
		res.Identity = entries[bestIdx].Identity
		res.Reason = ReasonMatched
		return res
	}
	res.Reason = ReasonBelowThreshold
	return res
}

// Engine matches query embeddings against a Gallery.
type Engine struct {
	gallery   *Gallery
	threshold float64
	logger    *slog.Logger
}

// NewEngine creates an engine over g with a default threshold. Logger is
// optional; if nil, slog.Default() is used.
func NewEngine(g *Gallery, threshold float64, logger *slog.Logger) (*Engine, error) {
	if g == nil {
		return nil, errors.New("gallery is required")
	}
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{gallery: g, threshold: threshold, logger: logger}, nil
}

// Threshold returns the engine's default threshold.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// FindBestMatch matches a raw query embedding using the default threshold.
func (e *Engine) FindBestMatch(raw embedding.Vector) (Result, error) {
	return e.FindBestMatchWithThreshold(raw, e.threshold)
}

// FindBestMatchWithThreshold normalizes raw and scans the current gallery
// snapshot. An invalid query is returned as embedding.ErrInvalidVector.
func (e *Engine) FindBestMatchWithThreshold(raw embedding.Vector, threshold float64) (Result, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return Result{}, err
	}
	query, err := embedding.Normalize(raw)
	if err != nil {
		return Result{}, fmt.Errorf("query: %w", err)
	}

	snap := e.gallery.load()
	res := scan(query, snap.entries, threshold, e.logger)

	switch res.Reason {
	case ReasonMatched:
		e.logger.Info("best match", "identity", res.Identity, "similarity", res.Similarity,
			"scanned", res.Scanned, "skipped", res.Skipped)
	case ReasonBelowThreshold:
		e.logger.Info("no match above threshold", "threshold", threshold, "best", res.Similarity,
			"scanned", res.Scanned, "skipped", res.Skipped)
	case ReasonEmptyGallery:
		e.logger.Info("gallery is empty")
	}
	return res, nil
}
