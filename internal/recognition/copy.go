package recognition

import (
	"context"
	"fmt"

	"github.com/kozaktomas/faceid/internal/database"
	"github.com/kozaktomas/faceid/internal/embedding"
	"github.com/kozaktomas/faceid/internal/matcher"
)

// CopyOptions configures CopyGallery.
type CopyOptions struct {
	// From decodes source records, To encodes them for the destination.
	From, To embedding.Codec
	// DryRun validates without writing.
	DryRun bool
	// OnRecord is called after each record is handled.
	OnRecord func(r database.StoredEmbedding, err error)
}

// CopyStats summarizes a CopyGallery run.
type CopyStats struct {
	Total   int `json:"total"`
	Copied  int `json:"copied"`
	Corrupt int `json:"corrupt"`
}

// CopyGallery moves every usable embedding from src to dst, re-encoding it
// with opts.To. Corrupt source records are counted and skipped. Enrollment
// ids and timestamps are preserved.
func CopyGallery(ctx context.Context, src database.GalleryReader, dst database.GalleryWriter, opts CopyOptions) (CopyStats, error) {
	if opts.From == nil {
		opts.From = embedding.JSONCodec{}
	}
	if opts.To == nil {
		opts.To = opts.From
	}

	records, err := src.LoadGallery(ctx)
	if err != nil {
		return CopyStats{}, fmt.Errorf("load source gallery: %w", err)
	}

	stats := CopyStats{Total: len(records)}
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		out, err := recode(r, opts.From, opts.To)
		if err != nil {
			stats.Corrupt++
			if opts.OnRecord != nil {
				opts.OnRecord(r, err)
			}
			continue
		}

		if !opts.DryRun {
			if err := dst.SaveEmbedding(ctx, out); err != nil {
				return stats, fmt.Errorf("save %s: %w", r.Identity, err)
			}
		}
		stats.Copied++
		if opts.OnRecord != nil {
			opts.OnRecord(r, nil)
		}
	}
	return stats, nil
}

func recode(r database.StoredEmbedding, from, to embedding.Codec) (database.StoredEmbedding, error) {
	e := matcher.DecodeEntry(matcher.StoredEntry{Identity: r.Identity, Encoded: r.Encoded}, from)
	if e.Err != nil {
		return r, e.Err
	}
	encoded, err := to.Encode(e.Vector)
	if err != nil {
		return r, err
	}
	if r.EnrollmentID == "" {
		r.EnrollmentID = newEnrollmentID()
	}
	r.Encoded = encoded
	return r, nil
}
