package database

import (
	"time"
)

// StoredEmbedding is one gallery record as kept by a backend. Encoded holds
// the vector in the configured codec's text form.
type StoredEmbedding struct {
	Identity     string
	Encoded      string
	EnrollmentID string
	UpdatedAt    time.Time
}

// Neighbor is an identity returned by a nearest-neighbor search.
type Neighbor struct {
	Identity string
	Distance float64 // cosine distance, 0 = identical direction
}
