package matcher

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/faceid/internal/embedding"
)

// ErrEmptyIdentity is returned when enrolling without an identity.
var ErrEmptyIdentity = errors.New("identity is required")

// StoredEntry is an embedding in its stored (encoded) form, as read from a
// gallery store.
type StoredEntry struct {
	Identity string
	Encoded  string
}

// LoadStats summarizes a bulk load.
type LoadStats struct {
	Loaded  int `json:"loaded"`
	Corrupt int `json:"corrupt"`
}

// Ledger is the mutation surface of a Gallery. Every successful call is
// visible to the next scan of the same gallery.
type Ledger struct {
	gallery *Gallery
}

// NewLedger creates a ledger writing into g.
func NewLedger(g *Gallery) *Ledger {
	return &Ledger{gallery: g}
}

// Gallery returns the gallery the ledger writes into.
func (l *Ledger) Gallery() *Gallery {
	return l.gallery
}

// Enroll normalizes raw and stores it for id, replacing any previous
// embedding. It returns a copy of the stored vector.
func (l *Ledger) Enroll(id string, raw embedding.Vector) (embedding.Vector, error) {
	if id == "" {
		return nil, ErrEmptyIdentity
	}
	v, err := embedding.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("enroll %s: %w", id, err)
	}
	l.gallery.put(Entry{Identity: id, Vector: v})
	return v.Clone(), nil
}

// Remove deletes the embedding for id. Removing an absent identity is not an
// error; the return value reports whether anything was deleted.
func (l *Ledger) Remove(id string) bool {
	return l.gallery.remove(id)
}

// HasEmbedding reports whether id has a usable embedding.
func (l *Ledger) HasEmbedding(id string) bool {
	e, ok := l.gallery.get(id)
	return ok && e.Err == nil
}

// Get returns a copy of the stored entry for id.
func (l *Ledger) Get(id string) (Entry, bool) {
	e, ok := l.gallery.get(id)
	if !ok {
		return Entry{}, false
	}
	return Entry{Identity: e.Identity, Vector: e.Vector.Clone(), Err: e.Err}, true
}

// Len returns the number of gallery entries, corrupt ones included.
func (l *Ledger) Len() int {
	return l.gallery.Len()
}

// Identities returns the enrolled identities in scan order.
func (l *Ledger) Identities() []string {
	s := l.gallery.load()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Identity
	}
	return out
}

// Corrupt returns the identities whose stored embedding could not be used.
func (l *Ledger) Corrupt() []string {
	var out []string
	for _, e := range l.gallery.load().entries {
		if e.Err != nil {
			out = append(out, e.Identity)
		}
	}
	return out
}

// Entries returns an ordered copy of the gallery.
func (l *Ledger) Entries() []Entry {
	return l.gallery.Entries()
}

// Load replaces the whole gallery with records decoded by codec. Every
// record is decoded and normalized once; records that fail are kept as
// corrupt entries so scans can report them.
func (l *Ledger) Load(records []StoredEntry, codec embedding.Codec) LoadStats {
	var stats LoadStats
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		e := DecodeEntry(r, codec)
		if e.Err != nil {
			stats.Corrupt++
		} else {
			stats.Loaded++
		}
		entries = append(entries, e)
	}
	l.gallery.replace(entries)
	return stats
}

// LoadVectors replaces the whole gallery with raw vectors, normalizing each.
// Order follows ids.
func (l *Ledger) LoadVectors(ids []string, vectors []embedding.Vector) (LoadStats, error) {
	if len(ids) != len(vectors) {
		return LoadStats{}, fmt.Errorf("length mismatch: %d ids, %d vectors", len(ids), len(vectors))
	}
	var stats LoadStats
	entries := make([]Entry, len(ids))
	for i, id := range ids {
		v, err := embedding.Normalize(vectors[i])
		entries[i] = Entry{Identity: id, Vector: v, Err: err}
		if err != nil {
			stats.Corrupt++
		} else {
			stats.Loaded++
		}
	}
	l.gallery.replace(entries)
	return stats, nil
}

// DecodeEntry decodes and normalizes a stored record. Failures are recorded
// in the returned entry's Err.
func DecodeEntry(r StoredEntry, codec embedding.Codec) Entry {
	raw, err := codec.Decode(r.Encoded)
	if err != nil {
		return Entry{Identity: r.Identity, Err: fmt.Errorf("decode: %w", err)}
	}
	v, err := embedding.Normalize(raw)
	if err != nil {
		return Entry{Identity: r.Identity, Err: fmt.Errorf("normalize: %w", err)}
	}
	return Entry{Identity: r.Identity, Vector: v}
}
