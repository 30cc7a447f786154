// Package matcher owns the enrolled face gallery and decides which enrolled
// identity, if any, a query embedding belongs to.
//
// The gallery is a copy-on-write snapshot behind an atomic pointer: a scan
// loads the current snapshot once and reads it without locking, while
// enrollment builds a new snapshot under a writer mutex and swaps it in.
// A scan therefore sees the gallery either entirely before or entirely after
// any given mutation.
package matcher

import (
	"sync"
	"sync/atomic"

	"github.com/kozaktomas/faceid/internal/embedding"
)

// Entry is one enrolled identity. Vector is unit length. Err is non-nil when
// the stored form could not be decoded or normalized; such entries count
// towards the gallery but are never scored.
type Entry struct {
	Identity string
	Vector   embedding.Vector
	Err      error
}

// snapshot is immutable once published.
type snapshot struct {
	entries []Entry
	index   map[string]int
}

var emptySnapshot = &snapshot{index: map[string]int{}}

// Gallery is the shared identity -> embedding mapping. It is safe for
// concurrent use.
type Gallery struct {
	writeMu sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewGallery creates an empty gallery.
func NewGallery() *Gallery {
	g := &Gallery{}
	g.current.Store(emptySnapshot)
	return g
}

func (g *Gallery) load() *snapshot {
	return g.current.Load()
}

// Len returns the number of entries, corrupt ones included.
func (g *Gallery) Len() int {
	return len(g.load().entries)
}

// Entries returns an ordered copy of the gallery. Vectors are copied too.
func (g *Gallery) Entries() []Entry {
	s := g.load()
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = Entry{Identity: e.Identity, Vector: e.Vector.Clone(), Err: e.Err}
	}
	return out
}

// get returns the entry for id from the current snapshot.
func (g *Gallery) get(id string) (Entry, bool) {
	s := g.load()
	i, ok := s.index[id]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// put inserts or replaces the entry for e.Identity. A replaced identity
// keeps its position in the scan order.
func (g *Gallery) put(e Entry) {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	old := g.load()
	entries := make([]Entry, len(old.entries), len(old.entries)+1)
	copy(entries, old.entries)

	index := make(map[string]int, len(old.index)+1)
	for k, v := range old.index {
		index[k] = v
	}

	if i, ok := index[e.Identity]; ok {
		entries[i] = e
	} else {
		index[e.Identity] = len(entries)
		entries = append(entries, e)
	}
	g.current.Store(&snapshot{entries: entries, index: index})
}

// remove deletes id and reports whether it was present.
func (g *Gallery) remove(id string) bool {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	old := g.load()
	pos, ok := old.index[id]
	if !ok {
		return false
	}

	entries := make([]Entry, 0, len(old.entries)-1)
	entries = append(entries, old.entries[:pos]...)
	entries = append(entries, old.entries[pos+1:]...)

	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.Identity] = i
	}
	g.current.Store(&snapshot{entries: entries, index: index})
	return true
}

// replace swaps in a whole new gallery. Duplicate identities keep the
// position of their first occurrence and the value of their last.
func (g *Gallery) replace(in []Entry) {
	entries := make([]Entry, 0, len(in))
	index := make(map[string]int, len(in))
	for _, e := range in {
		if i, ok := index[e.Identity]; ok {
			entries[i] = e
			continue
		}
		index[e.Identity] = len(entries)
		entries = append(entries, e)
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	g.current.Store(&snapshot{entries: entries, index: index})
}
