// Package local stores the gallery in an embedded BadgerDB, for single-node
// deployments without a database server.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kozaktomas/faceid/internal/database"
)

// BackendName is the registry name of the BadgerDB gallery backend.
const BackendName = "local"

const keyPrefix = "gallery/"

// record is the JSON value stored under gallery/<identity>.
type record struct {
	Encoded      string    `json:"encoded"`
	EnrollmentID string    `json:"enrollment_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Options configures the store.
type Options struct {
	// Dir is the directory for BadgerDB data files. Empty means in-memory.
	Dir string

	// Logger receives badger warnings and errors. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Store is a GalleryWriter backed by BadgerDB.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store.
func Open(opts Options) (*Store, error) {
	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.Dir == "" {
		dbOpts = dbOpts.WithInMemory(true)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(badgerLogger{logger: logger.With("component", "badger")})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Store{db: db}, nil
}

// Initialize opens the store and registers it as the "local" backend.
func Initialize(opts Options) (*Store, error) {
	s, err := Open(opts)
	if err != nil {
		return nil, err
	}
	database.RegisterGalleryBackend(BackendName, func() database.GalleryWriter { return s })
	return s, nil
}

func key(identity string) []byte {
	return []byte(keyPrefix + identity)
}

// LoadGallery returns every stored embedding ordered by identity. Badger
// iterates keys in byte order, which is identity order under the prefix.
func (s *Store) LoadGallery(_ context.Context) ([]database.StoredEmbedding, error) {
	var out []database.StoredEmbedding
	prefix := []byte(keyPrefix)

	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			identity := string(item.Key()[len(prefix):])

			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", identity, err)
			}
			var rec record
			if err := json.Unmarshal(val, &rec); err != nil {
				// Keep the raw bytes so the record surfaces as corrupt.
				rec = record{Encoded: string(val)}
			}
			out = append(out, database.StoredEmbedding{
				Identity:     identity,
				Encoded:      rec.Encoded,
				EnrollmentID: rec.EnrollmentID,
				UpdatedAt:    rec.UpdatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load gallery: %w", err)
	}
	return out, nil
}

// HasEmbedding checks if an embedding exists for the identity
func (s *Store) HasEmbedding(_ context.Context, identity string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key(identity))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check embedding exists: %w", err)
	}
	return true, nil
}

// Count returns the number of stored embeddings
func (s *Store) Count(_ context.Context) (int, error) {
	count := 0
	prefix := []byte(keyPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.PrefetchValues = false
		it := txn.NewIterator(iterOpts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count embeddings: %w", err)
	}
	return count, nil
}

// SaveEmbedding inserts or replaces the embedding for e.Identity
func (s *Store) SaveEmbedding(_ context.Context, e database.StoredEmbedding) error {
	val, err := encodeRecord(e)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(e.Identity), val)
	}); err != nil {
		return fmt.Errorf("save embedding for %s: %w", e.Identity, err)
	}
	return nil
}

// SaveEmbeddings writes many records in one batch, used by imports.
func (s *Store) SaveEmbeddings(_ context.Context, records []database.StoredEmbedding) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, e := range records {
		val, err := encodeRecord(e)
		if err != nil {
			return err
		}
		if err := wb.Set(key(e.Identity), val); err != nil {
			return fmt.Errorf("batch set %s: %w", e.Identity, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}
	return nil
}

func encodeRecord(e database.StoredEmbedding) ([]byte, error) {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	val, err := json.Marshal(record{Encoded: e.Encoded, EnrollmentID: e.EnrollmentID, UpdatedAt: e.UpdatedAt})
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return val, nil
}

// DeleteEmbedding removes the embedding for an identity
func (s *Store) DeleteEmbedding(_ context.Context, identity string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(identity))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("delete embedding for %s: %w", identity, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger output through slog, dropping its chatty info
// and debug lines.
type badgerLogger struct {
	logger *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...any)   { l.logger.Error(fmt.Sprintf(f, v...)) }
func (l badgerLogger) Warningf(f string, v ...any) { l.logger.Warn(fmt.Sprintf(f, v...)) }
func (badgerLogger) Infof(string, ...any)          {}
func (badgerLogger) Debugf(string, ...any)         {}

var _ database.GalleryWriter = (*Store)(nil)
