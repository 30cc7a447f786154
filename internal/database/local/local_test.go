package local

import (
	"context"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kozaktomas/faceid/internal/database"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, id := range []string{"S2", "S1", "S10"} {
		if err := s.SaveEmbedding(ctx, database.StoredEmbedding{Identity: id, Encoded: "[" + id + "]", EnrollmentID: "e-" + id, UpdatedAt: when}); err != nil {
			t.Fatalf("SaveEmbedding failed: %v", err)
		}
	}

	got, err := s.LoadGallery(ctx)
	if err != nil {
		t.Fatalf("LoadGallery failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	wantOrder := []string{"S1", "S10", "S2"}
	for i, want := range wantOrder {
		if got[i].Identity != want {
			t.Errorf("record %d: expected %s, got %s", i, want, got[i].Identity)
		}
	}
	if got[0].Encoded != "[S1]" || got[0].EnrollmentID != "e-S1" || !got[0].UpdatedAt.Equal(when) {
		t.Errorf("unexpected record %+v", got[0])
	}

	count, err := s.Count(ctx)
	if err != nil || count != 3 {
		t.Errorf("Count = %d, %v; want 3", count, err)
	}
}

func TestStore_UpsertAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveEmbedding(ctx, database.StoredEmbedding{Identity: "A", Encoded: "[1]"}); err != nil {
		t.Fatalf("SaveEmbedding failed: %v", err)
	}
	if err := s.SaveEmbedding(ctx, database.StoredEmbedding{Identity: "A", Encoded: "[2]"}); err != nil {
		t.Fatalf("SaveEmbedding failed: %v", err)
	}
	got, _ := s.LoadGallery(ctx)
	if len(got) != 1 || got[0].Encoded != "[2]" {
		t.Errorf("expected single replaced record, got %+v", got)
	}
	if got[0].UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be filled in")
	}

	has, err := s.HasEmbedding(ctx, "A")
	if err != nil || !has {
		t.Errorf("HasEmbedding(A) = %v, %v", has, err)
	}

	if err := s.DeleteEmbedding(ctx, "A"); err != nil {
		t.Fatalf("DeleteEmbedding failed: %v", err)
	}
	if err := s.DeleteEmbedding(ctx, "A"); err != nil {
		t.Fatalf("second DeleteEmbedding failed: %v", err)
	}
	has, err = s.HasEmbedding(ctx, "A")
	if err != nil || has {
		t.Errorf("HasEmbedding(A) after delete = %v, %v", has, err)
	}
}

func TestStore_SaveEmbeddingsBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	records := []database.StoredEmbedding{{Identity: "x", Encoded: "[1]"}, {Identity: "y", Encoded: "[2]"}}
	if err := s.SaveEmbeddings(ctx, records); err != nil {
		t.Fatalf("SaveEmbeddings failed: %v", err)
	}
	count, err := s.Count(ctx)
	if err != nil || count != 2 {
		t.Errorf("Count = %d, %v; want 2", count, err)
	}
}

func TestStore_RawValueSurfacesAsEncoded(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key("legacy"), []byte("[0.1, 0.2]"))
	})
	if err != nil {
		t.Fatalf("raw set failed: %v", err)
	}

	got, err := s.LoadGallery(ctx)
	if err != nil {
		t.Fatalf("LoadGallery failed: %v", err)
	}
	if len(got) != 1 || got[0].Encoded != "[0.1, 0.2]" {
		t.Errorf("expected raw value as encoded text, got %+v", got)
	}
}
