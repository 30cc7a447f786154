package mariadb

import (
	"strings"
	"testing"

	"github.com/kozaktomas/faceid/internal/config"
)

func TestNewRegistry_Queries(t *testing.T) {
	reg, err := NewRegistry(&Pool{}, &config.RegistryConfig{
		Table:           "students",
		IDColumn:        "id",
		EmbeddingColumn: "face_embedding",
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	want := "SELECT `id`, `face_embedding` FROM `students` WHERE `face_embedding` IS NOT NULL ORDER BY `id`"
	if reg.selectAll != want {
		t.Errorf("selectAll = %q, want %q", reg.selectAll, want)
	}
	if !strings.Contains(reg.clear, "SET `face_embedding` = NULL") {
		t.Errorf("clear query does not null the column: %q", reg.clear)
	}
}

func TestNewRegistry_RejectsUnsafeIdentifiers(t *testing.T) {
	tests := []config.RegistryConfig{
		{Table: "students; DROP TABLE x", IDColumn: "id", EmbeddingColumn: "face_embedding"},
		{Table: "students", IDColumn: "", EmbeddingColumn: "face_embedding"},
		{Table: "students", IDColumn: "id", EmbeddingColumn: "face`embedding"},
		{Table: "1students", IDColumn: "id", EmbeddingColumn: "face_embedding"},
	}
	for _, cfg := range tests {
		if _, err := NewRegistry(&Pool{}, &cfg); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}
