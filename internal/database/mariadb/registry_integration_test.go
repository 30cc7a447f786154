//go:build integration

package mariadb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/faceid/internal/config"
	"github.com/kozaktomas/faceid/internal/database"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "mariadb:11",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MARIADB_ROOT_PASSWORD": "test",
			"MARIADB_DATABASE":      "school",
		},
		WaitingFor: wait.ForLog("ready for connections").
			WithOccurrence(2).
			WithStartupTimeout(90 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	pool, err := NewPool(fmt.Sprintf("root:test@tcp(%s:%s)/school", host, port.Port()))
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create pool: %v", err)
	}

	schema := []string{
		`CREATE TABLE students (id INT PRIMARY KEY, name VARCHAR(100), face_embedding TEXT NULL)`,
		`INSERT INTO students (id, name) VALUES (1, 'Ana'), (2, 'Ben'), (3, 'Cleo')`,
	}
	for _, stmt := range schema {
		if _, err := pool.DB().ExecContext(ctx, stmt); err != nil {
			pool.Close()
			container.Terminate(ctx)
			t.Fatalf("Failed to prepare schema: %v", err)
		}
	}

	return pool, func() {
		pool.Close()
		container.Terminate(ctx)
	}
}

func TestRegistry(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	reg, err := NewRegistry(pool, &config.RegistryConfig{Table: "students", IDColumn: "id", EmbeddingColumn: "face_embedding"})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	count, err := reg.Count(ctx)
	if err != nil || count != 0 {
		t.Fatalf("Expected empty gallery, got %d, %v", count, err)
	}

	if err := reg.SaveEmbedding(ctx, database.StoredEmbedding{Identity: "2", Encoded: "[0.1, 0.2]"}); err != nil {
		t.Fatalf("SaveEmbedding failed: %v", err)
	}
	if err := reg.SaveEmbedding(ctx, database.StoredEmbedding{Identity: "1", Encoded: "[0.3, 0.4]"}); err != nil {
		t.Fatalf("SaveEmbedding failed: %v", err)
	}

	err = reg.SaveEmbedding(ctx, database.StoredEmbedding{Identity: "99", Encoded: "[1]"})
	if !errors.Is(err, database.ErrUnknownIdentity) {
		t.Errorf("Expected ErrUnknownIdentity, got %v", err)
	}

	got, err := reg.LoadGallery(ctx)
	if err != nil {
		t.Fatalf("LoadGallery failed: %v", err)
	}
	if len(got) != 2 || got[0].Identity != "1" || got[1].Encoded != "[0.1, 0.2]" {
		t.Errorf("Unexpected gallery: %+v", got)
	}

	has, err := reg.HasEmbedding(ctx, "3")
	if err != nil || has {
		t.Errorf("Expected no embedding for 3, got %v, %v", has, err)
	}

	if err := reg.DeleteEmbedding(ctx, "2"); err != nil {
		t.Fatalf("DeleteEmbedding failed: %v", err)
	}
	has, err = reg.HasEmbedding(ctx, "2")
	if err != nil || has {
		t.Errorf("Expected embedding cleared for 2, got %v, %v", has, err)
	}

	var name string
	if err := pool.DB().QueryRowContext(ctx, "SELECT name FROM students WHERE id = 2").Scan(&name); err != nil || name != "Ben" {
		t.Errorf("Clearing must keep the student row, got %q, %v", name, err)
	}
}
