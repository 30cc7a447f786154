package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/faceid/internal/config"
	"github.com/kozaktomas/faceid/internal/database"
	"github.com/kozaktomas/faceid/internal/database/local"
	"github.com/kozaktomas/faceid/internal/database/mariadb"
	"github.com/kozaktomas/faceid/internal/database/postgres"
	"github.com/kozaktomas/faceid/internal/embedding"
	"github.com/kozaktomas/faceid/internal/extractor"
	"github.com/kozaktomas/faceid/internal/recognition"
)

// initBackend connects the named gallery backend and registers it with the
// database package. The returned func releases its resources.
func initBackend(cfg *config.Config, name string, codec embedding.Codec) (func(), error) {
	switch name {
	case config.BackendPostgres:
		fmt.Printf("Connecting to PostgreSQL database...\n")
		if err := postgres.Initialize(&cfg.Database, codec); err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return func() { _ = postgres.GetGlobalPool().Close() }, nil

	case config.BackendMariaDB:
		fmt.Printf("Connecting to registry database (%s.%s)...\n", cfg.Registry.Table, cfg.Registry.EmbeddingColumn)
		pool, err := mariadb.Initialize(&cfg.Registry)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize registry database: %w", err)
		}
		return func() { _ = pool.Close() }, nil

	case config.BackendLocal:
		fmt.Printf("Opening local gallery store in %s...\n", cfg.Gallery.LocalDir)
		store, err := local.Initialize(local.Options{Dir: cfg.Gallery.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("failed to open local store: %w", err)
		}
		return func() { _ = store.Close() }, nil

	case config.BackendMemory:
		store, err := local.Open(local.Options{})
		if err != nil {
			return nil, fmt.Errorf("failed to open in-memory store: %w", err)
		}
		database.RegisterGalleryBackend(config.BackendMemory, func() database.GalleryWriter { return store })
		fmt.Printf("Using in-memory gallery (enrollments are lost on exit)\n")
		return func() { _ = store.Close() }, nil
	}
	return nil, fmt.Errorf("unknown gallery backend %q", name)
}

// openGallery initializes the configured backend and makes it active.
func openGallery(ctx context.Context, cfg *config.Config) (database.GalleryWriter, embedding.Codec, func(), error) {
	codec, err := embedding.CodecByName(cfg.Recognition.Codec)
	if err != nil {
		return nil, nil, nil, err
	}
	store, closeFn, err := selectBackend(ctx, cfg, cfg.Gallery.Backend, codec)
	if err != nil {
		return nil, nil, nil, err
	}
	return store, codec, closeFn, nil
}

// newService opens the gallery, builds the recognition service and loads
// the gallery into memory.
func newService(ctx context.Context, cfg *config.Config) (*recognition.Service, func(), error) {
	store, codec, closeFn, err := openGallery(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	var ext recognition.Extractor
	if cfg.Extractor.URL != "" {
		ext = extractor.NewClient(cfg.Extractor.URL, cfg.Extractor.MaxImageSize,
			time.Duration(cfg.Extractor.TimeoutSeconds)*time.Second)
	}

	svc, err := recognition.NewService(ext, store, codec, recognition.Options{
		Threshold: cfg.Recognition.Threshold,
		Neighbors: cfg.Recognition.Neighbors,
		IndexPath: cfg.Gallery.HNSWIndexPath,
		Logger:    slog.Default().With("component", "recognition"),
	})
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	if _, err := svc.Sync(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return svc, closeFn, nil
}
