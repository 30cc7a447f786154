package config

import (
	"log/slog"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Recognition.Threshold != 0.5 {
		t.Errorf("expected default threshold 0.5, got %v", cfg.Recognition.Threshold)
	}
	if cfg.Recognition.Codec != "json" {
		t.Errorf("expected default codec 'json', got '%s'", cfg.Recognition.Codec)
	}
	if cfg.Gallery.Backend != BackendMemory {
		t.Errorf("expected default backend '%s', got '%s'", BackendMemory, cfg.Gallery.Backend)
	}
	if cfg.Registry.Table != "students" || cfg.Registry.EmbeddingColumn != "face_embedding" {
		t.Errorf("unexpected registry defaults: %+v", cfg.Registry)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FACE_SIMILARITY_THRESHOLD", "0.62")
	t.Setenv("GALLERY_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/faceid")
	t.Setenv("EXTRACTOR_MAX_IMAGE_SIZE", "1024")
	t.Setenv("WEB_PORT", "9000")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://kiosk.example.com, ,https://admin.example.com")

	cfg := Load()

	if cfg.Recognition.Threshold != 0.62 {
		t.Errorf("expected threshold 0.62, got %v", cfg.Recognition.Threshold)
	}
	if cfg.Gallery.Backend != BackendPostgres {
		t.Errorf("expected backend postgres, got '%s'", cfg.Gallery.Backend)
	}
	if cfg.Extractor.MaxImageSize != 1024 {
		t.Errorf("expected max image size 1024, got %d", cfg.Extractor.MaxImageSize)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Web.Port)
	}
	if len(cfg.Web.AllowedOrigins) != 2 || cfg.Web.AllowedOrigins[1] != "https://admin.example.com" {
		t.Errorf("unexpected allowed origins %v", cfg.Web.AllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("FACE_SIMILARITY_THRESHOLD", "high")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "-3")

	cfg := Load()

	if cfg.Recognition.Threshold != 0.5 {
		t.Errorf("expected fallback threshold 0.5, got %v", cfg.Recognition.Threshold)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected fallback 25, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"threshold zero", func(c *Config) { c.Recognition.Threshold = 0 }, "FACE_SIMILARITY_THRESHOLD"},
		{"threshold one", func(c *Config) { c.Recognition.Threshold = 1 }, "FACE_SIMILARITY_THRESHOLD"},
		{"codec", func(c *Config) { c.Recognition.Codec = "csv" }, "FACE_EMBEDDING_CODEC"},
		{"backend", func(c *Config) { c.Gallery.Backend = "redis" }, "GALLERY_BACKEND"},
		{"postgres without url", func(c *Config) { c.Gallery.Backend = BackendPostgres }, "DATABASE_URL"},
		{"mariadb without dsn", func(c *Config) { c.Gallery.Backend = BackendMariaDB }, "REGISTRY_DATABASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing '%s', got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.in}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
