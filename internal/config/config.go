package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Gallery backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
	BackendLocal    = "local"
)

type Config struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Extractor   ExtractorConfig   `yaml:"extractor"`
	Gallery     GalleryConfig     `yaml:"gallery"`
	Registry    RegistryConfig    `yaml:"registry"`
	Database    DatabaseConfig    `yaml:"database"`
	Web         WebConfig         `yaml:"web"`
	LogLevel    string            `yaml:"log_level"`
}

type RecognitionConfig struct {
	Threshold float64 `yaml:"threshold"` // minimum cosine similarity for a match, in (0,1)
	Codec     string  `yaml:"codec"`     // stored embedding text format: json or pgvector
	Neighbors int     `yaml:"neighbors"` // how many neighbors to report for duplicate checks
}

type ExtractorConfig struct {
	URL            string `yaml:"url"`            // face embedding server (POST /embed/face)
	MaxImageSize   int    `yaml:"max_image_size"` // long side in pixels before upload
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type GalleryConfig struct {
	Backend       string `yaml:"backend"`         // memory, postgres, mariadb or local
	LocalDir      string `yaml:"local_dir"`       // BadgerDB directory for the local backend (empty = in-memory)
	HNSWIndexPath string `yaml:"hnsw_index_path"` // optional path to persist the neighbor index
}

// RegistryConfig points at the external person registry whose table keeps
// one embedding per row in a text column.
type RegistryConfig struct {
	DatabaseURL     string `yaml:"database_url"` // MySQL/MariaDB DSN
	Table           string `yaml:"table"`
	IDColumn        string `yaml:"id_column"`
	EmbeddingColumn string `yaml:"embedding_column"`
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`            // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS origins besides localhost
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float.
// Returns the default value if the env var is unset, empty, or not a number.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f
	}
	return defaultVal
}

// envString returns the env var or the default when unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma-separated env var, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the configuration baked into the binary.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// embedded file, can only fail on a broken build
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load returns the defaults overridden by environment variables.
func Load() *Config {
	d := Defaults()

	return &Config{
		Recognition: RecognitionConfig{
			Threshold: envFloat("FACE_SIMILARITY_THRESHOLD", d.Recognition.Threshold),
			Codec:     envString("FACE_EMBEDDING_CODEC", d.Recognition.Codec),
			Neighbors: envInt("FACE_NEIGHBORS", d.Recognition.Neighbors),
		},
		Extractor: ExtractorConfig{
			URL:            envString("EXTRACTOR_URL", d.Extractor.URL),
			MaxImageSize:   envInt("EXTRACTOR_MAX_IMAGE_SIZE", d.Extractor.MaxImageSize),
			TimeoutSeconds: envInt("EXTRACTOR_TIMEOUT_SECONDS", d.Extractor.TimeoutSeconds),
		},
		Gallery: GalleryConfig{
			Backend:       strings.ToLower(envString("GALLERY_BACKEND", d.Gallery.Backend)),
			LocalDir:      envString("LOCAL_STORE_DIR", d.Gallery.LocalDir),
			HNSWIndexPath: envString("HNSW_INDEX_PATH", d.Gallery.HNSWIndexPath),
		},
		Registry: RegistryConfig{
			DatabaseURL:     envString("REGISTRY_DATABASE_URL", d.Registry.DatabaseURL),
			Table:           envString("REGISTRY_TABLE", d.Registry.Table),
			IDColumn:        envString("REGISTRY_ID_COLUMN", d.Registry.IDColumn),
			EmbeddingColumn: envString("REGISTRY_EMBEDDING_COLUMN", d.Registry.EmbeddingColumn),
		},
		Database: DatabaseConfig{
			URL:          envString("DATABASE_URL", d.Database.URL),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", d.Web.Host),
			Port: envInt("WEB_PORT", d.Web.Port),

			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS", d.Web.AllowedOrigins),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
	}
}

// Validate checks the values the matcher and backends cannot work without.
func (c *Config) Validate() error {
	var errs []error

	if t := c.Recognition.Threshold; !(t > 0 && t < 1) {
		errs = append(errs, fmt.Errorf("FACE_SIMILARITY_THRESHOLD must be in (0, 1), got %v", t))
	}
	switch strings.ToLower(c.Recognition.Codec) {
	case "json", "pgvector":
	default:
		errs = append(errs, fmt.Errorf("FACE_EMBEDDING_CODEC must be json or pgvector, got %q", c.Recognition.Codec))
	}

	switch c.Gallery.Backend {
	case BackendMemory, BackendLocal:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL environment variable is required for the postgres backend"))
		}
	case BackendMariaDB:
		if c.Registry.DatabaseURL == "" {
			errs = append(errs, errors.New("REGISTRY_DATABASE_URL environment variable is required for the mariadb backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GALLERY_BACKEND %q", c.Gallery.Backend))
	}

	return errors.Join(errs...)
}

// SlogLevel maps LogLevel to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
