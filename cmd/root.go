package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/faceid/internal/config"
)

var backendOverride string

var rootCmd = &cobra.Command{
	Use:   "faceid",
	Short: "Face identification against an enrolled gallery",
	Long: `faceid matches face embeddings against a gallery of enrolled identities.

It keeps one embedding per identity, identifies new faces by cosine
similarity and serves the same operations over an HTTP API. Embeddings
come from an external face extraction server or are submitted directly.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&backendOverride, "backend", "",
		"Gallery backend: memory, postgres, mariadb or local (overrides GALLERY_BACKEND)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
}

// loadConfig returns the validated configuration with command line overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if backendOverride != "" {
		cfg.Gallery.Backend = backendOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
