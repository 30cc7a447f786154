package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/faceid/internal/config"
	"github.com/kozaktomas/faceid/internal/database"
	"github.com/kozaktomas/faceid/internal/embedding"
	"github.com/kozaktomas/faceid/internal/recognition"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copy a gallery from one backend to another",
	Long: `Copy every enrolled embedding from one gallery backend to another.

Each record is decoded and validated before it is written; corrupt records
are reported and skipped. The usual use is moving a registry database's
embedding column into PostgreSQL or a local store.

Examples:
  # Preview an import from the registry
  faceid import --from mariadb --to postgres --dry-run

  # Import into a local store, re-encoding as pgvector text
  faceid import --from mariadb --to local --to-codec pgvector`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("from", config.BackendMariaDB, "Source backend")
	importCmd.Flags().String("to", config.BackendPostgres, "Destination backend")
	importCmd.Flags().String("from-codec", embedding.CodecJSON, "Encoding of the source records")
	importCmd.Flags().String("to-codec", "", "Encoding for the destination (default FACE_EMBEDDING_CODEC)")
	importCmd.Flags().Bool("dry-run", false, "Validate records without writing")
	importCmd.Flags().Bool("json", false, "Output summary as JSON")
}

// importSummary is the JSON output of the import command
type importSummary struct {
	From    string   `json:"from"`
	To      string   `json:"to"`
	DryRun  bool     `json:"dry_run"`
	Total   int      `json:"total"`
	Copied  int      `json:"copied"`
	Corrupt []string `json:"corrupt"`
}

func runImport(cmd *cobra.Command, args []string) error {
	from := mustGetString(cmd, "from")
	to := mustGetString(cmd, "to")
	dryRun := mustGetBool(cmd, "dry-run")
	jsonOutput := mustGetBool(cmd, "json")
	if from == to {
		return errors.New("--from and --to must name different backends")
	}
	if to == config.BackendMemory {
		return errors.New("importing into the memory backend has no effect")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fromCodec, err := embedding.CodecByName(mustGetString(cmd, "from-codec"))
	if err != nil {
		return err
	}
	toCodecName := mustGetString(cmd, "to-codec")
	if toCodecName == "" {
		toCodecName = cfg.Recognition.Codec
	}
	toCodec, err := embedding.CodecByName(toCodecName)
	if err != nil {
		return err
	}

	ctx := context.Background()
	src, closeSrc, err := selectBackend(ctx, cfg, from, fromCodec)
	if err != nil {
		return err
	}
	defer closeSrc()
	dst, closeDst, err := selectBackend(ctx, cfg, to, toCodec)
	if err != nil {
		return err
	}
	defer closeDst()

	total, err := src.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting source records: %w", err)
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Importing embeddings"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("faces"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	summary := importSummary{From: from, To: to, DryRun: dryRun, Corrupt: []string{}}
	stats, err := recognition.CopyGallery(ctx, src, dst, recognition.CopyOptions{
		From:   fromCodec,
		To:     toCodec,
		DryRun: dryRun,
		OnRecord: func(r database.StoredEmbedding, err error) {
			if err != nil {
				summary.Corrupt = append(summary.Corrupt, r.Identity)
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}
	summary.Total = stats.Total
	summary.Copied = stats.Copied

	if jsonOutput {
		return outputJSON(summary)
	}

	verb := "Imported"
	if dryRun {
		verb = "Would import"
	}
	fmt.Printf("%s %d of %d embeddings from %s to %s\n", verb, stats.Copied, stats.Total, from, to)
	if len(summary.Corrupt) > 0 {
		fmt.Printf("Skipped %d corrupt records:\n", len(summary.Corrupt))
		for _, id := range summary.Corrupt {
			fmt.Printf("  %s\n", id)
		}
	}
	return nil
}

// selectBackend initializes a backend and returns its store.
func selectBackend(ctx context.Context, cfg *config.Config, name string, codec embedding.Codec) (database.GalleryWriter, func(), error) {
	closeFn, err := initBackend(cfg, name, codec)
	if err != nil {
		return nil, nil, err
	}
	if err := database.UseGalleryBackend(name); err != nil {
		closeFn()
		return nil, nil, err
	}
	store, err := database.GetGalleryWriter(ctx)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return store, closeFn, nil
}
