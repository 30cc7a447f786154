package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/faceid/internal/recognition"
)

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Identify a face against the gallery",
	Long: `Identify the face in an image, or a precomputed embedding, against the
enrolled gallery.

Examples:
  # Identify a face photo (requires EXTRACTOR_URL)
  faceid identify --image visitor.jpg

  # Identify a stored embedding with a stricter threshold
  faceid identify --embedding face.json --threshold 0.7

  # Output as JSON
  faceid identify --image visitor.jpg --json`,
	Args: cobra.NoArgs,
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)

	identifyCmd.Flags().String("image", "", "Path to a face image")
	identifyCmd.Flags().String("embedding", "", "Path to a JSON file with a face embedding")
	identifyCmd.Flags().Float64("threshold", 0, "Minimum similarity for a match (0 = configured default)")
	identifyCmd.Flags().Bool("json", false, "Output as JSON")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	src := faceSource{imagePath: mustGetString(cmd, "image"), embeddingPath: mustGetString(cmd, "embedding")}
	if err := src.validate(); err != nil {
		return err
	}
	threshold := mustGetFloat64(cmd, "threshold")
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	svc, closeFn, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	var id *recognition.Identification
	if src.imagePath != "" {
		img, err := src.readImage()
		if err != nil {
			return err
		}
		id, err = svc.Identify(ctx, img, threshold)
		if err != nil {
			return err
		}
	} else {
		v, err := src.readEmbedding()
		if err != nil {
			return err
		}
		id, err = svc.IdentifyEmbedding(ctx, v, threshold)
		if err != nil {
			return err
		}
	}

	if jsonOutput {
		return outputJSON(id)
	}

	fmt.Println(id.Message)
	fmt.Printf("Scanned %d identities", id.Scanned)
	if id.Skipped > 0 {
		fmt.Printf(", skipped %d corrupt", id.Skipped)
	}
	fmt.Println()
	return nil
}
