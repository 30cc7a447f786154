package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/faceid/internal/recognition"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll <identity>",
	Short: "Enroll or replace the face for an identity",
	Long: `Store the face embedding for an identity, replacing any previous one.

Examples:
  faceid enroll S1024 --image passport.jpg
  faceid enroll S1024 --embedding face.json --backend postgres`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

var removeCmd = &cobra.Command{
	Use:   "remove <identity>",
	Short: "Remove the enrolled face of an identity",
	Long: `Remove the enrolled face of an identity. Removing an identity without
an enrolled face is not an error.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(removeCmd)

	enrollCmd.Flags().String("image", "", "Path to a face image")
	enrollCmd.Flags().String("embedding", "", "Path to a JSON file with a face embedding")
	enrollCmd.Flags().Bool("json", false, "Output as JSON")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	src := faceSource{imagePath: mustGetString(cmd, "image"), embeddingPath: mustGetString(cmd, "embedding")}
	if err := src.validate(); err != nil {
		return err
	}

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

	var enrollment *recognition.Enrollment
	if src.imagePath != "" {
		img, err := src.readImage()
		if err != nil {
			return err
		}
		enrollment, err = svc.Enroll(ctx, args[0], img)
		if err != nil {
			return err
		}
	} else {
		v, err := src.readEmbedding()
		if err != nil {
			return err
		}
		enrollment, err = svc.EnrollEmbedding(ctx, args[0], v)
		if err != nil {
			return err
		}
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(enrollment)
	}

	fmt.Printf("Enrolled %s (enrollment %s)\n", enrollment.Identity, enrollment.EnrollmentID)
	for _, d := range enrollment.PossibleDuplicates {
		fmt.Printf("  Warning: resembles %s (similarity: %.2f%%)\n", d.Identity, d.Similarity*100)
	}
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
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

	removed, err := svc.Clear(ctx, args[0])
	if err != nil {
		return err
	}
	if removed {
		fmt.Printf("Removed face of %s\n", args[0])
	} else {
		fmt.Printf("%s had no enrolled face\n", args[0])
	}
	return nil
}
