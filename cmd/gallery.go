package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/faceid/internal/database"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect the enrolled gallery",
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	Args:  cobra.NoArgs,
	RunE:  runGalleryList,
}

var galleryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show gallery statistics",
	Args:  cobra.NoArgs,
	RunE:  runGalleryStats,
}

var galleryNeighborsCmd = &cobra.Command{
	Use:   "neighbors <identity>",
	Short: "Show the enrolled identities most similar to an identity",
	Long: `Show the enrolled identities whose faces are most similar to the given
identity's face. Pairs above the match threshold are likely duplicate
enrollments or look-alikes that will be confused at identification time.

Use --store to rank with the backend's own vector search (postgres only).`,
	Args: cobra.ExactArgs(1),
	RunE: runGalleryNeighbors,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.AddCommand(galleryListCmd)
	galleryCmd.AddCommand(galleryStatsCmd)
	galleryCmd.AddCommand(galleryNeighborsCmd)

	galleryListCmd.Flags().Bool("json", false, "Output as JSON")
	galleryStatsCmd.Flags().Bool("json", false, "Output as JSON")
	galleryNeighborsCmd.Flags().Int("k", 0, "Number of neighbors (0 = FACE_NEIGHBORS)")
	galleryNeighborsCmd.Flags().Bool("store", false, "Use the backend's vector search")
	galleryNeighborsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runGalleryList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, _, closeFn, err := openGallery(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	records, err := store.LoadGallery(ctx)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		if records == nil {
			records = []database.StoredEmbedding{}
		}
		return outputJSON(records)
	}

	if len(records) == 0 {
		fmt.Println("No enrolled identities")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tENROLLMENT\tUPDATED")
	for _, r := range records {
		updated := "-"
		if !r.UpdatedAt.IsZero() {
			updated = r.UpdatedAt.Format("2006-01-02 15:04")
		}
		enrollment := r.EnrollmentID
		if enrollment == "" {
			enrollment = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Identity, enrollment, updated)
	}
	w.Flush()
	fmt.Printf("\nTotal: %d identities\n", len(records))
	return nil
}

func runGalleryStats(cmd *cobra.Command, args []string) error {
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

	stats := svc.Stats()
	if mustGetBool(cmd, "json") {
		return outputJSON(stats)
	}

	fmt.Printf("Backend:    %s\n", database.ActiveBackend())
	fmt.Printf("Identities: %d\n", stats.Count)
	fmt.Printf("Indexed:    %d\n", stats.Indexed)
	fmt.Printf("Threshold:  %.2f\n", stats.Threshold)
	if len(stats.Corrupt) > 0 {
		fmt.Printf("Corrupt:    %d\n", len(stats.Corrupt))
		for _, id := range stats.Corrupt {
			fmt.Printf("  %s\n", id)
		}
	}
	return nil
}

func runGalleryNeighbors(cmd *cobra.Command, args []string) error {
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

	k := mustGetInt(cmd, "k")
	search := svc.Neighbors
	if mustGetBool(cmd, "store") {
		search = svc.NearestStored
	}
	neighbors, err := search(ctx, args[0], k)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(neighbors)
	}

	if len(neighbors) == 0 {
		fmt.Printf("No other identities enrolled\n")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IDENTITY\tSIMILARITY\t")
	for _, n := range neighbors {
		marker := ""
		if n.Similarity >= svc.Threshold() {
			marker = "above threshold"
		}
		fmt.Fprintf(w, "%s\t%.2f%%\t%s\n", n.Identity, n.Similarity*100, marker)
	}
	w.Flush()
	return nil
}
