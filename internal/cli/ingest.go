package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/beacon/internal/publish"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <chunks.yaml|chunks.json>...",
	Short: "Load document chunks into the vector store",
	Long: `Ingest embeds document chunks and stores them for ranking. Requires OPENAI_API_KEY
(or OPENAI_BASE_URL pointing at a compatible embeddings endpoint).

Chunk file format:
  chunks:
    - text: "Alt-2 filing requirements: PW1, plans, schedule B"
      source_file: alt2_comprehensive_guide.md
      source_type: technical_bulletin
      category: DOB Filings
      last_updated: 2025-11-03`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var (
	publishAngle  string
	publishURL    string
	publishFormat string
)

var publishCmd = &cobra.Command{
	Use:     "publish <title>",
	Short:   "Record published content so analysis stops recommending it",
	Example: `  beacon publish "The DOB permit process explained" --url https://example.com/blog/dob-permit-process`,
	Args:    cobra.ExactArgs(1),
	RunE:    runPublish,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVar(&publishAngle, "angle", "", "content angle")
	publishCmd.Flags().StringVar(&publishURL, "url", "", "published URL")
	publishCmd.Flags().StringVar(&publishFormat, "format", "", "content format (blog_post, guide, newsletter_mention)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	p, _, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	total := 0
	for _, path := range args {
		n, err := p.Ingest(ctx, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		fmt.Printf("✓ %s: %d chunks\n", path, n)
		total += n
	}
	fmt.Printf("\nIngested %d chunks (%d in store)\n", total, p.Vectors.Count())
	return nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	index, err := publish.Load(cfg.Publish.Catalog, cfg.Publish.MatchThreshold)
	if err != nil {
		return err
	}
	if similar := index.FindSimilar(args[0]); len(similar) > 0 {
		fmt.Printf("⚠️  Similar content already published: %q\n", similar[0].Title)
	}

	index.Add(publish.Content{
		Title:     args[0],
		Angle:     publishAngle,
		URL:       publishURL,
		Format:    publishFormat,
		Published: time.Now().Format("2006-01-02"),
	})
	if err := index.Save(cfg.Publish.Catalog); err != nil {
		return err
	}
	fmt.Printf("✓ Recorded %q in %s (%d items)\n", args[0], cfg.Publish.Catalog, index.Len())
	return nil
}
