package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/beacon/internal/classify"
	"github.com/ppiankov/beacon/internal/llm"
	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/retrieval"
	"github.com/ppiankov/beacon/internal/util"
)

var (
	rankK        int
	rankMulti    bool
	rankCategory string
	rankJSON     bool
)

var rankCmd = &cobra.Command{
	Use:   "rank <query>",
	Short: "Rank knowledge base evidence for a question",
	Long: `Rank retrieves the passages that best answer a question, ordered by authority
then similarity, with applied corrections overriding stale passages.

Example:
  beacon rank "Alt-2 filing requirements"
  beacon rank --k 3 --category Zoning "R6 floor area ratio"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRank,
}

var (
	classifyJSON bool
	classifyTier string
)

var classifyCmd = &cobra.Command{
	Use:   "classify <text>",
	Short: "Classify a question into a topic and pick a reasoning tier",
	Long: `Classify assigns one of the fixed topics and shows which reasoning tier would answer it.

Example:
  beacon classify "Do I need an FDNY sign-off for a sprinkler alteration?"
  beacon classify --tier capable "Can we file an Alt-1 without a PAA?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(classifyCmd)

	rankCmd.Flags().IntVarP(&rankK, "k", "k", 0, "evidence entries to return (default: retrieval.top_k)")
	rankCmd.Flags().BoolVar(&rankMulti, "multi", false, "keep more than one passage per source file")
	rankCmd.Flags().StringVar(&rankCategory, "category", "", "restrict the search to a document category")
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "print evidence as JSON")

	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "print the classification as JSON")
	classifyCmd.Flags().StringVar(&classifyTier, "tier", string(llm.TierFast), "reasoning tier that classifies (fast, capable)")
}

func runRank(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	p, _, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	query := strings.Join(args, " ")
	opts := retrieval.Options{K: rankK, MultiChunkPerFile: rankMulti}
	if rankCategory != "" {
		opts.Filters = retrieval.Filters{"category": rankCategory}
	}
	evidence := p.Ranker.Rank(ctx, query, opts)

	if rankJSON {
		if evidence == nil {
			evidence = []model.Evidence{}
		}
		return printJSON(evidence)
	}

	if len(evidence) == 0 {
		fmt.Println("No evidence found.")
		return nil
	}
	if model.LowConfidence(evidence) {
		fmt.Println("⚠️  Low confidence: no authoritative source supports this answer")
		fmt.Println()
	}
	for i, e := range evidence {
		marker := ""
		if e.Corrected() {
			marker = " [corrected]"
		}
		fmt.Printf("%d. %s (tier %d, similarity %.2f)%s\n", i+1, e.SourceFile, e.Authority, e.Similarity, marker)
		fmt.Printf("   %s\n", util.Truncate(strings.Join(strings.Fields(e.Text), " "), 160))
	}
	if verbose {
		fmt.Println()
		fmt.Println(retrieval.FormatContext(evidence))
	}
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	tier, err := llm.ParseTier(classifyTier)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	p, _, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	text := strings.Join(args, " ")
	c := p.ClassifierFor(tier).Classify(ctx, text)
	decision := classify.Decide(text, c.Topic)

	if classifyJSON {
		return printJSON(map[string]any{
			"topic":        c.Topic,
			"confidence":   c.Confidence,
			"source":       c.Source,
			"tier":         decision.Tier,
			"route_reason": decision.Reason,
		})
	}

	fmt.Printf("Topic:      %s\n", c.Topic)
	fmt.Printf("Confidence: %.2f (%s)\n", c.Confidence, c.Source)
	fmt.Printf("Tier:       %s (%s)\n", decision.Tier, decision.Reason)
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
