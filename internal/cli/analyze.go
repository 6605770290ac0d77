package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/beacon/internal/analysis"
	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/util"
)

var (
	analyzeWindow       int
	analyzeMinFrequency int
	analyzeJSON         string
	analyzeTimeout      time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score content opportunities from the question log",
	Long: `Analyze clusters the questions asked in the trailing window, checks the knowledge
base and the published catalogue for each cluster, and scores what is worth writing.

Example:
  beacon analyze
  beacon analyze --window 14 --min-frequency 3
  beacon analyze --json opportunities.json`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().IntVar(&analyzeWindow, "window", 0, "trailing window in days (default: analysis.window_days)")
	analyzeCmd.Flags().IntVar(&analyzeMinFrequency, "min-frequency", 0, "minimum questions per cluster (default: analysis.min_frequency)")
	analyzeCmd.Flags().StringVar(&analyzeJSON, "json", "", "write the report as JSON to this path ('-' for stdout)")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 10*time.Minute, "overall analysis timeout")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
	defer cancel()

	p, _, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	report, err := p.Analysis.Analyze(ctx, analysis.Request{WindowDays: analyzeWindow, MinFrequency: analyzeMinFrequency})
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if analyzeJSON != "" {
		return writeReportJSON(report, analyzeJSON)
	}
	printReport(report)
	return nil
}

func writeReportJSON(report *model.AnalysisReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if path == "-" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote %d opportunities to %s\n", report.OpportunitiesFound, path)
	return nil
}

func printReport(report *model.AnalysisReport) {
	fmt.Printf("Analyzed %d questions in %.2fs, found %d opportunities\n\n",
		report.QuestionsAnalyzed, report.AnalysisTimeSeconds, report.OpportunitiesFound)
	if report.OpportunitiesFound == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tPRIORITY\tFORMAT\tASKED\tDEMAND\tEXPERTISE\tRELEVANCE\tTITLE")
	for _, o := range report.Opportunities {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			o.OverallScore, o.Priority, o.RecommendedFormat, o.QuestionCount,
			o.DemandScore, o.ExpertiseScore, o.RelevanceScore, util.Truncate(o.Title, 60))
	}
	_ = w.Flush()

	if !verbose {
		return
	}
	for _, o := range report.Opportunities {
		fmt.Printf("\n%s\n", o.Title)
		fmt.Printf("  angle:     %s\n", o.ContentAngle)
		fmt.Printf("  reasoning: %s\n", o.Reasoning)
		if len(o.KnowledgeDocs) > 0 {
			fmt.Printf("  docs:      %s\n", strings.Join(o.KnowledgeDocs, ", "))
		}
	}
}
