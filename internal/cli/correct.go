package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/beacon/internal/model"
	"github.com/ppiankov/beacon/internal/util"
)

var (
	correctTopics  []string
	correctPending bool
)

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Manage the correction overlay",
	Long: `Corrections replace wrong knowledge base statements at ranking time.
Applied corrections take effect immediately; suggested ones wait for review.`,
}

var correctApplyCmd = &cobra.Command{
	Use:     "apply <wrong text> <correct text>",
	Short:   "Apply a correction immediately",
	Example: `  beacon correct apply "Alt-2 needs only a PW1" "Alt-2 also needs a TR1 for special inspections" --topic "DOB Filings"`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCorrections(func(ctx context.Context, s correctionStore) error {
			c, err := s.ApplyCorrection(ctx, args[0], args[1], correctTopics)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Applied correction %s\n", c.ID)
			return nil
		})
	},
}

var correctSuggestCmd = &cobra.Command{
	Use:   "suggest <wrong text> <correct text>",
	Short: "Record a correction for review",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCorrections(func(ctx context.Context, s correctionStore) error {
			c, err := s.SuggestCorrection(ctx, args[0], args[1], correctTopics)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Suggested correction %s (pending review)\n", c.ID)
			fmt.Printf("  Promote it with: beacon correct promote %s\n", c.ID)
			return nil
		})
	},
}

var correctPromoteCmd = &cobra.Command{
	Use:   "promote <id>",
	Short: "Promote a pending correction to applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCorrections(func(ctx context.Context, s correctionStore) error {
			c, err := s.Promote(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("✓ Applied correction %s\n", c.ID)
			return nil
		})
	},
}

var correctListCmd = &cobra.Command{
	Use:   "list",
	Short: "List corrections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCorrections(func(ctx context.Context, s correctionStore) error {
			corrections := s.All()
			if correctPending {
				corrections = s.ListPending()
			}
			printCorrections(corrections)
			return nil
		})
	},
}

// correctionStore is the part of the overlay the correct commands use
type correctionStore interface {
	ApplyCorrection(ctx context.Context, wrong, correct string, topics []string) (model.Correction, error)
	SuggestCorrection(ctx context.Context, wrong, correct string, topics []string) (model.Correction, error)
	Promote(ctx context.Context, id string) (model.Correction, error)
	ListPending() []model.Correction
	All() []model.Correction
}

func withCorrections(fn func(ctx context.Context, s correctionStore) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	p, _, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer p.Close()
	return fn(ctx, p.Corrections)
}

func printCorrections(corrections []model.Correction) {
	if len(corrections) == 0 {
		fmt.Println("No corrections.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tWRONG\tCORRECT")
	for _, c := range corrections {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			c.ID, c.Status, c.CreatedAt.Format("2006-01-02"),
			util.Truncate(c.WrongText, 40), util.Truncate(c.CorrectText, 40))
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(correctCmd)
	correctCmd.AddCommand(correctApplyCmd, correctSuggestCmd, correctPromoteCmd, correctListCmd)

	correctApplyCmd.Flags().StringSliceVar(&correctTopics, "topic", nil, "topic the correction belongs to (repeatable)")
	correctSuggestCmd.Flags().StringSliceVar(&correctTopics, "topic", nil, "topic the correction belongs to (repeatable)")
	correctListCmd.Flags().BoolVar(&correctPending, "pending", false, "only show corrections awaiting review")
}
