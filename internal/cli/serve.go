package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the ranking, classification and content-opportunity API",
	Long: `Serve starts the HTTP API:

  GET  /api/content/opportunities?window=30&min_frequency=2
  POST /api/content/opportunities   {"window": 30, "minFrequency": 2}
  GET  /api/rank?q=...&k=5
  POST /api/classify                {"text": "..."}
  POST /api/questions               {"user_id": "...", "text": "..."}
  GET  /healthz

Example:
  beacon serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, _, err := openPipeline(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn().Err(err).Msg("close pipeline")
		}
	}()

	return p.Server().ListenAndServe(ctx)
}
