package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pricescout/backend/internal/app"
)

var (
	servePort  string
	serveGrace time.Duration
)

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "Listen port (overrides server.port)")
	serveCmd.Flags().DurationVar(&serveGrace, "grace", 10*time.Second, "How long to drain in-flight requests on shutdown")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != "" {
			cfg.Server.Port = servePort
		}

		service, err := app.New(cfg, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return service.Run(ctx, serveGrace)
	},
}
