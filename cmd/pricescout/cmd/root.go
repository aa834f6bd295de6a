package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pricescout/backend/config"
	"github.com/pricescout/backend/internal/logging"
)

var logLevel string

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pricescout",
	Short: "pricescout compares hardware prices across B&Q, Screwfix and Toolstation",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		cfg = loaded
		// stdout belongs to command output
		logger = logging.NewWithWriter(os.Stderr, cfg.Server.Environment, cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "",
		"Log level: debug, info, warn, error (overrides configuration)")
}

// Execute runs the command line
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
