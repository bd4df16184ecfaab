// Package cli implements the document-qa command line.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-qa/internal/app"
	"document-qa/internal/config"
)

const defaultConfigPath = "./configs/config.yaml"

var (
	configPath string
	cfg        *config.Config

	// newApp is replaced in tests.
	newApp = app.New
)

var rootCmd = &cobra.Command{
	Use:   "document-qa",
	Short: "Ask questions about a single ingested document",
	Long: `document-qa indexes one document at a time and answers questions
using only that document's content. Ingesting a new document replaces
the previous one.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		setupLogger(cmd.ErrOrStderr(), cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to the config file")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setupLogger(w io.Writer, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

// openApp builds the pipeline for a command and logs the loaded config.
func openApp(cmd *cobra.Command) (*app.App, error) {
	log.Debug().Interface("config", cfg).Msg("Loaded config")
	return newApp(cmd.Context(), cfg)
}
