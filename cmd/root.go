package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/glam-tools/wikimapper/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	verbose bool
	cfg     *config.Config
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wikimapper",
		Short: "Map collection metadata fields to Wikibase properties",
		Long: `Wikimapper turns heterogeneous JSON collection exports into Wikibase-ready
statements.

It analyzes dataset fields, maps them to properties, reconciles cell values
against entities, and round-trips the whole mapping as a portable document.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			if verbose {
				slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}

			var err error
			cfg, err = config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to a wikimapper.yaml config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newReconcileCmd())
	cmd.AddCommand(newSuggestCmd())

	return cmd
}
