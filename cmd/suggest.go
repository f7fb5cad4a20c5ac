package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/glam-tools/wikimapper/internal/analyzer"
	"github.com/glam-tools/wikimapper/internal/suggest"
	"github.com/spf13/cobra"
)

func newSuggestCmd() *cobra.Command {
	var (
		model  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "suggest <dataset>",
		Short: "Suggest property mappings for a dataset's fields",
		Long: `Asks an LLM to propose a property for each dataset field.

Suggestions are advisory: nothing is mapped automatically, the output is meant
to seed the wizard. Requires GEMINI_API_KEY.`,
		Example: `  wikimapper suggest collection.json
  wikimapper suggest collection.json --model gemini-2.0-flash --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := analyzer.NewLoader(args[0]).Load()
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}
			keys := analyzer.Analyze(records)
			slog.Info("Requesting mapping suggestions", "fields", len(keys))

			suggestCfg := suggest.Config{
				Model:       cfg.Suggest.Model,
				Temperature: cfg.Suggest.Temperature,
			}
			if model != "" {
				suggestCfg.Model = model
			}

			suggestions := suggest.SuggestMappings(cmd.Context(), suggest.NewGemini(), suggestCfg, keys)
			if len(suggestions) == 0 {
				slog.Warn("No usable suggestions returned")
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(suggestions)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tPROPERTY\tLABEL\tCONFIDENCE\tREASON")
			for _, s := range suggestions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n", s.Key, s.PropertyID, s.Label, s.Confidence, s.Reason)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Override the configured LLM model")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit suggestions as JSON")

	return cmd
}
