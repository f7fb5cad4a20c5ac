package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/glam-tools/wikimapper/internal/analyzer"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <dataset>",
		Short: "Summarize the fields of a dataset",
		Long: `Loads a dataset (JSON, JSONL or Parquet) and reports every field with its
frequency, value type, sample value and any recognized identifier.`,
		Example: `  wikimapper analyze collection.json
  wikimapper analyze export.parquet --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := analyzer.NewLoader(args[0]).Load()
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}
			slog.Info("Dataset loaded", "path", args[0], "items", len(records))

			keys := analyzer.Analyze(records)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(keys)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tTYPE\tFREQUENCY\tIDENTIFIER\tSAMPLE")
			for _, k := range keys {
				identifier := ""
				if k.HasIdentifier {
					identifier = fmt.Sprintf("%s (%s)", k.IdentifierInfo.PropertyID, k.IdentifierInfo.Label)
				}
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
					k.Key, k.Type, k.Frequency, k.TotalItems, identifier, k.SampleValue)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the analysis as JSON")

	return cmd
}
