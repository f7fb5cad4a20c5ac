package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/glam-tools/wikimapper/internal/analyzer"
	"github.com/glam-tools/wikimapper/internal/mapping"
	"github.com/glam-tools/wikimapper/internal/propcache"
	"github.com/glam-tools/wikimapper/internal/recon"
	"github.com/glam-tools/wikimapper/internal/schema"
	"github.com/glam-tools/wikimapper/internal/wikibase"
	"github.com/spf13/cobra"
)

// cellResult is one reconciled cell in the batch report.
type cellResult struct {
	ItemID     string           `json:"itemId"`
	Key        string           `json:"key"`
	PropertyID string           `json:"propertyId"`
	ValueIndex int              `json:"valueIndex"`
	Value      string           `json:"value"`
	Result     recon.Result     `json:"result"`
	Best       *recon.Candidate `json:"best,omitempty"`
}

func newReconcileCmd() *cobra.Command {
	var (
		mappingPath string
		output      string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "reconcile <dataset>",
		Short: "Batch-reconcile a dataset against its mapping document",
		Long: `Runs the matching engine over every mapped field of a dataset.

The mapping document produced by the wizard (or the schema export endpoint)
decides which fields are reconciled; each cell value is matched against the
reconciliation service and the results are written as a JSON report.`,
		Example: `  wikimapper reconcile collection.json --mapping mapping.json
  wikimapper reconcile export.parquet --mapping mapping.json -o results.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := analyzer.NewLoader(args[0]).Load()
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}

			data, err := os.ReadFile(mappingPath)
			if err != nil {
				return fmt.Errorf("failed to read mapping document: %w", err)
			}
			keys := analyzer.Analyze(records)
			currentKeys := make([]string, 0, len(keys))
			for _, k := range keys {
				currentKeys = append(currentKeys, k.Key)
			}
			state := mapping.NewState()
			if _, err := schema.Deserialize(data, currentKeys, state); err != nil {
				return fmt.Errorf("failed to load mapping document: %w", err)
			}

			client := wikibase.NewClient(cfg.Wikibase.APIURL, cfg.Wikibase.Language)
			cache := propcache.New(client, cfg.Cache.TTL, cfg.Wikibase.ConstraintProperty)
			engine := recon.NewEngine(cfg, client, cache, recon.NewCellStore())

			snapshot := state.Snapshot()
			slog.Info("Starting batch reconciliation",
				"dataset", args[0], "items", len(records), "mappedKeys", len(snapshot.Mapped), "concurrency", concurrency)
			for _, mapped := range snapshot.Mapped {
				if mapped.NotInCurrentDataset {
					slog.Warn("Skipping mapped key absent from dataset", "key", mapped.Key)
				}
			}

			var requests []recon.Request
			byKey := make(map[recon.CellKey]*cellResult)
			for i, record := range records {
				itemID := analyzer.ItemID(record, i)
				for _, mapped := range snapshot.Mapped {
					if mapped.NotInCurrentDataset {
						continue
					}
					values := analyzer.Values(record, mapped.Key)
					if len(values) == 0 {
						continue
					}
					// sibling mapped fields of the same record disambiguate
					context := analyzer.ContextFor(record, snapshot.Mapped, mapped.Key)
					for idx, value := range values {
						req := recon.Request{
							ItemID:     itemID,
							Property:   mapped.Property,
							ValueIndex: idx,
							Value:      value,
							Context:    context,
						}
						requests = append(requests, req)
						byKey[recon.CellKey{ItemID: itemID, Property: mapped.Property.ID, ValueIndex: idx}] = &cellResult{
							ItemID:     itemID,
							Key:        mapped.Key,
							PropertyID: mapped.Property.ID,
							ValueIndex: idx,
							Value:      value,
						}
					}
				}
			}

			// Process cells with concurrency control
			var wg sync.WaitGroup
			semaphore := make(chan struct{}, concurrency)
			var mu sync.Mutex
			for _, req := range requests {
				wg.Add(1)
				go func(req recon.Request) {
					defer wg.Done()
					semaphore <- struct{}{}        // Acquire
					defer func() { <-semaphore }() // Release

					result, err := engine.Reconcile(cmd.Context(), req)
					if err != nil {
						slog.Warn("Reconciliation aborted", "item", req.ItemID, "property", req.Property.ID, "err", err)
						return
					}
					mu.Lock()
					row := byKey[recon.CellKey{ItemID: req.ItemID, Property: req.Property.ID, ValueIndex: req.ValueIndex}]
					row.Result = result
					if len(result.Candidates) > 0 {
						best := result.Candidates[0]
						row.Best = &best
					}
					mu.Unlock()
				}(req)
			}
			wg.Wait()

			report := make([]cellResult, 0, len(requests))
			for _, req := range requests {
				report = append(report, *byKey[recon.CellKey{ItemID: req.ItemID, Property: req.Property.ID, ValueIndex: req.ValueIndex}])
			}

			out := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}

			slog.Info("Batch reconciliation finished", "cells", len(report))
			return nil
		},
	}

	cmd.Flags().StringVarP(&mappingPath, "mapping", "m", "", "Mapping document exported by the wizard (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Number of cells reconciled in parallel")
	_ = cmd.MarkFlagRequired("mapping")

	return cmd
}
