package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"embedbot/internal/journal"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func historyCmd() *cobra.Command {
	var (
		limit     int
		batchID   string
		asYAML    bool
		pruneDays int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent deliveries from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			if !cfg.Journal.Enabled {
				return errors.New("journal is disabled (journal.enabled=false)")
			}
			store, err := journal.Open(cfg.Journal.DBPath, logger)
			if err != nil {
				return fmt.Errorf("journal: %w", err)
			}
			defer store.Close()

			ctx := context.Background()

			if pruneDays > 0 {
				n, err := store.Prune(ctx, time.Now().AddDate(0, 0, -pruneDays))
				if err != nil {
					return fmt.Errorf("prune: %w", err)
				}
				logger.Info("journal pruned", "rows", n)
				return nil
			}

			var entries []journal.Entry
			if batchID != "" {
				entries, err = store.Batch(ctx, batchID)
			} else {
				entries, err = store.Recent(ctx, limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asYAML {
				data, err := yaml.Marshal(entries)
				if err != nil {
					return fmt.Errorf("marshal history: %w", err)
				}
				fmt.Fprint(out, string(data))
				return nil
			}
			return writeHistoryTable(out, entries)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of deliveries to show")
	cmd.Flags().StringVar(&batchID, "batch", "", "show every delivery of one batch")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print entries as YAML")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "delete deliveries older than this many days instead of listing")
	return cmd
}

func writeHistoryTable(w io.Writer, entries []journal.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tBATCH\tSEQ\tPLATFORM\tTARGET\tSTRATEGY\tEMBEDS\tFILES\tBYTES\tSTATUS\tERROR")
	for _, e := range entries {
		batch := e.BatchID
		if len(batch) > 8 {
			batch = batch[:8]
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			batch, e.Seq, e.Platform, e.Target, e.Strategy,
			e.Embeds, e.Files, e.Bytes, e.Status, e.Error,
		)
	}
	return tw.Flush()
}
