package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"eci-results-crawler/internal/assembler"
	"eci-results-crawler/internal/crawler"
	"eci-results-crawler/internal/store"
)

var resume bool

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Discover every constituency page and extract its results table",
	Long: `Sweeps states, then union territories. Within each region the
constituency numbers are probed from 1 upward until the first page that
does not carry the validity marker. Accepted pages are extracted as they
are found.

With output.checkpoint set, every finished region is committed to a
SQLite file and --resume replays those regions instead of probing them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var cp crawler.Checkpoint
		if path := cfg.Output.Checkpoint; path != "" {
			st, err := store.Open(ctx, path, runID)
			if err != nil {
				return err
			}
			defer st.Close()
			if !resume {
				if err := st.Reset(ctx); err != nil {
					return err
				}
			}
			cp = st
		} else if resume {
			return errors.New("--resume needs output.checkpoint to be set")
		}

		asm := assembler.New()
		return withCrawler(ctx, cfg.Fetch.Settle(), func(cr *crawler.Crawler) error {
			log.Info("starting crawl", "run_id", runID, "driver", cfg.Fetch.Driver, "resume", resume)
			keys, sum, crawlErr := cr.Crawl(ctx, newParser(), asm, cp)
			ds := asm.Finalize()

			// Whatever was collected is written even when the crawl was cut short.
			err := errors.Join(
				writeKeys(ctx, cfg.Output.AcceptedKeys, keys),
				writeDataset(ctx, cfg.Output.Dataset, ds),
			)
			printSummary(cmd.OutOrStdout(), sum)
			if crawlErr != nil {
				return errors.Join(fmt.Errorf("crawl: %w", crawlErr), err)
			}
			return err
		})
	},
}

func init() {
	crawlCmd.Flags().BoolVar(&resume, "resume", false, "replay regions already committed to the checkpoint")
	crawlCmd.Flags().String("checkpoint", "", "sqlite checkpoint file (overrides output.checkpoint)")
	_ = v.BindPFlag("output.checkpoint", crawlCmd.Flags().Lookup("checkpoint"))
}
