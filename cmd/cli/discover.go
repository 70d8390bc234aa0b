package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"eci-results-crawler/internal/crawler"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Record which constituency pages exist without extracting them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withCrawler(ctx, cfg.Fetch.Settle(), func(cr *crawler.Crawler) error {
			log.Info("starting discovery", "run_id", runID, "driver", cfg.Fetch.Driver)
			keys, sum, crawlErr := cr.Discover(ctx)
			err := writeKeys(ctx, cfg.Output.AcceptedKeys, keys)
			printSummary(cmd.OutOrStdout(), sum)
			if crawlErr != nil {
				return errors.Join(fmt.Errorf("discover: %w", crawlErr), err)
			}
			return err
		})
	},
}
