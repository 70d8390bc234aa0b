package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"eci-results-crawler/internal/assembler"
	"eci-results-crawler/internal/crawler"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [keys-file]",
	Short: "Extract the results tables of a discovered key list",
	Long: `Reads an accepted-keys file (default output.accepted_keys) and extracts
every listed page in file order. Older files with a state_code column are
accepted too.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		src := cfg.Output.AcceptedKeys
		if len(args) == 1 {
			src = args[0]
		}
		keys, err := readKeys(ctx, src)
		if err != nil {
			return fmt.Errorf("read keys: %w", err)
		}
		log.Info("loaded keys", "src", src, "keys", len(keys))

		asm := assembler.New()
		return withCrawler(ctx, cfg.Fetch.ScrapeSettle(), func(cr *crawler.Crawler) error {
			sum, scrapeErr := cr.Scrape(ctx, keys, newParser(), asm)
			err := writeDataset(ctx, cfg.Output.Dataset, asm.Finalize())
			printSummary(cmd.OutOrStdout(), sum)
			if scrapeErr != nil {
				return errors.Join(fmt.Errorf("scrape: %w", scrapeErr), err)
			}
			return err
		})
	},
}
