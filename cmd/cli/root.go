package main

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"eci-results-crawler/internal/config"
	"eci-results-crawler/pkg/logger"
)

var (
	cfgFile string
	v       = viper.New()

	cfg   config.Config
	log   *slog.Logger
	runID string
)

var rootCmd = &cobra.Command{
	Use:   "eci-crawler",
	Short: "Discover and scrape constituency-wise election results",
	Long: `eci-crawler walks the constituency-wise result pages of the Election
Commission of India results site, state by state and union territory by
union territory, and flattens every candidate table into one dataset.

  crawl     discover and extract in one pass
  discover  only record which pages exist (valid_urls.csv)
  scrape    extract a previously discovered key list`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" {
			return nil
		}
		var err error
		cfg, err = config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		log = logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		slog.SetDefault(log)
		runID = uuid.NewString()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml)",
	)
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().String("driver", "chrome", "fetch driver: chrome or http")
	rootCmd.PersistentFlags().Bool("headless", false, "run the browser headless")
	rootCmd.PersistentFlags().String("keys", "", "accepted keys file or bucket URL (overrides output.accepted_keys)")
	rootCmd.PersistentFlags().String("dataset", "", "dataset file or bucket URL (overrides output.dataset)")

	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("fetch.driver", rootCmd.PersistentFlags().Lookup("driver"))
	_ = v.BindPFlag("fetch.headless", rootCmd.PersistentFlags().Lookup("headless"))
	_ = v.BindPFlag("output.accepted_keys", rootCmd.PersistentFlags().Lookup("keys"))
	_ = v.BindPFlag("output.dataset", rootCmd.PersistentFlags().Lookup("dataset"))

	rootCmd.AddCommand(crawlCmd, discoverCmd, scrapeCmd, configCmd)
}
