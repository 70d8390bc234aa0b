package main

import (
	"context"
	"fmt"
	"time"

	"eci-results-crawler/internal/classifier"
	"eci-results-crawler/internal/crawler"
	"eci-results-crawler/internal/fetcher"
	"eci-results-crawler/internal/ioformats"
	"eci-results-crawler/internal/models"
	"eci-results-crawler/internal/parser"
	"eci-results-crawler/internal/sink"
)

// artifactTimeout bounds the final writes, which still run after the crawl
// context has been cancelled.
const artifactTimeout = 2 * time.Minute

var openSession = fetcher.Open

// withCrawler opens the browsing session, builds the crawler around it and
// hands it to fn. The session is closed on every path.
func withCrawler(ctx context.Context, settle time.Duration, fn func(*crawler.Crawler) error) (err error) {
	sweeps, err := cfg.Sweeps()
	if err != nil {
		return err
	}

	session, err := openSession(ctx, fetcher.Options{
		Driver:            cfg.Fetch.Driver,
		Headless:          cfg.Fetch.Headless,
		ChromePath:        cfg.Fetch.ChromePath,
		NavigationTimeout: cfg.Fetch.NavigationTimeout(),
		SizeCap:           5 * 1024 * 1024,
	})
	if err != nil {
		return fmt.Errorf("open %s session: %w", cfg.Fetch.Driver, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn("closing session", "err", cerr)
		}
	}()

	f := fetcher.New(session, fetcher.Config{
		Templates:  cfg.Site.Templates(),
		Settle:     settle,
		Retries:    cfg.Fetch.Retries,
		RetryDelay: cfg.Fetch.RetryDelay(),
		Logger:     log,
	})
	cr := crawler.New(f, classifier.New(cfg.Site.ValidityMarker), crawler.Options{
		Sweeps:          sweeps,
		MaxConstituency: cfg.Sweep.MaxConstituencyNumber,
		RunID:           runID,
		Logger:          log,
	})
	return fn(cr)
}

func newParser() *parser.Parser {
	return parser.New(parser.Selectors{Table: cfg.Site.TableSelector, Header: cfg.Site.HeaderSelector})
}

func writeKeys(ctx context.Context, dest string, keys []models.AcceptedKey) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), artifactTimeout)
	defer cancel()

	d, err := sink.Open(ctx, dest)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.WriteAcceptedKeys(ctx, keys); err != nil {
		return err
	}
	log.Info("wrote accepted keys", "dest", d.URI(), "format", d.Format(), "keys", len(keys))
	return nil
}

func writeDataset(ctx context.Context, dest string, ds *models.ResultDataset) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), artifactTimeout)
	defer cancel()

	d, err := sink.Open(ctx, dest)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.WriteDataset(ctx, ds); err != nil {
		return err
	}
	log.Info("wrote dataset", "dest", d.URI(), "format", d.Format(), "records", ds.Len(), "columns", len(ds.Columns()))
	return nil
}

func readKeys(ctx context.Context, src string) ([]models.AcceptedKey, error) {
	if _, err := ioformats.FormatFromPath(src); err != nil {
		// local key file without a known extension: sniff csv, then ndjson
		return ioformats.ReadAcceptedKeys(src)
	}
	d, err := sink.Open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.ReadAcceptedKeys(ctx)
}
