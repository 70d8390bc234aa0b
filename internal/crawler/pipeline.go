package crawler

import (
	"context"
	"log/slog"
	"time"

	"eci-results-crawler/internal/assembler"
	"eci-results-crawler/internal/models"
)

// RegionRecord is everything a finished region contributed to a run.
type RegionRecord struct {
	Accepted []models.AcceptedKey
	Pages    []models.ConstituencyPage
	Failures []models.KeyFailure
}

// Checkpoint persists finished regions so an interrupted crawl can resume.
type Checkpoint interface {
	Region(ctx context.Context, kind models.RegionKind, code int) (RegionRecord, bool, error)
	CommitRegion(ctx context.Context, kind models.RegionKind, code int, rec RegionRecord) error
}

// Discover runs the sweeps and only collects the accepted keys.
func (c *Crawler) Discover(ctx context.Context) ([]models.AcceptedKey, models.Summary, error) {
	col := &collector{}
	sum, err := c.Run(ctx, col)
	return col.keys, sum, err
}

type collector struct {
	keys []models.AcceptedKey
}

func (col *collector) Accept(_ context.Context, ak models.AcceptedKey, _ models.RawDocument) error {
	col.keys = append(col.keys, ak)
	return nil
}

// Crawl runs the sweeps and extracts every accepted page into asm. A failed
// extraction is recorded for its key and never affects the sweep. When cp is
// non-nil, regions already committed are replayed from it instead of probed.
func (c *Crawler) Crawl(ctx context.Context, ex Extractor, asm *assembler.Assembler, cp Checkpoint) ([]models.AcceptedKey, models.Summary, error) {
	p := &pipeline{ex: ex, asm: asm, cp: cp, log: c.log}
	sum, err := c.Run(ctx, p)
	sum.ExtractionFailures = append(sum.ExtractionFailures, p.failures...)
	sum.RegionsReplayed = p.replayed
	sum.KeysAccepted += p.replayedKeys
	sum.Records = asm.Dataset().Len()
	return p.accepted, sum, err
}

type pipeline struct {
	ex  Extractor
	asm *assembler.Assembler
	cp  Checkpoint
	log *slog.Logger

	accepted     []models.AcceptedKey
	failures     []models.KeyFailure
	current      RegionRecord
	replayed     int
	replayedKeys int
}

func (p *pipeline) BeginRegion(ctx context.Context, kind models.RegionKind, code int) (bool, error) {
	p.current = RegionRecord{}
	if p.cp == nil {
		return false, nil
	}
	rec, ok, err := p.cp.Region(ctx, kind, code)
	if err != nil || !ok {
		return false, err
	}
	for _, page := range rec.Pages {
		if _, err := p.asm.Add(page); err != nil {
			return false, err
		}
	}
	p.accepted = append(p.accepted, rec.Accepted...)
	p.failures = append(p.failures, rec.Failures...)
	p.replayed++
	p.replayedKeys += len(rec.Accepted)
	p.log.InfoContext(ctx, "replayed region from checkpoint", "kind", kind, "region_code", code, "pages", len(rec.Pages), "extraction_failures", len(rec.Failures))
	return true, nil
}

func (p *pipeline) Accept(ctx context.Context, ak models.AcceptedKey, doc models.RawDocument) error {
	p.accepted = append(p.accepted, ak)
	p.current.Accepted = append(p.current.Accepted, ak)

	page, err := p.ex.Extract(ctx, ak.Key, ak.URL, doc)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.ErrorContext(ctx, "extraction failed", "key", ak.Key.String(), "url", ak.URL, "err", err)
		failure := models.KeyFailure{Key: ak.Key, URL: ak.URL, Error: err.Error()}
		p.failures = append(p.failures, failure)
		p.current.Failures = append(p.current.Failures, failure)
		return nil
	}
	if len(page.Rows) == 0 {
		p.log.DebugContext(ctx, "page has no rows", "key", ak.Key.String())
	}
	if _, err := p.asm.Add(page); err != nil {
		return err
	}
	p.current.Pages = append(p.current.Pages, page)
	return nil
}

func (p *pipeline) EndRegion(ctx context.Context, kind models.RegionKind, code int) error {
	if p.cp == nil {
		return nil
	}
	return p.cp.CommitRegion(ctx, kind, code, p.current)
}

// Scrape fetches a known list of keys, such as the output of Discover, and
// extracts each page into asm in list order. There is no stopping rule here:
// every key in the list is attempted once.
func (c *Crawler) Scrape(ctx context.Context, keys []models.AcceptedKey, ex Extractor, asm *assembler.Assembler) (sum models.Summary, err error) {
	start := time.Now()
	sum.RunID = c.opts.RunID
	defer func() {
		sum.Duration = time.Since(start)
		sum.Records = asm.Dataset().Len()
	}()

	for _, ak := range keys {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		url := ak.URL
		if url == "" {
			url = c.fetch.URL(ak.Key)
		}
		sum.KeysProbed++
		c.log.InfoContext(ctx, "scraping", "key", ak.Key.String(), "url", url)

		doc, err := c.fetch.FetchURL(ctx, ak.Key, url)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			c.log.ErrorContext(ctx, "fetch failed", "key", ak.Key.String(), "err", err)
			sum.NavigationFailures = append(sum.NavigationFailures, models.KeyFailure{Key: ak.Key, URL: url, Error: err.Error()})
			continue
		}
		if !c.classify.Valid(doc) {
			c.log.ErrorContext(ctx, "validity marker missing", "key", ak.Key.String())
			sum.ExtractionFailures = append(sum.ExtractionFailures, models.KeyFailure{Key: ak.Key, URL: url, Error: "validity marker missing"})
			continue
		}
		sum.KeysAccepted++

		page, err := ex.Extract(ctx, ak.Key, url, doc)
		if err != nil {
			c.log.ErrorContext(ctx, "extraction failed", "key", ak.Key.String(), "err", err)
			sum.ExtractionFailures = append(sum.ExtractionFailures, models.KeyFailure{Key: ak.Key, URL: url, Error: err.Error()})
			continue
		}
		if _, err := asm.Add(page); err != nil {
			return sum, err
		}
	}
	return sum, nil
}
