package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"eci-results-crawler/internal/fetcher"
	"eci-results-crawler/internal/models"
)

var tracer = otel.Tracer("eci-results-crawler/internal/crawler")

type Fetcher interface {
	URL(key models.RegionKey) string
	Fetch(ctx context.Context, key models.RegionKey) (models.RawDocument, error)
	FetchURL(ctx context.Context, key models.RegionKey, url string) (models.RawDocument, error)
}

type Classifier interface {
	Valid(doc models.RawDocument) bool
}

type Extractor interface {
	Extract(ctx context.Context, key models.RegionKey, url string, doc models.RawDocument) (models.ConstituencyPage, error)
}

// Sweep is one key space: region codes 1..MaxRegionCode of Kind.
type Sweep struct {
	Kind          models.RegionKind
	MaxRegionCode int
}

// Visitor receives every accepted key with its document, in probe order.
// An error returned by Accept aborts the crawl.
type Visitor interface {
	Accept(ctx context.Context, ak models.AcceptedKey, doc models.RawDocument) error
}

// RegionVisitor is optionally implemented by a Visitor that wants to hear
// about region boundaries. BeginRegion may return skip=true to leave the
// region unprobed.
type RegionVisitor interface {
	BeginRegion(ctx context.Context, kind models.RegionKind, code int) (skip bool, err error)
	EndRegion(ctx context.Context, kind models.RegionKind, code int) error
}

type Options struct {
	Sweeps          []Sweep
	MaxConstituency int
	RunID           string
	Logger          *slog.Logger
}

type Crawler struct {
	fetch    Fetcher
	classify Classifier
	opts     Options
	log      *slog.Logger
}

func New(f Fetcher, cl Classifier, opts Options) *Crawler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Crawler{fetch: f, classify: cl, opts: opts, log: log}
}

// Run sweeps every configured key space in order. Within a region the
// constituency numbers are probed 1, 2, 3, ... until the region stops.
func (c *Crawler) Run(ctx context.Context, v Visitor) (sum models.Summary, err error) {
	start := time.Now()
	sum.RunID = c.opts.RunID
	defer func() { sum.Duration = time.Since(start) }()

	rv, _ := v.(RegionVisitor)
	for _, sw := range c.opts.Sweeps {
		c.log.InfoContext(ctx, "starting sweep", "kind", sw.Kind, "max_region_code", sw.MaxRegionCode)
		for code := 1; code <= sw.MaxRegionCode; code++ {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			if rv != nil {
				skip, err := rv.BeginRegion(ctx, sw.Kind, code)
				if err != nil {
					return sum, err
				}
				if skip {
					continue
				}
			}
			if err := c.sweepRegion(ctx, sw.Kind, code, v, &sum); err != nil {
				return sum, err
			}
			if rv != nil {
				if err := rv.EndRegion(ctx, sw.Kind, code); err != nil {
					return sum, err
				}
			}
		}
	}
	return sum, nil
}

func (c *Crawler) sweepRegion(ctx context.Context, kind models.RegionKind, code int, v Visitor, sum *models.Summary) error {
	ctx, span := tracer.Start(ctx, "SweepRegion")
	defer span.End()

	r := newRegion(kind, code, c.opts.MaxConstituency)
	for r.state == scanning {
		key := r.key()
		url := c.fetch.URL(key)
		sum.KeysProbed++

		doc, err := c.fetch.Fetch(ctx, key)
		switch {
		case err == nil && c.classify.Valid(doc):
			sum.KeysAccepted++
			c.log.InfoContext(ctx, "page exists", "key", key.String(), "url", url)
			if err := v.Accept(ctx, models.AcceptedKey{Key: key, URL: url}, doc); err != nil {
				return err
			}
			r.observe(accepted)
		case err == nil:
			c.log.InfoContext(ctx, "invalid page, stopping region", "key", key.String(), "url", url)
			r.observe(rejected)
		case errors.Is(err, fetcher.ErrNavigation):
			c.log.WarnContext(ctx, "navigation failed, stopping region", "key", key.String(), "url", url, "err", err)
			sum.NavigationFailures = append(sum.NavigationFailures, models.KeyFailure{Key: key, URL: url, Error: err.Error()})
			r.observe(failed)
		default:
			// cancellation or a fault outside the page itself
			return fmt.Errorf("probe %s: %w", key, err)
		}
	}

	if r.reason == stopCeiling {
		c.log.WarnContext(ctx, "probe ceiling reached", "kind", kind, "region_code", code, "ceiling", c.opts.MaxConstituency)
		sum.CeilingHits = append(sum.CeilingHits, r.key())
	}
	sum.RegionsSwept++
	span.SetAttributes(
		attribute.String("kind", string(kind)),
		attribute.Int("region_code", code),
		attribute.Int("accepted", r.accepted),
		attribute.String("stop", r.reason.String()),
	)
	return nil
}
