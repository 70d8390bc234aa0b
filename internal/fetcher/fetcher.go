package fetcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"eci-results-crawler/internal/models"
)

var tracer = otel.Tracer("eci-results-crawler/internal/fetcher")

type Config struct {
	Templates  Templates
	Settle     time.Duration
	Retries    uint
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Fetcher resolves keys to URLs and reads the rendered page through the
// session it was given. It never opens or closes the session itself.
type Fetcher struct {
	session Session
	cfg     Config
	log     *slog.Logger
}

func New(session Session, cfg Config) *Fetcher {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{session: session, cfg: cfg, log: log}
}

func (f *Fetcher) URL(key models.RegionKey) string { return f.cfg.Templates.URL(key) }

// Fetch navigates to the key's page, waits the settle delay and returns the
// rendered document. Failures are retried cfg.Retries times and then
// reported as *NavigationError; a cancelled ctx is returned as is.
func (f *Fetcher) Fetch(ctx context.Context, key models.RegionKey) (models.RawDocument, error) {
	return f.FetchURL(ctx, key, f.URL(key))
}

// FetchURL is Fetch for a page whose address is already known, such as one
// read back from an accepted-keys file. key only labels errors and spans.
func (f *Fetcher) FetchURL(ctx context.Context, key models.RegionKey, url string) (models.RawDocument, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("key", key.String()), attribute.String("url", url))

	var doc string
	err := retry.Do(
		func() error {
			if err := f.session.Navigate(ctx, url); err != nil {
				return err
			}
			if err := sleep(ctx, f.cfg.Settle); err != nil {
				return err
			}
			d, err := f.session.Document(ctx)
			if err != nil {
				return err
			}
			doc = d
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(f.cfg.Retries+1),
		retry.Delay(f.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
		retry.OnRetry(func(n uint, err error) {
			f.log.WarnContext(ctx, "retrying navigation", "key", key.String(), "attempt", n+1, "err", err)
		}),
	)
	if ctx.Err() != nil {
		span.SetStatus(codes.Error, "cancelled")
		return "", ctx.Err()
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "navigation failed")
		return "", &NavigationError{Key: key, URL: url, Err: err}
	}
	span.SetAttributes(attribute.Int("bytes", len(doc)))
	return models.RawDocument(doc), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
