package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"eci-results-crawler/internal/models"
)

// Session is a controllable browser. One session serves a whole crawl and is
// driven by one probe at a time.
type Session interface {
	// Navigate loads url and blocks until the navigation completes or fails.
	Navigate(ctx context.Context, url string) error
	// Document returns the current rendered document.
	Document(ctx context.Context) (string, error)
	// Close releases the session. Calling it more than once is safe.
	Close() error
}

const (
	DriverChrome = "chrome"
	DriverHTTP   = "http"
)

type Options struct {
	Driver            string
	Headless          bool
	ChromePath        string
	NavigationTimeout time.Duration
	SizeCap           int64
}

// Open acquires the session for the selected driver. Callers own the
// returned session and must Close it on every path.
func Open(ctx context.Context, opts Options) (Session, error) {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	switch strings.ToLower(opts.Driver) {
	case DriverChrome, "":
		return NewChromeSession(ctx, opts.ChromePath, opts.Headless, opts.NavigationTimeout)
	case DriverHTTP:
		return NewHTTPSession(opts.NavigationTimeout, 5*time.Second, opts.SizeCap), nil
	}
	return nil, fmt.Errorf("unknown fetch driver %q", opts.Driver)
}

// Templates holds the base URLs for the two key spaces.
type Templates struct {
	StateBase string
	UTBase    string
}

const (
	DefaultStateBase = "https://results.eci.gov.in/PcResultGenJune2024/ConstituencywiseS"
	DefaultUTBase    = "https://results.eci.gov.in/PcResultGenJune2024/ConstituencywiseU"
)

func (t Templates) URL(key models.RegionKey) string {
	base := t.StateBase
	if key.Kind == models.UnionTerritory {
		base = t.UTBase
	}
	return fmt.Sprintf("%s%02d%d.htm", base, key.RegionCode, key.ConstituencyNumber)
}

var ErrNavigation = errors.New("navigation failed")

// NavigationError means the page for Key could not be loaded or read.
type NavigationError struct {
	Key models.RegionKey
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s (%s): %v", e.Key, e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

func (e *NavigationError) Is(target error) bool { return target == ErrNavigation }
