package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeSession drives a Chrome instance through the DevTools protocol.
type ChromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration

	closeOnce sync.Once
	closeErr  error
}

func NewChromeSession(ctx context.Context, execPath string, headless bool, timeout time.Duration) (*ChromeSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", headless))
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	// the browser outlives individual probe contexts
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// first Run starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, err
	}
	return &ChromeSession{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		timeout:     timeout,
	}, nil
}

// run executes actions on the browser tab, bounded by the navigation timeout
// and by ctx.
func (c *ChromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(c.ctx, c.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tctx, actions...)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *ChromeSession) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

func (c *ChromeSession) Document(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (c *ChromeSession) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = chromedp.Cancel(c.ctx)
		c.cancel()
		c.allocCancel()
	})
	return c.closeErr
}
