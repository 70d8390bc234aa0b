package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"eci-results-crawler/internal/parser"
)

// HTTPSession is a session without a JavaScript engine. It serves pages that
// render server-side and local test servers.
type HTTPSession struct {
	client  *resty.Client
	sizeCap int64

	mu     sync.Mutex
	doc    string
	loaded bool
	closed bool
}

func NewHTTPSession(timeout, dialTimeout time.Duration, sizeCap int64) *HTTPSession {
	if sizeCap <= 0 {
		sizeCap = 5 * 1024 * 1024
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	client := resty.New().
		SetTransport(transport).
		SetTimeout(timeout).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Encoding", "gzip").
		SetHeader("User-Agent", "eci-results-crawler/1.0")
	return &HTTPSession{client: client, sizeCap: sizeCap}
}

func (h *HTTPSession) Navigate(ctx context.Context, rawURL string) error {
	h.mu.Lock()
	closed := h.closed
	h.doc, h.loaded = "", false
	h.mu.Unlock()
	if closed {
		return errors.New("session closed")
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid url %q", rawURL)
	}

	resp, err := h.client.R().SetContext(ctx).Get(u.String())
	if err != nil {
		return err
	}
	raw := resp.RawBody()
	defer raw.Close()

	// A 4xx page is rendered like any other, as a browser would; whether it
	// is a result page is for the classifier to decide.
	if resp.StatusCode() >= 500 {
		return fmt.Errorf("http status %d", resp.StatusCode())
	}

	contentType := resp.Header().Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.Contains(mediaType, "text/html") && !strings.Contains(mediaType, "application/xhtml+xml") && mediaType != "" {
		// still allow if empty (some servers omit), otherwise reject non-html
		return errors.New("non-html content")
	}

	var body io.Reader = raw
	if strings.EqualFold(resp.Header().Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(raw)
		if err != nil {
			return err
		}
		defer gz.Close()
		body = gz
	}

	doc, err := parser.Decode(io.LimitReader(body, h.sizeCap), contentType)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.doc, h.loaded = doc, true
	h.mu.Unlock()
	return nil
}

func (h *HTTPSession) Document(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return "", errors.New("no document loaded")
	}
	return h.doc, nil
}

func (h *HTTPSession) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	h.client.GetClient().CloseIdleConnections()
	return nil
}
