package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eci-results-crawler/internal/models"
)

type flakySession struct {
	failures int
	calls    int
	urls     []string
}

func (s *flakySession) Navigate(_ context.Context, url string) error {
	s.calls++
	s.urls = append(s.urls, url)
	if s.calls <= s.failures {
		return errors.New("connection reset")
	}
	return nil
}

func (s *flakySession) Document(context.Context) (string, error) { return "<html>ok</html>", nil }

func (s *flakySession) Close() error { return nil }

var templates = Templates{StateBase: "https://host/ConstituencywiseS", UTBase: "https://host/ConstituencywiseU"}

func TestTemplatesURL(t *testing.T) {
	require.Equal(t, "https://host/ConstituencywiseS0712.htm",
		templates.URL(models.RegionKey{Kind: models.State, RegionCode: 7, ConstituencyNumber: 12}))
	require.Equal(t, "https://host/ConstituencywiseU031.htm",
		templates.URL(models.RegionKey{Kind: models.UnionTerritory, RegionCode: 3, ConstituencyNumber: 1}))
	require.Equal(t, "https://host/ConstituencywiseS2980.htm",
		templates.URL(models.RegionKey{Kind: models.State, RegionCode: 29, ConstituencyNumber: 80}))
}

func TestFetchRetriesNavigation(t *testing.T) {
	s := &flakySession{failures: 2}
	f := New(s, Config{Templates: templates, Retries: 2})
	key := models.RegionKey{Kind: models.State, RegionCode: 1, ConstituencyNumber: 1}

	doc, err := f.Fetch(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, models.RawDocument("<html>ok</html>"), doc)
	require.Equal(t, 3, s.calls)
	require.Equal(t, "https://host/ConstituencywiseS011.htm", s.urls[0])
}

func TestFetchURLUsesGivenAddress(t *testing.T) {
	s := &flakySession{}
	f := New(s, Config{Templates: templates})
	key := models.RegionKey{Kind: models.State, RegionCode: 1, ConstituencyNumber: 1}

	_, err := f.FetchURL(context.Background(), key, "https://archive/PcResultGenJune2019/ConstituencywiseS011.htm")
	require.NoError(t, err)
	require.Equal(t, []string{"https://archive/PcResultGenJune2019/ConstituencywiseS011.htm"}, s.urls)
}

func TestFetchNavigationError(t *testing.T) {
	s := &flakySession{failures: 10}
	f := New(s, Config{Templates: templates, Retries: 1})
	key := models.RegionKey{Kind: models.UnionTerritory, RegionCode: 2, ConstituencyNumber: 4}

	_, err := f.Fetch(context.Background(), key)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNavigation))

	var ne *NavigationError
	require.True(t, errors.As(err, &ne))
	require.Equal(t, key, ne.Key)
	require.Equal(t, "https://host/ConstituencywiseU024.htm", ne.URL)
	require.Equal(t, 2, s.calls)
}

func TestFetchCancelledDuringSettle(t *testing.T) {
	s := &flakySession{}
	f := New(s, Config{Templates: templates, Settle: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, models.RegionKey{Kind: models.State, RegionCode: 1, ConstituencyNumber: 1})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, errors.Is(err, ErrNavigation))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "lynx"})
	require.Error(t, err)
}
