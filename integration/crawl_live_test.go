//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"eci-results-crawler/internal/classifier"
	"eci-results-crawler/internal/fetcher"
	"eci-results-crawler/internal/models"
	"eci-results-crawler/internal/parser"
)

// TestLiveFirstConstituency fetches STATE/01/1 from the live results site
// with the plain HTTP driver (subject to change / blocking).
func TestLiveFirstConstituency(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session, err := fetcher.Open(ctx, fetcher.Options{Driver: fetcher.DriverHTTP, NavigationTimeout: 25 * time.Second})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer session.Close()

	f := fetcher.New(session, fetcher.Config{
		Templates: fetcher.Templates{StateBase: fetcher.DefaultStateBase, UTBase: fetcher.DefaultUTBase},
		Retries:   1,
	})
	key := models.RegionKey{Kind: models.State, RegionCode: 1, ConstituencyNumber: 1}

	doc, err := f.Fetch(ctx, key)
	if errors.Is(err, fetcher.ErrNavigation) {
		t.Skipf("skipping: site unreachable or blocking: %v", err)
	}
	if err != nil {
		t.Fatal(err)
	}

	if !classifier.New("").Valid(doc) {
		t.Skip("skipping: page does not carry the validity marker (results no longer published?)")
	}

	page, err := parser.New(parser.Selectors{}).Extract(ctx, key, f.URL(key), doc)
	if err != nil {
		t.Skipf("skipping: page layout changed: %v", err)
	}
	if page.ConstituencyName == "" {
		t.Errorf("expected a constituency name")
	}
	if len(page.Rows) == 0 {
		t.Errorf("expected candidate rows")
	}
}

// TestLiveBeyondLastConstituency checks that a number far past any region's
// last constituency is classified invalid.
func TestLiveBeyondLastConstituency(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session, err := fetcher.Open(ctx, fetcher.Options{Driver: fetcher.DriverHTTP, NavigationTimeout: 25 * time.Second})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	defer session.Close()

	f := fetcher.New(session, fetcher.Config{
		Templates: fetcher.Templates{StateBase: fetcher.DefaultStateBase, UTBase: fetcher.DefaultUTBase},
	})
	doc, err := f.Fetch(ctx, models.RegionKey{Kind: models.UnionTerritory, RegionCode: 1, ConstituencyNumber: 99})
	if err != nil {
		t.Skipf("skipping: fetch failed due to network/blocking: %v", err)
	}
	if classifier.New("").Valid(doc) {
		t.Errorf("expected UNION_TERRITORY/01/99 to be invalid")
	}
}
