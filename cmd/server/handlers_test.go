package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eci-results-crawler/internal/crawler"
	"eci-results-crawler/internal/models"
	"eci-results-crawler/internal/store"
)

func seededServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "checkpoint.db"), "run-1")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	for _, reg := range []struct {
		kind models.RegionKind
		code int
		name string
	}{
		{models.State, 1, "Araku"},
		{models.UnionTerritory, 3, "Daman"},
	} {
		key := models.RegionKey{Kind: reg.kind, RegionCode: reg.code, ConstituencyNumber: 1}
		url := "https://results.example/" + key.String()
		var failures []models.KeyFailure
		if reg.kind == models.UnionTerritory {
			broken := models.RegionKey{Kind: reg.kind, RegionCode: reg.code, ConstituencyNumber: 2}
			failures = []models.KeyFailure{{Key: broken, URL: "https://results.example/" + broken.String(), Error: "element not found"}}
		}
		require.NoError(t, st.CommitRegion(ctx, reg.kind, reg.code, crawler.RegionRecord{
			Failures: failures,
			Accepted: []models.AcceptedKey{{Key: key, URL: url}},
			Pages: []models.ConstituencyPage{{
				Key:              key,
				ConstituencyName: reg.name,
				URL:              url,
				Rows:             []models.Row{{{Column: "Candidate", Value: "X"}}},
			}},
		}))
	}

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(logRequest(l, newMux(st, l)))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestHealth(t *testing.T) {
	srv := seededServer(t)
	resp, body := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestRegions(t *testing.T) {
	srv := seededServer(t)
	resp, body := get(t, srv.URL+"/regions")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var regions []store.RegionStatus
	require.NoError(t, json.Unmarshal([]byte(body), &regions))
	require.Len(t, regions, 2)
	assert.Equal(t, models.State, regions[0].Kind)
	assert.Equal(t, models.UnionTerritory, regions[1].Kind)
}

func TestKeys(t *testing.T) {
	srv := seededServer(t)
	resp, body := get(t, srv.URL+"/keys")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"region_kind":"STATE"`)
}

func TestRecords(t *testing.T) {
	srv := seededServer(t)

	resp, body := get(t, srv.URL+"/records?region_kind=UNION_TERRITORY&format=csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Equal(t,
		"constituency_name,region_code,constituency_number,region_kind,Candidate\n"+
			"Daman,3,1,UNION_TERRITORY,X\n",
		body)

	resp, body = get(t, srv.URL+"/records")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `{"constituency_name":"Araku"`), lines[0])
}

func TestRecordsBadQuery(t *testing.T) {
	srv := seededServer(t)
	resp, _ := get(t, srv.URL+"/records?region_kind=COUNTY")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = get(t, srv.URL+"/records?format=xml")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFailures(t *testing.T) {
	srv := seededServer(t)
	resp, body := get(t, srv.URL+"/failures")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var failures []models.KeyFailure
	require.NoError(t, json.Unmarshal([]byte(body), &failures))
	require.Len(t, failures, 1)
	assert.Equal(t, models.RegionKey{Kind: models.UnionTerritory, RegionCode: 3, ConstituencyNumber: 2}, failures[0].Key)
}
