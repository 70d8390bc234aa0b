package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"eci-results-crawler/internal/assembler"
	"eci-results-crawler/internal/ioformats"
	"eci-results-crawler/internal/models"
	"eci-results-crawler/internal/store"
)

type resultsStore interface {
	Regions(ctx context.Context) ([]store.RegionStatus, error)
	AcceptedKeys(ctx context.Context) ([]models.AcceptedKey, error)
	Pages(ctx context.Context, kind models.RegionKind) ([]models.ConstituencyPage, error)
	ExtractionFailures(ctx context.Context) ([]models.KeyFailure, error)
}

func newMux(st resultsStore, l *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// GET /regions  committed region sweeps
	mux.HandleFunc("GET /regions", func(w http.ResponseWriter, r *http.Request) {
		regions, err := st.Regions(r.Context())
		if err != nil {
			l.ErrorContext(r.Context(), "list regions", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if regions == nil {
			regions = []store.RegionStatus{}
		}
		writeJSON(w, http.StatusOK, regions)
	})

	// GET /keys  accepted keys in crawl order
	mux.HandleFunc("GET /keys", func(w http.ResponseWriter, r *http.Request) {
		keys, err := st.AcceptedKeys(r.Context())
		if err != nil {
			l.ErrorContext(r.Context(), "list keys", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		_ = ioformats.WriteAcceptedKeys(w, ioformats.NDJSON, keys)
	})

	// GET /failures  keys whose page passed the marker check but could not be extracted
	mux.HandleFunc("GET /failures", func(w http.ResponseWriter, r *http.Request) {
		failures, err := st.ExtractionFailures(r.Context())
		if err != nil {
			l.ErrorContext(r.Context(), "list failures", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if failures == nil {
			failures = []models.KeyFailure{}
		}
		writeJSON(w, http.StatusOK, failures)
	})

	// GET /records?region_kind=STATE&format=csv  flattened dataset
	mux.HandleFunc("GET /records", func(w http.ResponseWriter, r *http.Request) {
		var kind models.RegionKind
		if s := r.URL.Query().Get("region_kind"); s != "" {
			k, err := models.ParseRegionKind(s)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			kind = k
		}
		format := ioformats.NDJSON
		contentType := "application/x-ndjson"
		switch r.URL.Query().Get("format") {
		case "", "ndjson":
		case "csv":
			format, contentType = ioformats.CSV, "text/csv"
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "format must be ndjson or csv"})
			return
		}

		pages, err := st.Pages(r.Context(), kind)
		if err != nil {
			l.ErrorContext(r.Context(), "list pages", "err", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		asm := assembler.New()
		for _, p := range pages {
			if _, err := asm.Add(p); err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
		}
		w.Header().Set("Content-Type", contentType)
		if err := ioformats.WriteRecords(w, format, asm.Finalize()); err != nil {
			l.ErrorContext(r.Context(), "write records", "err", err)
		}
	})

	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func logRequest(l *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		l.InfoContext(r.Context(), "request", "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}
