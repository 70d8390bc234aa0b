// Package store keeps finished region sweeps in SQLite so an interrupted
// crawl can resume without probing those regions again.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"eci-results-crawler/internal/crawler"
	"eci-results-crawler/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS regions (
	kind         TEXT    NOT NULL,
	region_code  INTEGER NOT NULL,
	run_id       TEXT    NOT NULL,
	committed_at INTEGER NOT NULL,
	seq          INTEGER NOT NULL,
	PRIMARY KEY (kind, region_code)
);
CREATE TABLE IF NOT EXISTS accepted_keys (
	kind                TEXT    NOT NULL,
	region_code         INTEGER NOT NULL,
	constituency_number INTEGER NOT NULL,
	url                 TEXT    NOT NULL,
	PRIMARY KEY (kind, region_code, constituency_number)
);
CREATE TABLE IF NOT EXISTS pages (
	kind                TEXT    NOT NULL,
	region_code         INTEGER NOT NULL,
	constituency_number INTEGER NOT NULL,
	constituency_name   TEXT    NOT NULL,
	url                 TEXT    NOT NULL,
	rows_json           TEXT    NOT NULL,
	PRIMARY KEY (kind, region_code, constituency_number)
);
CREATE TABLE IF NOT EXISTS extraction_failures (
	kind                TEXT    NOT NULL,
	region_code         INTEGER NOT NULL,
	constituency_number INTEGER NOT NULL,
	url                 TEXT    NOT NULL,
	error               TEXT    NOT NULL,
	PRIMARY KEY (kind, region_code, constituency_number)
);`

type Store struct {
	db    *sql.DB
	runID string
}

var _ crawler.Checkpoint = (*Store)(nil)

func Open(ctx context.Context, path, runID string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; the crawl is sequential anyway
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init checkpoint schema: %w", err)
	}
	return &Store{db: db, runID: runID}, nil
}

func (s *Store) Close() error { return s.db.Close() }

var tables = []string{"regions", "accepted_keys", "pages", "extraction_failures"}

// Reset forgets every committed region.
func (s *Store) Reset(ctx context.Context) error {
	for _, tbl := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+tbl); err != nil {
			return err
		}
	}
	return nil
}

// CommitRegion replaces everything stored for the region. Regions are
// numbered in commit order, which is the order the crawl swept them.
func (s *Store) CommitRegion(ctx context.Context, kind models.RegionKind, code int, rec crawler.RegionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, tbl := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+tbl+" WHERE kind = ? AND region_code = ?", string(kind), code); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO regions (kind, region_code, run_id, committed_at, seq)
		 VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM regions))`,
		string(kind), code, s.runID, time.Now().Unix(),
	); err != nil {
		return err
	}
	for _, ak := range rec.Accepted {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO accepted_keys (kind, region_code, constituency_number, url) VALUES (?, ?, ?, ?)",
			string(ak.Key.Kind), ak.Key.RegionCode, ak.Key.ConstituencyNumber, ak.URL,
		); err != nil {
			return err
		}
	}
	for _, p := range rec.Pages {
		rows, err := json.Marshal(p.Rows)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO pages (kind, region_code, constituency_number, constituency_name, url, rows_json) VALUES (?, ?, ?, ?, ?, ?)",
			string(p.Key.Kind), p.Key.RegionCode, p.Key.ConstituencyNumber, p.ConstituencyName, p.URL, string(rows),
		); err != nil {
			return err
		}
	}
	for _, f := range rec.Failures {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO extraction_failures (kind, region_code, constituency_number, url, error) VALUES (?, ?, ?, ?, ?)",
			string(f.Key.Kind), f.Key.RegionCode, f.Key.ConstituencyNumber, f.URL, f.Error,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Region(ctx context.Context, kind models.RegionKind, code int) (crawler.RegionRecord, bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM regions WHERE kind = ? AND region_code = ?", string(kind), code).Scan(&n)
	if err != nil || n == 0 {
		return crawler.RegionRecord{}, false, err
	}

	const where = "WHERE t.kind = ? AND t.region_code = ?"
	keys, err := s.acceptedKeys(ctx, where, string(kind), code)
	if err != nil {
		return crawler.RegionRecord{}, false, err
	}
	pages, err := s.pages(ctx, where, string(kind), code)
	if err != nil {
		return crawler.RegionRecord{}, false, err
	}
	failures, err := s.failures(ctx, where, string(kind), code)
	if err != nil {
		return crawler.RegionRecord{}, false, err
	}
	return crawler.RegionRecord{Accepted: keys, Pages: pages, Failures: failures}, true, nil
}

// inCrawlOrder joins a per-key table t to its region and sorts by the
// region's commit sequence.
func inCrawlOrder(cols, table, where string) string {
	return "SELECT " + cols + " FROM " + table + " t" +
		" JOIN regions r ON r.kind = t.kind AND r.region_code = t.region_code " + where +
		" ORDER BY r.seq, t.constituency_number"
}

// AcceptedKeys lists every committed accepted key in crawl order.
func (s *Store) AcceptedKeys(ctx context.Context) ([]models.AcceptedKey, error) {
	return s.acceptedKeys(ctx, "")
}

// Pages lists committed pages in crawl order, optionally restricted to one
// kind.
func (s *Store) Pages(ctx context.Context, kind models.RegionKind) ([]models.ConstituencyPage, error) {
	if kind == "" {
		return s.pages(ctx, "")
	}
	return s.pages(ctx, "WHERE t.kind = ?", string(kind))
}

// ExtractionFailures lists the keys whose page could not be extracted, in
// crawl order.
func (s *Store) ExtractionFailures(ctx context.Context) ([]models.KeyFailure, error) {
	return s.failures(ctx, "")
}

type RegionStatus struct {
	Kind        models.RegionKind `json:"regionKind"`
	RegionCode  int               `json:"regionCode"`
	RunID       string            `json:"runId"`
	CommittedAt time.Time         `json:"committedAt"`
}

func (s *Store) Regions(ctx context.Context) ([]RegionStatus, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT kind, region_code, run_id, committed_at FROM regions ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RegionStatus
	for rows.Next() {
		var rs RegionStatus
		var kind string
		var ts int64
		if err := rows.Scan(&kind, &rs.RegionCode, &rs.RunID, &ts); err != nil {
			return nil, err
		}
		rs.Kind = models.RegionKind(kind)
		rs.CommittedAt = time.Unix(ts, 0).UTC()
		out = append(out, rs)
	}
	return out, rows.Err()
}

func (s *Store) acceptedKeys(ctx context.Context, where string, args ...any) ([]models.AcceptedKey, error) {
	rows, err := s.db.QueryContext(ctx,
		inCrawlOrder("t.kind, t.region_code, t.constituency_number, t.url", "accepted_keys", where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.AcceptedKey
	for rows.Next() {
		var ak models.AcceptedKey
		var kind string
		if err := rows.Scan(&kind, &ak.Key.RegionCode, &ak.Key.ConstituencyNumber, &ak.URL); err != nil {
			return nil, err
		}
		ak.Key.Kind = models.RegionKind(kind)
		out = append(out, ak)
	}
	return out, rows.Err()
}

func (s *Store) pages(ctx context.Context, where string, args ...any) ([]models.ConstituencyPage, error) {
	rows, err := s.db.QueryContext(ctx,
		inCrawlOrder("t.kind, t.region_code, t.constituency_number, t.constituency_name, t.url, t.rows_json", "pages", where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.ConstituencyPage
	for rows.Next() {
		var p models.ConstituencyPage
		var kind, raw string
		if err := rows.Scan(&kind, &p.Key.RegionCode, &p.Key.ConstituencyNumber, &p.ConstituencyName, &p.URL, &raw); err != nil {
			return nil, err
		}
		p.Key.Kind = models.RegionKind(kind)
		if err := json.Unmarshal([]byte(raw), &p.Rows); err != nil {
			return nil, fmt.Errorf("decode rows for %s: %w", p.Key, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) failures(ctx context.Context, where string, args ...any) ([]models.KeyFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		inCrawlOrder("t.kind, t.region_code, t.constituency_number, t.url, t.error", "extraction_failures", where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.KeyFailure
	for rows.Next() {
		var f models.KeyFailure
		var kind string
		if err := rows.Scan(&kind, &f.Key.RegionCode, &f.Key.ConstituencyNumber, &f.URL, &f.Error); err != nil {
			return nil, err
		}
		f.Key.Kind = models.RegionKind(kind)
		out = append(out, f)
	}
	return out, rows.Err()
}
