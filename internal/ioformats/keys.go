package ioformats

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"eci-results-crawler/internal/models"
)

var keyHeader = []string{"region_code", "constituency_number", "region_kind", "resolved_url"}

type keyLine struct {
	RegionCode         int    `json:"region_code"`
	ConstituencyNumber int    `json:"constituency_number"`
	RegionKind         string `json:"region_kind"`
	ResolvedURL        string `json:"resolved_url"`
}

// WriteAcceptedKeys writes the accepted-key table in probe order.
func WriteAcceptedKeys(w io.Writer, format Format, keys []models.AcceptedKey) error {
	switch format {
	case CSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(keyHeader); err != nil {
			return err
		}
		for _, k := range keys {
			if err := cw.Write([]string{
				strconv.Itoa(k.Key.RegionCode),
				strconv.Itoa(k.Key.ConstituencyNumber),
				string(k.Key.Kind),
				k.URL,
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case NDJSON:
		enc := json.NewEncoder(w)
		for _, k := range keys {
			if err := enc.Encode(keyLine{k.Key.RegionCode, k.Key.ConstituencyNumber, string(k.Key.Kind), k.URL}); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unsupported format %q for accepted keys", format)
}

// ReadAcceptedKeys reads a CSV (header with region_code, constituency_number,
// region_kind and optionally resolved_url) or NDJSON accepted-key file.
func ReadAcceptedKeys(path string) ([]models.AcceptedKey, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		// try csv then ndjson
		format = CSV
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	keys, err := DecodeAcceptedKeys(f, format)
	if err != nil && format == CSV && !strings.HasSuffix(path, ".csv") {
		if _, serr := f.Seek(0, io.SeekStart); serr == nil {
			return DecodeAcceptedKeys(f, NDJSON)
		}
	}
	return keys, err
}

func DecodeAcceptedKeys(r io.Reader, format Format) ([]models.AcceptedKey, error) {
	switch format {
	case CSV:
		return readKeysCSV(r)
	case NDJSON:
		return readKeysNDJSON(r)
	}
	return nil, fmt.Errorf("unsupported format %q for accepted keys", format)
}

func readKeysCSV(r io.Reader) ([]models.AcceptedKey, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("empty csv")
	}
	col := map[string]int{}
	for i, h := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	// files written by earlier tooling name the region column state_code
	if _, ok := col["region_code"]; !ok {
		if i, ok := col["state_code"]; ok {
			col["region_code"] = i
		}
	}
	for _, h := range []string{"region_code", "constituency_number"} {
		if _, ok := col[h]; !ok {
			return nil, fmt.Errorf("csv must contain a %q header column", h)
		}
	}

	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []models.AcceptedKey
	for n, row := range rows[1:] {
		k, err := parseKey(get(row, "region_code"), get(row, "constituency_number"), get(row, "region_kind"), get(row, "url"), get(row, "resolved_url"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n+2, err)
		}
		out = append(out, k)
	}
	return out, nil
}

func readKeysNDJSON(r io.Reader) ([]models.AcceptedKey, error) {
	var out []models.AcceptedKey
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var kl keyLine
		if err := json.Unmarshal([]byte(line), &kl); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		k, err := parseKey(strconv.Itoa(kl.RegionCode), strconv.Itoa(kl.ConstituencyNumber), kl.RegionKind, "", kl.ResolvedURL)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, k)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseKey(code, num, kind, url, resolved string) (models.AcceptedKey, error) {
	c, err := strconv.Atoi(code)
	if err != nil || c < 1 {
		return models.AcceptedKey{}, fmt.Errorf("invalid region code %q", code)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return models.AcceptedKey{}, fmt.Errorf("invalid constituency number %q", num)
	}
	k := models.State
	if kind != "" {
		if k, err = models.ParseRegionKind(kind); err != nil {
			return models.AcceptedKey{}, err
		}
	} else if strings.Contains(url+resolved, "ConstituencywiseU") {
		k = models.UnionTerritory
	}
	if resolved == "" {
		resolved = url
	}
	return models.AcceptedKey{
		Key: models.RegionKey{Kind: k, RegionCode: c, ConstituencyNumber: n},
		URL: resolved,
	}, nil
}
