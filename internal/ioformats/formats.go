package ioformats

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Format string

const (
	CSV     Format = "csv"
	NDJSON  Format = "ndjson"
	Parquet Format = "parquet"
)

// FormatFromPath picks the format from the file extension, ignoring a
// trailing compression suffix.
func FormatFromPath(path string) (Format, error) {
	path = strings.TrimSuffix(strings.ToLower(path), ".zst")
	switch filepath.Ext(path) {
	case ".csv":
		return CSV, nil
	case ".ndjson", ".jsonl":
		return NDJSON, nil
	case ".parquet":
		return Parquet, nil
	}
	return "", fmt.Errorf("cannot infer output format from %q", path)
}

// Compressed reports whether path asks for zstd compression.
func Compressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}
