package ioformats

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"eci-results-crawler/internal/models"
)

// WriteRecords serializes the dataset in order. Columns are the sparse union
// over all records; no validation or coercion happens here.
func WriteRecords(w io.Writer, format Format, ds *models.ResultDataset) error {
	switch format {
	case CSV:
		return writeCSV(w, ds)
	case NDJSON:
		return writeNDJSON(w, ds)
	case Parquet:
		return writeParquet(w, ds)
	}
	return fmt.Errorf("unsupported format %q", format)
}

func writeCSV(w io.Writer, ds *models.ResultDataset) error {
	cols := ds.Columns()
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		idx[c] = i
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	line := make([]string, len(cols))
	for _, rec := range ds.Records() {
		for i := range line {
			line[i] = ""
		}
		for _, c := range rec.Fields() {
			line[idx[c.Column]] = c.Value
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeNDJSON writes one object per record with keys in column order.
// Columns a record lacks are omitted.
func writeNDJSON(w io.Writer, ds *models.ResultDataset) error {
	bw := bufio.NewWriter(w)
	for _, rec := range ds.Records() {
		if err := writeObject(bw, rec.Fields()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeObject(w *bufio.Writer, row models.Row) error {
	w.WriteByte('{')
	for i, c := range row {
		if i > 0 {
			w.WriteByte(',')
		}
		k, err := json.Marshal(c.Column)
		if err != nil {
			return err
		}
		v, err := json.Marshal(c.Value)
		if err != nil {
			return err
		}
		w.Write(k)
		w.WriteByte(':')
		w.Write(v)
	}
	w.WriteByte('}')
	return w.WriteByte('\n')
}
