package ioformats

import (
	"io"

	"github.com/parquet-go/parquet-go"

	"eci-results-crawler/internal/models"
)

// writeParquet stores every column as an optional string; absent cells are
// nulls.
func writeParquet(w io.Writer, ds *models.ResultDataset) error {
	cols := ds.Columns()
	group := parquet.Group{}
	for _, c := range cols {
		group[c] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("result_record", group)

	// leaf order follows the schema, which sorts group fields by name
	leaf := make(map[string]int, len(cols))
	for i, path := range schema.Columns() {
		leaf[path[0]] = i
	}

	pw := parquet.NewWriter(w, schema)
	rows := make([]parquet.Row, 0, ds.Len())
	for _, rec := range ds.Records() {
		row := make(parquet.Row, len(cols))
		for i := range row {
			row[i] = parquet.NullValue().Level(0, 0, i)
		}
		for _, c := range rec.Fields() {
			i := leaf[c.Column]
			row[i] = parquet.ValueOf(c.Value).Level(0, 1, i)
		}
		rows = append(rows, row)
	}
	if _, err := pw.WriteRows(rows); err != nil {
		pw.Close()
		return err
	}
	return pw.Close()
}
