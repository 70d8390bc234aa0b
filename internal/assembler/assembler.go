// Package assembler flattens extracted pages into the ordered result dataset.
package assembler

import (
	"eci-results-crawler/internal/models"
)

// Assembler appends records in the order pages are added. It does not
// de-duplicate: a key added twice contributes its rows twice.
type Assembler struct {
	ds    *models.ResultDataset
	pages int
}

func New() *Assembler {
	return &Assembler{ds: models.NewResultDataset()}
}

// Add merges the page key and constituency name into every row of page and
// appends the resulting records. It returns the number of records added.
func (a *Assembler) Add(page models.ConstituencyPage) (int, error) {
	for i, row := range page.Rows {
		rec := models.ResultRecord{
			Key:              page.Key,
			ConstituencyName: page.ConstituencyName,
			Row:              row,
		}
		if err := a.ds.Append(rec); err != nil {
			return i, err
		}
	}
	a.pages++
	return len(page.Rows), nil
}

func (a *Assembler) Pages() int { return a.pages }

func (a *Assembler) Dataset() *models.ResultDataset { return a.ds }

// Finalize seals the dataset; later Adds fail with models.ErrDatasetFinalized.
func (a *Assembler) Finalize() *models.ResultDataset {
	a.ds.Finalize()
	return a.ds
}
