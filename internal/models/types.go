package models

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

type RegionKind string

const (
	State          RegionKind = "STATE"
	UnionTerritory RegionKind = "UNION_TERRITORY"
)

// URLCode is the letter the results site uses for the kind in page names.
func (k RegionKind) URLCode() string {
	switch k {
	case State:
		return "S"
	case UnionTerritory:
		return "U"
	}
	return ""
}

func (k RegionKind) Valid() bool {
	return k == State || k == UnionTerritory
}

func ParseRegionKind(s string) (RegionKind, error) {
	switch RegionKind(s) {
	case State, UnionTerritory:
		return RegionKind(s), nil
	case "S", "state":
		return State, nil
	case "U", "ut", "union_territory":
		return UnionTerritory, nil
	}
	return "", fmt.Errorf("unknown region kind %q", s)
}

type RegionKey struct {
	Kind               RegionKind `json:"regionKind"`
	RegionCode         int        `json:"regionCode"`
	ConstituencyNumber int        `json:"constituencyNumber"`
}

func (k RegionKey) String() string {
	return fmt.Sprintf("%s/%02d/%d", k.Kind, k.RegionCode, k.ConstituencyNumber)
}

// RawDocument is rendered page text. It is never persisted.
type RawDocument string

type Cell struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Row keeps the column order of the source table.
type Row []Cell

func (r Row) Get(column string) (string, bool) {
	for _, c := range r {
		if c.Column == column {
			return c.Value, true
		}
	}
	return "", false
}

func (r Row) Columns() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.Column
	}
	return out
}

type ConstituencyPage struct {
	Key              RegionKey `json:"key"`
	ConstituencyName string    `json:"constituencyName"`
	URL              string    `json:"url,omitempty"`
	Rows             []Row     `json:"rows"`
}

// Key columns always lead a flattened record.
const (
	ColConstituencyName   = "constituency_name"
	ColRegionCode         = "region_code"
	ColConstituencyNumber = "constituency_number"
	ColRegionKind         = "region_kind"
)

var KeyColumns = []string{ColConstituencyName, ColRegionCode, ColConstituencyNumber, ColRegionKind}

type ResultRecord struct {
	Key              RegionKey `json:"key"`
	ConstituencyName string    `json:"constituencyName"`
	Row              Row       `json:"row"`
}

// Fields flattens the record. A table column that collides with a key column
// is shadowed by the key value.
func (r ResultRecord) Fields() Row {
	out := make(Row, 0, len(KeyColumns)+len(r.Row))
	out = append(out,
		Cell{ColConstituencyName, r.ConstituencyName},
		Cell{ColRegionCode, strconv.Itoa(r.Key.RegionCode)},
		Cell{ColConstituencyNumber, strconv.Itoa(r.Key.ConstituencyNumber)},
		Cell{ColRegionKind, string(r.Key.Kind)},
	)
	for _, c := range r.Row {
		if isKeyColumn(c.Column) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func isKeyColumn(c string) bool {
	for _, k := range KeyColumns {
		if k == c {
			return true
		}
	}
	return false
}

var ErrDatasetFinalized = errors.New("dataset is finalized")

// ResultDataset is append-only for the duration of one crawl run.
type ResultDataset struct {
	records   []ResultRecord
	columns   []string
	seen      map[string]struct{}
	finalized bool
}

func NewResultDataset() *ResultDataset {
	ds := &ResultDataset{seen: map[string]struct{}{}}
	for _, c := range KeyColumns {
		ds.columns = append(ds.columns, c)
		ds.seen[c] = struct{}{}
	}
	return ds
}

func (d *ResultDataset) Append(rec ResultRecord) error {
	if d.finalized {
		return ErrDatasetFinalized
	}
	for _, c := range rec.Row {
		if _, ok := d.seen[c.Column]; ok {
			continue
		}
		d.seen[c.Column] = struct{}{}
		d.columns = append(d.columns, c.Column)
	}
	d.records = append(d.records, rec)
	return nil
}

func (d *ResultDataset) Records() []ResultRecord { return d.records }

func (d *ResultDataset) Len() int { return len(d.records) }

// Columns is the sparse union of all record columns in first-seen order.
func (d *ResultDataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

func (d *ResultDataset) Finalize() { d.finalized = true }

func (d *ResultDataset) Finalized() bool { return d.finalized }

type AcceptedKey struct {
	Key RegionKey `json:"key"`
	URL string    `json:"resolvedUrl"`
}

type Summary struct {
	RunID              string        `json:"runId"`
	KeysProbed         int           `json:"keysProbed"`
	KeysAccepted       int           `json:"keysAccepted"`
	RegionsSwept       int           `json:"regionsSwept"`
	RegionsReplayed    int           `json:"regionsReplayed,omitempty"`
	CeilingHits        []RegionKey   `json:"ceilingHits,omitempty"`
	ExtractionFailures []KeyFailure  `json:"extractionFailures,omitempty"`
	NavigationFailures []KeyFailure  `json:"navigationFailures,omitempty"`
	Records            int           `json:"records"`
	Duration           time.Duration `json:"duration"`
}

type KeyFailure struct {
	Key   RegionKey `json:"key"`
	URL   string    `json:"url,omitempty"`
	Error string    `json:"error"`
}
