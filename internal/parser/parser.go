package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html/charset"

	"eci-results-crawler/internal/models"
)

var tracer = otel.Tracer("eci-results-crawler/internal/parser")

// Structural positions of the result page; equivalent to
// /html/body/main/div/div[3] and /html/body/main/div/div[1]/h2/span.
const (
	DefaultTableSelector  = "body > main > div > div:nth-of-type(3)"
	DefaultHeaderSelector = "body > main > div > div:nth-of-type(1) > h2 > span"
)

type Selectors struct {
	Table  string
	Header string
}

var ErrExtraction = errors.New("extraction failed")

// ExtractionError means a page passed classification but an expected
// element was missing. It is scoped to Key only.
type ExtractionError struct {
	Key     models.RegionKey
	Element string
	Err     error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s from %s: %v", e.Element, e.Key, e.Err)
	}
	return fmt.Sprintf("extract %s from %s: element not found", e.Element, e.Key)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

type Parser struct {
	sel Selectors
}

func New(sel Selectors) *Parser {
	if sel.Table == "" {
		sel.Table = DefaultTableSelector
	}
	if sel.Header == "" {
		sel.Header = DefaultHeaderSelector
	}
	return &Parser{sel: sel}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Decode converts a fetched body to UTF-8 using the declared or sniffed charset.
func Decode(r io.Reader, contentType string) (string, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return "", err
	}
	data := buf.Bytes()

	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		// already utf-8
		if !utf8.Valid(data) {
			return "", err
		}
		utf8data = data
	}
	return string(utf8data), nil
}

func (p *Parser) Extract(ctx context.Context, key models.RegionKey, url string, doc models.RawDocument) (models.ConstituencyPage, error) {
	_, span := tracer.Start(ctx, "Extract")
	defer span.End()
	span.SetAttributes(attribute.String("key", key.String()))

	page, err := p.extract(key, url, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return models.ConstituencyPage{}, err
	}
	span.SetAttributes(attribute.Int("rows", len(page.Rows)))
	return page, nil
}

func (p *Parser) extract(key models.RegionKey, url string, doc models.RawDocument) (models.ConstituencyPage, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(string(doc)))
	if err != nil {
		return models.ConstituencyPage{}, &ExtractionError{Key: key, Element: "document", Err: err}
	}

	table := root.Find(p.sel.Table).First()
	if table.Length() > 0 && !table.Is("table") {
		table = table.Find("table").First()
	}
	if table.Length() == 0 {
		return models.ConstituencyPage{}, &ExtractionError{Key: key, Element: "table"}
	}

	header := root.Find(p.sel.Header).First()
	if header.Length() == 0 {
		return models.ConstituencyPage{}, &ExtractionError{Key: key, Element: "header"}
	}

	return models.ConstituencyPage{
		Key:              key,
		ConstituencyName: cleanText(header.Text()),
		URL:              url,
		Rows:             parseTable(table),
	}, nil
}

// parseTable reads the column headers from the last thead row (or the first
// row holding th cells) and every other row with td cells as data, in
// document order.
func parseTable(table *goquery.Selection) []models.Row {
	// nested tables would otherwise leak their rows into ours
	rows := table.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("table").IsSelection(table)
	})

	headerIdx := -1
	if thead := rows.Filter("thead tr"); thead.Length() > 0 {
		headerIdx = rows.IndexOfSelection(thead.Last())
	} else {
		rows.EachWithBreak(func(i int, tr *goquery.Selection) bool {
			if tr.Children().Filter("th").Length() > 0 {
				headerIdx = i
				return false
			}
			return true
		})
	}

	grid := spanGrid(rows)

	var columns []string
	if headerIdx >= 0 {
		columns = headerNames(grid[headerIdx])
	}

	var out []models.Row
	rows.Each(func(i int, tr *goquery.Selection) {
		if i <= headerIdx && tr.Children().Filter("td").Length() == 0 {
			return
		}
		if i == headerIdx {
			return
		}
		cells := grid[i]
		if len(cells) == 0 {
			return
		}
		for len(columns) < len(cells) {
			columns = append(columns, "Unnamed: "+strconv.Itoa(len(columns)))
		}
		row := make(models.Row, len(columns))
		for j, col := range columns {
			v := ""
			if j < len(cells) {
				v = cells[j]
			}
			row[j] = models.Cell{Column: col, Value: v}
		}
		out = append(out, row)
	})
	return out
}

// carry is a rowspan cell still owed to the rows below.
type carry struct {
	text string
	left int
}

// spanGrid lays the rows out cell by cell, repeating a cell's text across
// its colspan and down its rowspan. A row without th or td cells yields an
// empty line.
func spanGrid(rows *goquery.Selection) [][]string {
	pending := map[int]*carry{}
	grid := make([][]string, rows.Length())

	rows.Each(func(i int, tr *goquery.Selection) {
		var line []string
		take := func() bool {
			c, ok := pending[len(line)]
			if !ok {
				return false
			}
			line = append(line, c.text)
			if c.left--; c.left == 0 {
				delete(pending, len(line)-1)
			}
			return true
		}

		cells := tr.Children().Filter("th,td")
		if cells.Length() == 0 {
			return
		}
		cells.Each(func(_ int, td *goquery.Selection) {
			for take() {
			}
			text := cleanText(td.Text())
			colspan, rowspan := span(td, "colspan"), span(td, "rowspan")
			for k := 0; k < colspan; k++ {
				if rowspan > 1 {
					pending[len(line)] = &carry{text: text, left: rowspan - 1}
				}
				line = append(line, text)
			}
		})
		// cells carried down past the end of this row's own cells
		for last := lastPending(pending); len(line) <= last; {
			if !take() {
				line = append(line, "")
			}
		}
		grid[i] = line
	})
	return grid
}

func lastPending(pending map[int]*carry) int {
	last := -1
	for col := range pending {
		last = max(last, col)
	}
	return last
}

func span(td *goquery.Selection, attr string) int {
	n, err := strconv.Atoi(strings.TrimSpace(td.AttrOr(attr, "1")))
	if err != nil || n < 1 {
		return 1
	}
	return min(n, 1000)
}

func headerNames(raw []string) []string {
	out := make([]string, len(raw))
	seen := map[string]int{}
	for i, h := range raw {
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			h = h + "." + strconv.Itoa(n+1)
		} else {
			seen[h] = 0
		}
		out[i] = h
	}
	return out
}
