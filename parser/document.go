package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	rowContainerSelector = "tbody"
	rowSelector          = "tr"
	cellSelector         = "td"
	anchorSelector       = "a"
	nextPageSelector     = "a.nfl-o-table-pagination__next"
	footerSelector       = "tfoot"
	footerCellSelector   = "th"
	headerFigureSelector = "figure.nfl-c-player-header__background"
	headerImageSelector  = "img"
)

// Document is the narrow view of a parsed page that the scraper depends on.
// Every lookup reports whether the element was present instead of failing.
type Document interface {
	// Rows returns the rows of the first row container.
	Rows() (Rows, bool)
	NextPageHref() (string, bool)
	// FooterCells returns the trimmed header-cell texts of the first table footer.
	FooterCells() ([]string, bool)
	HeaderImageAlt() (string, bool)
}

// Rows is an indexed view over table rows in document order.
type Rows interface {
	Len() int
	// CellText returns the trimmed text of the nth data cell of row.
	CellText(row, n int) (string, bool)
	// AnchorHref returns the href of the first anchor in row.
	AnchorHref(row int) (string, bool)
}

// NewDocument parses an HTML body.
func NewDocument(r io.Reader) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return FromSelection(doc.Selection), nil
}

// FromSelection wraps an already parsed goquery selection.
func FromSelection(sel *goquery.Selection) Document {
	return &htmlDocument{root: sel}
}

type htmlDocument struct {
	root *goquery.Selection
}

func (d *htmlDocument) Rows() (Rows, bool) {
	container := d.root.Find(rowContainerSelector).First()
	if container.Length() == 0 {
		return nil, false
	}
	return &htmlRows{rows: container.Find(rowSelector)}, true
}

func (d *htmlDocument) NextPageHref() (string, bool) {
	next := d.root.Find(nextPageSelector).First()
	if next.Length() == 0 {
		return "", false
	}
	href, ok := next.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", false
	}
	return href, true
}

func (d *htmlDocument) FooterCells() ([]string, bool) {
	footer := d.root.Find(footerSelector).First()
	if footer.Length() == 0 {
		return nil, false
	}
	cells := footer.Find(footerCellSelector)
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, cell *goquery.Selection) {
		out = append(out, strings.TrimSpace(cell.Text()))
	})
	return out, true
}

func (d *htmlDocument) HeaderImageAlt() (string, bool) {
	img := d.root.Find(headerFigureSelector).First().Find(headerImageSelector).First()
	if img.Length() == 0 {
		return "", false
	}
	alt, ok := img.Attr("alt")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(alt), true
}

type htmlRows struct {
	rows *goquery.Selection
}

func (r *htmlRows) Len() int {
	return r.rows.Length()
}

func (r *htmlRows) CellText(row, n int) (string, bool) {
	if row < 0 || row >= r.rows.Length() || n < 0 {
		return "", false
	}
	cells := r.rows.Eq(row).Find(cellSelector)
	if n >= cells.Length() {
		return "", false
	}
	return strings.TrimSpace(cells.Eq(n).Text()), true
}

func (r *htmlRows) AnchorHref(row int) (string, bool) {
	if row < 0 || row >= r.rows.Length() {
		return "", false
	}
	anchor := r.rows.Eq(row).Find(anchorSelector).First()
	if anchor.Length() == 0 {
		return "", false
	}
	return anchor.Attr("href")
}
