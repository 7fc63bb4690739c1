package parser

import (
	"errors"
	"fmt"
)

// positionCell is the zero-based index of the position column on roster pages.
const positionCell = 2

// ErrRowWithoutLink is returned when a matching roster row has no player link.
var ErrRowWithoutLink = errors.New("parser: matching row has no player link")

// ListingOutcome tells the paginator what to do after a roster page.
type ListingOutcome int

const (
	// PageFound means the page parsed and links to a following page.
	PageFound ListingOutcome = iota
	// EndOfPages means the page parsed and has no next-page link.
	EndOfPages
	// PageMalformed means an expected element was missing.
	PageMalformed
)

// String returns the label used in logs and metrics.
func (o ListingOutcome) String() string {
	switch o {
	case PageFound:
		return "found"
	case EndOfPages:
		return "end_of_pages"
	case PageMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// ListingPage is the result of parsing one roster page.
type ListingPage struct {
	Links    []string
	NextHref string
	Outcome  ListingOutcome
	Reason   string
}

// ParseListing collects player links for rows whose position cell equals
// position. Links found before a malformed row are kept.
func ParseListing(doc Document, position string) (ListingPage, error) {
	page := ListingPage{}

	rows, ok := doc.Rows()
	if !ok {
		page.Outcome = PageMalformed
		page.Reason = "row container not found"
		return page, nil
	}

	for i := 0; i < rows.Len(); i++ {
		cell, ok := rows.CellText(i, positionCell)
		if !ok {
			page.Outcome = PageMalformed
			page.Reason = fmt.Sprintf("row %d has no position cell", i)
			return page, nil
		}
		if cell != position {
			continue
		}
		href, ok := rows.AnchorHref(i)
		if !ok {
			return page, fmt.Errorf("row %d: %w", i, ErrRowWithoutLink)
		}
		page.Links = append(page.Links, href)
	}

	next, ok := doc.NextPageHref()
	if !ok {
		page.Outcome = EndOfPages
		return page, nil
	}
	page.NextHref = next
	page.Outcome = PageFound
	return page, nil
}
