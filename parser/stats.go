package parser

import (
	"errors"
	"fmt"
)

// Footer positions of the career totals row.
const (
	attemptsIndex      = 3
	completionsIndex   = 4
	yardsIndex         = 6
	touchdownsIndex    = 9
	interceptionsIndex = 10
)

// ErrNameMissing is returned when the player header image or its alt text is absent.
var ErrNameMissing = errors.New("parser: player name not found")

// StatsOutcome is the result of reading the footer totals row.
type StatsOutcome struct {
	Cells    []string
	Complete bool
	Reason   string
}

// Metrics are the six values selected from a complete footer row.
type Metrics struct {
	Attempts      string
	Completions   string
	Yards         string
	Touchdowns    string
	Interceptions string
	PasserRating  string
}

// ParseStats reads the footer row and reports it incomplete when it is
// missing or shorter than minColumns.
func ParseStats(doc Document, minColumns int) StatsOutcome {
	cells, ok := doc.FooterCells()
	if !ok {
		return StatsOutcome{Reason: "stats footer not found"}
	}
	if len(cells) < minColumns || len(cells) <= interceptionsIndex {
		return StatsOutcome{
			Cells:  cells,
			Reason: fmt.Sprintf("stats footer has %d columns, want at least %d", len(cells), minColumns),
		}
	}
	return StatsOutcome{Cells: cells, Complete: true}
}

// SelectMetrics maps footer cells to metrics. The passer rating is the last cell.
func SelectMetrics(cells []string) (Metrics, bool) {
	if len(cells) <= interceptionsIndex {
		return Metrics{}, false
	}
	return Metrics{
		Attempts:      cells[attemptsIndex],
		Completions:   cells[completionsIndex],
		Yards:         cells[yardsIndex],
		Touchdowns:    cells[touchdownsIndex],
		Interceptions: cells[interceptionsIndex],
		PasserRating:  cells[len(cells)-1],
	}, true
}

// ParseName returns the trimmed alt text of the player header image.
func ParseName(doc Document) (string, error) {
	name, ok := doc.HeaderImageAlt()
	if !ok {
		return "", ErrNameMissing
	}
	return name, nil
}
