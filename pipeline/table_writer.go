package pipeline

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aluiziolira/qb-stats-scraper/models"
	"github.com/jedib0t/go-pretty/v6/table"
)

// TableWriter buffers players and renders them as a text table on Close.
type TableWriter struct {
	table    table.Writer
	file     *os.File
	mu       sync.Mutex
	rendered bool
}

// NewTableWriter renders to out.
func NewTableWriter(out io.Writer) *TableWriter {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetOutputMirror(out)

	header := make(table.Row, len(models.Columns))
	for i, column := range models.Columns {
		header[i] = column
	}
	t.AppendHeader(header)

	return &TableWriter{table: t}
}

// NewTableFileWriter renders to filename.
func NewTableFileWriter(filename string) (*TableWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create table file: %w", err)
	}
	tw := NewTableWriter(f)
	tw.file = f
	return tw, nil
}

// Write appends one row per player.
func (tw *TableWriter) Write(players []*models.Player) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.rendered {
		return fmt.Errorf("table already rendered")
	}
	for _, player := range players {
		row := player.Row()
		tableRow := make(table.Row, len(row))
		for i, value := range row {
			tableRow[i] = value
		}
		tw.table.AppendRow(tableRow)
	}
	return nil
}

// Close renders the table once and closes the file, if any.
func (tw *TableWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	if !tw.rendered {
		tw.table.Render()
		tw.rendered = true
	}
	if tw.file != nil {
		return tw.file.Close()
	}
	return nil
}

// Validate always succeeds; an empty table is a valid result.
func (tw *TableWriter) Validate() error {
	return nil
}

// Rows returns the number of buffered rows.
func (tw *TableWriter) Rows() int {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.table.Length()
}
