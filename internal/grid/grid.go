// Package grid abstracts the target spreadsheet as a grid of cells
// addressable by (row, column). The grid is the single source of truth:
// pipelines read from it, write back through it, and never cache its state
// beyond one operation.
package grid

import "github.com/rotisserie/eris"

// ErrHeaderNotFound is returned when a required header cannot be resolved.
// A missing required header is a fatal configuration error for the run.
var ErrHeaderNotFound = eris.New("grid: header not found")

// Grid is a mutable rectangle of text cells. Rows and columns are 0-based.
type Grid interface {
	// Rows returns the number of populated rows.
	Rows() int

	// Cell reads one cell's text. Out-of-range reads return "".
	Cell(row, col int) string

	// SetCell writes one cell, growing the grid as needed.
	SetCell(row, col int, value string) error

	// Column reads a column's cells from startRow through the last
	// populated row.
	Column(col, startRow int) []string

	// HeaderColumn resolves a header cell's text to its column index by
	// exact, case-sensitive match within headerRow. Returns
	// ErrHeaderNotFound when absent.
	HeaderColumn(headerRow int, name string) (int, error)
}

// Workbook is a Grid that can persist itself back to its backing file.
type Workbook interface {
	Grid
	Save() error
}
