package grid

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSX is a Grid backed by one sheet of an XLSX workbook.
type XLSX struct {
	file  *xlsx.File
	sheet *xlsx.Sheet
	path  string
}

// OpenXLSX opens the workbook at path and binds the grid to sheetName, or
// to the first sheet when sheetName is empty.
func OpenXLSX(path, sheetName string) (*XLSX, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "grid: open workbook")
	}

	var sheet *xlsx.Sheet
	if sheetName == "" {
		if len(f.Sheets) == 0 {
			return nil, eris.Errorf("grid: workbook %s has no sheets", path)
		}
		sheet = f.Sheets[0]
	} else {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("grid: sheet %q not found in %s", sheetName, path)
		}
		sheet = s
	}

	return &XLSX{file: f, sheet: sheet, path: path}, nil
}

// NewXLSX creates an empty workbook grid, saved to path on Save.
func NewXLSX(path, sheetName string) (*XLSX, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return nil, eris.Wrap(err, "grid: add sheet")
	}
	return &XLSX{file: f, sheet: sheet, path: path}, nil
}

// Save writes the workbook back to its path.
func (g *XLSX) Save() error {
	return eris.Wrap(g.file.Save(g.path), "grid: save workbook")
}

func (g *XLSX) Rows() int {
	return len(g.sheet.Rows)
}

func (g *XLSX) Cell(row, col int) string {
	if row < 0 || row >= len(g.sheet.Rows) {
		return ""
	}
	cells := g.sheet.Rows[row].Cells
	if col < 0 || col >= len(cells) {
		return ""
	}
	return cells[col].String()
}

func (g *XLSX) SetCell(row, col int, value string) error {
	if row < 0 || col < 0 {
		return eris.Errorf("grid: invalid cell (%d,%d)", row, col)
	}
	for len(g.sheet.Rows) <= row {
		g.sheet.AddRow()
	}
	r := g.sheet.Rows[row]
	for len(r.Cells) <= col {
		r.AddCell()
	}
	r.Cells[col].SetString(value)
	return nil
}

func (g *XLSX) Column(col, startRow int) []string {
	if startRow < 0 {
		startRow = 0
	}
	var out []string
	for row := startRow; row < len(g.sheet.Rows); row++ {
		out = append(out, g.Cell(row, col))
	}
	return out
}

func (g *XLSX) HeaderColumn(headerRow int, name string) (int, error) {
	if headerRow < 0 || headerRow >= len(g.sheet.Rows) {
		return 0, eris.Wrapf(ErrHeaderNotFound, "grid: header row %d out of range", headerRow)
	}
	for col, cell := range g.sheet.Rows[headerRow].Cells {
		if cell.String() == name {
			return col, nil
		}
	}
	return 0, eris.Wrapf(ErrHeaderNotFound, "grid: header %q", name)
}
