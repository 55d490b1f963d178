// Package document models a source VPAT as an ordered sequence of tables of
// text cells, loads that shape from HTML or XLSX files, and extracts keyed
// conformance records from it.
package document

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/net/html"
)

// ErrUnsupportedType is returned for source files the loader cannot parse.
var ErrUnsupportedType = eris.New("document: unsupported file type")

// TruncationMarker is appended to any cell cut at the configured length cap.
const TruncationMarker = "…[truncated]"

// Table is one document table: an ordered sequence of rows of text cells.
// The first row is assumed to be a header.
type Table struct {
	Caption string
	Rows    [][]string
}

// Document is an ordered sequence of tables parsed from one source file.
type Document struct {
	Path   string
	Tables []Table
}

// Load parses a source file into the canonical document shape. File type is
// chosen by extension: .html/.htm and .xlsx are supported. maxCellChars
// caps each cell's text; longer cells are cut and marked. maxCellChars <= 0
// means no cap.
func Load(path string, maxCellChars int) (*Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return loadHTML(path, maxCellChars)
	case ".xlsx":
		return loadXLSX(path, maxCellChars)
	default:
		return nil, eris.Wrapf(ErrUnsupportedType, "document: %s", path)
	}
}

// loadHTML parses every <table> in document order. Cell text is the
// concatenated text content of <td>/<th> nodes.
func loadHTML(path string, maxCellChars int) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "document: open html")
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return nil, eris.Wrap(err, "document: parse html")
	}

	doc := &Document{Path: path}
	walkHTML(root, func(n *html.Node) {
		if n.Data != "table" {
			return
		}
		table := Table{}
		walkHTML(n, func(el *html.Node) {
			switch el.Data {
			case "caption":
				table.Caption = strings.TrimSpace(nodeText(el))
			case "tr":
				var cells []string
				walkHTML(el, func(cell *html.Node) {
					if cell.Data == "td" || cell.Data == "th" {
						cells = append(cells, capCell(strings.TrimSpace(nodeText(cell)), maxCellChars))
					}
				})
				if len(cells) > 0 {
					table.Rows = append(table.Rows, cells)
				}
			}
		})
		doc.Tables = append(doc.Tables, table)
	})

	return doc, nil
}

// loadXLSX treats each sheet as one table in workbook order.
func loadXLSX(path string, maxCellChars int) (*Document, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "document: open xlsx")
	}

	doc := &Document{Path: path}
	for _, sheet := range f.Sheets {
		table := Table{Caption: sheet.Name}
		for _, row := range sheet.Rows {
			cells := make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				cells[j] = capCell(cell.String(), maxCellChars)
			}
			table.Rows = append(table.Rows, cells)
		}
		doc.Tables = append(doc.Tables, table)
	}

	return doc, nil
}

// walkHTML calls fn on every element node beneath n, in document order.
func walkHTML(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			fn(c)
		}
		walkHTML(c, fn)
	}
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func capCell(text string, maxChars int) string {
	return Truncate(text, maxChars)
}

// Truncate cuts text at maxChars bytes, backing up to the nearest rune
// boundary so the result stays valid UTF-8, and appends the truncation
// marker. maxChars <= 0 means no cap.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + TruncationMarker
}
