package document

import (
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

const sampleHTML = `<html><body>
<h1>Accessibility Conformance Report</h1>
<table>
  <caption>Table 1: Success Criteria, Level A</caption>
  <tr><th>Criteria</th><th>Conformance Level</th><th>Remarks and Explanations</th></tr>
  <tr><td>1.1.1 Non-text Content</td><td>Supports</td><td>All images carry alt text.</td></tr>
  <tr><td>1.2.1 Audio-only and Video-only</td><td>Not Applicable</td><td>No media content.</td></tr>
</table>
<table>
  <tr><th>Criteria</th><th>Conformance Level</th><th>Remarks</th></tr>
  <tr><td>1.4.3 Contrast (Minimum)</td><td>Partially Supports</td><td>Footer links fail contrast.</td></tr>
</table>
</body></html>`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadHTML(t *testing.T) {
	path := writeTempFile(t, "vpat.html", sampleHTML)

	doc, err := Load(path, 0)

	require.NoError(t, err)
	require.Len(t, doc.Tables, 2)
	assert.Equal(t, "Table 1: Success Criteria, Level A", doc.Tables[0].Caption)
	require.Len(t, doc.Tables[0].Rows, 3)
	assert.Equal(t, []string{"1.1.1 Non-text Content", "Supports", "All images carry alt text."}, doc.Tables[0].Rows[1])
	assert.Equal(t, "1.4.3 Contrast (Minimum)", doc.Tables[1].Rows[1][0])
}

func TestLoadHTMLCapsCellText(t *testing.T) {
	long := "<table><tr><th>a</th></tr><tr><td>" +
		"0123456789012345678901234567890123456789" +
		"</td></tr></table>"
	path := writeTempFile(t, "long.html", long)

	doc, err := Load(path, 10)

	require.NoError(t, err)
	cell := doc.Tables[0].Rows[1][0]
	assert.Equal(t, "0123456789"+TruncationMarker, cell)
}

func TestLoadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpat.xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Level A")
	require.NoError(t, err)
	header := sheet.AddRow()
	header.AddCell().SetString("Criteria")
	header.AddCell().SetString("Conformance Level")
	header.AddCell().SetString("Remarks")
	row := sheet.AddRow()
	row.AddCell().SetString("1.1.1 Non-text Content")
	row.AddCell().SetString("Supports")
	row.AddCell().SetString("ok")
	require.NoError(t, f.Save(path))

	doc, err := Load(path, 0)

	require.NoError(t, err)
	require.Len(t, doc.Tables, 1)
	assert.Equal(t, "Level A", doc.Tables[0].Caption)
	require.Len(t, doc.Tables[0].Rows, 2)
	assert.Equal(t, "1.1.1 Non-text Content", doc.Tables[0].Rows[1][0])
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	// A 2-byte cap on "héllo" lands inside the 2-byte é; the cut must
	// back up to the rune boundary.
	got := Truncate("héllo", 2)
	assert.Equal(t, "h"+TruncationMarker, got)
	assert.True(t, utf8.ValidString(got))

	got = Truncate("日本語テキスト", 7)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "日本"+TruncationMarker, got)

	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "uncapped", Truncate("uncapped", 0))
}

func TestLoadUnsupportedType(t *testing.T) {
	path := writeTempFile(t, "vpat.pdf", "%PDF-1.4")

	_, err := Load(path, 0)

	assert.ErrorContains(t, err, "unsupported file type")
}
