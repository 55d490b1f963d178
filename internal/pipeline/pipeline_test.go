package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vpat-cli/internal/config"
	"github.com/sells-group/vpat-cli/internal/grid"
)

// stubProvider returns scripted responses per call, in call order.
type stubProvider struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	respond func(call int, prompt string) (string, error)
}

func (s *stubProvider) Complete(_ context.Context, _ string, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.calls
	s.calls++
	s.prompts = append(s.prompts, user)
	return s.respond(call, user)
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testConfig() *config.Config {
	return &config.Config{
		Batch:     config.BatchConfig{Size: 10},
		Interpret: config.InterpretConfig{ConfidenceThreshold: 70},
		Extract:   config.ExtractConfig{ColumnCount: 3, MaxDocChars: 20000},
	}
}

var interpretHeaders = []string{
	HeaderCriteria, HeaderConformance, HeaderRemarks,
	HeaderInterpreted, HeaderNeedsReview, HeaderAIComments,
}

// newWorkbook creates a temp-file workbook with the given header row.
func newWorkbook(t *testing.T, headers []string) *grid.XLSX {
	t.Helper()
	wb, err := grid.NewXLSX(filepath.Join(t.TempDir(), "workbook.xlsx"), "VPAT")
	require.NoError(t, err)
	for col, name := range headers {
		require.NoError(t, wb.SetCell(headerRow, col, name))
	}
	return wb
}

func setRow(t *testing.T, wb grid.Grid, row int, cells ...string) {
	t.Helper()
	for col, v := range cells {
		require.NoError(t, wb.SetCell(row, col, v))
	}
}

func TestExtractJoinsDocumentTables(t *testing.T) {
	wb := newWorkbook(t, interpretHeaders)
	setRow(t, wb, 1, "1.2.1 Audio-only and Video-only")
	setRow(t, wb, 5, "1.1.1 Non-text Content")
	setRow(t, wb, 9, "4.1.2 Name, Role, Value")

	doc := `<html><body>
<table>
  <tr><th>Criteria</th><th>Conformance Level</th><th>Remarks</th></tr>
  <tr><td>1.1.1 Non-text Content</td><td>Supports</td><td>All images carry alt text</td></tr>
</table>
<table>
  <tr><th>Criteria</th><th>Conformance Level</th><th>Remarks</th></tr>
  <tr><td>1.1.1 Non-text Content</td><td>Partially Supports</td><td>Decorative images unmarked</td></tr>
  <tr><td>4.1.2 Name, Role, Value</td><td>Supports</td><td>ARIA roles assigned</td></tr>
</table>
</body></html>`
	path := filepath.Join(t.TempDir(), "vpat.html")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	summary, err := Extract(context.Background(), testConfig(), wb, []string{path}, nil)
	require.NoError(t, err)

	// Later table wins for 1.1.1.
	assert.Equal(t, "Partially Supports", wb.Cell(5, 1))
	assert.Equal(t, "Decorative images unmarked", wb.Cell(5, 2))
	assert.Equal(t, "Supports", wb.Cell(9, 1))
	assert.Equal(t, "ARIA roles assigned", wb.Cell(9, 2))
	assert.Empty(t, wb.Cell(1, 1))

	assert.Equal(t, 2, summary.Succeeded)
	assert.Zero(t, summary.Failed)
}

func TestExtractLaterDocumentWins(t *testing.T) {
	wb := newWorkbook(t, interpretHeaders)
	setRow(t, wb, 3, "1.4.3 Contrast (Minimum)")

	table := `<html><body><table>
  <tr><th>Criteria</th><th>Conformance</th><th>Remarks</th></tr>
  <tr><td>1.4.3 Contrast (Minimum)</td><td>%s</td><td>%s</td></tr>
</table></body></html>`

	dir := t.TempDir()
	first := filepath.Join(dir, "a.html")
	second := filepath.Join(dir, "b.html")
	require.NoError(t, os.WriteFile(first, fmt.Appendf(nil, table, "Does Not Support", "old audit"), 0o644))
	require.NoError(t, os.WriteFile(second, fmt.Appendf(nil, table, "Supports", "remediated"), 0o644))

	_, err := Extract(context.Background(), testConfig(), wb, []string{first, second}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Supports", wb.Cell(3, 1))
	assert.Equal(t, "remediated", wb.Cell(3, 2))
}

func TestExtractMissingHeaderFails(t *testing.T) {
	wb := newWorkbook(t, []string{HeaderCriteria, "Level", HeaderRemarks})
	setRow(t, wb, 1, "1.1.1 Non-text Content")

	_, err := Extract(context.Background(), testConfig(), wb, []string{"unused.html"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestExtractRejectsUnreadableDocument(t *testing.T) {
	wb := newWorkbook(t, interpretHeaders)
	setRow(t, wb, 1, "1.1.1 Non-text Content")

	_, err := Extract(context.Background(), testConfig(), wb, []string{filepath.Join(t.TempDir(), "missing.html")}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceLoad)
}

func interpretWorkbook(t *testing.T) *grid.XLSX {
	t.Helper()
	wb := newWorkbook(t, interpretHeaders)
	setRow(t, wb, 1, "1.1.1 Non-text Content", "Supports", "alt text everywhere")
	setRow(t, wb, 2, "1.4.3 Contrast (Minimum)", "Partial", "some low-contrast text")
	return wb
}

func TestInterpretConfidenceThreshold(t *testing.T) {
	wb := interpretWorkbook(t)
	ai := &stubProvider{respond: func(int, string) (string, error) {
		return `[{"rowNumber": 1, "conformance": "supports", "confidence": 80, "comment": "clear"},
		         {"rowNumber": 2, "conformance": "Partially Supports", "confidence": 60, "comment": "verify contrast ratios"}]`, nil
	}}

	summary, err := Interpret(context.Background(), testConfig(), wb, ai, nil)
	require.NoError(t, err)

	// High confidence: no review flag, no comment, synonym normalized.
	assert.Equal(t, "Supports", wb.Cell(1, 3))
	assert.Equal(t, "false", wb.Cell(1, 4))
	assert.Empty(t, wb.Cell(1, 5))

	// Below threshold: flagged, comment preserved.
	assert.Equal(t, "Partially Supports", wb.Cell(2, 3))
	assert.Equal(t, "true", wb.Cell(2, 4))
	assert.Equal(t, "verify contrast ratios", wb.Cell(2, 5))

	assert.Equal(t, 2, summary.Succeeded)
	assert.Zero(t, summary.Coerced)
	assert.Equal(t, 1, summary.Batches)
}

func TestInterpretFencedResponse(t *testing.T) {
	wb := interpretWorkbook(t)
	ai := &stubProvider{respond: func(int, string) (string, error) {
		return "```json\n[{\"rowNumber\": 1, \"conformance\": \"Supports\", \"confidence\": 90, \"comment\": \"\"},\n" +
			"{\"rowNumber\": 2, \"conformance\": \"Does Not Support\", \"confidence\": 85, \"comment\": \"\"}]\n```", nil
	}}

	summary, err := Interpret(context.Background(), testConfig(), wb, ai, nil)
	require.NoError(t, err)
	assert.Equal(t, "Supports", wb.Cell(1, 3))
	assert.Equal(t, "Does Not Support", wb.Cell(2, 3))
	assert.Equal(t, 2, summary.Succeeded)
}

func TestInterpretCoercesUnknownConformance(t *testing.T) {
	wb := interpretWorkbook(t)
	ai := &stubProvider{respond: func(int, string) (string, error) {
		return `[{"rowNumber": 1, "conformance": "sort of works", "confidence": 95, "comment": ""},
		         {"rowNumber": 2, "conformance": "Supports", "confidence": 95, "comment": ""}]`, nil
	}}

	summary, err := Interpret(context.Background(), testConfig(), wb, ai, nil)
	require.NoError(t, err)

	// Unrecognized value falls back to the enum, never written raw.
	assert.Equal(t, "Not Evaluated", wb.Cell(1, 3))
	assert.Equal(t, 1, summary.Coerced)
}

func TestInterpretMissingResponseFlagged(t *testing.T) {
	wb := interpretWorkbook(t)
	ai := &stubProvider{respond: func(int, string) (string, error) {
		return `[{"rowNumber": 1, "conformance": "Supports", "confidence": 90, "comment": ""}]`, nil
	}}

	summary, err := Interpret(context.Background(), testConfig(), wb, ai, nil)
	require.NoError(t, err)

	assert.Equal(t, "Supports", wb.Cell(1, 3))
	assert.Equal(t, "Not Evaluated", wb.Cell(2, 3))
	assert.Equal(t, "true", wb.Cell(2, 4))
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
}

func TestInterpretBatchFailureIsolated(t *testing.T) {
	wb := newWorkbook(t, interpretHeaders)
	setRow(t, wb, 1, "1.1.1 Non-text Content", "Supports", "")
	setRow(t, wb, 2, "1.2.1 Audio-only and Video-only", "Supports", "")
	setRow(t, wb, 3, "1.4.3 Contrast (Minimum)", "Partial", "")
	setRow(t, wb, 4, "4.1.2 Name, Role, Value", "Supports", "")

	ai := &stubProvider{respond: func(call int, _ string) (string, error) {
		if call == 0 {
			return "", eris.New("prompt rejected")
		}
		return `[{"rowNumber": 3, "conformance": "Partially Supports", "confidence": 90, "comment": ""},
		         {"rowNumber": 4, "conformance": "Supports", "confidence": 90, "comment": ""}]`, nil
	}}

	cfg := testConfig()
	cfg.Batch.Size = 2

	summary, err := Interpret(context.Background(), cfg, wb, ai, nil)
	require.NoError(t, err)

	// First batch: error marker on every row, processing continued.
	for _, row := range []int{1, 2} {
		assert.Equal(t, "Not Evaluated", wb.Cell(row, 3))
		assert.Equal(t, "true", wb.Cell(row, 4))
		assert.Equal(t, failedBatchComment, wb.Cell(row, 5))
	}

	// Second batch landed normally.
	assert.Equal(t, "Partially Supports", wb.Cell(3, 3))
	assert.Equal(t, "Supports", wb.Cell(4, 3))

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 2, summary.Batches)
	assert.Equal(t, 2, ai.callCount())
}

func TestInterpretMissingHeaderBeforeAnyCall(t *testing.T) {
	wb := newWorkbook(t, []string{HeaderCriteria, HeaderConformance, HeaderRemarks})
	setRow(t, wb, 1, "1.1.1 Non-text Content", "Supports", "")

	ai := &stubProvider{respond: func(int, string) (string, error) {
		return "[]", nil
	}}

	_, err := Interpret(context.Background(), testConfig(), wb, ai, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Zero(t, ai.callCount())
}

func TestInterpretSkipsUnpopulatedRows(t *testing.T) {
	wb := newWorkbook(t, interpretHeaders)
	setRow(t, wb, 1, "1.1.1 Non-text Content", "Supports", "")
	setRow(t, wb, 2, "1.4.3 Contrast (Minimum)", "", "") // no data yet
	setRow(t, wb, 3, "", "Supports", "stray")            // no criteria

	ai := &stubProvider{respond: func(_ int, prompt string) (string, error) {
		assert.Contains(t, prompt, "Row 1:")
		assert.NotContains(t, prompt, "Row 2:")
		assert.NotContains(t, prompt, "Row 3:")
		return `[{"rowNumber": 1, "conformance": "Supports", "confidence": 90, "comment": ""}]`, nil
	}}

	summary, err := Interpret(context.Background(), testConfig(), wb, ai, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, ai.callCount())
}

func writeChecklist(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checklist.yaml")
	data := `requirements:
  - id: req-1
    question: Are all images described?
    ai_guidelines: Answer from the 1.1.1 row only.
    response_type: yes/no
    criteria: 1.1.1 Non-text Content
  - id: req-2
    question: Is keyboard navigation complete?
    ai_guidelines: Consider every 2.1.x row.
    response_type: yes/no
    criteria: 2.1.1 Keyboard
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestQualityWritesChecklistAnswers(t *testing.T) {
	wb := newWorkbook(t, interpretHeaders)
	setRow(t, wb, 1, "1.1.1 Non-text Content", "Supports", "alt text everywhere")
	setRow(t, wb, 2, "2.1.1 Keyboard", "Partially Supports", "focus traps in dialogs")

	out, err := grid.NewXLSX(filepath.Join(t.TempDir(), "quality.xlsx"), "Quality")
	require.NoError(t, err)

	ai := &stubProvider{respond: func(_ int, prompt string) (string, error) {
		assert.Contains(t, prompt, "1.1.1 Non-text Content: Supports")
		return `[{"reqId": "req-1", "answer": "Yes", "confidence": 90, "comment": ""},
		         {"reqId": "req-2", "answer": "No", "confidence": 55, "comment": "dialog focus traps unresolved"}]`, nil
	}}

	cfg := testConfig()
	cfg.Checklist.Path = writeChecklist(t)

	summary, err := Quality(context.Background(), cfg, wb, out, ai, nil)
	require.NoError(t, err)

	assert.Equal(t, HeaderReqID, out.Cell(0, 0))
	assert.Equal(t, "req-1", out.Cell(1, 0))
	assert.Equal(t, "Are all images described?", out.Cell(1, 1))
	assert.Equal(t, "Yes", out.Cell(1, 3))
	assert.Equal(t, "90", out.Cell(1, 4))
	assert.Equal(t, "false", out.Cell(1, 5))
	assert.Empty(t, out.Cell(1, 6))

	assert.Equal(t, "No", out.Cell(2, 3))
	assert.Equal(t, "true", out.Cell(2, 5))
	assert.Equal(t, "dialog focus traps unresolved", out.Cell(2, 6))

	assert.Equal(t, 2, summary.Succeeded)
	assert.Zero(t, summary.Failed)
}

func TestQualityRequiresChecklistPath(t *testing.T) {
	wb := newWorkbook(t, interpretHeaders)
	out, err := grid.NewXLSX(filepath.Join(t.TempDir(), "quality.xlsx"), "Quality")
	require.NoError(t, err)

	_, err = Quality(context.Background(), testConfig(), wb, out, &stubProvider{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestQualityBatchFailureMarksRequirements(t *testing.T) {
	wb := newWorkbook(t, interpretHeaders)
	setRow(t, wb, 1, "1.1.1 Non-text Content", "Supports", "")

	out, err := grid.NewXLSX(filepath.Join(t.TempDir(), "quality.xlsx"), "Quality")
	require.NoError(t, err)

	ai := &stubProvider{respond: func(int, string) (string, error) {
		return "", eris.New("prompt rejected")
	}}

	cfg := testConfig()
	cfg.Checklist.Path = writeChecklist(t)

	summary, err := Quality(context.Background(), cfg, wb, out, ai, nil)
	require.NoError(t, err)

	// Identity columns survive the failure; answers carry the marker.
	assert.Equal(t, "req-1", out.Cell(1, 0))
	assert.Equal(t, failedBatchComment, out.Cell(1, 6))
	assert.Equal(t, "true", out.Cell(1, 5))
	assert.Equal(t, 2, summary.Failed)
}
