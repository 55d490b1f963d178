package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/vpat-cli/internal/config"
	"github.com/sells-group/vpat-cli/internal/criteria"
	"github.com/sells-group/vpat-cli/internal/document"
	"github.com/sells-group/vpat-cli/internal/grid"
	"github.com/sells-group/vpat-cli/internal/model"
	"github.com/sells-group/vpat-cli/internal/store"
)

// Workbook column headers the pipelines resolve. Matching is exact and
// case-sensitive; a missing required header aborts the run before any
// remote call.
const (
	HeaderCriteria    = "Criteria"
	HeaderConformance = "Conformance Level"
	HeaderRemarks     = "Remarks and Explanations"
	HeaderInterpreted = "Interpreted Conformance"
	HeaderNeedsReview = "Needs Review"
	HeaderAIComments  = "AI Comments"
)

// headerRow is the workbook row carrying column headers.
const headerRow = 0

// maxParseConcurrency bounds concurrent source-document parsing. Grid
// writes stay strictly sequential regardless.
const maxParseConcurrency = 4

// extractSchema is the resolved column layout for the extraction pipeline.
type extractSchema struct {
	criteria    int
	conformance int
	remarks     int
}

func resolveExtractSchema(wb grid.Grid) (*extractSchema, error) {
	var s extractSchema
	var err error
	if s.criteria, err = wb.HeaderColumn(headerRow, HeaderCriteria); err != nil {
		return nil, eris.Wrapf(ErrConfiguration, "resolve header %q", HeaderCriteria)
	}
	if s.conformance, err = wb.HeaderColumn(headerRow, HeaderConformance); err != nil {
		return nil, eris.Wrapf(ErrConfiguration, "resolve header %q", HeaderConformance)
	}
	if s.remarks, err = wb.HeaderColumn(headerRow, HeaderRemarks); err != nil {
		return nil, eris.Wrapf(ErrConfiguration, "resolve header %q", HeaderRemarks)
	}
	return &s, nil
}

// Extract loads the source documents, joins their table rows against the
// workbook's criteria column, and writes conformance and remarks back to
// the matched rows. Documents are parsed concurrently; writes happen in
// input order so a later document overwrites an earlier one for the same
// criteria key.
func Extract(ctx context.Context, cfg *config.Config, wb grid.Workbook, docPaths []string, auditor *Auditor) (summary *model.RunSummary, err error) {
	start := time.Now()
	summary = &model.RunSummary{Pipeline: "extract"}
	defer func() {
		summary.Duration = time.Since(start).Milliseconds()
		auditor.Finish(ctx, summary, err)
		logSummary(summary, err)
	}()

	if err = cfg.Validate(); err != nil {
		return summary, eris.Wrap(ErrConfiguration, err.Error())
	}
	if len(docPaths) == 0 {
		return summary, eris.Wrap(ErrSourceLoad, "no source documents given")
	}

	schema, err := resolveExtractSchema(wb)
	if err != nil {
		return summary, err
	}

	// The criteria index is rebuilt from the grid's current contents on
	// every run; nothing is cached across operations.
	labels := wb.Column(schema.criteria, headerRow+1)
	index := criteria.BuildIndex(labels, headerRow+1)
	if len(index) == 0 {
		return summary, eris.Wrap(ErrConfiguration, "workbook criteria column yields no keys")
	}

	docs := make([]*document.Document, len(docPaths))
	var g errgroup.Group
	g.SetLimit(maxParseConcurrency)
	for i, path := range docPaths {
		g.Go(func() error {
			doc, loadErr := document.Load(path, cfg.Extract.MaxDocChars)
			if loadErr != nil {
				return eris.Wrapf(ErrSourceLoad, "load %s: %s", path, loadErr.Error())
			}
			if len(doc.Tables) == 0 {
				return eris.Wrapf(ErrSourceLoad, "document %s has no tables", path)
			}
			docs[i] = doc
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return summary, err
	}

	// Fold documents in input order: later documents win on key collisions,
	// same as later tables within one document.
	records := make(map[int]model.ExtractedRecord)
	for _, doc := range docs {
		for rowID, rec := range document.Extract(doc.Tables, index, cfg.Extract.ColumnCount) {
			records[rowID] = rec
		}
	}

	for rowID, rec := range records {
		if writeErr := writeExtracted(wb, schema, rowID, rec); writeErr != nil {
			zap.L().Warn("extract: row write failed",
				zap.Int("row", rowID),
				zap.Error(writeErr),
			)
			auditor.Event(ctx, store.Event{Kind: store.EventRowFailed, Row: rowID, Detail: writeErr.Error()})
			summary.Failed++
			continue
		}
		summary.Succeeded++
	}

	if err = wb.Save(); err != nil {
		return summary, eris.Wrap(err, "extract: save workbook")
	}

	return summary, nil
}

func writeExtracted(wb grid.Grid, schema *extractSchema, rowID int, rec model.ExtractedRecord) error {
	if err := wb.SetCell(rowID, schema.conformance, rec.ConformanceLevel); err != nil {
		return err
	}
	return wb.SetCell(rowID, schema.remarks, rec.Remarks)
}

// logSummary emits the single user-facing result line for a pipeline run.
func logSummary(summary *model.RunSummary, err error) {
	fields := []zap.Field{
		zap.String("pipeline", summary.Pipeline),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("coerced", summary.Coerced),
		zap.Int("batches", summary.Batches),
		zap.Int64("duration_ms", summary.Duration),
	}
	if err != nil {
		zap.L().Error("pipeline failed", append(fields, zap.Error(err))...)
		return
	}
	zap.L().Info("pipeline finished", fields...)
}
