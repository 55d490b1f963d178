package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vpat-cli/internal/batch"
	"github.com/sells-group/vpat-cli/internal/config"
	"github.com/sells-group/vpat-cli/internal/grid"
	"github.com/sells-group/vpat-cli/internal/model"
	"github.com/sells-group/vpat-cli/internal/provider"
	"github.com/sells-group/vpat-cli/internal/reconcile"
	"github.com/sells-group/vpat-cli/internal/resilience"
	"github.com/sells-group/vpat-cli/internal/store"
)

// failedBatchComment marks items of a batch whose remote call failed.
const failedBatchComment = "AI processing failed"

// interpretSchema is the resolved column layout for the interpretation
// pipeline.
type interpretSchema struct {
	extractSchema
	interpreted int
	needsReview int
	aiComments  int
}

func resolveInterpretSchema(wb grid.Grid) (*interpretSchema, error) {
	base, err := resolveExtractSchema(wb)
	if err != nil {
		return nil, err
	}
	s := interpretSchema{extractSchema: *base}
	if s.interpreted, err = wb.HeaderColumn(headerRow, HeaderInterpreted); err != nil {
		return nil, eris.Wrapf(ErrConfiguration, "resolve header %q", HeaderInterpreted)
	}
	if s.needsReview, err = wb.HeaderColumn(headerRow, HeaderNeedsReview); err != nil {
		return nil, eris.Wrapf(ErrConfiguration, "resolve header %q", HeaderNeedsReview)
	}
	if s.aiComments, err = wb.HeaderColumn(headerRow, HeaderAIComments); err != nil {
		return nil, eris.Wrapf(ErrConfiguration, "resolve header %q", HeaderAIComments)
	}
	return &s, nil
}

// collectRowItems builds the flat work list from populated workbook rows.
// A row qualifies when its criteria cell is non-empty and it carries either
// a documented conformance or remarks.
func collectRowItems(wb grid.Grid, schema *interpretSchema) []model.RowItem {
	var items []model.RowItem
	for row := headerRow + 1; row < wb.Rows(); row++ {
		crit := wb.Cell(row, schema.criteria)
		conf := wb.Cell(row, schema.conformance)
		remarks := wb.Cell(row, schema.remarks)
		if crit == "" || (conf == "" && remarks == "") {
			continue
		}
		items = append(items, model.RowItem{
			Criteria:         crit,
			ConformanceLevel: conf,
			Remarks:          remarks,
			RowNumber:        row,
		})
	}
	return items
}

// Interpret sends populated workbook rows to the AI provider in sequential
// batches, reconciles the replies against row identity, normalizes the
// returned conformance values into the closed enum, and writes the
// interpreted columns back. Batch failures are absorbed per batch; the
// pipeline always writes something to every submitted row.
func Interpret(ctx context.Context, cfg *config.Config, wb grid.Workbook, ai provider.Provider, auditor *Auditor) (summary *model.RunSummary, err error) {
	start := time.Now()
	summary = &model.RunSummary{Pipeline: "interpret"}
	defer func() {
		summary.Duration = time.Since(start).Milliseconds()
		auditor.Finish(ctx, summary, err)
		logSummary(summary, err)
	}()

	if err = cfg.Validate(); err != nil {
		return summary, eris.Wrap(ErrConfiguration, err.Error())
	}

	schema, err := resolveInterpretSchema(wb)
	if err != nil {
		return summary, err
	}

	items := collectRowItems(wb, schema)
	if len(items) == 0 {
		zap.L().Info("interpret: no populated rows to process")
		return summary, nil
	}

	batches := batch.Split(items, cfg.Batch.Size)
	summary.Batches = len(batches)

	runner := batch.Runner[model.RowItem]{Delay: time.Duration(cfg.Batch.DelayMS) * time.Millisecond}
	err = runner.Run(ctx, batches,
		func(ctx context.Context, index int, items []model.RowItem) error {
			return interpretBatch(ctx, cfg, wb, schema, ai, items, summary, auditor)
		},
		func(index int, items []model.RowItem, batchErr error) {
			markBatchFailed(ctx, wb, schema, items, summary, auditor, batchErr)
		},
	)
	if err != nil {
		return summary, eris.Wrap(err, "interpret: batch run")
	}

	if err = wb.Save(); err != nil {
		return summary, eris.Wrap(err, "interpret: save workbook")
	}

	return summary, nil
}

// interpretBatch performs one remote call and writes its reconciled
// results. Returning an error hands the whole batch to markBatchFailed.
func interpretBatch(ctx context.Context, cfg *config.Config, wb grid.Grid, schema *interpretSchema, ai provider.Provider, items []model.RowItem, summary *model.RunSummary, auditor *Auditor) error {
	prompt := buildInterpretPrompt(items)

	raw, err := resilience.DoVal(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) (string, error) {
		return ai.Complete(ctx, interpretSystemPrompt, prompt)
	})
	if err != nil {
		return eris.Wrap(err, "interpret: provider call")
	}

	responses, err := reconcile.Parse(raw)
	if err != nil {
		return eris.Wrap(err, "interpret: parse reply")
	}

	identities := make([]string, len(items))
	for i, item := range items {
		identities[i] = strconv.Itoa(item.RowNumber)
	}

	aligned := reconcile.Align(identities, responses, "rowNumber")
	for i, a := range aligned {
		answer := toInterpretedAnswer(a, cfg.Interpret.ConfidenceThreshold)
		recordAlignmentEvents(ctx, auditor, items[i].RowNumber, a)

		if answer.Coerced() && !a.Missing {
			summary.Coerced++
			auditor.Event(ctx, store.Event{
				Kind:   store.EventCoerced,
				Row:    items[i].RowNumber,
				Detail: reconcile.FieldString(a.Fields, "conformance"),
			})
		}

		if writeErr := writeInterpreted(wb, schema, items[i].RowNumber, answer); writeErr != nil {
			zap.L().Warn("interpret: row write failed",
				zap.Int("row", items[i].RowNumber),
				zap.Error(writeErr),
			)
			auditor.Event(ctx, store.Event{Kind: store.EventRowFailed, Row: items[i].RowNumber, Detail: writeErr.Error()})
			summary.Failed++
			continue
		}
		// A row the provider never answered gets the flagged default but
		// still counts as failed work.
		if a.Missing {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}

	return nil
}

// interpreted is the write-ready form of one reconciled answer.
type interpreted struct {
	Level       model.ConformanceLevel
	NeedsReview bool
	Comment     string
	coerced     bool
}

func (i interpreted) Coerced() bool { return i.coerced }

// toInterpretedAnswer applies the value-normalization and confidence
// policies to one aligned response. Missing responses carry no confidence
// and are always flagged for review; the interpreted column is never left
// blank.
func toInterpretedAnswer(a reconcile.Aligned, threshold int) interpreted {
	level, coerced := model.CoerceConformance(reconcile.FieldString(a.Fields, "conformance"))

	confidence, hasConfidence := reconcile.FieldInt(a.Fields, "confidence")
	needsReview := !hasConfidence || confidence < threshold

	comment := ""
	if needsReview {
		comment = reconcile.FieldString(a.Fields, "comment")
	}

	return interpreted{
		Level:       level,
		NeedsReview: needsReview,
		Comment:     comment,
		coerced:     coerced,
	}
}

func recordAlignmentEvents(ctx context.Context, auditor *Auditor, row int, a reconcile.Aligned) {
	if a.MatchedByPosition {
		auditor.Event(ctx, store.Event{Kind: store.EventMatchedByPosition, Row: row})
	}
	if a.Missing {
		auditor.Event(ctx, store.Event{Kind: store.EventNoResponse, Row: row})
	}
}

func writeInterpreted(wb grid.Grid, schema *interpretSchema, row int, answer interpreted) error {
	if err := wb.SetCell(row, schema.interpreted, string(answer.Level)); err != nil {
		return err
	}
	if err := wb.SetCell(row, schema.needsReview, strconv.FormatBool(answer.NeedsReview)); err != nil {
		return err
	}
	return wb.SetCell(row, schema.aiComments, answer.Comment)
}

// markBatchFailed writes the error placeholder to every item of a failed
// batch so no submitted row is ever left blank, then lets the runner move
// on to the next batch.
func markBatchFailed(ctx context.Context, wb grid.Grid, schema *interpretSchema, items []model.RowItem, summary *model.RunSummary, auditor *Auditor, batchErr error) {
	for _, item := range items {
		auditor.Event(ctx, store.Event{Kind: store.EventBatchFailed, Row: item.RowNumber, Detail: batchErr.Error()})
		answer := interpreted{Level: model.NotEvaluated, NeedsReview: true, Comment: failedBatchComment}
		if writeErr := writeInterpreted(wb, schema, item.RowNumber, answer); writeErr != nil {
			zap.L().Warn("interpret: failed-batch write failed",
				zap.Int("row", item.RowNumber),
				zap.Error(writeErr),
			)
		}
		summary.Failed++
	}
}
