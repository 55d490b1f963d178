package pipeline

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vpat-cli/internal/batch"
	"github.com/sells-group/vpat-cli/internal/checklist"
	"github.com/sells-group/vpat-cli/internal/config"
	"github.com/sells-group/vpat-cli/internal/document"
	"github.com/sells-group/vpat-cli/internal/grid"
	"github.com/sells-group/vpat-cli/internal/model"
	"github.com/sells-group/vpat-cli/internal/provider"
	"github.com/sells-group/vpat-cli/internal/reconcile"
	"github.com/sells-group/vpat-cli/internal/resilience"
	"github.com/sells-group/vpat-cli/internal/store"
)

// Quality result sheet headers.
const (
	HeaderReqID      = "Requirement ID"
	HeaderQuestion   = "Question"
	HeaderAnswer     = "Answer"
	HeaderConfidence = "Confidence"
	HeaderComments   = "Comments"
)

var qualityHeaders = []string{
	HeaderReqID, HeaderQuestion, HeaderCriteria,
	HeaderAnswer, HeaderConfidence, HeaderNeedsReview, HeaderComments,
}

// Quality answers the requirement checklist against the workbook's
// conformance data and writes one result row per requirement to out.
// Requirements are batched flat; grouping by criteria tag is logged for
// operator orientation only.
func Quality(ctx context.Context, cfg *config.Config, wb grid.Grid, out grid.Workbook, ai provider.Provider, auditor *Auditor) (summary *model.RunSummary, err error) {
	start := time.Now()
	summary = &model.RunSummary{Pipeline: "quality"}
	defer func() {
		summary.Duration = time.Since(start).Milliseconds()
		auditor.Finish(ctx, summary, err)
		logSummary(summary, err)
	}()

	if err = cfg.Validate(); err != nil {
		return summary, eris.Wrap(ErrConfiguration, err.Error())
	}
	if cfg.Checklist.Path == "" {
		return summary, eris.Wrap(ErrConfiguration, "quality: checklist path not set")
	}

	schema, err := resolveExtractSchema(wb)
	if err != nil {
		return summary, err
	}

	reqs, err := checklist.Load(cfg.Checklist.Path)
	if err != nil {
		return summary, eris.Wrap(ErrConfiguration, err.Error())
	}
	for i := range reqs {
		reqs[i].RowIndex = i + 1
	}

	for _, group := range checklist.Group(reqs) {
		zap.L().Info("quality: requirement group",
			zap.Int("criteriaTag", group.CriteriaNum),
			zap.Int("requirements", len(group.Requirements)),
		)
	}

	docContext := conformanceContext(wb, schema, cfg.Extract.MaxDocChars)
	if docContext == "" {
		return summary, eris.Wrap(ErrSourceLoad, "quality: workbook has no populated rows")
	}

	if err = writeQualityHeaders(out); err != nil {
		return summary, eris.Wrap(err, "quality: write headers")
	}
	for _, req := range reqs {
		if err = writeRequirement(out, req); err != nil {
			return summary, eris.Wrap(err, "quality: write requirement rows")
		}
	}

	batches := batch.Split(reqs, cfg.Batch.Size)
	summary.Batches = len(batches)

	runner := batch.Runner[model.Requirement]{Delay: time.Duration(cfg.Batch.DelayMS) * time.Millisecond}
	err = runner.Run(ctx, batches,
		func(ctx context.Context, index int, reqs []model.Requirement) error {
			return qualityBatch(ctx, cfg, out, ai, reqs, docContext, summary, auditor)
		},
		func(index int, reqs []model.Requirement, batchErr error) {
			markQualityBatchFailed(ctx, out, reqs, summary, auditor, batchErr)
		},
	)
	if err != nil {
		return summary, eris.Wrap(err, "quality: batch run")
	}

	if err = out.Save(); err != nil {
		return summary, eris.Wrap(err, "quality: save results")
	}

	return summary, nil
}

// conformanceContext renders the populated workbook rows as the shared
// evidence block for every quality prompt, truncated at maxChars.
func conformanceContext(wb grid.Grid, schema *extractSchema, maxChars int) string {
	var b strings.Builder
	for row := headerRow + 1; row < wb.Rows(); row++ {
		crit := wb.Cell(row, schema.criteria)
		conf := wb.Cell(row, schema.conformance)
		remarks := wb.Cell(row, schema.remarks)
		if crit == "" || (conf == "" && remarks == "") {
			continue
		}
		b.WriteString(crit)
		b.WriteString(": ")
		b.WriteString(conf)
		if remarks != "" {
			b.WriteString(" | ")
			b.WriteString(remarks)
		}
		b.WriteString("\n")
	}

	return document.Truncate(b.String(), maxChars)
}

func qualityBatch(ctx context.Context, cfg *config.Config, out grid.Grid, ai provider.Provider, reqs []model.Requirement, docContext string, summary *model.RunSummary, auditor *Auditor) error {
	prompt := buildQualityPrompt(reqs, docContext)

	raw, err := resilience.DoVal(ctx, resilience.DefaultRetryConfig(), func(ctx context.Context) (string, error) {
		return ai.Complete(ctx, qualitySystemPrompt, prompt)
	})
	if err != nil {
		return eris.Wrap(err, "quality: provider call")
	}

	responses, err := reconcile.Parse(raw)
	if err != nil {
		return eris.Wrap(err, "quality: parse reply")
	}

	identities := make([]string, len(reqs))
	for i, req := range reqs {
		identities[i] = req.ReqID
	}

	aligned := reconcile.Align(identities, responses, "reqId")
	for i, a := range aligned {
		req := reqs[i]
		recordAlignmentEvents(ctx, auditor, req.RowIndex, a)

		confidence, hasConfidence := reconcile.FieldInt(a.Fields, "confidence")
		needsReview := !hasConfidence || confidence < cfg.Interpret.ConfidenceThreshold

		answer := qualityAnswer{
			Answer:      reconcile.FieldString(a.Fields, "answer"),
			Confidence:  confidence,
			NeedsReview: needsReview,
		}
		if needsReview {
			answer.Comment = reconcile.FieldString(a.Fields, "comment")
		}

		if writeErr := writeQualityAnswer(out, req.RowIndex, answer); writeErr != nil {
			zap.L().Warn("quality: row write failed",
				zap.String("reqId", req.ReqID),
				zap.Error(writeErr),
			)
			auditor.Event(ctx, store.Event{Kind: store.EventRowFailed, Row: req.RowIndex, Detail: writeErr.Error()})
			summary.Failed++
			continue
		}
		if a.Missing {
			summary.Failed++
		} else {
			summary.Succeeded++
		}
	}

	return nil
}

// qualityAnswer is the write-ready form of one reconciled checklist answer.
type qualityAnswer struct {
	Answer      string
	Confidence  int
	NeedsReview bool
	Comment     string
}

func writeQualityHeaders(out grid.Grid) error {
	for col, name := range qualityHeaders {
		if err := out.SetCell(headerRow, col, name); err != nil {
			return err
		}
	}
	return nil
}

// writeRequirement fills the identity columns of one result row so even a
// fully failed run leaves a readable checklist skeleton.
func writeRequirement(out grid.Grid, req model.Requirement) error {
	if err := out.SetCell(req.RowIndex, 0, req.ReqID); err != nil {
		return err
	}
	if err := out.SetCell(req.RowIndex, 1, req.Question); err != nil {
		return err
	}
	return out.SetCell(req.RowIndex, 2, req.CriteriaName)
}

func writeQualityAnswer(out grid.Grid, row int, answer qualityAnswer) error {
	if err := out.SetCell(row, 3, answer.Answer); err != nil {
		return err
	}
	if err := out.SetCell(row, 4, strconv.Itoa(answer.Confidence)); err != nil {
		return err
	}
	if err := out.SetCell(row, 5, strconv.FormatBool(answer.NeedsReview)); err != nil {
		return err
	}
	return out.SetCell(row, 6, answer.Comment)
}

func markQualityBatchFailed(ctx context.Context, out grid.Grid, reqs []model.Requirement, summary *model.RunSummary, auditor *Auditor, batchErr error) {
	for _, req := range reqs {
		auditor.Event(ctx, store.Event{Kind: store.EventBatchFailed, Row: req.RowIndex, Detail: batchErr.Error()})
		answer := qualityAnswer{NeedsReview: true, Comment: failedBatchComment}
		if writeErr := writeQualityAnswer(out, req.RowIndex, answer); writeErr != nil {
			zap.L().Warn("quality: failed-batch write failed",
				zap.String("reqId", req.ReqID),
				zap.Error(writeErr),
			)
		}
		summary.Failed++
	}
}
