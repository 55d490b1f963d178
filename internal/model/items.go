// Package model defines the record types flowing through the extraction,
// interpretation, and quality pipelines.
package model

import "time"

// ExtractedRecord is one (conformance, remarks) pair lifted from a document
// table, keyed externally by workbook row. Created transiently during one
// extraction pass, written to the grid, then discarded.
type ExtractedRecord struct {
	ConformanceLevel string
	Remarks          string
	OriginalCriteria string
}

// RowItem is a populated workbook row submitted for AI interpretation.
// RowNumber is the reconciliation identity: a best-effort secondary match
// key, never an authoritative ordering.
type RowItem struct {
	Criteria         string `json:"criteria"`
	ConformanceLevel string `json:"conformanceLevel"`
	Remarks          string `json:"remarks"`
	RowNumber        int    `json:"rowNumber"`
}

// Requirement is one quality-checklist question submitted for AI analysis.
// ReqID is the reconciliation identity.
type Requirement struct {
	ReqID        string `json:"reqId" yaml:"id"`
	Question     string `json:"question" yaml:"question"`
	AIGuidelines string `json:"aiGuidelines" yaml:"ai_guidelines"`
	ResponseType string `json:"responseType" yaml:"response_type"`
	CriteriaName string `json:"criteriaName" yaml:"criteria"`
	RowIndex     int    `json:"-" yaml:"-"`
}

// RequirementGroup holds requirements sharing a numeric criteria tag.
// Grouping is informational — batching always runs on the flat list.
type RequirementGroup struct {
	CriteriaNum  int
	Requirements []Requirement
}

// InterpretedAnswer is one reconciled AI judgment for a row or requirement.
type InterpretedAnswer struct {
	Identity     string
	Conformance  ConformanceLevel
	Answer       string
	Confidence   int
	Comment      string
	NeedsReview  bool
	Failed       bool
	MatchedByPos bool
}

// RunStatus tracks a pipeline run's lifecycle in the audit store.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded pipeline invocation.
type Run struct {
	ID        string
	Pipeline  string
	Status    RunStatus
	Summary   *RunSummary
	Error     string
	StartedAt time.Time
	UpdatedAt time.Time
}

// RunSummary is the single user-facing result of a pipeline invocation:
// counts, never a propagated exception.
type RunSummary struct {
	Pipeline  string `json:"pipeline"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Coerced   int    `json:"coerced"`
	Batches   int    `json:"batches"`
	Duration  int64  `json:"duration_ms"`
}
