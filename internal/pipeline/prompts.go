package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/vpat-cli/internal/model"
)

const interpretSystemPrompt = `You are an accessibility compliance analyst reviewing VPAT conformance rows.
For each row you receive, judge the most accurate conformance level based on the documented level and remarks.
Valid conformance values: "Supports", "Partially Supports", "Does Not Support", "Not Applicable", "Not Evaluated".
Respond with a JSON array only — no prose, no markdown fences.
Each array element must be an object: {"rowNumber": <number>, "conformance": "<value>", "confidence": <0-100>, "comment": "<short note on any discrepancy>"}.`

const qualitySystemPrompt = `You are an accessibility compliance analyst answering quality-checklist questions about a VPAT.
Answer each question strictly from the provided conformance data.
Respond with a JSON array only — no prose, no markdown fences.
Each array element must be an object: {"reqId": "<id>", "answer": "<answer in the requested response type>", "confidence": <0-100>, "comment": "<short justification>"}.`

// buildInterpretPrompt renders one combined user message for a batch of row
// items, ending with a strict expected-output-count statement.
func buildInterpretPrompt(items []model.RowItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review the following %d VPAT rows.\n\n", len(items))
	for _, item := range items {
		fmt.Fprintf(&b, "Row %d:\n", item.RowNumber)
		fmt.Fprintf(&b, "  Criteria: %s\n", item.Criteria)
		fmt.Fprintf(&b, "  Documented conformance: %s\n", item.ConformanceLevel)
		fmt.Fprintf(&b, "  Remarks: %s\n\n", item.Remarks)
	}
	fmt.Fprintf(&b, "Return a JSON array with exactly %d objects, one per row, in the order given, each echoing its rowNumber.", len(items))
	return b.String()
}

// buildQualityPrompt renders one combined user message for a batch of
// checklist requirements, with the shared conformance context first.
func buildQualityPrompt(reqs []model.Requirement, context string) string {
	var b strings.Builder
	b.WriteString("Conformance data under review:\n")
	b.WriteString(context)
	fmt.Fprintf(&b, "\n\nAnswer the following %d checklist questions.\n\n", len(reqs))
	for _, req := range reqs {
		fmt.Fprintf(&b, "Requirement %s:\n", req.ReqID)
		fmt.Fprintf(&b, "  Question: %s\n", req.Question)
		if req.CriteriaName != "" {
			fmt.Fprintf(&b, "  Related criteria: %s\n", req.CriteriaName)
		}
		if req.AIGuidelines != "" {
			fmt.Fprintf(&b, "  Guidelines: %s\n", req.AIGuidelines)
		}
		if req.ResponseType != "" {
			fmt.Fprintf(&b, "  Response type: %s\n", req.ResponseType)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Return a JSON array with exactly %d objects, one per requirement, in the order given, each echoing its reqId.", len(reqs))
	return b.String()
}
