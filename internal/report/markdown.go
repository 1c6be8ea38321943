package report

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/mining"
)

// RenderMarkdown renders a sectioned report: run summary, the insight table
// and search counters.
func RenderMarkdown(res *mining.Result, meta Meta) string {
	var b strings.Builder
	b.WriteString("[RUN SUMMARY]\n\n")
	if meta.Dataset != "" {
		b.WriteString(fmt.Sprintf("- Dataset: %s\n", meta.Dataset))
	}
	if meta.Rows > 0 {
		b.WriteString(fmt.Sprintf("- Rows: %d\n", meta.Rows))
	}
	if meta.Measure != "" {
		b.WriteString(fmt.Sprintf("- Measure: %s (%s)\n", meta.Measure, meta.Aggregation))
	}
	b.WriteString(fmt.Sprintf("- Depth: %d, k: %d, cutoff: %.4g\n", meta.Depth, meta.K, meta.Cutoff))
	if len(meta.Extractors) > 0 {
		names := make([]string, len(meta.Extractors))
		for i, ce := range meta.Extractors {
			names[i] = ce.String()
		}
		b.WriteString(fmt.Sprintf("- Extractors: %d %s\n", len(names), strings.Join(names, " ")))
	}
	b.WriteString(fmt.Sprintf("- Run: %s (%s)\n", res.RunID, elapsed(res.Elapsed)))

	b.WriteString("\n[TOP INSIGHTS]\n\n")
	if len(res.Insights) == 0 {
		b.WriteString("No insights found.\n")
	} else {
		b.WriteString("| # | score | type | sibling group | extractor | insight | test | sig | impact |\n")
		b.WriteString("| --- | --- | --- | --- | --- | --- | --- | --- | --- |\n")
		for i, in := range res.Insights {
			b.WriteString(fmt.Sprintf("| %d | %.4f | %s | %s | %s | %s | %s | %.4f | %.4f |\n",
				i+1, in.Score, in.Type, cell(in.SiblingGroup()), cell(in.Extractor.String()),
				cell(in.Description), in.Test, in.Significance, in.Impact))
		}
	}

	s := res.Stats
	b.WriteString("\n[SEARCH STATS]\n\n")
	b.WriteString(fmt.Sprintf("- visited %d, pruned %d, invalid %d, insufficient %d\n", s.Visited, s.Pruned, s.Invalid, s.Insufficient))
	b.WriteString(fmt.Sprintf("- offered %d, retained %d, errors %d\n", s.Offered, s.Retained, s.Errors))

	if len(meta.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n\n")
		for _, w := range meta.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

func cell(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
