package dataset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"
)

// Profile is a compact description of a dataset used by `describe` and the
// HTTP API.
type Profile struct {
	Name        string             `json:"name" yaml:"name"`
	Rows        int                `json:"rows" yaml:"rows"`
	Measure     string             `json:"measure" yaml:"measure"`
	Aggregation string             `json:"aggregation" yaml:"aggregation"`
	Ordinal     string             `json:"ordinal,omitempty" yaml:"ordinal,omitempty"`
	Total       float64            `json:"total" yaml:"total"`
	Stats       MeasureStats       `json:"measure_stats" yaml:"measure_stats"`
	Dimensions  []DimensionProfile `json:"dimensions" yaml:"dimensions"`
	Warnings    []string           `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type MeasureStats struct {
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	Std    float64 `json:"std" yaml:"std"`
}

// DimensionProfile summarizes one dimension.
type DimensionProfile struct {
	Name        string       `json:"name" yaml:"name"`
	Cardinality int          `json:"cardinality" yaml:"cardinality"`
	Top         []ValueShare `json:"top" yaml:"top"`
}

// ValueShare is a dimension value with its row count and impact.
type ValueShare struct {
	Value  string  `json:"value" yaml:"value"`
	Rows   int     `json:"rows" yaml:"rows"`
	Impact float64 `json:"impact" yaml:"impact"`
}

// Describe profiles the dataset, listing at most top values per dimension.
func (d *Dataset) Describe(top int) *Profile {
	if top <= 0 {
		top = 5
	}
	p := &Profile{
		Name:        d.name,
		Rows:        d.Len(),
		Measure:     d.measure,
		Aggregation: d.agg.String(),
		Ordinal:     d.ordinal,
		Total:       d.total,
	}
	data := stats.Float64Data(d.values)
	p.Stats.Min, _ = stats.Min(data)
	p.Stats.Max, _ = stats.Max(data)
	p.Stats.Mean, _ = stats.Mean(data)
	p.Stats.Median, _ = stats.Median(data)
	if len(data) > 1 {
		p.Stats.Std, _ = stats.StandardDeviationSample(data)
	}
	for i, dim := range d.dims {
		dp := DimensionProfile{Name: dim, Cardinality: len(d.index[i])}
		for v, rows := range d.index[i] {
			dp.Top = append(dp.Top, ValueShare{Value: v, Rows: len(rows), Impact: d.Sum(rows) / d.total})
		}
		sort.Slice(dp.Top, func(a, b int) bool {
			if dp.Top[a].Impact == dp.Top[b].Impact {
				return dp.Top[a].Value < dp.Top[b].Value
			}
			return dp.Top[a].Impact > dp.Top[b].Impact
		})
		if len(dp.Top) > top {
			dp.Top = dp.Top[:top]
		}
		p.Dimensions = append(p.Dimensions, dp)
	}
	return p
}

// Markdown renders the profile as a compact, sectioned summary.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if p.Name != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n", p.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", p.Rows))
	b.WriteString(fmt.Sprintf("Measure: %s (%s), total %.6g\n", p.Measure, p.Aggregation, p.Total))
	if p.Ordinal != "" {
		b.WriteString(fmt.Sprintf("Ordinal dimension: %s\n", p.Ordinal))
	}
	b.WriteString("\n[MEASURE]\n")
	b.WriteString(fmt.Sprintf("- min %.4g, max %.4g, mean %.4g, median %.4g, std %.4g\n",
		p.Stats.Min, p.Stats.Max, p.Stats.Mean, p.Stats.Median, p.Stats.Std))

	b.WriteString("\n[DIMENSIONS]\n")
	for _, dp := range p.Dimensions {
		b.WriteString(fmt.Sprintf("- %s: %d values", safeCell(dp.Name), dp.Cardinality))
		if len(dp.Top) > 0 {
			b.WriteString("; top: ")
			for i, vs := range dp.Top {
				if i > 0 {
					b.WriteString(", ")
				}
				name := vs.Value
				if name == "" {
					name = "(empty)"
				}
				b.WriteString(fmt.Sprintf("%s(%.1f%%)", safeCell(name), vs.Impact*100))
			}
		}
		b.WriteString("\n")
	}
	if len(p.Warnings) > 0 {
		b.WriteString("\n[WARNINGS]\n")
		for _, w := range p.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

func safeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}
