// Package report renders mining results for people and tools.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/insightloom/internal/extractor"
	"github.com/KaramelBytes/insightloom/internal/insight"
	"github.com/KaramelBytes/insightloom/internal/mining"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

// Format is an output format name.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	HTML     Format = "html"
	CSV      Format = "csv"
	JSON     Format = "json"
	YAML     Format = "yaml"
)

// Formats lists every supported format.
var Formats = []Format{Text, Markdown, HTML, CSV, JSON, YAML}

// ParseFormat validates a format name. "md" is accepted for markdown.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return Text, nil
	case "md":
		return Markdown, nil
	case Text, Markdown, HTML, CSV, JSON, YAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (use text, markdown, html, csv, json or yaml)", s)
	}
}

// Ext returns the file extension used for reports in this format.
func (f Format) Ext() string {
	switch f {
	case Markdown:
		return ".md"
	case HTML:
		return ".html"
	case CSV:
		return ".csv"
	case JSON:
		return ".json"
	case YAML:
		return ".yaml"
	default:
		return ".txt"
	}
}

// Meta describes the run behind a result.
type Meta struct {
	Dataset     string
	Rows        int
	Measure     string
	Aggregation string
	Depth       int
	K           int
	Cutoff      float64
	// Extractors lists the composite extractors searched.
	Extractors []extractor.Extractor
	Warnings   []string
}

// document is the machine-readable shape shared by json and yaml output.
type document struct {
	RunID      string                `json:"run_id" yaml:"run_id"`
	Dataset    string                `json:"dataset" yaml:"dataset"`
	Rows       int                   `json:"rows" yaml:"rows"`
	Measure    string                `json:"measure" yaml:"measure"`
	Depth      int                   `json:"depth" yaml:"depth"`
	K          int                   `json:"k" yaml:"k"`
	Cutoff     float64               `json:"cutoff" yaml:"cutoff"`
	Extractors []extractor.Extractor `json:"extractors,omitempty" yaml:"extractors,omitempty"`
	ElapsedMS  int64                 `json:"elapsed_ms" yaml:"elapsed_ms"`
	Stats      mining.Stats          `json:"stats" yaml:"stats"`
	Insights   []insight.Insight     `json:"insights" yaml:"insights"`
	Warnings   []string              `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func newDocument(res *mining.Result, meta Meta) document {
	ins := res.Insights
	if ins == nil {
		ins = []insight.Insight{}
	}
	return document{
		RunID:      res.RunID,
		Dataset:    meta.Dataset,
		Rows:       meta.Rows,
		Measure:    meta.Measure,
		Depth:      meta.Depth,
		K:          meta.K,
		Cutoff:     meta.Cutoff,
		Extractors: meta.Extractors,
		ElapsedMS:  res.Elapsed.Milliseconds(),
		Stats:      res.Stats,
		Insights:   ins,
		Warnings:   meta.Warnings,
	}
}

// Render writes res to w in the given format.
func Render(w io.Writer, res *mining.Result, f Format, meta Meta) error {
	switch f {
	case Text, "":
		_, err := io.WriteString(w, RenderText(res))
		return err
	case Markdown:
		_, err := io.WriteString(w, RenderMarkdown(res, meta))
		return err
	case HTML:
		_, err := w.Write(RenderHTML(res, meta))
		return err
	case CSV:
		return WriteCSV(w, res.Insights)
	case JSON:
		b, err := utils.PrettyJSON(newDocument(res, meta))
		if err != nil {
			return err
		}
		_, err = w.Write(append(b, '\n'))
		return err
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newDocument(res, meta)); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format: %s", f)
	}
}

// RenderText prints one interpretation per line, best first.
func RenderText(res *mining.Result) string {
	if len(res.Insights) == 0 {
		return "No insights found.\n"
	}
	var b strings.Builder
	for i, in := range res.Insights {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, in.Interpretation()))
	}
	return b.String()
}

// WriteCSV writes ';'-delimited records under insight.RecordHeader.
func WriteCSV(w io.Writer, xs []insight.Insight) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(strings.Split(insight.RecordHeader, ";")); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, in := range xs {
		if err := cw.Write(in.Fields()); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// RenderHTML converts the markdown report to an HTML fragment.
func RenderHTML(res *mining.Result, meta Meta) []byte {
	return markdown.ToHTML([]byte(RenderMarkdown(res, meta)), nil, nil)
}

func elapsed(d time.Duration) string {
	if d < time.Millisecond {
		return d.String()
	}
	return d.Round(time.Millisecond).String()
}
