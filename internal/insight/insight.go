// Package insight holds the scored insight record and the bounded top-K
// selector that retains the best of them.
package insight

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/extractor"
	"github.com/KaramelBytes/insightloom/internal/sigtest"
)

// RecordHeader names the fields of Record, in order.
const RecordHeader = "id;score;type;SG(S,D);CE;insight;H0;sig;impact"

// Insight is one scored statement about a sibling group.
type Insight struct {
	ID           string              `json:"id" yaml:"id"`
	Description  string              `json:"insight" yaml:"insight"`
	Score        float64             `json:"score" yaml:"score"`
	Subspace     dataset.Subspace    `json:"subspace" yaml:"subspace"`
	Dimension    string              `json:"dimension" yaml:"dimension"`
	Extractor    extractor.Extractor `json:"extractor" yaml:"extractor"`
	Type         sigtest.Kind        `json:"type" yaml:"type"`
	Significance float64             `json:"significance" yaml:"significance"`
	Test         string              `json:"test" yaml:"test"`
	Impact       float64             `json:"impact" yaml:"impact"`
}

// New builds an insight with a fresh id and score = impact × significance.
func New(sub dataset.Subspace, dim string, ce extractor.Extractor, kind sigtest.Kind, res sigtest.Result, impact float64) Insight {
	return Insight{
		ID:           uuid.NewString(),
		Description:  res.Description,
		Score:        impact * res.Significance,
		Subspace:     sub,
		Dimension:    dim,
		Extractor:    ce,
		Type:         kind,
		Significance: res.Significance,
		Test:         res.Test,
		Impact:       impact,
	}
}

// SiblingGroup renders the SG(S, D) descriptor.
func (i Insight) SiblingGroup() string {
	return fmt.Sprintf("SG(%s,%s)", i.Subspace, i.Dimension)
}

// Interpretation is a one-line natural-language reading of the insight.
func (i Insight) Interpretation() string {
	scope := "the whole dataset"
	if i.Subspace.Len() > 0 {
		scope = "the subspace " + i.Subspace.String()
	}
	return fmt.Sprintf("Aggregating %s of %s over dividing dimension %s, %s stood out using the %s test within %s (score %.4f)",
		i.Extractor.Describe(), i.Extractor.Measure(), i.Dimension, i.Description, i.Test, scope, i.Score)
}

// Record is the flat ';'-delimited serialization matching RecordHeader.
func (i Insight) Record() string {
	return strings.Join(i.Fields(), ";")
}

// Fields returns the nine record fields.
func (i Insight) Fields() []string {
	return []string{
		i.ID,
		round4(i.Score),
		string(i.Type),
		i.SiblingGroup(),
		i.Extractor.String(),
		strings.ReplaceAll(i.Description, ";", ","),
		i.Test,
		round4(i.Significance),
		round4(i.Impact),
	}
}

func round4(x float64) string { return strconv.FormatFloat(x, 'f', 4, 64) }
