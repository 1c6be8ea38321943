package dataset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// Table is a raw loaded relation: a header and string cells.
type Table struct {
	Name     string
	Header   []string
	Rows     [][]string
	Warnings []string
}

// LoadOptions controls how sources read tabular data.
type LoadOptions struct {
	// Delimiter for CSV. If 0, sniffed from the header line, then the extension.
	Delimiter rune
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// MaxRows limits rows loaded; 0 means unlimited.
	MaxRows int
	// Sheet selection for workbooks. SheetIndex is 1-based.
	SheetName  string
	SheetIndex int
}

// Source loads a Table from a named input.
type Source interface {
	CanLoad(name string) bool
	Load(ctx context.Context, name string, opt LoadOptions) (*Table, error)
}

var registry []Source

// Register adds a source implementation to the registry.
func Register(s Source) {
	registry = append(registry, s)
}

// ErrUnsupported indicates no registered source handles the input.
var ErrUnsupported = errors.New("unsupported dataset format")

// LoadFile selects a source based on the file name and loads the table.
func LoadFile(ctx context.Context, path string, opt LoadOptions) (*Table, error) {
	for _, s := range registry {
		if s.CanLoad(path) {
			return s.Load(ctx, path, opt)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

func init() {
	Register(csvSource{})
	Register(xlsxSource{})
}

// limitRows truncates t to max rows and records a warning.
func (t *Table) limitRows(max int) {
	if max <= 0 || len(t.Rows) <= max {
		return
	}
	t.Warnings = append(t.Warnings, fmt.Sprintf("loaded only %d/%d rows due to MaxRows", max, len(t.Rows)))
	t.Rows = t.Rows[:max]
}
