package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/extractor"
)

// sourceFlags selects and parses the input table.
type sourceFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	maxRows    int
	sheetName  string
	sheetIndex int
	sqlDriver  string
	sqlDSN     string
	sqlQuery   string
}

func (s *sourceFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&s.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (sniffed from the header line if omitted)")
	fs.StringVar(&s.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	fs.StringVar(&s.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	fs.IntVar(&s.maxRows, "max-rows", 0, "maximum rows to load (0 = config max_rows, unlimited by default)")
	fs.StringVar(&s.sheetName, "sheet-name", "", "XLSX: sheet name to load (defaults to first sheet)")
	fs.IntVar(&s.sheetIndex, "sheet-index", 0, "XLSX: 1-based sheet index (ignored if --sheet-name is set)")
	fs.StringVar(&s.sqlDriver, "sql-driver", "", "load from SQL instead of a file: sqlite|postgres")
	fs.StringVar(&s.sqlDSN, "sql-dsn", "", "SQL data source name")
	fs.StringVar(&s.sqlQuery, "sql-query", "", "SQL query returning the table")
}

func (s *sourceFlags) options() (dataset.LoadOptions, error) {
	var opt dataset.LoadOptions
	switch s.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", s.delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(s.decimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot":
		opt.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", s.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(s.thousands)) {
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", s.thousands)
	}
	if s.maxRows < 0 {
		return opt, errors.New("--max-rows must not be negative")
	}
	opt.MaxRows = s.maxRows
	if opt.MaxRows == 0 {
		opt.MaxRows = currentConfig().MaxRows
	}
	opt.SheetName = s.sheetName
	opt.SheetIndex = s.sheetIndex
	return opt, nil
}

func (s *sourceFlags) usesSQL() bool { return s.sqlDriver != "" || s.sqlDSN != "" || s.sqlQuery != "" }

// load reads the table from path, or from SQL when the --sql-* flags are set.
func (s *sourceFlags) load(ctx context.Context, path string) (*dataset.Table, error) {
	opt, err := s.options()
	if err != nil {
		return nil, err
	}
	if s.usesSQL() {
		if path != "" {
			return nil, errors.New("pass either a file or --sql-* flags, not both")
		}
		if s.sqlDriver == "" || s.sqlDSN == "" || s.sqlQuery == "" {
			return nil, errors.New("--sql-driver, --sql-dsn and --sql-query are required together")
		}
		return dataset.LoadSQL(ctx, s.sqlDriver, s.sqlDSN, s.sqlQuery, opt)
	}
	if path == "" {
		return nil, errors.New("an input file is required")
	}
	return dataset.LoadFile(ctx, path, opt)
}

// schemaFlags designate dimensions and the measure.
type schemaFlags struct {
	dimensions []string
	measure    string
	agg        string
	ordinal    string
}

func (s *schemaFlags) bind(fs *pflag.FlagSet) {
	fs.StringSliceVar(&s.dimensions, "dimensions", nil, "dimension columns (default: every column except the measure)")
	fs.StringVar(&s.measure, "measure", "", "measure column (default: last column)")
	fs.StringVar(&s.agg, "agg", "", "aggregation: sum|count (default from config)")
	fs.StringVar(&s.ordinal, "ordinal", "", "order-sensitive dimension (default from config when present)")
}

// schema resolves the flags against the table header and the config.
func (s *schemaFlags) schema(t *dataset.Table, src *sourceFlags) (dataset.Schema, error) {
	c := currentConfig()
	aggName := s.agg
	if aggName == "" {
		aggName = c.Aggregation
	}
	agg, err := extractor.ParseAggOp(aggName)
	if err != nil {
		return dataset.Schema{}, err
	}
	sc := dataset.Schema{Aggregation: agg}
	if opt, err := src.options(); err == nil {
		sc.DecimalSeparator = opt.DecimalSeparator
		sc.ThousandsSeparator = opt.ThousandsSeparator
	}

	header := make([]string, 0, len(t.Header))
	for _, h := range t.Header {
		header = append(header, strings.TrimSpace(h))
	}
	if agg == extractor.Sum {
		sc.Measure = strings.TrimSpace(s.measure)
		if sc.Measure == "" {
			if len(header) < 2 {
				return sc, errors.New("need at least one dimension column and a measure column")
			}
			sc.Measure = header[len(header)-1]
		}
	}
	for _, d := range s.dimensions {
		if d = strings.TrimSpace(d); d != "" {
			sc.Dimensions = append(sc.Dimensions, d)
		}
	}
	if len(sc.Dimensions) == 0 {
		for _, h := range header {
			if h != sc.Measure {
				sc.Dimensions = append(sc.Dimensions, h)
			}
		}
	}

	switch {
	case s.ordinal == "-":
	case s.ordinal != "":
		sc.Ordinal = s.ordinal
	case c.OrdinalDimension != "":
		for _, d := range sc.Dimensions {
			if d == c.OrdinalDimension {
				sc.Ordinal = d
			}
		}
	}
	return sc, nil
}

// loadDataset loads the table and builds the dataset in one step.
func loadDataset(ctx context.Context, path string, src *sourceFlags, sf *schemaFlags) (*dataset.Dataset, *dataset.Table, error) {
	t, err := src.load(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	sc, err := sf.schema(t, src)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("schema resolved", "dimensions", sc.Dimensions, "measure", sc.Measure,
		"aggregation", sc.Aggregation.String(), "ordinal", sc.Ordinal, "rows", len(t.Rows))
	ds, err := dataset.New(t, sc)
	if err != nil {
		return nil, nil, fmt.Errorf("build dataset %s: %w", t.Name, err)
	}
	return ds, t, nil
}
