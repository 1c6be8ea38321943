package cmd

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/extractor"
	"github.com/KaramelBytes/insightloom/internal/mining"
	"github.com/KaramelBytes/insightloom/internal/report"
	"github.com/KaramelBytes/insightloom/internal/utils"
)

// searchFlags tune the search and its output.
type searchFlags struct {
	depth   int
	k       int
	cutoff  float64
	workers int
	ops     string
	format  string
	timeout time.Duration
}

func (s *searchFlags) bind(fs *pflag.FlagSet) {
	fs.IntVar(&s.depth, "depth", 0, "composite extractor depth: 1|2 (default from config)")
	fs.IntVarP(&s.k, "k", "k", 0, "number of insights to keep (default from config)")
	fs.Float64Var(&s.cutoff, "cutoff", 0, "impact threshold below which subspaces are skipped (default from config, negative disables)")
	fs.IntVar(&s.workers, "workers", 0, "search partitions run in parallel (default from config)")
	fs.StringVar(&s.ops, "ops", "", "derived operators searched at depth 2, comma-separated: rank,delta_prev,pct,delta_avg (default all)")
	fs.StringVar(&s.format, "format", "", "output format: text|markdown|html|csv|json|yaml (default from config)")
	fs.DurationVar(&s.timeout, "timeout", 0, "abort the search after this long (0 = no limit)")
}

// resolve merges flags over the config defaults.
func (s *searchFlags) resolve(fs *pflag.FlagSet) (mining.Options, report.Format, error) {
	c := currentConfig()
	opt := mining.Options{Depth: c.Depth, K: c.K, Cutoff: c.Cutoff, Workers: c.Workers, Logger: logger}
	if fs.Changed("depth") {
		opt.Depth = s.depth
	}
	if fs.Changed("k") {
		opt.K = s.k
	}
	if fs.Changed("cutoff") {
		opt.Cutoff = s.cutoff
	}
	if fs.Changed("workers") {
		opt.Workers = s.workers
	}
	if fs.Changed("ops") {
		ops, err := extractor.ParseDerivedOps(s.ops)
		if err != nil {
			return opt, "", err
		}
		opt.Ops = ops
	}
	if err := opt.Validate(); err != nil {
		return opt, "", err
	}
	name := c.OutputFormat
	if fs.Changed("format") {
		name = s.format
	}
	f, err := report.ParseFormat(name)
	if err != nil {
		return opt, "", err
	}
	return opt, f, nil
}

// runMine searches ds and renders the result.
func runMine(ctx context.Context, ds *dataset.Dataset, warnings []string, opt mining.Options, f report.Format, timeout time.Duration) ([]byte, *mining.Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	m, err := mining.New(ds, opt)
	if err != nil {
		return nil, nil, err
	}
	res, err := m.Mine(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("mine %s: %w", ds.Name(), err)
	}
	meta := report.Meta{
		Dataset:     ds.Name(),
		Rows:        ds.Len(),
		Measure:     ds.Measure(),
		Aggregation: ds.Aggregation().String(),
		Depth:       opt.Depth,
		K:           opt.K,
		Cutoff:      opt.Cutoff,
		Extractors:  m.Extractors(),
		Warnings:    warnings,
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, res, f, meta); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), res, nil
}

var (
	mineSrc    sourceFlags
	mineSchema schemaFlags
	mineSearch searchFlags
	mineOutput string
)

var mineCmd = &cobra.Command{
	Use:   "mine [file]",
	Short: "Find the top-k insights of a CSV/TSV/XLSX file or SQL query",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		}
		opt, format, err := mineSearch.resolve(cmd.Flags())
		if err != nil {
			return err
		}
		ds, t, err := loadDataset(cmd.Context(), path, &mineSrc, &mineSchema)
		if err != nil {
			return err
		}
		for _, w := range t.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "⚠ Warning: %s\n", w)
		}
		out, res, err := runMine(cmd.Context(), ds, t.Warnings, opt, format, mineSearch.timeout)
		if err != nil {
			return err
		}
		if mineOutput == "" {
			_, err := cmd.OutOrStdout().Write(out)
			return err
		}
		if err := utils.SafeWriteFile(mineOutput, out); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d insights to %s\n", len(res.Insights), mineOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mineCmd)
	mineSrc.bind(mineCmd.Flags())
	mineSchema.bind(mineCmd.Flags())
	mineSearch.bind(mineCmd.Flags())
	mineCmd.Flags().StringVarP(&mineOutput, "output", "o", "", "write the report to a file instead of stdout")
}
