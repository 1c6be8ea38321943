package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightloom/internal/utils"
)

var (
	mbSrc    sourceFlags
	mbSchema schemaFlags
	mbSearch searchFlags
	mbOutDir string
	mbQuiet  bool
)

// expandInputs resolves globs and literal paths, de-duplicated and sorted.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// treat as literal path if exists
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

// reportBase names the report for an input, tagging the sheet when one is
// selected by name.
func reportBase(path, sheetName string) string {
	base := filepath.Base(path)
	safe := strings.TrimSuffix(base, filepath.Ext(base))
	if sheetName != "" {
		safe += "__sheet-" + utils.Slug(sheetName, "sheet")
	}
	return safe
}

var mineBatchCmd = &cobra.Command{
	Use:   "mine-batch <files...>",
	Short: "Mine multiple CSV/TSV/XLSX files with progress, one report per input",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		if mbSrc.usesSQL() {
			return fmt.Errorf("mine-batch reads files only; use mine for --sql-* sources")
		}
		opt, format, err := mbSearch.resolve(cmd.Flags())
		if err != nil {
			return err
		}
		if mbOutDir != "" {
			if err := utils.EnsureDir(mbOutDir); err != nil {
				return err
			}
		}
		out := cmd.OutOrStdout()
		total := len(files)
		for i, path := range files {
			if !mbQuiet {
				fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			ds, t, err := loadDataset(cmd.Context(), path, &mbSrc, &mbSchema)
			if err != nil {
				return err
			}
			body, res, err := runMine(cmd.Context(), ds, t.Warnings, opt, format, mbSearch.timeout)
			if err != nil {
				return err
			}
			if mbOutDir == "" {
				if !mbQuiet {
					fmt.Fprintln(out, string(body))
				}
				continue
			}
			outFile, bumped := utils.UniquePath(mbOutDir, reportBase(path, mbSrc.sheetName), ".insights"+format.Ext())
			if bumped && !mbQuiet {
				fmt.Fprintf(out, "⚠ Detected existing report, writing to %s to avoid overwrite.\n", filepath.Base(outFile))
			}
			if err := utils.SafeWriteFile(outFile, body); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if !mbQuiet {
				fmt.Fprintf(out, "✓ %d insights written to %s\n", len(res.Insights), outFile)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mineBatchCmd)
	mbSrc.bind(mineBatchCmd.Flags())
	mbSchema.bind(mineBatchCmd.Flags())
	mbSearch.bind(mineBatchCmd.Flags())
	mineBatchCmd.Flags().StringVar(&mbOutDir, "out-dir", "", "directory for the reports (stdout if omitted)")
	mineBatchCmd.Flags().BoolVar(&mbQuiet, "quiet", false, "suppress progress output")
}
