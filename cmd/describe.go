package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/insightloom/internal/utils"
)

var (
	descSrc    sourceFlags
	descSchema schemaFlags
	descTop    int
	descFormat string
	descOutput string
)

var describeCmd = &cobra.Command{
	Use:   "describe [file]",
	Short: "Profile a dataset: rows, measure statistics and dimension cardinalities",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		}
		ds, t, err := loadDataset(cmd.Context(), path, &descSrc, &descSchema)
		if err != nil {
			return err
		}
		p := ds.Describe(descTop)
		p.Warnings = t.Warnings

		var out []byte
		switch strings.ToLower(strings.TrimSpace(descFormat)) {
		case "", "markdown", "md":
			out = []byte(p.Markdown())
		case "json":
			b, err := utils.PrettyJSON(p)
			if err != nil {
				return err
			}
			out = append(b, '\n')
		case "yaml":
			b, err := yaml.Marshal(p)
			if err != nil {
				return fmt.Errorf("marshal yaml: %w", err)
			}
			out = b
		default:
			return fmt.Errorf("unsupported --format: %s (use markdown, json or yaml)", descFormat)
		}
		if descOutput == "" {
			_, err := cmd.OutOrStdout().Write(out)
			return err
		}
		if err := utils.SafeWriteFile(descOutput, out); err != nil {
			return fmt.Errorf("write profile: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Profile saved to %s\n", descOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
	descSrc.bind(describeCmd.Flags())
	descSchema.bind(describeCmd.Flags())
	describeCmd.Flags().IntVar(&descTop, "top", 5, "values listed per dimension")
	describeCmd.Flags().StringVar(&descFormat, "format", "markdown", "output format: markdown|json|yaml")
	describeCmd.Flags().StringVarP(&descOutput, "output", "o", "", "write the profile to a file instead of stdout")
}
