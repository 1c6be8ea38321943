package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightloom/internal/mining"
	"github.com/KaramelBytes/insightloom/internal/server"
)

var (
	serveSrc    sourceFlags
	serveSchema schemaFlags
	serveAddr   string
	serveMaxK   int
)

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Serve insight searches over one dataset via HTTP",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		}
		ds, t, err := loadDataset(cmd.Context(), path, &serveSrc, &serveSchema)
		if err != nil {
			return err
		}
		c := currentConfig()
		addr := c.ServeAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		defaults := mining.Options{Depth: c.Depth, K: c.K, Cutoff: c.Cutoff, Workers: c.Workers}
		if err := defaults.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		srv := server.New(ds, server.Config{
			Addr:     addr,
			Defaults: defaults,
			MaxK:     serveMaxK,
			Logger:   logger,
			Warnings: t.Warnings,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Serving %s (%d rows) on http://%s\n", ds.Name(), ds.Len(), addr)
		return srv.Start(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveSrc.bind(serveCmd.Flags())
	serveSchema.bind(serveCmd.Flags())
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config serve_addr)")
	serveCmd.Flags().IntVar(&serveMaxK, "max-k", 1000, "largest k a request may ask for (0 = no cap)")
}
