package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/scanforge/pkg/api"
	"github.com/user/scanforge/pkg/engine"
	"github.com/user/scanforge/pkg/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the assessment API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		ctx := context.Background()

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		st, err := buildStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("initializing store: %w", err)
		}
		orch, err := buildOrchestrator(ctx, cfg, st)
		if err != nil {
			return err
		}
		runner := pipeline.NewRunner(orch, cfg.MaxSessions)
		defer runner.Shutdown()

		app := api.NewFiberApp(&api.Server{
			Store:    st,
			Runner:   runner,
			Analyzer: &engine.Analyzer{Store: st, Thresholds: cfg.Thresholds},
		})
		return app.Listen(addr)
	},
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	rootCmd.AddCommand(serveCmd)
}
