package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/scanforge/pkg/engine"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score the inventory and raise remediation actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		st, err := buildStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("initializing store: %w", err)
		}

		analyzer := &engine.Analyzer{Store: st, Thresholds: cfg.Thresholds}
		if err := analyzer.RunAnalysis(ctx); err != nil {
			return err
		}

		actions, err := st.OpenActions(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Analysis complete. %d open action items.\n\n", len(actions))
		for _, a := range actions {
			fmt.Printf("[%s] %s\n    %s\n", a.Priority, a.Title, a.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
