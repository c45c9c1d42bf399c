package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/user/scanforge/pkg/model"
)

var scanCmd = &cobra.Command{
	Use:   "scan <base-url>",
	Short: "Run a one-shot assessment against a target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		criticality, _ := cmd.Flags().GetString("criticality")
		baseURL := args[0]
		if name == "" {
			name = baseURL
		}

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

		target := model.Target{
			ID:          uuid.NewString(),
			Name:        name,
			BaseURL:     baseURL,
			Source:      "manual",
			Criticality: model.Criticality(strings.ToUpper(criticality)),
			CreatedAt:   time.Now().UTC(),
		}
		if err := st.PutTarget(ctx, &target); err != nil {
			return err
		}
		session := model.Session{
			ID:        uuid.NewString(),
			TargetID:  target.ID,
			Status:    model.SessionQueued,
			CreatedAt: time.Now().UTC(),
		}
		if err := st.PutSession(ctx, &session); err != nil {
			return err
		}

		fmt.Printf("Assessing %s (session %s)...\n\n", baseURL, session.ID)
		if err := orch.RunSession(ctx, session.ID); err != nil {
			return fmt.Errorf("assessment failed: %w", err)
		}

		done, err := st.GetSession(ctx, session.ID)
		if err != nil {
			return err
		}
		findings, err := st.FindingsBySession(ctx, session.ID)
		if err != nil {
			return err
		}

		fmt.Printf("Risk score: %.1f/100  Health score: %.0f/100\n\n", done.RiskScore, done.HealthScore)
		if len(findings) == 0 {
			fmt.Println("No findings.")
		}
		for _, f := range findings {
			status := ""
			if f.Status == model.FindingFalsePositive {
				status = " [false positive]"
			}
			fmt.Printf("[%s] %s%s\n    %s (confidence %.0f%%)\n",
				strings.ToUpper(string(f.Severity)), f.Type, status, f.URL, f.Confidence*100)
		}
		if done.Summary != "" {
			fmt.Printf("\n%s\n", done.Summary)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().String("name", "", "Target name (defaults to the URL)")
	scanCmd.Flags().String("criticality", "MEDIUM", "Business criticality (CRITICAL, HIGH, MEDIUM, LOW)")
	rootCmd.AddCommand(scanCmd)
}
