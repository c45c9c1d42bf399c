package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/scanforge/pkg/config"
	"github.com/user/scanforge/pkg/oracle"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration (provider, model, keys)",
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Store an oracle API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, _ := cmd.Flags().GetString("provider")
		key, _ := cmd.Flags().GetString("key")

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		cfg.SetAPIKey(strings.ToLower(provider), key)
		if err := config.SaveConfig(cfg); err != nil {
			return err
		}

		fmt.Printf("Stored %s key in %s\n", strings.ToLower(provider), configLocation())
		return nil
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model",
	Short: "Select the oracle provider and model",
	RunE: func(cmd *cobra.Command, args []string) error {
		provider, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if provider != "" {
			cfg.SelectedProvider = strings.ToLower(provider)
		}
		if model != "" {
			cfg.SelectedModel = model
		}
		if err := config.SaveConfig(cfg); err != nil {
			return err
		}

		fmt.Printf("Oracle set to %s/%s\n", cfg.SelectedProvider, cfg.SelectedModel)
		return nil
	},
}

func configLocation() string {
	path, err := config.GetConfigPath()
	if err != nil {
		return "the config file"
	}
	return path
}

var listModelsCmd = &cobra.Command{
	Use:   "list-models",
	Short: "List available models from the configured provider",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Println("Error loading config:", err)
			return
		}

		if cfg.SelectedProvider != "gemini" {
			fmt.Println("No provider selected. Please run 'scanforge config setup'.")
			return
		}
		apiKey := cfg.GetAPIKey(cfg.SelectedProvider)
		if apiKey == "" {
			fmt.Printf("No API key found for %s.\n", cfg.SelectedProvider)
			return
		}

		fmt.Printf("Fetching models for %s...\n", cfg.SelectedProvider)
		ctx := context.Background()
		p, err := oracle.NewGeminiProvider(ctx, apiKey, "")
		if err != nil {
			fmt.Println("Error initializing provider:", err)
			return
		}
		defer p.Close()

		models, err := p.ListModels(ctx)
		if err != nil {
			fmt.Println("Error fetching models:", err)
			return
		}

		fmt.Printf("\nAvailable Models (%s):\n", cfg.SelectedProvider)
		for _, m := range models {
			mark := " "
			if m == cfg.SelectedModel {
				mark = "*"
			}
			fmt.Printf("%s %s\n", mark, m)
		}
	},
}

func init() {
	setKeyCmd.Flags().StringP("provider", "p", "", "oracle provider name (gemini)")
	setKeyCmd.Flags().StringP("key", "k", "", "API key to store")
	_ = setKeyCmd.MarkFlagRequired("provider")
	_ = setKeyCmd.MarkFlagRequired("key")

	setModelCmd.Flags().StringP("provider", "p", "", "oracle provider name (gemini)")
	setModelCmd.Flags().StringP("model", "m", "", "model identifier, e.g. gemini-1.5-flash")

	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(listModelsCmd)
	rootCmd.AddCommand(configCmd)
}
