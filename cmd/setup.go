package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/scanforge/pkg/config"
	"github.com/user/scanforge/pkg/oracle"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Run: func(cmd *cobra.Command, args []string) {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Println("Welcome to the scanforge setup wizard")
		fmt.Println("-------------------------------------")

		fmt.Println("Step 1: Reasoning provider (used for finding validation and report summaries)")
		fmt.Println("1. Gemini (Google)")
		fmt.Println("2. None (run in degraded mode)")
		fmt.Print("Enter number > ")
		scanner.Scan()
		choice := strings.TrimSpace(scanner.Text())

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		if choice == "1" || strings.EqualFold(choice, "gemini") {
			fmt.Println("\nStep 2: Enter your Gemini API key")
			fmt.Print("> ")
			scanner.Scan()
			apiKey := strings.TrimSpace(scanner.Text())
			if apiKey == "" {
				fmt.Println("API key cannot be empty.")
				return
			}

			fmt.Println("\nStep 3: Validating key and fetching available models...")
			ctx := context.Background()
			provider, err := oracle.NewGeminiProvider(ctx, apiKey, "")
			if err != nil {
				fmt.Printf("Error initializing provider: %v\n", err)
				return
			}
			defer provider.Close()

			models, err := provider.ListModels(ctx)
			var selectedModel string
			if err != nil {
				fmt.Printf("Warning: could not fetch models from API: %v\n", err)
				fmt.Println("Enter a model name manually (e.g. 'gemini-1.5-flash'):")
				fmt.Print("> ")
				scanner.Scan()
				selectedModel = strings.TrimSpace(scanner.Text())
			} else {
				for i, m := range models {
					fmt.Printf("%d. %s\n", i+1, m)
				}
				fmt.Print("Select model (number) > ")
				scanner.Scan()
				idx, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
				if err != nil || idx < 1 || idx > len(models) {
					fmt.Println("Invalid selection. Using the first available model.")
					selectedModel = models[0]
				} else {
					selectedModel = models[idx-1]
				}
			}

			cfg.SelectedProvider = "gemini"
			cfg.SelectedModel = selectedModel
			cfg.SetAPIKey("gemini", apiKey)
		} else {
			fmt.Println("Skipping provider setup. Findings will not be AI-validated.")
		}

		fmt.Println("\nStep 4: Shodan API key for exposure lookups (optional, blank to skip)")
		fmt.Print("> ")
		scanner.Scan()
		if key := strings.TrimSpace(scanner.Text()); key != "" {
			cfg.ShodanAPIKey = key
		}

		fmt.Println("\nStep 5: Persistence backend")
		fmt.Println("1. memory (default, nothing survives restart)")
		fmt.Println("2. arango (requires a reachable ArangoDB)")
		fmt.Print("Enter number > ")
		scanner.Scan()
		if strings.TrimSpace(scanner.Text()) == "2" {
			cfg.Store.Backend = "arango"
		} else {
			cfg.Store.Backend = "memory"
		}

		if err := config.SaveConfig(cfg); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}

		fmt.Println("-------------------------------------")
		fmt.Println("Setup complete!")
		fmt.Printf("Provider: %s\n", cfg.SelectedProvider)
		fmt.Printf("Model:    %s\n", cfg.SelectedModel)
		fmt.Printf("Store:    %s\n", cfg.Store.Backend)
		fmt.Println("Run 'scanforge scan <url>' to assess a target or 'scanforge serve' to start the API.")
	},
}

func init() {
	configCmd.AddCommand(setupCmd)
}
