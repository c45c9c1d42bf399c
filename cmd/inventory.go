package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "List tracked network assets",
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

		assets, err := st.ListAssets(ctx)
		if err != nil {
			return err
		}
		if len(assets) == 0 {
			fmt.Println("No assets tracked yet.")
			return nil
		}

		fmt.Printf("%-16s %-8s %-10s %-20s %s\n", "ADDRESS", "STATUS", "RISK", "LAST SEEN", "OPEN PORTS")
		for _, a := range assets {
			ports := make([]string, len(a.OpenPorts))
			for i, p := range a.OpenPorts {
				ports[i] = fmt.Sprintf("%d", p)
			}
			fmt.Printf("%-16s %-8s %-10.0f %-20s %s\n",
				a.Address, a.Status, a.RiskScore,
				a.LastSeen.Format("2006-01-02 15:04"),
				strings.Join(ports, ","))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
}
