package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "scanforge",
	Short: "Automated security assessment pipeline",
	Long: `scanforge runs automated security assessments: reconnaissance,
non-destructive attack probes, AI-assisted validation, and reporting,
with continuous inventory tracking and risk scoring.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().String("store", "", "Persistence backend (memory or arango)")
	_ = viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
	rootCmd.PersistentFlags().String("crawler", "", "Crawler implementation (http or chrome)")
	_ = viper.BindPFlag("crawler", rootCmd.PersistentFlags().Lookup("crawler"))

	viper.SetEnvPrefix("SCANFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}
