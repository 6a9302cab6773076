package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/careops/reportd/cmd/cli/client"
)

var apiClient *client.Client

var rootCmd = &cobra.Command{
	Use:   "reportctl",
	Short: "reportctl - manage scheduled reports",
	Long: `reportctl is the command-line client for the CareOps report
scheduler. It manages report schedules, inspects execution history,
and triggers runs against a running reportd instance.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.SetConfigName(".reportctl")
		viper.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetDefault("server", "http://localhost:8080")
		_ = viper.ReadInConfig()

		apiClient = client.New(viper.GetString("server"), viper.GetString("token"))
	},
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "reportd server URL")
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.AddCommand(newLoginCommand())
	rootCmd.AddCommand(newScheduleCommand())
	rootCmd.AddCommand(newTickCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
