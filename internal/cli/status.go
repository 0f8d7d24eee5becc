package cli

import (
	"fmt"
	"os"

	"github.com/slackmirror/slackmirror/internal/config"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ SlackMirror Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 SlackMirror Status")
		fmt.Printf("Version: %s\n", version)

		configPath, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + configPath + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (" + configPath + ")")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Config:  ✗ Invalid: %v\n", err)
			return
		}
		fmt.Printf("Tenants: %d configured\n", len(cfg.Tenants))
		for _, t := range cfg.Tenants {
			mark := "✓"
			if t.SigningSecret == "" || t.APIToken == "" {
				mark = "✗"
			}
			fmt.Printf("  %s %s (%s)\n", mark, t.Name, t.TeamID)
		}
		fmt.Printf("Listen:  %s\n", cfg.Server.Addr)
		if cfg.History.KafkaBrokers != "" {
			fmt.Printf("Kafka:   ✓ %s → %s\n", cfg.History.KafkaBrokers, cfg.History.KafkaTopic)
		} else {
			fmt.Println("Kafka:   ✗ Disabled")
		}
		if cfg.History.DBPath != "" {
			fmt.Printf("Store:   ✓ %s\n", cfg.History.DBPath)
		} else {
			fmt.Println("Store:   ✗ Disabled")
		}
	},
}
