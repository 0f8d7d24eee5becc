package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/slackmirror/slackmirror/internal/cli.version=1.2.3"
	version = "1.4.0"
	logo    = "\n" +
		"  ____  _            _    __  __ _\n" +
		" / ___|| | __ _  ___| | _|  \\/  (_)_ __ _ __ ___  _ __\n" +
		" \\___ \\| |/ _` |/ __| |/ / |\\/| | | '__| '__/ _ \\| '__|\n" +
		"  ___) | | (_| | (__|   <| |  | | | |  | | | (_) | |\n" +
		" |____/|_|\\__,_|\\___|_|\\_\\_|  |_|_|_|  |_|  \\___/|_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "slackmirror",
	Short: "SlackMirror - multi-workspace Slack relay",
	Long:  color.CyanString(logo) + "\nReceives Slack events for multiple workspaces and mirrors their conversations over a local HTTP API.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
}
