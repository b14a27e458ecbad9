package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "maizone",
	Short:         "Autonomous QQ-zone engagement bot",
	Long:          "maizone keeps a QQ-zone presence alive: it posts feeds, browses and reacts to friends' feeds, and keeps a daily diary, all paced by a planning schedule.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(diaryCmd)
	rootCmd.AddCommand(postsCmd)
	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(personaCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
