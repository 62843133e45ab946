package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// #region commands

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "dermengined",
	Short: "dermengined - skin lesion inference orchestration daemon",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API over the analysis engine",
	RunE:  runServe,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print recent journal entries and provider outcome aggregates",
	RunE:  runInspect,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the daemon version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to engine config YAML (empty = built-in defaults)")
	inspectCmd.Flags().StringVar(&inspectDB, "db", "", "journal path (default: archive.path from config)")
	inspectCmd.Flags().IntVar(&inspectLast, "last", 20, "show N most recent analyses")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON instead of tables")
	rootCmd.AddCommand(serveCmd, inspectCmd, versionCmd)
}

// #endregion

// #region main

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion
