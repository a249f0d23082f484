// Package cli wires the commitly command surface. Exit codes: 0 success,
// 1 pipeline failed at a blocking agent, 2 user declined at the sync gate,
// 3 configuration error, 4 lock held.
package cli

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// SetVersion sets the version string shown by the version command.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "commitly",
	Short: "commitly — post-commit automation for a local repository",
	Long: `commitly runs a deterministic pipeline after every commit: it validates,
tests, and improves the change in an isolated hub clone, asks once for
approval, then pushes and notifies collaborators.

All state lives under .commitly/ in the repository (JSON caches, per-agent
logs, a SQLite audit trail).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return exitCodeFor(err)
	}
	return 0
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(commitCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statusCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the commitly version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("commitly " + version)
	},
}
