// Package cli implements the conductor command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "Conductor - subtask orchestration for planner/worker agents",
	Long: `Conductor maintains a persistent, hierarchical subtask plan and drives
the execute -> parse -> transition -> advance loop against an external
worker process.

A planner (human or agent) adds subtasks, executes the current one,
decomposes work that came back incomplete, and reads the append-only
execution records. State lives in a local store scoped by namespace
and invocation, so separate conversations never step on each other.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("conductor %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
