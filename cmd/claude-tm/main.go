package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "claude-tm",
		Short: "Claude Task Master - Autonomous goal runner",
		Long: `Claude Task Master drives Claude Code sessions toward a stated goal.
It plans the goal into a task checklist, works the tasks one by one,
shepherds each pull request through checks and review to merge, and
survives interruptions by keeping all state on disk.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
