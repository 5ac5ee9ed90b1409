package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

var (
	rootConfigPath  string
	rootTask        string
	rootOutput      string
	rootVerbose     bool
	rootInteractive bool
)

var rootCmd = &cobra.Command{
	Use:   "devcrew",
	Short: "Multi-agent development team on a local completion service",
	Long: `Devcrew runs a coordinator and two specialized worker agents against an
Ollama-compatible completion service. The coordinator breaks a task into
frontend and backend sub-tasks, the workers solve them in parallel, and
the coordinator reviews the work and integrates it into one final
solution.

With --task, a single task is solved and the program exits. With
--interactive, a loop reads tasks from standard input until EOF or an
exit command.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if rootTask != "" {
			return runSingleTask(rootTask, rootOutput)
		}
		if rootInteractive {
			return runInteractive()
		}
		cmd.Usage()
		return errors.New("no task supplied: use --task or --interactive")
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Log agent activity to stderr")

	rootCmd.Flags().StringVarP(&rootTask, "task", "t", "", "Task to solve")
	rootCmd.Flags().StringVarP(&rootOutput, "output", "o", "", "Write the final solution to this file")
	rootCmd.Flags().BoolVarP(&rootInteractive, "interactive", "i", false, "Read tasks from standard input")

	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
