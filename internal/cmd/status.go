package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show how far a task's files have drifted behind main",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		drift := eng.tracker.GetTaskDrift(args[0])
		if len(drift) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no active tracked files for task %s\n", args[0])
			return nil
		}

		paths := make([]string, 0, len(drift))
		for p := range drift {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		for _, p := range paths {
			fmt.Fprintf(cmd.OutOrStdout(), "%-60s %d commit(s) behind\n", p, drift[p])
		}
		return nil
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending <file>",
	Short: "List active tasks touching a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		views := eng.tracker.GetPendingTasksForFile(args[0])
		if len(views) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no pending tasks for %s\n", args[0])
			return nil
		}
		for _, v := range views {
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s branched at %s, %d commit(s) behind\n",
				v.TaskID, v.BranchPoint.Commit, v.CommitsBehind)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, pendingCmd)
}
