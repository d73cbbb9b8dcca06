package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftline/driftline/internal/timeline"
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Feed task lifecycle hooks into the timeline tracker",
}

var trackStartCmd = &cobra.Command{
	Use:   "start <task-id> <file>...",
	Short: "Register a task's view of the files it will touch",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		branchPoint, _ := cmd.Flags().GetString("branch-point")
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")

		var intent *timeline.TaskIntent
		if title != "" || description != "" {
			intent = &timeline.TaskIntent{Title: title, Description: description}
		}

		eng.tracker.OnTaskStart(args[0], args[1:], timeline.TaskStartOptions{
			BranchPointCommit: branchPoint,
			Intent:            intent,
		})
		return nil
	},
}

var trackCommitCmd = &cobra.Command{
	Use:   "commit <commit-id>",
	Short: "Record a main-branch commit against tracked files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		eng.tracker.OnMainBranchCommit(args[0])
		return nil
	},
}

var trackMergedCmd = &cobra.Command{
	Use:   "merged <task-id> <commit-id>",
	Short: "Mark a task merged and record its landing commit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		eng.tracker.OnTaskMerged(args[0], args[1])
		return nil
	},
}

var trackAbandonedCmd = &cobra.Command{
	Use:   "abandoned <task-id>",
	Short: "Mark a task abandoned",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		eng.tracker.OnTaskAbandoned(args[0])
		return nil
	},
}

var trackCaptureCmd = &cobra.Command{
	Use:   "capture <task-id> <workspace-root>",
	Short: "Capture the task's current worktree state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		eng.tracker.CaptureWorktreeState(args[0], args[1])
		return nil
	},
}

var trackInitCmd = &cobra.Command{
	Use:   "init <task-id> <workspace-root>",
	Short: "Bootstrap tracking for a task that already has live changes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		target, _ := cmd.Flags().GetString("target-branch")

		var intent *timeline.TaskIntent
		if title != "" || description != "" {
			intent = &timeline.TaskIntent{Title: title, Description: description}
		}

		eng.tracker.InitializeFromWorktree(args[0], args[1], intent, target)
		fmt.Fprintf(cmd.OutOrStdout(), "tracking %d file(s) for task %s\n",
			len(eng.tracker.GetFilesForTask(args[0])), args[0])
		return nil
	},
}

func init() {
	trackStartCmd.Flags().String("branch-point", "", "commit the task diverged at (default: current main)")
	trackStartCmd.Flags().String("title", "", "task title")
	trackStartCmd.Flags().String("description", "", "task description")

	trackInitCmd.Flags().String("title", "", "task title")
	trackInitCmd.Flags().String("description", "", "task description")
	trackInitCmd.Flags().String("target-branch", "", "target branch (default: auto-detect)")

	trackCmd.AddCommand(trackStartCmd, trackCommitCmd, trackMergedCmd,
		trackAbandonedCmd, trackCaptureCmd, trackInitCmd)
	rootCmd.AddCommand(trackCmd)
}
