package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/driftline/driftline/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <task-id>=<workspace-root>...",
	Short: "Watch task workspaces and record worktree changes live",
	Long: `Watches one or more task workspaces and feeds every debounced file
write into the tracker as a worktree change. Runs until interrupted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		w, err := watch.New(eng.tracker, eng.logger,
			watch.WithDebounce(time.Duration(eng.cfg.Watcher.DebounceMs)*time.Millisecond),
			watch.WithIgnorePaths(eng.cfg.Watcher.IgnorePaths),
		)
		if err != nil {
			return err
		}
		defer w.Stop()

		for _, arg := range args {
			taskID, root, ok := splitTaskWorkspace(arg)
			if !ok {
				return fmt.Errorf("invalid workspace argument %q, want <task-id>=<workspace-root>", arg)
			}
			if err := w.AddTask(taskID, root); err != nil {
				return fmt.Errorf("watching %s: %w", root, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "watching %s for task %s\n", root, taskID)
		}

		w.Start()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sig:
		case <-cmd.Context().Done():
		}
		return nil
	},
}

func splitTaskWorkspace(arg string) (taskID, root string, ok bool) {
	taskID, root, found := strings.Cut(arg, "=")
	return taskID, root, found && taskID != "" && root != ""
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
