package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	resolveLanguage string
	resolveOutput   string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Run merge reconciliation for a task's file",
}

var resolveConflictsCmd = &cobra.Command{
	Use:   "conflicts <task-id> <file> <merged-file>",
	Short: "Resolve conflict markers left in a merged file",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		merged, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("reading merged file: %w", err)
		}

		resolved, err := eng.resolver.ResolveConflicts(cmd.Context(), args[0], args[1], string(merged), resolveLanguage)
		if err != nil {
			return err
		}
		return writeResolved(cmd, resolved)
	},
}

var resolveTimelineCmd = &cobra.Command{
	Use:   "timeline <task-id> <file>",
	Short: "Reconcile a task's file against main using its recorded evolution",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.close()

		resolved, err := eng.resolver.ResolveTimeline(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return writeResolved(cmd, resolved)
	},
}

func writeResolved(cmd *cobra.Command, content string) error {
	if resolveOutput == "" {
		fmt.Fprint(cmd.OutOrStdout(), content)
		return nil
	}
	if err := os.WriteFile(resolveOutput, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing resolved file: %w", err)
	}
	return nil
}

func init() {
	resolveCmd.PersistentFlags().StringVar(&resolveLanguage, "language", "", "language hint for fenced code blocks")
	resolveCmd.PersistentFlags().StringVarP(&resolveOutput, "output", "o", "", "write resolved content to file instead of stdout")
	resolveCmd.AddCommand(resolveConflictsCmd, resolveTimelineCmd)
	rootCmd.AddCommand(resolveCmd)
}
