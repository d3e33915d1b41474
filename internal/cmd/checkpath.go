package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dativo-io/warden/internal/policy"
)

var checkpathCmd = &cobra.Command{
	Use:   "checkpath <path>...",
	Short: "Decide whether an agent may write to the given file paths",
	Long: `Evaluates each path against the write-path policy: CI workflows, SSH
material, system directories, and warden's own enforcement code stay off
limits even for authorized agents. Prints one decision per path; exits
non-zero if any path is denied.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheckpath,
}

func init() {
	rootCmd.AddCommand(checkpathCmd)
}

func runCheckpath(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	engine, err := policy.NewWritePathEngine(ctx)
	if err != nil {
		return err
	}

	denied := false
	for _, path := range args {
		allowed, reason := engine.CheckWritePath(ctx, path)
		printDecision(cmd.OutOrStdout(), decision{Allowed: allowed, Reason: reason})
		if !allowed {
			denied = true
		}
	}
	if denied {
		return errDenied
	}
	return nil
}
