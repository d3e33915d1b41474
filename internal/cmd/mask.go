package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var maskCmd = &cobra.Command{
	Use:   "mask",
	Short: "Redact secrets from stdin text",
	Long: `Reads text on stdin, replaces every known secret (literal values from the
environment plus configured patterns) with named placeholders, and writes
the sanitized text to stdout. Use this on agent output before posting it
anywhere public.`,
	RunE: runMask,
}

func init() {
	rootCmd.AddCommand(maskCmd)
}

func runMask(cmd *cobra.Command, _ []string) error {
	g, err := buildGate(operatorConfig())
	if err != nil {
		return err
	}
	defer g.close()

	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), g.catalog.Mask(cmd.Context(), string(raw)))
	return nil
}
