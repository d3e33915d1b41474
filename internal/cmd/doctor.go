package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dativo-io/warden/internal/doctor"
)

var doctorFormat string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run preflight checks (security config, data dir, stores)",
	Long:  "Verifies the security document parses, the data directory is writable, the rate-limit store can be locked, and the audit database is usable.",
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text", "Output format (text, json)")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	report := doctor.Run(operatorConfig())
	out := cmd.OutOrStdout()

	if doctorFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		for _, c := range report.Checks {
			glyph := "✓"
			switch c.Status {
			case "warn":
				glyph = "⚠"
			case "fail":
				glyph = "✗"
			}
			fmt.Fprintf(out, "%s %s: %s\n", glyph, c.Name, c.Message)
			if c.Fix != "" && c.Status != "pass" {
				fmt.Fprintf(out, "  fix: %s\n", c.Fix)
			}
		}
		fmt.Fprintf(out, "\n%d passed, %d warnings, %d failed\n",
			report.Summary.Pass, report.Summary.Warn, report.Summary.Fail)
	}

	if report.Status == "fail" {
		return fmt.Errorf("preflight checks failed")
	}
	return nil
}
