package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dativo-io/warden/internal/audit"
)

var (
	auditLimit  int
	auditFormat string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent gate decisions",
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum number of records (0 = all)")
	auditCmd.Flags().StringVar(&auditFormat, "format", "text", "Output format: text or json")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	cfg := operatorConfig()

	store, err := audit.NewStore(cfg.AuditDBPath())
	if err != nil {
		return fmt.Errorf("opening audit store: %w", err)
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), auditLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if auditFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No gate decisions recorded.")
		return nil
	}
	for _, r := range records {
		verdict := "DENY "
		if r.Allowed {
			verdict = "ALLOW"
		}
		fmt.Fprintf(out, "%s  %s  %-20s %-20s %s  %s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"), verdict,
			r.Principal, r.Action, r.Repository, r.Reason)
	}
	return nil
}
