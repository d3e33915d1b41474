package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dativo-io/warden/internal/github"
	"github.com/dativo-io/warden/internal/trigger"
)

var (
	checkRepository string
	checkEntityFile string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Decide whether an entity's authoritative trigger may proceed",
	Long: `Reads an already-fetched issue or PR as JSON, finds the authoritative
trigger (most recent trigger from an allowed principal), and runs the full
authorization pipeline. Prints the decision as JSON on stdout; exits
non-zero when the action is denied.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkRepository, "repository", "", `Repository the entity belongs to ("owner/repo")`)
	checkCmd.Flags().StringVar(&checkEntityFile, "entity", "-", `Entity JSON file ("-" for stdin)`)
	_ = checkCmd.MarkFlagRequired("repository")
	rootCmd.AddCommand(checkCmd)
}

// decision is the check command's stdout contract. RejectMessage carries
// the operator-configured text to post back on a denial.
type decision struct {
	Allowed       bool             `json:"allowed"`
	Reason        string           `json:"reason,omitempty"`
	Trigger       *trigger.Trigger `json:"trigger,omitempty"`
	Principal     string           `json:"principal,omitempty"`
	RejectMessage string           `json:"reject_message,omitempty"`
}

// errDenied signals a deny decision through cobra without extra output.
var errDenied = errors.New("action denied")

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	g, err := buildGate(operatorConfig())
	if err != nil {
		return err
	}
	defer g.close()

	entity, err := readEntity(checkEntityFile)
	if err != nil {
		return err
	}

	trig, principal, found := trigger.Scan(entity, func(p string) bool {
		return g.engine.UserAllowed(p, checkRepository)
	})
	if !found {
		printDecision(cmd.OutOrStdout(), decision{Allowed: false, Reason: "no authoritative trigger"})
		return errDenied
	}

	allowed, reason := g.engine.Authorize(ctx, github.AuthorizationRequest{
		Principal:    principal,
		Action:       trig.ActionKey(string(entity.Kind)),
		Repository:   checkRepository,
		EntityKind:   entity.Kind,
		EntityNumber: entity.Number,
	})

	d := decision{
		Allowed:   allowed,
		Reason:    g.catalog.Mask(ctx, reason),
		Trigger:   &trig,
		Principal: principal,
	}
	if !allowed {
		d.RejectMessage = g.engine.RejectMessage()
	}
	printDecision(cmd.OutOrStdout(), d)
	if !allowed {
		return errDenied
	}
	return nil
}

func readEntity(path string) (*github.Entity, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening entity file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var entity github.Entity
	if err := json.NewDecoder(r).Decode(&entity); err != nil {
		return nil, fmt.Errorf("parsing entity JSON: %w", err)
	}
	if entity.Kind == "" {
		entity.Kind = github.KindIssue
	}
	return &entity, nil
}

func printDecision(w io.Writer, d decision) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(d)
}
