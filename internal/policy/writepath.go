// Package policy evaluates file-path security rules with embedded OPA.
// An agent that is authorized to act may still be forbidden from touching
// specific files: its own enforcement code, CI workflow definitions,
// dotfiles, SSH material, and system directories.
package policy

import (
	"context"
	"embed"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage/inmem"
)

//go:embed rego/*.rego
var embeddedRules embed.FS

const writePathQuery = "data.warden.writepath.deny"

// restrictedFragments deny any write target whose path contains one of
// these, lowercased. Covers CI workflow files, git internals, SSH
// directories, system directories, and warden's own enforcement packages.
var restrictedFragments = []string{
	".github/workflows",
	".git/",
	".ssh",
	"/etc/",
	"/usr/",
	"/boot/",
	"/var/",
	"internal/authz",
	"internal/masker",
	"internal/policy",
	"internal/ratelimit",
}

// restrictedBasenames deny specific filenames anywhere on disk. Dotfiles
// (.gitconfig, .bashrc, ...) are rejected by a separate rule in the Rego
// module.
var restrictedBasenames = []string{
	"warden.config.yaml",
	"authorized_keys",
	"known_hosts",
	"id_rsa",
	"id_ed25519",
	"gitconfig",
	"ssh_config",
}

// WritePathEngine evaluates the embedded write-path rules with a prepared
// query. Construction compiles the Rego once; evaluation is pure.
type WritePathEngine struct {
	prepared rego.PreparedEvalQuery
}

// NewWritePathEngine compiles the embedded write-path policy.
func NewWritePathEngine(ctx context.Context) (*WritePathEngine, error) {
	content, err := embeddedRules.ReadFile("rego/writepath.rego")
	if err != nil {
		return nil, fmt.Errorf("reading embedded write-path policy: %w", err)
	}

	store := inmem.NewFromObject(map[string]interface{}{
		"restricted": map[string]interface{}{
			"fragments": toInterfaceSlice(restrictedFragments),
			"basenames": toInterfaceSlice(restrictedBasenames),
		},
	})

	prepared, err := rego.New(
		rego.Query(writePathQuery),
		rego.Module("rego/writepath.rego", string(content)),
		rego.Store(store),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("preparing write-path policy: %w", err)
	}

	return &WritePathEngine{prepared: prepared}, nil
}

// CheckWritePath reports whether path is an acceptable write target.
// Denials carry every matched rule's reason, joined. Independent of the
// user/repo/rate checks in internal/authz.
func (e *WritePathEngine) CheckWritePath(ctx context.Context, path string) (bool, string) {
	lowered := strings.ToLower(filepath.ToSlash(path))
	input := map[string]interface{}{
		"path": lowered,
		"base": filepath.Base(lowered),
	}

	results, err := e.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		// Fail closed: an evaluation error must not grant a write.
		return false, "write-path policy evaluation failed"
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return true, ""
	}

	var reasons []string
	if set, ok := results[0].Expressions[0].Value.([]interface{}); ok {
		for _, v := range set {
			if msg, ok := v.(string); ok {
				reasons = append(reasons, msg)
			}
		}
	}
	if len(reasons) == 0 {
		return true, ""
	}
	return false, fmt.Sprintf("write to %s denied: %s", path, strings.Join(reasons, "; "))
}

func toInterfaceSlice(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
