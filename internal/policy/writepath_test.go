package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckWritePath(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWritePathEngine(ctx)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		allowed bool
	}{
		{name: "ordinary source file", path: "pkg/handler/handler.go", allowed: true},
		{name: "docs", path: "docs/usage.md", allowed: true},
		{name: "nested readme", path: "examples/demo/README.md", allowed: true},
		{name: "ci workflow", path: ".github/workflows/deploy.yml", allowed: false},
		{name: "ci workflow uppercase", path: ".GitHub/Workflows/Deploy.yml", allowed: false},
		{name: "git internals", path: "repo/.git/hooks/pre-commit", allowed: false},
		{name: "ssh directory", path: "/home/agent/.ssh/id_rsa", allowed: false},
		{name: "ssh key by basename", path: "backup/id_rsa", allowed: false},
		{name: "authorized keys", path: "keys/authorized_keys", allowed: false},
		{name: "etc", path: "/etc/passwd", allowed: false},
		{name: "usr bin", path: "/usr/bin/sudo", allowed: false},
		{name: "dotfile", path: "home/.bashrc", allowed: false},
		{name: "gitconfig dotfile", path: "/home/agent/.gitconfig", allowed: false},
		{name: "gatekeeper config", path: "deploy/warden.config.yaml", allowed: false},
		{name: "gatekeeper enforcement code", path: "internal/authz/engine.go", allowed: false},
		{name: "gatekeeper masker code", path: "internal/masker/masker.go", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, reason := engine.CheckWritePath(ctx, tt.path)
			assert.Equal(t, tt.allowed, allowed)
			if tt.allowed {
				assert.Empty(t, reason)
			} else {
				assert.Contains(t, reason, "denied")
			}
		})
	}
}

func TestCheckWritePathReasonNamesTheRule(t *testing.T) {
	ctx := context.Background()
	engine, err := NewWritePathEngine(ctx)
	require.NoError(t, err)

	_, reason := engine.CheckWritePath(ctx, ".github/workflows/ci.yml")
	assert.Contains(t, reason, ".github/workflows")
}
