package cmd

import (
	"fmt"
	"os"

	"github.com/dativo-io/warden/internal/audit"
	"github.com/dativo-io/warden/internal/authz"
	"github.com/dativo-io/warden/internal/config"
	"github.com/dativo-io/warden/internal/masker"
	"github.com/dativo-io/warden/internal/ratelimit"
)

// gate bundles the components every gating command needs.
type gate struct {
	doc     *config.Document
	engine  *authz.Engine
	catalog *masker.Catalog
	audit   *audit.Store
}

func (g *gate) close() {
	if g.audit != nil {
		_ = g.audit.Close()
	}
}

// buildGate loads the security document (fail-closed: a missing document
// is a hard error, never "no rules configured") and assembles the engine,
// masker, and limiter on top of the shared on-disk state.
func buildGate(cfg *config.Config) (*gate, error) {
	doc, err := config.LoadDocument(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	store, err := ratelimit.NewFileStore(cfg.RateLimitStorePath())
	if err != nil {
		return nil, fmt.Errorf("initializing rate limit store: %w", err)
	}
	limiter := ratelimit.NewLimiter(store,
		doc.Security.RateLimitWindowMinutes, doc.Security.RateLimitMaxRequests)

	var auditStore *audit.Store
	if doc.Security.LogViolations {
		auditStore, err = audit.NewStore(cfg.AuditDBPath())
		if err != nil {
			return nil, fmt.Errorf("initializing audit store: %w", err)
		}
	}

	var logger authz.DecisionLogger
	if auditStore != nil {
		logger = auditStore
	}

	return &gate{
		doc:     doc,
		engine:  authz.NewEngine(doc.Security, limiter, logger),
		catalog: masker.NewCatalog(doc.Secrets, masker.EnvSnapshot(os.Environ())),
		audit:   auditStore,
	}, nil
}
