// Package authz composes the user allow-list, the repository allow-list,
// and the cross-process rate limiter into a single allow/deny decision.
// Every denial carries a distinct human-readable reason so callers and
// tests can tell unauthorized-user from unauthorized-repo from rate-limit.
package authz

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dativo-io/warden/internal/github"
	wardenotel "github.com/dativo-io/warden/internal/otel"
	"github.com/dativo-io/warden/internal/ratelimit"
)

var tracer = wardenotel.Tracer("github.com/dativo-io/warden/internal/authz")

// Deny reasons. Stable strings: they are posted back to GitHub as comments
// and matched by the embedding orchestrator.
const (
	ReasonUserNotAllowed = "user not in allow list"
	ReasonRepoNotAllowed = "repository not allowed"
)

// botPrincipals are always-allowed automation identities.
var botPrincipals = []string{
	"github-actions[bot]",
	"dependabot[bot]",
}

// Config is the security section of warden.config.yaml.
type Config struct {
	Enabled                bool     `yaml:"enabled"`
	AllowList              []string `yaml:"allow_list"`
	AllowedRepositories    []string `yaml:"allowed_repositories"`
	RateLimitWindowMinutes int      `yaml:"rate_limit_window_minutes"`
	RateLimitMaxRequests   int      `yaml:"rate_limit_max_requests"`
	RejectMessage          string   `yaml:"reject_message"`
	LogViolations          bool     `yaml:"log_violations"`
}

// DecisionLogger records gate decisions for later review. Implemented by
// audit.Store; nil disables audit logging.
type DecisionLogger interface {
	LogDecision(ctx context.Context, principal, action, repository string, allowed bool, reason string)
}

// Engine makes authorization decisions. The config is immutable for the
// engine's lifetime; mutating the allow-list is an administrative operation
// on the config file, never a side effect of a decision.
type Engine struct {
	cfg     Config
	users   map[string]bool
	limiter *ratelimit.Limiter
	audit   DecisionLogger
}

// NewEngine builds an engine from the loaded security config. Built-in bot
// principals are injected into the user set at load time; the repository
// owner is derived per request from the "owner/repo" name.
func NewEngine(cfg Config, limiter *ratelimit.Limiter, auditLog DecisionLogger) *Engine {
	users := make(map[string]bool, len(cfg.AllowList)+len(botPrincipals))
	for _, u := range cfg.AllowList {
		users[u] = true
	}
	for _, b := range botPrincipals {
		users[b] = true
	}
	return &Engine{
		cfg:     cfg,
		users:   users,
		limiter: limiter,
		audit:   auditLog,
	}
}

// UserAllowed reports whether a principal may trigger actions against the
// given repository. Comparison is exact-case: GitHub display casing is
// preserved and never normalized. The repository owner is always allowed.
func (e *Engine) UserAllowed(principal, repository string) bool {
	if !e.cfg.Enabled {
		return true
	}
	if e.users[principal] {
		return true
	}
	return principal != "" && principal == github.Owner(repository)
}

// Authorize decides whether the request may proceed. Checks short-circuit
// in order — security toggle, user, repository, rate limit — each with its
// own reason. On allow the attempt is recorded against the rate budget.
func (e *Engine) Authorize(ctx context.Context, req github.AuthorizationRequest) (bool, string) {
	ctx, span := tracer.Start(ctx, "authz.authorize",
		trace.WithAttributes(
			attribute.String("principal", req.Principal),
			attribute.String("action", req.Action),
			attribute.String("repository", req.Repository),
		))
	defer span.End()

	if !e.cfg.Enabled {
		log.Warn().
			Str("principal", req.Principal).
			Str("action", req.Action).
			Msg("security_disabled_allowing_all")
		return true, ""
	}

	if !e.UserAllowed(req.Principal, req.Repository) {
		return e.deny(ctx, req, ReasonUserNotAllowed)
	}

	if !e.repositoryAllowed(req.Repository) {
		return e.deny(ctx, req, ReasonRepoNotAllowed)
	}

	if allowed, reason := e.limiter.CheckAndRecord(req.Principal, req.Action); !allowed {
		return e.deny(ctx, req, reason)
	}

	span.SetAttributes(attribute.Bool("authz.allowed", true))
	if e.audit != nil && e.cfg.LogViolations {
		e.audit.LogDecision(ctx, req.Principal, req.Action, req.Repository, true, "")
	}
	return true, ""
}

// RejectMessage is the operator-configured text to post alongside a denial.
func (e *Engine) RejectMessage() string {
	return e.cfg.RejectMessage
}

func (e *Engine) deny(ctx context.Context, req github.AuthorizationRequest, reason string) (bool, string) {
	log.Info().
		Str("principal", req.Principal).
		Str("action", req.Action).
		Str("repository", req.Repository).
		Str("reason", reason).
		Msg("auth_denied")
	if e.audit != nil && e.cfg.LogViolations {
		e.audit.LogDecision(ctx, req.Principal, req.Action, req.Repository, false, reason)
	}
	return false, reason
}

// repositoryAllowed checks the repository against the configured patterns:
// exact "owner/repo" or owner wildcard "owner/*". With no repositories
// configured, every repository is allowed.
func (e *Engine) repositoryAllowed(repository string) bool {
	if len(e.cfg.AllowedRepositories) == 0 {
		return true
	}
	owner := github.Owner(repository)
	for _, pattern := range e.cfg.AllowedRepositories {
		if pattern == repository {
			return true
		}
		if len(pattern) > 2 && pattern[len(pattern)-2:] == "/*" && pattern[:len(pattern)-2] == owner {
			return true
		}
	}
	return false
}
