// Package doctor provides health checks for warden configuration and
// runtime state. Used by `warden doctor` before wiring warden into an
// automation pipeline.
package doctor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dativo-io/warden/internal/audit"
	"github.com/dativo-io/warden/internal/config"
	"github.com/dativo-io/warden/internal/ratelimit"
)

// CheckResult is a single doctor check outcome.
type CheckResult struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   string `json:"status"` // pass, warn, fail
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Summary tallies pass/warn/fail counts.
type Summary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Report is the complete doctor output.
type Report struct {
	Status  string        `json:"status"` // worst of all checks
	Checks  []CheckResult `json:"checks"`
	Summary Summary       `json:"summary"`
}

// Run executes all doctor checks against the given operator config.
func Run(cfg *config.Config) *Report {
	report := &Report{}

	// Data dir first: the audit and rate-limit checks create files under it.
	report.Checks = append(report.Checks, checkDataDir(cfg))
	report.Checks = append(report.Checks, checkSecurityDocument(cfg)...)
	report.Checks = append(report.Checks, checkRateLimitStore(cfg))

	for _, c := range report.Checks {
		switch c.Status {
		case "pass":
			report.Summary.Pass++
		case "warn":
			report.Summary.Warn++
		case "fail":
			report.Summary.Fail++
		}
	}

	report.Status = "pass"
	if report.Summary.Warn > 0 {
		report.Status = "warn"
	}
	if report.Summary.Fail > 0 {
		report.Status = "fail"
	}
	return report
}

func checkSecurityDocument(cfg *config.Config) []CheckResult {
	doc, err := config.LoadDocument(cfg.ConfigPath)
	if err != nil {
		return []CheckResult{{
			Name: "security_config", Category: "config", Status: "fail",
			Message: fmt.Sprintf("%s — %v", cfg.ConfigPath, err),
			Fix:     "Run 'warden init' to create a starter warden.config.yaml",
		}}
	}

	results := []CheckResult{{
		Name: "security_config", Category: "config", Status: "pass",
		Message: cfg.ConfigPath,
	}}

	if !doc.Security.Enabled {
		results = append(results, CheckResult{
			Name: "security_enabled", Category: "config", Status: "warn",
			Message: "security.enabled is false — every trigger will be allowed",
			Fix:     "Set security.enabled: true",
		})
	} else {
		results = append(results, CheckResult{
			Name: "security_enabled", Category: "config", Status: "pass",
			Message: "enabled",
		})
	}

	if len(doc.Security.AllowList) == 0 {
		results = append(results, CheckResult{
			Name: "allow_list", Category: "config", Status: "warn",
			Message: "allow_list is empty — only repository owners and bots can trigger",
			Fix:     "Add trusted usernames to security.allow_list",
		})
	} else {
		results = append(results, CheckResult{
			Name: "allow_list", Category: "config", Status: "pass",
			Message: fmt.Sprintf("%d user(s)", len(doc.Security.AllowList)),
		})
	}

	results = append(results, checkMaskedSecrets(doc)...)

	if doc.Security.LogViolations {
		results = append(results, checkAuditDB(cfg))
	}
	return results
}

// checkMaskedSecrets warns about configured environment variables that are
// not set: the masker cannot redact a value the process never sees.
func checkMaskedSecrets(doc *config.Document) []CheckResult {
	var missing []string
	for _, name := range doc.Secrets.EnvironmentVariables {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return []CheckResult{{
			Name: "masked_secrets", Category: "secrets", Status: "warn",
			Message: fmt.Sprintf("configured but unset: %v", missing),
			Fix:     "Export the variables or remove them from secrets.environment_variables",
		}}
	}
	return []CheckResult{{
		Name: "masked_secrets", Category: "secrets", Status: "pass",
		Message: fmt.Sprintf("%d environment variable(s)", len(doc.Secrets.EnvironmentVariables)),
	}}
}

func checkDataDir(cfg *config.Config) CheckResult {
	if err := cfg.EnsureDataDir(); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "system", Status: "fail",
			Message: fmt.Sprintf("%s — %v", cfg.DataDir, err),
			Fix:     "Ensure the directory exists and is writable",
		}
	}
	testFile := filepath.Join(cfg.DataDir, ".doctor-write-test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "system", Status: "fail",
			Message: fmt.Sprintf("%s not writable — %v", cfg.DataDir, err),
		}
	}
	_ = os.Remove(testFile)
	return CheckResult{
		Name: "data_dir_writable", Category: "system", Status: "pass",
		Message: fmt.Sprintf("%s (writable)", cfg.DataDir),
	}
}

// checkRateLimitStore exercises a full locked load/save cycle so lock
// contention or a corrupt store file surfaces here instead of silently
// failing open at gate time.
func checkRateLimitStore(cfg *config.Config) CheckResult {
	store, err := ratelimit.NewFileStore(cfg.RateLimitStorePath())
	if err != nil {
		return CheckResult{
			Name: "rate_limit_store", Category: "system", Status: "fail",
			Message: fmt.Sprintf("%v", err),
		}
	}
	snapshot, err := store.Load()
	if err != nil {
		return CheckResult{
			Name: "rate_limit_store", Category: "system", Status: "warn",
			Message: fmt.Sprintf("load failed (gate will fail open): %v", err),
		}
	}
	if err := store.Save(snapshot); err != nil {
		return CheckResult{
			Name: "rate_limit_store", Category: "system", Status: "warn",
			Message: fmt.Sprintf("save failed (gate will fail open): %v", err),
		}
	}
	return CheckResult{
		Name: "rate_limit_store", Category: "system", Status: "pass",
		Message: fmt.Sprintf("%s (%d key(s) tracked)", store.Path(), len(snapshot)),
	}
}

func checkAuditDB(cfg *config.Config) CheckResult {
	store, err := audit.NewStore(cfg.AuditDBPath())
	if err != nil {
		return CheckResult{
			Name: "audit_db", Category: "system", Status: "fail",
			Message: fmt.Sprintf("%v", err),
			Fix:     "Check permissions on " + cfg.AuditDBPath(),
		}
	}
	_ = store.Close()
	return CheckResult{
		Name: "audit_db", Category: "system", Status: "pass",
		Message: cfg.AuditDBPath(),
	}
}
