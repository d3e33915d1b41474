package doctor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/warden/internal/config"
)

func testConfig(t *testing.T, document string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DataDir:    filepath.Join(dir, "data"),
		ConfigPath: filepath.Join(dir, "warden.config.yaml"),
	}
	if document != "" {
		require.NoError(t, os.WriteFile(cfg.ConfigPath, []byte(document), 0o600))
	}
	return cfg
}

func findCheck(t *testing.T, report *Report, name string) CheckResult {
	t.Helper()
	for _, c := range report.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not in report", name)
	return CheckResult{}
}

func TestRunHealthySetup(t *testing.T) {
	cfg := testConfig(t, `
security:
  enabled: true
  allow_list: [AndrewAltimit]
`)
	report := Run(cfg)

	assert.Equal(t, "pass", report.Status)
	assert.Zero(t, report.Summary.Fail)
	assert.Equal(t, "pass", findCheck(t, report, "security_config").Status)
	assert.Equal(t, "pass", findCheck(t, report, "allow_list").Status)
	assert.Equal(t, "pass", findCheck(t, report, "data_dir_writable").Status)
	assert.Equal(t, "pass", findCheck(t, report, "rate_limit_store").Status)
}

func TestRunMissingSecurityDocument(t *testing.T) {
	report := Run(testConfig(t, ""))

	assert.Equal(t, "fail", report.Status)
	check := findCheck(t, report, "security_config")
	assert.Equal(t, "fail", check.Status)
	assert.Contains(t, check.Fix, "warden init")
}

func TestRunWarnsOnDisabledSecurity(t *testing.T) {
	report := Run(testConfig(t, "security:\n  enabled: false\n"))

	assert.Equal(t, "warn", report.Status)
	assert.Equal(t, "warn", findCheck(t, report, "security_enabled").Status)
	assert.Equal(t, "warn", findCheck(t, report, "allow_list").Status)
}

func TestRunWarnsOnUnsetMaskedSecret(t *testing.T) {
	report := Run(testConfig(t, `
security:
  enabled: true
  allow_list: [AndrewAltimit]
secrets:
  environment_variables: [WARDEN_DOCTOR_TEST_UNSET_VAR]
`))

	check := findCheck(t, report, "masked_secrets")
	assert.Equal(t, "warn", check.Status)
	assert.Contains(t, check.Message, "WARDEN_DOCTOR_TEST_UNSET_VAR")
}

func TestRunChecksAuditDBWhenViolationLoggingOn(t *testing.T) {
	report := Run(testConfig(t, `
security:
  enabled: true
  allow_list: [AndrewAltimit]
  log_violations: true
`))

	assert.Equal(t, "pass", findCheck(t, report, "audit_db").Status)
}
