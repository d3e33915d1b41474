package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dativo-io/warden/internal/authz"
	"github.com/dativo-io/warden/internal/masker"
)

// ErrConfigMissing is returned when the security document does not exist.
// Callers must treat it as "block the operation": warden fails closed
// rather than running with no allow-list and no secret catalog.
var ErrConfigMissing = errors.New("security configuration not found")

// Document is the parsed warden.config.yaml: the security section consumed
// by the authorization engine and the secrets section consumed by the
// masker. Loaded once per process invocation and immutable afterwards.
type Document struct {
	Security authz.Config  `yaml:"security"`
	Secrets  masker.Config `yaml:"secrets"`
}

// LoadDocument reads and validates the security document at path.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigMissing, path)
		}
		return nil, fmt.Errorf("reading security config: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing security config: %w", err)
	}

	doc.applyDefaults()
	if err := doc.validate(); err != nil {
		return nil, fmt.Errorf("invalid security config: %w", err)
	}
	return &doc, nil
}

// Rate-limit defaults when the section omits them.
const (
	defaultWindowMinutes = 60
	defaultMaxRequests   = 10
)

func (d *Document) applyDefaults() {
	if d.Security.RateLimitWindowMinutes == 0 {
		d.Security.RateLimitWindowMinutes = defaultWindowMinutes
	}
	if d.Security.RateLimitMaxRequests == 0 {
		d.Security.RateLimitMaxRequests = defaultMaxRequests
	}
}

func (d *Document) validate() error {
	if d.Security.RateLimitWindowMinutes < 0 {
		return fmt.Errorf("security.rate_limit_window_minutes must be positive")
	}
	if d.Security.RateLimitMaxRequests < 0 {
		return fmt.Errorf("security.rate_limit_max_requests must be positive")
	}
	return nil
}
