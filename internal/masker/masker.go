// Package masker redacts secrets from text before it crosses the trust
// boundary (GitHub comments, logs shipped off-host). It combines literal
// secret values — sourced from explicit config names, environment
// auto-detection, and a legacy override list — with named regex patterns.
package masker

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"

	wardenotel "github.com/dativo-io/warden/internal/otel"
)

var tracer = wardenotel.Tracer("github.com/dativo-io/warden/internal/masker")

// LegacyMaskVar is the legacy comma-separated override list: names of
// additional environment variables whose values must be masked. Kept for
// backward compatibility with configs that predate the secrets section.
const LegacyMaskVar = "WARDEN_MASK_SECRETS"

// DefaultMaskFormat is the replacement template when settings.mask_format
// is unset. {name} expands to the upper-cased secret or pattern name.
const DefaultMaskFormat = "[MASKED_{name}]"

// DefaultMinimumSecretLength guards auto-detection against masking short
// env values ("1", "true") that would shred arbitrary text.
const DefaultMinimumSecretLength = 8

// Config is the secrets section of warden.config.yaml.
type Config struct {
	EnvironmentVariables []string        `yaml:"environment_variables"`
	AutoDetection        AutoDetection   `yaml:"auto_detection"`
	Patterns             []PatternConfig `yaml:"patterns"`
	Settings             Settings        `yaml:"settings"`
}

// AutoDetection controls scanning the whole environment for secret-shaped
// variables. Include/exclude patterns are doublestar globs matched against
// variable names.
type AutoDetection struct {
	Enabled         bool     `yaml:"enabled"`
	IncludePatterns []string `yaml:"include_patterns"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

// PatternConfig is a named regex applied to text after literal masking.
type PatternConfig struct {
	Pattern string `yaml:"pattern"`
	Name    string `yaml:"name"`
}

// Settings tunes masking behavior.
type Settings struct {
	MinimumSecretLength   int    `yaml:"minimum_secret_length"`
	MaskFormat            string `yaml:"mask_format"`
	CaseSensitivePatterns bool   `yaml:"case_sensitive_patterns"`
	LogMaskedSecrets      bool   `yaml:"log_masked_secrets"`
}

// namedPattern is a compiled regex with its mask name.
type namedPattern struct {
	re   *regexp.Regexp
	name string
}

// Catalog is the immutable table of literal secrets and compiled patterns.
// Built once at startup from config plus an environment snapshot; no
// component reads the environment at mask time.
type Catalog struct {
	literals   map[string]string // name → value
	patterns   []namedPattern
	maskFormat string
	logMasked  bool
}

// NewCatalog builds a catalog from the secrets config and an environment
// snapshot (os.Environ converted to a name→value map by the caller).
// Regex patterns that fail to compile are logged and skipped, never fatal.
func NewCatalog(cfg Config, env map[string]string) *Catalog {
	minLen := cfg.Settings.MinimumSecretLength
	if minLen <= 0 {
		minLen = DefaultMinimumSecretLength
	}
	format := cfg.Settings.MaskFormat
	if format == "" {
		format = DefaultMaskFormat
	}

	c := &Catalog{
		literals:   make(map[string]string),
		maskFormat: format,
		logMasked:  cfg.Settings.LogMaskedSecrets,
	}

	// Explicitly named variables are always literals, regardless of length.
	for _, name := range cfg.EnvironmentVariables {
		if value := env[name]; value != "" {
			c.literals[name] = value
		}
	}

	if cfg.AutoDetection.Enabled {
		for name, value := range env {
			if _, ok := c.literals[name]; ok {
				continue
			}
			if len(value) < minLen {
				continue
			}
			if matchesAny(cfg.AutoDetection.ExcludePatterns, name) {
				continue
			}
			if matchesAny(cfg.AutoDetection.IncludePatterns, name) {
				c.literals[name] = value
			}
		}
	}

	for _, name := range splitLegacyList(env[LegacyMaskVar]) {
		if value := env[name]; value != "" {
			c.literals[name] = value
		}
	}

	for _, p := range cfg.Patterns {
		expr := p.Pattern
		if !cfg.Settings.CaseSensitivePatterns {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			log.Warn().Err(err).Str("pattern", p.Name).Msg("secret_pattern_invalid_skipped")
			continue
		}
		c.patterns = append(c.patterns, namedPattern{re: re, name: p.Name})
	}

	log.Debug().
		Int("literals", len(c.literals)).
		Int("patterns", len(c.patterns)).
		Msg("secret_catalog_built")
	return c
}

// EnvSnapshot converts os.Environ-style "NAME=value" pairs into a map.
func EnvSnapshot(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if i := strings.IndexByte(kv, '='); i > 0 {
			env[kv[:i]] = kv[i+1:]
		}
	}
	return env
}

// Literals returns the number of literal secrets in the catalog.
func (c *Catalog) Literals() int { return len(c.literals) }

// Patterns returns the number of compiled patterns in the catalog.
func (c *Catalog) Patterns() int { return len(c.patterns) }

// Mask redacts every known secret from text. Literals are applied longest
// value first so a shorter secret that is a substring of a longer one never
// pre-empts the more specific match; patterns run afterwards against the
// already-literal-masked text. Total: never fails on arbitrary input.
func (c *Catalog) Mask(ctx context.Context, text string) string {
	if text == "" {
		return text
	}
	_, span := tracer.Start(ctx, "masker.mask")
	defer span.End()

	type literal struct {
		name  string
		value string
	}
	ordered := make([]literal, 0, len(c.literals))
	for name, value := range c.literals {
		ordered = append(ordered, literal{name: name, value: value})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i].value) != len(ordered[j].value) {
			return len(ordered[i].value) > len(ordered[j].value)
		}
		return ordered[i].name < ordered[j].name
	})

	for _, l := range ordered {
		if l.value == "" || !strings.Contains(text, l.value) {
			continue
		}
		text = strings.ReplaceAll(text, l.value, c.maskFor(l.name))
		if c.logMasked {
			log.Info().Str("secret", l.name).Msg("secret_masked")
		}
	}

	for _, p := range c.patterns {
		if p.re.MatchString(text) {
			text = p.re.ReplaceAllString(text, c.maskFor(p.name))
			if c.logMasked {
				log.Info().Str("pattern", p.name).Msg("secret_pattern_masked")
			}
		}
	}

	return text
}

func (c *Catalog) maskFor(name string) string {
	return strings.ReplaceAll(c.maskFormat, "{name}", strings.ToUpper(name))
}

func matchesAny(globs []string, name string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, name); err == nil && ok {
			return true
		}
	}
	return false
}

func splitLegacyList(raw string) []string {
	if raw == "" {
		return nil
	}
	var names []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}
