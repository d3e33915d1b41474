// Package cmd implements the warden CLI.
package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dativo-io/warden/internal/config"
	"github.com/dativo-io/warden/internal/otel"
)

var (
	// otelShutdown holds the OTel shutdown function, called from Execute()
	otelShutdown func(context.Context) error

	// Version info injected via ldflags at build time
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	// Global flags
	cfgPath   string
	verbose   bool
	logLevel  string
	logFormat string
	otelFlag  bool
)

// resolvedVersion returns Version unless it is "dev" and Go build info
// carries a real module version (e.g. from go install ...@v0.3.1).
func resolvedVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Gatekeeper for autonomous agent actions on GitHub",
	Long: `Warden decides whether an AI-agent action on a GitHub issue or PR may
proceed, which agent performs it, and what of the resulting output is safe
to publish:

- [Action][Agent] trigger extraction with authoritative-comment scanning
- User and repository allow-lists with distinct denial reasons
- Cross-process sliding-window rate limits (file-locked, CI-job safe)
- Secret masking (literal + pattern) before anything leaves the process
- Write-path restrictions for otherwise-authorized agents`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		otelEnabled := otelFlag || verbose || os.Getenv("WARDEN_OTEL_ENABLED") == "true"
		shutdown, err := otel.Setup("dativo-warden", resolvedVersion(), otelEnabled)
		if err != nil {
			return fmt.Errorf("initializing OpenTelemetry: %w", err)
		}
		otelShutdown = shutdown
		return nil
	},
}

func setupLogging() {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Structured logs go to stderr so stdout stays clean for piping
	// (e.g. warden check ... | jq).
	if logFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().
			Timestamp().
			Logger()
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to warden.config.yaml (default: WARDEN_CONFIG_PATH or ./warden.config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging and tracing")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console, json)")
	rootCmd.PersistentFlags().BoolVar(&otelFlag, "otel", false, "Enable OpenTelemetry tracing")
}

// operatorConfig resolves the operator config, honoring the --config flag.
func operatorConfig() *config.Config {
	cfg := config.Load()
	if cfgPath != "" {
		cfg.ConfigPath = cfgPath
	}
	return cfg
}

// Execute runs the root command and flushes telemetry on exit.
func Execute() {
	err := rootCmd.Execute()

	if otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = otelShutdown(ctx)
		cancel()
	}

	if err != nil {
		os.Exit(1)
	}
}
