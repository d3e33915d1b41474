package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dativo-io/warden/internal/config"
	"github.com/dativo-io/warden/internal/policy"
	"github.com/dativo-io/warden/internal/ratelimit"
	"github.com/dativo-io/warden/internal/server"
)

var (
	servePort   int
	serveHTTPRL int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gate as a local HTTP service",
	Long: `Exposes the gate pipeline over HTTP for orchestrators that prefer a
long-lived process over per-decision CLI invocations. The endpoint accepts
already-fetched entities; warden still performs no GitHub I/O. A background
job compacts the shared rate-limit store hourly.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default: WARDEN_LISTEN_PORT or 8377)")
	serveCmd.Flags().IntVar(&serveHTTPRL, "http-requests-per-min", 300, "Per-remote request budget for the HTTP surface (0 = unlimited)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := operatorConfig()
	if servePort != 0 {
		cfg.ListenPort = servePort
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = config.DefaultListenPort
	}

	g, err := buildGate(cfg)
	if err != nil {
		return err
	}
	defer g.close()

	writePath, err := policy.NewWritePathEngine(ctx)
	if err != nil {
		return fmt.Errorf("compiling write-path policy: %w", err)
	}

	store, err := ratelimit.NewFileStore(cfg.RateLimitStorePath())
	if err != nil {
		return err
	}
	janitor, err := server.NewJanitor(ratelimit.NewLimiter(store,
		g.doc.Security.RateLimitWindowMinutes, g.doc.Security.RateLimitMaxRequests))
	if err != nil {
		return fmt.Errorf("scheduling store compaction: %w", err)
	}
	janitor.Start()
	defer janitor.Stop()

	srv := server.New(g.engine, g.catalog, writePath, serveHTTPRL)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ListenPort),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.ListenPort).Msg("warden_serving")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	log.Info().Msg("warden_stopped")
	return nil
}
