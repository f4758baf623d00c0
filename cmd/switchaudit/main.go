package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nmslite/switchaudit/internal/api"
	"github.com/nmslite/switchaudit/internal/auth"
	"github.com/nmslite/switchaudit/internal/cli"
	"github.com/nmslite/switchaudit/internal/config"
	"github.com/nmslite/switchaudit/internal/logger"
	"github.com/nmslite/switchaudit/internal/runner"
	"github.com/nmslite/switchaudit/internal/session"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := cli.Parse(args)
	if err != nil {
		if cli.IsHelp(err) {
			return 0
		}
		if !cli.Printed(err) {
			fmt.Fprintf(stderr, "%s: %v\n", cli.Name, err)
		}
		return 1
	}

	if opts.Version {
		fmt.Fprintf(stdout, "%s, version: %s\n", cli.Name, version)
		return 0
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	applyOptions(cfg, opts)

	log := logger.New(cfg.Logging, stderr)
	slog.SetDefault(log)

	// Inputs are checked before any device is contacted.
	in, err := runner.LoadInputs(cfg)
	if err != nil {
		log.Error("Invalid audit inputs", slog.String("error", err.Error()))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting switchaudit",
		slog.String("version", version),
		slog.Int("devices", len(in.Devices)),
		slog.Int("workers", cfg.Audit.Workers),
		slog.String("output_dir", cfg.Audit.OutputDir),
	)

	dialer := session.NewSSHDialer(cfg.Audit.GetConnectTimeout(), log)
	svc := runner.New(cfg, dialer, log)

	result, err := svc.Run(ctx)
	if err != nil {
		log.Error("Audit run failed", slog.String("error", err.Error()))
		return 1
	}
	fmt.Fprintf(stdout, "Audited %d devices: %d succeeded, %d failed. Report: %s\n",
		result.Summary.Total, result.Summary.Succeeded, result.Summary.Failed, result.ReportPath)

	if !cfg.API.Enabled {
		return 0
	}
	if err := serve(ctx, cfg, svc, log); err != nil {
		log.Error("API server failed", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

func applyOptions(cfg *config.Config, opts *cli.Option) {
	if opts.Workers != nil {
		cfg.Audit.Workers = *opts.Workers
	}
	if opts.OutputDir != "" {
		cfg.Audit.OutputDir = opts.OutputDir
	}
	if opts.Debug {
		cfg.Logging.Level = "debug"
	}
	if opts.Serve {
		cfg.API.Enabled = true
	}
}

// serve runs the report API until ctx is cancelled, then waits for a triggered run to end.
func serve(ctx context.Context, cfg *config.Config, svc *runner.Service, log *slog.Logger) error {
	var authService *auth.Service
	if cfg.API.JWTSecret != "" {
		var err error
		authService, err = auth.NewService(
			cfg.API.JWTSecret,
			cfg.API.AdminUsername,
			cfg.API.AdminPassword,
			cfg.API.GetJWTExpiry(),
		)
		if err != nil {
			return fmt.Errorf("failed to initialize auth service: %w", err)
		}
	} else {
		log.Warn("API authentication disabled: api.jwt_secret is not set")
	}

	srv := &http.Server{
		Addr:         cfg.API.Addr(),
		Handler:      api.NewRouter(ctx, svc, authService, log),
		ReadTimeout:  cfg.API.GetReadTimeout(),
		WriteTimeout: cfg.API.GetWriteTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", slog.String("error", err.Error()))
	}
	svc.Wait()

	log.Info("Server stopped gracefully")
	return nil
}
