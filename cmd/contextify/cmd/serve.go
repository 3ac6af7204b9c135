package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/contextify/contextify/internal/adapter/inbound/rpc"
	"github.com/contextify/contextify/internal/adapter/outbound/executor"
	"github.com/contextify/contextify/internal/config"
	"github.com/contextify/contextify/internal/domain/catalog"
	"github.com/contextify/contextify/internal/domain/policy"
	"github.com/contextify/contextify/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the in-process tool host",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Core.LogLevel)

	builder := catalog.NewBuilder(policy.NewResolver(), logger)

	var policySource catalog.PolicySource
	if cfg.Policy.PolicySourceFile != "" {
		policySource = config.NewFilePolicySource(cfg.Policy.PolicySourceFile)
	} else {
		policySource = staticPolicySource{doc: cfg.BootstrapPolicyDocument()}
	}

	var candidateSource catalog.CandidateSource
	if cfg.Policy.CandidateSourceFile != "" {
		candidateSource = config.NewFileCandidateSource(cfg.Policy.CandidateSourceFile)
	} else {
		candidateSource = staticCandidateSource{}
	}

	ctx := context.Background()
	doc, err := policySource.Current(ctx)
	if err != nil {
		return err
	}
	candidates, err := candidateSource.Candidates(ctx)
	if err != nil {
		return err
	}
	initial, warnings, err := builder.Build(time.Now(), doc, candidates)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Warn("catalog: build warning", "tool", w.ToolName, "message", w.Message)
	}

	buildFunc := catalog.NewBuildFunc(builder, policySource, candidateSource, time.Now)
	provider := catalog.NewProvider(buildFunc, initial, catalog.DefaultMinReloadInterval, logger)

	exec := executor.NewExecutor(cfg.Actions.BackendBaseURL)

	svc := service.NewInProcessService(provider, exec, cfg.ToInProcessConfig(), logger)

	handler := rpc.NewHandler(svc, cfg.Core.ApplicationName, logger,
		rpc.WithIdentityHeaders(cfg.Transport.TenantIDHeader, cfg.Transport.UserIDHeader),
		rpc.WithCorrelationIDInErrors(cfg.Transport.IncludeCorrelationIDInErrors),
	)

	mux := http.NewServeMux()
	handler.Routes(mux)
	if cfg.Core.EnableDebugEndpoints {
		mux.Handle("/contextify/metrics", promhttp.Handler())
	}

	return runHTTPServer(cfg.Core.HTTPAddr, mux, logger)
}

// staticPolicySource serves one fixed document, used when no
// policy_source_file is configured (spec.md §1 treats the policy
// source as an external collaborator; this is the no-op default).
type staticPolicySource struct{ doc policy.Document }

func (s staticPolicySource) Current(ctx context.Context) (policy.Document, error) {
	return s.doc, nil
}

// staticCandidateSource serves an empty candidate list, used when no
// candidate_source_file is configured.
type staticCandidateSource struct{}

func (staticCandidateSource) Candidates(ctx context.Context) ([]catalog.CandidateTool, error) {
	return nil, nil
}

// newLogger builds a slog.Logger at the configured level, writing JSON
// to stdout.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// runHTTPServer starts an http.Server on addr and blocks until an
// interrupt or termination signal triggers a graceful shutdown.
func runHTTPServer(addr string, mux *http.ServeMux, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("http: shutting down")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
