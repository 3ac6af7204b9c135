package cmd

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/contextify/contextify/internal/adapter/inbound/rpc"
	"github.com/contextify/contextify/internal/adapter/outbound/gatewayclient"
	"github.com/contextify/contextify/internal/config"
	"github.com/contextify/contextify/internal/service"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the multi-upstream gateway host",
	RunE:  runGateway,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Core.LogLevel)

	client := gatewayclient.NewClient()
	svc := service.NewGatewayService(client, cfg.ToGatewayConfig(), logger)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(runCtx)

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
