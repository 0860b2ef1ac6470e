package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"acr/internal/runtime"
	"acr/internal/shared/logging"
	"acr/internal/telemetry"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the coordination runtime and block until terminated",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	rc, err := loadRuntimeConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewSlog(parseLogLevel(flagLogLevel))

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	tracerProvider, err := telemetry.NewTracerProvider(cmd.Context(), flagTraceAddr, rc.NodeID)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	rtCfg := runtime.FromRuntimeConfig(rc)
	rtCfg.Logger = logger
	rtCfg.Metrics = metrics
	rt := runtime.New(rtCfg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registerer, promhttp.HandlerOpts{}))
	httpServer := &http.Server{Addr: flagMetricsAddr, Handler: mux}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	fmt.Println(statusLine(fmt.Sprintf("acr serving node=%s metrics=%s", rc.NodeID, flagMetricsAddr)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		fmt.Println(warnLine(fmt.Sprintf("received %s, shutting down", sig)))
	case err := <-serverErrCh:
		if err != nil {
			fmt.Println(errorLine(fmt.Sprintf("metrics server error: %v", err)))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = tracerProvider.Shutdown(shutdownCtx)
	rt.Shutdown()

	fmt.Println(actionLine("shutdown complete"))
	return nil
}
