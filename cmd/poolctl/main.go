// Package main is the entrypoint for poolctl, a standalone process that
// loads a provider-pool configuration, starts the pool engine, and
// exposes its metrics and status over HTTP until it receives a
// shutdown signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/joao-brasil/providerpool/internal/config"
	"github.com/joao-brasil/providerpool/internal/pool"
	"github.com/joao-brasil/providerpool/pkg/rpcprovider"
)

var configPath = flag.String("config", "configs/pool.yaml", "Path to poolctl configuration file")

func main() {
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "poolctl").Logger()
	log.Info().Msg("starting poolctl")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	log.Info().Int("providers", len(cfg.Providers)).Str("pool", cfg.Server.PoolName).Msg("configuration loaded")

	registerer := prometheus.NewRegistry()
	p := pool.New(cfg.Pool,
		pool.WithName(cfg.Server.PoolName),
		pool.WithLogger(log),
		pool.WithRegisterer(registerer),
	)
	p.On(logEvent(log))

	for _, pc := range cfg.Providers {
		p.AddProvider(rpcprovider.Descriptor{ID: pc.ID, Endpoint: pc.Endpoint, Weight: pc.Weight})
	}

	for _, pc := range cfg.Providers {
		if pc.Warmup == 0 {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), config.DescriptorDefaultTimeout)
		created, err := p.Warmup(ctx, pc.ID, pc.Warmup)
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("provider_id", string(pc.ID)).Int("created", created).Msg("warmup ended early")
		} else {
			log.Info().Str("provider_id", string(pc.ID)).Int("created", created).Msg("warmup complete")
		}
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(registerer, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Int("port", cfg.Server.MetricsPort).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()

	statusMux := http.NewServeMux()
	statusMux.HandleFunc("/status", statusHandler(p))
	statusServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.StatusPort),
		Handler:      statusMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Int("port", cfg.Server.StatusPort).Msg("status server listening")
		if err := statusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("status server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := statusServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("status server shutdown error")
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("metrics server shutdown error")
	}
	if err := p.Drain(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("drain did not complete before deadline")
	}
	if err := p.Destroy(); err != nil {
		log.Warn().Err(err).Msg("pool destroy error")
	}

	log.Info().Msg("shutdown complete")
}

func logEvent(log zerolog.Logger) func(pool.Event) {
	return func(ev pool.Event) {
		log.Debug().Str("event", string(ev.Name)).Interface("data", ev.Data).Msg("pool event")
	}
}

func statusHandler(p *pool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := p.GetMetrics()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"total":%d,"active":%d,"busy":%d,"idle":%d,"utilization":%.2f,"requests_total":%d,"requests_failed":%d}`,
			m.TotalConnections, m.ActiveConnections, m.BusyConnections, m.IdleConnections,
			m.PoolUtilization, m.TotalRequests, m.FailedRequests)
	}
}
