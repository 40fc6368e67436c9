// Command sdh-server serves the SDH provisioning API over gRPC and exposes
// Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/sdh-provisioner/internal/config"
	"github.com/signalsfoundry/sdh-provisioner/internal/inventory"
	"github.com/signalsfoundry/sdh-provisioner/internal/logging"
	"github.com/signalsfoundry/sdh-provisioner/internal/nbi"
	"github.com/signalsfoundry/sdh-provisioner/internal/observability"
	"github.com/signalsfoundry/sdh-provisioner/internal/sdh"
	"github.com/signalsfoundry/sdh-provisioner/internal/store"
	"github.com/signalsfoundry/sdh-provisioner/kb"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logging.New(cfg.Log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.Server.GRPCAddr), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "sdh-server failed", logging.Err(err))
		os.Exit(1)
	}
}

// loadConfig reads -config (or SDH_CONFIG), applies the environment, then
// the flags that were set explicitly, and validates the result.
func loadConfig(args []string) (config.Config, error) {
	fs := flag.NewFlagSet("sdh-server", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("SDH_CONFIG"), "path to a YAML configuration file")
	grpcAddr := fs.String("grpc-addr", "", "TCP address the gRPC server listens on")
	metricsAddr := fs.String("metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables it")
	storePath := fs.String("store", "", "SQLite file persisting the inventory")
	seedFile := fs.String("seed", "", "YAML file with equipment, ports, services and transport links to create at startup")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return config.Config{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "grpc-addr":
			cfg.Server.GRPCAddr = *grpcAddr
		case "metrics-addr":
			cfg.Server.MetricsAddr = *metricsAddr
		case "store":
			cfg.Store.Path = *storePath
		case "seed":
			cfg.Inventory.SeedFile = *seedFile
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// run serves on lis until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	collector, err := observability.NewCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	provisioning, err := observability.NewProvisioningCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	svc, closeStore, err := buildService(ctx, cfg, log, collector, provisioning)
	if err != nil {
		return err
	}
	defer closeStore()

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			nbi.RequestIDUnaryServerInterceptor(log),
			nbi.TracingUnaryServerInterceptor(),
			collector.UnaryServerInterceptor(),
		),
	)
	nbi.RegisterSdhServiceServer(server, nbi.NewServer(svc, log))

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		metricsSrv = serveMetrics(cfg.Server.MetricsAddr, collector, log)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(lis)
	}()
	log.Info(ctx, "starting SDH gRPC server", logging.String("addr", lis.Addr().String()))

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down SDH server")
		stopGracefully(server, cfg.Server.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr = fmt.Errorf("grpc server: %w", err)
		}
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return serveErr
}

// buildService wires the inventory to its journal and metrics, restores
// what was persisted and applies the seed file.
func buildService(ctx context.Context, cfg config.Config, log logging.Logger,
	collector *observability.Collector, provisioning *observability.ProvisioningCollector) (*sdh.Service, func(), error) {
	opts := []inventory.Option{inventory.WithMetricsRecorder(collector)}
	closeStore := func() {}

	var db *store.Store
	if cfg.Store.Path != "" {
		var err error
		db, err = store.Open(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		closeStore = func() {
			if err := db.Close(); err != nil {
				log.Warn(context.Background(), "closing inventory store", logging.Err(err))
			}
		}
		opts = append(opts, inventory.WithJournal(db))
	}

	state := inventory.NewState(kb.NewSDHKnowledgeBase(), log, opts...)
	if db != nil {
		n, err := db.Restore(ctx, state)
		if err != nil {
			closeStore()
			return nil, nil, err
		}
		log.Info(ctx, "inventory restored", logging.String("path", cfg.Store.Path), logging.Int("objects", n))
	}

	svc := sdh.NewService(state, log,
		sdh.WithMetricsRecorder(provisioning),
		sdh.WithMaxRouteHops(cfg.Inventory.MaxRouteHops),
	)

	if cfg.Inventory.SeedFile != "" {
		seed, err := inventory.LoadSeedFile(cfg.Inventory.SeedFile)
		if err == nil {
			_, err = state.ApplySeed(ctx, seed)
		}
		if err == nil {
			var links int
			links, err = svc.SeedTransportLinks(ctx, seed.TransportLinks)
			log.Info(ctx, "seed transport links created", logging.Int("count", links))
		}
		if err != nil {
			closeStore()
			return nil, nil, fmt.Errorf("apply seed: %w", err)
		}
	}

	c := state.Counts()
	collector.SetInventoryCounts(c.TransportLinks, c.ContainerLinks, c.TributaryLinks, c.Services)
	return svc, closeStore, nil
}

func stopGracefully(server *grpc.Server, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()
	if timeout <= 0 {
		<-done
		return
	}
	select {
	case <-done:
	case <-time.After(timeout):
		server.Stop()
	}
}

func serveMetrics(addr string, collector *observability.Collector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
