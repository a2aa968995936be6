// Command tripmesh runs the travel-agent coordination plane: agent
// registry and discovery, budget negotiation, and composite task
// coordination behind one HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tripmesh/tripmesh"
	"github.com/tripmesh/tripmesh/api/handlers"
	"github.com/tripmesh/tripmesh/config"
	"github.com/tripmesh/tripmesh/coordination"
	"github.com/tripmesh/tripmesh/discovery"
	"github.com/tripmesh/tripmesh/internal/metrics"
	"github.com/tripmesh/tripmesh/internal/server"
	"github.com/tripmesh/tripmesh/internal/telemetry"
	"github.com/tripmesh/tripmesh/negotiation"
)

func main() {
	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command = args[0]
		args = args[1:]
	}

	switch command {
	case "serve":
		runServe(args)
	case "health":
		runHealth(args)
	case "version":
		fmt.Println("tripmesh", tripmesh.Version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (expected serve, health, or version)\n", command)
		os.Exit(2)
	}
}

func runServe(args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := flags.String("config", "", "path to the YAML configuration file")
	_ = flags.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting tripmesh",
		zap.String("version", tripmesh.Version),
		zap.String("addr", cfg.Server.Addr),
		zap.String("registry_store", cfg.Registry.Store),
	)

	providers, err := telemetry.Init(cfg.Telemetry, tripmesh.Version, logger)
	if err != nil {
		logger.Fatal("init telemetry", zap.Error(err))
	}

	ctx := context.Background()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Fatal("init registry store", zap.Error(err))
	}

	registry := discovery.NewRegistry(store, &discovery.RegistryConfig{
		StalenessThreshold: cfg.Registry.StalenessThreshold,
	}, logger)

	for _, seed := range cfg.Registry.Seeds {
		record := &discovery.AgentRecord{
			AgentID:  seed.AgentID,
			Name:     seed.Name,
			Endpoint: seed.Endpoint,
		}
		if err := registry.Register(ctx, record); err != nil {
			logger.Fatal("register seed agent",
				zap.String("agent_id", seed.AgentID), zap.Error(err))
		}
	}

	prober := discovery.NewHTTPProber(&discovery.ProberConfig{
		Timeout: cfg.Discovery.ProbeTimeout,
	}, logger)

	serviceConfig := discovery.DefaultServiceConfig()
	serviceConfig.MaxConcurrentProbes = cfg.Discovery.MaxConcurrentProbes
	serviceConfig.RefreshInterval = cfg.Discovery.RefreshInterval
	serviceConfig.ProbesPerSecond = cfg.Discovery.ProbesPerSecond
	service := discovery.NewService(registry, prober, serviceConfig, logger)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector("tripmesh", promRegistry, logger)

	service.Observer = collector

	negotiationEngine := negotiation.NewEngine(&negotiation.Policy{
		BlendFactor: cfg.Negotiation.BlendFactor,
		FloorRatio:  cfg.Negotiation.FloorRatio,
		MaxRounds:   cfg.Negotiation.MaxRounds,
	}, logger)

	coordinationEngine := coordination.NewEngine(service, &coordination.Config{
		DegradedConfidence: cfg.Coordination.DegradedConfidence,
		ProbabilityFloor:   cfg.Coordination.ProbabilityFloor,
	}, logger)

	health := handlers.NewHealthHandler(tripmesh.Version, logger)
	health.RegisterCheck(handlers.CheckFunc{
		CheckName: "registry",
		Fn: func(ctx context.Context) error {
			_, err := registry.List(ctx)
			return err
		},
	})

	router := handlers.NewRouter(handlers.RouterDeps{
		Discovery:    handlers.NewDiscoveryHandler(registry, service, logger),
		Negotiation:  handlers.NewNegotiationHandler(negotiationEngine, collector, logger),
		Coordination: handlers.NewCoordinationHandler(coordinationEngine, collector, logger),
		Health:       health,
		Collector:    collector,
		Gatherer:     promRegistry,
		Logger:       logger,
	})

	manager := server.NewManager(router, server.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, logger)

	if err := service.Start(ctx); err != nil {
		logger.Fatal("start discovery service", zap.Error(err))
	}
	if err := manager.Start(); err != nil {
		logger.Fatal("start HTTP server", zap.Error(err))
	}

	manager.WaitForShutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := service.Stop(shutdownCtx); err != nil {
		logger.Error("stop discovery service", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown telemetry", zap.Error(err))
	}
	if err := registry.Close(); err != nil {
		logger.Error("close registry", zap.Error(err))
	}
	logger.Info("tripmesh stopped")
}

// runHealth performs a one-shot liveness check against a running server,
// for container health probes.
func runHealth(args []string) {
	flags := flag.NewFlagSet("health", flag.ExitOnError)
	addr := flags.String("addr", "http://localhost:8080", "base URL of the server to check")
	timeout := flags.Duration("timeout", 5*time.Second, "request timeout")
	_ = flags.Parse(args)

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(*addr + "/health")
	if err != nil {
		fmt.Fprintln(os.Stderr, "health check failed:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(os.Stderr, "health check returned status", resp.StatusCode)
		os.Exit(1)
	}
	fmt.Println("ok")
}

func buildStore(ctx context.Context, cfg *config.Config) (discovery.Store, error) {
	if cfg.Registry.Store == "redis" {
		return discovery.NewRedisStore(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return discovery.NewMemoryStore(), nil
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	return zapConfig.Build()
}
