package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/storefront/gateway"
	"github.com/example/storefront/pkg/audit"
	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/grpc"
	"github.com/example/storefront/pkg/logger"
	"github.com/example/storefront/pkg/repository"
	"github.com/example/storefront/pkg/service"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", envOr("STOREFRONT_CONFIG", "config/config.yaml"), "path to the config file")
	flag.Parse()

	// .env is optional; real environment variables win
	_ = godotenv.Load()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting storefront",
		zap.String("name", cfg.Server.Name),
		zap.String("address", cfg.Server.Addr()),
		zap.String("storage", cfg.Storage.Driver))

	ctx := context.Background()

	store, closeStore, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer closeStore()

	recorder, err := audit.NewRecorder(store, cfg.Server.Name, log.Named("audit"))
	if err != nil {
		log.Fatal("Failed to start audit recorder", zap.Error(err))
	}
	defer recorder.Stop()

	opts := service.Options{
		Audit:      recorder,
		BcryptCost: cfg.Auth.BcryptCost,
	}

	// Redis backs the read cache and token revocation. Without it the
	// service reads straight from storage and logout is client-side only.
	var redisRepo *repository.RedisRepository
	if cfg.Redis.Enabled {
		redisRepo = repository.NewRedisRepository(&cfg.Redis)
		if err := redisRepo.Ping(ctx); err != nil {
			log.Warn("Redis connection failed, continuing without cache", zap.Error(err))
			_ = redisRepo.Close()
			redisRepo = nil
		} else {
			log.Info("Redis connected successfully")
			defer redisRepo.Close()
			opts.Cache = redisRepo
			opts.Revocations = auth.NewRedisRevocationList(redisRepo.Client())
		}
	}

	svc := service.New(store, auth.NewTokenIssuer(cfg.Auth), log.Named("service"), opts)

	healthCheck := func(ctx context.Context) error {
		if err := store.Ping(ctx); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		if redisRepo != nil {
			if err := redisRepo.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}

	gw := gateway.NewGateway(cfg, svc, healthCheck, log.Named("gateway"))

	errCh := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil {
			errCh <- err
		}
	}()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	var healthServer *grpc.HealthServer
	if cfg.GRPC.Enabled {
		healthServer = grpc.NewHealthServer(&cfg.GRPC, cfg.Server.Name, log.Named("grpc"))
		go healthServer.Watch(watchCtx, 10*time.Second, healthCheck)
		go func() {
			if err := healthServer.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	// Register in etcd so shoppers can resolve the API
	var sd *discovery.ServiceDiscovery
	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: advertiseHost(cfg.Server.Host),
		Port: cfg.Server.Port,
	}
	if cfg.Etcd.Enabled {
		sd, err = discovery.NewServiceDiscovery(&cfg.Etcd)
		if err != nil {
			log.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
		} else if err := sd.Register(ctx, instance); err != nil {
			log.Warn("Failed to register service", zap.Error(err))
		} else {
			log.Info("Service registered in etcd", zap.String("address", instance.Address()))
		}
	}

	log.Info("Storefront started successfully")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Received shutdown signal")
	case err := <-errCh:
		log.Error("Server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if sd != nil {
		if err := sd.Deregister(shutdownCtx, instance); err != nil {
			log.Warn("Failed to deregister service", zap.Error(err))
		}
		sd.Close()
	}

	stopWatch()
	if healthServer != nil {
		healthServer.Stop()
	}

	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	log.Info("Storefront stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// advertiseHost swaps a wildcard bind address for the machine's hostname.
func advertiseHost(host string) string {
	if host != "" && host != "0.0.0.0" && host != "::" {
		return host
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "localhost"
}
