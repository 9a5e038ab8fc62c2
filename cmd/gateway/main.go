package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const serviceName = "storefront-gateway"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(serviceName, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("failed to open state store")
	}
	defer closeStore()

	m := metrics.New()

	var publisher events.Publisher = events.Nop
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
			Buffer:  256,
		}, m, log)
		defer kp.Close()
		publisher = kp
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing events to kafka")
	}

	client := api.NewClient(api.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.APITimeout,
		UserAgent: serviceName,
	}, log)

	checkoutCfg := checkout.DefaultConfig()
	checkoutCfg.TaxRate = cfg.TaxRate
	checkoutCfg.RedirectGateway = cfg.RedirectGateway
	checkoutCfg.CallbackURL = cfg.CheckoutCallbackURL()

	registry := gateway.NewRegistry(store, client, m, publisher, gateway.RegistryConfig{
		Checkout: checkoutCfg,
		IdleTTL:  cfg.VisitorIdle,
	}, log)
	health := gateway.NewHealth(client, 15*time.Second, log)
	if cfg.SessionKey == "" {
		log.Warn().Msg("SESSION_KEY not set, visitor cookies will not survive a restart")
	}
	cookies := gateway.NewCookieStore([]byte(cfg.SessionKey), cfg.CookieSecure, cfg.StateTTL)

	router := gateway.NewRouter(registry, cookies, m, health, gateway.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.GRPCPort).Msg("failed to listen")
	}
	grpcServer := gateway.NewGRPCServer(health)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		registry.Run(gctx)
		return nil
	})
	g.Go(func() error {
		health.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Str("api", cfg.APIBaseURL).Msg("storefront gateway starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info().Str("port", cfg.GRPCPort).Msg("grpc health listening")
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-gctx.Done():
	}

	log.Info().Msg("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	grpcServer.GracefulStop()
	cancel()

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server exited")
}

// openStore picks the visitor state backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storage.Store, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageBolt:
		b, err := storage.OpenBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("path", cfg.BoltPath).Msg("visitor state in bolt")
		return b, closer(b, log), nil
	case config.StorageRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		r := storage.NewRedisStore(rdb, cfg.StateTTL)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("visitor state in redis")
		return r, closer(rdb, log), nil
	default:
		log.Info().Msg("visitor state in memory")
		return storage.NewMemoryStore(), func() {}, nil
	}
}

func closer(c io.Closer, log zerolog.Logger) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close state store")
		}
	}
}
