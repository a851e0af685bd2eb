package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/davidleathers/dutch-auction-exchange/internal/api/rest"
	"github.com/davidleathers/dutch-auction-exchange/internal/api/websocket"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/auction"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/ledger"
	"github.com/davidleathers/dutch-auction-exchange/internal/domain/values"
	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/cache"
	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/config"
	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/database"
	ledgerstore "github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/ledger"
	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/repository"
	"github.com/davidleathers/dutch-auction-exchange/internal/infrastructure/telemetry"
	"github.com/davidleathers/dutch-auction-exchange/internal/service/settlement"
)

const serviceName = "dax-api"

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		migrate    = flag.Bool("migrate", false, "Apply database migrations before serving")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := run(cfg, *migrate); err != nil {
		slog.Error("api exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// storage is the set of adapters selected by database.driver.
type storage struct {
	auctions auction.Repository
	fees     auction.FeeRepository
	ledger   ledger.Ledger
	ping     func(context.Context) error
	close    func()
}

type seeder interface {
	Seed(ctx context.Context, seed map[string]string) error
}

func run(cfg *config.Config, migrate bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := telemetry.SetupLogger(cfg.LogLevel)
	zapLogger, err := telemetry.NewZapLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return fmt.Errorf("create zap logger: %w", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	provider, err := telemetry.InitializeOpenTelemetry(ctx, telemetry.FromConfig(serviceName, cfg))
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	store, err := openStorage(ctx, cfg, migrate, zapLogger)
	if err != nil {
		return err
	}
	defer store.close()

	if s, ok := store.ledger.(seeder); ok && len(cfg.Ledger.Seed) > 0 {
		if err := s.Seed(ctx, cfg.Ledger.Seed); err != nil {
			return fmt.Errorf("seed ledger: %w", err)
		}
		logger.Info("ledger seeded", slog.Int("accounts", len(cfg.Ledger.Seed)))
	}

	health := rest.NewHealthService(rest.HealthConfig{ServiceName: serviceName, ServiceVersion: cfg.Version})
	if store.ping != nil {
		health.RegisterChecker(rest.NewPingChecker("database", store.ping))
	}

	var (
		locker  cache.Locker = cache.NewLocalLocker()
		limiter              = cache.NewLocalRateLimiter()
	)
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(&cfg.Redis, zapLogger)
		if err != nil {
			return err
		}
		defer client.Close()
		locker = cache.NewRedisLocker(client, zapLogger, cfg.Redis.LockTTL, cfg.Redis.LockWait)
		limiter = cache.NewRedisRateLimiter(client, zapLogger)
		health.RegisterChecker(rest.NewPingChecker("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
		registerRedisMetrics(client)
	}

	hub := websocket.NewEventHub(zapLogger.Named("events"))
	go hub.Run(ctx)
	defer hub.Stop()
	registerHubMetrics(hub)

	admin, err := values.NewPrincipal(cfg.Auction.Admin)
	if err != nil {
		return fmt.Errorf("auction.admin: %w", err)
	}

	engine, err := settlement.NewEngine(ctx, settlement.Dependencies{
		Auctions:         store.auctions,
		Fees:             store.fees,
		Ledger:           store.ledger,
		Admin:            admin,
		InitialFeeBps:    cfg.Auction.InitialFeeBps,
		CurrencyDecimals: cfg.Auction.CurrencyDecimals,
		Locker:           locker,
		Publisher:        settlement.MultiPublisher{settlement.NewLogPublisher(logger), hub},
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("create settlement engine: %w", err)
	}
	registerBuildInfo(cfg)

	handler, err := rest.NewRouter(rest.Config{
		Version: "v1",
		Service: engine,
		Logger:  logger,
		Auth: rest.AuthConfig{
			JWTSecret:   []byte(cfg.Security.JWTSecret),
			Issuer:      cfg.Security.Issuer,
			TokenExpiry: cfg.Security.TokenExpiry,
		},
		RateLimiter: limiter,
		RateLimit: rest.RateLimitConfig{
			RequestsPerSecond: cfg.Security.RateLimitRPS,
			Burst:             cfg.Security.RateLimitBurst,
		},
		Events:           websocket.NewHandler(hub, nil),
		Health:           health,
		ValidateContract: !cfg.IsProduction(),
	})
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	server := rest.NewServer(rest.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler, logger)

	logger.Info("starting dutch auction exchange",
		slog.String("version", cfg.Version),
		slog.String("environment", cfg.Environment),
		slog.String("driver", cfg.Database.Driver),
		slog.Bool("redis", cfg.Redis.Enabled))

	return server.Run(ctx)
}

func openStorage(ctx context.Context, cfg *config.Config, migrate bool, logger *zap.Logger) (*storage, error) {
	if cfg.Database.Driver != config.DriverPostgres {
		return &storage{
			auctions: repository.NewMemoryAuctionRepository(),
			fees:     repository.NewMemoryFeeRepository(),
			ledger:   ledgerstore.NewMemoryLedger(logger.Named("ledger")),
			close:    func() {},
		}, nil
	}

	if migrate {
		m, err := database.NewMigrator(cfg.Database.URL, logger.Named("migrate"))
		if err != nil {
			return nil, err
		}
		err = m.Up()
		if cerr := m.Close(); cerr != nil {
			logger.Warn("closing migrator", zap.Error(cerr))
		}
		if err != nil {
			return nil, err
		}
	}

	conn, err := database.NewConnectionPool(ctx, &cfg.Database, logger.Named("database"))
	if err != nil {
		return nil, err
	}
	pool := conn.Pool()

	return &storage{
		auctions: repository.NewAuctionRepository(pool),
		fees:     repository.NewFeeRepository(pool),
		ledger:   ledgerstore.NewPostgresLedger(pool, logger.Named("ledger")),
		ping:     conn.Health,
		close:    conn.Close,
	}, nil
}
