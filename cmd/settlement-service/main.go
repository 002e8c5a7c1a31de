package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"auction-settlement-service/internal/adapters/broadcaster"
	"auction-settlement-service/internal/adapters/db"
	"auction-settlement-service/internal/adapters/health"
	"auction-settlement-service/internal/adapters/hedera"
	"auction-settlement-service/internal/adapters/redis"
	"auction-settlement-service/internal/adapters/scheduler"
	"auction-settlement-service/internal/adapters/telemetry"
	"auction-settlement-service/internal/app"
	"auction-settlement-service/internal/config"
	"auction-settlement-service/internal/domain/shared"
	"auction-settlement-service/internal/ports/outbound"
)

const serviceName = "auction-settlement-service"

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting Auction Settlement Service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, serviceName, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up tracing")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error().Err(err).Msg("Failed to flush traces")
		}
	}()

	// Initialize database connection
	dbConn, err := db.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	if err := dbConn.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}
	log.Info().Str("driver", cfg.Database.DriverName()).Msg("Database connection established")

	repos := db.NewRepositoryFactory(dbConn).GetAllRepositories()

	checks := map[string]health.Check{"database": dbConn.Ping}

	// Redis carries the leader lease and the event feed
	var (
		events outbound.Broadcaster
		lock   outbound.LeaderLock
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(cfg)
		defer redisClient.Close()
		if err := redis.PingRedis(ctx, redisClient); err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		log.Info().Msg("Redis connection established")

		checks["redis"] = func(ctx context.Context) error { return redis.PingRedis(ctx, redisClient) }
		events = broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
			RedisClient: redisClient,
			Logger:      log.Logger,
		})
		if cfg.Settlement.LeaderLock {
			lock = redis.NewLeaseLock(redis.LeaseLockParams{
				RedisClient: redisClient,
				TTL:         cfg.Settlement.LockTTL,
				Logger:      log.Logger,
			})
		}
	}

	var (
		service            *app.SettlementService
		settlementSchedule *scheduler.CycleScheduler
	)

	ledger, err := hedera.NewLedger(hedera.LedgerParams{Config: cfg.Ledger, Logger: log.Logger})
	switch {
	case errors.Is(err, shared.ErrLedgerNotConfigured):
		log.Warn().Msg("Ledger operator not configured, settlement disabled")
	case err != nil:
		log.Fatal().Err(err).Msg("Failed to create ledger client")
	default:
		defer ledger.Close()

		service = newSettlementService(cfg, repos, ledger, events, lock)
		settlementSchedule = scheduler.NewCycleScheduler(scheduler.CycleSchedulerParams{
			Runner:   service,
			Interval: cfg.Settlement.Interval,
			Lock:     lock,
			Logger:   log.Logger,
		})
	}

	healthParams := health.ServerParams{
		Port:   cfg.Health.Port,
		Checks: checks,
		Logger: log.Logger,
	}
	if service != nil {
		healthParams.Reports = service
	}
	healthServer := health.NewServer(healthParams)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(healthServer.Start)

	if settlementSchedule != nil {
		settlementSchedule.Start()
		log.Info().Dur("interval", cfg.Settlement.Interval).Msg("Settlement scheduler started")
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Starting graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if settlementSchedule != nil {
			settlementSchedule.Stop(shutdownCtx)
		}
		return healthServer.Stop(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Service stopped with error")
	}
	log.Info().Msg("Graceful shutdown completed")
}

func newSettlementService(cfg *config.Config, repos db.Repositories, ledger outbound.Ledger, events outbound.Broadcaster, lock outbound.LeaderLock) *app.SettlementService {
	resolver := app.NewWalletResolver(app.WalletResolverParams{
		Identities: repos.Identities,
		Logger:     log.Logger,
	})

	return app.NewSettlementService(app.SettlementServiceParams{
		Scanner: app.NewScanner(app.ScannerParams{
			AuctionRepo: repos.Auctions,
			Logger:      log.Logger,
		}),
		Validator: app.NewValidator(app.ValidatorParams{
			BidRepo:        repos.Bids,
			AssetRepo:      repos.Assets,
			Resolver:       resolver,
			EnforceReserve: cfg.Settlement.EnforceReserve,
			Logger:         log.Logger,
		}),
		Executor: app.NewTransferExecutor(app.TransferExecutorParams{
			Ledger:      ledger,
			Funding:     app.OperatorFunded{},
			AuctionRepo: repos.Auctions,
			Logger:      log.Logger,
		}),
		Committer: app.NewStateCommitter(app.StateCommitterParams{
			Store:       repos.Settlement,
			AuctionRepo: repos.Auctions,
			Logger:      log.Logger,
		}),
		AuctionRepo: repos.Auctions,
		Ledger:      ledger,
		Broadcaster: events,
		Lock:        lock,
		Retry: app.RetryPolicy{
			MaxAttempts: cfg.Settlement.MaxAttempts,
			Backoff:     cfg.Settlement.RetryBackoff,
			MaxDelay:    cfg.Settlement.RetryMaxDelay,
		},
		ReconcileGrace: cfg.Settlement.ReconcileGrace,
		Logger:         log.Logger,
	})
}

func initLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		// Console format for development
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}
