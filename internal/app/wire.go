package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alanyoungcy/coinflip/internal/archive"
	s3blob "github.com/alanyoungcy/coinflip/internal/blob/s3"
	cacheredis "github.com/alanyoungcy/coinflip/internal/cache/redis"
	"github.com/alanyoungcy/coinflip/internal/config"
	"github.com/alanyoungcy/coinflip/internal/crypto"
	"github.com/alanyoungcy/coinflip/internal/domain"
	"github.com/alanyoungcy/coinflip/internal/engine"
	"github.com/alanyoungcy/coinflip/internal/events"
	"github.com/alanyoungcy/coinflip/internal/metrics"
	"github.com/alanyoungcy/coinflip/internal/policy"
	"github.com/alanyoungcy/coinflip/internal/randomness"
	"github.com/alanyoungcy/coinflip/internal/store/postgres"
)

// Dependencies bundles everything the application lifecycle needs to run.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Engine *engine.Engine

	// Stores
	Ledger          domain.BetLedger
	Treasury        domain.Treasury
	SettlementStore domain.SettlementStore
	AuditStore      domain.AuditStore

	// Randomness
	Beacon    domain.RandomnessSource
	Fulfiller *randomness.Fulfiller
	Attestor  *crypto.Attestor

	// Redis
	RedisClient *cacheredis.Client
	LockManager domain.LockManager
	Bus         *cacheredis.Bus
	RedisPolicy *cacheredis.StakePolicy

	// Postgres
	PGClient *postgres.Client

	// Observability
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Event sinks needing explicit shutdown
	KafkaSink *events.KafkaSink

	// Archive
	Archiver *archive.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.PGClient = pgClient

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	house := common.HexToAddress(cfg.Game.HouseAddress)

	treasury := postgres.NewTreasury(pool, house)
	if err := treasury.EnsureHouseAccount(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: ensure house account: %w", err)
	}
	deps.Treasury = treasury
	deps.Ledger = postgres.NewLedger(pool)
	deps.SettlementStore = postgres.NewSettlementStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := cacheredis.New(ctx, cacheredis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.RedisClient = redisClient
	deps.LockManager = cacheredis.NewLockManager(redisClient)
	deps.Bus = cacheredis.NewBus(redisClient)
	deps.RedisPolicy = cacheredis.NewStakePolicy(redisClient, cfg.Game.MinimumStake)

	// --- Randomness operator ---
	operatorKey, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Operator.PrivateKey,
		EncryptedKeyPath: cfg.Operator.EncryptedKeyPath,
		KeyPassword:      cfg.Operator.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: operator key: %w", err)
	}
	attestor, err := crypto.NewAttestor(operatorKey)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: attestor: %w", err)
	}
	deps.Attestor = attestor
	deps.Beacon = randomness.NewBeacon(redisClient, attestor.Address())
	if cfg.Operator.RunFulfiller {
		deps.Fulfiller = randomness.NewFulfiller(redisClient, attestor, cfg.Operator.FulfillInterval.Duration, logger)
	}

	// --- Stake policy ---
	var stakePolicy domain.StakePolicy = policy.Static{Min: cfg.Game.MinimumStake}
	policyName := "static"
	if cfg.Game.UseRedisStakePolicy {
		stakePolicy = deps.RedisPolicy
		policyName = "redis"
	}

	// --- Metrics ---
	deps.Registry = prometheus.NewRegistry()
	deps.Metrics = metrics.New(deps.Registry)

	// --- Event emitter ---
	sinks := []events.Sink{
		events.NewBusSink(deps.Bus),
		events.NewAuditSink(deps.AuditStore),
		deps.Metrics,
	}
	if cfg.Kafka.Brokers != "" {
		kafkaSink := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		closers = append(closers, func() { _ = kafkaSink.Close() })
		deps.KafkaSink = kafkaSink
		sinks = append(sinks, kafkaSink)
	}
	emitter := events.NewFanout(logger, sinks...)

	// --- Engine ---
	deps.Engine = engine.New(
		engine.Config{GameID: cfg.Game.ID},
		deps.Ledger,
		deps.Treasury,
		deps.Beacon,
		stakePolicy,
		emitter,
		deps.SettlementStore,
		logger,
	)

	logger.InfoContext(ctx, "dependencies wired",
		slog.String("game_id", cfg.Game.ID),
		slog.String("house", house.Hex()),
		slog.String("operator", attestor.Address().Hex()),
		slog.String("stake_policy", policyName),
	)

	// --- Settlement archive ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = archive.New(
			deps.SettlementStore,
			s3blob.NewWriter(s3Client),
			cfg.Archive.Prefix,
			cfg.Archive.Interval.Duration,
			logger,
		)
	}

	return deps, cleanup, nil
}
