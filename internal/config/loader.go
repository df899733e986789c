package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies COINFLIP_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COINFLIP_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Game ──
	setStr(&cfg.Game.ID, "COINFLIP_GAME_ID")
	setInt64(&cfg.Game.MinimumStake, "COINFLIP_GAME_MINIMUM_STAKE")
	setStr(&cfg.Game.HouseAddress, "COINFLIP_GAME_HOUSE_ADDRESS")
	setBool(&cfg.Game.UseRedisStakePolicy, "COINFLIP_GAME_USE_REDIS_STAKE_POLICY")

	// ── Operator ──
	setStr(&cfg.Operator.PrivateKey, "COINFLIP_OPERATOR_PRIVATE_KEY")
	setStr(&cfg.Operator.EncryptedKeyPath, "COINFLIP_OPERATOR_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Operator.KeyPassword, "COINFLIP_OPERATOR_KEY_PASSWORD")
	setBool(&cfg.Operator.RunFulfiller, "COINFLIP_OPERATOR_RUN_FULFILLER")
	setDuration(&cfg.Operator.FulfillInterval, "COINFLIP_OPERATOR_FULFILL_INTERVAL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "COINFLIP_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "COINFLIP_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "COINFLIP_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "COINFLIP_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "COINFLIP_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "COINFLIP_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "COINFLIP_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "COINFLIP_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "COINFLIP_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "COINFLIP_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "COINFLIP_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COINFLIP_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COINFLIP_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "COINFLIP_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "COINFLIP_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "COINFLIP_REDIS_TLS_ENABLED")

	// ── Kafka ──
	setStr(&cfg.Kafka.Brokers, "COINFLIP_KAFKA_BROKERS")
	setStr(&cfg.Kafka.Topic, "COINFLIP_KAFKA_TOPIC")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "COINFLIP_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "COINFLIP_S3_REGION")
	setStr(&cfg.S3.Bucket, "COINFLIP_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "COINFLIP_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "COINFLIP_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "COINFLIP_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "COINFLIP_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "COINFLIP_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Prefix, "COINFLIP_ARCHIVE_PREFIX")
	setDuration(&cfg.Archive.Interval, "COINFLIP_ARCHIVE_INTERVAL")

	// ── Server ──
	setInt(&cfg.Server.Port, "COINFLIP_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "COINFLIP_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "COINFLIP_SERVER_API_KEY")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "COINFLIP_METRICS_ENABLED")
	setInt(&cfg.Metrics.Port, "COINFLIP_METRICS_PORT")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "COINFLIP_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
