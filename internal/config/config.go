package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "TransferEngine"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultLockTTL         = 10 * time.Second
	defaultBaseRetryDelay  = 100 * time.Millisecond
	defaultMaxRetryDelay   = 2 * time.Second
	defaultMaxRetries      = 10
	defaultTxMaxAttempts   = 3
	defaultBalanceScale    = 2
	defaultBusListKey      = "transfers"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from
// environment variables, including the engine's tunable acquisition,
// retry, and idempotency-retention behavior.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	RedisURL       string
	ShutdownPeriod time.Duration

	// Engine tunables.
	LockTTL        time.Duration
	BaseRetryDelay time.Duration
	MaxRetryDelay  time.Duration
	MaxRetries     int
	TxMaxAttempts  int
	IdempotencyTTL time.Duration
	BalanceScale   int32

	// BusListKey names the Redis list internal/bus polls in the absence
	// of a real message-bus consumer.
	BusListKey string
}

// Load reads configuration values from the environment and populates a
// Config instance, validating at load time rather than at use time.
func Load() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		RedisURL:       os.Getenv("REDIS_URL"),
		ShutdownPeriod: defaultShutdownDelay,

		LockTTL:        defaultLockTTL,
		BaseRetryDelay: defaultBaseRetryDelay,
		MaxRetryDelay:  defaultMaxRetryDelay,
		MaxRetries:     defaultMaxRetries,
		TxMaxAttempts:  defaultTxMaxAttempts,
		IdempotencyTTL: defaultIdempotencyTTL,
		BalanceScale:   defaultBalanceScale,
		BusListKey:     defaultBusListKey,
	}

	if err := applyDuration(&cfg.ShutdownPeriod, shutdownSecondsEnvVar, shutdownDurationEnvVar); err != nil {
		return Config{}, err
	}
	if err := applyDuration(&cfg.IdempotencyTTL, idemTTLSecondsEnvVar, idemTTLDurEnvVar); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("LOCK_TTL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOCK_TTL_MS: %w", err)
		}
		cfg.LockTTL = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("BASE_RETRY_DELAY_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BASE_RETRY_DELAY_MS: %w", err)
		}
		cfg.BaseRetryDelay = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("MAX_RETRY_DELAY_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MAX_RETRY_DELAY_MS: %w", err)
		}
		cfg.MaxRetryDelay = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MAX_RETRIES: %w", err)
		}
		cfg.MaxRetries = n
	}
	if v := os.Getenv("TX_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TX_MAX_ATTEMPTS: %w", err)
		}
		cfg.TxMaxAttempts = n
	}
	if v := os.Getenv("BALANCE_SCALE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BALANCE_SCALE: %w", err)
		}
		cfg.BalanceScale = int32(n)
	}
	if v := os.Getenv("BUS_LIST_KEY"); v != "" {
		cfg.BusListKey = v
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	return cfg, nil
}

func applyDuration(target *time.Duration, secondsEnvVar, durationEnvVar string) error {
	if v := os.Getenv(secondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", secondsEnvVar, err)
		}
		*target = time.Duration(seconds) * time.Second
		return nil
	}
	if v := os.Getenv(durationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", durationEnvVar, err)
		}
		*target = d
	}
	return nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
