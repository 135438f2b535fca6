package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const (
	defaultPlayerURL   = "https://wos-giftcode-api.centurygame.com/api/player"
	defaultGiftCodeURL = "https://wos-giftcode-api.centurygame.com/api/gift_code"
)

type Config struct {
	// Secret is mixed into every request signature. Required.
	Secret string

	PlayerURL   string
	GiftCodeURL string

	DBPath     string
	ServerPort string
	LogLevel   string

	// RedeemWorkers bounds concurrent account processing in a batch run.
	// 1 keeps the strictly sequential reference behavior.
	RedeemWorkers int

	// ThrottleInterval, when non-zero, enforces a minimum spacing between
	// outbound game API calls process-wide. Use when the service rate-limits
	// globally rather than per account.
	ThrottleInterval time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		Secret:           getEnv("WOS_SECRET", ""),
		PlayerURL:        getEnv("WOS_PLAYER_URL", defaultPlayerURL),
		GiftCodeURL:      getEnv("WOS_GIFTCODE_URL", defaultGiftCodeURL),
		DBPath:           getEnv("DB_PATH", "giftcode.db"),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RedeemWorkers:    getEnvInt("REDEEM_WORKERS", 1),
		ThrottleInterval: getEnvDuration("THROTTLE_INTERVAL", 0),
	}

	if cfg.Secret == "" {
		return nil, fmt.Errorf("WOS_SECRET is required")
	}
	if cfg.RedeemWorkers < 1 {
		return nil, fmt.Errorf("REDEEM_WORKERS must be at least 1")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Int("redeem_workers", cfg.RedeemWorkers).
		Dur("throttle_interval", cfg.ThrottleInterval).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

var Module = fx.Provide(Load)
