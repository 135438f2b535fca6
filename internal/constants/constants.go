package constants

import "time"

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second

	// Wall-clock budget for one account's info + claim round trip,
	// retries included.
	AccountTimeout = 2 * time.Minute
)

// Transport retry for the game API: up to 5 POST attempts total on HTTP 429,
// inter-attempt delay growing linearly from the base.
const (
	RetryMaxAttempts = 5
	RetryBaseDelay   = 1 * time.Second
)

const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)
