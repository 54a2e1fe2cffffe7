package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	TokenTTL      time.Duration
	SweepInterval time.Duration
	PostgresDSN   string
	RedisAddr     string
}

// FromEnv builds a Server config from environment variables so main stays
// lean. PostgresDSN and RedisAddr are optional; empty means in-memory.
func FromEnv() Server {
	addr := os.Getenv("GATEKEEP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default; override in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	tokenTTL := 8 * time.Hour
	if raw := os.Getenv("GATEKEEP_TOKEN_TTL_MINUTES"); raw != "" {
		if minutes, err := strconv.Atoi(raw); err == nil && minutes > 0 {
			tokenTTL = time.Duration(minutes) * time.Minute
		}
	}

	sweepInterval := 30 * time.Second
	if raw := os.Getenv("GATEKEEP_SWEEP_INTERVAL_SECONDS"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			sweepInterval = time.Duration(seconds) * time.Second
		}
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		TokenTTL:      tokenTTL,
		SweepInterval: sweepInterval,
		PostgresDSN:   os.Getenv("GATEKEEP_POSTGRES_DSN"),
		RedisAddr:     os.Getenv("GATEKEEP_REDIS_ADDR"),
	}
}
