// Package config loads the server settings from flags and environment
// variables. A flag set on the command line wins over its variable; the
// variable wins over the default. The variable for a flag is its name upper
// cased with dashes replaced by underscores (--cache-ttl reads CACHE_TTL).
package config

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	flag "github.com/spf13/pflag"

	"github.com/codox/token-engine/internal/engine"
	"github.com/codox/token-engine/internal/logger"
	"github.com/codox/token-engine/internal/model"
)

// DefaultProgramID is used when no program ID is configured.
var DefaultProgramID = model.AccountID(sha256.Sum256([]byte("codox/token-engine")))

type Config struct {
	Port              string
	DatabaseURL       string
	RedisURL          string
	CacheTTL          time.Duration
	ProgramID         model.AccountID
	AdminToken        string
	LogFormat         string
	Verbose           bool
	MaxParticipants   int
	MaxTransactionAge time.Duration
}

// Load parses args (without the program name) and fills unset flags from
// getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	fs := flag.NewFlagSet("token-engine", flag.ContinueOnError)

	port := fs.String("port", "8080", "HTTP listen port (or set PORT env var)")
	databaseURL := fs.String("database-url", "", "PostgreSQL connection URL; empty uses the in-memory store (or set DATABASE_URL env var)")
	redisURL := fs.String("redis-url", "", "Redis URL for the account read cache (or set REDIS_URL env var)")
	cacheTTL := fs.Duration("cache-ttl", 30*time.Second, "Account cache TTL (or set CACHE_TTL env var)")
	programID := fs.String("program-id", "", "Base58 program ID the state addresses derive from (or set PROGRAM_ID env var)")
	adminToken := fs.String("admin-token", "", "Bearer token for the admin API; empty disables it (or set ADMIN_TOKEN env var)")
	logFormat := fs.String("log-format", logger.FormatJSON, "Log format: json or text (or set LOG_FORMAT env var)")
	verbose := fs.Bool("verbose", false, "Enable verbose (debug) logging (or set VERBOSE=true env var)")
	maxParticipants := fs.Int("max-lottery-participants", engine.DefaultMaxParticipants, "Maximum lottery entries per round (or set MAX_LOTTERY_PARTICIPANTS env var)")
	maxAge := fs.Duration("max-transaction-age", 2*time.Minute, "Accepted transaction timestamp skew (or set MAX_TRANSACTION_AGE env var)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var envErr error
	fs.VisitAll(func(f *flag.Flag) {
		if f.Changed || envErr != nil {
			return
		}
		name := EnvName(f.Name)
		if v := getenv(name); v != "" {
			if err := f.Value.Set(v); err != nil {
				envErr = fmt.Errorf("invalid %s: %w", name, err)
			}
		}
	})
	if envErr != nil {
		return nil, envErr
	}

	cfg := &Config{
		Port:              *port,
		DatabaseURL:       *databaseURL,
		RedisURL:          *redisURL,
		CacheTTL:          *cacheTTL,
		ProgramID:         DefaultProgramID,
		AdminToken:        *adminToken,
		LogFormat:         *logFormat,
		Verbose:           *verbose,
		MaxParticipants:   *maxParticipants,
		MaxTransactionAge: *maxAge,
	}
	if *programID != "" {
		id, err := solana.PublicKeyFromBase58(*programID)
		if err != nil {
			return nil, fmt.Errorf("invalid program id: %w", err)
		}
		cfg.ProgramID = id
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.Port == "" {
		return errors.New("port is required")
	}
	if cfg.LogFormat != logger.FormatJSON && cfg.LogFormat != logger.FormatText {
		return fmt.Errorf("log format must be %s or %s", logger.FormatJSON, logger.FormatText)
	}
	if cfg.RedisURL != "" && cfg.DatabaseURL == "" {
		return errors.New("redis cache requires a database url")
	}
	if cfg.CacheTTL <= 0 {
		return errors.New("cache ttl must be positive")
	}
	if cfg.MaxParticipants <= 0 {
		return errors.New("max lottery participants must be positive")
	}
	if cfg.MaxTransactionAge <= 0 {
		return errors.New("max transaction age must be positive")
	}
	return nil
}

// EnvName is the environment variable read for flag name.
func EnvName(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}
