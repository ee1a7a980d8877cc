package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// Account settings
	StartingBalance     int64
	DepositBonusPercent int64 // percentage of a deposit credited as bonus balance

	// Wagering limits
	MinStake int64
	MaxStake int64

	// Withdrawal settings
	MinWithdrawalAmount int64

	// Fixed-odds multiplier table keyed by selection cardinality. This is
	// configuration, not computed: the gap below fair odds is the house edge.
	FixedOddsPayouts map[int]decimal.Decimal

	// Virtual game timing
	InstantCountdownSeconds int           // digit/color resolution window
	CrashTickInterval       time.Duration // multiplier step cadence
	CrashTickIncrement      decimal.Decimal

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env file is fine; real deployments set the environment.
	_ = godotenv.Load()

	config := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),

		StartingBalance:     0,
		DepositBonusPercent: 0,

		MinStake: 100,    // 1.00 in minor units
		MaxStake: 100000, // 1000.00

		MinWithdrawalAmount: 1000, // 10.00

		FixedOddsPayouts: map[int]decimal.Decimal{
			2:  decimal.RequireFromString("1.95"),
			3:  decimal.RequireFromString("2.88"),
			8:  decimal.RequireFromString("7.60"),
			10: decimal.RequireFromString("9.50"),
		},

		InstantCountdownSeconds: 30,
		CrashTickInterval:       time.Second,
		CrashTickIncrement:      decimal.RequireFromString("0.05"),

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		if parsed, err := strconv.ParseInt(balance, 10, 64); err == nil {
			config.StartingBalance = parsed
		}
	}
	if bonus := os.Getenv("DEPOSIT_BONUS_PERCENT"); bonus != "" {
		if parsed, err := strconv.ParseInt(bonus, 10, 64); err == nil {
			config.DepositBonusPercent = parsed
		}
	}
	if stake := os.Getenv("MIN_STAKE"); stake != "" {
		if parsed, err := strconv.ParseInt(stake, 10, 64); err == nil {
			config.MinStake = parsed
		}
	}
	if stake := os.Getenv("MAX_STAKE"); stake != "" {
		if parsed, err := strconv.ParseInt(stake, 10, 64); err == nil {
			config.MaxStake = parsed
		}
	}
	if amount := os.Getenv("MIN_WITHDRAWAL_AMOUNT"); amount != "" {
		if parsed, err := strconv.ParseInt(amount, 10, 64); err == nil {
			config.MinWithdrawalAmount = parsed
		}
	}
	if seconds := os.Getenv("INSTANT_COUNTDOWN_SECONDS"); seconds != "" {
		if parsed, err := strconv.Atoi(seconds); err == nil {
			config.InstantCountdownSeconds = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
