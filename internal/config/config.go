package config

import "time"

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN"`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// LedgerConfig holds wallet-core policy knobs.
type LedgerConfig struct {
	// Minimum spacing between external payouts per account.
	PayoutRateLimitWindow time.Duration `env:"LEDGER_PAYOUT_RATE_WINDOW" envDefault:"24h"`
	// How long a mutation may wait for the per-account lock.
	LockTimeout time.Duration `env:"LEDGER_LOCK_TIMEOUT" envDefault:"5s"`
}

// SweepsConfig controls the periodic per-account maintenance jobs.
type SweepsConfig struct {
	Interval             time.Duration `env:"SWEEPS_INTERVAL" envDefault:"10m"`
	ReconcileSampleLimit int           `env:"SWEEPS_RECONCILE_LIMIT" envDefault:"500"`
}
