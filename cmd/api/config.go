package main

import (
	"log/slog"
	"time"

	"github.com/questline/walletcore/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"APP_PORT" envDefault:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	Postgres config.PostgresConfig
	Ledger   config.LedgerConfig
	Sweeps   config.SweepsConfig
}
