package envconf

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Basic(t *testing.T) {
	t.Setenv("TC_PORT", "9090")
	t.Setenv("TC_DSN", "postgres://localhost/app")
	t.Setenv("TC_TIMEOUT", "15s")

	type cfg struct {
		Port    uint16        `env:"TC_PORT"`
		DSN     string        `env:"TC_DSN"`
		Timeout time.Duration `env:"TC_TIMEOUT"`
	}

	var c cfg
	require.NoError(t, Load(&c))

	assert.Equal(t, uint16(9090), c.Port)
	assert.Equal(t, "postgres://localhost/app", c.DSN)
	assert.Equal(t, 15*time.Second, c.Timeout)
}

func TestLoad_DefaultUsedWhenUnset(t *testing.T) {
	type cfg struct {
		Limit int `env:"TC_UNSET_LIMIT" envDefault:"50"`
	}

	var c cfg
	require.NoError(t, Load(&c))
	assert.Equal(t, 50, c.Limit)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	t.Setenv("TC_LIMIT", "7")

	type cfg struct {
		Limit int `env:"TC_LIMIT" envDefault:"50"`
	}

	var c cfg
	require.NoError(t, Load(&c))
	assert.Equal(t, 7, c.Limit)
}

func TestLoad_MissingRequired(t *testing.T) {
	type cfg struct {
		DSN string `env:"TC_DEFINITELY_NOT_SET"`
	}

	var c cfg
	assert.ErrorIs(t, Load(&c), ErrMissingRequired)
}

func TestLoad_Nested(t *testing.T) {
	t.Setenv("TC_PG_DSN", "postgres://localhost/nested")

	type pg struct {
		DSN string `env:"TC_PG_DSN"`
	}
	type cfg struct {
		Postgres pg
	}

	var c cfg
	require.NoError(t, Load(&c))
	assert.Equal(t, "postgres://localhost/nested", c.Postgres.DSN)
}

func TestLoad_TextUnmarshaler(t *testing.T) {
	t.Setenv("TC_LOG_LEVEL", "warn")

	type cfg struct {
		Level slog.Level `env:"TC_LOG_LEVEL"`
	}

	var c cfg
	require.NoError(t, Load(&c))
	assert.Equal(t, slog.LevelWarn, c.Level)
}
