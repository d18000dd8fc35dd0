package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T) (*pflag.FlagSet, *viper.Viper) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := viper.New()
	require.NoError(t, BindFlags(fs, v))
	return fs, v
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	_, v := newFlags(t)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, 100, cfg.NotificationPageSize)
	assert.Equal(t, 24*time.Hour, cfg.PresenceRetention)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite3")
	t.Setenv("CORS_ORIGINS", " https://a.example , https://b.example,")
	t.Setenv("PRESENCE_RETENTION", "90m")
	t.Setenv("WS_EVENT_BURST", "7")
	_, v := newFlags(t)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 90*time.Minute, cfg.PresenceRetention)
	assert.Equal(t, 7, cfg.WSEventBurst)
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	fs, v := newFlags(t)
	require.NoError(t, fs.Parse([]string{"--port", "9100", "--store-driver", "memory"}))

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.ServerPort)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Contains(t, cfg.Warnings(), "STORE_DRIVER is memory: messages are lost on restart")
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "cassandra")
	_, v := newFlags(t)

	_, err := Load(v)
	assert.ErrorContains(t, err, "unknown STORE_DRIVER")
}
