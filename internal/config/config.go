package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all configuration values for the application. Values come
// from flags, then the environment (optionally seeded from a .env file),
// then defaults.
type Config struct {
	// ServerPort is the port the HTTP server listens on
	ServerPort string

	// StoreDriver selects the persistence backend
	StoreDriver string

	MongoURI      string
	MongoDatabase string

	// DatabaseDSN is the data source for the sqlite3 and postgres drivers
	DatabaseDSN string

	CORSOrigins []string
	LogLevel    string

	// WSEventsPerSecond and WSEventBurst bound inbound events per connection
	WSEventsPerSecond float64
	WSEventBurst      int

	// PresenceRetention is how long an offline user's last seen is kept.
	// Zero keeps it for the life of the process.
	PresenceRetention     time.Duration
	PresenceSweepInterval time.Duration

	NotificationPageSize int

	// DotEnvLoaded reports whether a .env file was found
	DotEnvLoaded bool
}

type option struct {
	key   string
	flag  string
	value any
	usage string
}

var options = []option{
	{"PORT", "port", "8080", "HTTP listen port"},
	{"STORE_DRIVER", "store-driver", DriverMongo, "persistence backend: mongo, sqlite3, postgres or memory"},
	{"MONGO_URI", "mongo-uri", "mongodb://localhost:27017", "MongoDB connection string"},
	{"MONGO_DATABASE", "mongo-database", "duochat", "MongoDB database name"},
	{"DATABASE_DSN", "database-dsn", "duochat.db", "data source for the sqlite3 and postgres drivers"},
	{"CORS_ORIGINS", "cors-origins", "http://localhost:5173,http://localhost:3000", "comma-separated allowed origins"},
	{"LOG_LEVEL", "log-level", "info", "log level: debug, info, warn, error"},
	{"WS_EVENTS_PER_SECOND", "ws-events-per-second", 20.0, "sustained inbound websocket events per connection"},
	{"WS_EVENT_BURST", "ws-event-burst", 40, "inbound websocket event burst per connection"},
	{"PRESENCE_RETENTION", "presence-retention", 24 * time.Hour, "how long offline presence is kept, 0 keeps it forever"},
	{"PRESENCE_SWEEP_INTERVAL", "presence-sweep-interval", time.Minute, "how often offline presence is swept"},
	{"NOTIFICATION_PAGE_SIZE", "notification-page-size", 100, "notifications returned per list request"},
}

// BindFlags registers one flag per setting on fs and binds it into v, so a
// flag set on the command line wins over the environment.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	for _, o := range options {
		switch def := o.value.(type) {
		case string:
			fs.String(o.flag, def, o.usage)
		case int:
			fs.Int(o.flag, def, o.usage)
		case float64:
			fs.Float64(o.flag, def, o.usage)
		case time.Duration:
			fs.Duration(o.flag, def, o.usage)
		default:
			return fmt.Errorf("config: unsupported default for %s", o.key)
		}
		if err := v.BindPFlag(o.key, fs.Lookup(o.flag)); err != nil {
			return fmt.Errorf("config: bind %s: %w", o.flag, err)
		}
	}
	return nil
}

// Load reads a .env file if present and resolves every setting through v.
// It fails on values that cannot be used.
func Load(v *viper.Viper) (*Config, error) {
	// Not an error if .env is missing: in production the real environment is used
	loaded := godotenv.Load() == nil

	v.AutomaticEnv()
	for _, o := range options {
		v.SetDefault(o.key, o.value)
	}

	cfg := &Config{
		ServerPort:            v.GetString("PORT"),
		StoreDriver:           strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		MongoURI:              v.GetString("MONGO_URI"),
		MongoDatabase:         v.GetString("MONGO_DATABASE"),
		DatabaseDSN:           v.GetString("DATABASE_DSN"),
		CORSOrigins:           splitList(v.GetString("CORS_ORIGINS")),
		LogLevel:              v.GetString("LOG_LEVEL"),
		WSEventsPerSecond:     v.GetFloat64("WS_EVENTS_PER_SECOND"),
		WSEventBurst:          v.GetInt("WS_EVENT_BURST"),
		PresenceRetention:     v.GetDuration("PRESENCE_RETENTION"),
		PresenceSweepInterval: v.GetDuration("PRESENCE_SWEEP_INTERVAL"),
		NotificationPageSize:  v.GetInt("NOTIFICATION_PAGE_SIZE"),
		DotEnvLoaded:          loaded,
	}

	switch cfg.StoreDriver {
	case DriverMongo, DriverSQLite, DriverPostgres, DriverMemory:
	default:
		return nil, fmt.Errorf("config: unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.ServerPort == "" {
		return nil, fmt.Errorf("config: PORT is empty")
	}
	if cfg.PresenceRetention < 0 {
		return nil, fmt.Errorf("config: PRESENCE_RETENTION must not be negative")
	}
	if cfg.PresenceRetention > 0 && cfg.PresenceSweepInterval <= 0 {
		return nil, fmt.Errorf("config: PRESENCE_SWEEP_INTERVAL must be positive")
	}
	if cfg.NotificationPageSize <= 0 {
		cfg.NotificationPageSize = 100
	}
	return cfg, nil
}

// Warnings lists settings that are usable but probably not what was meant.
func (c *Config) Warnings() []string {
	var out []string
	if !c.DotEnvLoaded {
		out = append(out, "no .env file found, using environment variables")
	}
	if c.StoreDriver == DriverMemory {
		out = append(out, "STORE_DRIVER is memory: messages are lost on restart")
	}
	if len(c.CORSOrigins) == 0 {
		out = append(out, "CORS_ORIGINS is empty: browsers on other origins will be rejected")
	}
	if c.WSEventsPerSecond <= 0 {
		out = append(out, "WS_EVENTS_PER_SECOND is not positive: websocket rate limiting is disabled")
	}
	return out
}

// splitList splits a comma-separated list and trims whitespace.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
