// Package config provides Viper-based configuration loading for the battle server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds listener settings for the HTTP/websocket surface and the health probe.
type ServerConfig struct {
	// HTTPHost is the bind address for the HTTP API and websocket gateway.
	HTTPHost string `mapstructure:"http_host"`
	// HTTPPort is the TCP port for the HTTP API and websocket gateway.
	HTTPPort int `mapstructure:"http_port"`
	// HealthPort is the TCP port for the gRPC health service.
	HealthPort int `mapstructure:"health_port"`
	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the "host:port" HTTP listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.HTTPHost, s.HTTPPort)
}

// HealthAddr returns the "host:port" gRPC health listen address.
func (s ServerConfig) HealthAddr() string {
	return fmt.Sprintf("%s:%d", s.HTTPHost, s.HealthPort)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthTimeout bounds each readiness ping.
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// RedisConfig holds settings for the redis character backend.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// StorageConfig selects the character persistence backend.
type StorageConfig struct {
	// Backend is "postgres" or "redis".
	Backend string `mapstructure:"backend"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	// JWTSecret is the HS256 key used to verify access tokens.
	JWTSecret string `mapstructure:"jwt_secret"`
}

// WebsocketConfig holds gateway connection settings.
type WebsocketConfig struct {
	ReadBuffer     int           `mapstructure:"read_buffer"`
	WriteBuffer    int           `mapstructure:"write_buffer"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// BattleConfig holds turn loop and post-battle tuning.
type BattleConfig struct {
	// TurnDuration is the input window for each turn.
	TurnDuration time.Duration `mapstructure:"turn_duration"`
	// DeadlineSlack is how early a deadline timer may fire before it is rescheduled instead of resolving.
	DeadlineSlack time.Duration `mapstructure:"deadline_slack"`
	// EscapeChance is the probability in [0,1] that an escape command succeeds.
	EscapeChance float64 `mapstructure:"escape_chance"`
	// FinishedRoomTTL is how long an ended room stays readable; zero disables eviction.
	FinishedRoomTTL time.Duration `mapstructure:"finished_room_ttl"`
	// SweepInterval is the eviction scan period.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// InventoryCapacity is the slot limit used when applying drops.
	InventoryCapacity int `mapstructure:"inventory_capacity"`
	// DeathPenaltyPercent is the share of each soft currency lost on defeat.
	DeathPenaltyPercent int `mapstructure:"death_penalty_percent"`
	// PersistTimeout bounds each fire-and-forget persistence write.
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
}

// ContentConfig holds the static content directories.
type ContentConfig struct {
	MapsDir     string `mapstructure:"maps_dir"`
	MonstersDir string `mapstructure:"monsters_dir"`
	ItemsDir    string `mapstructure:"items_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Websocket WebsocketConfig `mapstructure:"websocket"`
	Battle    BattleConfig    `mapstructure:"battle"`
	Content   ContentConfig   `mapstructure:"content"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	for _, fn := range []func() error{
		func() error { return validateServer(c.Server) },
		func() error { return validateStorage(c.Storage, c.Database, c.Redis) },
		func() error { return validateLogging(c.Logging) },
		func() error { return validateAuth(c.Auth) },
		func() error { return validateWebsocket(c.Websocket) },
		func() error { return validateBattle(c.Battle) },
		func() error { return validateContent(c.Content) },
	} {
		if err := fn(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }

func validateServer(s ServerConfig) error {
	var errs []string
	if s.HTTPHost == "" {
		errs = append(errs, "server.http_host must not be empty")
	}
	if !validPort(s.HTTPPort) {
		errs = append(errs, fmt.Sprintf("server.http_port must be 1-65535, got %d", s.HTTPPort))
	}
	if !validPort(s.HealthPort) {
		errs = append(errs, fmt.Sprintf("server.health_port must be 1-65535, got %d", s.HealthPort))
	}
	if s.HealthPort == s.HTTPPort {
		errs = append(errs, "server.health_port must differ from server.http_port")
	}
	if s.ShutdownTimeout < 0 {
		errs = append(errs, "server.shutdown_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateStorage(s StorageConfig, d DatabaseConfig, r RedisConfig) error {
	switch s.Backend {
	case "postgres":
		return validateDatabase(d)
	case "redis":
		if r.Addr == "" {
			return errors.New("redis.addr must not be empty when storage.backend is redis")
		}
		if r.DB < 0 {
			return fmt.Errorf("redis.db must be >= 0, got %d", r.DB)
		}
		return nil
	default:
		return fmt.Errorf("storage.backend must be one of [postgres, redis], got %q", s.Backend)
	}
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if !validPort(d.Port) {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if d.HealthTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("database.health_timeout must be > 0, got %s", d.HealthTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateAuth(a AuthConfig) error {
	if len(a.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 bytes")
	}
	return nil
}

func validateWebsocket(w WebsocketConfig) error {
	var errs []string
	if w.ReadBuffer < 0 || w.WriteBuffer < 0 {
		errs = append(errs, "websocket buffers must not be negative")
	}
	if w.PongWait <= 0 {
		errs = append(errs, "websocket.pong_wait must be positive")
	}
	if w.WriteWait <= 0 {
		errs = append(errs, "websocket.write_wait must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateBattle(b BattleConfig) error {
	var errs []string
	if b.TurnDuration <= 0 {
		errs = append(errs, fmt.Sprintf("battle.turn_duration must be positive, got %s", b.TurnDuration))
	}
	if b.DeadlineSlack < 0 || b.DeadlineSlack >= b.TurnDuration {
		errs = append(errs, "battle.deadline_slack must be in [0, turn_duration)")
	}
	if b.EscapeChance < 0 || b.EscapeChance > 1 {
		errs = append(errs, fmt.Sprintf("battle.escape_chance must be in [0,1], got %v", b.EscapeChance))
	}
	if b.FinishedRoomTTL < 0 {
		errs = append(errs, "battle.finished_room_ttl must not be negative")
	}
	if b.FinishedRoomTTL > 0 && b.SweepInterval <= 0 {
		errs = append(errs, "battle.sweep_interval must be positive when finished_room_ttl is set")
	}
	if b.InventoryCapacity < 1 {
		errs = append(errs, fmt.Sprintf("battle.inventory_capacity must be >= 1, got %d", b.InventoryCapacity))
	}
	if b.DeathPenaltyPercent < 0 || b.DeathPenaltyPercent > 100 {
		errs = append(errs, fmt.Sprintf("battle.death_penalty_percent must be 0-100, got %d", b.DeathPenaltyPercent))
	}
	if b.PersistTimeout <= 0 {
		errs = append(errs, "battle.persist_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c ContentConfig) error {
	var errs []string
	if c.MapsDir == "" {
		errs = append(errs, "content.maps_dir must not be empty")
	}
	if c.MonstersDir == "" {
		errs = append(errs, "content.monsters_dir must not be empty")
	}
	if c.ItemsDir == "" {
		errs = append(errs, "content.items_dir must not be empty")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with BATTLE_ prefix
	v.SetEnvPrefix("BATTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults installs every default on v. Exposed so callers building a
// Viper instance by hand (tests, flag binding) get the same baseline.
func SetDefaults(v *viper.Viper) { setDefaults(v) }

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "battle")
	v.SetDefault("database.password", "battle")
	v.SetDefault("database.name", "battle")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "5m")
	v.SetDefault("database.health_timeout", "2s")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "idlebattle:")

	v.SetDefault("storage.backend", "postgres")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("websocket.read_buffer", 1024)
	v.SetDefault("websocket.write_buffer", 1024)
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")

	v.SetDefault("battle.turn_duration", "30s")
	v.SetDefault("battle.deadline_slack", "1s")
	v.SetDefault("battle.escape_chance", 0.3)
	v.SetDefault("battle.finished_room_ttl", "10m")
	v.SetDefault("battle.sweep_interval", "1m")
	v.SetDefault("battle.inventory_capacity", 100)
	v.SetDefault("battle.death_penalty_percent", 10)
	v.SetDefault("battle.persist_timeout", "5s")

	v.SetDefault("content.maps_dir", "content/maps")
	v.SetDefault("content.monsters_dir", "content/monsters")
	v.SetDefault("content.items_dir", "content/items")
}
