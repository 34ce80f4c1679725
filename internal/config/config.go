// Package config loads process configuration from the environment (and an
// optional .env file) and spawn specs from a JSON file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalid wraps every configuration validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Planet     PlanetConfig
	Spawn      SpawnConfig
	Locomotion LocomotionConfig
	Editor     EditorConfig
	Engine     EngineConfig
	Database   DatabaseConfig
	Server     ServerConfig
	RateLimit  RateLimitConfig
	Logging    LoggingConfig
}

type PlanetConfig struct {
	Radius float64
	// Seed 0 draws a fresh seed at startup.
	Seed int64
	// Layout names a msgpack layout file to load instead of generating.
	Layout string
	// EntropyKey is a random.org API key for fresh seeds.
	EntropyKey string
}

type SpawnConfig struct {
	File          string
	MaxAttempts   int
	Stacking      bool
	SurfaceOffset float64
}

type LocomotionConfig struct {
	CurveLengthScale float64
}

type EditorConfig struct {
	LoopCloseDistance float64
	PathOffset        float64
}

type EngineConfig struct {
	Interval  time.Duration
	Speed     float64
	SaveEvery uint64
}

type DatabaseConfig struct {
	Path string
}

type ServerConfig struct {
	Port           int
	AdminKey       string
	AllowedOrigins []string
	CORSDebug      bool
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
	TrustProxy        bool
}

type LoggingConfig struct {
	Level string
	// Format is "json", "text" or "auto" (JSON unless stdout is a terminal).
	Format string
}

// Load reads .env (if present) and the environment, applies defaults and
// validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a configuration from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Planet:     loadPlanetConfig(),
		Spawn:      loadSpawnConfig(),
		Locomotion: loadLocomotionConfig(),
		Editor:     loadEditorConfig(),
		Engine:     loadEngineConfig(),
		Database:   loadDatabaseConfig(),
		Server:     loadServerConfig(),
		RateLimit:  loadRateLimitConfig(),
		Logging:    loadLoggingConfig(),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	slog.With("component", "config").Debug("configuration loaded",
		"radius", cfg.Planet.Radius,
		"spawn_file", cfg.Spawn.File,
		"max_attempts", cfg.Spawn.MaxAttempts,
		"stacking", cfg.Spawn.Stacking,
	)
	return cfg, nil
}

func loadPlanetConfig() PlanetConfig {
	return PlanetConfig{
		Radius:     getFloat("PLANET_RADIUS", 30),
		Seed:       int64(getInt("PLANET_SEED", 42)),
		Layout:     getEnv("PLANET_LAYOUT", ""),
		EntropyKey: getEnv("RANDOM_ORG_API_KEY", ""),
	}
}

func loadSpawnConfig() SpawnConfig {
	return SpawnConfig{
		File:          getEnv("SPAWN_FILE", ""),
		MaxAttempts:   getInt("SPAWN_MAX_ATTEMPTS", 5),
		Stacking:      getBool("PLACEMENT_STACKING", false),
		SurfaceOffset: getFloat("SPAWN_SURFACE_OFFSET", 0),
	}
}

func loadLocomotionConfig() LocomotionConfig {
	return LocomotionConfig{
		CurveLengthScale: getFloat("LOCOMOTION_CURVE_SCALE", 20),
	}
}

func loadEditorConfig() EditorConfig {
	return EditorConfig{
		LoopCloseDistance: getFloat("EDITOR_LOOP_CLOSE_DISTANCE", 2),
		PathOffset:        getFloat("EDITOR_PATH_OFFSET", 0.05),
	}
}

func loadEngineConfig() EngineConfig {
	return EngineConfig{
		Interval:  time.Duration(getInt("ENGINE_TICK_MS", 50)) * time.Millisecond,
		Speed:     getFloat("ENGINE_SPEED", 1),
		SaveEvery: uint64(getInt("ENGINE_SAVE_EVERY_TICKS", 6000)),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Path: getEnv("DB_PATH", "data/catplanet.db"),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:           getInt("SERVER_PORT", 8080),
		AdminKey:       getEnv("PLANETSIM_ADMIN_KEY", ""),
		AllowedOrigins: getList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		CORSDebug:      getBool("CORS_DEBUG", false),
	}
}

func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:           getBool("RATE_LIMIT_ENABLED", true),
		RequestsPerSecond: getFloat("RATE_LIMIT_REQUESTS_PER_SECOND", 10),
		BurstSize:         getInt("RATE_LIMIT_BURST_SIZE", 20),
		TrustProxy:        getBool("RATE_LIMIT_TRUST_PROXY", false),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "auto"),
	}
}

func (c *Config) validate() error {
	if !(c.Planet.Radius > 0) {
		return fmt.Errorf("%w: PLANET_RADIUS must be positive, got %v", ErrInvalid, c.Planet.Radius)
	}
	if c.Spawn.MaxAttempts < 1 {
		return fmt.Errorf("%w: SPAWN_MAX_ATTEMPTS must be at least 1, got %d", ErrInvalid, c.Spawn.MaxAttempts)
	}
	if c.Spawn.SurfaceOffset < 0 {
		return fmt.Errorf("%w: SPAWN_SURFACE_OFFSET must not be negative", ErrInvalid)
	}
	if !(c.Locomotion.CurveLengthScale > 0) {
		return fmt.Errorf("%w: LOCOMOTION_CURVE_SCALE must be positive", ErrInvalid)
	}
	if !(c.Editor.LoopCloseDistance > 0) {
		return fmt.Errorf("%w: EDITOR_LOOP_CLOSE_DISTANCE must be positive", ErrInvalid)
	}
	if c.Engine.Interval <= 0 {
		return fmt.Errorf("%w: ENGINE_TICK_MS must be positive", ErrInvalid)
	}
	if c.Engine.Speed < 0 {
		return fmt.Errorf("%w: ENGINE_SPEED must not be negative", ErrInvalid)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: SERVER_PORT out of range: %d", ErrInvalid, c.Server.Port)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.BurstSize < 1) {
		return fmt.Errorf("%w: rate limit needs positive RATE_LIMIT_REQUESTS_PER_SECOND and RATE_LIMIT_BURST_SIZE", ErrInvalid)
	}
	switch c.Logging.Format {
	case "auto", "json", "text":
	default:
		return fmt.Errorf("%w: LOG_FORMAT must be auto, json or text, got %q", ErrInvalid, c.Logging.Format)
	}
	return nil
}

// ParseLogLevel maps a level name to a slog level. Unknown names mean info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
