package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/D371L/asmodeus/internal/domain"
	"github.com/D371L/asmodeus/internal/spin"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Wheel       WheelConfig       `yaml:"wheel"`
	Storage     StorageConfig     `yaml:"storage"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	Host string `yaml:"host"`
	Env  string `yaml:"env"` // "development" or "production"
}

// WheelConfig holds spin engine tuning and per-wheel limits
type WheelConfig struct {
	SpinDuration       time.Duration `yaml:"spinDuration"`
	SpinCount          int           `yaml:"spinCount"`
	FinalApproachRatio float64       `yaml:"finalApproachRatio"`
	TickCutoffRatio    float64       `yaml:"tickCutoffRatio"`
	FrameRate          int           `yaml:"frameRate"`
	HistoryLimit       int           `yaml:"historyLimit"`
	MaxParticipants    int           `yaml:"maxParticipants"`
	MaxNameLength      int           `yaml:"maxNameLength"`
	WholeDegreeOffsets bool          `yaml:"wholeDegreeOffsets"`
	RNGSeed            uint64        `yaml:"rngSeed"` // 0 = unseeded
	WheelCodeLength    int           `yaml:"wheelCodeLength"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Backend         string        `yaml:"backend"` // memory, file, redis or postgres
	Dir             string        `yaml:"dir"`
	RedisAddr       string        `yaml:"redisAddr"`
	RedisPassword   string        `yaml:"redisPassword"`
	RedisDB         int           `yaml:"redisDb"`
	PostgresDSN     string        `yaml:"postgresDsn"`
	PersistSchedule string        `yaml:"persistSchedule"`
	Timeout         time.Duration `yaml:"timeout"`
}

// MaintenanceConfig holds background cleanup settings
type MaintenanceConfig struct {
	CleanupSchedule   string        `yaml:"cleanupSchedule"`
	StaleWheelTimeout time.Duration `yaml:"staleWheelTimeout"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

// Storage backends
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Default returns the built-in configuration
func Default() *Config {
	spinDefaults := spin.DefaultConfig()
	limits := domain.DefaultLimits()

	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
			Env:  "development",
		},
		Wheel: WheelConfig{
			SpinDuration:       spinDefaults.Duration,
			SpinCount:          spinDefaults.SpinCount,
			FinalApproachRatio: spinDefaults.FinalApproachRatio,
			TickCutoffRatio:    spinDefaults.TickCutoff,
			FrameRate:          60,
			HistoryLimit:       limits.HistoryLimit,
			MaxParticipants:    limits.MaxParticipants,
			MaxNameLength:      limits.MaxNameLength,
			WholeDegreeOffsets: spinDefaults.WholeDegrees,
			WheelCodeLength:    6,
		},
		Storage: StorageConfig{
			Backend:         BackendMemory,
			Dir:             "data",
			RedisAddr:       "localhost:6379",
			PersistSchedule: "@every 5s",
			Timeout:         3 * time.Second,
		},
		Maintenance: MaintenanceConfig{
			CleanupSchedule:   "@every 10m",
			StaleWheelTimeout: 2 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the optional CONFIG_FILE
// YAML document, then environment variables
func Load() (*Config, error) {
	cfg := Default()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile overlays a YAML file. A missing file is not an error.
func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Env = getEnv("ENV", c.Server.Env)

	c.Wheel.SpinDuration = getEnvDuration("SPIN_DURATION", c.Wheel.SpinDuration)
	c.Wheel.SpinCount = getEnvInt("SPIN_COUNT", c.Wheel.SpinCount)
	c.Wheel.FinalApproachRatio = getEnvFloat("FINAL_APPROACH_RATIO", c.Wheel.FinalApproachRatio)
	c.Wheel.TickCutoffRatio = getEnvFloat("TICK_CUTOFF_RATIO", c.Wheel.TickCutoffRatio)
	c.Wheel.FrameRate = getEnvInt("FRAME_RATE", c.Wheel.FrameRate)
	c.Wheel.HistoryLimit = getEnvInt("HISTORY_LIMIT", c.Wheel.HistoryLimit)
	c.Wheel.MaxParticipants = getEnvInt("MAX_PARTICIPANTS", c.Wheel.MaxParticipants)
	c.Wheel.MaxNameLength = getEnvInt("MAX_NAME_LENGTH", c.Wheel.MaxNameLength)
	c.Wheel.WholeDegreeOffsets = getEnvBool("WHOLE_DEGREE_OFFSETS", c.Wheel.WholeDegreeOffsets)
	c.Wheel.RNGSeed = getEnvUint64("RNG_SEED", c.Wheel.RNGSeed)
	c.Wheel.WheelCodeLength = getEnvInt("WHEEL_CODE_LENGTH", c.Wheel.WheelCodeLength)

	c.Storage.Backend = strings.ToLower(getEnv("STORAGE_BACKEND", c.Storage.Backend))
	c.Storage.Dir = getEnv("STORAGE_DIR", c.Storage.Dir)
	c.Storage.RedisAddr = getEnv("REDIS_ADDR", c.Storage.RedisAddr)
	c.Storage.RedisPassword = getEnv("REDIS_PASSWORD", c.Storage.RedisPassword)
	c.Storage.RedisDB = getEnvInt("REDIS_DB", c.Storage.RedisDB)
	c.Storage.PostgresDSN = getEnv("POSTGRES_DSN", c.Storage.PostgresDSN)
	c.Storage.PersistSchedule = getEnv("PERSIST_SCHEDULE", c.Storage.PersistSchedule)
	c.Storage.Timeout = getEnvDuration("STORAGE_TIMEOUT", c.Storage.Timeout)

	c.Maintenance.CleanupSchedule = getEnv("CLEANUP_SCHEDULE", c.Maintenance.CleanupSchedule)
	c.Maintenance.StaleWheelTimeout = getEnvDuration("STALE_WHEEL_TIMEOUT", c.Maintenance.StaleWheelTimeout)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	w := c.Wheel
	switch {
	case w.SpinDuration <= 0:
		return fmt.Errorf("spin duration must be positive, got %s", w.SpinDuration)
	case w.SpinCount < 1:
		return fmt.Errorf("spin count must be at least 1, got %d", w.SpinCount)
	case w.FinalApproachRatio <= 0 || w.FinalApproachRatio > 1:
		return fmt.Errorf("final approach ratio must be in (0,1], got %v", w.FinalApproachRatio)
	case w.TickCutoffRatio <= 0 || w.TickCutoffRatio > 1:
		return fmt.Errorf("tick cutoff ratio must be in (0,1], got %v", w.TickCutoffRatio)
	case w.FrameRate <= 0:
		return fmt.Errorf("frame rate must be positive, got %d", w.FrameRate)
	case w.HistoryLimit < 1:
		return fmt.Errorf("history limit must be at least 1, got %d", w.HistoryLimit)
	case w.MaxParticipants < 2:
		return fmt.Errorf("max participants must be at least 2, got %d", w.MaxParticipants)
	case w.MaxNameLength < 1:
		return fmt.Errorf("max name length must be at least 1, got %d", w.MaxNameLength)
	case w.WheelCodeLength < 4:
		return fmt.Errorf("wheel code length must be at least 4, got %d", w.WheelCodeLength)
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	return nil
}

// SpinConfig returns the engine tuning
func (c *Config) SpinConfig() spin.Config {
	return spin.Config{
		Duration:           c.Wheel.SpinDuration,
		SpinCount:          c.Wheel.SpinCount,
		FinalApproachRatio: c.Wheel.FinalApproachRatio,
		TickCutoff:         c.Wheel.TickCutoffRatio,
		WholeDegrees:       c.Wheel.WholeDegreeOffsets,
	}
}

// Limits returns the per-wheel limits
func (c *Config) Limits() domain.Limits {
	return domain.Limits{
		MaxParticipants: c.Wheel.MaxParticipants,
		MaxNameLength:   c.Wheel.MaxNameLength,
		HistoryLimit:    c.Wheel.HistoryLimit,
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetAddr returns the server address in host:port format
func (c *Config) GetAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// getEnv returns an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as an integer or a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if value, exists := os.LookupEnv(key); exists {
		if u, err := strconv.ParseUint(value, 10, 64); err == nil {
			return u
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("10s") or whole seconds ("10")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
