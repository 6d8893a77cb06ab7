package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Engine    EngineConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string

	// Directory of *.json workflow definitions loaded at startup.
	// Empty disables the loader.
	WorkflowsDir string
}

// DatabaseConfig holds Postgres connection settings for the workflow catalog
type DatabaseConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
	CacheTTL    time.Duration
}

// RedisConfig holds settings for the optional event relay
type RedisConfig struct {
	Enabled       bool
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// EngineConfig holds execution engine settings
type EngineConfig struct {
	SubscribeGrace          time.Duration
	MaxDepth                int
	MaxLoopIterations       int
	MaxConcurrentExecutions int
	CleanupInterval         time.Duration
	RetainTerminal          time.Duration
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"), // Default to text for development

			WorkflowsDir: getEnv("WORKFLOWS_DIR", ""),
		},
		Database: DatabaseConfig{
			Enabled:     getEnvBool("POSTGRES_ENABLED", false),
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "flowscript"),
			User:        getEnv("POSTGRES_USER", "flowscript"),
			Password:    getEnv("POSTGRES_PASSWORD", "flowscript"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
			CacheTTL:    getEnvDuration("POSTGRES_CACHE_TTL", 30*time.Second),
		},
		Redis: RedisConfig{
			Enabled:       getEnvBool("REDIS_ENABLED", false),
			Addr:          getEnv("REDIS_ADDR", "localhost:6379"),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvInt("REDIS_DB", 0),
			ChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "workflow:events"),
		},
		Engine: EngineConfig{
			SubscribeGrace:          getEnvDuration("ENGINE_SUBSCRIBE_GRACE", 100*time.Millisecond),
			MaxDepth:                getEnvInt("ENGINE_MAX_DEPTH", 100),
			MaxLoopIterations:       getEnvInt("ENGINE_MAX_LOOP_ITERATIONS", 10000),
			MaxConcurrentExecutions: getEnvInt("ENGINE_MAX_CONCURRENT", 0),
			CleanupInterval:         getEnvDuration("ENGINE_CLEANUP_INTERVAL", 5*time.Minute),
			RetainTerminal:          getEnvDuration("ENGINE_RETAIN_TERMINAL", 1*time.Hour),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   getEnvBool("ENABLE_PPROF", true),
			PprofPort:     getEnvInt("PPROF_PORT", 6060),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			MetricsPort:   getEnvInt("METRICS_PORT", 9090),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns must be >= min_conns")
		}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}

	if c.Engine.SubscribeGrace < 0 {
		return fmt.Errorf("subscribe grace must be >= 0")
	}

	if c.Engine.MaxDepth < 1 {
		return fmt.Errorf("max depth must be >= 1")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
