// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Daemon      DaemonConfig
	Messaging   MessagingConfig
	Market      MarketConfig
	Poller      PollerConfig
	Supervisor  SupervisorConfig
	Events      EventsConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	// APIUser and APIPasswordHash guard the command surface. The hash is bcrypt.
	APIUser         string
	APIPasswordHash string
	RateLimit       int // requests per minute per client
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite". For sqlite, Database is the file path.
	Driver       string
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type DaemonConfig struct {
	RPCURL      string
	User        string
	Password    string
	CallTimeout time.Duration
}

type MessagingConfig struct {
	PaidMessages    bool
	RetentionDays   int
	ProtocolVersion string
	// SendsPerSecond paces outgoing messages; SendBurst allows short bursts.
	SendsPerSecond float64
	SendBurst      int
}

type MarketConfig struct {
	Name       string
	Address    string
	PrivateKey string
	PublicKey  string
}

type PollerConfig struct {
	ConnectedInterval    time.Duration
	DisconnectedInterval time.Duration
	SeenCacheSize        int
}

type SupervisorConfig struct {
	ConnectedInterval    time.Duration
	DisconnectedInterval time.Duration
	MaxBackoff           time.Duration
}

type EventsConfig struct {
	Buffer  int
	Workers int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "3000"),
			Host:            getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:     getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout:    getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:     getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
			APIUser:         getEnv("API_USER", "marketplace"),
			APIPasswordHash: getEnv("API_PASSWORD_HASH", ""),
			RateLimit:       getEnvAsInt("API_RATE_LIMIT", 120),
			AllowedOrigins:  getEnvAsList("API_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "marketplace"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		Daemon: DaemonConfig{
			RPCURL:      getEnv("DAEMON_RPC_URL", "http://localhost:52935"),
			User:        getEnv("DAEMON_RPC_USER", "test"),
			Password:    getEnv("DAEMON_RPC_PASSWORD", ""),
			CallTimeout: getEnvAsDuration("DAEMON_CALL_TIMEOUT", 30*time.Second),
		},
		Messaging: MessagingConfig{
			PaidMessages:    getEnvAsBool("PAID_MESSAGES", false),
			RetentionDays:   getEnvAsInt("MESSAGE_RETENTION_DAYS", 7),
			ProtocolVersion: getEnv("PROTOCOL_VERSION", "0.1.0.0"),
			SendsPerSecond:  getEnvAsFloat("MESSAGE_SENDS_PER_SECOND", 5),
			SendBurst:       getEnvAsInt("MESSAGE_SEND_BURST", 10),
		},
		Market: MarketConfig{
			Name:       getEnv("DEFAULT_MARKETPLACE_NAME", "DEFAULT"),
			Address:    getEnv("DEFAULT_MARKETPLACE_ADDRESS", ""),
			PrivateKey: getEnv("DEFAULT_MARKETPLACE_PRIVATE_KEY", ""),
			PublicKey:  getEnv("DEFAULT_MARKETPLACE_PUBLIC_KEY", ""),
		},
		Poller: PollerConfig{
			ConnectedInterval:    getEnvAsDuration("POLLER_CONNECTED_INTERVAL", 10*time.Second),
			DisconnectedInterval: getEnvAsDuration("POLLER_DISCONNECTED_INTERVAL", time.Second),
			SeenCacheSize:        getEnvAsInt("POLLER_SEEN_CACHE_SIZE", 4096),
		},
		Supervisor: SupervisorConfig{
			ConnectedInterval:    getEnvAsDuration("SUPERVISOR_CONNECTED_INTERVAL", 10*time.Second),
			DisconnectedInterval: getEnvAsDuration("SUPERVISOR_DISCONNECTED_INTERVAL", time.Second),
			MaxBackoff:           getEnvAsDuration("SUPERVISOR_MAX_BACKOFF", 30*time.Second),
		},
		Events: EventsConfig{
			Buffer:  getEnvAsInt("EVENTS_BUFFER", 256),
			Workers: getEnvAsInt("EVENTS_WORKERS", 4),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	if c.Environment == "production" {
		if c.Daemon.Password == "" {
			return fmt.Errorf("daemon RPC password is required in production")
		}
		if c.Market.PrivateKey == "" || c.Market.Address == "" {
			return fmt.Errorf("default market key and address are required in production")
		}
		if c.Server.APIPasswordHash == "" {
			return fmt.Errorf("API password hash is required in production")
		}
	}

	intervals := map[string]time.Duration{
		"POLLER_CONNECTED_INTERVAL":        c.Poller.ConnectedInterval,
		"POLLER_DISCONNECTED_INTERVAL":     c.Poller.DisconnectedInterval,
		"SUPERVISOR_CONNECTED_INTERVAL":    c.Supervisor.ConnectedInterval,
		"SUPERVISOR_DISCONNECTED_INTERVAL": c.Supervisor.DisconnectedInterval,
	}
	for name, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Supervisor.MaxBackoff < c.Supervisor.DisconnectedInterval {
		return fmt.Errorf("SUPERVISOR_MAX_BACKOFF must not be below SUPERVISOR_DISCONNECTED_INTERVAL")
	}

	if c.Events.Workers <= 0 || c.Events.Buffer < 0 {
		return fmt.Errorf("event bus needs at least one worker and a non-negative buffer")
	}
	if c.Messaging.SendsPerSecond <= 0 || c.Messaging.SendBurst <= 0 {
		return fmt.Errorf("message send rate and burst must be positive")
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("10s") or a bare number of milliseconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
