package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix namespaces every environment override
const EnvPrefix = "INTERVIEWPAD_"

// EnvConfigFile names the JSON config file when no path is passed explicitly
const EnvConfigFile = EnvPrefix + "CONFIG_FILE"

// Config is the complete service configuration
// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and business logic
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	Redis     *RedisConfig     `json:"redis"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Live      *LiveConfig      `json:"live"`
	Security  *SecurityConfig  `json:"security"`
	Log       *LogConfig       `json:"log"`
}

// DatabaseConfig selects the durable record store
type DatabaseConfig struct {
	Driver         string        `json:"driver"`
	Path           string        `json:"path"`
	DSN            string        `json:"dsn"`
	Timeout        time.Duration `json:"timeout"` // bounds each REST request's store calls
	MaxConnections int           `json:"max_connections"`
}

// RedisConfig selects the ephemeral store; an empty address keeps live
// state in process
type RedisConfig struct {
	Addr          string        `json:"addr"`
	Password      string        `json:"password"`
	DB            int           `json:"db"`
	KeyTTL        time.Duration `json:"key_ttl"`
	Fanout        bool          `json:"fanout"`
	ChannelPrefix string        `json:"channel_prefix"`
	AllowFallback bool          `json:"allow_fallback"`
}

// HTTPConfig controls the REST and websocket listener
type HTTPConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	PublicBaseURL   string        `json:"public_base_url"`
	CORSOrigins     []string      `json:"cors_origins"`
}

// WebSocketConfig tunes heartbeat and per-connection buffering
type WebSocketConfig struct {
	PingInterval    time.Duration `json:"ping_interval"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	BufferSize      int           `json:"buffer_size"`
	MaxMessageBytes int64         `json:"max_message_bytes"`
}

// LiveConfig tunes live event handling
type LiveConfig struct {
	RequireSessionAccess bool          `json:"require_session_access"`
	EventTimeout         time.Duration `json:"event_timeout"`
	RateLimitPerMinute   int           `json:"rate_limit_per_minute"`
}

// SecurityConfig holds password hashing settings
type SecurityConfig struct {
	BcryptCost int `json:"bcrypt_cost"`
}

// LogConfig selects log level and format
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Addr returns host:port for the listener
func (h *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// DefaultConfig runs a single instance on local SQLite with in-process live state
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Driver:         "sqlite3",
			Path:           "./data/interviewpad.db",
			Timeout:        30 * time.Second,
			MaxConnections: 10,
		},
		Redis: &RedisConfig{
			Fanout:        true,
			ChannelPrefix: "interviewpad:session:",
		},
		HTTP: &HTTPConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		},
		WebSocket: &WebSocketConfig{
			PingInterval:    25 * time.Second,
			ReadTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			BufferSize:      100,
			MaxMessageBytes: 512 * 1024,
		},
		Live: &LiveConfig{
			RequireSessionAccess: true,
			EventTimeout:         5 * time.Second,
			RateLimitPerMinute:   600,
		},
		Security: &SecurityConfig{
			BcryptCost: 12,
		},
		Log: &LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate rejects configurations that would fail at runtime
// FUNCTIONAL DISCOVERY: Comprehensive validation prevents invalid system configurations
func (c *Config) Validate() error {
	if c.Database == nil || c.Redis == nil || c.HTTP == nil || c.WebSocket == nil ||
		c.Live == nil || c.Security == nil || c.Log == nil {
		return errors.New("every configuration section is required")
	}

	switch c.Database.Driver {
	case "sqlite3":
		if c.Database.Path == "" {
			return errors.New("database path cannot be empty")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Timeout <= 0 {
		return errors.New("database timeout must be positive")
	}
	if c.Database.MaxConnections <= 0 {
		return errors.New("database max connections must be positive")
	}

	if c.Redis.DB < 0 {
		return errors.New("redis db cannot be negative")
	}
	if c.Redis.KeyTTL < 0 {
		return errors.New("redis key ttl cannot be negative")
	}
	if c.Redis.Fanout && c.Redis.Addr != "" && c.Redis.ChannelPrefix == "" {
		return errors.New("redis channel prefix is required for fan-out")
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.New("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return errors.New("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 || c.HTTP.ShutdownTimeout <= 0 {
		return errors.New("HTTP timeouts must be positive")
	}
	if c.HTTP.PublicBaseURL != "" && !strings.HasPrefix(c.HTTP.PublicBaseURL, "http://") &&
		!strings.HasPrefix(c.HTTP.PublicBaseURL, "https://") {
		return errors.New("HTTP public base URL must start with http:// or https://")
	}

	if c.WebSocket.PingInterval <= 0 {
		return errors.New("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return errors.New("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return errors.New("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return errors.New("WebSocket buffer size must be positive")
	}
	if c.WebSocket.MaxMessageBytes <= 0 {
		return errors.New("WebSocket max message size must be positive")
	}

	if c.Live.EventTimeout <= 0 {
		return errors.New("live event timeout must be positive")
	}
	if c.Live.RateLimitPerMinute < 0 {
		return errors.New("live rate limit cannot be negative")
	}

	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return errors.New("bcrypt cost must be between 4 and 31")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	return nil
}

// Load layers defaults, a .env file, the environment and an optional JSON
// file, then validates the result
// FUNCTIONAL DISCOVERY: Precedence is file > environment > defaults; an
// empty path falls back to INTERVIEWPAD_CONFIG_FILE
func Load(path string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg := LoadFromEnv()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv applies INTERVIEWPAD_* variables over the defaults
// Unparseable values are ignored and the default kept
func LoadFromEnv() *Config {
	cfg := DefaultConfig()

	envString("DATABASE_DRIVER", &cfg.Database.Driver)
	envString("DATABASE_PATH", &cfg.Database.Path)
	envString("DATABASE_DSN", &cfg.Database.DSN)
	envDuration("DATABASE_TIMEOUT", &cfg.Database.Timeout)
	envInt("DATABASE_MAX_CONNECTIONS", &cfg.Database.MaxConnections)

	envString("REDIS_ADDR", &cfg.Redis.Addr)
	envString("REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("REDIS_DB", &cfg.Redis.DB)
	envDuration("REDIS_KEY_TTL", &cfg.Redis.KeyTTL)
	envBool("REDIS_FANOUT", &cfg.Redis.Fanout)
	envString("REDIS_CHANNEL_PREFIX", &cfg.Redis.ChannelPrefix)
	envBool("REDIS_ALLOW_FALLBACK", &cfg.Redis.AllowFallback)

	envString("HTTP_HOST", &cfg.HTTP.Host)
	envInt("HTTP_PORT", &cfg.HTTP.Port)
	envDuration("HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout)
	envDuration("HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout)
	envDuration("HTTP_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)
	envString("HTTP_PUBLIC_BASE_URL", &cfg.HTTP.PublicBaseURL)
	envList("HTTP_CORS_ORIGINS", &cfg.HTTP.CORSOrigins)

	envDuration("WEBSOCKET_PING_INTERVAL", &cfg.WebSocket.PingInterval)
	envDuration("WEBSOCKET_READ_TIMEOUT", &cfg.WebSocket.ReadTimeout)
	envDuration("WEBSOCKET_WRITE_TIMEOUT", &cfg.WebSocket.WriteTimeout)
	envInt("WEBSOCKET_BUFFER_SIZE", &cfg.WebSocket.BufferSize)
	envInt64("WEBSOCKET_MAX_MESSAGE_BYTES", &cfg.WebSocket.MaxMessageBytes)

	envBool("LIVE_REQUIRE_SESSION_ACCESS", &cfg.Live.RequireSessionAccess)
	envDuration("LIVE_EVENT_TIMEOUT", &cfg.Live.EventTimeout)
	envInt("LIVE_RATE_LIMIT_PER_MINUTE", &cfg.Live.RateLimitPerMinute)

	envInt("SECURITY_BCRYPT_COST", &cfg.Security.BcryptCost)

	envString("LOG_LEVEL", &cfg.Log.Level)
	envString("LOG_FORMAT", &cfg.Log.Format)

	return cfg
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envInt64(key string, dst *int64) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// envList reads a comma separated list, dropping blanks
func envList(key string, dst *[]string) {
	v := os.Getenv(EnvPrefix + key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

// duration accepts "30s" style strings in config files
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// fileConfig mirrors Config with optional fields so only keys present in the
// file override earlier layers
// FUNCTIONAL DISCOVERY: Separate struct for JSON parsing to handle duration strings
type fileConfig struct {
	Database *struct {
		Driver         *string   `json:"driver"`
		Path           *string   `json:"path"`
		DSN            *string   `json:"dsn"`
		Timeout        *duration `json:"timeout"`
		MaxConnections *int      `json:"max_connections"`
	} `json:"database"`
	Redis *struct {
		Addr          *string   `json:"addr"`
		Password      *string   `json:"password"`
		DB            *int      `json:"db"`
		KeyTTL        *duration `json:"key_ttl"`
		Fanout        *bool     `json:"fanout"`
		ChannelPrefix *string   `json:"channel_prefix"`
		AllowFallback *bool     `json:"allow_fallback"`
	} `json:"redis"`
	HTTP *struct {
		Host            *string   `json:"host"`
		Port            *int      `json:"port"`
		ReadTimeout     *duration `json:"read_timeout"`
		WriteTimeout    *duration `json:"write_timeout"`
		ShutdownTimeout *duration `json:"shutdown_timeout"`
		PublicBaseURL   *string   `json:"public_base_url"`
		CORSOrigins     []string  `json:"cors_origins"`
	} `json:"http"`
	WebSocket *struct {
		PingInterval    *duration `json:"ping_interval"`
		ReadTimeout     *duration `json:"read_timeout"`
		WriteTimeout    *duration `json:"write_timeout"`
		BufferSize      *int      `json:"buffer_size"`
		MaxMessageBytes *int64    `json:"max_message_bytes"`
	} `json:"websocket"`
	Live *struct {
		RequireSessionAccess *bool     `json:"require_session_access"`
		EventTimeout         *duration `json:"event_timeout"`
		RateLimitPerMinute   *int      `json:"rate_limit_per_minute"`
	} `json:"live"`
	Security *struct {
		BcryptCost *int `json:"bcrypt_cost"`
	} `json:"security"`
	Log *struct {
		Level  *string `json:"level"`
		Format *string `json:"format"`
	} `json:"log"`
}

// LoadFromFile applies a JSON file over the defaults and validates the result
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := applyFile(cfg, path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if d := fc.Database; d != nil {
		set(&cfg.Database.Driver, d.Driver)
		set(&cfg.Database.Path, d.Path)
		set(&cfg.Database.DSN, d.DSN)
		setDuration(&cfg.Database.Timeout, d.Timeout)
		set(&cfg.Database.MaxConnections, d.MaxConnections)
	}
	if r := fc.Redis; r != nil {
		set(&cfg.Redis.Addr, r.Addr)
		set(&cfg.Redis.Password, r.Password)
		set(&cfg.Redis.DB, r.DB)
		setDuration(&cfg.Redis.KeyTTL, r.KeyTTL)
		set(&cfg.Redis.Fanout, r.Fanout)
		set(&cfg.Redis.ChannelPrefix, r.ChannelPrefix)
		set(&cfg.Redis.AllowFallback, r.AllowFallback)
	}
	if h := fc.HTTP; h != nil {
		set(&cfg.HTTP.Host, h.Host)
		set(&cfg.HTTP.Port, h.Port)
		setDuration(&cfg.HTTP.ReadTimeout, h.ReadTimeout)
		setDuration(&cfg.HTTP.WriteTimeout, h.WriteTimeout)
		setDuration(&cfg.HTTP.ShutdownTimeout, h.ShutdownTimeout)
		set(&cfg.HTTP.PublicBaseURL, h.PublicBaseURL)
		if h.CORSOrigins != nil {
			cfg.HTTP.CORSOrigins = h.CORSOrigins
		}
	}
	if w := fc.WebSocket; w != nil {
		setDuration(&cfg.WebSocket.PingInterval, w.PingInterval)
		setDuration(&cfg.WebSocket.ReadTimeout, w.ReadTimeout)
		setDuration(&cfg.WebSocket.WriteTimeout, w.WriteTimeout)
		set(&cfg.WebSocket.BufferSize, w.BufferSize)
		set(&cfg.WebSocket.MaxMessageBytes, w.MaxMessageBytes)
	}
	if l := fc.Live; l != nil {
		set(&cfg.Live.RequireSessionAccess, l.RequireSessionAccess)
		setDuration(&cfg.Live.EventTimeout, l.EventTimeout)
		set(&cfg.Live.RateLimitPerMinute, l.RateLimitPerMinute)
	}
	if s := fc.Security; s != nil {
		set(&cfg.Security.BcryptCost, s.BcryptCost)
	}
	if l := fc.Log; l != nil {
		set(&cfg.Log.Level, l.Level)
		set(&cfg.Log.Format, l.Format)
	}
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *duration) {
	if v != nil {
		*dst = v.Duration
	}
}
