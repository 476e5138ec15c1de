package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SANDFORGE_SERVER_SSH_ADDR.
const EnvPrefix = "SANDFORGE"

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Assets  AssetsConfig  `mapstructure:"assets"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig contains SSH listener and simulation settings
type ServerConfig struct {
	SSHAddr      string        `mapstructure:"ssh_addr" validate:"required"`
	HostKeyPath  string        `mapstructure:"host_key_path" validate:"required"`
	TickInterval time.Duration `mapstructure:"tick_interval" validate:"min=1ms"`
	MaxSessions  int           `mapstructure:"max_sessions" validate:"min=1"`
	Window       int           `mapstructure:"window" validate:"min=1,max=65536"`
	// Chest lists the supply chest contents as "item_id:count" entries.
	Chest []string `mapstructure:"chest"`
}

// HTTPConfig contains admin HTTP and websocket listener settings
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" validate:"min=1"`
}

// AssetsConfig points at an asset tree that replaces the embedded one
type AssetsConfig struct {
	Dir string `mapstructure:"dir"`
}

// RedisConfig contains snapshot store connection settings
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url" validate:"required_if=Enabled true"`
	KeyPrefix    string        `mapstructure:"key_prefix" validate:"required"`
	TTL          time.Duration `mapstructure:"ttl"`
	PingTimeout  time.Duration `mapstructure:"ping_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Encoding string `mapstructure:"encoding" validate:"oneof=json console"`
}

// Load reads .env (if present), config.yaml (if present) and SANDFORGE_*
// environment variables over the defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/sandforge")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.ssh_addr", ":2222")
	v.SetDefault("server.host_key_path", ".ssh/sandforge_host_key")
	v.SetDefault("server.tick_interval", "50ms")
	v.SetDefault("server.max_sessions", 64)
	v.SetDefault("server.window", 256)
	v.SetDefault("server.chest", []string{"wood:16", "stone:16", "coal:4", "iron:2"})

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("http.allowed_origins", []string{"*"})

	v.SetDefault("assets.dir", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key_prefix", "sandforge")
	v.SetDefault("redis.ttl", "720h")
	v.SetDefault("redis.ping_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "json")
}

// Validate checks the struct tags and the cross-field rules they cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Redis.Enabled && !strings.HasPrefix(c.Redis.URL, "redis://") && !strings.HasPrefix(c.Redis.URL, "rediss://") {
		return fmt.Errorf("redis.url must be a redis:// or rediss:// URL")
	}
	return nil
}
