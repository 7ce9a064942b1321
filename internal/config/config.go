package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"prompt-service/internal/utils"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	MCPTransportStdio = "stdio"
	MCPTransportHTTP  = "http"

	dbPasswordSecret = "db_password"
)

// Config содержит конфигурацию prompt-service.
type Config struct {
	// Сервер
	Port               string   `envconfig:"PROMPT_SERVER_PORT" default:"8080"`
	Env                string   `envconfig:"ENV" default:"development"`
	LogLevel           string   `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding        string   `envconfig:"LOG_ENCODING" default:"json"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Хранилище
	StoreDriver   string        `envconfig:"STORE_DRIVER" default:"postgres"`
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"prompts"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"5m"`
	DBAutoMigrate bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	// Пустой DB_PASSWORD: читаем из <SECRETS_DIR>/db_password
	DBPassword string `envconfig:"DB_PASSWORD"`
	SecretsDir string `envconfig:"SECRETS_DIR" default:"/run/secrets"`

	// Redis (пустой адрес отключает кэш)
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"PROMPT_CACHE_TTL" default:"10m"`

	// RabbitMQ (пустой URL отключает события)
	RabbitMQURL string `envconfig:"RABBITMQ_URL"`

	VersionMaxAttempts int `envconfig:"PROMPT_VERSION_MAX_ATTEMPTS" default:"3"`

	// MCP
	MCPTransport string `envconfig:"MCP_TRANSPORT" default:"stdio"`
	MCPHTTPPort  string `envconfig:"MCP_HTTP_PORT" default:"8090"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// RedactedDSN is GetDSN with the password masked, for logs.
func (c *Config) RedactedDSN() string {
	return fmt.Sprintf("postgres://%s:***@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadConfig reads .env (if present), then the environment, then secrets.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load prompt-service config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.StoreDriver == StoreDriverPostgres {
		password, err := utils.SecretOrEnv(cfg.DBPassword, cfg.SecretsDir, dbPasswordSecret)
		if err != nil {
			return nil, fmt.Errorf("database password not configured: %w", err)
		}
		cfg.DBPassword = password
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver))
	}
	switch c.MCPTransport {
	case MCPTransportStdio, MCPTransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("unsupported MCP_TRANSPORT %q", c.MCPTransport))
	}
	if c.VersionMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("PROMPT_VERSION_MAX_ATTEMPTS must be >= 1, got %d", c.VersionMaxAttempts))
	}
	return errors.Join(errs...)
}

// LoaderConfig holds the environment defaults of the failsafe loader; flags override them.
type LoaderConfig struct {
	APIURL         string        `envconfig:"API_URL" default:"http://localhost:8080/api"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	RequestTimeout time.Duration `envconfig:"LOADER_TIMEOUT" default:"30s"`
}

// LoadLoaderConfig reads .env (if present), then the environment.
func LoadLoaderConfig() (*LoaderConfig, error) {
	_ = godotenv.Load()

	var cfg LoaderConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load loader config: %w", err)
	}
	return &cfg, nil
}
