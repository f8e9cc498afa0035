package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Gateway  GatewayConfig
	Checkout CheckoutConfig
	Defaults DefaultsConfig
	Session  SessionConfig
	Redis    RedisConfig
	DB       DBConfig
	Catalog  CatalogConfig
	Sandbox  SandboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements envconfig cannot express.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Gateway.BaseURL); err != nil {
		return fmt.Errorf("invalid %s: %w", EnvGatewayBaseURL, err)
	}
	if c.Checkout.SubmitRetries < 0 {
		return fmt.Errorf("%s must not be negative", EnvSubmitRetries)
	}
	if strings.TrimSpace(c.Checkout.OrderPrefix) == "" {
		return fmt.Errorf("%s is required", EnvOrderPrefix)
	}

	switch strings.ToLower(c.Session.Backend) {
	case SessionBackendMemory:
	case SessionBackendRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("%s or %s is required for the redis session backend", EnvRedisURL, EnvRedisAddr)
		}
	case SessionBackendSQL:
		if strings.TrimSpace(c.DB.DSN) == "" {
			return fmt.Errorf("%s is required for the sql session backend", EnvDBDSN)
		}
		if c.DB.Driver != DBDriverSQLite && c.DB.Driver != DBDriverPostgres {
			return fmt.Errorf("%s must be %q or %q", EnvDBDriver, DBDriverSQLite, DBDriverPostgres)
		}
	default:
		return fmt.Errorf("unknown %s %q", EnvSessionBackend, c.Session.Backend)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type GatewayConfig struct {
	BaseURL   string        `envconfig:"STOREFRONT_GATEWAY_BASE_URL" required:"true"`
	Timeout   time.Duration `envconfig:"STOREFRONT_GATEWAY_TIMEOUT" default:"30s"`
	UserAgent string        `envconfig:"STOREFRONT_GATEWAY_USER_AGENT" default:"storefront-cart"`
}

type CheckoutConfig struct {
	OrderPrefix           string        `envconfig:"STOREFRONT_ORDER_PREFIX" default:"PFX"`
	SubmitRetries         int           `envconfig:"STOREFRONT_SUBMIT_RETRIES" default:"2"`
	SubmitBackoffUnit     time.Duration `envconfig:"STOREFRONT_SUBMIT_BACKOFF_UNIT" default:"1s"`
	DefaultSendType       string        `envconfig:"STOREFRONT_DEFAULT_SEND_TYPE" default:"0"`
	UnknownCustomerMarker string        `envconfig:"STOREFRONT_UNKNOWN_CUSTOMER_MARKER" default:"Customer Code Not Found"`
}

// DefaultsConfig holds the values substituted for missing line attributes.
type DefaultsConfig struct {
	UnitCode      string `envconfig:"STOREFRONT_DEFAULT_UNIT" default:"ชิ้น"`
	WarehouseCode string `envconfig:"STOREFRONT_DEFAULT_WAREHOUSE" default:"MMA01"`
	ShelfCode     string `envconfig:"STOREFRONT_DEFAULT_SHELF" default:"SH101"`
}

type SessionConfig struct {
	Backend   string `envconfig:"STOREFRONT_SESSION_BACKEND" default:"memory"`
	Namespace string `envconfig:"STOREFRONT_SESSION_NAMESPACE"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
	SessionTTL   time.Duration `envconfig:"STOREFRONT_REDIS_SESSION_TTL" default:"720h"`
}

type DBConfig struct {
	Driver      string `envconfig:"STOREFRONT_DB_DRIVER" default:"sqlite"`
	DSN         string `envconfig:"STOREFRONT_DB_DSN" default:"file:storefront.db?cache=shared"`
	AutoMigrate bool   `envconfig:"STOREFRONT_DB_AUTO_MIGRATE" default:"true"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type CatalogConfig struct {
	WarehouseCacheTTL time.Duration `envconfig:"STOREFRONT_WAREHOUSE_CACHE_TTL" default:"5m"`
	PerPage           int           `envconfig:"STOREFRONT_CATALOG_PER_PAGE" default:"5"`
	Limit             int           `envconfig:"STOREFRONT_CATALOG_LIMIT" default:"10"`
}

// SandboxConfig drives the in-memory order service used for local development.
type SandboxConfig struct {
	CORSOrigins   []string `envconfig:"STOREFRONT_SANDBOX_CORS_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	Customers     []string `envconfig:"STOREFRONT_SANDBOX_CUSTOMERS" default:"C001,C002,C003"`
	MetricsEnable bool     `envconfig:"STOREFRONT_SANDBOX_METRICS" default:"true"`
}
