package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
	SessionBackendSQL    = "sql"
)

const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

const (
	EnvAppEnv         = "STOREFRONT_APP_ENV"
	EnvPort           = "STOREFRONT_APP_PORT"
	EnvLogLevel       = "STOREFRONT_LOG_LEVEL"
	EnvGatewayBaseURL = "STOREFRONT_GATEWAY_BASE_URL"
	EnvGatewayTimeout = "STOREFRONT_GATEWAY_TIMEOUT"
	EnvOrderPrefix    = "STOREFRONT_ORDER_PREFIX"
	EnvSubmitRetries  = "STOREFRONT_SUBMIT_RETRIES"
	EnvSubmitBackoff  = "STOREFRONT_SUBMIT_BACKOFF_UNIT"
	EnvSessionBackend = "STOREFRONT_SESSION_BACKEND"
	EnvRedisURL       = "STOREFRONT_REDIS_URL"
	EnvRedisAddr      = "STOREFRONT_REDIS_ADDR"
	EnvDBDriver       = "STOREFRONT_DB_DRIVER"
	EnvDBDSN          = "STOREFRONT_DB_DSN"
	EnvSandboxOrigins = "STOREFRONT_SANDBOX_CORS_ORIGINS"
)
