package config

const (
	EnvPrefix = "PRICESYNC"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "PRICESYNC_APP_ENV"
	EnvPort        = "PRICESYNC_APP_PORT"
	EnvDBDSN       = "PRICESYNC_DB_DSN"
	EnvDBHost      = "PRICESYNC_DB_HOST"
	EnvDBUser      = "PRICESYNC_DB_USER"
	EnvDBName      = "PRICESYNC_DB_NAME"
	EnvRedisURL    = "PRICESYNC_REDIS_URL"
	EnvJWTSecret   = "PRICESYNC_JWT_SECRET"
	EnvJWTIssuer   = "PRICESYNC_JWT_ISSUER"
	EnvCronSecret  = "PRICESYNC_CRON_SECRET"
	EnvCronEvery   = "PRICESYNC_CRON_INTERVAL"
	EnvFXBaseURL   = "PRICESYNC_FX_BASE_URL"
	EnvGenericHost = "PRICESYNC_EXTRACT_GENERIC_HOSTS"
	EnvLogFormat   = "PRICESYNC_LOG_FORMAT"

	EnvGCPProjectID    = "PRICESYNC_GCP_PROJECT_ID"
	EnvEventingEnabled = "PRICESYNC_EVENTING_ENABLED"
	EnvBigQueryEnabled = "PRICESYNC_PRICE_HISTORY_ENABLED"
)

var splitDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
