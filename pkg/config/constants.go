package config

// EnvPrefix is passed to envconfig; individual fields carry full names so
// the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv     = "DRIVESHARE_APP_ENV"
	EnvPort       = "DRIVESHARE_APP_PORT"
	EnvDBDSN      = "DRIVESHARE_DB_DSN"
	EnvDBHost     = "DRIVESHARE_DB_HOST"
	EnvDBUser     = "DRIVESHARE_DB_USER"
	EnvDBName     = "DRIVESHARE_DB_NAME"
	EnvRedisURL   = "DRIVESHARE_REDIS_URL"
	EnvJWTSecret  = "DRIVESHARE_JWT_SECRET"
	EnvJWTIssuer  = "DRIVESHARE_JWT_ISSUER"
	EnvJWTExpMins = "DRIVESHARE_JWT_EXPIRATION_MINUTES"

	EnvRefreshTokenTTLMinutes = "DRIVESHARE_REFRESH_TOKEN_TTL_MINUTES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
