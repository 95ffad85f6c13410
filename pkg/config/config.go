package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Checkout      CheckoutConfig
	Payments      PaymentsConfig
	Stripe        StripeConfig
	Square        SquareConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DRIVESHARE_APP_ENV" required:"true"`
	Port         string `envconfig:"DRIVESHARE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DRIVESHARE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DRIVESHARE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DRIVESHARE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DRIVESHARE_DB_DSN"`
	Driver string `envconfig:"DRIVESHARE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DRIVESHARE_DB_HOST"`
	LegacyPort     int    `envconfig:"DRIVESHARE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DRIVESHARE_DB_USER"`
	LegacyPassword string `envconfig:"DRIVESHARE_DB_PASSWORD"`
	LegacyName     string `envconfig:"DRIVESHARE_DB_NAME"`
	LegacySSLMode  string `envconfig:"DRIVESHARE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DRIVESHARE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DRIVESHARE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DRIVESHARE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DRIVESHARE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DRIVESHARE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DRIVESHARE_REDIS_ADDR"`
	Password     string        `envconfig:"DRIVESHARE_REDIS_PASSWORD"`
	DB           int           `envconfig:"DRIVESHARE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DRIVESHARE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DRIVESHARE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DRIVESHARE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DRIVESHARE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DRIVESHARE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"DRIVESHARE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"DRIVESHARE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"DRIVESHARE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"DRIVESHARE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"DRIVESHARE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"DRIVESHARE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"DRIVESHARE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"DRIVESHARE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"DRIVESHARE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"DRIVESHARE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit int           `envconfig:"DRIVESHARE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit    int           `envconfig:"DRIVESHARE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`

	RegisterWindow     time.Duration `envconfig:"DRIVESHARE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"10m"`
	RegisterEmailLimit int           `envconfig:"DRIVESHARE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"DRIVESHARE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite         bool `envconfig:"DRIVESHARE_USE_SQLITE" default:"false"`
	AutoMigrate       bool `envconfig:"DRIVESHARE_AUTO_MIGRATE" default:"false"`
	RequireVerifiedID bool `envconfig:"DRIVESHARE_REQUIRE_VERIFIED_ID" default:"true"`
}

type CheckoutConfig struct {
	SessionTTL time.Duration `envconfig:"DRIVESHARE_CHECKOUT_SESSION_TTL" default:"15m"`
}

type PaymentsConfig struct {
	Provider string        `envconfig:"DRIVESHARE_PAYMENTS_PROVIDER" default:"stripe"`
	Timeout  time.Duration `envconfig:"DRIVESHARE_PAYMENTS_TIMEOUT" default:"15s"`
}

type StripeConfig struct {
	APIKey string `envconfig:"DRIVESHARE_STRIPE_API_KEY"`
	Secret string `envconfig:"DRIVESHARE_STRIPE_SECRET"`
	Env    string `envconfig:"DRIVESHARE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken   string `envconfig:"DRIVESHARE_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"DRIVESHARE_SQUARE_WEBHOOK_SECRET"`
	LocationID    string `envconfig:"DRIVESHARE_SQUARE_LOCATION_ID"`
	Env           string `envconfig:"DRIVESHARE_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"DRIVESHARE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"DRIVESHARE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"DRIVESHARE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BookingTopic        string `envconfig:"DRIVESHARE_PUBSUB_BOOKING_TOPIC" default:"ds-booking-events"`
	BookingSubscription string `envconfig:"DRIVESHARE_PUBSUB_BOOKING_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DRIVESHARE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DRIVESHARE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DRIVESHARE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"DRIVESHARE_OUTBOX_RETENTION_DAYS" default:"14"`

	IdempotencyTTL time.Duration `envconfig:"DRIVESHARE_OUTBOX_IDEMPOTENCY_TTL" default:"720h"`
}

type CronConfig struct {
	Interval    time.Duration `envconfig:"DRIVESHARE_CRON_INTERVAL" default:"1h"`
	LockTTL     time.Duration `envconfig:"DRIVESHARE_CRON_LOCK_TTL" default:"50m"`
	MetricsPort string        `envconfig:"DRIVESHARE_CRON_METRICS_PORT" default:"9101"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
