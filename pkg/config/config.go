package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
	FX           FXConfig
	Source       SourceConfig
	Display      DisplayConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate reports every problem at once so a bad deploy is fixed in one
// round.
func (c *Config) validate() error {
	var err error
	noProject := strings.TrimSpace(c.GCP.ProjectID) == ""
	if c.Eventing.Enabled && noProject {
		err = multierr.Append(err, fmt.Errorf("%s is required when %s is true", EnvGCPProjectID, EnvEventingEnabled))
	}
	if c.BigQuery.Enabled && noProject {
		err = multierr.Append(err, fmt.Errorf("%s is required when %s is true", EnvGCPProjectID, EnvBigQueryEnabled))
	}
	if c.Display.AEDPerUSD <= 0 || c.Display.TomanPerUSD <= 0 {
		err = multierr.Append(err, fmt.Errorf("display rates must be positive"))
	}
	if c.Cron.Interval < time.Minute {
		err = multierr.Append(err, fmt.Errorf("%s must be at least 1m, got %s", EnvCronEvery, c.Cron.Interval))
	}
	switch strings.ToLower(c.App.LogFormat) {
	case "", "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("%s must be json or console, got %q", EnvLogFormat, c.App.LogFormat))
	}
	return err
}

type AppConfig struct {
	Env          string   `envconfig:"PRICESYNC_APP_ENV" required:"true"`
	Port         string   `envconfig:"PRICESYNC_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"PRICESYNC_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"PRICESYNC_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"PRICESYNC_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"PRICESYNC_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type DBConfig struct {
	DSN    string `envconfig:"PRICESYNC_DB_DSN"`
	Driver string `envconfig:"PRICESYNC_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PRICESYNC_DB_HOST"`
	Port     int    `envconfig:"PRICESYNC_DB_PORT" default:"5432"`
	User     string `envconfig:"PRICESYNC_DB_USER"`
	Password string `envconfig:"PRICESYNC_DB_PASSWORD"`
	Name     string `envconfig:"PRICESYNC_DB_NAME"`
	SSLMode  string `envconfig:"PRICESYNC_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PRICESYNC_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"PRICESYNC_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"PRICESYNC_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PRICESYNC_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"PRICESYNC_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
	LogQueries         bool          `envconfig:"PRICESYNC_DB_LOG_QUERIES" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PRICESYNC_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PRICESYNC_REDIS_ADDR"`
	Password     string        `envconfig:"PRICESYNC_REDIS_PASSWORD"`
	DB           int           `envconfig:"PRICESYNC_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PRICESYNC_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRICESYNC_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRICESYNC_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRICESYNC_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRICESYNC_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"PRICESYNC_REDIS_KEY_PREFIX" default:"ps"`
}

// JWTConfig covers operator bearer tokens. Audience is optional; when set it
// is both stamped and required.
type JWTConfig struct {
	Secret            string        `envconfig:"PRICESYNC_JWT_SECRET" required:"true"`
	Issuer            string        `envconfig:"PRICESYNC_JWT_ISSUER" required:"true"`
	Audience          string        `envconfig:"PRICESYNC_JWT_AUDIENCE"`
	ExpirationMinutes int           `envconfig:"PRICESYNC_JWT_EXPIRATION_MINUTES" default:"60"`
	Leeway            time.Duration `envconfig:"PRICESYNC_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PRICESYNC_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PRICESYNC_AUTO_MIGRATE" default:"false"`
}

// CronConfig controls both the in-process scheduler and the bearer secret
// accepted by the HTTP cron endpoints.
type CronConfig struct {
	Secret     string        `envconfig:"PRICESYNC_CRON_SECRET" required:"true"`
	Interval   time.Duration `envconfig:"PRICESYNC_CRON_INTERVAL" default:"24h"`
	LockTTL    time.Duration `envconfig:"PRICESYNC_CRON_LOCK_TTL" default:"30m"`
	JobTimeout time.Duration `envconfig:"PRICESYNC_CRON_JOB_TIMEOUT" default:"20m"`
}

// RateLimitConfig bounds how often one operator may trigger an admin sync.
type RateLimitConfig struct {
	AdminSyncLimit  int           `envconfig:"PRICESYNC_ADMIN_SYNC_RATE_LIMIT" default:"10"`
	AdminSyncWindow time.Duration `envconfig:"PRICESYNC_ADMIN_SYNC_RATE_WINDOW" default:"1m"`
}

type FXConfig struct {
	BaseURL string        `envconfig:"PRICESYNC_FX_BASE_URL" default:"https://api.exchangerate.host"`
	APIKey  string        `envconfig:"PRICESYNC_FX_API_KEY"`
	Timeout time.Duration `envconfig:"PRICESYNC_FX_TIMEOUT" default:"10s"`
}

type SourceConfig struct {
	FetchTimeout   time.Duration `envconfig:"PRICESYNC_SOURCE_FETCH_TIMEOUT" default:"20s"`
	RequestsPerMin int           `envconfig:"PRICESYNC_SOURCE_REQUESTS_PER_MIN" default:"30"`
	MaxBodyBytes   int64         `envconfig:"PRICESYNC_SOURCE_MAX_BODY_BYTES" default:"4194304"`
	UserAgent      string        `envconfig:"PRICESYNC_SOURCE_USER_AGENT"`
	GenericHosts   []string      `envconfig:"PRICESYNC_EXTRACT_GENERIC_HOSTS"`
	DefaultLimit   int           `envconfig:"PRICESYNC_SYNC_DEFAULT_LIMIT" default:"0"`
}

type DisplayConfig struct {
	AEDPerUSD   float64 `envconfig:"PRICESYNC_DISPLAY_AED_PER_USD" default:"3.6725"`
	TomanPerUSD float64 `envconfig:"PRICESYNC_DISPLAY_TOMAN_PER_USD" default:"58000"`
}

type EventingConfig struct {
	Enabled bool `envconfig:"PRICESYNC_EVENTING_ENABLED" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PRICESYNC_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PRICESYNC_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

// BigQueryConfig controls the price history sink.
type BigQueryConfig struct {
	Enabled           bool   `envconfig:"PRICESYNC_PRICE_HISTORY_ENABLED" default:"false"`
	Dataset           string `envconfig:"PRICESYNC_BIGQUERY_DATASET" default:"pricesync"`
	PriceHistoryTable string `envconfig:"PRICESYNC_BIGQUERY_PRICE_HISTORY_TABLE" default:"price_history"`
	CreateTables      bool   `envconfig:"PRICESYNC_BIGQUERY_CREATE_TABLES" default:"false"`
	MaxBytesBilled    int64  `envconfig:"PRICESYNC_BIGQUERY_MAX_BYTES_BILLED" default:"1073741824"`
}

// PubSubConfig targets the pricing topic. With ordering on, events for one
// product are delivered in publish order.
type PubSubConfig struct {
	PricingTopic   string        `envconfig:"PRICESYNC_PUBSUB_PRICING_TOPIC" default:"pricing-events"`
	Ordering       bool          `envconfig:"PRICESYNC_PUBSUB_ORDERING" default:"true"`
	PublishTimeout time.Duration `envconfig:"PRICESYNC_PUBSUB_PUBLISH_TIMEOUT" default:"10s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range splitDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
