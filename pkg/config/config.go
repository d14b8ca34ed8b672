package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "DESHCART_DB_DSN"
	EnvDBHost = "DESHCART_DB_HOST"
	EnvDBUser = "DESHCART_DB_USER"
	EnvDBName = "DESHCART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Checkout     CheckoutConfig
	Gateways     GatewaysConfig
	Sweep        SweepConfig
	Outbox       OutboxConfig
	PubSub       PubSubConfig
	ERP          ERPConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"DESHCART_APP_ENV" required:"true"`
	Port         string `envconfig:"DESHCART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"DESHCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DESHCART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DESHCART_DB_DSN"`
	Driver string `envconfig:"DESHCART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DESHCART_DB_HOST"`
	LegacyPort     int    `envconfig:"DESHCART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DESHCART_DB_USER"`
	LegacyPassword string `envconfig:"DESHCART_DB_PASSWORD"`
	LegacyName     string `envconfig:"DESHCART_DB_NAME"`
	LegacySSLMode  string `envconfig:"DESHCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DESHCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DESHCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DESHCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DESHCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DESHCART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DESHCART_REDIS_ADDR"`
	Password     string        `envconfig:"DESHCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"DESHCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DESHCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DESHCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DESHCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DESHCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DESHCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type CheckoutConfig struct {
	ReservationTTL time.Duration `envconfig:"DESHCART_RESERVATION_TTL" default:"15m"`
	ReturnWindow   time.Duration `envconfig:"DESHCART_RETURN_WINDOW" default:"168h"`
	Currency       string        `envconfig:"DESHCART_CURRENCY" default:"BDT"`
}

type GatewaysConfig struct {
	Card   CardGatewayConfig
	Wallet WalletGatewayConfig

	InitiateTimeout time.Duration `envconfig:"DESHCART_GATEWAY_INITIATE_TIMEOUT" default:"10s"`
	InitiateRetries int           `envconfig:"DESHCART_GATEWAY_INITIATE_RETRIES" default:"3"`
}

type CardGatewayConfig struct {
	BaseURL      string `envconfig:"DESHCART_CARD_GATEWAY_BASE_URL"`
	StoreID      string `envconfig:"DESHCART_CARD_GATEWAY_STORE_ID"`
	SharedSecret string `envconfig:"DESHCART_CARD_GATEWAY_SECRET"`
	ReturnURL    string `envconfig:"DESHCART_CARD_GATEWAY_RETURN_URL"`
	CallbackURL  string `envconfig:"DESHCART_CARD_GATEWAY_CALLBACK_URL"`
}

type WalletGatewayConfig struct {
	BaseURL      string `envconfig:"DESHCART_WALLET_GATEWAY_BASE_URL"`
	MerchantID   string `envconfig:"DESHCART_WALLET_GATEWAY_MERCHANT_ID"`
	SharedSecret string `envconfig:"DESHCART_WALLET_GATEWAY_SECRET"`
	CallbackURL  string `envconfig:"DESHCART_WALLET_GATEWAY_CALLBACK_URL"`
}

type SweepConfig struct {
	Interval       time.Duration `envconfig:"DESHCART_SWEEP_INTERVAL" default:"1m"`
	AttemptTimeout time.Duration `envconfig:"DESHCART_ATTEMPT_TIMEOUT" default:"2h"`
	LockTTL        time.Duration `envconfig:"DESHCART_SWEEP_LOCK_TTL" default:"5m"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"DESHCART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"DESHCART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"DESHCART_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"DESHCART_OUTBOX_RETENTION" default:"720h"`
	IdempotencyTTL time.Duration `envconfig:"DESHCART_OUTBOX_IDEMPOTENCY_TTL" default:"168h"`
}

type PubSubConfig struct {
	ProjectID          string `envconfig:"DESHCART_GCP_PROJECT_ID" required:"true"`
	OrdersTopic        string `envconfig:"DESHCART_PUBSUB_ORDERS_TOPIC" default:"dc-order-events"`
	NotificationsTopic string `envconfig:"DESHCART_PUBSUB_NOTIFICATIONS_TOPIC" default:"dc-notification-events"`
	ERPTopic           string `envconfig:"DESHCART_PUBSUB_ERP_TOPIC" default:"dc-erp-events"`
	AlertsTopic        string `envconfig:"DESHCART_PUBSUB_ALERTS_TOPIC" default:"dc-ops-alerts"`
	ERPSubscription    string `envconfig:"DESHCART_PUBSUB_ERP_SUBSCRIPTION" default:"dc-erp-sync-worker"`
}

type ERPConfig struct {
	Endpoint   string        `envconfig:"DESHCART_ERP_ENDPOINT"`
	APIKey     string        `envconfig:"DESHCART_ERP_API_KEY"`
	Timeout    time.Duration `envconfig:"DESHCART_ERP_TIMEOUT" default:"10s"`
	MaxRetries uint64        `envconfig:"DESHCART_ERP_MAX_RETRIES" default:"4"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"DESHCART_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"DESHCART_ARGON_TIME" default:"1"`
	ArgonParallelism int `envconfig:"DESHCART_ARGON_PARALLELISM" default:"4"`
	ArgonSaltLen     int `envconfig:"DESHCART_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"DESHCART_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"DESHCART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"DESHCART_AUTO_MIGRATE" default:"false"`
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
