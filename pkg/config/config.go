package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Telegram     TelegramConfig
	Orders       OrdersConfig
	FeatureFlags FeatureFlagsConfig
	Outbox       OutboxConfig
	SMTP         SMTPConfig
	Cron         CronConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Orders.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Telegram.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"PROCUREMENT_APP_ENV" default:"dev"`
	Port         string   `envconfig:"PROCUREMENT_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"PROCUREMENT_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"PROCUREMENT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"PROCUREMENT_CORS_ORIGINS" default:"*"`
	NodeID       int64    `envconfig:"PROCUREMENT_NODE_ID" default:"1"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PROCUREMENT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	Driver string `envconfig:"PROCUREMENT_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"PROCUREMENT_DB_DSN"`
	Path   string `envconfig:"PROCUREMENT_DB_PATH" default:"data/procurement.db"`

	MaxOpenConns    int           `envconfig:"PROCUREMENT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"PROCUREMENT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"PROCUREMENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PROCUREMENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	BusyTimeout     time.Duration `envconfig:"PROCUREMENT_DB_BUSY_TIMEOUT" default:"5s"`
}

// IsSQLite reports whether the embedded store is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"PROCUREMENT_REDIS_URL"`
	Address      string        `envconfig:"PROCUREMENT_REDIS_ADDR"`
	Password     string        `envconfig:"PROCUREMENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"PROCUREMENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PROCUREMENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PROCUREMENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PROCUREMENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PROCUREMENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PROCUREMENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured. Redis backs the
// idempotency store and the distributed cron lock; both degrade to
// in-process behaviour without it.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type TelegramConfig struct {
	BotToken       string        `envconfig:"PROCUREMENT_TELEGRAM_BOT_TOKEN"`
	AdminIDs       []string      `envconfig:"PROCUREMENT_ADMIN_TG_IDS"`
	DevAllowUnsafe bool          `envconfig:"PROCUREMENT_DEV_ALLOW_UNSAFE" default:"false"`
	InitDataMaxAge time.Duration `envconfig:"PROCUREMENT_TELEGRAM_INIT_DATA_MAX_AGE" default:"0"`
}

// IsAdmin reports whether the Telegram user id is listed as an administrator.
func (t TelegramConfig) IsAdmin(tgUserID string) bool {
	id := strings.TrimSpace(tgUserID)
	if id == "" {
		return false
	}
	for _, admin := range t.AdminIDs {
		if strings.TrimSpace(admin) == id {
			return true
		}
	}
	return false
}

func (t TelegramConfig) validate() error {
	for _, admin := range t.AdminIDs {
		trimmed := strings.TrimSpace(admin)
		if trimmed == "" {
			continue
		}
		if _, err := strconv.ParseInt(trimmed, 10, 64); err != nil {
			return fmt.Errorf("%s: invalid telegram id %q", EnvAdminTGIDs, trimmed)
		}
	}
	if strings.TrimSpace(t.BotToken) == "" && !t.DevAllowUnsafe {
		return fmt.Errorf("%s is required unless %s is set", EnvTelegramBotToken, EnvDevAllowUnsafe)
	}
	return nil
}

type OrdersConfig struct {
	ActiveScope string `envconfig:"PROCUREMENT_ACTIVE_ORDERS_SCOPE" default:"global"`
}

// SubmitterScoped reports whether staff only see pending orders from their
// own requisitions.
func (o OrdersConfig) SubmitterScoped() bool {
	return strings.EqualFold(strings.TrimSpace(o.ActiveScope), ActiveScopeSubmitter)
}

func (o OrdersConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(o.ActiveScope)) {
	case ActiveScopeGlobal, ActiveScopeSubmitter:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvActiveOrdersScope, ActiveScopeGlobal, ActiveScopeSubmitter)
	}
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PROCUREMENT_AUTO_MIGRATE" default:"true"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"PROCUREMENT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"PROCUREMENT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"PROCUREMENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	InlineDispatch bool          `envconfig:"PROCUREMENT_OUTBOX_INLINE_DISPATCH" default:"true"`
	Retention      time.Duration `envconfig:"PROCUREMENT_OUTBOX_RETENTION" default:"720h"`
}

func (o OutboxConfig) PollInterval() time.Duration {
	if o.PollIntervalMS <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(o.PollIntervalMS) * time.Millisecond
}

type SMTPConfig struct {
	Host     string   `envconfig:"PROCUREMENT_SMTP_HOST"`
	Port     int      `envconfig:"PROCUREMENT_SMTP_PORT" default:"587"`
	Username string   `envconfig:"PROCUREMENT_SMTP_USERNAME"`
	Password string   `envconfig:"PROCUREMENT_SMTP_PASSWORD"`
	From     string   `envconfig:"PROCUREMENT_SMTP_FROM"`
	To       []string `envconfig:"PROCUREMENT_NOTIFY_EMAILS"`
}

// Enabled reports whether e-mail notifications can be sent.
func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != "" && strings.TrimSpace(s.From) != "" && len(s.To) > 0
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PROCUREMENT_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"PROCUREMENT_CRON_LOCK_TTL" default:"10m"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"PROCUREMENT_METRICS_ENABLED" default:"true"`
}

func (db *DBConfig) ensureDSN() error {
	switch strings.ToLower(strings.TrimSpace(db.Driver)) {
	case DBDriverSQLite:
		if db.DSN != "" {
			return nil
		}
		if strings.TrimSpace(db.Path) == "" {
			return fmt.Errorf("either %s or %s is required for sqlite", EnvDBDSN, EnvDBPath)
		}
		busy := db.BusyTimeout.Milliseconds()
		if busy <= 0 {
			busy = 5000
		}
		db.DSN = fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d&_journal_mode=WAL&_txlock=immediate", db.Path, busy)
		return nil
	case DBDriverPostgres:
		if db.DSN == "" {
			return fmt.Errorf("%s is required for postgres", EnvDBDSN)
		}
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvDBDriver, DBDriverSQLite, DBDriverPostgres)
	}
}
