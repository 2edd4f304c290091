package config

const EnvPrefix = "PROCUREMENT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"

	ActiveScopeGlobal    = "global"
	ActiveScopeSubmitter = "submitter"
)

const (
	EnvAppEnv            = "PROCUREMENT_APP_ENV"
	EnvPort              = "PROCUREMENT_APP_PORT"
	EnvLogLevel          = "PROCUREMENT_LOG_LEVEL"
	EnvDBDriver          = "PROCUREMENT_DB_DRIVER"
	EnvDBDSN             = "PROCUREMENT_DB_DSN"
	EnvDBPath            = "PROCUREMENT_DB_PATH"
	EnvRedisURL          = "PROCUREMENT_REDIS_URL"
	EnvTelegramBotToken  = "PROCUREMENT_TELEGRAM_BOT_TOKEN"
	EnvAdminTGIDs        = "PROCUREMENT_ADMIN_TG_IDS"
	EnvDevAllowUnsafe    = "PROCUREMENT_DEV_ALLOW_UNSAFE"
	EnvActiveOrdersScope = "PROCUREMENT_ACTIVE_ORDERS_SCOPE"
	EnvAutoMigrate       = "PROCUREMENT_AUTO_MIGRATE"
	EnvOutboxInline      = "PROCUREMENT_OUTBOX_INLINE_DISPATCH"
	EnvSMTPHost          = "PROCUREMENT_SMTP_HOST"
	EnvSMTPFrom          = "PROCUREMENT_SMTP_FROM"
	EnvNotifyEmails      = "PROCUREMENT_NOTIFY_EMAILS"
)
