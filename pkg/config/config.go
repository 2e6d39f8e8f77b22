package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Webhook      WebhookConfig
	Activation   ActivationConfig
	Conference   ConferenceConfig
	CRM          CRMConfig
	Calendar     CalendarConfig
	Mail         MailConfig
	Cron         CronConfig
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
	Env          string `envconfig:"WEBINARS_APP_ENV" required:"true"`
	Port         string `envconfig:"WEBINARS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"WEBINARS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WEBINARS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"WEBINARS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"WEBINARS_DB_DSN"`
	Driver string `envconfig:"WEBINARS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WEBINARS_DB_HOST"`
	LegacyPort     int    `envconfig:"WEBINARS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WEBINARS_DB_USER"`
	LegacyPassword string `envconfig:"WEBINARS_DB_PASSWORD"`
	LegacyName     string `envconfig:"WEBINARS_DB_NAME"`
	LegacySSLMode  string `envconfig:"WEBINARS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WEBINARS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WEBINARS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WEBINARS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WEBINARS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WEBINARS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WEBINARS_REDIS_ADDR"`
	Password     string        `envconfig:"WEBINARS_REDIS_PASSWORD"`
	DB           int           `envconfig:"WEBINARS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WEBINARS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WEBINARS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WEBINARS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WEBINARS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WEBINARS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type WebhookConfig struct {
	// AutoCreateDates controls whether unknown occurrence dates are created on
	// the fly instead of rejecting the registration.
	AutoCreateDates   bool   `envconfig:"WEBINARS_WEBHOOK_AUTO_CREATE_DATES" default:"true"`
	DefaultErrorEmail string `envconfig:"WEBINARS_WEBHOOK_DEFAULT_ERROR_EMAIL" default:"info@awesometechtraining.com"`
	Timezone          string `envconfig:"WEBINARS_WEBHOOK_TIMEZONE" default:"Europe/London"`
}

type ActivationConfig struct {
	Timeout   time.Duration `envconfig:"WEBINARS_ACTIVATION_TIMEOUT" default:"30s"`
	UserAgent string        `envconfig:"WEBINARS_ACTIVATION_USER_AGENT" default:"Webinar-Backoffice/1.0"`
}

type ConferenceConfig struct {
	BaseURL      string        `envconfig:"WEBINARS_CONFERENCE_BASE_URL" default:"https://api.zoom.us/v2"`
	TokenURL     string        `envconfig:"WEBINARS_CONFERENCE_TOKEN_URL" default:"https://zoom.us/oauth/token"`
	AccountID    string        `envconfig:"WEBINARS_CONFERENCE_ACCOUNT_ID"`
	ClientID     string        `envconfig:"WEBINARS_CONFERENCE_CLIENT_ID"`
	ClientSecret string        `envconfig:"WEBINARS_CONFERENCE_CLIENT_SECRET"`
	Timeout      time.Duration `envconfig:"WEBINARS_CONFERENCE_TIMEOUT" default:"15s"`
}

// Configured reports whether the provider credentials are present. The
// webhook pipeline skips conferencing registration entirely when they are not.
func (c ConferenceConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type CRMConfig struct {
	BaseURL      string        `envconfig:"WEBINARS_CRM_BASE_URL"`
	TokenURL     string        `envconfig:"WEBINARS_CRM_TOKEN_URL"`
	ClientID     string        `envconfig:"WEBINARS_CRM_CLIENT_ID"`
	ClientSecret string        `envconfig:"WEBINARS_CRM_CLIENT_SECRET"`
	Username     string        `envconfig:"WEBINARS_CRM_USERNAME"`
	Password     string        `envconfig:"WEBINARS_CRM_PASSWORD"`
	TaskOwnerID  string        `envconfig:"WEBINARS_CRM_TASK_OWNER_ID"`
	Timeout      time.Duration `envconfig:"WEBINARS_CRM_TIMEOUT" default:"20s"`
}

type CalendarConfig struct {
	BaseURL        string        `envconfig:"WEBINARS_CALENDAR_BASE_URL"`
	TokenURL       string        `envconfig:"WEBINARS_CALENDAR_TOKEN_URL"`
	ClientID       string        `envconfig:"WEBINARS_CALENDAR_CLIENT_ID"`
	ClientSecret   string        `envconfig:"WEBINARS_CALENDAR_CLIENT_SECRET"`
	OrganizerEmail string        `envconfig:"WEBINARS_CALENDAR_ORGANIZER_EMAIL"`
	Timeout        time.Duration `envconfig:"WEBINARS_CALENDAR_TIMEOUT" default:"15s"`
}

type MailConfig struct {
	APIURL    string        `envconfig:"WEBINARS_MAIL_API_URL"`
	APIKey    string        `envconfig:"WEBINARS_MAIL_API_KEY"`
	FromEmail string        `envconfig:"WEBINARS_MAIL_FROM_EMAIL" default:"noreply@awesometechtraining.com"`
	Timeout   time.Duration `envconfig:"WEBINARS_MAIL_TIMEOUT" default:"10s"`
}

type CronConfig struct {
	Interval             time.Duration `envconfig:"WEBINARS_CRON_INTERVAL" default:"10m"`
	ActivationBatchLimit int           `envconfig:"WEBINARS_CRON_ACTIVATION_BATCH_LIMIT" default:"100"`
	SyncBatchLimit       int           `envconfig:"WEBINARS_CRON_SYNC_BATCH_LIMIT" default:"50"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"WEBINARS_AUTO_MIGRATE" default:"false"`
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
