// Package config loads the academy settings from the environment.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/goliatone/go-academy/database"
)

// EnvPrefix prefixes every environment variable, ACADEMY_ACCESS_SECRET and so on.
const EnvPrefix = "ACADEMY"

// Notifier backends
const (
	NotifierLog      = "log"
	NotifierSendGrid = "sendgrid"
	NotifierRedis    = "redis"
)

// Config is read once at startup and never mutated. Its getters satisfy
// academy.Config.
type Config struct {
	Debug bool `mapstructure:"debug"`

	Addr        string `mapstructure:"addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
	DatabaseDSN   string        `mapstructure:"database_dsn"`
	AutoMigrate   bool          `mapstructure:"auto_migrate"`
	DBPingTimeout time.Duration `mapstructure:"db_ping_timeout"`

	Issuer        string        `mapstructure:"issuer"`
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	SetupSecret   string        `mapstructure:"setup_secret"`
	ResetSecret   string        `mapstructure:"reset_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	SetupTTL      time.Duration `mapstructure:"setup_ttl"`
	ResetTTL      time.Duration `mapstructure:"reset_ttl"`

	TokenLookup       string `mapstructure:"token_lookup"`
	AuthScheme        string `mapstructure:"auth_scheme"`
	ContextKey        string `mapstructure:"context_key"`
	RefreshCookieName string `mapstructure:"refresh_cookie_name"`
	SecureCookies     bool   `mapstructure:"secure_cookies"`
	PublicURL         string `mapstructure:"public_url"`

	Notifier        string `mapstructure:"notifier"`
	AppName         string `mapstructure:"app_name"`
	FromEmail       string `mapstructure:"from_email"`
	SendGridKey     string `mapstructure:"sendgrid_key"`
	RedisAddr       string `mapstructure:"redis_addr"`
	RedisQueueKey   string `mapstructure:"redis_queue_key"`
	ActivityStream  string `mapstructure:"activity_stream"`
	LoginPerMinute  int    `mapstructure:"login_per_minute"`
	ForgotPerMinute int    `mapstructure:"forgot_per_minute"`

	BootstrapEmail    string `mapstructure:"bootstrap_email"`
	BootstrapPassword string `mapstructure:"bootstrap_password"`
}

var defaults = map[string]any{
	"debug":               false,
	"addr":                ":8080",
	"metrics_addr":        ":9090",
	"database_dsn":        "file:academy.db?cache=shared",
	"auto_migrate":        true,
	"db_ping_timeout":     5 * time.Second,
	"issuer":              "go-academy",
	"access_secret":       "",
	"refresh_secret":      "",
	"setup_secret":        "",
	"reset_secret":        "",
	"access_ttl":          15 * time.Minute,
	"refresh_ttl":         7 * 24 * time.Hour,
	"setup_ttl":           72 * time.Hour,
	"reset_ttl":           time.Hour,
	"token_lookup":        "header:Authorization",
	"auth_scheme":         "Bearer",
	"context_key":         "user",
	"refresh_cookie_name": "refresh_token",
	"secure_cookies":      true,
	"public_url":          "http://localhost:8080",
	"notifier":            NotifierLog,
	"app_name":            "Academy",
	"from_email":          "noreply@localhost",
	"sendgrid_key":        "",
	"redis_addr":          "localhost:6379",
	"redis_queue_key":     "academy:notifications",
	"activity_stream":     "academy:activity",
	"login_per_minute":    10,
	"forgot_per_minute":   5,
	"bootstrap_email":     "",
	"bootstrap_password":  "",
}

// Load reads the dotenv files, if any, and then the environment. Missing
// dotenv files are not an error.
func Load(dotenv ...string) (*Config, error) {
	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, path := range dotenv {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		if err := godotenv.Load(path); err != nil {
			return nil, err
		}
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return FromViper(v)
}

// FromViper decodes and validates v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	cfg.Notifier = strings.ToLower(strings.TrimSpace(cfg.Notifier))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	secret := []validation.Rule{validation.Required, validation.Length(32, 0)}
	return validation.ValidateStruct(&c,
		validation.Field(&c.AccessSecret, secret...),
		validation.Field(&c.RefreshSecret, append(secret, validation.NotIn(c.AccessSecret).Error("must differ from the access secret"))...),
		validation.Field(&c.SetupSecret, append(secret, validation.NotIn(c.AccessSecret, c.RefreshSecret).Error("must differ from the other secrets"))...),
		validation.Field(&c.ResetSecret, append(secret, validation.NotIn(c.AccessSecret, c.RefreshSecret, c.SetupSecret).Error("must differ from the other secrets"))...),
		validation.Field(&c.AccessTTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.RefreshTTL, validation.Required, validation.Min(c.AccessTTL)),
		validation.Field(&c.SetupTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.ResetTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.DatabaseDSN, validation.Required),
		validation.Field(&c.PublicURL, validation.Required, is.URL),
		validation.Field(&c.Notifier, validation.In(NotifierLog, NotifierSendGrid, NotifierRedis)),
		validation.Field(&c.SendGridKey, validation.When(c.Notifier == NotifierSendGrid, validation.Required)),
		validation.Field(&c.FromEmail, validation.When(c.Notifier == NotifierSendGrid, validation.Required, is.EmailFormat)),
		validation.Field(&c.RedisAddr, validation.When(c.Notifier == NotifierRedis, validation.Required)),
		validation.Field(&c.LoginPerMinute, validation.Min(1)),
		validation.Field(&c.ForgotPerMinute, validation.Min(1)),
		validation.Field(&c.BootstrapEmail, is.EmailFormat),
		validation.Field(&c.BootstrapPassword, validation.When(c.BootstrapEmail != "", validation.Required, validation.Length(8, 100))),
	)
}

func (c Config) GetIssuer() string { return c.Issuer }
func (c Config) GetAccessSecret() string { return c.AccessSecret }
func (c Config) GetRefreshSecret() string { return c.RefreshSecret }
func (c Config) GetSetupSecret() string { return c.SetupSecret }
func (c Config) GetResetSecret() string { return c.ResetSecret }
func (c Config) GetAccessTTL() time.Duration { return c.AccessTTL }
func (c Config) GetRefreshTTL() time.Duration { return c.RefreshTTL }
func (c Config) GetSetupTTL() time.Duration { return c.SetupTTL }
func (c Config) GetResetTTL() time.Duration { return c.ResetTTL }
func (c Config) GetTokenLookup() string { return c.TokenLookup }
func (c Config) GetAuthScheme() string { return c.AuthScheme }
func (c Config) GetContextKey() string { return c.ContextKey }
func (c Config) GetRefreshCookieName() string { return c.RefreshCookieName }
func (c Config) GetSecureCookies() bool { return c.SecureCookies }
func (c Config) GetPublicURL() string { return c.PublicURL }

// Persistence returns the settings for the persistence client.
func (c Config) Persistence() database.Settings {
	return database.Settings{
		DSN:         c.DatabaseDSN,
		Debug:       c.Debug,
		PingTimeout: c.DBPingTimeout,
		AutoMigrate: c.AutoMigrate,
	}
}
