package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Platform  PlatformConfig  `mapstructure:"platform"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Registrar RegistrarConfig `mapstructure:"registrar"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type DatabaseConfig struct {
	Driver         string `mapstructure:"driver"`
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdleConns   int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// PlatformConfig is the DNS target every custom domain must point at.
type PlatformConfig struct {
	CNAMETarget string   `mapstructure:"cname_target"`
	ARecords    []string `mapstructure:"a_records"`
	Nameservers []string `mapstructure:"nameservers"`
}

type MonitorConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	DNSTimeout       time.Duration `mapstructure:"dns_timeout"`
	HealthTimeout    time.Duration `mapstructure:"health_timeout"`
	RegistrarTimeout time.Duration `mapstructure:"registrar_timeout"`
	WHOISTimeout     time.Duration `mapstructure:"whois_timeout"`
	RequireHealth    bool          `mapstructure:"require_health"`
}

type RegistrarConfig struct {
	Provider          string  `mapstructure:"provider"`
	BaseURL           string  `mapstructure:"base_url"`
	APIToken          string  `mapstructure:"api_token"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	RegionID          string  `mapstructure:"region_id"`
	AccessKeyID       string  `mapstructure:"access_key_id"`
	AccessKeySecret   string  `mapstructure:"access_key_secret"`
}

type NotifyConfig struct {
	Provider     string        `mapstructure:"provider"`
	ResendAPIKey string        `mapstructure:"resend_api_key"`
	FromEmail    string        `mapstructure:"from_email"`
	FromName     string        `mapstructure:"from_name"`
	SupportEmail string        `mapstructure:"support_email"`
	DedupTTL     time.Duration `mapstructure:"dedup_ttl"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type MetricsConfig struct {
	RemoteWriteURL string        `mapstructure:"remote_write_url"`
	TenantHeader   string        `mapstructure:"tenant_header"`
	OrgID          string        `mapstructure:"org_id"`
	AuthToken      string        `mapstructure:"auth_token"`
	BatchSize      int           `mapstructure:"batch_size"`
	FlushInterval  time.Duration `mapstructure:"flush_interval"`
}

const (
	ProviderNone   = "none"
	ProviderREST   = "rest"
	ProviderAliDNS = "alidns"

	NotifyLog   = "log"
	NotifyEmail = "email"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func Load() (*Config, error) {
	// A missing .env file is fine; real deployments use the environment.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("ACTIVATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.url", "")

	v.SetDefault("platform.cname_target", "")
	v.SetDefault("platform.a_records", []string{})
	v.SetDefault("platform.nameservers", []string{"8.8.8.8:53", "1.1.1.1:53"})

	v.SetDefault("monitor.tick_interval", "5m")
	v.SetDefault("monitor.timeout", "1h")
	v.SetDefault("monitor.dns_timeout", "5s")
	v.SetDefault("monitor.health_timeout", "10s")
	v.SetDefault("monitor.registrar_timeout", "10s")
	v.SetDefault("monitor.whois_timeout", "10s")
	v.SetDefault("monitor.require_health", false)

	v.SetDefault("registrar.provider", ProviderNone)
	v.SetDefault("registrar.base_url", "")
	v.SetDefault("registrar.api_token", "")
	v.SetDefault("registrar.requests_per_second", 5)
	v.SetDefault("registrar.region_id", "cn-hangzhou")
	v.SetDefault("registrar.access_key_id", "")
	v.SetDefault("registrar.access_key_secret", "")

	v.SetDefault("notify.provider", NotifyLog)
	v.SetDefault("notify.resend_api_key", "")
	v.SetDefault("notify.from_email", "")
	v.SetDefault("notify.from_name", "Domain Activator")
	v.SetDefault("notify.support_email", "")
	v.SetDefault("notify.dedup_ttl", "720h")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("metrics.remote_write_url", "")
	v.SetDefault("metrics.tenant_header", "X-Scope-OrgID")
	v.SetDefault("metrics.org_id", "domain-activator")
	v.SetDefault("metrics.auth_token", "")
	v.SetDefault("metrics.batch_size", 1000)
	v.SetDefault("metrics.flush_interval", "10s")
}

// Validate checks the settings both processes need. Missing platform
// targets are not reported here: they surface as a ConfigurationError on
// the first request instead.
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}

	if c.Monitor.TickInterval <= 0 {
		errs = append(errs, errors.New("monitor.tick_interval must be positive"))
	}
	if c.Monitor.Timeout < c.Monitor.TickInterval {
		errs = append(errs, errors.New("monitor.timeout must be at least one tick_interval"))
	}

	switch c.Registrar.Provider {
	case ProviderNone:
	case ProviderREST:
		if c.Registrar.BaseURL == "" {
			errs = append(errs, errors.New("registrar.base_url is required for the rest provider"))
		}
	case ProviderAliDNS:
		if c.Registrar.AccessKeyID == "" || c.Registrar.AccessKeySecret == "" {
			errs = append(errs, errors.New("registrar access keys are required for the alidns provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("registrar.provider: unknown provider %q", c.Registrar.Provider))
	}

	switch c.Notify.Provider {
	case NotifyLog:
	case NotifyEmail:
		if c.Notify.ResendAPIKey == "" || c.Notify.FromEmail == "" {
			errs = append(errs, errors.New("notify.resend_api_key and notify.from_email are required for the email provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("notify.provider: unknown provider %q", c.Notify.Provider))
	}

	return errors.Join(errs...)
}

// ValidateAPI adds the settings only the API process needs.
func (c *Config) ValidateAPI() error {
	err := c.Validate()
	if c.Auth.JWTSecret == "" {
		err = errors.Join(err, errors.New("auth.jwt_secret is required"))
	}
	return err
}
