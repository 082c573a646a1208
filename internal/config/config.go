// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App          AppConfig          `koanf:"app"`
	Server       ServerConfig       `koanf:"server"`
	Database     DatabaseConfig     `koanf:"database"`
	Redis        RedisConfig        `koanf:"redis"`
	JWT          JWTConfig          `koanf:"jwt"`
	RateLimit    RateLimitConfig    `koanf:"rate_limit"`
	CORS         CORSConfig         `koanf:"cors"`
	Log          LogConfig          `koanf:"log"`
	Otel         OtelConfig         `koanf:"otel"`
	Mail         MailConfig         `koanf:"mail"`
	Storage      StorageConfig      `koanf:"storage"`
	Verification VerificationConfig `koanf:"verification"`
	Jobs         JobsConfig         `koanf:"jobs"`
	Catalog      CatalogConfig      `koanf:"catalog"`
}

type AppConfig struct {
	Name              string `koanf:"name"`
	Version           string `koanf:"version"`
	Environment       string `koanf:"environment"`
	PublicURL         string `koanf:"public_url"`
	VerifyRedirectURL string `koanf:"verify_redirect_url"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxUploadBytes  int64         `koanf:"max_upload_bytes"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

type RedisConfig struct {
	URL          string `koanf:"url"`
	PoolSize     int    `koanf:"pool_size"`
	MinIdleConns int    `koanf:"min_idle_conns"`
}

type JWTConfig struct {
	PrivateKeyPath string        `koanf:"private_key_path"`
	PublicKeyPath  string        `koanf:"public_key_path"`
	SessionTTL     time.Duration `koanf:"session_ttl"`
	Issuer         string        `koanf:"issuer"`
	Audience       string        `koanf:"audience"`
	CookieName     string        `koanf:"cookie_name"`
}

type RateLimitConfig struct {
	Requests     int           `koanf:"requests"`
	Window       time.Duration `koanf:"window"`
	Burst        int           `koanf:"burst"`
	AuthRequests int           `koanf:"auth_requests"`
	AuthBurst    int           `koanf:"auth_burst"`

	// WriteRequests bounds registration and rating submissions per identity.
	WriteRequests int `koanf:"write_requests"`
	WriteBurst    int `koanf:"write_burst"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type MailConfig struct {
	Enabled   bool   `koanf:"enabled"`
	SMTPHost  string `koanf:"smtp_host"`
	SMTPPort  int    `koanf:"smtp_port"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
	FromEmail string `koanf:"from_email"`
	FromName  string `koanf:"from_name"`

	// LogLinks prints full verification links while mail is disabled.
	LogLinks bool `koanf:"log_links"`
}

type StorageConfig struct {
	Type      string `koanf:"type"`
	LocalPath string `koanf:"local_path"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	UseSSL    bool   `koanf:"use_ssl"`
}

type VerificationConfig struct {
	TokenTTL       time.Duration `koanf:"token_ttl"`
	ResendCooldown time.Duration `koanf:"resend_cooldown"`
}

type JobsConfig struct {
	Enabled          bool          `koanf:"enabled"`
	TokenCleanupSpec string        `koanf:"token_cleanup_spec"`
	TokenRetention   time.Duration `koanf:"token_retention"`
}

// CatalogConfig is the static service catalog the registration validators
// check selections against.
type CatalogConfig struct {
	TrainingTypes   []string `koanf:"training_types"`
	DeliveryMethods []string `koanf:"delivery_methods"`
	ResearchLevels  []string `koanf:"research_levels"`
	BusinessStages  []string `koanf:"business_stages"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	out := &Config{}
	if err := k.Unmarshal("", out); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(out); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return out, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "Consultancy API",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.public_url":  "http://localhost:8080",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.max_upload_bytes": 10 << 20,

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",
		"database.auto_migrate":       true,

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,

		"jwt.session_ttl":      "24h",
		"jwt.issuer":           "consultancy-api",
		"jwt.audience":         "consultancy-web",
		"jwt.cookie_name":      "session",
		"jwt.private_key_path": "keys/private.pem",
		"jwt.public_key_path":  "keys/public.pem",

		"rate_limit.requests":       100,
		"rate_limit.window":         "1m",
		"rate_limit.burst":          20,
		"rate_limit.auth_requests":  10,
		"rate_limit.auth_burst":     5,
		"rate_limit.write_requests": 20,
		"rate_limit.write_burst":    5,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "consultancy-api",

		"mail.enabled":    false,
		"mail.smtp_port":  587,
		"mail.from_email": "no-reply@localhost",
		"mail.from_name":  "Consultancy",

		"storage.type":       "local",
		"storage.local_path": "uploads",
		"storage.bucket":     "consultancy-cvs",

		"verification.token_ttl":       "24h",
		"verification.resend_cooldown": "60s",

		"jobs.enabled":            true,
		"jobs.token_cleanup_spec": "0 30 3 * * *",
		"jobs.token_retention":    "168h",

		"catalog.training_types": []string{
			"Coding",
			"Data Analysis",
			"Digital Marketing",
			"Graphic Design",
			"Project Management",
			"Microsoft Office",
		},
		"catalog.delivery_methods": []string{"online", "in_person", "hybrid"},
		"catalog.research_levels": []string{
			"undergraduate",
			"masters",
			"phd",
			"other",
		},
		"catalog.business_stages": []string{"idea", "startup", "growth"},
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"DATABASE_AUTO_MIGRATE":       "database.auto_migrate",
	"REDIS_URL":                   "redis.url",
	"ENVIRONMENT":                 "app.environment",
	"PUBLIC_URL":                  "app.public_url",
	"VERIFY_REDIRECT_URL":         "app.verify_redirect_url",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_SESSION_TTL":             "jwt.session_ttl",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"RATE_LIMIT_WRITE_REQUESTS":   "rate_limit.write_requests",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"MAIL_ENABLED":                "mail.enabled",
	"MAIL_LOG_LINKS":              "mail.log_links",
	"SMTP_HOST":                   "mail.smtp_host",
	"SMTP_PORT":                   "mail.smtp_port",
	"SMTP_USERNAME":               "mail.username",
	"SMTP_PASSWORD":               "mail.password",
	"MAIL_FROM":                   "mail.from_email",
	"STORAGE_TYPE":                "storage.type",
	"STORAGE_LOCAL_PATH":          "storage.local_path",
	"STORAGE_ENDPOINT":            "storage.endpoint",
	"STORAGE_ACCESS_KEY":          "storage.access_key",
	"STORAGE_SECRET_KEY":          "storage.secret_key",
	"STORAGE_BUCKET":              "storage.bucket",
	"STORAGE_USE_SSL":             "storage.use_ssl",
	"JOBS_ENABLED":                "jobs.enabled",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.JWT.SessionTTL <= 0 {
		return fmt.Errorf("jwt.session_ttl must be positive")
	}

	if _, err := url.ParseRequestURI(c.App.PublicURL); err != nil {
		return fmt.Errorf("app.public_url is invalid: %w", err)
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
		if c.Mail.LogLinks {
			return fmt.Errorf("MAIL_LOG_LINKS must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	if c.Mail.Enabled && c.Mail.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when mail is enabled")
	}

	switch c.Storage.Type {
	case "local":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("storage.local_path is required")
		}
	case "minio":
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			return fmt.Errorf("storage endpoint and bucket are required for minio")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}

	if c.Verification.TokenTTL <= 0 {
		return fmt.Errorf("verification.token_ttl must be positive")
	}

	if len(c.Catalog.TrainingTypes) == 0 ||
		len(c.Catalog.DeliveryMethods) == 0 {
		return fmt.Errorf("catalog training types and delivery methods are required")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
