package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"ekuphumuleni-api/pkg/email"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	// Server Configuration
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LOG_FILE"`
	SiteName    string `env:"SITE_NAME" envDefault:"Ekuphumuleni"`

	// SMTP Configuration
	SMTPHost              string        `env:"SMTP_HOST"`
	SMTPPort              int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPSecure            bool          `env:"SMTP_SECURE" envDefault:"false"`
	SMTPUser              string        `env:"SMTP_USER"`
	SMTPPassword          string        `env:"SMTP_PASSWORD"`
	SMTPFromName          string        `env:"SMTP_FROM_NAME" envDefault:"Ekuphumuleni"`
	SMTPFromEmail         string        `env:"SMTP_FROM_EMAIL"`
	SMTPConnectionTimeout time.Duration `env:"SMTP_CONNECTION_TIMEOUT" envDefault:"10s"`
	SMTPGreetingTimeout   time.Duration `env:"SMTP_GREETING_TIMEOUT" envDefault:"5s"`
	SMTPSocketTimeout     time.Duration `env:"SMTP_SOCKET_TIMEOUT" envDefault:"10s"`

	// Contact form routing
	ContactEmailTo       string `env:"CONTACT_EMAIL_TO"`
	ContactFallbackEmail string `env:"CONTACT_FALLBACK_EMAIL"`

	// Redis Configuration (optional; rate limiting falls back to memory)
	RedisURL      string `env:"REDIS_URL"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// Rate Limiting Configuration
	RateLimitContact int           `env:"RATE_LIMIT_CONTACT" envDefault:"5"`
	RateLimitWindow  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// IPs or CIDRs whose X-Forwarded-For is believed; empty trusts none
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// Basic auth for /metrics; open when unset
	MetricsUsername string `env:"METRICS_USERNAME"`
	MetricsPassword string `env:"METRICS_PASSWORD"`
}

// LoadConfig reads .env (when present) and the process environment.
// Missing SMTP settings are not an error here; they surface per request.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()
	return Parse()
}

// Parse builds a Config from the process environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.SMTPHost = strings.TrimSpace(cfg.SMTPHost)
	cfg.SMTPUser = strings.TrimSpace(cfg.SMTPUser)
	cfg.SMTPFromEmail = strings.TrimSpace(cfg.SMTPFromEmail)

	if cfg.SMTPFromEmail == "" {
		cfg.SMTPFromEmail = cfg.SMTPUser
	}
	if cfg.ContactEmailTo == "" {
		cfg.ContactEmailTo = cfg.SMTPFromEmail
	}
	if cfg.ContactFallbackEmail == "" {
		cfg.ContactFallbackEmail = cfg.ContactEmailTo
	}

	if cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
		return nil, fmt.Errorf("SMTP_PORT out of range: %d", cfg.SMTPPort)
	}
	if cfg.RateLimitContact < 0 {
		return nil, fmt.Errorf("RATE_LIMIT_CONTACT must not be negative: %d", cfg.RateLimitContact)
	}
	if cfg.RateLimitContact > 0 && cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_WINDOW must be positive: %s", cfg.RateLimitWindow)
	}

	proxies := cfg.TrustedProxies[:0]
	for _, proxy := range cfg.TrustedProxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return nil, fmt.Errorf("TRUSTED_PROXIES: invalid IP or CIDR %q", proxy)
			}
		}
		proxies = append(proxies, proxy)
	}
	cfg.TrustedProxies = proxies

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// MailSMTP is the transport configuration derived from the SMTP_* variables.
func (c *Config) MailSMTP() email.SMTPConfig {
	return email.SMTPConfig{
		Host:              c.SMTPHost,
		Port:              c.SMTPPort,
		Secure:            c.SMTPSecure,
		Username:          c.SMTPUser,
		Password:          c.SMTPPassword,
		FromName:          c.SMTPFromName,
		FromEmail:         c.SMTPFromEmail,
		ConnectionTimeout: c.SMTPConnectionTimeout,
		GreetingTimeout:   c.SMTPGreetingTimeout,
		SocketTimeout:     c.SMTPSocketTimeout,
	}
}

// Composer is the composition configuration for both contact emails.
func (c *Config) Composer() email.ComposerConfig {
	return email.ComposerConfig{
		SiteName:        c.SiteName,
		FromName:        c.SMTPFromName,
		FromEmail:       c.SMTPFromEmail,
		OwnerEmail:      c.ContactEmailTo,
		FallbackContact: c.ContactFallbackEmail,
	}
}
