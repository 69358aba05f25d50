package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`

	SessionTTL              time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	MaxConcurrentSessions   int           `env:"MAX_CONCURRENT_SESSIONS" envDefault:"5"`
	AllowConcurrentSessions bool          `env:"ALLOW_CONCURRENT_SESSIONS" envDefault:"true"`
	SessionSweepInterval    time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"5m"`

	FailureWindow       time.Duration `env:"LOGIN_FAILURE_WINDOW" envDefault:"15m"`
	SuspiciousThreshold int           `env:"LOGIN_SUSPICIOUS_THRESHOLD" envDefault:"3"`
	LockoutThreshold    int           `env:"LOGIN_LOCKOUT_THRESHOLD" envDefault:"5"`
	LockoutDuration     time.Duration `env:"LOGIN_LOCKOUT_DURATION" envDefault:"30m"`

	AuditBatchSize     int           `env:"AUDIT_BATCH_SIZE" envDefault:"20"`
	AuditFlushInterval time.Duration `env:"AUDIT_FLUSH_INTERVAL" envDefault:"5s"`

	GeoEndpoint string `env:"GEO_ENDPOINT" envDefault:"http://ip-api.com"`

	MFAJWTSecret string        `env:"MFA_JWT_SECRET"`
	MFAIssuer    string        `env:"MFA_ISSUER" envDefault:"FundAdmin"`
	MFATokenTTL  time.Duration `env:"MFA_TOKEN_TTL" envDefault:"5m"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	AlertFrom    string `env:"ALERT_EMAIL_FROM"`
	AlertTo      string `env:"ALERT_EMAIL_TO"`

	CookieDomain  string `env:"COOKIE_DOMAIN"`
	SecureCookies bool   `env:"COOKIE_SECURE" envDefault:"true"`
}

func Load(logger logrus.FieldLogger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.WithError(err).Debug("no .env file loaded")
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
