package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

var ErrMissingSecret = errors.New("JWT_SECRET and REFRESH_SECRET must be set and distinct")

// Config centraliza la configuración del servicio.
type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"development"`
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL   string `env:"DATABASE_URL"`
	DBMaxConns    int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	JWTSecret            string        `env:"JWT_SECRET"`
	RefreshSecret        string        `env:"REFRESH_SECRET"`
	JWTIssuer            string        `env:"JWT_ISSUER" envDefault:"vibe-next"`
	AccessTokenTTL       time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL      time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	MaxSessionDuration   time.Duration `env:"MAX_SESSION_DURATION" envDefault:"720h"`
	VerificationTTL      time.Duration `env:"VERIFICATION_TTL" envDefault:"24h"`
	PasswordResetTTL     time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`
	BcryptCost           int           `env:"BCRYPT_COST" envDefault:"10"`
	RequireVerifiedLogin bool          `env:"REQUIRE_VERIFIED_LOGIN" envDefault:"true"`

	PublicBaseURL      string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`
	CronSecret         string        `env:"CRON_SECRET"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"0s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"VoiceToon"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	EmailRateWindow time.Duration `env:"EMAIL_RATE_WINDOW" envDefault:"10m"`
	EmailRateMax    int           `env:"EMAIL_RATE_MAX" envDefault:"3"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rechaza configuraciones con las que el servicio no debe arrancar.
func (c *Config) Validate() error {
	access := strings.TrimSpace(c.JWTSecret)
	refresh := strings.TrimSpace(c.RefreshSecret)
	if access == "" || refresh == "" || access == refresh {
		return ErrMissingSecret
	}
	if c.StoreDriver == "postgres" && strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required for the postgres store")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
