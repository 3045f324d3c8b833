package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultTenant string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	// Auth. JWTSecret enables HS256 validation; AuthIssuer/AuthJWKSURL
	// switch to external IdP validation.
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL  string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`

	// Email side channel (Resend).
	ResendAPIKey  string `mapstructure:"RESEND_API_KEY"`
	EmailFrom     string `mapstructure:"EMAIL_FROM"`
	EmailFromName string `mapstructure:"EMAIL_FROM_NAME"`

	// Base URL used when composing links in outbound email.
	PublicBaseURL string `mapstructure:"PUBLIC_BASE_URL"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("EMAIL_FROM", "reports@labflow.app")
	v.SetDefault("EMAIL_FROM_NAME", "LabFlow")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"DEFAULT_TENANT", "CORS_ORIGINS",
		"JWT_SECRET", "AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
		"RESEND_API_KEY", "EMAIL_FROM", "EMAIL_FROM_NAME", "PUBLIC_BASE_URL",
		"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Unauthenticated requests are granted the owner role.")
		log.Println("WARNING: Set ENV=production and JWT_SECRET or AUTH_ISSUER for production.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// EmailConfigured reports whether the Resend side channel can send mail.
func (c *Config) EmailConfigured() bool {
	return c.ResendAPIKey != ""
}

// Validate checks that the configuration is safe to run. Outside development
// some form of token validation (shared secret or external issuer) must be
// configured, and TLS file paths must accompany TLS_ENABLED.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" && c.AuthIssuer == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf(
			"JWT_SECRET or AUTH_ISSUER must be set when ENV=%q; refusing to start without authentication", c.Env)
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
