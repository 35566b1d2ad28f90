package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	// RulesDir points to a rule directory; empty uses the embedded rule set.
	RulesDir              string `mapstructure:"RULES_DIR"`
	RegistryLoadTimeoutMS int    `mapstructure:"REGISTRY_LOAD_TIMEOUT_MS"`

	NBQTopK int `mapstructure:"NBQ_TOP_K"`
	NBQCap  int `mapstructure:"NBQ_CAP"`

	ExtractAPIURL string `mapstructure:"EXTRACT_API_URL"`
	ExtractAPIKey string `mapstructure:"EXTRACT_API_KEY"`

	AuthIssuer   string `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL  string `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`

	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
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
	v.SetDefault("REGISTRY_LOAD_TIMEOUT_MS", 5000)
	v.SetDefault("NBQ_TOP_K", 8)
	v.SetDefault("NBQ_CAP", 3)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"RULES_DIR", "REGISTRY_LOAD_TIMEOUT_MS", "NBQ_TOP_K", "NBQ_CAP",
		"EXTRACT_API_URL", "EXTRACT_API_KEY",
		"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE",
		"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
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

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure AUTH_ISSUER for production.")
		log.Println("WARNING: ============================================================")
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

// Validate checks that the configuration is safe to run. Outside development
// AUTH_ISSUER must be set so that real JWT authentication is enforced. The
// database is optional: without DATABASE_URL cases are kept in memory only.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" {
		return fmt.Errorf(
			"AUTH_ISSUER must be set when ENV is %q; refusing to start without authentication configuration", c.Env)
	}
	if c.NBQTopK < 1 {
		return fmt.Errorf("NBQ_TOP_K must be >= 1, got %d", c.NBQTopK)
	}
	if c.NBQCap < 1 {
		return fmt.Errorf("NBQ_CAP must be >= 1, got %d", c.NBQCap)
	}
	if c.RegistryLoadTimeoutMS < 1 {
		return fmt.Errorf("REGISTRY_LOAD_TIMEOUT_MS must be positive, got %d", c.RegistryLoadTimeoutMS)
	}
	if c.DatabaseURL == "" && c.IsProduction() {
		log.Println("WARNING: no DATABASE_URL configured; triage cases will not survive restarts")
	}
	return nil
}
