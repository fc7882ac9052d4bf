// Package config loads notebox settings from the environment.
//
// A .env file in the working directory is read first if present; real
// environment variables always win over it.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/auth"
	"github.com/sakif/notebox/internal/tenant"
)

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Turso     TursoConfig
	Provision ProvisionConfig
}

type ServerConfig struct {
	Port      int
	LogLevel  string
	DBPath    string // accounts database
	PublicURL string // base of the OAuth callback URLs
}

type AuthConfig struct {
	JWTSecret  string
	SessionTTL time.Duration
	GitHub     OAuthClient
	Google     OAuthClient
	Discord    OAuthClient
}

// OAuthClient is one provider's app registration. A provider is offered
// only when both values are set.
type OAuthClient struct {
	ClientID     string
	ClientSecret string
}

func (c OAuthClient) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// TursoConfig covers both the control plane that creates tenant databases
// and the connection strings used to reach them.
type TursoConfig struct {
	APIURL       string
	APIToken     string
	OrgID        string
	Group        string
	Location     string
	Image        string
	TemplateDB   string
	DatabaseURL  string // connection string of the template database
	AuthToken    string
	TenantDriver string
}

type ProvisionConfig struct {
	Timeout         time.Duration
	SettleDelay     time.Duration
	PollInterval    time.Duration
	PollMaxInterval time.Duration
	MaxAttempts     int
}

// Load reads the configuration. Malformed values (a non-numeric PORT, an
// unparsable duration) are errors; missing required values are left for
// Validate so they can all be reported at once.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs error
	duration := func(key string, def time.Duration) time.Duration {
		d, err := getEnvAsDuration(key, def)
		errs = multierr.Append(errs, err)
		return d
	}
	integer := func(key string, def int) int {
		n, err := getEnvAsInt(key, def)
		errs = multierr.Append(errs, err)
		return n
	}

	defaults := tenant.DefaultProvisionerOptions()
	port := integer("PORT", 8080)

	cfg := &Config{
		Server: ServerConfig{
			Port:      port,
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			DBPath:    getEnv("DB_PATH", "data/notebox.db"),
			PublicURL: strings.TrimRight(getEnv("PUBLIC_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", ""),
			SessionTTL: duration("SESSION_TTL", auth.DefaultSessionTTL),
			GitHub:     oauthClient("GITHUB"),
			Google:     oauthClient("GOOGLE"),
			Discord:    oauthClient("DISCORD"),
		},
		Turso: TursoConfig{
			APIURL:       getEnv("TURSO_API_URL", tenant.DefaultAPIURL),
			APIToken:     getEnv("TURSO_API_TOKEN", ""),
			OrgID:        getEnv("TURSO_ORG_ID", ""),
			Group:        getEnv("TURSO_GROUP", "default"),
			Location:     getEnv("TURSO_LOCATION", ""),
			Image:        getEnv("TURSO_IMAGE", ""),
			TemplateDB:   getEnv("TURSO_TEMPLATE_DB", ""),
			DatabaseURL:  getEnv("TURSO_DATABASE_URL", ""),
			AuthToken:    getEnv("TURSO_AUTH_TOKEN", ""),
			TenantDriver: getEnv("TENANT_DB_DRIVER", ""),
		},
		Provision: ProvisionConfig{
			Timeout:         duration("PROVISION_TIMEOUT", defaults.Timeout),
			SettleDelay:     duration("PROVISION_SETTLE_DELAY", defaults.SettleDelay),
			PollInterval:    duration("PROVISION_POLL_INTERVAL", defaults.PollInterval),
			PollMaxInterval: duration("PROVISION_POLL_MAX_INTERVAL", defaults.PollMaxInterval),
			MaxAttempts:     integer("PROVISION_MAX_ATTEMPTS", defaults.MaxAttempts),
		},
	}
	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}

// Validate reports every problem at once. Each returned error is an
// apperror.ErrConfiguration; use multierr.Errors to list them.
func (c *Config) Validate() error {
	var missing []string
	for _, kv := range []struct{ key, value string }{
		{"JWT_SECRET", c.Auth.JWTSecret},
		{"TURSO_API_TOKEN", c.Turso.APIToken},
		{"TURSO_ORG_ID", c.Turso.OrgID},
		{"TURSO_TEMPLATE_DB", c.Turso.TemplateDB},
		{"TURSO_DATABASE_URL", c.Turso.DatabaseURL},
	} {
		if kv.value == "" {
			missing = append(missing, kv.key)
		}
	}

	var errs error
	if len(missing) > 0 {
		errs = multierr.Append(errs, apperror.MissingConfig(missing...))
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < auth.MinSecretLength {
		errs = multierr.Append(errs, apperror.InvalidConfig("JWT_SECRET",
			fmt.Sprintf("must be at least %d characters", auth.MinSecretLength)))
	}
	if c.Turso.TemplateDB != "" && c.Turso.DatabaseURL != "" &&
		!strings.Contains(c.Turso.DatabaseURL, c.Turso.TemplateDB) {
		errs = multierr.Append(errs, apperror.InvalidConfig("TURSO_DATABASE_URL",
			"must contain the template database name "+c.Turso.TemplateDB))
	}
	if c.Provision.MaxAttempts < 1 {
		errs = multierr.Append(errs, apperror.InvalidConfig("PROVISION_MAX_ATTEMPTS", "must be at least 1"))
	}
	if !c.Auth.GitHub.Enabled() && !c.Auth.Google.Enabled() && !c.Auth.Discord.Enabled() {
		errs = multierr.Append(errs, apperror.InvalidConfig("GITHUB_CLIENT_ID",
			"at least one of GitHub, Google or Discord must be configured"))
	}
	return errs
}

// CallbackURL is where provider name sends users back after consent.
func (c *Config) CallbackURL(provider string) string {
	return c.Server.PublicURL + "/auth/" + provider + "/callback"
}

// ClientConfig is the control-plane client configuration.
func (c *Config) ClientConfig() tenant.ClientConfig {
	return tenant.ClientConfig{
		BaseURL:      c.Turso.APIURL,
		APIToken:     c.Turso.APIToken,
		OrgID:        c.Turso.OrgID,
		Group:        c.Turso.Group,
		Location:     c.Turso.Location,
		Image:        c.Turso.Image,
		TemplateName: c.Turso.TemplateDB,
	}
}

// ProvisionerOptions are the provisioning time bounds.
func (c *Config) ProvisionerOptions() tenant.ProvisionerOptions {
	return tenant.ProvisionerOptions{
		Timeout:         c.Provision.Timeout,
		SettleDelay:     c.Provision.SettleDelay,
		PollInterval:    c.Provision.PollInterval,
		PollMaxInterval: c.Provision.PollMaxInterval,
		MaxAttempts:     c.Provision.MaxAttempts,
	}
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Server.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func oauthClient(prefix string) OAuthClient {
	return OAuthClient{
		ClientID:     getEnv(prefix+"_CLIENT_ID", ""),
		ClientSecret: getEnv(prefix+"_CLIENT_SECRET", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue, apperror.InvalidConfig(key, "must be an integer")
	}
	return value, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue, apperror.InvalidConfig(key, "must be a duration such as 30s")
	}
	return value, nil
}
