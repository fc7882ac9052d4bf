package config

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/auth"
	"github.com/sakif/notebox/internal/tenant"
)

var allKeys = []string{
	"PORT", "LOG_LEVEL", "DB_PATH", "PUBLIC_URL", "JWT_SECRET", "SESSION_TTL",
	"GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET",
	"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET",
	"DISCORD_CLIENT_ID", "DISCORD_CLIENT_SECRET",
	"TURSO_API_URL", "TURSO_API_TOKEN", "TURSO_ORG_ID", "TURSO_GROUP", "TURSO_LOCATION",
	"TURSO_IMAGE", "TURSO_TEMPLATE_DB", "TURSO_DATABASE_URL", "TURSO_AUTH_TOKEN", "TENANT_DB_DRIVER",
	"PROVISION_TIMEOUT", "PROVISION_SETTLE_DELAY", "PROVISION_POLL_INTERVAL",
	"PROVISION_POLL_MAX_INTERVAL", "PROVISION_MAX_ATTEMPTS",
}

// clearEnv blanks every key so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func setValidEnv(t *testing.T) {
	t.Helper()
	clearEnv(t)
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("GITHUB_CLIENT_ID", "gh-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "gh-secret")
	t.Setenv("TURSO_API_TOKEN", "api-token")
	t.Setenv("TURSO_ORG_ID", "acme")
	t.Setenv("TURSO_TEMPLATE_DB", "parent-db")
	t.Setenv("TURSO_DATABASE_URL", "libsql://parent-db-acme.turso.io")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	def := tenant.DefaultProvisionerOptions()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "data/notebox.db", cfg.Server.DBPath)
	assert.Equal(t, "http://localhost:8080", cfg.Server.PublicURL)
	assert.Equal(t, auth.DefaultSessionTTL, cfg.Auth.SessionTTL)
	assert.Equal(t, tenant.DefaultAPIURL, cfg.Turso.APIURL)
	assert.Equal(t, "default", cfg.Turso.Group)
	assert.Equal(t, def, cfg.ProvisionerOptions())
}

func TestLoad_Overrides(t *testing.T) {
	setValidEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("PUBLIC_URL", "https://notes.example.com/")
	t.Setenv("SESSION_TTL", "24h")
	t.Setenv("PROVISION_TIMEOUT", "10s")
	t.Setenv("PROVISION_MAX_ATTEMPTS", "3")
	t.Setenv("TURSO_GROUP", "eu")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "https://notes.example.com", cfg.Server.PublicURL)
	assert.Equal(t, "https://notes.example.com/auth/google/callback", cfg.CallbackURL("google"))
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 10*time.Second, cfg.Provision.Timeout)
	assert.Equal(t, 3, cfg.Provision.MaxAttempts)

	cc := cfg.ClientConfig()
	assert.Equal(t, "api-token", cc.APIToken)
	assert.Equal(t, "acme", cc.OrgID)
	assert.Equal(t, "eu", cc.Group)
	assert.Equal(t, "parent-db", cc.TemplateName)
}

func TestLoad_MalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "eighty")
	t.Setenv("PROVISION_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)

	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	for _, e := range errs {
		assert.True(t, errors.Is(e, apperror.ErrConfiguration), "got %v", e)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantErr   bool
		wantField []string
	}{
		{name: "valid"},
		{
			name:      "missing control plane credentials",
			env:       map[string]string{"TURSO_API_TOKEN": "", "TURSO_ORG_ID": ""},
			wantErr:   true,
			wantField: []string{"TURSO_API_TOKEN,TURSO_ORG_ID"},
		},
		{
			name:      "missing template",
			env:       map[string]string{"TURSO_TEMPLATE_DB": ""},
			wantErr:   true,
			wantField: []string{"TURSO_TEMPLATE_DB"},
		},
		{
			name:      "short secret",
			env:       map[string]string{"JWT_SECRET": "short"},
			wantErr:   true,
			wantField: []string{"JWT_SECRET"},
		},
		{
			name:      "url without template name",
			env:       map[string]string{"TURSO_DATABASE_URL": "libsql://other-acme.turso.io"},
			wantErr:   true,
			wantField: []string{"TURSO_DATABASE_URL"},
		},
		{
			name:      "no providers",
			env:       map[string]string{"GITHUB_CLIENT_SECRET": ""},
			wantErr:   true,
			wantField: []string{"GITHUB_CLIENT_ID"},
		},
		{
			name:      "several problems reported together",
			env:       map[string]string{"JWT_SECRET": "", "PROVISION_MAX_ATTEMPTS": "0"},
			wantErr:   true,
			wantField: []string{"JWT_SECRET", "PROVISION_MAX_ATTEMPTS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setValidEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			require.NoError(t, err)

			err = cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)

			var fields []string
			for _, e := range multierr.Errors(err) {
				var appErr *apperror.AppError
				require.ErrorAs(t, e, &appErr)
				assert.ErrorIs(t, e, apperror.ErrConfiguration)
				fields = append(fields, appErr.Field)
			}
			assert.Equal(t, tt.wantField, fields)
		})
	}
}

func TestOAuthClient_Enabled(t *testing.T) {
	assert.True(t, OAuthClient{ClientID: "id", ClientSecret: "s"}.Enabled())
	assert.False(t, OAuthClient{ClientID: "id"}.Enabled())
	assert.False(t, OAuthClient{}.Enabled())
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := &Config{Server: ServerConfig{LogLevel: in}}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
