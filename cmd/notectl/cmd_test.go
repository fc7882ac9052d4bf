package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/notebox/internal/tenant"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"JWT_SECRET", "GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET", "GOOGLE_CLIENT_ID",
		"GOOGLE_CLIENT_SECRET", "DISCORD_CLIENT_ID", "DISCORD_CLIENT_SECRET",
		"TURSO_API_URL", "TURSO_API_TOKEN", "TURSO_ORG_ID", "TURSO_TEMPLATE_DB",
		"TURSO_DATABASE_URL", "TURSO_AUTH_TOKEN", "TENANT_DB_DRIVER", "PORT",
		"PROVISION_SETTLE_DELAY", "PROVISION_POLL_INTERVAL",
	} {
		t.Setenv(k, "")
	}
}

// controlPlane creates whatever it is asked to and reports it as existing.
func controlPlane(t *testing.T) *httptest.Server {
	t.Helper()
	dbs := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		switch r.Method {
		case http.MethodGet:
			if !dbs[name] {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"database":{}}`))
		case http.MethodPost:
			key, _ := tenant.Key("u1")
			dbs[key] = true
			_, _ = w.Write([]byte(`{"database":{"Name":"` + key + `"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConfigCheck(t *testing.T) {
	clearEnv(t)

	out, err := run(t, "config", "check")
	require.Error(t, err)
	assert.Contains(t, out, "JWT_SECRET")
	assert.Contains(t, out, "TURSO_API_TOKEN")

	t.Setenv("JWT_SECRET", "0123456789abcdef")
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")
	t.Setenv("TURSO_API_TOKEN", "token")
	t.Setenv("TURSO_ORG_ID", "acme")
	t.Setenv("TURSO_TEMPLATE_DB", "parent-db")
	t.Setenv("TURSO_DATABASE_URL", "libsql://parent-db-acme.turso.io")

	out, err = run(t, "config", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration OK")
}

func TestTenantKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("TURSO_TEMPLATE_DB", "parent-db")
	t.Setenv("TURSO_DATABASE_URL", "libsql://parent-db-acme.turso.io")

	key, err := tenant.Key("u1")
	require.NoError(t, err)

	out, err := run(t, "tenant", "key", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, key+"\n")
	assert.Contains(t, out, "libsql://"+key+"-acme.turso.io")

	_, err = run(t, "tenant", "key")
	assert.Error(t, err, "user id is required")
}

func TestTenantExistsAndProvision(t *testing.T) {
	clearEnv(t)
	cp := controlPlane(t)
	t.Setenv("TURSO_API_URL", cp.URL)
	t.Setenv("TURSO_API_TOKEN", "token")
	t.Setenv("TURSO_ORG_ID", "acme")
	t.Setenv("TURSO_TEMPLATE_DB", "parent-db")
	t.Setenv("TURSO_DATABASE_URL", filepath.Join(t.TempDir(), "parent-db.db"))
	t.Setenv("PROVISION_SETTLE_DELAY", "1ms")
	t.Setenv("PROVISION_POLL_INTERVAL", "1ms")

	key, _ := tenant.Key("u1")

	out, err := run(t, "tenant", "exists", "u1")
	require.NoError(t, err)
	assert.Equal(t, key+" does not exist\n", out)

	out, err = run(t, "tenant", "provision", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, key+" ready")

	out, err = run(t, "tenant", "exists", "u1")
	require.NoError(t, err)
	assert.Equal(t, key+" exists\n", out)
}

func TestTenantProvision_MissingCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("TURSO_TEMPLATE_DB", "parent-db")
	t.Setenv("TURSO_DATABASE_URL", filepath.Join(t.TempDir(), "parent-db.db"))

	_, err := run(t, "tenant", "provision", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TURSO_API_TOKEN")
}
