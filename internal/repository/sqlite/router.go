package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	// registers the "libsql" driver for remote tenant stores
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"go.uber.org/multierr"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/tenant"
)

// Tenant store drivers. Local files use modernc sqlite; remote stores
// created by the control plane (libsql://, https://) use the libsql driver.
const (
	DefaultTenantDriver = "sqlite"
	RemoteTenantDriver  = "libsql"
)

// DefaultIdleTimeout is how long an unused tenant connection stays open.
const DefaultIdleTimeout = 5 * time.Minute

// RouterConfig describes how tenant connection strings are derived.
type RouterConfig struct {
	Driver      string        // database/sql driver name; chosen from the URL scheme if empty
	URLTemplate string        // connection string of the template database
	Placeholder string        // template database name inside URLTemplate
	AuthToken   string        // appended as authToken= for remote stores, if set
	IdleTimeout time.Duration // DefaultIdleTimeout if zero
}

// Router resolves a user to the store holding their notes.
//
// Handles are cached per tenant key until Close. A cached handle holds at
// most one idle connection, and that connection is released after
// IdleTimeout, so users who are not active cost no file descriptors or
// sockets.
type Router struct {
	cfg RouterConfig

	mu     sync.Mutex
	stores map[string]*Store
}

var _ tenant.SchemaInitializer = (*Router)(nil)

// NewRouter validates cfg and returns a Router. For local sqlite templates the
// directory holding the tenant files is created.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.URLTemplate == "" {
		return nil, apperror.MissingConfig("TURSO_DATABASE_URL")
	}
	if cfg.Placeholder == "" {
		return nil, apperror.MissingConfig("TURSO_TEMPLATE_DB")
	}
	if !strings.Contains(cfg.URLTemplate, cfg.Placeholder) {
		return nil, apperror.InvalidConfig("TURSO_DATABASE_URL",
			"must contain the template database name "+cfg.Placeholder)
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverFor(cfg.URLTemplate)
	}
	if !slices.Contains(sql.Drivers(), cfg.Driver) {
		return nil, apperror.InvalidConfig("TENANT_DB_DRIVER",
			fmt.Sprintf("unknown database driver %q", cfg.Driver))
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}

	if dir := localDir(cfg.Driver, cfg.URLTemplate); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating tenant directory: %w", err)
		}
	}

	return &Router{cfg: cfg, stores: make(map[string]*Store)}, nil
}

// DriverFor picks the driver for a connection string by its scheme.
//
//	libsql://db-org.turso.io  → libsql
//	https://db-org.turso.io   → libsql
//	file:data/parent-db.db    → sqlite
//	data/parent-db.db         → sqlite
func DriverFor(connString string) string {
	scheme, _, ok := strings.Cut(connString, "://")
	if !ok {
		return DefaultTenantDriver
	}
	switch strings.ToLower(scheme) {
	case "libsql", "https", "http", "wss", "ws":
		return RemoteTenantDriver
	default:
		return DefaultTenantDriver
	}
}

// HandleFor returns the store for userID. Two different users never share a
// store; the same user always gets the same one.
func (r *Router) HandleFor(userID string) (*Store, error) {
	key, err := tenant.Key(userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[key]; ok {
		return s, nil
	}

	target, err := tenant.ConnectionTarget(r.cfg.URLTemplate, r.cfg.Placeholder, userID)
	if err != nil {
		return nil, err
	}

	s, err := openStore(r.cfg.Driver, r.dsn(target), key, r.cfg.IdleTimeout)
	if err != nil {
		return nil, err
	}
	r.stores[key] = s
	return s, nil
}

// InitSchema creates the notes schema in the user's store.
func (r *Router) InitSchema(ctx context.Context, userID string) error {
	s, err := r.HandleFor(userID)
	if err != nil {
		return err
	}
	return s.EnsureSchema(ctx)
}

// Close closes every cached store.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for key, s := range r.stores {
		err = multierr.Append(err, s.Close())
		delete(r.stores, key)
	}
	return err
}

// dsn adds driver options to a tenant connection target.
func (r *Router) dsn(target string) string {
	var params []string
	if r.cfg.Driver == DefaultTenantDriver {
		// concurrent requests for one user share the file
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if r.cfg.AuthToken != "" {
		params = append(params, "authToken="+url.QueryEscape(r.cfg.AuthToken))
	}
	if len(params) == 0 {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + strings.Join(params, "&")
}

// localDir returns the directory of a file-backed sqlite template, or "".
func localDir(driver, template string) string {
	if driver != DefaultTenantDriver || template == ":memory:" {
		return ""
	}
	path := strings.TrimPrefix(template, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if strings.Contains(path, "://") || path == "" {
		return ""
	}
	return filepath.Dir(path)
}
