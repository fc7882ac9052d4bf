package tenant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/model"
)

// DefaultAPIURL is the public control-plane endpoint.
const DefaultAPIURL = "https://api.turso.tech"

// maxErrorBody caps how much of an error response we read into memory.
const maxErrorBody = 64 << 10

// ClientConfig configures the control-plane client.
//
// APIToken and OrgID are required for every call; the rest describe where and
// how new tenant databases are created.
type ClientConfig struct {
	BaseURL      string // defaults to DefaultAPIURL
	APIToken     string
	OrgID        string
	Group        string // placement group new databases join
	Location     string // primary region, e.g. "hkg"
	Image        string // server image, e.g. "latest"
	TemplateName string // database new tenants are branched from
	HTTPClient   *http.Client
}

// Client wraps the control-plane HTTP API that creates tenant databases.
//
// It holds no per-request state, so one Client is shared by every request.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient builds a Client. Missing credentials are not an error here:
// they are reported by each call, so a misconfigured control plane degrades
// provisioning instead of preventing construction.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{cfg: cfg, http: hc}
}

// createRequest is the body of POST /v1/organizations/{org}/databases.
type createRequest struct {
	Name       string `json:"name"`
	Group      string `json:"group"`
	Location   string `json:"location,omitempty"`
	Image      string `json:"image,omitempty"`
	FromParent string `json:"from_parent,omitempty"`
}

type createResponse struct {
	Database model.TenantMetadata `json:"database"`
}

// apiError is the control plane's error body. Older endpoints use "message".
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Exists reports whether the user's tenant database is present.
//
// A 404 is the normal "absent" answer and returns (false, nil). Every other
// failure (transport, auth, 5xx) is an apperror.ErrProvisioning.
func (c *Client) Exists(ctx context.Context, userID string) (bool, error) {
	if err := c.checkConfig(); err != nil {
		return false, err
	}
	key, err := Key(userID)
	if err != nil {
		return false, err
	}

	reqURL, err := url.JoinPath(c.cfg.BaseURL, "v1", "organizations", c.cfg.OrgID, "databases", key)
	if err != nil {
		return false, apperror.Provisioning("building control-plane URL", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, apperror.Provisioning("building existence request", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, apperror.Provisioning(fmt.Sprintf("checking database %s", key), err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return true, nil
	default:
		return false, apperror.Provisioning(fmt.Sprintf("checking database %s", key), decodeAPIError(resp))
	}
}

// Create asks the control plane to create the user's tenant database from
// the template database.
//
// Success means the request was accepted; the database may take a few more
// seconds before it accepts connections (see Provisioner).
func (c *Client) Create(ctx context.Context, userID string) (*model.ProvisionResult, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}
	key, err := Key(userID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(createRequest{
		Name:       key,
		Group:      c.cfg.Group,
		Location:   c.cfg.Location,
		Image:      c.cfg.Image,
		FromParent: c.cfg.TemplateName,
	})
	if err != nil {
		return nil, apperror.Provisioning("encoding create request", err)
	}

	reqURL, err := url.JoinPath(c.cfg.BaseURL, "v1", "organizations", c.cfg.OrgID, "databases")
	if err != nil {
		return nil, apperror.Provisioning("building control-plane URL", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperror.Provisioning("building create request", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.Provisioning(fmt.Sprintf("creating database %s", key), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperror.Provisioning(fmt.Sprintf("creating database %s", key), decodeAPIError(resp))
	}

	var out createResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&out); err != nil && err != io.EOF {
		return nil, apperror.Provisioning(fmt.Sprintf("decoding create response for %s", key), err)
	}
	if out.Database.Name == "" {
		out.Database.Name = key
	}

	return &model.ProvisionResult{Success: true, Metadata: out.Database}, nil
}

// checkConfig fails every call when credentials are missing. The error is
// both ErrProvisioning and ErrConfiguration.
func (c *Client) checkConfig() error {
	var missing []string
	if c.cfg.APIToken == "" {
		missing = append(missing, "TURSO_API_TOKEN")
	}
	if c.cfg.OrgID == "" {
		missing = append(missing, "TURSO_ORG_ID")
	}
	if len(missing) > 0 {
		return apperror.Provisioning("control plane not configured", apperror.MissingConfig(missing...))
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
}

// decodeAPIError turns a non-2xx response into an error carrying the status
// and the control plane's own message when it sent one.
func decodeAPIError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return fmt.Errorf("control plane returned status %d", resp.StatusCode)
	}
	var body apiError
	if json.Unmarshal(raw, &body) == nil {
		msg := body.Error
		if msg == "" {
			msg = body.Message
		}
		if msg != "" {
			return fmt.Errorf("control plane returned status %d: %s", resp.StatusCode, msg)
		}
	}
	return fmt.Errorf("control plane returned status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
}
