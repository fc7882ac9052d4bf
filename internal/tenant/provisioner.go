package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/model"
)

// ResourceClient is the part of the control-plane API the provisioner needs.
// *Client implements it; tests substitute a fake.
type ResourceClient interface {
	Exists(ctx context.Context, userID string) (bool, error)
	Create(ctx context.Context, userID string) (*model.ProvisionResult, error)
}

// SchemaInitializer creates the notes schema in a tenant store if it is
// missing. It must be idempotent. Implemented by sqlite.Router.
type SchemaInitializer interface {
	InitSchema(ctx context.Context, userID string) error
}

// ProvisionerOptions bounds how long provisioning may take.
type ProvisionerOptions struct {
	// Timeout caps a whole Provision call, including readiness polling.
	Timeout time.Duration
	// SettleDelay is waited once after a successful create, before polling.
	SettleDelay time.Duration
	// PollInterval and PollMaxInterval shape the exponential backoff used
	// while waiting for a new database to appear and accept the schema.
	PollInterval    time.Duration
	PollMaxInterval time.Duration
	// MaxAttempts caps readiness checks (and schema attempts) per call.
	MaxAttempts int
}

// DefaultProvisionerOptions returns production defaults: roughly the five
// seconds a fresh database needs, spread over a handful of checks.
func DefaultProvisionerOptions() ProvisionerOptions {
	return ProvisionerOptions{
		Timeout:         30 * time.Second,
		SettleDelay:     time.Second,
		PollInterval:    500 * time.Millisecond,
		PollMaxInterval: 4 * time.Second,
		MaxAttempts:     8,
	}
}

// errNotReady is returned by a readiness probe that should be retried.
var errNotReady = errors.New("tenant database not visible yet")

// Provisioner makes sure a user's tenant database exists and has the notes
// schema.
//
// The steps always run in order and never in parallel:
//
//  1. existence check
//  2. create, then wait for the database to become visible (only if absent)
//  3. schema initialization (CREATE TABLE IF NOT EXISTS)
//
// Every step is safe to repeat, so a failure at any point is recovered by
// simply calling Provision again (the next sign-in or session refresh).
// Concurrent calls for the same user share one in-flight attempt.
type Provisioner struct {
	resources ResourceClient
	schema    SchemaInitializer
	opts      ProvisionerOptions
	metrics   *Metrics
	logger    *slog.Logger
	inflight  singleflight.Group
}

// NewProvisioner wires a Provisioner. Zero-valued options fall back to
// DefaultProvisionerOptions; metrics may be nil.
func NewProvisioner(
	resources ResourceClient,
	schema SchemaInitializer,
	opts ProvisionerOptions,
	metrics *Metrics,
	logger *slog.Logger,
) *Provisioner {
	def := DefaultProvisionerOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.PollMaxInterval < opts.PollInterval {
		opts.PollMaxInterval = opts.PollInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	return &Provisioner{
		resources: resources,
		schema:    schema,
		opts:      opts,
		metrics:   metrics,
		logger:    logger,
	}
}

// Provision runs the provisioning steps and reports what went wrong, if
// anything. The error is classified with apperror kinds:
// ErrConfiguration, ErrProvisioning, ErrProvisioningTimeout or ErrStorage.
//
// The work is bound to opts.Timeout and detached from ctx cancellation: a
// client hanging up mid sign-in must not abandon a half-created tenant.
func (p *Provisioner) Provision(ctx context.Context, userID string) error {
	key, err := Key(userID)
	if err != nil {
		return err
	}

	_, err, shared := p.inflight.Do(key, func() (any, error) {
		return nil, p.provision(ctx, userID, key)
	})
	if shared {
		p.logger.Debug("joined in-flight tenant provisioning", slog.String("tenant", key))
	}
	return err
}

// EnsureTenantReady provisions the user's tenant and reports whether it is
// ready. Failures are logged and discarded: this runs inside sign-in, which
// must succeed whether or not provisioning does.
func (p *Provisioner) EnsureTenantReady(ctx context.Context, userID string) bool {
	err := p.Provision(ctx, userID)
	if err == nil {
		return true
	}

	p.logger.Error("tenant provisioning failed, continuing without a ready store",
		slog.String("userID", userID),
		slog.String("kind", errorKind(err)),
		slog.String("error", err.Error()),
	)
	return false
}

func (p *Provisioner) provision(parent context.Context, userID, key string) (err error) {
	start := time.Now()
	outcome := outcomeExisting
	defer func() {
		if err != nil {
			outcome = outcomeFor(err)
		}
		p.metrics.observe(outcome, start)
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), p.opts.Timeout)
	defer cancel()

	// Step 1: existence check.
	exists, err := p.resources.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("tenant: checking %s: %w", key, err)
	}

	// Step 2: create and wait, only for a new tenant.
	if !exists {
		res, err := p.resources.Create(ctx, userID)
		if err != nil {
			return fmt.Errorf("tenant: creating %s: %w", key, err)
		}
		if res == nil || !res.Success {
			return apperror.Provisioning(fmt.Sprintf("control plane did not create %s", key), nil)
		}
		outcome = outcomeCreated
		p.logger.Info("tenant database created",
			slog.String("tenant", key),
			slog.String("hostname", res.Metadata.Hostname),
		)

		if err := p.waitReady(ctx, userID, key); err != nil {
			return err
		}
	} else {
		p.logger.Debug("tenant database already exists", slog.String("tenant", key))
	}

	// Step 3: schema. A brand-new store may refuse connections for a moment,
	// so it gets the retry budget; an existing one gets a single attempt.
	if err := p.initSchema(ctx, userID, key, !exists); err != nil {
		return err
	}

	p.logger.Info("tenant ready",
		slog.String("tenant", key),
		slog.Bool("created", !exists),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// waitReady polls Exists until the new database shows up.
func (p *Provisioner) waitReady(ctx context.Context, userID, key string) error {
	if p.opts.SettleDelay > 0 {
		t := time.NewTimer(p.opts.SettleDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return apperror.ProvisioningTimeout(key, ctx.Err())
		case <-t.C:
		}
	}

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		ok, err := p.resources.Exists(ctx, userID)
		if err != nil {
			if errors.Is(err, apperror.ErrConfiguration) {
				return backoff.Permanent(err)
			}
			return err
		}
		if !ok {
			return errNotReady
		}
		return nil
	}, p.policy(ctx))
	if err != nil {
		if errors.Is(err, apperror.ErrConfiguration) {
			return err
		}
		return apperror.ProvisioningTimeout(key, fmt.Errorf("after %d readiness checks: %w", attempts, err))
	}
	return nil
}

func (p *Provisioner) initSchema(ctx context.Context, userID, key string, retry bool) error {
	if !retry {
		if err := p.schema.InitSchema(ctx, userID); err != nil {
			return fmt.Errorf("tenant: initializing schema for %s: %w", key, err)
		}
		return nil
	}

	err := backoff.Retry(func() error {
		return p.schema.InitSchema(ctx, userID)
	}, p.policy(ctx))
	if err != nil {
		return fmt.Errorf("tenant: initializing schema for %s: %w", key, err)
	}
	return nil
}

// policy is the bounded exponential backoff shared by the readiness and
// schema retries: MaxAttempts tries in total, stopping early on ctx.
func (p *Provisioner) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.opts.PollInterval
	exp.MaxInterval = p.opts.PollMaxInterval
	exp.MaxElapsedTime = 0 // bounded by attempts and ctx instead
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.opts.MaxAttempts-1)), ctx)
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, apperror.ErrConfiguration):
		return outcomeMisconfigured
	case errors.Is(err, apperror.ErrProvisioningTimeout), errors.Is(err, context.DeadlineExceeded):
		return outcomeTimeout
	default:
		return outcomeFailed
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, apperror.ErrConfiguration):
		return "configuration"
	case errors.Is(err, apperror.ErrProvisioningTimeout):
		return "provisioning_timeout"
	case errors.Is(err, apperror.ErrProvisioning):
		return "provisioning"
	case errors.Is(err, apperror.ErrStorage):
		return "storage"
	case errors.Is(err, apperror.ErrValidation):
		return "validation"
	default:
		return "unknown"
	}
}
