package tenant

import (
	"context"
	"log/slog"
)

// ReadinessEnsurer is satisfied by *Provisioner.
type ReadinessEnsurer interface {
	EnsureTenantReady(ctx context.Context, userID string) bool
}

// SessionHook runs tenant provisioning when a session is established.
type SessionHook struct {
	tenants ReadinessEnsurer
	logger  *slog.Logger
}

func NewSessionHook(tenants ReadinessEnsurer, logger *slog.Logger) *SessionHook {
	return &SessionHook{tenants: tenants, logger: logger}
}

// OnSessionEstablished is called after a successful sign-in or session
// refresh. tenantReady is the flag carried by the current session; when it is
// already true the provisioner is not consulted again for this session.
//
// The returned flag belongs in the new session. Authentication never depends
// on it: a false result only means the next refresh will try again.
func (h *SessionHook) OnSessionEstablished(ctx context.Context, userID string, tenantReady bool) (ready bool) {
	if tenantReady {
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic during tenant provisioning",
				slog.String("userID", userID),
				slog.Any("panic", r),
			)
			ready = false
		}
	}()

	return h.tenants.EnsureTenantReady(ctx, userID)
}
