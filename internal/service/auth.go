package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/notebox/internal/auth"
	"github.com/sakif/notebox/internal/model"
	"github.com/sakif/notebox/internal/repository"
)

// SessionHook is told about every established session. *tenant.SessionHook
// implements it.
type SessionHook interface {
	OnSessionEstablished(ctx context.Context, userID string, tenantReady bool) bool
}

// AuthService signs users in and keeps their sessions fresh.
//
//	AuthHandler → AuthService → UserRepository (accounts DB)
//	                          ↘ TokenService (JWT)
//	                          ↘ SessionHook (tenant provisioning)
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	hook   SessionHook
	logger *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	hook SessionHook,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		hook:   hook,
		logger: logger,
	}
}

// AuthResult is what the handler needs to set the session cookie.
type AuthResult struct {
	User        *model.User
	Token       string
	TenantReady bool
}

// LoginOrRegister completes an OAuth sign-in: it upserts the account, runs
// the session hook and issues a session token.
//
// Whether the tenant got provisioned never decides whether sign-in succeeds;
// the outcome is only recorded in the token so the next refresh can retry.
func (s *AuthService) LoginOrRegister(ctx context.Context, id *auth.Identity) (*AuthResult, error) {
	if id == nil {
		return nil, fmt.Errorf("service/auth: identity must not be nil")
	}

	user := &model.User{
		Provider:   id.Provider,
		ProviderID: id.ProviderID,
		Login:      id.Login,
		Email:      id.Email,
		AvatarURL:  id.AvatarURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user %s/%s: %w", id.Provider, id.ProviderID, err)
	}

	s.logger.Info("user authenticated",
		slog.String("userID", user.ID),
		slog.String("provider", user.Provider),
		slog.String("login", user.Login),
	)

	return s.issue(ctx, user, false)
}

// Refresh re-issues the token of a live session. The hook runs again only if
// the session's tenant is not ready yet.
func (s *AuthService) Refresh(ctx context.Context, sess *auth.Session) (*AuthResult, error) {
	if sess == nil || sess.UserID == "" {
		return nil, fmt.Errorf("service/auth: session must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: refreshing session for %s: %w", sess.UserID, err)
	}

	return s.issue(ctx, user, sess.TenantReady)
}

func (s *AuthService) issue(ctx context.Context, user *model.User, tenantReady bool) (*AuthResult, error) {
	ready := s.hook.OnSessionEstablished(ctx, user.ID, tenantReady)

	token, err := s.tokens.Generate(user.ID, ready)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Token: token, TenantReady: ready}, nil
}

// GetUserByID backs GET /api/me.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// SessionTTL is how long issued tokens (and their cookies) live.
func (s *AuthService) SessionTTL() int {
	return int(s.tokens.TTL().Seconds())
}
