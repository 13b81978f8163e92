// Package sso upgrades validated access tokens into longer-lived
// multi-application sessions with sliding expiration.
package sso

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/authedge/authedge/internal/store"
	"github.com/authedge/authedge/internal/token"
	"github.com/authedge/authedge/params"
	"github.com/google/uuid"
)

type Session struct {
	ID         string `redis:"id"`
	UserID     string `redis:"user_id"`
	Email      string `redis:"email"`
	Role       string `redis:"role"`
	Token      string `redis:"token"`
	CreatedAt  int64  `redis:"created_at"`
	LastSeenAt int64  `redis:"last_seen_at"`
}

// tokenRef maps an SSO token to its session record.
type tokenRef struct {
	SessionID string `redis:"session_id"`
}

type Manager struct {
	tokenService *token.Service
	tokens       store.Store[tokenRef]
	sessions     store.Store[Session]
	storage      store.Storage
}

func NewManager(tokenService *token.Service, storage store.Storage) *Manager {
	return &Manager{
		tokenService: tokenService,
		tokens:       store.New[tokenRef](storage, params.SSOTokenKeyPrefix),
		sessions:     store.New[Session](storage, params.SSOSessionKeyPrefix),
		storage:      storage,
	}
}

func generateSSOToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Upgrade exchanges a valid access token for a new SSO session. The access
// token must pass full Token Service validation first.
func (m *Manager) Upgrade(ctx context.Context, accessToken string) (*Session, error) {
	claims, err := m.tokenService.Validate(ctx, accessToken, token.KindAccess)
	if err != nil {
		return nil, err
	}
	ssoToken, err := generateSSOToken()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	session := Session{
		ID:         uuid.NewString(),
		UserID:     claims.Subject,
		Email:      claims.Email,
		Role:       claims.Role,
		Token:      ssoToken,
		CreatedAt:  now.UnixMilli(),
		LastSeenAt: now.UnixMilli(),
	}
	if err := m.sessions.Set(ctx, session.ID, session, params.SSOSessionExpiration); err != nil {
		return nil, err
	}
	if err := m.tokens.Set(ctx, ssoToken, tokenRef{SessionID: session.ID}, params.SSOSessionExpiration); err != nil {
		return nil, err
	}
	return &session, nil
}

func (m *Manager) lookup(ctx context.Context, ssoToken string) (*Session, error) {
	ref, err := m.tokens.Get(ctx, ssoToken)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}
	session, err := m.sessions.Get(ctx, ref.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// Validate checks the SSO token and refreshes the session's TTL: every
// successful validation slides the expiration forward.
func (m *Manager) Validate(ctx context.Context, ssoToken string) (*Session, error) {
	session, err := m.lookup(ctx, ssoToken)
	if err != nil {
		return nil, err
	}
	session.LastSeenAt = time.Now().UnixMilli()
	m.sessions.SetAttr(ctx, session.ID, "last_seen_at", session.LastSeenAt)
	m.sessions.Expire(ctx, session.ID, params.SSOSessionExpiration)
	m.tokens.Expire(ctx, ssoToken, params.SSOSessionExpiration)
	m.storage.Expire(ctx, params.SSOAppsKeyPrefix+session.ID, params.SSOSessionExpiration)
	return session, nil
}

// RegisterApp adds an application to the session's registry. It reports
// false when the application id was already registered.
func (m *Manager) RegisterApp(ctx context.Context, ssoToken, appID, appName string) (bool, error) {
	session, err := m.lookup(ctx, ssoToken)
	if err != nil {
		return false, err
	}
	appsKey := params.SSOAppsKeyPrefix + session.ID
	apps, err := m.storage.Attrs(ctx, appsKey)
	if err != nil {
		return false, err
	}
	if _, ok := apps[appID]; ok {
		return false, nil
	}
	if err := m.storage.SetAttr(ctx, appsKey, appID, appName); err != nil {
		return false, err
	}
	m.storage.Expire(ctx, appsKey, params.SSOSessionExpiration)
	return true, nil
}

// Logout deletes the token and its session. Removing the token reference is
// the commit point: once it is gone no concurrent Validate can succeed, so
// the session record cleanup afterwards cannot race.
func (m *Manager) Logout(ctx context.Context, ssoToken string) error {
	ref, err := m.tokens.Remove(ctx, ssoToken)
	if errors.Is(err, store.ErrNotFound) {
		return ErrSessionInvalid
	}
	if err != nil {
		return err
	}
	if err := m.sessions.Delete(ctx, ref.SessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := m.storage.Delete(ctx, params.SSOAppsKeyPrefix+ref.SessionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// SessionInfo returns the session record and its registered applications
// without sliding the TTL.
func (m *Manager) SessionInfo(ctx context.Context, ssoToken string) (*Session, map[string]string, error) {
	session, err := m.lookup(ctx, ssoToken)
	if err != nil {
		return nil, nil, err
	}
	apps, err := m.storage.Attrs(ctx, params.SSOAppsKeyPrefix+session.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, apps, nil
}
