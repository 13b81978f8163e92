package sso

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/authedge/authedge/internal/store/storetest"
	"github.com/authedge/authedge/internal/token"
	"github.com/authedge/authedge/params"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *token.Service, *miniredis.Miniredis) {
	t.Helper()
	storage, mr := storetest.New(t)
	tokenService := token.NewService("authedge-test", []byte("0123456789abcdef"), storage)
	return NewManager(tokenService, storage), tokenService, mr
}

func issueAccess(t *testing.T, svc *token.Service) string {
	t.Helper()
	accessToken, err := svc.IssueAccess("42", "alice@example.com", "admin", nil)
	require.NoError(t, err)
	return accessToken
}

func TestUpgradeRequiresValidAccessToken(t *testing.T) {
	mgr, svc, _ := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.Upgrade(ctx, "garbage")
	require.ErrorIs(t, err, token.ErrTokenMalformed)

	refresh, err := svc.IssueRefresh("42", "alice@example.com")
	require.NoError(t, err)
	_, err = mgr.Upgrade(ctx, refresh)
	require.ErrorIs(t, err, token.ErrTokenWrongKind)

	session, err := mgr.Upgrade(ctx, issueAccess(t, svc))
	require.NoError(t, err)
	require.Equal(t, "42", session.UserID)
	require.Equal(t, "alice@example.com", session.Email)
	require.NotEmpty(t, session.Token)
}

func TestValidateSlidesExpiration(t *testing.T) {
	mgr, svc, mr := newTestManager(t)
	ctx := context.Background()

	session, err := mgr.Upgrade(ctx, issueAccess(t, svc))
	require.NoError(t, err)

	// past half the TTL, a validation must push the expiry forward
	mr.FastForward(params.SSOSessionExpiration / 2)
	_, err = mgr.Validate(ctx, session.Token)
	require.NoError(t, err)

	mr.FastForward(params.SSOSessionExpiration / 2)
	got, err := mgr.Validate(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, session.ID, got.ID)
}

func TestSessionExpiresWithoutValidation(t *testing.T) {
	mgr, svc, mr := newTestManager(t)
	ctx := context.Background()

	session, err := mgr.Upgrade(ctx, issueAccess(t, svc))
	require.NoError(t, err)

	mr.FastForward(params.SSOSessionExpiration + time.Minute)
	_, err = mgr.Validate(ctx, session.Token)
	require.ErrorIs(t, err, ErrSessionInvalid)
}

func TestRegisterApp(t *testing.T) {
	mgr, svc, _ := newTestManager(t)
	ctx := context.Background()

	session, err := mgr.Upgrade(ctx, issueAccess(t, svc))
	require.NoError(t, err)

	added, err := mgr.RegisterApp(ctx, session.Token, "app-1", "Billing")
	require.NoError(t, err)
	require.True(t, added)

	added, err = mgr.RegisterApp(ctx, session.Token, "app-1", "Billing")
	require.NoError(t, err)
	require.False(t, added, "re-registering the same app id must report false")

	_, apps, err := mgr.SessionInfo(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"app-1": "Billing"}, apps)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	mgr, svc, _ := newTestManager(t)
	ctx := context.Background()

	session, err := mgr.Upgrade(ctx, issueAccess(t, svc))
	require.NoError(t, err)

	require.NoError(t, mgr.Logout(ctx, session.Token))

	_, err = mgr.Validate(ctx, session.Token)
	require.ErrorIs(t, err, ErrSessionInvalid)

	// double logout reports the session as already gone
	require.ErrorIs(t, mgr.Logout(ctx, session.Token), ErrSessionInvalid)
}
