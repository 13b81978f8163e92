package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/authedge/authedge/internal/store"
	"github.com/authedge/authedge/internal/token"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestTokenService(t *testing.T) *token.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return token.NewService("authedge-test", []byte("0123456789abcdef"), store.NewRedisStorage(rdb))
}

func newTestApp(t *testing.T, tokenService *token.Service, routes map[string]string) *fiber.App {
	t.Helper()
	gw := New(tokenService, Config{
		Routes:          routes,
		PublicPrefixes:  []string{"/gateway/public"},
		ConnectTimeout:  2 * time.Second,
		ResponseTimeout: 5 * time.Second,
	})
	app := fiber.New()
	app.All("/gateway/:service/*", gw.Authenticate, gw.Proxy)
	return app
}

func TestMissingTokenNeverReachesBackend(t *testing.T) {
	var hits atomic.Int64
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer backend.Close()

	tokenService := newTestTokenService(t)
	app := newTestApp(t, tokenService, map[string]string{"users": backend.URL})

	req := httptest.NewRequest(http.MethodGet, "/gateway/users/v1/profile", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, int64(0), hits.Load(), "unauthenticated request must not contact the backend")
}

func TestPublicPrefixSkipsAuthentication(t *testing.T) {
	var gotMarker string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMarker = r.Header.Get(HeaderGatewayAuth)
		io.WriteString(w, "ok")
	}))
	defer backend.Close()

	tokenService := newTestTokenService(t)
	app := newTestApp(t, tokenService, map[string]string{"public": backend.URL})

	req := httptest.NewRequest(http.MethodGet, "/gateway/public/health", nil)
	// a spoofed marker on a public path must not survive the hop
	req.Header.Set(HeaderGatewayAuth, "verified")
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Empty(t, gotMarker)
}

func TestUnmatchedPathIsNotFound(t *testing.T) {
	tokenService := newTestTokenService(t)
	app := newTestApp(t, tokenService, nil)

	// paths outside the gateway subtree answer 404, not 401
	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestIdentityHeadersInjected(t *testing.T) {
	var gotAuth, gotUserID, gotEmail, gotRole, gotMarker string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUserID = r.Header.Get(HeaderUserID)
		gotEmail = r.Header.Get(HeaderUserEmail)
		gotRole = r.Header.Get(HeaderUserRole)
		gotMarker = r.Header.Get(HeaderGatewayAuth)
		io.WriteString(w, "ok")
	}))
	defer backend.Close()

	tokenService := newTestTokenService(t)
	app := newTestApp(t, tokenService, map[string]string{"users": backend.URL})

	accessToken, err := tokenService.IssueAccess("42", "alice@example.com", "admin", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/gateway/users/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	// spoofed identity header must be dropped
	req.Header.Set(HeaderUserID, "1337")

	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Empty(t, gotAuth, "bearer token must not leak to the backend")
	require.Equal(t, "42", gotUserID)
	require.Equal(t, "alice@example.com", gotEmail)
	require.Equal(t, "admin", gotRole)
	require.Equal(t, "verified", gotMarker)
}

func TestRefreshTokenRejectedAtGateway(t *testing.T) {
	tokenService := newTestTokenService(t)
	app := newTestApp(t, tokenService, nil)

	refresh, err := tokenService.IssueRefresh("42", "alice@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/gateway/users/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRevokedTokenRejectedAtGateway(t *testing.T) {
	tokenService := newTestTokenService(t)
	app := newTestApp(t, tokenService, nil)

	accessToken, err := tokenService.IssueAccess("42", "alice@example.com", "user", nil)
	require.NoError(t, err)
	require.NoError(t, tokenService.Revoke(context.Background(), accessToken, "test"))

	req := httptest.NewRequest(http.MethodGet, "/gateway/users/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestBackendRefusedReturns502(t *testing.T) {
	// grab a port and close it so the connection is refused
	backend := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	target := backend.URL
	backend.Close()

	tokenService := newTestTokenService(t)
	app := newTestApp(t, tokenService, map[string]string{"users": target})

	accessToken, err := tokenService.IssueAccess("42", "alice@example.com", "user", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/gateway/users/v1/profile", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}

func TestUnknownServiceReturns404(t *testing.T) {
	tokenService := newTestTokenService(t)
	app := newTestApp(t, tokenService, map[string]string{"users": "http://localhost:1"})

	accessToken, err := tokenService.IssueAccess("42", "alice@example.com", "user", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/gateway/billing/v1/invoices", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
