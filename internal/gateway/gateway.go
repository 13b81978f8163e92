// Package gateway is the trust boundary in front of the backend services:
// it authenticates bearer tokens at the edge, injects verified identity
// headers, and relays requests to the resolved backend.
package gateway

import (
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/authedge/authedge/internal/token"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/valyala/fasthttp"
)

const (
	HeaderUserID      = "X-User-Id"
	HeaderUserEmail   = "X-User-Email"
	HeaderUserRole    = "X-User-Role"
	HeaderGatewayAuth = "X-Gateway-Auth"

	claimsLocalKey = "gateway_claims"
)

type Config struct {
	// Routes maps a service name to its backend base URL.
	Routes map[string]string
	// PublicPrefixes lists path prefixes that skip authentication.
	PublicPrefixes  []string
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
}

type Gateway struct {
	tokenService   *token.Service
	routes         map[string]string
	publicPrefixes []string
	client         *fasthttp.Client
}

func New(tokenService *token.Service, cfg Config) *Gateway {
	connectTimeout := cfg.ConnectTimeout
	return &Gateway{
		tokenService:   tokenService,
		routes:         cfg.Routes,
		publicPrefixes: cfg.PublicPrefixes,
		client: &fasthttp.Client{
			NoDefaultUserAgentHeader: true,
			DisablePathNormalizing:   true,
			ReadTimeout:              cfg.ResponseTimeout,
			WriteTimeout:             cfg.ResponseTimeout,
			Dial: func(addr string) (conn net.Conn, err error) {
				return fasthttp.DialTimeout(addr, connectTimeout)
			},
		},
	}
}

func (g *Gateway) isPublicPath(path string) bool {
	for _, prefix := range g.publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ExtractBearer returns the token of a "Bearer <token>" authorization
// header, or an empty string.
func ExtractBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    fiber.StatusUnauthorized,
			"message": message,
		},
	})
}

// Authenticate is the request filter: public prefixes pass through, every
// other request needs a valid access token. Invalid requests are answered
// here and never reach the proxy.
func (g *Gateway) Authenticate(c *fiber.Ctx) error {
	if g.isPublicPath(c.Path()) {
		return c.Next()
	}

	bearer := ExtractBearer(c.Get(fiber.HeaderAuthorization))
	if bearer == "" {
		return unauthorized(c, "Missing bearer token")
	}

	claims, err := g.tokenService.Validate(c.Context(), bearer, token.KindAccess)
	switch {
	case err == nil:
	case errors.Is(err, token.ErrTokenExpired):
		return unauthorized(c, "Token expired")
	case errors.Is(err, token.ErrTokenRevoked):
		return unauthorized(c, "Token revoked")
	case errors.Is(err, token.ErrTokenMalformed),
		errors.Is(err, token.ErrTokenSignature),
		errors.Is(err, token.ErrTokenWrongKind):
		return unauthorized(c, "Invalid token")
	default:
		slog.Error("Token validation failed", "path", c.Path(), "error", err)
		return fiber.ErrInternalServerError
	}

	c.Locals(claimsLocalKey, claims)
	return c.Next()
}

// ClaimsFromCtx returns the verified claims the filter stored, or nil.
func ClaimsFromCtx(c *fiber.Ctx) *token.Claims {
	claims, _ := c.Locals(claimsLocalKey).(*token.Claims)
	return claims
}

// Proxy relays the request to the backend named in the path. The inbound
// Authorization header is stripped so the bearer token never reaches the
// backend; verified identity travels in gateway headers instead. Requests
// on public prefixes are forwarded without identity headers.
func (g *Gateway) Proxy(c *fiber.Ctx) error {
	claims := ClaimsFromCtx(c)
	if claims == nil && !g.isPublicPath(c.Path()) {
		return unauthorized(c, "Missing bearer token")
	}

	service := c.Params("service")
	target, ok := g.routes[service]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    fiber.StatusNotFound,
				"message": "Unknown gateway service " + service,
			},
		})
	}

	url := strings.TrimSuffix(target, "/") + "/" + c.Params("*")
	if qs := c.Request().URI().QueryString(); len(qs) > 0 {
		url += "?" + string(qs)
	}

	req := &c.Request().Header
	req.Del(fiber.HeaderAuthorization)
	// drop any caller-supplied identity headers before injecting our own
	req.Del(HeaderUserID)
	req.Del(HeaderUserEmail)
	req.Del(HeaderUserRole)
	req.Del(HeaderGatewayAuth)
	if claims != nil {
		req.Set(HeaderUserID, claims.Subject)
		req.Set(HeaderUserEmail, claims.Email)
		req.Set(HeaderUserRole, claims.Role)
		req.Set(HeaderGatewayAuth, "verified")
	}

	if err := proxy.Do(c, url, g.client); err != nil {
		status := fiber.StatusBadGateway
		message := "Backend unavailable"
		if errors.Is(err, fasthttp.ErrTimeout) {
			status = fiber.StatusGatewayTimeout
			message = "Backend timed out"
		}
		slog.Error("Gateway proxy request failed", "service", service, "target", url, "error", err)
		return c.Status(status).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    status,
				"message": message,
			},
		})
	}
	return nil
}
