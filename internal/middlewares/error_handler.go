package middlewares

import (
	"errors"
	"log/slog"

	"github.com/authedge/authedge/internal/handlers/api"
	"github.com/authedge/authedge/internal/logindefense"
	"github.com/authedge/authedge/internal/oauth"
	"github.com/authedge/authedge/internal/sso"
	"github.com/authedge/authedge/internal/token"
	"github.com/authedge/authedge/internal/users"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler maps domain errors that escaped a handler to stable HTTP
// status codes. Internal errors are logged with context and surface as a
// bare 500.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		return ctx.Status(fiberErr.Code).JSON(api.NewErrorResponse(fiberErr.Code, fiberErr.Message))
	case errors.Is(err, logindefense.ErrAccountLocked):
		return ctx.Status(fiber.StatusLocked).JSON(api.NewErrorResponse(fiber.StatusLocked, "Account locked"))
	case errors.Is(err, logindefense.ErrSourceHighRisk):
		return ctx.Status(fiber.StatusTooManyRequests).JSON(api.NewErrorResponse(fiber.StatusTooManyRequests, "Too many requests"))
	case errors.Is(err, users.ErrInvalidCredentials),
		errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, users.ErrUserDisabled),
		errors.Is(err, token.ErrTokenMalformed),
		errors.Is(err, token.ErrTokenSignature),
		errors.Is(err, token.ErrTokenExpired),
		errors.Is(err, token.ErrTokenRevoked),
		errors.Is(err, token.ErrTokenWrongKind),
		errors.Is(err, sso.ErrSessionInvalid):
		return ctx.Status(fiber.StatusUnauthorized).JSON(api.NewErrorResponse(fiber.StatusUnauthorized, "Unauthorized"))
	case errors.Is(err, oauth.ErrCodeInvalid),
		errors.Is(err, oauth.ErrRedirectURIMismatch),
		errors.Is(err, oauth.ErrPKCEVerificationFailed),
		errors.Is(err, oauth.ErrUnsupportedChallengeMethod),
		errors.Is(err, oauth.ErrUnsupportedGrantType),
		errors.Is(err, oauth.ErrClientNameEmpty),
		errors.Is(err, oauth.ErrClientRedirectEmpty),
		errors.Is(err, oauth.ErrClientAlreadyRegistered),
		errors.Is(err, users.ErrUsernameTaken),
		errors.Is(err, users.ErrEmailRegistered):
		return ctx.Status(fiber.StatusBadRequest).JSON(api.NewErrorResponse(fiber.StatusBadRequest, err.Error()))
	default:
		slog.Error("Unhandled error", "path", ctx.Path(), "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(
			api.NewErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
	}
}
