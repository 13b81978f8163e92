package api

import (
	"time"

	"github.com/authedge/authedge/internal/sso"
	"github.com/authedge/authedge/params"
	"github.com/gofiber/fiber/v2"
)

const ssoTokenHeader = "X-SSO-Token"

type SSOHandler struct {
	manager *sso.Manager
}

func NewSSOHandler(manager *sso.Manager) *SSOHandler {
	return &SSOHandler{manager: manager}
}

type ssoSessionResponse struct {
	SessionID  string    `json:"sessionId"`
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"createdAt"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

func newSSOSessionResponse(session *sso.Session) ssoSessionResponse {
	return ssoSessionResponse{
		SessionID:  session.ID,
		UserID:     session.UserID,
		Email:      session.Email,
		Role:       session.Role,
		CreatedAt:  time.UnixMilli(session.CreatedAt),
		LastSeenAt: time.UnixMilli(session.LastSeenAt),
	}
}

func ssoToken(ctx *fiber.Ctx) string {
	if header := ctx.Get(ssoTokenHeader); header != "" {
		return header
	}
	var req ValidateRequest
	if err := ctx.BodyParser(&req); err == nil {
		return req.Token
	}
	return ""
}

// PostUpgrade trades a valid access token for an SSO session token.
func (h *SSOHandler) PostUpgrade(ctx *fiber.Ctx) error {
	accessToken := bearerToken(ctx)
	if accessToken == "" {
		var req ValidateRequest
		if err := ctx.BodyParser(&req); err == nil {
			accessToken = req.Token
		}
	}
	if accessToken == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing access token")
	}
	session, err := h.manager.Upgrade(ctx.Context(), accessToken)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(fiber.Map{
		"ssoToken":  session.Token,
		"sessionId": session.ID,
		"expiresIn": int64(params.SSOSessionExpiration.Seconds()),
	}))
}

// PostValidate checks an SSO token and slides the session expiration.
func (h *SSOHandler) PostValidate(ctx *fiber.Ctx) error {
	tokenStr := ssoToken(ctx)
	if tokenStr == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing SSO token")
	}
	session, err := h.manager.Validate(ctx.Context(), tokenStr)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(newSSOSessionResponse(session)))
}

func (h *SSOHandler) PostRegisterApp(ctx *fiber.Ctx) error {
	var req struct {
		Token   string `json:"token"`
		AppID   string `json:"appId"`
		AppName string `json:"appName"`
	}
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Token == "" {
		req.Token = ctx.Get(ssoTokenHeader)
	}
	if req.Token == "" || req.AppID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing token or app id")
	}
	added, err := h.manager.RegisterApp(ctx.Context(), req.Token, req.AppID, req.AppName)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"registered": added}))
}

// GetSession reports session details without sliding the expiration.
func (h *SSOHandler) GetSession(ctx *fiber.Ctx) error {
	tokenStr := ctx.Get(ssoTokenHeader)
	if tokenStr == "" {
		tokenStr = ctx.Query("token")
	}
	if tokenStr == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing SSO token")
	}
	session, apps, err := h.manager.SessionInfo(ctx.Context(), tokenStr)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(fiber.Map{
		"session": newSSOSessionResponse(session),
		"apps":    apps,
	}))
}

// PostLogout tears down the session for every registered application.
func (h *SSOHandler) PostLogout(ctx *fiber.Ctx) error {
	tokenStr := ssoToken(ctx)
	if tokenStr == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing SSO token")
	}
	if err := h.manager.Logout(ctx.Context(), tokenStr); err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"message": "Logged out"}))
}
