package api

import (
	"crypto/subtle"

	"github.com/authedge/authedge/internal/audit"
	"github.com/authedge/authedge/internal/logindefense"
	"github.com/authedge/authedge/internal/oauth"
	"github.com/authedge/authedge/model"
	"github.com/gofiber/fiber/v2"
)

const adminKeyHeader = "X-Admin-Key"

type AdminHandler struct {
	guard          *logindefense.Guard
	clientRegistry *oauth.ClientRegistry
	adminKey       string
}

func NewAdminHandler(guard *logindefense.Guard, clientRegistry *oauth.ClientRegistry, adminKey string) *AdminHandler {
	return &AdminHandler{
		guard:          guard,
		clientRegistry: clientRegistry,
		adminKey:       adminKey,
	}
}

// RequireAdminKey gates the admin group. With no key configured the whole
// surface is disabled.
func (h *AdminHandler) RequireAdminKey(ctx *fiber.Ctx) error {
	if h.adminKey == "" {
		return fiber.NewError(fiber.StatusForbidden, "Admin API is disabled")
	}
	provided := ctx.Get(adminKeyHeader)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.adminKey)) != 1 {
		return fiber.NewError(fiber.StatusForbidden, "Invalid admin key")
	}
	return ctx.Next()
}

func (h *AdminHandler) GetLockInfo(ctx *fiber.Ctx) error {
	identity := ctx.Params("identity")
	if identity == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing identity")
	}
	info, err := h.guard.LockInfo(ctx.Context(), identity)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(info))
}

func (h *AdminHandler) PostLock(ctx *fiber.Ctx) error {
	identity := ctx.Params("identity")
	if identity == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing identity")
	}
	var req struct {
		Reason string `json:"reason"`
	}
	ctx.BodyParser(&req)
	if err := h.guard.Lock(ctx.Context(), identity, "admin", req.Reason); err != nil {
		return err
	}
	audit.RecordLockChange(ctx.Context(), audit.LockRecord{
		Identity: identity,
		Locked:   true,
		Actor:    "admin",
		Reason:   req.Reason,
		IP:       ctx.IP(),
	})
	return ctx.JSON(NewDataResponse(fiber.Map{"locked": true}))
}

func (h *AdminHandler) PostUnlock(ctx *fiber.Ctx) error {
	identity := ctx.Params("identity")
	if identity == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing identity")
	}
	if err := h.guard.Unlock(ctx.Context(), identity, "admin"); err != nil {
		return err
	}
	audit.RecordLockChange(ctx.Context(), audit.LockRecord{
		Identity: identity,
		Locked:   false,
		Actor:    "admin",
		IP:       ctx.IP(),
	})
	return ctx.JSON(NewDataResponse(fiber.Map{"locked": false}))
}

func (h *AdminHandler) GetDefenseStats(ctx *fiber.Ctx) error {
	stats, err := h.guard.Stats(ctx.Context())
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(stats))
}

// PostRegisterClient provisions an OAuth client and returns the generated
// credentials. The secret is only shown once.
func (h *AdminHandler) PostRegisterClient(ctx *fiber.Ctx) error {
	var req struct {
		Name         string `json:"name"`
		RedirectURI  string `json:"redirectUri"`
		Scopes       string `json:"scopes"`
		PKCERequired bool   `json:"pkceRequired"`
	}
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	client := &model.Client{
		Name:         req.Name,
		RedirectURI:  req.RedirectURI,
		Scopes:       req.Scopes,
		PKCERequired: req.PKCERequired,
	}
	if err := h.clientRegistry.Register(ctx.Context(), client); err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(fiber.Map{
		"clientId":     client.ClientID,
		"clientSecret": client.ClientSecret,
		"name":         client.Name,
		"redirectUri":  client.RedirectURI,
	}))
}

func (h *AdminHandler) DeleteClient(ctx *fiber.Ctx) error {
	clientID := ctx.Params("clientId")
	if clientID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing client id")
	}
	if err := h.clientRegistry.Remove(ctx.Context(), clientID); err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"removed": clientID}))
}
