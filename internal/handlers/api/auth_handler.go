package api

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/authedge/authedge/internal/audit"
	"github.com/authedge/authedge/internal/logindefense"
	emailpkg "github.com/authedge/authedge/internal/mail"
	"github.com/authedge/authedge/internal/token"
	"github.com/authedge/authedge/internal/users"
	"github.com/authedge/authedge/model"
	"github.com/authedge/authedge/params"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	userService  *users.UserService
	tokenService *token.Service
	guard        *logindefense.Guard
	mailSender   emailpkg.MailSender
	baseURL      string
}

func NewAuthHandler(userService *users.UserService, tokenService *token.Service, guard *logindefense.Guard, mailSender emailpkg.MailSender, baseURL string) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		tokenService: tokenService,
		guard:        guard,
		mailSender:   mailSender,
		baseURL:      strings.TrimRight(baseURL, "/"),
	}
}

func newUserInfoResponse(user *model.User) UserInfoResponse {
	return UserInfoResponse{
		UserID:   strconv.FormatUint(uint64(user.ID), 10),
		Username: user.Username,
		FullName: user.FullName,
		Email:    user.Email,
		Role:     user.Role,
		Picture:  user.Picture,
	}
}

func (h *AuthHandler) issueTokens(user *model.User) (*TokenResponse, error) {
	userID := strconv.FormatUint(uint64(user.ID), 10)
	accessToken, err := h.tokenService.IssueAccess(userID, user.Email, user.Role, nil)
	if err != nil {
		return nil, err
	}
	refreshToken, err := h.tokenService.IssueRefresh(userID, user.Email)
	if err != nil {
		return nil, err
	}
	idToken, err := h.tokenService.IssueID(userID, user.Email, user.FullName, user.Picture, nil)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(params.AccessTokenExpiration.Seconds()),
		RefreshToken: refreshToken,
		IDToken:      idToken,
	}, nil
}

// PostLogin authenticates with username/email and password. The lock check
// runs before the password comparison so a locked account never reaches
// bcrypt, and failures are counted for unknown identities as well.
func (h *AuthHandler) PostLogin(ctx *fiber.Ctx) error {
	var req LoginRequest
	if err := ctx.BodyParser(&req); err != nil || req.Username == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing credentials")
	}
	source := ctx.IP()

	if highRisk, err := h.guard.IsHighRiskSource(ctx.Context(), source); err == nil && highRisk {
		return logindefense.ErrSourceHighRisk
	}

	identity := req.Username
	user, lookupErr := h.userService.GetUserByUsernameOrEmail(ctx.Context(), req.Username)
	if lookupErr == nil {
		identity = user.Email
	}

	if locked, err := h.guard.IsLocked(ctx.Context(), identity); err != nil {
		return err
	} else if locked {
		return logindefense.ErrAccountLocked
	}

	if lookupErr != nil {
		h.guard.RecordAttempt(ctx.Context(), identity, source, false)
		audit.RecordLogin(ctx.Context(), audit.LoginRecord{
			Identity:  identity,
			IP:        source,
			UserAgent: string(ctx.Request().Header.UserAgent()),
			Success:   false,
			Reason:    "unknown identity",
		})
		return users.ErrInvalidCredentials
	}

	verifyErr := h.userService.VerifyPassword(user, req.Password)
	info, err := h.guard.RecordAttempt(ctx.Context(), identity, source, verifyErr == nil)
	if err != nil {
		return err
	}
	audit.RecordLogin(ctx.Context(), audit.LoginRecord{
		UserID:    user.ID,
		Identity:  identity,
		IP:        source,
		UserAgent: string(ctx.Request().Header.UserAgent()),
		Success:   verifyErr == nil,
	})
	if verifyErr != nil {
		if info != nil && info.Locked {
			return logindefense.ErrAccountLocked
		}
		if info != nil && info.RemainingAttempts <= params.LoginWarnThreshold {
			msg := fmt.Sprintf("Invalid credentials. %d attempts remaining before lockout", info.RemainingAttempts)
			return ctx.Status(fiber.StatusUnauthorized).JSON(NewErrorResponse(fiber.StatusUnauthorized, msg))
		}
		return users.ErrInvalidCredentials
	}

	tokens, err := h.issueTokens(user)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(fiber.Map{
		"user":   newUserInfoResponse(user),
		"tokens": tokens,
	}))
}

func (h *AuthHandler) PostSignup(ctx *fiber.Ctx) error {
	var req SignupRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing required fields")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid email address")
	}
	if len(req.Password) < 8 {
		return fiber.NewError(fiber.StatusBadRequest, "Password must be at least 8 characters")
	}
	user, err := h.userService.CreateUser(ctx.Context(), users.CreateUserOptions{
		Username: req.Username,
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Role:     "user",
	})
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(NewDataResponse(newUserInfoResponse(user)))
}

func (h *AuthHandler) PostRefresh(ctx *fiber.Ctx) error {
	var req RefreshRequest
	if err := ctx.BodyParser(&req); err != nil || req.RefreshToken == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing refresh token")
	}
	claims, err := h.tokenService.Validate(ctx.Context(), req.RefreshToken, token.KindRefresh)
	if err != nil {
		return err
	}
	user, err := h.userService.GetUserByIDString(ctx.Context(), claims.Subject)
	if err != nil {
		return users.ErrInvalidCredentials
	}
	userID := strconv.FormatUint(uint64(user.ID), 10)
	accessToken, err := h.tokenService.IssueAccess(userID, user.Email, user.Role, nil)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(params.AccessTokenExpiration.Seconds()),
	}))
}

// PostPasswordReset answers identically whether or not the address is
// registered, so the endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) PostPasswordReset(ctx *fiber.Ctx) error {
	var req PasswordResetRequest
	if err := ctx.BodyParser(&req); err != nil || req.Email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing email address")
	}
	accepted := func() error {
		return ctx.JSON(NewDataResponse(fiber.Map{
			"message": "If the address is registered, a reset link has been sent",
		}))
	}

	user, err := h.userService.GetUserByEmail(ctx.Context(), req.Email)
	if err != nil {
		return accepted()
	}
	resetToken, err := h.tokenService.IssuePasswordReset(strconv.FormatUint(uint64(user.ID), 10))
	if err != nil {
		return accepted()
	}
	resetURL := fmt.Sprintf("%s/auth/password-reset/confirm?token=%s", h.baseURL, resetToken)
	message := emailpkg.ComposePasswordReset(user.Email, resetURL)
	go h.mailSender.Send(message)
	audit.RecordPasswordReset(ctx.Context(), user.ID, user.Email, ctx.IP())
	return accepted()
}

func (h *AuthHandler) PostPasswordResetConfirm(ctx *fiber.Ctx) error {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := ctx.BodyParser(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing token or new password")
	}
	if len(req.NewPassword) < 8 {
		return fiber.NewError(fiber.StatusBadRequest, "Password must be at least 8 characters")
	}
	claims, err := h.tokenService.Validate(ctx.Context(), req.Token, token.KindPasswordReset)
	if err != nil {
		return err
	}
	user, err := h.userService.GetUserByIDString(ctx.Context(), claims.Subject)
	if err != nil {
		return users.ErrInvalidCredentials
	}
	if err := h.userService.UpdatePassword(ctx.Context(), user.ID, req.NewPassword); err != nil {
		return err
	}
	// Single use: the reset token is dead once the password changes.
	h.tokenService.Revoke(ctx.Context(), req.Token, "password reset completed")
	h.guard.Unlock(ctx.Context(), user.Email, "password-reset")
	return ctx.JSON(NewDataResponse(fiber.Map{"message": "Password updated"}))
}

// PostValidate checks an arbitrary token and reports its kind and subject.
func (h *AuthHandler) PostValidate(ctx *fiber.Ctx) error {
	var req ValidateRequest
	if err := ctx.BodyParser(&req); err != nil || req.Token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing token")
	}
	claims, err := h.tokenService.Validate(ctx.Context(), req.Token, token.KindAny)
	if err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(fiber.Map{
		"valid":     true,
		"tokenType": claims.TokenType,
		"userId":    claims.Subject,
		"email":     claims.Email,
		"role":      claims.Role,
		"expiresAt": claims.ExpiresAt.Time,
	}))
}

func (h *AuthHandler) PostLogout(ctx *fiber.Ctx) error {
	var req ValidateRequest
	if err := ctx.BodyParser(&req); err != nil || req.Token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing token")
	}
	if err := h.tokenService.Revoke(ctx.Context(), req.Token, "user logout"); err != nil {
		return err
	}
	return ctx.JSON(NewDataResponse(fiber.Map{"message": "Logged out"}))
}

func (h *AuthHandler) GetMe(ctx *fiber.Ctx) error {
	tokenStr := bearerToken(ctx)
	if tokenStr == "" {
		return token.ErrTokenMalformed
	}
	claims, err := h.tokenService.Validate(ctx.Context(), tokenStr, token.KindAccess)
	if err != nil {
		return err
	}
	user, err := h.userService.GetUserByIDString(ctx.Context(), claims.Subject)
	if err != nil {
		return users.ErrUserNotFound
	}
	return ctx.JSON(NewDataResponse(newUserInfoResponse(user)))
}

func bearerToken(ctx *fiber.Ctx) string {
	header := ctx.Get(fiber.HeaderAuthorization)
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}
