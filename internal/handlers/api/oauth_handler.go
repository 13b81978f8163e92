package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/authedge/authedge/internal/oauth"
	"github.com/authedge/authedge/internal/social"
	"github.com/authedge/authedge/internal/token"
	"github.com/authedge/authedge/internal/users"
	"github.com/authedge/authedge/model"
	"github.com/authedge/authedge/params"
	"github.com/gofiber/fiber/v2"
)

type OAuthHandler struct {
	clientRegistry *oauth.ClientRegistry
	codeManager    *oauth.CodeManager
	tokenService   *token.Service
	userService    *users.UserService
	providers      map[string]social.Provider
	issuer         string
	baseURL        string
}

func NewOAuthHandler(clientRegistry *oauth.ClientRegistry, codeManager *oauth.CodeManager, tokenService *token.Service, userService *users.UserService, providers map[string]social.Provider, issuer, baseURL string) *OAuthHandler {
	return &OAuthHandler{
		clientRegistry: clientRegistry,
		codeManager:    codeManager,
		tokenService:   tokenService,
		userService:    userService,
		providers:      providers,
		issuer:         issuer,
		baseURL:        strings.TrimRight(baseURL, "/"),
	}
}

// oauthError is the error shape of RFC 6749 token and authorization
// responses, distinct from the API envelope used everywhere else.
type oauthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func sendOAuthError(ctx *fiber.Ctx, status int, code, description string) error {
	return ctx.Status(status).JSON(oauthError{Error: code, Description: description})
}

func (h *OAuthHandler) GetDiscovery(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"issuer":                                h.issuer,
		"authorization_endpoint":                h.baseURL + "/oauth/authorize",
		"token_endpoint":                        h.baseURL + "/oauth/token",
		"revocation_endpoint":                   h.baseURL + "/oauth/revoke",
		"userinfo_endpoint":                     h.baseURL + "/oauth/userinfo",
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token"},
		"code_challenge_methods_supported":      []string{oauth.ChallengeMethodS256, oauth.ChallengeMethodPlain},
		"token_endpoint_auth_methods_supported": []string{"client_secret_post", "none"},
	})
}

// GetAuthorize starts the authorization code flow. An already authenticated
// caller (valid access token in the Authorization header) gets a code
// immediately; anyone else is redirected to the login page or the requested
// social provider with the original query preserved.
func (h *OAuthHandler) GetAuthorize(ctx *fiber.Ctx) error {
	clientID := ctx.Query("client_id")
	redirectURI := ctx.Query("redirect_uri")
	responseType := ctx.Query("response_type")
	scope := ctx.Query("scope")
	state := ctx.Query("state")
	challenge := ctx.Query("code_challenge")
	challengeMethod := ctx.Query("code_challenge_method")

	client, err := h.clientRegistry.GetByClientID(ctx.Context(), clientID)
	if err != nil {
		return sendOAuthError(ctx, fiber.StatusBadRequest, "invalid_client", "Unknown client")
	}
	if err := h.clientRegistry.ValidateRedirect(client, redirectURI); err != nil {
		// Never redirect to an unregistered URI.
		return sendOAuthError(ctx, fiber.StatusBadRequest, "invalid_request", "Redirect URI mismatch")
	}
	if responseType != "code" {
		return redirectWithError(ctx, redirectURI, state, "unsupported_response_type")
	}
	if client.PKCERequired && challenge == "" {
		return redirectWithError(ctx, redirectURI, state, "invalid_request")
	}

	tokenStr := bearerToken(ctx)
	if tokenStr == "" {
		return h.redirectToLogin(ctx)
	}
	claims, err := h.tokenService.Validate(ctx.Context(), tokenStr, token.KindAccess)
	if err != nil {
		return h.redirectToLogin(ctx)
	}

	code, err := h.codeManager.Issue(ctx.Context(), oauth.IssueOptions{
		UserID:          claims.Subject,
		ClientID:        clientID,
		RedirectURI:     redirectURI,
		Scope:           scope,
		State:           state,
		CodeChallenge:   challenge,
		ChallengeMethod: challengeMethod,
	})
	if err != nil {
		if err == oauth.ErrUnsupportedChallengeMethod {
			return redirectWithError(ctx, redirectURI, state, "invalid_request")
		}
		return err
	}

	target, _ := url.Parse(redirectURI)
	query := target.Query()
	query.Set("code", code)
	if state != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()
	return ctx.Redirect(target.String(), fiber.StatusFound)
}

func (h *OAuthHandler) redirectToLogin(ctx *fiber.Ctx) error {
	if name := ctx.Query("provider"); name != "" {
		if provider, ok := h.providers[name]; ok {
			return ctx.Redirect(provider.AuthCodeURL(ctx.Query("state")), fiber.StatusFound)
		}
	}
	loginURL := fmt.Sprintf("%s/auth/login?continue=%s", h.baseURL,
		url.QueryEscape(h.baseURL+"/oauth/authorize?"+string(ctx.Request().URI().QueryString())))
	return ctx.Redirect(loginURL, fiber.StatusFound)
}

func redirectWithError(ctx *fiber.Ctx, redirectURI, state, code string) error {
	target, err := url.Parse(redirectURI)
	if err != nil {
		return sendOAuthError(ctx, fiber.StatusBadRequest, code, "")
	}
	query := target.Query()
	query.Set("error", code)
	if state != "" {
		query.Set("state", state)
	}
	target.RawQuery = query.Encode()
	return ctx.Redirect(target.String(), fiber.StatusFound)
}

// PostToken exchanges an authorization code or a refresh token for tokens.
func (h *OAuthHandler) PostToken(ctx *fiber.Ctx) error {
	switch ctx.FormValue("grant_type") {
	case "authorization_code":
		return h.exchangeAuthorizationCode(ctx)
	case "refresh_token":
		return h.exchangeRefreshToken(ctx)
	default:
		return sendOAuthError(ctx, fiber.StatusBadRequest, "unsupported_grant_type", "")
	}
}

func (h *OAuthHandler) exchangeAuthorizationCode(ctx *fiber.Ctx) error {
	clientID := ctx.FormValue("client_id")
	clientSecret := ctx.FormValue("client_secret")
	code := ctx.FormValue("code")
	redirectURI := ctx.FormValue("redirect_uri")
	verifier := ctx.FormValue("code_verifier")

	client, err := h.authenticateClient(ctx, clientID, clientSecret)
	if err != nil {
		return sendOAuthError(ctx, fiber.StatusUnauthorized, "invalid_client", "Client authentication failed")
	}

	// Consume is the single atomic step: after this the code is gone no
	// matter how the remaining checks turn out.
	grant, err := h.codeManager.Consume(ctx.Context(), code)
	if err != nil {
		return sendOAuthError(ctx, fiber.StatusBadRequest, "invalid_grant", "Authorization code is invalid or expired")
	}
	if grant.ClientID != client.ClientID {
		return sendOAuthError(ctx, fiber.StatusBadRequest, "invalid_grant", "Code was issued to another client")
	}
	if grant.RedirectURI != redirectURI {
		return sendOAuthError(ctx, fiber.StatusBadRequest, "invalid_grant", "Redirect URI mismatch")
	}
	if grant.CodeChallenge != "" {
		if err := oauth.VerifyChallenge(verifier, grant.CodeChallenge, grant.ChallengeMethod); err != nil {
			return sendOAuthError(ctx, fiber.StatusBadRequest, "invalid_grant", "PKCE verification failed")
		}
	} else if client.PKCERequired {
		return sendOAuthError(ctx, fiber.StatusBadRequest, "invalid_grant", "PKCE is required for this client")
	}

	user, err := h.userService.GetUserByIDString(ctx.Context(), grant.UserID)
	if err != nil {
		return sendOAuthError(ctx, fiber.StatusBadRequest, "invalid_grant", "Unknown subject")
	}

	userID := strconv.FormatUint(uint64(user.ID), 10)
	accessToken, err := h.tokenService.IssueAccess(userID, user.Email, user.Role, map[string]any{"scope": grant.Scope})
	if err != nil {
		return err
	}
	refreshToken, err := h.tokenService.IssueRefresh(userID, user.Email)
	if err != nil {
		return err
	}
	idToken, err := h.tokenService.IssueID(userID, user.Email, user.FullName, user.Picture, nil)
	if err != nil {
		return err
	}
	return ctx.JSON(TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(params.AccessTokenExpiration.Seconds()),
		RefreshToken: refreshToken,
		IDToken:      idToken,
		Scope:        grant.Scope,
	})
}

func (h *OAuthHandler) exchangeRefreshToken(ctx *fiber.Ctx) error {
	refreshToken := ctx.FormValue("refresh_token")
	claims, err := h.tokenService.Validate(ctx.Context(), refreshToken, token.KindRefresh)
	if err != nil {
		return sendOAuthError(ctx, fiber.StatusBadRequest, "invalid_grant", "Refresh token is invalid or expired")
	}
	user, err := h.userService.GetUserByIDString(ctx.Context(), claims.Subject)
	if err != nil {
		return sendOAuthError(ctx, fiber.StatusBadRequest, "invalid_grant", "Unknown subject")
	}
	accessToken, err := h.tokenService.IssueAccess(strconv.FormatUint(uint64(user.ID), 10), user.Email, user.Role, nil)
	if err != nil {
		return err
	}
	return ctx.JSON(TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(params.AccessTokenExpiration.Seconds()),
	})
}

func (h *OAuthHandler) authenticateClient(ctx *fiber.Ctx, clientID, clientSecret string) (*model.Client, error) {
	client, err := h.clientRegistry.GetByClientID(ctx.Context(), clientID)
	if err != nil {
		return nil, err
	}
	// Only clients registered without a secret are public; a confidential
	// client must always present its secret.
	if client.ClientSecret == "" && clientSecret == "" {
		return client, nil
	}
	return h.clientRegistry.Authenticate(ctx.Context(), clientID, clientSecret)
}

// PostRevoke follows RFC 7009: revocation always answers 200, even for
// tokens that were never valid.
func (h *OAuthHandler) PostRevoke(ctx *fiber.Ctx) error {
	if tokenStr := ctx.FormValue("token"); tokenStr != "" {
		h.tokenService.Revoke(ctx.Context(), tokenStr, "revoked via oauth endpoint")
	}
	return ctx.SendStatus(fiber.StatusOK)
}

func (h *OAuthHandler) GetUserinfo(ctx *fiber.Ctx) error {
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
	return ctx.JSON(fiber.Map{
		"sub":     strconv.FormatUint(uint64(user.ID), 10),
		"email":   user.Email,
		"name":    user.FullName,
		"picture": user.Picture,
		"role":    user.Role,
	})
}
