package token

import (
	"context"
	"errors"
	"time"

	"github.com/authedge/authedge/internal/store"
	"github.com/authedge/authedge/params"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// Kind discriminates what a token may be used for. Presenting a token of the
// wrong kind is always rejected, so a refresh token can never stand in for an
// access token.
type Kind string

const (
	KindAny           Kind = ""
	KindAccess        Kind = "access"
	KindRefresh       Kind = "refresh"
	KindID            Kind = "id"
	KindPasswordReset Kind = "password_reset"
	KindService       Kind = "service"
)

type Claims struct {
	TokenType Kind           `json:"token_type"`
	Email     string         `json:"email,omitempty"`
	Role      string         `json:"role,omitempty"`
	Name      string         `json:"name,omitempty"`
	Picture   string         `json:"picture,omitempty"`
	Extra     map[string]any `json:"ext,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and verifies bearer tokens with the service signing key and
// answers blacklist-aware validity checks.
type Service struct {
	issuer     string
	signingKey []byte
	blacklist  store.Store[BlacklistEntry]
}

func NewService(issuer string, signingKey []byte, storage store.Storage) *Service {
	return &Service{
		issuer:     issuer,
		signingKey: signingKey,
		blacklist:  store.New[BlacklistEntry](storage, params.BlacklistKeyPrefix),
	}
}

func (s *Service) issue(claims *Claims, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims.ID = uuid.NewString()
	claims.Issuer = s.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(expiresIn))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

func (s *Service) IssueAccess(userID, email, role string, extra map[string]any) (string, error) {
	return s.issue(&Claims{
		TokenType: KindAccess,
		Email:     email,
		Role:      role,
		Extra:     extra,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID,
		},
	}, params.AccessTokenExpiration)
}

func (s *Service) IssueRefresh(userID, email string) (string, error) {
	return s.issue(&Claims{
		TokenType: KindRefresh,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID,
		},
	}, params.RefreshTokenExpiration)
}

func (s *Service) IssueID(userID, email, name, picture string, extra map[string]any) (string, error) {
	return s.issue(&Claims{
		TokenType: KindID,
		Email:     email,
		Name:      name,
		Picture:   picture,
		Extra:     extra,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID,
		},
	}, params.IDTokenExpiration)
}

func (s *Service) IssuePasswordReset(userID string) (string, error) {
	return s.issue(&Claims{
		TokenType: KindPasswordReset,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: userID,
		},
	}, params.PasswordResetExpiration)
}

func (s *Service) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrTokenSignature
	}
	return s.signingKey, nil
}

// Validate verifies the signature and claims of tokenStr and returns its
// claim set. Blacklist membership is checked before expiry so a revoked
// token reports ErrTokenRevoked even after it has expired. Pass KindAny to
// accept any token kind.
func (s *Service) Validate(ctx context.Context, tokenStr string, kind Kind) (*Claims, error) {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, s.keyFunc, jwt.WithoutClaimsValidation())
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	if !parsed.Valid {
		return nil, ErrTokenSignature
	}

	if claims.ID != "" {
		if _, err := s.blacklist.Get(ctx, claims.ID); err == nil {
			return nil, ErrTokenRevoked
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	if claims.ExpiresAt == nil || time.Now().After(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	if kind != KindAny && claims.TokenType != kind {
		return nil, ErrTokenWrongKind
	}
	return claims, nil
}

// Extract reads a single claim from tokenStr without verifying the
// signature. Intended for diagnostics and non-security lookups only.
func (s *Service) Extract(tokenStr, claim string) (string, error) {
	var claims jwt.MapClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, &claims); err != nil {
		return "", ErrTokenMalformed
	}
	val, ok := claims[claim]
	if !ok {
		return "", nil
	}
	return cast.ToStringE(val)
}

// Revoke blacklists the token's jti for its remaining lifetime. Revoking an
// already-expired token is a no-op.
func (s *Service) Revoke(ctx context.Context, tokenStr, reason string) error {
	claims := new(Claims)
	if _, err := jwt.ParseWithClaims(tokenStr, claims, s.keyFunc, jwt.WithoutClaimsValidation()); err != nil {
		return ErrTokenMalformed
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return ErrTokenMalformed
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	entry := BlacklistEntry{
		JTI:       claims.ID,
		RevokedAt: time.Now().UnixMilli(),
		Reason:    reason,
	}
	return s.blacklist.Set(ctx, claims.ID, entry, remaining)
}
