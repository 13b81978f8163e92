package oauth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

const (
	ChallengeMethodS256  = "S256"
	ChallengeMethodPlain = "plain"
)

func validChallengeMethod(method string) bool {
	return method == "" || method == ChallengeMethodS256 || method == ChallengeMethodPlain
}

// VerifyChallenge checks a PKCE code verifier against the challenge stored at
// issuance. S256 compares the base64url (no padding) SHA-256 digest of the
// verifier; plain compares the raw strings.
func VerifyChallenge(verifier, challenge, method string) error {
	var computed string
	switch method {
	case ChallengeMethodS256:
		sum := sha256.Sum256([]byte(verifier))
		computed = base64.RawURLEncoding.EncodeToString(sum[:])
	case ChallengeMethodPlain:
		computed = verifier
	default:
		return ErrUnsupportedChallengeMethod
	}
	if subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) != 1 {
		return ErrPKCEVerificationFailed
	}
	return nil
}
