package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyChallengeS256(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	require.NoError(t, VerifyChallenge(verifier, challenge, ChallengeMethodS256))
	require.ErrorIs(t, VerifyChallenge("wrong-verifier", challenge, ChallengeMethodS256), ErrPKCEVerificationFailed)
}

func TestVerifyChallengePlain(t *testing.T) {
	require.NoError(t, VerifyChallenge("abc123", "abc123", ChallengeMethodPlain))
	require.ErrorIs(t, VerifyChallenge("abc124", "abc123", ChallengeMethodPlain), ErrPKCEVerificationFailed)
}

func TestVerifyChallengeUnknownMethod(t *testing.T) {
	require.ErrorIs(t, VerifyChallenge("v", "c", "md5"), ErrUnsupportedChallengeMethod)
}
