package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/authedge/authedge/internal/store/storetest"
	"github.com/authedge/authedge/params"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*CodeManager, *miniredis.Miniredis) {
	t.Helper()
	storage, mr := storetest.New(t)
	return NewCodeManager(storage), mr
}

func testIssueOptions() IssueOptions {
	return IssueOptions{
		UserID:          "42",
		ClientID:        "client-1",
		RedirectURI:     "https://app.example.com/callback",
		Scope:           "openid profile",
		State:           "xyz",
		CodeChallenge:   "challenge",
		ChallengeMethod: ChallengeMethodPlain,
	}
}

func TestIssueConsumeExactlyOnce(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	code, err := mgr.Issue(ctx, testIssueOptions())
	require.NoError(t, err)
	require.NotEmpty(t, code)

	rec, err := mgr.Consume(ctx, code)
	require.NoError(t, err)
	require.Equal(t, "42", rec.UserID)
	require.Equal(t, "client-1", rec.ClientID)
	require.Equal(t, "https://app.example.com/callback", rec.RedirectURI)
	require.Equal(t, "xyz", rec.State)
	require.EqualValues(t, AuthCodeRecordVersion, rec.Version)

	// second consumption of the same code must fail
	_, err = mgr.Consume(ctx, code)
	require.ErrorIs(t, err, ErrCodeInvalid)
}

func TestConsumeUnknownCode(t *testing.T) {
	mgr, _ := newTestManager(t)
	_, err := mgr.Consume(context.Background(), "never-issued")
	require.ErrorIs(t, err, ErrCodeInvalid)
}

func TestCodeExpiry(t *testing.T) {
	mgr, mr := newTestManager(t)
	ctx := context.Background()

	code, err := mgr.Issue(ctx, testIssueOptions())
	require.NoError(t, err)

	mr.FastForward(params.AuthCodeExpiration + time.Second)
	_, err = mgr.Consume(ctx, code)
	require.ErrorIs(t, err, ErrCodeInvalid)
}

func TestPeekValidDoesNotConsume(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	code, err := mgr.Issue(ctx, testIssueOptions())
	require.NoError(t, err)

	require.True(t, mgr.PeekValid(ctx, code))
	require.True(t, mgr.PeekValid(ctx, code))

	_, err = mgr.Consume(ctx, code)
	require.NoError(t, err)
	require.False(t, mgr.PeekValid(ctx, code))
}

func TestUnsupportedChallengeMethodRejectedAtIssue(t *testing.T) {
	mgr, _ := newTestManager(t)

	opts := testIssueOptions()
	opts.ChallengeMethod = "S512"
	_, err := mgr.Issue(context.Background(), opts)
	require.ErrorIs(t, err, ErrUnsupportedChallengeMethod)
}

func TestRevokeForUser(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	code1, err := mgr.Issue(ctx, testIssueOptions())
	require.NoError(t, err)
	code2, err := mgr.Issue(ctx, testIssueOptions())
	require.NoError(t, err)

	other := testIssueOptions()
	other.UserID = "99"
	code3, err := mgr.Issue(ctx, other)
	require.NoError(t, err)

	require.NoError(t, mgr.RevokeForUser(ctx, "42"))
	require.False(t, mgr.PeekValid(ctx, code1))
	require.False(t, mgr.PeekValid(ctx, code2))
	require.True(t, mgr.PeekValid(ctx, code3))
}

func TestRevokeForClient(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	code, err := mgr.Issue(ctx, testIssueOptions())
	require.NoError(t, err)

	require.NoError(t, mgr.RevokeForClient(ctx, "client-1"))
	require.False(t, mgr.PeekValid(ctx, code))
}

func TestOmittedChallengeMethodDefaultsToPlain(t *testing.T) {
	mgr, _ := newTestManager(t)
	ctx := context.Background()

	opts := testIssueOptions()
	opts.ChallengeMethod = ""
	code, err := mgr.Issue(ctx, opts)
	require.NoError(t, err)

	rec, err := mgr.Consume(ctx, code)
	require.NoError(t, err)
	require.Equal(t, ChallengeMethodPlain, rec.ChallengeMethod)
	require.NoError(t, VerifyChallenge(opts.CodeChallenge, rec.CodeChallenge, rec.ChallengeMethod))
}
