package logindefense

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/authedge/authedge/internal/store/storetest"
	"github.com/authedge/authedge/params"
	"github.com/stretchr/testify/require"
)

func newTestGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	t.Helper()
	storage, mr := storetest.New(t)
	return NewGuard(storage, nil), mr
}

func TestLockoutThreshold(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 1; i < params.LoginLockThreshold; i++ {
		info, err := guard.RecordAttempt(ctx, "bob@example.com", "10.0.0.1", false)
		require.NoError(t, err)
		require.False(t, info.Locked)
		require.Equal(t, params.LoginLockThreshold-i, info.RemainingAttempts)
	}

	locked, err := guard.IsLocked(ctx, "bob@example.com")
	require.NoError(t, err)
	require.False(t, locked, "nine failures must not lock the account")

	info, err := guard.RecordAttempt(ctx, "bob@example.com", "10.0.0.1", false)
	require.NoError(t, err)
	require.True(t, info.Locked)
	require.Equal(t, LockReasonTooManyFailures, info.Reason)
	require.Equal(t, "10.0.0.1", info.LockingSource)
	require.WithinDuration(t, time.Now().Add(params.LoginLockDuration), info.UnlocksAt, 5*time.Second)

	locked, err = guard.IsLocked(ctx, "bob@example.com")
	require.NoError(t, err)
	require.True(t, locked)
}

func TestSuccessResetsCounter(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < params.LoginLockThreshold-1; i++ {
		_, err := guard.RecordAttempt(ctx, "bob@example.com", "10.0.0.1", false)
		require.NoError(t, err)
	}

	info, err := guard.RecordAttempt(ctx, "bob@example.com", "10.0.0.1", true)
	require.NoError(t, err)
	require.False(t, info.Locked)
	require.Equal(t, params.LoginLockThreshold, info.RemainingAttempts)

	// counter starts over: one more failure must not lock
	info, err = guard.RecordAttempt(ctx, "bob@example.com", "10.0.0.1", false)
	require.NoError(t, err)
	require.False(t, info.Locked)
	require.Equal(t, params.LoginLockThreshold-1, info.RemainingAttempts)
}

func TestSuccessClearsLock(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < params.LoginLockThreshold; i++ {
		_, err := guard.RecordAttempt(ctx, "bob@example.com", "10.0.0.1", false)
		require.NoError(t, err)
	}
	locked, err := guard.IsLocked(ctx, "bob@example.com")
	require.NoError(t, err)
	require.True(t, locked)

	_, err = guard.RecordAttempt(ctx, "bob@example.com", "10.0.0.1", true)
	require.NoError(t, err)

	locked, err = guard.IsLocked(ctx, "bob@example.com")
	require.NoError(t, err)
	require.False(t, locked)
}

func TestLockExpiresAfterDuration(t *testing.T) {
	guard, mr := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < params.LoginLockThreshold; i++ {
		_, err := guard.RecordAttempt(ctx, "bob@example.com", "10.0.0.1", false)
		require.NoError(t, err)
	}
	mr.FastForward(params.LoginLockDuration + time.Minute)

	locked, err := guard.IsLocked(ctx, "bob@example.com")
	require.NoError(t, err)
	require.False(t, locked)
}

func TestAdministrativeUnlock(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < params.LoginLockThreshold; i++ {
		_, err := guard.RecordAttempt(ctx, "bob@example.com", "10.0.0.1", false)
		require.NoError(t, err)
	}
	require.NoError(t, guard.Unlock(ctx, "bob@example.com", "admin@example.com"))

	locked, err := guard.IsLocked(ctx, "bob@example.com")
	require.NoError(t, err)
	require.False(t, locked)

	info, err := guard.LockInfo(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Equal(t, params.LoginLockThreshold, info.RemainingAttempts)
}

func TestSuspiciousSourceAcrossIdentities(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	// failures spread across many identities, all from one address
	for i := 0; i < params.SuspiciousSourceThreshold; i++ {
		identity := fmt.Sprintf("user%d@example.com", i)
		_, err := guard.RecordAttempt(ctx, identity, "203.0.113.7", false)
		require.NoError(t, err)
	}

	highRisk, err := guard.IsHighRiskSource(ctx, "203.0.113.7")
	require.NoError(t, err)
	require.True(t, highRisk)

	// no single identity accumulated enough failures to lock
	locked, err := guard.IsLocked(ctx, "user0@example.com")
	require.NoError(t, err)
	require.False(t, locked)

	highRisk, err = guard.IsHighRiskSource(ctx, "198.51.100.1")
	require.NoError(t, err)
	require.False(t, highRisk)
}

func TestStats(t *testing.T) {
	guard, _ := newTestGuard(t)
	ctx := context.Background()

	for i := 0; i < params.LoginLockThreshold; i++ {
		_, err := guard.RecordAttempt(ctx, "bob@example.com", "10.0.0.1", false)
		require.NoError(t, err)
	}
	_, err := guard.RecordAttempt(ctx, "alice@example.com", "10.0.0.2", true)
	require.NoError(t, err)
	require.NoError(t, guard.Unlock(ctx, "bob@example.com", "admin"))

	stats, err := guard.Stats(ctx)
	require.NoError(t, err)
	require.EqualValues(t, params.LoginLockThreshold+1, stats.Attempts)
	require.EqualValues(t, params.LoginLockThreshold, stats.Failures)
	require.EqualValues(t, 1, stats.Lockouts)
	require.EqualValues(t, 1, stats.Unlocks)
}
