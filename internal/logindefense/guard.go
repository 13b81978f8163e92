// Package logindefense tracks failed credential checks per identity and per
// source address. Counters live in the shared store and are updated with
// atomic increments, so concurrent instances never lose updates.
package logindefense

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/authedge/authedge/internal/events"
	"github.com/authedge/authedge/internal/store"
	"github.com/authedge/authedge/params"
	"github.com/spf13/cast"
)

const LockReasonTooManyFailures = "too many failed login attempts"

// AttemptRecord counts recent failures for one identity. The window starts
// at the first failure and the whole record expires with it.
type AttemptRecord struct {
	Count      int64  `redis:"count"`
	LastSource string `redis:"last_source"`
}

// LockRecord exists while an identity is locked out.
type LockRecord struct {
	Reason    string `redis:"reason"`
	LockedAt  int64  `redis:"locked_at"`
	UnlocksAt int64  `redis:"unlocks_at"`
	Source    string `redis:"source"`
}

// SourceRecord counts failures originating from one source address across
// all identities.
type SourceRecord struct {
	Count        int64  `redis:"count"`
	LastIdentity string `redis:"last_identity"`
	HighRisk     bool   `redis:"high_risk"`
}

type LockInfo struct {
	Locked            bool      `json:"locked"`
	Reason            string    `json:"reason,omitempty"`
	LockedAt          time.Time `json:"lockedAt,omitempty"`
	UnlocksAt         time.Time `json:"unlocksAt,omitempty"`
	LockingSource     string    `json:"lockingSource,omitempty"`
	RemainingAttempts int       `json:"remainingAttempts"`
}

type Stats struct {
	Attempts       int64 `json:"attempts"`
	Failures       int64 `json:"failures"`
	Lockouts       int64 `json:"lockouts"`
	Unlocks        int64 `json:"unlocks"`
	FlaggedSources int64 `json:"flaggedSources"`
}

const statsKey = "stats"

// Guard is consulted by every credential-verification entry point: IsLocked
// before the password comparison, RecordAttempt after it.
type Guard struct {
	attempts store.Store[AttemptRecord]
	locks    store.Store[LockRecord]
	sources  store.Store[SourceRecord]
	stats    store.Storage
	sink     events.Sink
}

func NewGuard(storage store.Storage, sink events.Sink) *Guard {
	return &Guard{
		attempts: store.New[AttemptRecord](storage, params.LoginAttemptKeyPrefix),
		locks:    store.New[LockRecord](storage, params.AccountLockKeyPrefix),
		sources:  store.New[SourceRecord](storage, params.SuspiciousSourceKeyPrefix),
		stats:    store.StorageWithPrefix(storage, params.DefenseStatsKeyPrefix),
		sink:     events.OrDefault(sink),
	}
}

// RecordAttempt updates the failure counters for identity and source. A
// success clears the identity's counter and any lock. The returned LockInfo
// reflects the identity's state after the attempt.
func (g *Guard) RecordAttempt(ctx context.Context, identity, source string, success bool) (*LockInfo, error) {
	g.stats.IncrAttr(ctx, statsKey, "attempts", 1)
	if success {
		return g.recordSuccess(ctx, identity)
	}
	return g.recordFailure(ctx, identity, source)
}

func (g *Guard) recordSuccess(ctx context.Context, identity string) (*LockInfo, error) {
	if err := g.attempts.Delete(ctx, identity); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err := g.locks.Delete(ctx, identity); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	return &LockInfo{RemainingAttempts: params.LoginLockThreshold}, nil
}

func (g *Guard) recordFailure(ctx context.Context, identity, source string) (*LockInfo, error) {
	g.stats.IncrAttr(ctx, statsKey, "failures", 1)

	count, err := g.attempts.IncrAttr(ctx, identity, "count", 1)
	if err != nil {
		return nil, err
	}
	// the rolling window starts at the first failure
	if err := g.attempts.ExpireNX(ctx, identity, params.LoginFailureWindow); err != nil {
		return nil, err
	}
	g.attempts.SetAttr(ctx, identity, "last_source", source)

	g.bumpSource(ctx, identity, source)

	info := &LockInfo{RemainingAttempts: remainingAttempts(count)}
	if count < params.LoginLockThreshold {
		return info, nil
	}

	lock, err := g.locks.Get(ctx, identity)
	if errors.Is(err, store.ErrNotFound) {
		now := time.Now()
		lock = LockRecord{
			Reason:    LockReasonTooManyFailures,
			LockedAt:  now.UnixMilli(),
			UnlocksAt: now.Add(params.LoginLockDuration).UnixMilli(),
			Source:    source,
		}
		if err := g.locks.Set(ctx, identity, lock, params.LoginLockDuration); err != nil {
			return nil, err
		}
		g.stats.IncrAttr(ctx, statsKey, "lockouts", 1)
		slog.Warn("Account locked after repeated login failures",
			"identity", identity, "source", source, "failures", count)
		g.sink.Publish(ctx, events.Event{
			Type:     events.TypeAccountLocked,
			Identity: identity,
			Source:   source,
			Time:     time.Now(),
			Data:     map[string]any{"failures": count},
		})
	} else if err != nil {
		return nil, err
	}

	info.Locked = true
	info.Reason = lock.Reason
	info.LockedAt = time.UnixMilli(lock.LockedAt)
	info.UnlocksAt = time.UnixMilli(lock.UnlocksAt)
	info.LockingSource = lock.Source
	return info, nil
}

func (g *Guard) bumpSource(ctx context.Context, identity, source string) {
	count, err := g.sources.IncrAttr(ctx, source, "count", 1)
	if err != nil {
		slog.Error("Failed to update suspicious source counter", "source", source, "error", err)
		return
	}
	g.sources.ExpireNX(ctx, source, params.SuspiciousSourceWindow)
	g.sources.SetAttr(ctx, source, "last_identity", identity)
	if count == params.SuspiciousSourceThreshold {
		g.sources.SetAttr(ctx, source, "high_risk", true)
		g.stats.IncrAttr(ctx, statsKey, "flagged_sources", 1)
		slog.Warn("Source address flagged high risk", "source", source, "failures", count)
		g.sink.Publish(ctx, events.Event{
			Type:     events.TypeSuspiciousSource,
			Identity: identity,
			Source:   source,
			Time:     time.Now(),
			Data:     map[string]any{"failures": count},
		})
	}
}

// IsLocked must be checked before the credential comparison, so locked
// accounts never reach it.
func (g *Guard) IsLocked(ctx context.Context, identity string) (bool, error) {
	lock, err := g.locks.Get(ctx, identity)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return time.Now().UnixMilli() < lock.UnlocksAt, nil
}

func (g *Guard) LockInfo(ctx context.Context, identity string) (*LockInfo, error) {
	info := &LockInfo{RemainingAttempts: params.LoginLockThreshold}

	attempt, err := g.attempts.Get(ctx, identity)
	if err == nil {
		info.RemainingAttempts = remainingAttempts(attempt.Count)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	lock, err := g.locks.Get(ctx, identity)
	if errors.Is(err, store.ErrNotFound) {
		return info, nil
	}
	if err != nil {
		return nil, err
	}
	info.Locked = time.Now().UnixMilli() < lock.UnlocksAt
	info.Reason = lock.Reason
	info.LockedAt = time.UnixMilli(lock.LockedAt)
	info.UnlocksAt = time.UnixMilli(lock.UnlocksAt)
	info.LockingSource = lock.Source
	return info, nil
}

// Lock imposes an administrative lock regardless of the failure count.
func (g *Guard) Lock(ctx context.Context, identity, actor, reason string) error {
	if reason == "" {
		reason = "administrative lock"
	}
	now := time.Now()
	lock := LockRecord{
		Reason:    reason,
		LockedAt:  now.UnixMilli(),
		UnlocksAt: now.Add(params.LoginLockDuration).UnixMilli(),
		Source:    actor,
	}
	if err := g.locks.Set(ctx, identity, lock, params.LoginLockDuration); err != nil {
		return err
	}
	g.stats.IncrAttr(ctx, statsKey, "lockouts", 1)
	slog.Info("Account locked by administrator", "identity", identity, "actor", actor)
	g.sink.Publish(ctx, events.Event{
		Type:     events.TypeAccountLocked,
		Identity: identity,
		Time:     time.Now(),
		Data:     map[string]any{"actor": actor, "reason": reason},
	})
	return nil
}

// Unlock is the administrative override. It clears both the lock and the
// failure counter.
func (g *Guard) Unlock(ctx context.Context, identity, actor string) error {
	if err := g.locks.Delete(ctx, identity); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := g.attempts.Delete(ctx, identity); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	g.stats.IncrAttr(ctx, statsKey, "unlocks", 1)
	slog.Info("Account unlocked by administrator", "identity", identity, "actor", actor)
	g.sink.Publish(ctx, events.Event{
		Type:     events.TypeAccountUnlocked,
		Identity: identity,
		Time:     time.Now(),
		Data:     map[string]any{"actor": actor},
	})
	return nil
}

func (g *Guard) IsHighRiskSource(ctx context.Context, source string) (bool, error) {
	rec, err := g.sources.Get(ctx, source)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.HighRisk, nil
}

func (g *Guard) Stats(ctx context.Context) (*Stats, error) {
	attrs, err := g.stats.Attrs(ctx, statsKey)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Attempts:       cast.ToInt64(attrs["attempts"]),
		Failures:       cast.ToInt64(attrs["failures"]),
		Lockouts:       cast.ToInt64(attrs["lockouts"]),
		Unlocks:        cast.ToInt64(attrs["unlocks"]),
		FlaggedSources: cast.ToInt64(attrs["flagged_sources"]),
	}, nil
}

func remainingAttempts(count int64) int {
	remaining := params.LoginLockThreshold - int(count)
	if remaining < 0 {
		return 0
	}
	return remaining
}
