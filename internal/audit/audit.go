package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/authedge/authedge/model"
)

var auditRepo AuditEventRepository
var initOnce sync.Once

func Initialize(repo AuditEventRepository) {
	initOnce.Do(func() {
		auditRepo = repo
	})
}

const (
	EventTypeLoginSuccess    = "login_success"
	EventTypeLoginFailure    = "login_failure"
	EventTypeAccountLocked   = "account_locked"
	EventTypeAccountUnlocked = "account_unlocked"
	EventTypeTokenRevoked    = "token_revoked"
	EventTypePasswordReset   = "password_reset"
)

type LoginRecord struct {
	UserID    uint
	Identity  string
	IP        string
	UserAgent string
	Success   bool
	Reason    string
}

type LockRecord struct {
	Identity string
	Actor    string
	Reason   string
	IP       string
	Locked   bool
}

func record(ctx context.Context, event *model.AuditEvent) {
	if auditRepo == nil {
		return
	}
	if err := auditRepo.RecordEvent(ctx, event); err != nil {
		slog.Error("Failed to record audit event", "type", event.EventType, "error", err)
	}
}

func RecordLogin(ctx context.Context, rec LoginRecord) {
	eventType := EventTypeLoginFailure
	if rec.Success {
		eventType = EventTypeLoginSuccess
	}
	record(ctx, &model.AuditEvent{
		UserID:    rec.UserID,
		Identity:  rec.Identity,
		EventType: eventType,
		Reason:    rec.Reason,
		IP:        rec.IP,
		UserAgent: rec.UserAgent,
	})
}

func RecordLockChange(ctx context.Context, rec LockRecord) {
	eventType := EventTypeAccountUnlocked
	if rec.Locked {
		eventType = EventTypeAccountLocked
	}
	record(ctx, &model.AuditEvent{
		Identity:  rec.Identity,
		EventType: eventType,
		Actor:     rec.Actor,
		Reason:    rec.Reason,
		IP:        rec.IP,
	})
}

func RecordPasswordReset(ctx context.Context, userID uint, identity, ip string) {
	record(ctx, &model.AuditEvent{
		UserID:    userID,
		Identity:  identity,
		EventType: EventTypePasswordReset,
		IP:        ip,
	})
}
