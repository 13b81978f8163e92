package model

import "time"

type AuditEvent struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	UserID    uint      `gorm:"index"`                   // internal user id, zero when unknown
	Identity  string    `gorm:"size:256;not null;index"` // email the event targeted
	EventType string    `gorm:"size:64;not null;index"`  // login_success, login_failure...
	Actor     string    `gorm:"size:256"`                // administrator for manual interventions
	Reason    string    `gorm:"size:512"`                // failure reason or context
	IP        string    `gorm:"size:45;not null"`        // IPv4/IPv6
	UserAgent string    `gorm:"size:512"`                // user agent string
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (AuditEvent) TableName() string {
	return "audit"
}
