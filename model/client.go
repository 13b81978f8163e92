package model

import (
	"time"

	"gorm.io/gorm"
)

// Client is an application registered for the authorization code flow.
type Client struct {
	ID           uint   `gorm:"primarykey,autoIncrement"`
	Name         string `gorm:"size:128;not null"`
	ClientID     string `gorm:"size:64;not null;uniqueIndex"`
	ClientSecret string `gorm:"size:128;not null"` // empty for public clients
	RedirectURI  string `gorm:"size:1024;not null"`
	Scopes       string `gorm:"size:512;not null;default:''"`
	PKCERequired bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}
