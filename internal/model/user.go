// Package model defines the data structures used throughout the application.
// The structs double as GORM entities; the `gorm:"..."` tags describe the
// schema that AutoMigrate creates.
package model

import (
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

// User represents a registered account.
//
// DeletedAt is a plain nullable timestamp, not gorm.DeletedAt: a deleted
// account stays visible to queries (so its email stays taken) and callers
// decide what "deleted" means through IsDeleted.
type User struct {
	ID        string     `json:"id"                  gorm:"primaryKey;size:20"`
	Email     string     `json:"email"               gorm:"uniqueIndex;size:255;not null"`
	Password  string     `json:"-"                   gorm:"not null"` // bcrypt hash
	Name      string     `json:"name"                gorm:"size:255"`
	Credits   int        `json:"credits"             gorm:"not null"`
	DeletedAt *time.Time `json:"deletedAt,omitempty" gorm:"index"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsDeleted reports whether the account has been soft-deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = xid.New().String()
	}
	return nil
}
