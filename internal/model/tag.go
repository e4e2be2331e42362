package model

import (
	"github.com/rs/xid"
	"gorm.io/gorm"
)

// Tag is a label shared by every user; names are globally unique.
type Tag struct {
	ID   string `json:"id"   gorm:"primaryKey;size:20"`
	Name string `json:"name" gorm:"uniqueIndex;size:255;not null"`
}

func (t *Tag) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = xid.New().String()
	}
	return nil
}
