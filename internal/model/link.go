package model

import (
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

// LinkTypeManual marks links derived from [[Title]] references. It is the
// only type link processing creates or replaces.
const LinkTypeManual = "manual"

// Link is a directed edge between two notes. A (source, target, type)
// triple is unique and a note never links to itself.
type Link struct {
	ID        string    `json:"id"        gorm:"primaryKey;size:20"`
	SourceID  string    `json:"sourceId"  gorm:"size:20;not null;uniqueIndex:idx_links_edge"`
	TargetID  string    `json:"targetId"  gorm:"size:20;not null;index;uniqueIndex:idx_links_edge"`
	Type      string    `json:"type"      gorm:"size:32;not null;uniqueIndex:idx_links_edge"`
	CreatedAt time.Time `json:"createdAt"`
}

func (l *Link) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = xid.New().String()
	}
	return nil
}
