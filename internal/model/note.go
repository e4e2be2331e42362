package model

import (
	"time"

	"github.com/rs/xid"
	"gorm.io/gorm"
)

// DefaultNoteTitle is used when a note is saved with a blank title.
const DefaultNoteTitle = "Untitled Note"

// Note is a markdown document owned by one user.
//
// Links are the note's outgoing wiki-links (it is the source), Backlinks
// the incoming ones (it is the target). A note with empty content that was
// created by link processing is a "ghost".
type Note struct {
	ID         string    `json:"id"         gorm:"primaryKey;size:20"`
	Title      string    `json:"title"      gorm:"size:255;not null;index:idx_notes_user_title"`
	Content    string    `json:"content"    gorm:"type:text"`
	IsFavorite bool      `json:"isFavorite" gorm:"not null"`
	UserID     string    `json:"userId"     gorm:"size:20;not null;index;index:idx_notes_user_title"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	Tags      []Tag  `json:"tags"      gorm:"many2many:note_tags;"`
	Links     []Link `json:"links"     gorm:"foreignKey:SourceID"`
	Backlinks []Link `json:"backlinks" gorm:"foreignKey:TargetID"`
}

func (n *Note) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = xid.New().String()
	}
	return nil
}

// IsGhost reports whether the note is an empty placeholder.
func (n *Note) IsGhost() bool {
	return n.Content == ""
}

// Normalize replaces nil relation slices with empty ones so the JSON
// encoding is always an array.
func (n *Note) Normalize() {
	if n.Tags == nil {
		n.Tags = []Tag{}
	}
	if n.Links == nil {
		n.Links = []Link{}
	}
	if n.Backlinks == nil {
		n.Backlinks = []Link{}
	}
}

// TagNames returns the names of the note's tags in their stored order.
func (n *Note) TagNames() []string {
	names := make([]string, 0, len(n.Tags))
	for _, t := range n.Tags {
		names = append(names, t.Name)
	}
	return names
}
