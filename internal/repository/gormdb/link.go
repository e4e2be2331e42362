package gormdb

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/repository"
)

// compile-time check that *LinkDB implements repository.LinkRepository
var _ repository.LinkRepository = (*LinkDB)(nil)

type LinkDB struct {
	conn *gorm.DB
}

// Create inserts a link. An identical (source, target, type) row already
// present is left as is.
func (l *LinkDB) Create(ctx context.Context, link *model.Link) error {
	if link.SourceID == link.TargetID {
		return fmt.Errorf("gormdb: refusing self-link on note %s", link.SourceID)
	}
	err := l.conn.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(link).Error
	if err != nil {
		return fmt.Errorf("gormdb: creating link: %w", err)
	}
	return nil
}

func (l *LinkDB) DeleteBySource(ctx context.Context, sourceID, linkType string) error {
	err := l.conn.WithContext(ctx).
		Where("source_id = ? AND type = ?", sourceID, linkType).
		Delete(&model.Link{}).Error
	if err != nil {
		return fmt.Errorf("gormdb: deleting links of note %s: %w", sourceID, err)
	}
	return nil
}

func (l *LinkDB) ListForUser(ctx context.Context, userID string) ([]model.Link, error) {
	links := []model.Link{}
	err := l.conn.WithContext(ctx).
		Select("links.*").
		Joins("JOIN notes ON notes.id = links.source_id").
		Where("notes.user_id = ?", userID).
		Order("links.created_at ASC, links.id ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("gormdb: listing links: %w", err)
	}
	return links, nil
}
