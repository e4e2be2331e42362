package gormdb

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/repository"
)

// compile-time check that *TagDB implements repository.TagRepository
var _ repository.TagRepository = (*TagDB)(nil)

type TagDB struct {
	conn *gorm.DB
}

// ReplaceForNote connects the note to exactly the named tags, creating tags
// that do not exist yet. Duplicate names collapse to one association.
func (t *TagDB) ReplaceForNote(ctx context.Context, noteID string, names []string) error {
	db := t.conn.WithContext(ctx)

	tags := make([]model.Tag, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		tag, err := t.resolve(db, name)
		if err != nil {
			return err
		}
		tags = append(tags, *tag)
	}

	assoc := db.Model(&model.Note{ID: noteID}).Association("Tags")
	var err error
	if len(tags) == 0 {
		err = assoc.Clear()
	} else {
		err = assoc.Replace(tags)
	}
	if err != nil {
		return fmt.Errorf("gormdb: replacing tags of note %s: %w", noteID, err)
	}
	return nil
}

// resolve finds or creates the tag called name. Tags are global, so a
// concurrent request may insert the same name first. The insert ignores
// that conflict instead of failing, because a failed statement aborts
// the surrounding transaction on postgres.
func (t *TagDB) resolve(db *gorm.DB, name string) (*model.Tag, error) {
	tag, err := t.findByName(db, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("gormdb: resolving tag %q: %w", name, err)
	}

	if err := t.insertIfAbsent(db, name); err != nil {
		return nil, err
	}

	tag, err = t.findByName(db, name)
	if err != nil {
		return nil, fmt.Errorf("gormdb: resolving tag %q: %w", name, err)
	}
	return tag, nil
}

// insertIfAbsent creates the tag unless a row with that name exists.
func (t *TagDB) insertIfAbsent(db *gorm.DB, name string) error {
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&model.Tag{Name: name}).Error
	if err != nil {
		return fmt.Errorf("gormdb: creating tag %q: %w", name, err)
	}
	return nil
}

func (t *TagDB) findByName(db *gorm.DB, name string) (*model.Tag, error) {
	var tag model.Tag
	if err := db.Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (t *TagDB) ListForUser(ctx context.Context, userID string) ([]model.Tag, error) {
	tags := []model.Tag{}
	err := t.conn.WithContext(ctx).Raw(`
		SELECT DISTINCT tags.id, tags.name
		FROM tags
		JOIN note_tags ON note_tags.tag_id = tags.id
		JOIN notes ON notes.id = note_tags.note_id
		WHERE notes.user_id = ?
		ORDER BY tags.name`, userID).Scan(&tags).Error
	if err != nil {
		return nil, fmt.Errorf("gormdb: listing tags: %w", err)
	}
	return tags, nil
}
