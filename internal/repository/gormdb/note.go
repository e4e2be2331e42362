package gormdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sakif/mindflow/internal/apperror"
	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/repository"
)

// compile-time check that *NoteDB implements repository.NoteRepository
var _ repository.NoteRepository = (*NoteDB)(nil)

// NoteDB provides note persistence. Every query is scoped by user_id; a
// note owned by someone else is reported exactly like a missing one.
type NoteDB struct {
	conn    *gorm.DB
	dialect string
}

// withRelations preloads tags (by name), outgoing links and backlinks.
func withRelations(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name ASC") }).
		Preload("Links", func(db *gorm.DB) *gorm.DB { return db.Order("links.created_at ASC, links.id ASC") }).
		Preload("Backlinks", func(db *gorm.DB) *gorm.DB { return db.Order("links.created_at ASC, links.id ASC") })
}

func normalize(notes []model.Note) []model.Note {
	if notes == nil {
		return []model.Note{}
	}
	for i := range notes {
		notes[i].Normalize()
	}
	return notes
}

// Create inserts the note row only; tags and links are written by their
// own repositories.
func (n *NoteDB) Create(ctx context.Context, note *model.Note) error {
	if err := n.conn.WithContext(ctx).Omit(clause.Associations).Create(note).Error; err != nil {
		return fmt.Errorf("gormdb: creating note: %w", err)
	}
	return nil
}

func (n *NoteDB) Update(ctx context.Context, note *model.Note) error {
	res := n.conn.WithContext(ctx).
		Model(&model.Note{}).
		Where("id = ? AND user_id = ?", note.ID, note.UserID).
		Updates(map[string]any{
			"title":       note.Title,
			"content":     note.Content,
			"is_favorite": note.IsFavorite,
		})
	if res.Error != nil {
		return fmt.Errorf("gormdb: updating note %s: %w", note.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("note", note.ID)
	}
	return nil
}

func (n *NoteDB) GetByID(ctx context.Context, userID, id string) (*model.Note, error) {
	var note model.Note
	err := withRelations(n.conn.WithContext(ctx)).
		Where("id = ? AND user_id = ?", id, userID).
		First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("note", id)
	}
	if err != nil {
		return nil, fmt.Errorf("gormdb: getting note %s: %w", id, err)
	}
	note.Normalize()
	return &note, nil
}

func (n *NoteDB) List(ctx context.Context, userID string, filter repository.NoteFilter) ([]model.Note, error) {
	q := withRelations(n.conn.WithContext(ctx)).Where("user_id = ?", userID)
	if filter.FavoritesOnly {
		q = q.Where("is_favorite = ?", true)
	}

	var notes []model.Note
	if err := q.Order("created_at DESC, id DESC").Find(&notes).Error; err != nil {
		return nil, fmt.Errorf("gormdb: listing notes: %w", err)
	}
	return normalize(notes), nil
}

func (n *NoteDB) FindByTitle(ctx context.Context, userID, title string) (*model.Note, error) {
	var note model.Note
	err := n.conn.WithContext(ctx).
		Where("user_id = ?", userID).
		Where(equals(n.dialect, "title"), title).
		Order("created_at ASC, id ASC").
		First(&note).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFoundMessage("note not found")
	}
	if err != nil {
		return nil, fmt.Errorf("gormdb: finding note by title: %w", err)
	}
	return &note, nil
}

func (n *NoteDB) Search(ctx context.Context, userID, query string, limit int) ([]model.Note, error) {
	return n.SearchAny(ctx, userID, []string{query}, limit)
}

// SearchAny builds one parenthesised OR group:
//
//	user_id = ? AND ((contains(title, t1) OR contains(content, t1)) OR ...)
func (n *NoteDB) SearchAny(ctx context.Context, userID string, terms []string, limit int) ([]model.Note, error) {
	if len(terms) == 0 {
		return []model.Note{}, nil
	}

	parts := make([]string, 0, len(terms))
	args := make([]any, 0, 2*len(terms))
	for _, term := range terms {
		parts = append(parts, "("+contains(n.dialect, "title")+" OR "+contains(n.dialect, "content")+")")
		args = append(args, term, term)
	}

	var notes []model.Note
	err := n.conn.WithContext(ctx).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name ASC") }).
		Where("user_id = ?", userID).
		Where("("+strings.Join(parts, " OR ")+")", args...).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("gormdb: searching notes: %w", err)
	}
	return normalize(notes), nil
}

func (n *NoteDB) Delete(ctx context.Context, userID, id string) error {
	return n.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var note model.Note
		err := tx.Select("id").Where("id = ? AND user_id = ?", id, userID).First(&note).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("note", id)
		}
		if err != nil {
			return fmt.Errorf("gormdb: getting note %s: %w", id, err)
		}

		if err := tx.Where("source_id = ? OR target_id = ?", id, id).Delete(&model.Link{}).Error; err != nil {
			return fmt.Errorf("gormdb: deleting links of note %s: %w", id, err)
		}
		if err := tx.Model(&note).Association("Tags").Clear(); err != nil {
			return fmt.Errorf("gormdb: clearing tags of note %s: %w", id, err)
		}
		if err := tx.Delete(&note).Error; err != nil {
			return fmt.Errorf("gormdb: deleting note %s: %w", id, err)
		}
		return nil
	})
}
