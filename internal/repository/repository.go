// Package repository declares the storage contracts the services depend on.
// Implementations live in sub-packages (gormdb).
package repository

import (
	"context"

	"github.com/sakif/mindflow/internal/model"
)

// Store groups the repositories that share one database handle. Inside
// WithinTx the Store passed to fn is bound to the transaction, so every
// repository obtained from it reads and writes through that transaction.
type Store interface {
	Users() UserRepository
	Notes() NoteRepository
	Tags() TagRepository
	Links() LinkRepository

	// WithinTx runs fn in a single transaction. fn's error (or a panic)
	// rolls everything back.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByEmail returns deleted accounts too; callers check IsDeleted.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	SoftDelete(ctx context.Context, id string) error
	// DecrementCredits takes one credit from an active user with a positive
	// balance and returns the new balance. It fails with apperror.Forbidden
	// when the balance is already zero and never drives it negative.
	DecrementCredits(ctx context.Context, id string) (int, error)
}

// NoteFilter narrows List.
type NoteFilter struct {
	FavoritesOnly bool
}

type NoteRepository interface {
	Create(ctx context.Context, note *model.Note) error
	// Update overwrites title, content and the favorite flag of a note the
	// user owns.
	Update(ctx context.Context, note *model.Note) error
	// GetByID loads a note the user owns, with tags, links and backlinks.
	GetByID(ctx context.Context, userID, id string) (*model.Note, error)
	List(ctx context.Context, userID string, filter NoteFilter) ([]model.Note, error)
	// FindByTitle returns the oldest note of the user whose title equals
	// title exactly, or apperror.ErrNotFound.
	FindByTitle(ctx context.Context, userID, title string) (*model.Note, error)
	// Search matches query as a case-sensitive substring of the title or
	// content, most recently updated first.
	Search(ctx context.Context, userID, query string, limit int) ([]model.Note, error)
	// SearchAny matches notes containing any of the terms.
	SearchAny(ctx context.Context, userID string, terms []string, limit int) ([]model.Note, error)
	// Delete removes a note together with its tag associations and every
	// link that touches it.
	Delete(ctx context.Context, userID, id string) error
}

type TagRepository interface {
	// ReplaceForNote resolves names to tags (creating missing ones) and makes
	// them the note's complete tag set.
	ReplaceForNote(ctx context.Context, noteID string, names []string) error
	// ListForUser returns the distinct tags attached to any of the user's
	// notes, ordered by name.
	ListForUser(ctx context.Context, userID string) ([]model.Tag, error)
}

type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	DeleteBySource(ctx context.Context, sourceID, linkType string) error
	// ListForUser returns every link whose source note belongs to the user.
	ListForUser(ctx context.Context, userID string) ([]model.Link, error)
}
