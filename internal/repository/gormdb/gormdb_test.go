package gormdb

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/mindflow/internal/config"
	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/repository"
)

// newTestDB opens a fresh SQLite file in a per-test temp dir. A file is used
// rather than ":memory:" because every pooled connection to ":memory:" would
// see its own empty database.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(config.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, email string, credits int) *model.User {
	t.Helper()
	user := &model.User{Email: email, Password: "hash", Name: "Test", Credits: credits}
	require.NoError(t, db.Users().Create(context.Background(), user))
	return user
}

func createTestNote(t *testing.T, db *DB, userID, title, content string) *model.Note {
	t.Helper()
	note := &model.Note{UserID: userID, Title: title, Content: content}
	require.NoError(t, db.Notes().Create(context.Background(), note))
	return note
}

func TestNew_MigratesAndPings(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestNew_UnsupportedType(t *testing.T) {
	_, err := New(config.DatabaseConfig{Type: "oracle"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "tx@example.com", 0)

	boom := errors.New("boom")
	err := db.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Notes().Create(ctx, &model.Note{UserID: user.ID, Title: "rolled back"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	notes, err := db.Notes().List(ctx, user.ID, repository.NoteFilter{})
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestWithinTx_Commits(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "commit@example.com", 0)

	err := db.WithinTx(ctx, func(tx repository.Store) error {
		return tx.Notes().Create(ctx, &model.Note{UserID: user.ID, Title: "kept"})
	})
	require.NoError(t, err)

	notes, err := db.Notes().List(ctx, user.ID, repository.NoteFilter{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "kept", notes[0].Title)
}
