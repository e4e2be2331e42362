package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/mindflow/internal/config"
	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/repository/gormdb"
)

// newTestStore opens a throwaway SQLite store for services that need real
// transactions.
func newTestStore(t *testing.T) *gormdb.DB {
	t.Helper()
	db, err := gormdb.New(config.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "service.db"),
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *gormdb.DB, email string, credits int) *model.User {
	t.Helper()
	u := &model.User{Email: email, Password: "x", Credits: credits}
	require.NoError(t, db.Users().Create(context.Background(), u))
	return u
}

func newTestNoteService(t *testing.T) (*NoteService, *gormdb.DB) {
	t.Helper()
	db := newTestStore(t)
	return NewNoteService(db, NewLinkProcessor(testLogger()), nil, testLogger()), db
}
