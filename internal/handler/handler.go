// Package handler is the HTTP layer: it decodes requests, calls the
// services and encodes responses. Handlers depend on the small interfaces
// below rather than concrete services so tests can substitute fakes.
package handler

import (
	"context"
	"net/http"

	"github.com/sakif/mindflow/internal/apperror"
	"github.com/sakif/mindflow/internal/auth"
	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/service"
)

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	DeleteAccount(ctx context.Context, userID string) error
}

type NoteService interface {
	List(ctx context.Context, userID string, favoritesOnly bool) ([]model.Note, error)
	Get(ctx context.Context, userID, id string) (*model.Note, error)
	Create(ctx context.Context, userID string, in service.NoteInput) (*model.Note, error)
	Update(ctx context.Context, userID, id string, in service.NoteInput) (*model.Note, error)
	Delete(ctx context.Context, userID, id string) error
	Search(ctx context.Context, userID, query string) ([]model.Note, error)
	Tags(ctx context.Context, userID string) ([]model.Tag, error)
	Graph(ctx context.Context, userID string) (*service.Graph, error)
}

type ChatService interface {
	Prepare(ctx context.Context, userID, message string) (*service.ChatSession, error)
	Stream(ctx context.Context, sess *service.ChatSession, emit func(text string) error) error
}

// compile-time checks that the services satisfy the handler contracts
var (
	_ AuthService = (*service.AuthService)(nil)
	_ NoteService = (*service.NoteService)(nil)
	_ ChatService = (*service.ChatService)(nil)
)

// currentUser returns the authenticated user id. Routes are mounted behind
// auth.RequireAuth, so a miss means the router was wired wrong.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("Access denied. No token provided."))
		return "", false
	}
	return id, true
}
