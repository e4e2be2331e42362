package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/service"
)

// NotesHandler serves /api/notes. Every route runs behind auth.RequireAuth
// and only ever touches the caller's own notes.
type NotesHandler struct {
	notes  NoteService
	logger *slog.Logger
}

func NewNotesHandler(notes NoteService, logger *slog.Logger) *NotesHandler {
	return &NotesHandler{notes: notes, logger: logger}
}

// noteRequest is the body of both create and update. Update is a full
// overwrite, so omitted fields reset to their zero value.
type noteRequest struct {
	Title      string   `json:"title"      validate:"max=255"`
	Content    string   `json:"content"`
	Tags       []string `json:"tags"       validate:"max=50,dive,max=64"`
	IsFavorite bool     `json:"isFavorite"`
}

func (req noteRequest) input() service.NoteInput {
	return service.NoteInput{
		Title:      req.Title,
		Content:    req.Content,
		Tags:       req.Tags,
		IsFavorite: req.IsFavorite,
	}
}

// HandleList returns the caller's notes, newest first.
//
// HTTP: GET /api/notes?isFavorite=true
func (h *NotesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	favoritesOnly := r.URL.Query().Get("isFavorite") == "true"
	notes, err := h.notes.List(r.Context(), userID, favoritesOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, normalizeNotes(notes))
}

// HandleGet returns one note with its tags, links and backlinks.
//
// HTTP: GET /api/notes/{id}
func (h *NotesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	note, err := h.notes.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	note.Normalize()
	writeJSON(w, http.StatusOK, note)
}

// HandleCreate stores a new note and resolves its [[wiki links]].
//
// HTTP: POST /api/notes
// REQUEST BODY: {"title": "...", "content": "...", "tags": ["..."], "isFavorite": false}
// RESPONSE: 201 with the stored note
func (h *NotesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	note, err := h.notes.Create(r.Context(), userID, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	note.Normalize()
	writeJSON(w, http.StatusCreated, note)
}

// HandleUpdate overwrites a note.
//
// HTTP: PUT /api/notes/{id}
func (h *NotesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req noteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	note, err := h.notes.Update(r.Context(), userID, r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	note.Normalize()
	writeJSON(w, http.StatusOK, note)
}

// HandleDelete removes a note together with every link touching it.
//
// HTTP: DELETE /api/notes/{id}
func (h *NotesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.notes.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Note deleted"})
}

// HandleSearch is a case-sensitive substring search over title and content.
//
// HTTP: GET /api/notes/search?q=...
func (h *NotesHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	notes, err := h.notes.Search(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, normalizeNotes(notes))
}

// HTTP: GET /api/notes/tags
func (h *NotesHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	tags, err := h.notes.Tags(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	if tags == nil {
		tags = []model.Tag{}
	}
	writeJSON(w, http.StatusOK, tags)
}

// HTTP: GET /api/notes/graph
func (h *NotesHandler) HandleGraph(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	graph, err := h.notes.Graph(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

// normalizeNotes makes sure lists encode as [] rather than null.
func normalizeNotes(notes []model.Note) []model.Note {
	if notes == nil {
		return []model.Note{}
	}
	for i := range notes {
		notes[i].Normalize()
	}
	return notes
}
