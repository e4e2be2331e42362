package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/mindflow/internal/apperror"
	"github.com/sakif/mindflow/internal/metrics"
	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/repository"
)

const (
	MaxTitleLength   = 255
	MaxContentLength = 1_000_000 // bytes
	MaxTagLength     = 64
	MaxTags          = 50
	SearchLimit      = 20
)

// NoteInput is the writable part of a note. Updates overwrite every field.
type NoteInput struct {
	Title      string
	Content    string
	Tags       []string
	IsFavorite bool
}

// NoteService handles note CRUD, search, tags and the graph projection.
type NoteService struct {
	store   repository.Store
	links   *LinkProcessor
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewNoteService(store repository.Store, links *LinkProcessor, m *metrics.Metrics, logger *slog.Logger) *NoteService {
	return &NoteService{store: store, links: links, metrics: m, logger: logger}
}

// normalizeInput validates in and returns the cleaned copy: a blank title
// becomes model.DefaultNoteTitle and tag names are trimmed, deduplicated
// and stripped of blanks.
func normalizeInput(in NoteInput) (NoteInput, error) {
	if strings.TrimSpace(in.Title) == "" {
		in.Title = model.DefaultNoteTitle
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLength {
		return in, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or fewer", MaxTitleLength))
	}
	if len(in.Content) > MaxContentLength {
		return in, apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d bytes or fewer", MaxContentLength))
	}

	tags := make([]string, 0, len(in.Tags))
	seen := make(map[string]bool, len(in.Tags))
	for _, t := range in.Tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		if utf8.RuneCountInString(t) > MaxTagLength {
			return in, apperror.ValidationFailed("tags",
				fmt.Sprintf("tag must be %d characters or fewer", MaxTagLength))
		}
		seen[t] = true
		tags = append(tags, t)
	}
	if len(tags) > MaxTags {
		return in, apperror.ValidationFailed("tags", fmt.Sprintf("at most %d tags per note", MaxTags))
	}
	in.Tags = tags
	return in, nil
}

func (s *NoteService) List(ctx context.Context, userID string, favoritesOnly bool) ([]model.Note, error) {
	notes, err := s.store.Notes().List(ctx, userID, repository.NoteFilter{FavoritesOnly: favoritesOnly})
	if err != nil {
		return nil, fmt.Errorf("service/notes: listing: %w", err)
	}
	return notes, nil
}

func (s *NoteService) Get(ctx context.Context, userID, id string) (*model.Note, error) {
	return s.store.Notes().GetByID(ctx, userID, id)
}

// Create stores a new note with its tags and wiki-links in one transaction
// and returns it with relations loaded.
func (s *NoteService) Create(ctx context.Context, userID string, in NoteInput) (*model.Note, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}

	note := &model.Note{
		UserID:     userID,
		Title:      in.Title,
		Content:    in.Content,
		IsFavorite: in.IsFavorite,
	}
	ghosts := 0
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Notes().Create(ctx, note); err != nil {
			return err
		}
		if err := tx.Tags().ReplaceForNote(ctx, note.ID, in.Tags); err != nil {
			return err
		}
		n, err := s.links.Process(ctx, tx, userID, note.ID, note.Content)
		ghosts = n
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service/notes: creating: %w", err)
	}
	s.metrics.GhostNotesCreated(ghosts)

	s.logger.Info("note created",
		slog.String("note_id", note.ID),
		slog.String("user_id", userID),
		slog.Int("ghosts", ghosts),
	)
	return s.store.Notes().GetByID(ctx, userID, note.ID)
}

// Update overwrites title, content, favorite flag and tag set, then
// regenerates the note's links, all in one transaction.
func (s *NoteService) Update(ctx context.Context, userID, id string, in NoteInput) (*model.Note, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}

	note := &model.Note{
		ID:         id,
		UserID:     userID,
		Title:      in.Title,
		Content:    in.Content,
		IsFavorite: in.IsFavorite,
	}
	ghosts := 0
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Notes().Update(ctx, note); err != nil {
			return err
		}
		if err := tx.Tags().ReplaceForNote(ctx, id, in.Tags); err != nil {
			return err
		}
		n, err := s.links.Process(ctx, tx, userID, id, note.Content)
		ghosts = n
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service/notes: updating %s: %w", id, err)
	}
	s.metrics.GhostNotesCreated(ghosts)

	s.logger.Info("note updated",
		slog.String("note_id", id),
		slog.String("user_id", userID),
		slog.Int("ghosts", ghosts),
	)
	return s.store.Notes().GetByID(ctx, userID, id)
}

func (s *NoteService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.Notes().Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("service/notes: deleting %s: %w", id, err)
	}
	s.logger.Info("note deleted", slog.String("note_id", id), slog.String("user_id", userID))
	return nil
}

// Search finds up to SearchLimit notes whose title or content contains
// query (case-sensitive), most recently updated first.
func (s *NoteService) Search(ctx context.Context, userID, query string) ([]model.Note, error) {
	if query == "" {
		return nil, apperror.ValidationFailed("q", "Query required")
	}
	notes, err := s.store.Notes().Search(ctx, userID, query, SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("service/notes: searching: %w", err)
	}
	return notes, nil
}

func (s *NoteService) Tags(ctx context.Context, userID string) ([]model.Tag, error) {
	tags, err := s.store.Tags().ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/notes: listing tags: %w", err)
	}
	return tags, nil
}

// GraphNode is one vertex of the knowledge graph.
type GraphNode struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	IsFavorite bool   `json:"isFavorite"`
	IsGhost    bool   `json:"isGhost"`
}

// GraphLink is one directed edge of the knowledge graph.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}

// Graph projects the user's notes and links into the node/edge shape the
// force-directed view consumes. Edges whose target is not one of the
// user's notes are left out.
func (s *NoteService) Graph(ctx context.Context, userID string) (*Graph, error) {
	notes, err := s.store.Notes().List(ctx, userID, repository.NoteFilter{})
	if err != nil {
		return nil, fmt.Errorf("service/notes: loading graph nodes: %w", err)
	}
	links, err := s.store.Links().ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/notes: loading graph links: %w", err)
	}

	g := &Graph{
		Nodes: make([]GraphNode, 0, len(notes)),
		Links: make([]GraphLink, 0, len(links)),
	}
	owned := make(map[string]bool, len(notes))
	for _, n := range notes {
		owned[n.ID] = true
		g.Nodes = append(g.Nodes, GraphNode{
			ID:         n.ID,
			Title:      n.Title,
			IsFavorite: n.IsFavorite,
			IsGhost:    n.IsGhost(),
		})
	}
	for _, l := range links {
		if !owned[l.TargetID] {
			continue
		}
		g.Links = append(g.Links, GraphLink{Source: l.SourceID, Target: l.TargetID, Type: l.Type})
	}
	return g, nil
}
