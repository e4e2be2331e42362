package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/mindflow/internal/apperror"
	"github.com/sakif/mindflow/internal/llm"
	"github.com/sakif/mindflow/internal/metrics"
	"github.com/sakif/mindflow/internal/model"
	"github.com/sakif/mindflow/internal/repository"
)

const (
	DefaultContextLimit  = 3
	DefaultPreviewLength = 100
	minKeywordLength     = 4 // runes
)

const systemPromptTemplate = `You are a helpful "Second Brain" assistant.

INSTRUCTIONS FOR FORMATTING:
1. STRUCTURE YOUR ANSWER: Use clear H2 headers (Markdown ##) for main sections.
2. USE SUBPARTS: Break down complex explanations into bullet points or numbered lists.
3. AVOID WALLS OF TEXT: Keep paragraphs short (max 2-3 sentences).
4. BE VISUAL: Use bold text for key terms.

Here are some relevant notes from the user's knowledge base:
%s

Answer the user's query using the notes if relevant. If not, answer generally but maintain the rigorous structure described above.`

// ChatOptions tunes context retrieval.
type ChatOptions struct {
	ContextLimit  int
	PreviewLength int
}

// ChatSession is a paid-for chat turn, ready to stream.
type ChatSession struct {
	UserID       string
	Message      string
	Credits      int          // balance after this turn's deduction
	Context      []model.Note // notes embedded in the prompt
	SystemPrompt string
}

// ChatService runs the AI relay: credit gate, context retrieval, prompt
// assembly and upstream streaming.
type ChatService struct {
	store    repository.Store
	streamer llm.Streamer
	opts     ChatOptions
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewChatService builds the service. streamer may be nil when no API key is
// configured; every chat request then fails with apperror.ErrUnavailable.
func NewChatService(store repository.Store, streamer llm.Streamer, opts ChatOptions, m *metrics.Metrics, logger *slog.Logger) *ChatService {
	if opts.ContextLimit <= 0 {
		opts.ContextLimit = DefaultContextLimit
	}
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = DefaultPreviewLength
	}
	return &ChatService{store: store, streamer: streamer, opts: opts, metrics: m, logger: logger}
}

// Prepare runs every check that must pass before the response stream
// opens, in order: message present, upstream configured, user exists and
// is active, balance positive. It then deducts exactly one credit and
// gathers the context notes.
func (s *ChatService) Prepare(ctx context.Context, userID, message string) (*ChatSession, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperror.ValidationFailed("message", "Message is required")
	}
	if s.streamer == nil {
		s.logger.Warn("chat requested but no API key is configured")
		return nil, apperror.Unavailable("AI service not configured")
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) || (err == nil && user.IsDeleted()) {
		return nil, apperror.NotFoundMessage("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("service/chat: loading user: %w", err)
	}
	if user.Credits <= 0 {
		return nil, apperror.Forbidden("Insufficient credits. Please upgrade your plan.")
	}

	credits, err := s.store.Users().DecrementCredits(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrForbidden) {
			return nil, apperror.Forbidden("Insufficient credits. Please upgrade your plan.")
		}
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("User not found")
		}
		return nil, fmt.Errorf("service/chat: deducting credit: %w", err)
	}
	s.metrics.CreditSpent()

	notes, err := s.store.Notes().SearchAny(ctx, userID, Keywords(message), s.opts.ContextLimit)
	if err != nil {
		return nil, fmt.Errorf("service/chat: retrieving context: %w", err)
	}

	s.logger.Info("chat prepared",
		slog.String("user_id", userID),
		slog.Int("credits", credits),
		slog.Int("context_notes", len(notes)),
	)
	return &ChatSession{
		UserID:       userID,
		Message:      message,
		Credits:      credits,
		Context:      notes,
		SystemPrompt: BuildSystemPrompt(notes, s.opts.PreviewLength),
	}, nil
}

// Stream relays the upstream completion for sess, calling emit with each
// non-empty, citation-free piece of text. It returns when the upstream
// finishes, fails, or ctx is cancelled.
func (s *ChatService) Stream(ctx context.Context, sess *ChatSession, emit func(text string) error) error {
	var filter CitationFilter
	err := s.streamer.Stream(ctx, llm.Request{System: sess.SystemPrompt, User: sess.Message}, func(delta string) error {
		if text := filter.Push(delta); text != "" {
			return emit(text)
		}
		return nil
	})
	if err == nil {
		if rest := filter.Flush(); rest != "" {
			err = emit(rest)
		}
	}

	switch {
	case err == nil:
		s.metrics.ChatStream(metrics.OutcomeCompleted)
	case ctx.Err() != nil:
		s.metrics.ChatStream(metrics.OutcomeCanceled)
		s.logger.Info("chat stream canceled", slog.String("user_id", sess.UserID))
	default:
		s.metrics.ChatStream(metrics.OutcomeError)
		s.logger.Error("chat stream failed",
			slog.String("user_id", sess.UserID),
			slog.String("error", err.Error()),
		)
	}
	return err
}

// Keywords returns the whitespace-separated words of message longer than
// three characters, without duplicates.
func Keywords(message string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(message) {
		if utf8.RuneCountInString(w) < minKeywordLength || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// BuildSystemPrompt embeds one "- Title: preview..." line per note.
func BuildSystemPrompt(notes []model.Note, previewLength int) string {
	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		lines = append(lines, "- "+n.Title+": "+preview(n.Content, previewLength)+"...")
	}
	return fmt.Sprintf(systemPromptTemplate, strings.Join(lines, "\n"))
}

// preview cuts s to at most n runes.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
