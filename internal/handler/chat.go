package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/mindflow/internal/model"
)

// providerErrorText is what the client sees when the upstream fails
// mid-stream; the real cause is only logged.
const providerErrorText = "AI Provider Error"

// ChatHandler relays AI answers to the browser as server-sent events.
type ChatHandler struct {
	chat   ChatService
	logger *slog.Logger
}

func NewChatHandler(chat ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

// MetadataEvent is the first event of every stream.
type MetadataEvent struct {
	Type    string       `json:"type"`
	Credits int          `json:"credits"`
	Context []model.Note `json:"context"`
}

// TextEvent carries a delta or an error message.
type TextEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// HandleChat spends one credit and streams the answer.
//
// HTTP: POST /api/chat
// REQUEST BODY: {"message": "..."}
// RESPONSE: text/event-stream
//
//	data: {"type":"metadata","credits":9,"context":[...]}
//	data: {"type":"delta","text":"..."}
//	data: {"type":"error","text":"AI Provider Error"}   (only on failure)
//
// Failures before the credit is spent (missing message, no API key,
// unknown user, no credits) are plain JSON errors.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	sess, err := h.chat.Prepare(ctx, userID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	stream := newSSEWriter(w)
	if err := stream.Send(MetadataEvent{
		Type:    EventMetadata,
		Credits: sess.Credits,
		Context: normalizeNotes(sess.Context),
	}); err != nil {
		h.logger.Warn("chat client went away before metadata",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	err = h.chat.Stream(ctx, sess, func(text string) error {
		return stream.Send(TextEvent{Type: EventDelta, Text: text})
	})
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		// client disconnected; nobody is left to tell
		return
	}

	// the service already logged the cause
	if sendErr := stream.Send(TextEvent{Type: EventError, Text: providerErrorText}); sendErr != nil {
		h.logger.Warn("failed to report chat error to client", slog.String("error", sendErr.Error()))
	}
}
