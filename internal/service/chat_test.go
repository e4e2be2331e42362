package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/mindflow/internal/apperror"
	"github.com/sakif/mindflow/internal/llm"
	"github.com/sakif/mindflow/internal/repository/gormdb"
)

// fakeStreamer replays canned deltas and records the request it got.
type fakeStreamer struct {
	deltas []string
	err    error
	got    llm.Request
}

func (f *fakeStreamer) Stream(_ context.Context, req llm.Request, onDelta func(string) error) error {
	f.got = req
	for _, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return f.err
}

func newTestChatService(t *testing.T, streamer llm.Streamer) (*ChatService, *gormdb.DB) {
	t.Helper()
	db := newTestStore(t)
	return NewChatService(db, streamer, ChatOptions{}, nil, testLogger()), db
}

func credits(t *testing.T, db *gormdb.DB, userID string) int {
	t.Helper()
	u, err := db.Users().GetByID(context.Background(), userID)
	require.NoError(t, err)
	return u.Credits
}

// =========================================================================
// PREPARE TESTS
// =========================================================================

func TestPrepare_PreconditionsInOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("missing message", func(t *testing.T) {
		svc, db := newTestChatService(t, nil)
		u := seedUser(t, db, "m@example.com", 5)
		_, err := svc.Prepare(ctx, u.ID, "   ")
		assert.ErrorIs(t, err, apperror.ErrValidation)
	})

	t.Run("no api key", func(t *testing.T) {
		svc, db := newTestChatService(t, nil)
		u := seedUser(t, db, "k@example.com", 5)
		_, err := svc.Prepare(ctx, u.ID, "hello")
		assert.ErrorIs(t, err, apperror.ErrUnavailable)
		assert.Equal(t, 5, credits(t, db, u.ID))
	})

	t.Run("unknown user", func(t *testing.T) {
		svc, _ := newTestChatService(t, &fakeStreamer{})
		_, err := svc.Prepare(ctx, "ghost-user", "hello")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("deleted user", func(t *testing.T) {
		svc, db := newTestChatService(t, &fakeStreamer{})
		u := seedUser(t, db, "del@example.com", 5)
		require.NoError(t, db.Users().SoftDelete(ctx, u.ID))
		_, err := svc.Prepare(ctx, u.ID, "hello")
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("no credits", func(t *testing.T) {
		svc, db := newTestChatService(t, &fakeStreamer{})
		u := seedUser(t, db, "broke@example.com", 0)
		_, err := svc.Prepare(ctx, u.ID, "hello")
		assert.ErrorIs(t, err, apperror.ErrForbidden)
		assert.Equal(t, 0, credits(t, db, u.ID), "no mutation")
	})
}

func TestPrepare_DeductsOneCredit(t *testing.T) {
	svc, db := newTestChatService(t, &fakeStreamer{})
	u := seedUser(t, db, "pay@example.com", 3)

	sess, err := svc.Prepare(context.Background(), u.ID, "hello there")
	require.NoError(t, err)

	assert.Equal(t, 2, sess.Credits)
	assert.Equal(t, 2, credits(t, db, u.ID), "reported balance matches stored balance")
}

func TestPrepare_ContextFromKeywords(t *testing.T) {
	svc, db := newTestChatService(t, &fakeStreamer{})
	ctx := context.Background()
	u := seedUser(t, db, "ctx@example.com", 3)
	notes := NewNoteService(db, NewLinkProcessor(testLogger()), nil, testLogger())

	_, err := notes.Create(ctx, u.ID, NoteInput{Title: "Kubernetes", Content: strings.Repeat("k", 150)})
	require.NoError(t, err)
	_, err = notes.Create(ctx, u.ID, NoteInput{Title: "Cooking", Content: "pasta"})
	require.NoError(t, err)

	sess, err := svc.Prepare(ctx, u.ID, "how do I run Kubernetes on a pi")
	require.NoError(t, err)

	require.Len(t, sess.Context, 1)
	assert.Equal(t, "Kubernetes", sess.Context[0].Title)
	assert.Contains(t, sess.SystemPrompt, "- Kubernetes: "+strings.Repeat("k", 100)+"...\n")
	assert.NotContains(t, sess.SystemPrompt, strings.Repeat("k", 101))
	assert.NotContains(t, sess.SystemPrompt, "Cooking")
}

func TestPrepare_ContextLimit(t *testing.T) {
	svc, db := newTestChatService(t, &fakeStreamer{})
	ctx := context.Background()
	u := seedUser(t, db, "lim@example.com", 3)
	notes := NewNoteService(db, NewLinkProcessor(testLogger()), nil, testLogger())
	for i := 0; i < 5; i++ {
		_, err := notes.Create(ctx, u.ID, NoteInput{Title: "golang", Content: "x"})
		require.NoError(t, err)
	}

	sess, err := svc.Prepare(ctx, u.ID, "golang")
	require.NoError(t, err)
	assert.Len(t, sess.Context, DefaultContextLimit)
}

// =========================================================================
// STREAM TESTS
// =========================================================================

func TestStream_StripsCitationsAndSkipsEmpty(t *testing.T) {
	fs := &fakeStreamer{deltas: []string{"Go is fast[1]", "", "[2]", " and simple[", "3]."}}
	svc, db := newTestChatService(t, fs)
	u := seedUser(t, db, "s@example.com", 1)

	sess, err := svc.Prepare(context.Background(), u.ID, "tell me about Go")
	require.NoError(t, err)

	var out []string
	err = svc.Stream(context.Background(), sess, func(s string) error {
		out = append(out, s)
		return nil
	})
	require.NoError(t, err)

	for _, s := range out {
		assert.NotEmpty(t, s)
	}
	assert.Equal(t, "Go is fast and simple.", strings.Join(out, ""))
	assert.Equal(t, sess.SystemPrompt, fs.got.System)
	assert.Equal(t, "tell me about Go", fs.got.User)
}

func TestStream_UpstreamError(t *testing.T) {
	upstream := errors.New("502 from provider")
	svc, db := newTestChatService(t, &fakeStreamer{deltas: []string{"partial"}, err: upstream})
	u := seedUser(t, db, "e@example.com", 1)

	sess, err := svc.Prepare(context.Background(), u.ID, "hello")
	require.NoError(t, err)

	var out []string
	err = svc.Stream(context.Background(), sess, func(s string) error {
		out = append(out, s)
		return nil
	})
	assert.ErrorIs(t, err, upstream)
	assert.Equal(t, []string{"partial"}, out)
}

// =========================================================================
// HELPERS
// =========================================================================

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"what", "about", "Kubernetes"},
		Keywords("what is up about  Kubernetes\tand what"))
	assert.Nil(t, Keywords("a an the"))
	assert.Equal(t, []string{"café"}, Keywords("café"), "length counts characters, not bytes")
}

func TestBuildSystemPrompt_NoNotes(t *testing.T) {
	p := BuildSystemPrompt(nil, 100)
	assert.True(t, strings.HasPrefix(p, `You are a helpful "Second Brain" assistant.`))
	assert.Contains(t, p, "knowledge base:\n\n\nAnswer")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short", 100))
	assert.Equal(t, "日本", preview("日本語", 2))
}
