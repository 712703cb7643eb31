package bot

import (
	"testing"

	"intakebot/store"

	"github.com/stretchr/testify/assert"
)

func TestAppendDraftJoinsWithNewline(t *testing.T) {
	s := NewSessions()
	s.StartComposing(1)
	s.AppendDraft(1, "Hello")
	s.AppendDraft(1, "")
	s.AppendDraft(1, "World")

	draft, _, ok := s.TakeDraft(1)
	assert.True(t, ok)
	assert.Equal(t, "Hello\nWorld", draft)
}

func TestTakeDraftResetsSession(t *testing.T) {
	s := NewSessions()
	s.StartComposing(1)
	s.AppendDraft(1, "text")
	s.SetMedia(1, &store.MediaRef{Kind: store.MediaPhoto, FileID: "x"})

	_, media, ok := s.TakeDraft(1)
	assert.True(t, ok)
	assert.NotNil(t, media)

	assert.False(t, s.Composing(1))
	_, _, ok = s.TakeDraft(1)
	assert.False(t, ok, "a consumed draft cannot be taken twice")
}

func TestTakeDraftWhileIdle(t *testing.T) {
	s := NewSessions()
	_, _, ok := s.TakeDraft(7)
	assert.False(t, ok)
}

func TestStartComposingDropsPreviousDraft(t *testing.T) {
	s := NewSessions()
	s.StartComposing(1)
	s.AppendDraft(1, "stale")
	s.StartComposing(1)

	draft, media, ok := s.TakeDraft(1)
	assert.True(t, ok)
	assert.Empty(t, draft)
	assert.Nil(t, media)
}

func TestSessionsAreChatScoped(t *testing.T) {
	s := NewSessions()
	s.StartComposing(1)
	s.AppendDraft(1, "mine")

	assert.False(t, s.Composing(2))
	_, _, ok := s.TakeDraft(2)
	assert.False(t, ok)
	assert.True(t, s.Composing(1))
}

func TestSearchFlagIsOneShot(t *testing.T) {
	s := NewSessions()
	assert.False(t, s.ConsumeSearch(9))

	s.AwaitSearch(9)
	assert.True(t, s.AwaitingSearch(9))
	assert.True(t, s.ConsumeSearch(9))
	assert.False(t, s.AwaitingSearch(9))
	assert.False(t, s.ConsumeSearch(9), "the flag arms exactly one lookup")
}
