package bot

import (
	"strings"
	"sync"

	"intakebot/store"
)

// Session is the in-memory composition state for one chat. It is never
// persisted; a restart discards any half-written draft.
type Session struct {
	Composing bool
	Draft     string
	Media     *store.MediaRef
}

// Sessions maps chat ids to their composition state, plus the independent
// one-shot search flag for admin chats. All methods are safe for concurrent
// use; handlers for one chat never observe another chat's state.
type Sessions struct {
	mu       sync.Mutex
	byChat   map[int64]*Session
	awaiting map[int64]bool
}

// NewSessions creates an empty registry.
func NewSessions() *Sessions {
	return &Sessions{
		byChat:   make(map[int64]*Session),
		awaiting: make(map[int64]bool),
	}
}

func (s *Sessions) getOrCreate(chatID int64) *Session {
	sess, ok := s.byChat[chatID]
	if !ok {
		sess = &Session{}
		s.byChat[chatID] = sess
	}
	return sess
}

// Composing reports whether the chat has an active draft.
func (s *Sessions) Composing(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byChat[chatID]
	return ok && sess.Composing
}

// Reset discards the chat's draft and leaves it idle.
func (s *Sessions) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byChat[chatID] = &Session{}
}

// StartComposing drops any previous draft and enters the composing state.
func (s *Sessions) StartComposing(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byChat[chatID] = &Session{Composing: true}
}

// AppendDraft adds content to the draft, separated by a line break when a
// draft already exists.
func (s *Sessions) AppendDraft(chatID int64, content string) {
	if content == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.getOrCreate(chatID)
	if sess.Draft != "" {
		sess.Draft += "\n"
	}
	sess.Draft += content
}

// SetMedia replaces the retained attachment. At most one media item is kept
// per pending request; earlier attachments are silently superseded.
func (s *Sessions) SetMedia(chatID int64, media *store.MediaRef) {
	if media == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(chatID).Media = media
}

// TakeDraft atomically returns the trimmed draft plus attachment and resets
// the session to idle. The second return is false when the chat was not
// composing (in which case nothing is consumed).
func (s *Sessions) TakeDraft(chatID int64) (string, *store.MediaRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byChat[chatID]
	if !ok || !sess.Composing {
		return "", nil, false
	}
	draft := strings.TrimSpace(sess.Draft)
	media := sess.Media
	s.byChat[chatID] = &Session{}
	return draft, media, true
}

// AwaitSearch arms the one-shot admin search flag.
func (s *Sessions) AwaitSearch(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.awaiting[chatID] = true
}

// AwaitingSearch reports whether the flag is armed without consuming it.
func (s *Sessions) AwaitingSearch(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting[chatID]
}

// ConsumeSearch disarms the flag and reports whether it was armed. The next
// reply after arming always consumes it, valid or not.
func (s *Sessions) ConsumeSearch(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.awaiting[chatID]
	delete(s.awaiting, chatID)
	return was
}
