package bot

import (
	"path/filepath"
	"testing"
	"time"

	"intakebot/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestComposer(t *testing.T) (*Composer, *store.Store, *Sessions) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(store.Config{
		Path:       filepath.Join(dir, "contacts.json"),
		LegacyPath: filepath.Join(dir, "db.json"),
	})
	require.NoError(t, err)
	sessions := NewSessions()
	cp := NewComposer(sessions, st)
	return cp, st, sessions
}

func verifiedUser(t *testing.T, cp *Composer) store.Identity {
	t.Helper()
	from := store.Identity{ID: 100, FirstName: "Test", LastName: "User", Username: "tester"}
	_, err := cp.SharePhone(from, from.ID, "+998901234567")
	require.NoError(t, err)
	return from
}

func TestSharePhoneMismatchRejected(t *testing.T) {
	cp, st, _ := newTestComposer(t)

	from := store.Identity{ID: 100, FirstName: "Test"}
	_, err := cp.SharePhone(from, 555, "+998901234567")
	assert.ErrorIs(t, err, ErrContactMismatch)

	_, ok := st.User(100)
	assert.False(t, ok, "a rejected share must not create a record")
}

func TestSharePhoneStoresStrippedNumberAndClearsSession(t *testing.T) {
	cp, st, sessions := newTestComposer(t)
	sessions.StartComposing(100)

	from := store.Identity{ID: 100, FirstName: "Test", Username: "tester"}
	rec, err := cp.SharePhone(from, 100, "+998901234567")
	require.NoError(t, err)
	assert.Equal(t, "998901234567", rec.PhoneNumber)
	assert.False(t, sessions.Composing(100), "phone share discards the stale session")

	stored, ok := st.User(100)
	require.True(t, ok)
	assert.True(t, stored.Verified())
}

func TestUnverifiedUserGated(t *testing.T) {
	cp, _, _ := newTestComposer(t)

	outcome, rec, err := cp.Handle(Event{
		From: store.Identity{ID: 100},
		Text: ButtonCompose, Content: ButtonCompose,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeNeedPhone, outcome)
	assert.Nil(t, rec)
}

func TestFullCompositionScenario(t *testing.T) {
	cp, st, _ := newTestComposer(t)
	from := verifiedUser(t, cp)

	steps := []Event{
		{From: from, Text: ButtonCompose, Content: ButtonCompose},
		{From: from, Text: "Hello", Content: "Hello"},
		{From: from, Media: &store.MediaRef{Kind: store.MediaPhoto, FileID: "ph1"}},
		{From: from, Text: "World", Content: "World"},
	}
	wantOutcomes := []Outcome{OutcomeComposeStarted, OutcomeCollected, OutcomeCollected, OutcomeCollected}
	for i, ev := range steps {
		outcome, _, err := cp.Handle(ev)
		require.NoError(t, err)
		assert.Equal(t, wantOutcomes[i], outcome, "step %d", i)
	}

	outcome, rec, err := cp.Handle(Event{From: from, Text: ButtonSubmit, Content: ButtonSubmit})
	require.NoError(t, err)
	require.Equal(t, OutcomeSubmitted, outcome)
	require.NotNil(t, rec)

	assert.Equal(t, "Hello\nWorld", rec.Text)
	require.NotNil(t, rec.Media)
	assert.Equal(t, store.MediaPhoto, rec.Media.Kind)
	assert.Equal(t, "ph1", rec.Media.FileID)
	assert.Equal(t, "998901234567", rec.Phone)

	reqs := st.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, *rec, reqs[0])
}

func TestMediaSuperseding(t *testing.T) {
	cp, _, _ := newTestComposer(t)
	from := verifiedUser(t, cp)

	_, _, err := cp.Handle(Event{From: from, Text: ButtonCompose, Content: ButtonCompose})
	require.NoError(t, err)
	_, _, err = cp.Handle(Event{From: from, Media: &store.MediaRef{Kind: store.MediaPhoto, FileID: "A"}})
	require.NoError(t, err)
	_, _, err = cp.Handle(Event{From: from, Media: &store.MediaRef{Kind: store.MediaDocument, FileID: "B", Name: "b.pdf"}})
	require.NoError(t, err)

	_, rec, err := cp.Handle(Event{From: from, Text: ButtonSubmit, Content: ButtonSubmit})
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.NotNil(t, rec.Media)
	assert.Equal(t, "B", rec.Media.FileID, "last attachment wins")
	assert.Equal(t, store.MediaDocument, rec.Media.Kind)
}

func TestSubmitWhileIdleIsGuidance(t *testing.T) {
	cp, st, _ := newTestComposer(t)
	from := verifiedUser(t, cp)

	outcome, rec, err := cp.Handle(Event{From: from, Text: ButtonSubmit, Content: ButtonSubmit})
	require.NoError(t, err)
	assert.Equal(t, OutcomeGuidance, outcome)
	assert.Nil(t, rec)
	assert.Empty(t, st.Requests(), "idle submit never creates a request")
}

func TestSubmitFallbackUsesEventContent(t *testing.T) {
	cp, _, _ := newTestComposer(t)
	from := verifiedUser(t, cp)

	_, _, err := cp.Handle(Event{From: from, Text: ButtonCompose, Content: ButtonCompose})
	require.NoError(t, err)

	// Submit carrying its own content (e.g. a captioned attachment) with an
	// empty draft falls back to that content.
	_, rec, err := cp.Handle(Event{
		From:    from,
		Text:    ButtonSubmit,
		Content: "direct text",
		Media:   &store.MediaRef{Kind: store.MediaPhoto, FileID: "cap"},
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "direct text", rec.Text)
	require.NotNil(t, rec.Media)
	assert.Equal(t, "cap", rec.Media.FileID)
}

func TestSubmitButtonLabelNeverStored(t *testing.T) {
	cp, _, _ := newTestComposer(t)
	from := verifiedUser(t, cp)

	_, _, err := cp.Handle(Event{From: from, Text: ButtonCompose, Content: ButtonCompose})
	require.NoError(t, err)

	_, rec, err := cp.Handle(Event{From: from, Text: ButtonSubmit, Content: ButtonSubmit})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, rec.Text, "a bare submit press has no content")
}

func TestSubmitRefreshesProfileKeepsPhone(t *testing.T) {
	cp, st, _ := newTestComposer(t)
	from := verifiedUser(t, cp)

	renamed := from
	renamed.FirstName = "Renamed"
	_, _, err := cp.Handle(Event{From: renamed, Text: ButtonCompose, Content: ButtonCompose})
	require.NoError(t, err)
	_, rec, err := cp.Handle(Event{From: renamed, Text: ButtonSubmit, Content: ButtonSubmit})
	require.NoError(t, err)
	require.NotNil(t, rec)

	stored, ok := st.User(from.ID)
	require.True(t, ok)
	assert.Equal(t, "Renamed User", stored.FirstName)
	assert.Equal(t, "998901234567", stored.PhoneNumber)
}

func TestRequestIDDerivedFromSenderAndInstant(t *testing.T) {
	cp, _, _ := newTestComposer(t)
	from := verifiedUser(t, cp)

	at := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	cp.SetClock(func() time.Time { return at })

	_, _, err := cp.Handle(Event{From: from, Text: ButtonCompose, Content: ButtonCompose})
	require.NoError(t, err)
	_, rec, err := cp.Handle(Event{From: from, Text: ButtonSubmit, Content: ButtonSubmit})
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "100-1788004800000", rec.ID)
	assert.Equal(t, store.Timestamp(at), rec.At)
}
