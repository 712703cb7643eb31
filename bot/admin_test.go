package bot

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"intakebot/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdmin(t *testing.T) (*Admin, *store.Store, *Sessions) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(store.Config{
		Path:       filepath.Join(dir, "contacts.json"),
		LegacyPath: filepath.Join(dir, "db.json"),
	})
	require.NoError(t, err)
	sessions := NewSessions()
	return NewAdmin(st, sessions), st, sessions
}

func seedRequests(t *testing.T, st *store.Store, n int) {
	t.Helper()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, st.AppendRequest(store.RequestRecord{
			ID:     fmt.Sprintf("req-%d", i),
			UserID: int64(i),
			Text:   fmt.Sprintf("request %d", i),
			At:     store.Timestamp(base.Add(time.Duration(i) * time.Minute)),
			From:   store.RequestFrom{ID: int64(i), FirstName: "User"},
		}))
	}
}

func TestRequestsViewEmpty(t *testing.T) {
	a, _, _ := newTestAdmin(t)
	text, markup := a.RequestsView(0)
	assert.Equal(t, msgAdminNoRequests, text)
	require.NotNil(t, markup)
}

func TestRequestsViewPaginates(t *testing.T) {
	a, st, _ := newTestAdmin(t)
	seedRequests(t, st, 15) // 2 pages

	text, _ := a.RequestsView(0)
	assert.Contains(t, text, "*1/2*")
	assert.Contains(t, text, "request 14", "page one shows the newest request")

	text, _ = a.RequestsView(1)
	assert.Contains(t, text, "*2/2*")
	assert.Contains(t, text, "request 0", "last page shows the oldest request")

	// Overflow clamps instead of erroring.
	text, _ = a.RequestsView(99)
	assert.Contains(t, text, "*2/2*")
}

func TestDeleteRequestReclampsPage(t *testing.T) {
	a, st, _ := newTestAdmin(t)
	seedRequests(t, st, 11) // page 2 holds exactly one item, the oldest

	text, _, err := a.DeleteRequest("req-0", 1)
	require.NoError(t, err)
	assert.Contains(t, text, "*1/1*", "emptying the last page re-renders the previous one")
	assert.NotContains(t, text, "request 0")
}

func TestDeleteMissingRequestIsNoop(t *testing.T) {
	a, st, _ := newTestAdmin(t)
	seedRequests(t, st, 3)

	text, _, err := a.DeleteRequest("nope", 0)
	require.NoError(t, err)
	assert.Contains(t, text, "total: 3")
}

func TestPhonesViewAndClear(t *testing.T) {
	a, st, _ := newTestAdmin(t)
	_, err := st.SetPhone(store.Identity{ID: 1, FirstName: "One"}, "111")
	require.NoError(t, err)
	_, err = st.SetPhone(store.Identity{ID: 2, FirstName: "Two"}, "222")
	require.NoError(t, err)

	text, _ := a.PhonesView(0)
	assert.Contains(t, text, "total: 2")
	assert.Contains(t, text, "111")

	text, _, err = a.ClearPhone(1, 0)
	require.NoError(t, err)
	assert.Contains(t, text, "total: 1")
	assert.NotContains(t, text, "111")
}

func TestSearchReply(t *testing.T) {
	a, st, _ := newTestAdmin(t)
	_, err := st.SetPhone(store.Identity{ID: 42, FirstName: "Target", Username: "target"}, "998")
	require.NoError(t, err)

	const adminChat = int64(777)

	// Not armed: replies pass through untouched.
	_, handled := a.SearchReply(adminChat, "42")
	assert.False(t, handled)

	a.StartSearch(adminChat)
	reply, handled := a.SearchReply(adminChat, "42")
	assert.True(t, handled)
	assert.Contains(t, reply, "Target")
	assert.Contains(t, reply, "`42`")

	// The flag was consumed by the lookup.
	_, handled = a.SearchReply(adminChat, "42")
	assert.False(t, handled)
}

func TestSearchReplyNonNumericConsumesFlag(t *testing.T) {
	a, _, sessions := newTestAdmin(t)
	const adminChat = int64(777)

	a.StartSearch(adminChat)
	reply, handled := a.SearchReply(adminChat, "abc")
	assert.True(t, handled)
	assert.Equal(t, msgAdminSearchNaN, reply)
	assert.False(t, sessions.AwaitingSearch(adminChat), "a bad reply still disarms the flag")
}

func TestSearchReplyMiss(t *testing.T) {
	a, _, _ := newTestAdmin(t)
	a.StartSearch(1)
	reply, handled := a.SearchReply(1, "31337")
	assert.True(t, handled)
	assert.Equal(t, msgAdminSearchMiss, reply)
}

func TestHomeViewCounters(t *testing.T) {
	a, st, _ := newTestAdmin(t)
	seedRequests(t, st, 2)
	_, err := st.SetPhone(store.Identity{ID: 1, FirstName: "One"}, "111")
	require.NoError(t, err)

	_, markup := a.HomeView()
	require.NotNil(t, markup)
	require.NotEmpty(t, markup.InlineKeyboard)
	assert.Contains(t, markup.InlineKeyboard[0][0].Text, "(2)")
	assert.Contains(t, markup.InlineKeyboard[1][0].Text, "(1)")
}
