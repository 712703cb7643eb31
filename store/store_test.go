package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		Path:       filepath.Join(dir, "contacts.json"),
		LegacyPath: filepath.Join(dir, "db.json"),
	}
}

func TestOpenEmptyWhenNoFiles(t *testing.T) {
	s, err := Open(tempConfig(t))
	require.NoError(t, err)

	requests, phones := s.Counts()
	assert.Zero(t, requests)
	assert.Zero(t, phones)
}

func TestOpenCorruptFileTreatedAsAbsent(t *testing.T) {
	cfg := tempConfig(t)
	require.NoError(t, os.WriteFile(cfg.Path, []byte("{not json"), 0o644))

	s, err := Open(cfg)
	require.NoError(t, err)
	requests, _ := s.Counts()
	assert.Zero(t, requests)
}

func TestOpenMigratesLegacyFile(t *testing.T) {
	cfg := tempConfig(t)
	legacy := `{"users":{"42":{"phone":"+998901234567"}},"requests":[{"id":"42-1","userId":42,"text":"hi","at":"2025-01-01T00:00:00.000Z","phone":"998901234567","media":null,"from":{"id":42,"first_name":"A"}}]}`
	require.NoError(t, os.WriteFile(cfg.LegacyPath, []byte(legacy), 0o644))

	s, err := Open(cfg)
	require.NoError(t, err)

	rec, ok := s.User(42)
	require.True(t, ok)
	assert.Equal(t, "998901234567", rec.PhoneNumber)
	assert.True(t, rec.Verified())

	// Migration writes the canonical file immediately.
	blob, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	var out Data
	require.NoError(t, json.Unmarshal(blob, &out))
	assert.Len(t, out.Requests, 1)
	assert.Equal(t, "998901234567", out.Users["42"].PhoneNumber)
}

func TestOpenPrefersCanonicalOverLegacy(t *testing.T) {
	cfg := tempConfig(t)
	canonical := `{"users":{"1":{"userId":1,"firstName":"Canon","phoneNumber":"111","username":"@c","updatedAt":"2025-01-01T00:00:00.000Z"}},"requests":[]}`
	legacy := `{"users":{"1":{"phone":"+999"}},"requests":[]}`
	require.NoError(t, os.WriteFile(cfg.Path, []byte(canonical), 0o644))
	require.NoError(t, os.WriteFile(cfg.LegacyPath, []byte(legacy), 0o644))

	s, err := Open(cfg)
	require.NoError(t, err)
	rec, ok := s.User(1)
	require.True(t, ok)
	assert.Equal(t, "111", rec.PhoneNumber)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := tempConfig(t)
	s, err := Open(cfg)
	require.NoError(t, err)

	from := Identity{ID: 5, FirstName: "Eve", Username: "eve"}
	_, err = s.SetPhone(from, "+998901234567")
	require.NoError(t, err)

	req := RequestRecord{
		ID:     "5-1000",
		UserID: 5,
		Text:   "line one\nline two",
		At:     "2026-08-29T10:00:00.000Z",
		Phone:  "998901234567",
		Media:  &MediaRef{Kind: MediaPhoto, FileID: "abc"},
		From:   RequestFrom{ID: 5, FirstName: "Eve", Username: "eve"},
	}
	require.NoError(t, s.AppendRequest(req))

	reopened, err := Open(cfg)
	require.NoError(t, err)

	gotReqs := reopened.Requests()
	require.Len(t, gotReqs, 1)
	assert.Equal(t, req, gotReqs[0])

	rec, ok := reopened.User(5)
	require.True(t, ok)
	assert.Equal(t, "998901234567", rec.PhoneNumber)
	assert.Equal(t, "@eve", rec.Username)
}

func TestDeleteRequestIdempotent(t *testing.T) {
	cfg := tempConfig(t)
	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.AppendRequest(RequestRecord{ID: "a", UserID: 1, At: "2026-01-01T00:00:00.000Z"}))

	before, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)

	ok, err := s.DeleteRequest("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "deleting a missing id must not rewrite the store")

	ok, err = s.DeleteRequest("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, s.Requests())
}

func TestClearPhone(t *testing.T) {
	s, err := Open(tempConfig(t))
	require.NoError(t, err)
	_, err = s.SetPhone(Identity{ID: 2, FirstName: "B"}, "555")
	require.NoError(t, err)

	ok, err := s.ClearPhone(2)
	require.NoError(t, err)
	assert.True(t, ok)

	rec, _ := s.User(2)
	assert.False(t, rec.Verified())

	ok, err = s.ClearPhone(404)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefreshProfilePreservesPhone(t *testing.T) {
	s, err := Open(tempConfig(t))
	require.NoError(t, err)
	_, err = s.SetPhone(Identity{ID: 3, FirstName: "Old"}, "777")
	require.NoError(t, err)

	rec, err := s.RefreshProfile(Identity{ID: 3, FirstName: "New", Username: "fresh"})
	require.NoError(t, err)
	assert.Equal(t, "New", rec.FirstName)
	assert.Equal(t, "@fresh", rec.Username)
	assert.Equal(t, "777", rec.PhoneNumber)
}

func TestSortedAccessorsNewestFirst(t *testing.T) {
	s, err := Open(tempConfig(t))
	require.NoError(t, err)

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.AppendRequest(RequestRecord{
			ID: id, UserID: 1, At: Timestamp(base.Add(time.Duration(i) * time.Hour)),
		}))
	}
	reqs := s.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "new", reqs[0].ID)
	assert.Equal(t, "old", reqs[2].ID)

	clock := base
	s.SetClock(func() time.Time { clock = clock.Add(time.Minute); return clock })
	_, err = s.SetPhone(Identity{ID: 10, FirstName: "First"}, "1")
	require.NoError(t, err)
	_, err = s.SetPhone(Identity{ID: 20, FirstName: "Second"}, "2")
	require.NoError(t, err)

	users := s.VerifiedUsers()
	require.Len(t, users, 2)
	assert.Equal(t, int64(20), users[0].UserID)
}
