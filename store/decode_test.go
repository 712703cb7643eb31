package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decodeNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func TestDecodeUserCanonicalPassthrough(t *testing.T) {
	raw := json.RawMessage(`{"userId":42,"firstName":"Alice","phoneNumber":"998901234567","username":"@alice","updatedAt":"2025-01-01T00:00:00.000Z"}`)
	rec := DecodeUser("42", raw, Identity{}, decodeNow)

	assert.Equal(t, int64(42), rec.UserID)
	assert.Equal(t, "Alice", rec.FirstName)
	assert.Equal(t, "998901234567", rec.PhoneNumber)
	assert.Equal(t, "@alice", rec.Username)
	assert.Equal(t, "2025-01-01T00:00:00.000Z", rec.UpdatedAt)
}

func TestDecodeUserCanonicalFillsGapsFromIdentity(t *testing.T) {
	raw := json.RawMessage(`{"userId":42,"phoneNumber":"998901234567"}`)
	from := Identity{ID: 42, FirstName: "Bob", LastName: "Smith", Username: "bob"}
	rec := DecodeUser("42", raw, from, decodeNow)

	assert.Equal(t, "Bob Smith", rec.FirstName)
	assert.Equal(t, "@bob", rec.Username)
	assert.Equal(t, Timestamp(decodeNow), rec.UpdatedAt)
}

func TestDecodeUserLegacyShape(t *testing.T) {
	raw := json.RawMessage(`{"phone":"+998901234567"}`)
	from := Identity{ID: 7, FirstName: "Carol", Username: "@carol"}
	rec := DecodeUser("7", raw, from, decodeNow)

	assert.Equal(t, int64(7), rec.UserID)
	assert.Equal(t, "998901234567", rec.PhoneNumber, "leading plus must be stripped")
	assert.Equal(t, "Carol", rec.FirstName)
	assert.Equal(t, "@carol", rec.Username)
}

func TestDecodeUserBlankFallback(t *testing.T) {
	rec := DecodeUser("9", json.RawMessage(`{}`), Identity{ID: 9, FirstName: "Dan"}, decodeNow)

	assert.Equal(t, int64(9), rec.UserID)
	assert.Equal(t, "Dan", rec.FirstName)
	assert.Empty(t, rec.PhoneNumber)
	assert.False(t, rec.Verified())
}

func TestDecodeUserIdempotent(t *testing.T) {
	inputs := []json.RawMessage{
		[]byte(`{"userId":1,"firstName":"A","phoneNumber":"99890","username":"a","updatedAt":"2025-06-01T10:00:00.000Z"}`),
		[]byte(`{"phone":"+99890"}`),
		[]byte(`{}`),
	}
	for _, raw := range inputs {
		first := DecodeUser("1", raw, Identity{ID: 1, FirstName: "A", Username: "a"}, decodeNow)

		blob, err := json.Marshal(first)
		require.NoError(t, err)
		second := DecodeUser("1", blob, Identity{ID: 1, FirstName: "A", Username: "a"}, decodeNow)

		assert.Equal(t, first, second, "decoding its own output must be stable: %s", raw)
	}
}

func TestCanonicalizeStable(t *testing.T) {
	rec := UserRecord{PhoneNumber: "+99890", Username: "user"}
	once := Canonicalize("3", rec, decodeNow)
	twice := Canonicalize("3", once, decodeNow)

	assert.Equal(t, int64(3), once.UserID)
	assert.Equal(t, "99890", once.PhoneNumber)
	assert.Equal(t, "@user", once.Username)
	assert.Equal(t, once, twice)
}

func TestNormalizeUsername(t *testing.T) {
	assert.Equal(t, "", NormalizeUsername(""))
	assert.Equal(t, "", NormalizeUsername("   "))
	assert.Equal(t, "@x", NormalizeUsername("x"))
	assert.Equal(t, "@x", NormalizeUsername("@x"))
}
