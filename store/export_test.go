package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCSVTables(t *testing.T) {
	s, err := Open(tempConfig(t))
	require.NoError(t, err)

	_, err = s.SetPhone(Identity{ID: 1, FirstName: "Quoted, \"Name\"", Username: "u"}, "555")
	require.NoError(t, err)
	require.NoError(t, s.AppendRequest(RequestRecord{
		ID:     "1-1",
		UserID: 1,
		Text:   "line one\nline two",
		At:     "2026-08-29T10:00:00.000Z",
		Phone:  "555",
	}))

	stamp := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	files := s.Export(stamp)
	require.Len(t, files, 2)
	assert.Equal(t, "requests_20260829-103000.csv", files[0].Name)
	assert.Equal(t, "phones_20260829-103000.csv", files[1].Name)

	reqCSV := string(files[0].Content)
	lines := strings.Split(strings.TrimSpace(reqCSV), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "request_id,user_id,time,phone,text", lines[0])
	assert.Contains(t, lines[1], "line one line two", "embedded newlines must flatten to spaces")

	phonesCSV := string(files[1].Content)
	assert.Contains(t, phonesCSV, "user_id,first_name,username,phone_number,updated_at")
	assert.Contains(t, phonesCSV, `"Quoted, ""Name"""`, "commas and quotes must be escaped")
	assert.Contains(t, phonesCSV, "@u")
}

func TestWriteExports(t *testing.T) {
	s, err := Open(tempConfig(t))
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "exports")
	paths, err := s.WriteExports(dir, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
}
