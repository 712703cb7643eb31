package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ExportFile is one generated CSV artifact: the suggested file name plus its
// full content, ready to be shipped as a document or written to disk.
type ExportFile struct {
	Name    string
	Content []byte
}

// Export renders the current data as two CSV tables, requests first. The
// stamp becomes part of each file name so repeated exports never collide.
func (s *Store) Export(stamp time.Time) []ExportFile {
	tag := stamp.UTC().Format("20060102-150405")
	return []ExportFile{
		{Name: "requests_" + tag + ".csv", Content: requestsCSV(s.Requests())},
		{Name: "phones_" + tag + ".csv", Content: phonesCSV(s.VerifiedUsers())},
	}
}

// WriteExports materializes the export files under dir, creating it if
// needed, and returns the written paths.
func (s *Store) WriteExports(dir string, stamp time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: export dir %s: %w", dir, err)
	}
	var paths []string
	for _, f := range s.Export(stamp) {
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, f.Content, 0o644); err != nil {
			return nil, fmt.Errorf("store: write export %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// flatten collapses line breaks so multi-line request text stays on one CSV
// row even for consumers that ignore quoting.
func flatten(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	return strings.ReplaceAll(text, "\r", " ")
}

func requestsCSV(reqs []RequestRecord) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"request_id", "user_id", "time", "phone", "text"})
	for _, req := range reqs {
		_ = w.Write([]string{
			req.ID,
			strconv.FormatInt(req.UserID, 10),
			req.At,
			req.Phone,
			flatten(req.Text),
		})
	}
	w.Flush()
	return buf.Bytes()
}

func phonesCSV(users []UserRecord) []byte {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"user_id", "first_name", "username", "phone_number", "updated_at"})
	for _, u := range users {
		_ = w.Write([]string{
			strconv.FormatInt(u.UserID, 10),
			u.FirstName,
			u.Username,
			u.PhoneNumber,
			u.UpdatedAt,
		})
	}
	w.Flush()
	return buf.Bytes()
}
