// Package store owns the durable flat-file state of the bot: contact records
// and submitted requests. The whole collection is kept in memory and rewritten
// to disk as one atomic file replacement after every mutation.
package store

import "time"

// isoMillis matches the wire timestamp format of the store file
// (ISO-8601 UTC with millisecond precision).
const isoMillis = "2006-01-02T15:04:05.000Z"

// Timestamp renders t in the store's wire format.
func Timestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

// ParseTimestamp parses a stored timestamp. Malformed values sort as zero
// rather than failing a load.
func ParseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

// Identity is the transport-supplied sender metadata attached to every
// inbound event.
type Identity struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// DisplayName joins the non-empty name parts.
func (i Identity) DisplayName() string {
	switch {
	case i.FirstName != "" && i.LastName != "":
		return i.FirstName + " " + i.LastName
	case i.FirstName != "":
		return i.FirstName
	default:
		return i.LastName
	}
}

// Media kinds retained on a request.
const (
	MediaPhoto    = "photo"
	MediaDocument = "document"
)

// MediaRef describes the single attachment retained for a pending request.
type MediaRef struct {
	Kind   string `json:"type"`
	FileID string `json:"file_id"`
	Name   string `json:"name,omitempty"`
}

// UserRecord is the canonical per-user contact record. UserID is stable;
// every other field is last-write-wins.
type UserRecord struct {
	UserID      int64  `json:"userId"`
	FirstName   string `json:"firstName"`
	PhoneNumber string `json:"phoneNumber"`
	Username    string `json:"username"`
	UpdatedAt   string `json:"updatedAt"`
}

// Verified reports whether the user has confirmed a phone number.
func (u UserRecord) Verified() bool {
	return u.PhoneNumber != ""
}

// RequestFrom snapshots the submitter's display identity at submission time.
type RequestFrom struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// RequestRecord is an immutable completed submission. Phone is a snapshot of
// the verified number at submission time and never changes retroactively.
type RequestRecord struct {
	ID     string      `json:"id"`
	UserID int64       `json:"userId"`
	Text   string      `json:"text"`
	At     string      `json:"at"`
	Phone  string      `json:"phone"`
	Media  *MediaRef   `json:"media"`
	From   RequestFrom `json:"from"`
}

// Data is the on-disk envelope: users keyed by decimal user id plus the
// append-only request list.
type Data struct {
	Users    map[string]UserRecord `json:"users"`
	Requests []RequestRecord       `json:"requests"`
}
