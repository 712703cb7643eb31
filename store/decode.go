package store

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// NormalizeUsername canonicalizes a handle to its "@"-prefixed form.
// Empty input stays empty.
func NormalizeUsername(u string) string {
	s := strings.TrimSpace(u)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(s, "@") {
		return s
	}
	return "@" + s
}

// StripPlus removes a single leading "+" from a phone number so stored
// numbers are E.164 digits without the plus.
func StripPlus(phone string) string {
	return strings.TrimPrefix(phone, "+")
}

// canonicalShape mirrors the current record layout. Pointer fields
// distinguish "absent" from "empty" so the decoder can fill gaps from the
// live identity without probing raw maps.
type canonicalShape struct {
	UserID      *int64  `json:"userId"`
	FirstName   *string `json:"firstName"`
	PhoneNumber *string `json:"phoneNumber"`
	Username    *string `json:"username"`
	UpdatedAt   *string `json:"updatedAt"`
}

// legacyShape is the pre-migration layout, recognized by its "phone" field.
type legacyShape struct {
	Phone *string `json:"phone"`
}

// userDecoder attempts one known record shape. It reports false when the
// shape does not apply so the next decoder is consulted.
type userDecoder func(key int64, raw json.RawMessage, from Identity, now time.Time) (UserRecord, bool)

// userDecoders is the ordered decode chain: canonical shape first, then the
// legacy shape, then a blank record synthesized from the identity alone.
var userDecoders = []userDecoder{decodeCanonical, decodeLegacy, decodeBlank}

// DecodeUser normalizes a raw stored record into the canonical UserRecord.
// The function is idempotent: feeding its own output back yields an
// identical record.
func DecodeUser(key string, raw json.RawMessage, from Identity, now time.Time) UserRecord {
	id, _ := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
	for _, decode := range userDecoders {
		if rec, ok := decode(id, raw, from, now); ok {
			return rec
		}
	}
	// Unreachable: decodeBlank always applies.
	return UserRecord{UserID: id, UpdatedAt: Timestamp(now)}
}

func decodeCanonical(key int64, raw json.RawMessage, from Identity, now time.Time) (UserRecord, bool) {
	var src canonicalShape
	if err := json.Unmarshal(raw, &src); err != nil {
		return UserRecord{}, false
	}
	if src.UserID == nil || src.PhoneNumber == nil {
		return UserRecord{}, false
	}
	rec := UserRecord{
		UserID:      *src.UserID,
		PhoneNumber: *src.PhoneNumber,
	}
	if rec.UserID == 0 {
		rec.UserID = key
	}
	if src.FirstName != nil {
		rec.FirstName = *src.FirstName
	} else {
		rec.FirstName = from.DisplayName()
	}
	if src.Username != nil {
		rec.Username = NormalizeUsername(*src.Username)
	} else {
		rec.Username = NormalizeUsername(from.Username)
	}
	if src.UpdatedAt != nil && *src.UpdatedAt != "" {
		rec.UpdatedAt = *src.UpdatedAt
	} else {
		rec.UpdatedAt = Timestamp(now)
	}
	return rec, true
}

func decodeLegacy(key int64, raw json.RawMessage, from Identity, now time.Time) (UserRecord, bool) {
	var src legacyShape
	if err := json.Unmarshal(raw, &src); err != nil {
		return UserRecord{}, false
	}
	if src.Phone == nil {
		return UserRecord{}, false
	}
	return UserRecord{
		UserID:      key,
		FirstName:   from.DisplayName(),
		PhoneNumber: StripPlus(*src.Phone),
		Username:    NormalizeUsername(from.Username),
		UpdatedAt:   Timestamp(now),
	}, true
}

func decodeBlank(key int64, _ json.RawMessage, from Identity, now time.Time) (UserRecord, bool) {
	return UserRecord{
		UserID:      key,
		FirstName:   from.DisplayName(),
		PhoneNumber: "",
		Username:    NormalizeUsername(from.Username),
		UpdatedAt:   Timestamp(now),
	}, true
}

// Canonicalize re-applies the normalization rules to an already-typed record.
// Save runs every user through it to guard against accumulated drift; the
// result is stable under repeated application.
func Canonicalize(key string, rec UserRecord, now time.Time) UserRecord {
	if rec.UserID == 0 {
		rec.UserID, _ = strconv.ParseInt(strings.TrimSpace(key), 10, 64)
	}
	rec.PhoneNumber = StripPlus(rec.PhoneNumber)
	rec.Username = NormalizeUsername(rec.Username)
	if rec.UpdatedAt == "" {
		rec.UpdatedAt = Timestamp(now)
	}
	return rec
}
