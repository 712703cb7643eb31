package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"intakebot/core/logger"

	"log/slog"
)

// Config locates the store files.
type Config struct {
	// Path is the canonical store file, read and rewritten in place.
	Path string
	// LegacyPath is a read-only pre-migration fallback. It is consulted only
	// when Path is absent or unparseable and is never written back.
	LegacyPath string
}

// Store is the single source of truth for users and requests. Every mutator
// persists synchronously before returning, so a reported success is durable.
type Store struct {
	mu    sync.Mutex
	cfg   Config
	data  Data
	clock func() time.Time
}

// slg falls back to the default slog logger before InitLogger has run.
func slg() *slog.Logger {
	if logger.Store != nil {
		return logger.Store
	}
	return slog.Default()
}

// Open loads the store: canonical file first, then the legacy file (migrating
// it into the canonical file immediately), then an empty store. Parse
// failures are treated as "absent" and never abort startup.
func Open(cfg Config) (*Store, error) {
	s := &Store{cfg: cfg, clock: time.Now}

	if data, ok := readData(cfg.Path); ok {
		s.data = s.normalized(data)
		slg().Info("store loaded",
			slog.String("event", "store.load"),
			slog.String("path", cfg.Path),
			slog.Int("users_total", len(s.data.Users)),
			slog.Int("requests_total", len(s.data.Requests)),
		)
		return s, nil
	}

	if data, ok := readData(cfg.LegacyPath); ok {
		s.data = s.normalized(data)
		if err := s.persist(); err != nil {
			return nil, fmt.Errorf("store: write migrated store: %w", err)
		}
		slg().Info("legacy store migrated",
			slog.String("event", "store.migrate"),
			slog.String("path", cfg.Path),
			slog.Int("users_total", len(s.data.Users)),
			slog.Int("requests_total", len(s.data.Requests)),
		)
		return s, nil
	}

	s.data = Data{Users: map[string]UserRecord{}, Requests: []RequestRecord{}}
	slg().Info("store initialized empty",
		slog.String("event", "store.load"),
		slog.String("path", cfg.Path),
	)
	return s, nil
}

// readData parses a store file. Any read or parse failure counts as absent.
func readData(path string) (Data, bool) {
	if path == "" {
		return Data{}, false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, false
	}
	var envelope struct {
		Users    map[string]json.RawMessage `json:"users"`
		Requests []RequestRecord            `json:"requests"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		slg().Warn("store file unparseable, treated as absent",
			slog.String("event", "store.load"),
			slog.String("path", path),
			slog.String("err", err.Error()),
		)
		return Data{}, false
	}
	data := Data{
		Users:    make(map[string]UserRecord, len(envelope.Users)),
		Requests: envelope.Requests,
	}
	if data.Requests == nil {
		data.Requests = []RequestRecord{}
	}
	now := time.Now()
	for key, rawUser := range envelope.Users {
		data.Users[key] = DecodeUser(key, rawUser, Identity{}, now)
	}
	return data, true
}

// normalized runs every user through the canonical rules.
func (s *Store) normalized(data Data) Data {
	now := s.clock()
	out := Data{
		Users:    make(map[string]UserRecord, len(data.Users)),
		Requests: data.Requests,
	}
	if out.Requests == nil {
		out.Requests = []RequestRecord{}
	}
	for key, rec := range data.Users {
		out.Users[key] = Canonicalize(key, rec, now)
	}
	return out
}

// persist serializes first and only then replaces the destination, via a
// temp file + rename, so a marshal failure never truncates the store.
func (s *Store) persist() error {
	out := s.normalized(s.data)
	s.data = out

	blob, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}

	dir := filepath.Dir(s.cfg.Path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.cfg.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.cfg.Path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: replace %s: %w", s.cfg.Path, err)
	}
	return nil
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Now returns the store's clock reading (overridable in tests).
func (s *Store) Now() time.Time {
	return s.clock()
}

// SetClock overrides the time source. Intended for tests.
func (s *Store) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
}

// User returns the record for id, if present.
func (s *Store) User(id int64) (UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data.Users[userKey(id)]
	return rec, ok
}

// EnsureUser creates a blank record for the identity if none exists yet and
// persists the result. Existing records are left untouched.
func (s *Store) EnsureUser(from Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userKey(from.ID)
	if _, ok := s.data.Users[key]; ok {
		return nil
	}
	s.data.Users[key] = UserRecord{
		UserID:    from.ID,
		FirstName: from.DisplayName(),
		Username:  NormalizeUsername(from.Username),
		UpdatedAt: Timestamp(s.clock()),
	}
	return s.persist()
}

// SetPhone records a verified phone number for the identity, refreshing the
// display fields, and persists.
func (s *Store) SetPhone(from Identity, phone string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := UserRecord{
		UserID:      from.ID,
		FirstName:   from.DisplayName(),
		PhoneNumber: StripPlus(phone),
		Username:    NormalizeUsername(from.Username),
		UpdatedAt:   Timestamp(s.clock()),
	}
	s.data.Users[userKey(from.ID)] = rec
	if err := s.persist(); err != nil {
		return UserRecord{}, err
	}
	return rec, nil
}

// RefreshProfile updates the display fields from the current identity while
// preserving the stored phone number, and persists.
func (s *Store) RefreshProfile(from Identity) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userKey(from.ID)
	prev := s.data.Users[key]
	rec := UserRecord{
		UserID:      from.ID,
		FirstName:   from.DisplayName(),
		PhoneNumber: prev.PhoneNumber,
		Username:    NormalizeUsername(from.Username),
		UpdatedAt:   Timestamp(s.clock()),
	}
	if rec.Username == "" {
		rec.Username = prev.Username
	}
	s.data.Users[key] = rec
	if err := s.persist(); err != nil {
		return UserRecord{}, err
	}
	return rec, nil
}

// AppendRequest appends an immutable request record and persists.
func (s *Store) AppendRequest(req RequestRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Requests = append(s.data.Requests, req)
	if err := s.persist(); err != nil {
		return err
	}
	slg().Info("request stored",
		slog.String("event", "store.request"),
		slog.String("request_id", req.ID),
		slog.Int64("user_id", req.UserID),
		slog.Int("requests_total", len(s.data.Requests)),
	)
	return nil
}

// DeleteRequest removes the request with the given id. Missing ids are a
// no-op; the store file is not rewritten in that case.
func (s *Store) DeleteRequest(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, req := range s.data.Requests {
		if req.ID == id {
			s.data.Requests = append(s.data.Requests[:i], s.data.Requests[i+1:]...)
			return true, s.persist()
		}
	}
	return false, nil
}

// ClearPhone removes the verified phone from a user record. Missing users
// are a no-op.
func (s *Store) ClearPhone(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userKey(id)
	rec, ok := s.data.Users[key]
	if !ok {
		return false, nil
	}
	rec.PhoneNumber = ""
	rec.UpdatedAt = Timestamp(s.clock())
	s.data.Users[key] = rec
	return true, s.persist()
}

// Requests returns a copy of all requests sorted newest-first by At.
func (s *Store) Requests() []RequestRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]RequestRecord(nil), s.data.Requests...)
	sortByTimeDesc(out, func(r RequestRecord) time.Time { return ParseTimestamp(r.At) })
	return out
}

// VerifiedUsers returns phone-verified users sorted newest-first by UpdatedAt.
func (s *Store) VerifiedUsers() []UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []UserRecord
	for _, rec := range s.data.Users {
		if rec.Verified() {
			out = append(out, rec)
		}
	}
	sortByTimeDesc(out, func(u UserRecord) time.Time { return ParseTimestamp(u.UpdatedAt) })
	return out
}

// sortByTimeDesc orders items newest-first by the extracted timestamp,
// keeping insertion order for ties.
func sortByTimeDesc[T any](items []T, at func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return at(items[i]).After(at(items[j]))
	})
}

// Counts reports the request total and the verified-user total.
func (s *Store) Counts() (requests, phones int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.data.Users {
		if rec.Verified() {
			phones++
		}
	}
	return len(s.data.Requests), phones
}

// Snapshot returns a deep-enough copy of the current data for export.
func (s *Store) Snapshot() Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Data{
		Users:    make(map[string]UserRecord, len(s.data.Users)),
		Requests: append([]RequestRecord(nil), s.data.Requests...),
	}
	for k, v := range s.data.Users {
		out.Users[k] = v
	}
	return out
}
