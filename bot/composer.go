package bot

import (
	"errors"
	"fmt"
	"time"

	"intakebot/store"
)

// ErrContactMismatch reports a contact-share whose payload does not belong
// to the sender. Treated as a validation error, never a fault.
var ErrContactMismatch = errors.New("bot: shared contact does not belong to sender")

// Event is one inbound content-bearing message, decoupled from the transport
// so the state machine is testable without a live bot.
type Event struct {
	From store.Identity
	// Text is the typed message text, used for affordance matching.
	Text string
	// Content is the message text or media caption, whichever is present.
	Content string
	// Media is the attachment carried by the event, if any.
	Media *store.MediaRef
}

// Outcome describes what the composer did with an event. The caller maps
// outcomes to user-visible responses; the composer itself never sends.
type Outcome int

const (
	// OutcomeNeedPhone gates everything behind phone verification.
	OutcomeNeedPhone Outcome = iota
	// OutcomeComposeStarted means a fresh draft was opened.
	OutcomeComposeStarted
	// OutcomeCollected means content was folded into the active draft.
	OutcomeCollected
	// OutcomeSubmitted means a request record was created and persisted.
	OutcomeSubmitted
	// OutcomeGuidance means the event matched nothing actionable.
	OutcomeGuidance
)

// Composer is the per-chat request composition state machine. It owns the
// ordering rules (phone, then compose, then submit) and all store writes the
// user flow performs.
type Composer struct {
	sessions *Sessions
	store    *store.Store
	clock    func() time.Time
}

// NewComposer wires the state machine to its session registry and store.
func NewComposer(sessions *Sessions, st *store.Store) *Composer {
	return &Composer{sessions: sessions, store: st, clock: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (cp *Composer) SetClock(clock func() time.Time) {
	if clock != nil {
		cp.clock = clock
	}
}

// SharePhone handles a contact-share: the contact must belong to the sender,
// otherwise ErrContactMismatch. On success the user record is persisted with
// the verified number and any stale session is discarded.
func (cp *Composer) SharePhone(from store.Identity, contactOwner int64, phone string) (store.UserRecord, error) {
	if contactOwner != from.ID {
		return store.UserRecord{}, ErrContactMismatch
	}
	rec, err := cp.store.SetPhone(from, phone)
	if err != nil {
		return store.UserRecord{}, err
	}
	cp.sessions.Reset(from.ID)
	return rec, nil
}

// Verified reports whether the sender may enter the composition flow.
func (cp *Composer) Verified(userID int64) bool {
	rec, ok := cp.store.User(userID)
	return ok && rec.Verified()
}

// Handle runs one event through the state machine. A returned request record
// is non-nil only for OutcomeSubmitted.
func (cp *Composer) Handle(ev Event) (Outcome, *store.RequestRecord, error) {
	if !cp.Verified(ev.From.ID) {
		return OutcomeNeedPhone, nil, nil
	}

	if ev.Text == ButtonCompose {
		cp.sessions.StartComposing(ev.From.ID)
		return OutcomeComposeStarted, nil, nil
	}

	if cp.sessions.Composing(ev.From.ID) {
		if ev.Text == ButtonSubmit {
			rec, err := cp.submit(ev)
			if err != nil {
				return OutcomeSubmitted, nil, err
			}
			return OutcomeSubmitted, rec, nil
		}
		cp.sessions.SetMedia(ev.From.ID, ev.Media)
		cp.sessions.AppendDraft(ev.From.ID, ev.Content)
		return OutcomeCollected, nil, nil
	}

	return OutcomeGuidance, nil, nil
}

// submit turns the accumulated draft into an immutable request record. When
// the draft is empty the triggering event's own content stands in, so a
// submit with text attached directly still works; the submit affordance
// label itself is never treated as content.
func (cp *Composer) submit(ev Event) (*store.RequestRecord, error) {
	draft, media, ok := cp.sessions.TakeDraft(ev.From.ID)
	if !ok {
		return nil, nil
	}
	if draft == "" && ev.Content != ButtonSubmit {
		draft = ev.Content
	}
	if ev.Media != nil {
		media = ev.Media
	}

	prev, _ := cp.store.User(ev.From.ID)
	now := cp.clock()
	rec := store.RequestRecord{
		ID:     fmt.Sprintf("%d-%d", ev.From.ID, now.UnixMilli()),
		UserID: ev.From.ID,
		Text:   draft,
		At:     store.Timestamp(now),
		Phone:  prev.PhoneNumber,
		Media:  media,
		From: store.RequestFrom{
			ID:        ev.From.ID,
			FirstName: ev.From.FirstName,
			LastName:  ev.From.LastName,
			Username:  ev.From.Username,
		},
	}
	if err := cp.store.AppendRequest(rec); err != nil {
		return nil, err
	}
	if _, err := cp.store.RefreshProfile(ev.From); err != nil {
		return nil, err
	}
	return &rec, nil
}
