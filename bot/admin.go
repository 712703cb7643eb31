package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"intakebot/core/telegram/format"
	"intakebot/core/telegram/keyboard"
	"intakebot/store"

	tele "gopkg.in/telebot.v4"
)

// Callback keys for the admin browser.
const (
	cbAdminHome     = "admin_home"
	cbAdminReqs     = "admin_reqs"
	cbAdminPhones   = "admin_phones"
	cbAdminDelReq   = "admin_delreq"
	cbAdminDelPhone = "admin_delphone"
	cbAdminExport   = "admin_export"
	cbAdminSearch   = "admin_search"
)

// Admin renders paginated, mutating views over the store's collections.
// It is not a state machine; only the one-shot search flag carries state.
type Admin struct {
	store    *store.Store
	sessions *Sessions
}

// NewAdmin builds the admin browser over a store and session registry.
func NewAdmin(st *store.Store, sessions *Sessions) *Admin {
	return &Admin{store: st, sessions: sessions}
}

func displayTime(iso string) string {
	t := store.ParseTimestamp(iso)
	if t.IsZero() {
		return iso
	}
	return t.UTC().Format("02.01.2006 15:04:05")
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

// HomeView renders the admin menu with live counters.
func (a *Admin) HomeView() (string, *tele.ReplyMarkup) {
	requests, phones := a.store.Counts()
	markup := keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: fmt.Sprintf("📨 Requests (%d)", requests), Unique: cbAdminReqs, Data: "0"},
		{Text: fmt.Sprintf("📞 Phones (%d)", phones), Unique: cbAdminPhones, Data: "0"},
		{Text: ButtonAdminExport, Unique: cbAdminExport, Data: "-"},
		{Text: "🔍 Search by ID", Unique: cbAdminSearch, Data: "-"},
	})
	return msgAdminHome, markup
}

// ReplyKeyboard is the persistent admin reply keyboard.
func (a *Admin) ReplyKeyboard() *tele.ReplyMarkup {
	return keyboard.ReplyButtons(
		[]string{ButtonAdminRequests, ButtonAdminPhones},
		[]string{ButtonAdminExport, ButtonAdminSearch},
	)
}

// RequestsView renders one page of requests, newest first, with per-item
// delete buttons and clamped navigation.
func (a *Admin) RequestsView(pageIndex int) (string, *tele.ReplyMarkup) {
	reqs := a.store.Requests()
	page := store.Paginate(reqs, pageIndex)
	total := len(reqs)

	var rows [][]keyboard.InlineBtn
	rows = append(rows, navRow(cbAdminReqs, page))
	for i, req := range page.Items {
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   fmt.Sprintf("🗑 #%d", page.Index*store.PageSize+i+1),
			Unique: cbAdminDelReq,
			Data:   req.ID + "|" + strconv.Itoa(page.Index),
		}})
	}
	rows = append(rows, homeRow())
	markup := keyboard.InlineButtonsRows(rows...)

	if total == 0 {
		return msgAdminNoRequests, markup
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📨 *Requests* (total: %d) — *%d/%d*\n\n", total, page.Index+1, page.Total)
	for i, req := range page.Items {
		fmt.Fprintf(&b, "*#%d* | 🕒 %s\n", page.Index*store.PageSize+i+1, displayTime(req.At))
		name := strings.TrimSpace(req.From.FirstName + " " + req.From.LastName)
		fmt.Fprintf(&b, "👤 *User:* %s\n", format.EscapeMarkdown(orDash(name)))
		fmt.Fprintf(&b, "🔗 *Username:* %s\n", format.EscapeMarkdown(orDash(store.NormalizeUsername(req.From.Username))))
		fmt.Fprintf(&b, "☎️ *Phone:* %s\n", format.EscapeMarkdown(orDash(req.Phone)))
		fmt.Fprintf(&b, "🆔 *UserID:* `%d`\n", req.UserID)
		fmt.Fprintf(&b, "✉️ *Text:* %s\n", format.EscapeMarkdown(req.Text))
		if req.Media != nil {
			fmt.Fprintf(&b, "📎 Media: %s (%s)\n", req.Media.Kind, req.Media.FileID)
		}
		b.WriteString("— — —\n")
	}
	return strings.TrimSpace(b.String()), markup
}

// PhonesView renders one page of phone-verified users, newest first.
func (a *Admin) PhonesView(pageIndex int) (string, *tele.ReplyMarkup) {
	users := a.store.VerifiedUsers()
	page := store.Paginate(users, pageIndex)

	var rows [][]keyboard.InlineBtn
	rows = append(rows, navRow(cbAdminPhones, page))
	for i, u := range page.Items {
		rows = append(rows, []keyboard.InlineBtn{{
			Text:   fmt.Sprintf("🗑 #%d", page.Index*store.PageSize+i+1),
			Unique: cbAdminDelPhone,
			Data:   strconv.FormatInt(u.UserID, 10) + "|" + strconv.Itoa(page.Index),
		}})
	}
	rows = append(rows, homeRow())
	markup := keyboard.InlineButtonsRows(rows...)

	if len(users) == 0 {
		return msgAdminNoPhones, markup
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📞 *Phones* (total: %d) — *%d/%d*\n\n", len(users), page.Index+1, page.Total)
	for i, u := range page.Items {
		fmt.Fprintf(&b, "*#%d* | 🕒 %s\n", page.Index*store.PageSize+i+1, displayTime(u.UpdatedAt))
		fmt.Fprintf(&b, "🆔 `%d`\n", u.UserID)
		fmt.Fprintf(&b, "👤 %s\n", format.EscapeMarkdown(orDash(u.FirstName)))
		fmt.Fprintf(&b, "🔗 %s\n", format.EscapeMarkdown(orDash(u.Username)))
		fmt.Fprintf(&b, "☎️ %s\n", format.EscapeMarkdown(u.PhoneNumber))
		b.WriteString("— — —\n")
	}
	return strings.TrimSpace(b.String()), markup
}

// UserCard renders a single user record for search results.
func (a *Admin) UserCard(u store.UserRecord) string {
	return fmt.Sprintf(
		"👤 *User:* %s\n🔗 *Username:* %s\n☎️ *Phone:* %s\n🆔 *UserID:* `%d`",
		format.EscapeMarkdown(orDash(u.FirstName)),
		format.EscapeMarkdown(orDash(u.Username)),
		format.EscapeMarkdown(orDash(u.PhoneNumber)),
		u.UserID,
	)
}

// DeleteRequest removes the request and re-renders the same page, re-clamped
// since the deletion may have emptied the last page. Missing ids are a no-op.
func (a *Admin) DeleteRequest(id string, pageIndex int) (string, *tele.ReplyMarkup, error) {
	if _, err := a.store.DeleteRequest(id); err != nil {
		return "", nil, err
	}
	text, markup := a.RequestsView(pageIndex)
	return text, markup, nil
}

// ClearPhone removes a user's verified number and re-renders the phones page.
func (a *Admin) ClearPhone(userID int64, pageIndex int) (string, *tele.ReplyMarkup, error) {
	if _, err := a.store.ClearPhone(userID); err != nil {
		return "", nil, err
	}
	text, markup := a.PhonesView(pageIndex)
	return text, markup, nil
}

// StartSearch arms the one-shot search flag for the admin chat.
func (a *Admin) StartSearch(chatID int64) {
	a.sessions.AwaitSearch(chatID)
}

// SearchReply consumes the armed flag with the admin's reply. A non-numeric
// reply still consumes the flag and yields a format error message.
func (a *Admin) SearchReply(chatID int64, text string) (string, bool) {
	if !a.sessions.ConsumeSearch(chatID) {
		return "", false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return msgAdminSearchNaN, true
	}
	u, ok := a.store.User(id)
	if !ok {
		return msgAdminSearchMiss, true
	}
	return a.UserCard(u), true
}

// Export produces stamp-named CSV files for the current data.
func (a *Admin) Export(dir string, stamp time.Time) ([]string, error) {
	return a.store.WriteExports(dir, stamp)
}

func navRow[T any](unique string, page store.Page[T]) []keyboard.InlineBtn {
	prev := page.Index - 1
	if prev < 0 {
		prev = 0
	}
	next := page.Index + 1
	if next > page.Total-1 {
		next = page.Total - 1
	}
	return []keyboard.InlineBtn{
		{Text: "◀️ Prev", Unique: unique, Data: strconv.Itoa(prev)},
		{Text: "▶️ Next", Unique: unique, Data: strconv.Itoa(next)},
	}
}

func homeRow() []keyboard.InlineBtn {
	return []keyboard.InlineBtn{{Text: "🏠 Menu", Unique: cbAdminHome, Data: "-"}}
}
