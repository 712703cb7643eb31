// Package bot implements the intake flow: phone verification, request
// composition, and the admin browser over collected data.
package bot

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	coreconfig "intakebot/core/config"
	coretelegram "intakebot/core/telegram"
	"intakebot/core/telegram/callbacks"
	"intakebot/core/telegram/commands"
	"intakebot/core/telegram/format"
	tghelpers "intakebot/core/telegram/helpers"
	"intakebot/core/telegram/keyboard"
	"intakebot/core/telegram/router"
	"intakebot/store"

	tele "gopkg.in/telebot.v4"
)

// App ties the composer, admin browser and store together and exposes the
// wiring the runtime needs. Handlers receive their dependencies through the
// App rather than package globals.
type App struct {
	cfg      *coreconfig.Config
	store    *store.Store
	sessions *Sessions
	composer *Composer
	admin    *Admin
}

// New builds the application over an opened store.
func New(cfg *coreconfig.Config, st *store.Store) *App {
	sessions := NewSessions()
	return &App{
		cfg:      cfg,
		store:    st,
		sessions: sessions,
		composer: NewComposer(sessions, st),
		admin:    NewAdmin(st, sessions),
	}
}

// CoreConfig exposes the embedded core configuration.
func (a *App) CoreConfig() *coreconfig.Config {
	return a.cfg
}

func (a *App) adminID() int64 {
	return a.cfg.Telegram.AdminID
}

func (a *App) isAdmin(c tele.Context) bool {
	return c.Sender() != nil && c.Sender().ID == a.adminID()
}

func identity(u *tele.User) store.Identity {
	if u == nil {
		return store.Identity{}
	}
	return store.Identity{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.Username,
	}
}

func eventFrom(c tele.Context) Event {
	m := c.Message()
	ev := Event{From: identity(c.Sender())}
	if m == nil {
		return ev
	}
	ev.Text = strings.TrimSpace(m.Text)
	content := m.Text
	if content == "" {
		content = m.Caption
	}
	ev.Content = strings.TrimSpace(content)
	if m.Photo != nil {
		ev.Media = &store.MediaRef{Kind: store.MediaPhoto, FileID: m.Photo.FileID}
	} else if m.Document != nil {
		ev.Media = &store.MediaRef{
			Kind:   store.MediaDocument,
			FileID: m.Document.FileID,
			Name:   m.Document.FileName,
		}
	}
	return ev
}

// InProgress reports whether the sender has a flow that must see the next
// message: an open draft for users, the armed search flag for the admin.
func (a *App) InProgress(userID int64) bool {
	if userID == a.adminID() {
		return a.sessions.AwaitingSearch(userID)
	}
	return a.sessions.Composing(userID)
}

// Handle routes an in-progress message to its flow.
func (a *App) Handle(c tele.Context) error {
	if a.isAdmin(c) {
		if reply, ok := a.admin.SearchReply(c.Sender().ID, c.Text()); ok {
			return tghelpers.SendMD(c, reply)
		}
		return nil
	}
	return a.handleUserEvent(c)
}

// handleUserEvent runs one user message through the composer and maps the
// outcome to a response.
func (a *App) handleUserEvent(c tele.Context) error {
	ev := eventFrom(c)
	outcome, rec, err := a.composer.Handle(ev)
	if err != nil {
		return err
	}
	switch outcome {
	case OutcomeNeedPhone:
		return tghelpers.SendText(c, msgNeedPhone, &tele.SendOptions{
			ReplyMarkup: keyboard.ContactRequestKeyboard(ButtonPhone),
		})
	case OutcomeComposeStarted:
		return tghelpers.SendMD(c, msgComposePrompt, keyboard.ReplyButtons([]string{ButtonSubmit}))
	case OutcomeCollected:
		return nil
	case OutcomeSubmitted:
		if rec == nil {
			return nil
		}
		a.notifyAdminRequest(c, rec)
		return tghelpers.SendText(c, msgSubmitted, &tele.SendOptions{
			ReplyMarkup: keyboard.ReplyButtons([]string{ButtonCompose}),
		})
	default:
		return tghelpers.SendMD(c, msgGuidance, keyboard.ReplyButtons([]string{ButtonCompose}))
	}
}

// onText is the fallback for plain text that is neither a command nor part
// of an in-progress flow.
func (a *App) onText(c tele.Context) error {
	if a.isAdmin(c) {
		return a.onAdminText(c)
	}
	return a.handleUserEvent(c)
}

func (a *App) onAdminText(c tele.Context) error {
	switch strings.TrimSpace(c.Text()) {
	case ButtonAdminRequests:
		text, markup := a.admin.RequestsView(0)
		return tghelpers.SendMD(c, text, markup)
	case ButtonAdminPhones:
		text, markup := a.admin.PhonesView(0)
		return tghelpers.SendMD(c, text, markup)
	case ButtonAdminExport:
		return a.sendExports(c)
	case ButtonAdminSearch:
		a.admin.StartSearch(c.Sender().ID)
		return tghelpers.SendMD(c, msgAdminSearchPrompt)
	}
	return nil
}

// onMedia covers photos and documents arriving outside an open draft.
func (a *App) onMedia(c tele.Context) error {
	if a.isAdmin(c) {
		return nil
	}
	return a.handleUserEvent(c)
}

// onContact handles a phone share. The contact must belong to the sender.
func (a *App) onContact(c tele.Context) error {
	if a.isAdmin(c) {
		return tghelpers.SendText(c, msgAdminNoContact, &tele.SendOptions{
			ReplyMarkup: keyboard.RemoveKeyboard(),
		})
	}
	m := c.Message()
	if m == nil || m.Contact == nil {
		return nil
	}
	from := identity(c.Sender())
	rec, err := a.composer.SharePhone(from, m.Contact.UserID, m.Contact.PhoneNumber)
	if err != nil {
		if errors.Is(err, ErrContactMismatch) {
			return tghelpers.SendMD(c, msgContactMismatch)
		}
		return err
	}
	a.notifyAdminContact(c, rec)
	return tghelpers.SendText(c, msgPhoneSaved, &tele.SendOptions{
		ReplyMarkup: keyboard.ReplyButtons([]string{ButtonCompose}),
	})
}

func (a *App) onStart(c tele.Context) error {
	from := identity(c.Sender())
	if err := a.store.EnsureUser(from); err != nil {
		return err
	}
	a.sessions.Reset(from.ID)

	if a.isAdmin(c) {
		if err := tghelpers.SendText(c, msgAdminWelcome, &tele.SendOptions{
			ReplyMarkup: a.admin.ReplyKeyboard(),
		}); err != nil {
			return err
		}
		text, markup := a.admin.HomeView()
		return tghelpers.SendMD(c, text, markup)
	}
	return tghelpers.SendText(c, msgWelcome, &tele.SendOptions{
		ReplyMarkup: keyboard.ContactRequestKeyboard(ButtonPhone),
	})
}

func (a *App) onMenu(c tele.Context) error {
	if err := tghelpers.SendText(c, msgAdminMenu, &tele.SendOptions{
		ReplyMarkup: a.admin.ReplyKeyboard(),
	}); err != nil {
		return err
	}
	text, markup := a.admin.HomeView()
	return tghelpers.SendMD(c, text, markup)
}

func (a *App) notifyAdminRequest(c tele.Context, rec *store.RequestRecord) {
	name := strings.TrimSpace(rec.From.FirstName + " " + rec.From.LastName)
	summary := fmt.Sprintf(
		"📨 *New request!*\n👤 *User:* %s\n🔗 *Username:* %s\n☎️ *Phone:* %s\n🆔 *UserID:* `%d`\n\n✉️ *Text:*\n%s\n\n🕒 %s",
		format.EscapeMarkdown(orDash(name)),
		format.EscapeMarkdown(orDash(store.NormalizeUsername(rec.From.Username))),
		format.EscapeMarkdown(orDash(rec.Phone)),
		rec.UserID,
		format.EscapeMarkdown(rec.Text),
		displayTime(rec.At),
	)
	to := tele.ChatID(a.adminID())
	_ = tghelpers.SendTo(c, to, summary, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	if rec.Media == nil {
		return
	}
	switch rec.Media.Kind {
	case store.MediaPhoto:
		photo := &tele.Photo{File: tele.File{FileID: rec.Media.FileID}, Caption: "📎 Photo attachment"}
		_ = tghelpers.SendTo(c, to, photo)
	case store.MediaDocument:
		doc := &tele.Document{File: tele.File{FileID: rec.Media.FileID}, FileName: rec.Media.Name}
		_ = tghelpers.SendTo(c, to, doc)
	}
}

func (a *App) notifyAdminContact(c tele.Context, rec store.UserRecord) {
	summary := fmt.Sprintf(
		"🆕 *New contact shared*\n👤 *User:* %s\n🔗 *Username:* %s\n☎️ *Phone:* %s\n🆔 *UserID:* `%d`\n🕒 %s",
		format.EscapeMarkdown(orDash(rec.FirstName)),
		format.EscapeMarkdown(orDash(rec.Username)),
		format.EscapeMarkdown(orDash(rec.PhoneNumber)),
		rec.UserID,
		displayTime(rec.UpdatedAt),
	)
	_ = tghelpers.SendTo(c, tele.ChatID(a.adminID()), summary, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
}

// sendExports writes stamp-named CSV files and ships them to the admin chat.
func (a *App) sendExports(c tele.Context) error {
	paths, err := a.admin.Export(a.cfg.Storage.ExportDir, a.store.Now())
	if err != nil {
		return err
	}
	to := tele.ChatID(a.adminID())
	for _, path := range paths {
		doc := &tele.Document{File: tele.FromDisk(path), FileName: filepath.Base(path)}
		if err := tghelpers.SendTo(c, to, doc); err != nil {
			return err
		}
	}
	return nil
}

// callback handlers

func (a *App) cbHome(c tele.Context) error {
	text, markup := a.admin.HomeView()
	return tghelpers.EditOrSendMD(c, text, markup)
}

func (a *App) cbRequests(c tele.Context) error {
	page, _ := callbacks.PayloadInt(c)
	text, markup := a.admin.RequestsView(page)
	return tghelpers.EditOrSendMD(c, text, markup)
}

func (a *App) cbPhones(c tele.Context) error {
	page, _ := callbacks.PayloadInt(c)
	text, markup := a.admin.PhonesView(page)
	return tghelpers.EditOrSendMD(c, text, markup)
}

func (a *App) cbDeleteRequest(c tele.Context) error {
	parts, err := callbacks.PayloadParts(c, "|")
	if err != nil || len(parts) != 2 {
		return nil
	}
	page, _ := strconv.Atoi(parts[1])
	text, markup, err := a.admin.DeleteRequest(parts[0], page)
	if err != nil {
		return err
	}
	if err := tghelpers.EditOrSendMD(c, text, markup); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{Text: msgAdminReqDeleted})
}

func (a *App) cbClearPhone(c tele.Context) error {
	userID, page, err := callbacks.PayloadTwoInt64(c, "|")
	if err != nil {
		return nil
	}
	text, markup, err := a.admin.ClearPhone(userID, int(page))
	if err != nil {
		return err
	}
	if err := tghelpers.EditOrSendMD(c, text, markup); err != nil {
		return err
	}
	return c.Respond(&tele.CallbackResponse{Text: msgAdminPhoneCleared})
}

func (a *App) cbExport(c tele.Context) error {
	if err := a.sendExports(c); err != nil {
		return c.Respond(&tele.CallbackResponse{Text: msgAdminCSVFailed, ShowAlert: true})
	}
	return c.Respond(&tele.CallbackResponse{Text: msgAdminCSVSent})
}

func (a *App) cbSearch(c tele.Context) error {
	a.admin.StartSearch(c.Sender().ID)
	return tghelpers.SendMD(c, msgAdminSearchPrompt)
}

// adminGuard rejects callbacks from anyone but the configured admin.
func (a *App) adminGuard(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !a.isAdmin(c) {
			return c.Respond(&tele.CallbackResponse{Text: msgAdminOnly, ShowAlert: true})
		}
		return h(c)
	}
}

// TelegramRunOptions wires commands, callbacks and routes for the runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.onStart,
		Description: "Start the bot",
	})
	reg.RegisterCommand("/menu", commands.Command{
		Handler:     a.onMenu,
		Description: "Open the admin menu",
		AdminOnly:   true,
		Hidden:      true,
	})

	for key, handler := range map[string]tele.HandlerFunc{
		cbAdminHome:     a.cbHome,
		cbAdminReqs:     a.cbRequests,
		cbAdminPhones:   a.cbPhones,
		cbAdminDelReq:   a.cbDeleteRequest,
		cbAdminDelPhone: a.cbClearPhone,
		cbAdminExport:   a.cbExport,
		cbAdminSearch:   a.cbSearch,
	} {
		if err := reg.RegisterCallback(key, a.adminGuard(handler)); err != nil {
			return coretelegram.RunOptions{}, err
		}
	}

	reg.SetTextFallback(a.onText)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: a.adminID()})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.MessageRoutes(a, reg, router.MessageOptions{
		UnknownMedia: a.onMedia,
		OnContact:    a.onContact,
	})...)

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
	}, nil
}
