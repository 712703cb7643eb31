package router

import (
	"time"

	tg "intakebot/core/telegram"
	"intakebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation is the minimal interface for a per-user conversational flow.
// A user with a flow in progress has every message handed to the flow before
// command lookup is attempted.
type Conversation interface {
	InProgress(userID int64) bool
	Handle(c tele.Context) error
}

// MessageOptions controls fallback behaviour for non-command updates.
type MessageOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
	OnContact    tele.HandlerFunc
}

// MessageRoutes builds handlers for text, photo, document and contact
// updates, dispatching to the conversation first and commands second.
func MessageRoutes(conv Conversation, reg *tg.Registry, opts MessageOptions) []tg.Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if conv != nil && c.Sender() != nil && conv.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "conversation", start, "", "", func() error {
				return conv.Handle(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				name := normalizeHandlerName(key)
				return handleWithSummary(c, name, start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	mediaHandler := func(kind string) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			if conv != nil && c.Sender() != nil && conv.InProgress(c.Sender().ID) {
				return handleWithSummary(c, "conversation_"+kind, start, "", "", func() error {
					return conv.Handle(c)
				})
			}
			if opts.UnknownMedia != nil {
				return handleWithSummary(c, "unexpected_"+kind, start, "", "", func() error {
					return opts.UnknownMedia(c)
				})
			}
			logHandlerSummary(c, "unexpected_"+kind, start, "skip", "ok", nil)
			return nil
		}
	}

	contactHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.OnContact == nil {
			logHandlerSummary(c, "contact", start, "skip", "ok", nil)
			return nil
		}
		return handleWithSummary(c, "contact", start, "", "", func() error {
			return opts.OnContact(c)
		})
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(textHandler)},
		{Endpoint: tele.OnPhoto, Handler: wrap(mediaHandler("photo"))},
		{Endpoint: tele.OnDocument, Handler: wrap(mediaHandler("document"))},
		{Endpoint: tele.OnContact, Handler: wrap(contactHandler)},
	}
}
