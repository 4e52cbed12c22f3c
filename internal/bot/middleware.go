package bot

import (
	"context"
	"strings"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/akorchagin/privratnik/internal/gate"
	. "github.com/akorchagin/privratnik/internal/logging"
	"github.com/akorchagin/privratnik/internal/visitor"
)

const visitorKey = "visitor"

const replyTryAgain = "Не удалось выполнить запрос, попробуйте снова"

// admission runs the gate on every inbound event before any handler.
func (b *Bot) admission(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		sender := c.Sender()
		chat := c.Chat()
		if sender == nil || chat == nil {
			return nil
		}

		eventID := uuid.NewString()[:8]
		L_debug("bot: inbound event",
			"event", eventID,
			"chatID", chat.ID,
			"username", sender.Username,
			"text", truncate(c.Text(), 50),
		)

		s := gate.Sender{
			ChatID:   chat.ID,
			UserID:   sender.ID,
			Username: sender.Username,
			FullName: strings.TrimSpace(sender.FirstName + " " + sender.LastName),
		}

		d, err := b.gate.Admit(context.Background(), s)
		if err != nil {
			L_error("bot: admission failed", "event", eventID, "chatID", chat.ID, "error", err)
			return c.Send(replyTryAgain)
		}

		if d.Reply != "" {
			if err := c.Send(d.Reply); err != nil {
				L_warn("bot: admission reply failed", "event", eventID, "error", err)
			}
		}
		if !d.Proceed {
			L_info("bot: event stopped at gate", "event", eventID, "chatID", chat.ID, "status", d.Visitor.Status.String())
			return nil
		}

		c.Set(visitorKey, d.Visitor)
		return next(c)
	}
}

// currentVisitor returns the visitor the gate attached to this event.
func currentVisitor(c tele.Context) *visitor.Visitor {
	v, _ := c.Get(visitorKey).(*visitor.Visitor)
	return v
}

// requireAdmin is the secondary check in front of admin-only operations.
// Non-admins get a generic failure reply, nothing more specific.
func requireAdmin(c tele.Context) (*visitor.Visitor, bool) {
	v := currentVisitor(c)
	if v == nil || !v.IsAdmin {
		return nil, false
	}
	return v, true
}
