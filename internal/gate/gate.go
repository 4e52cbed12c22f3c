// Package gate implements the admission checkpoint every inbound event
// passes through before any handler runs.
package gate

import (
	"context"
	"errors"
	"fmt"

	"github.com/akorchagin/privratnik/internal/config"
	"github.com/akorchagin/privratnik/internal/llm"
	. "github.com/akorchagin/privratnik/internal/logging"
	"github.com/akorchagin/privratnik/internal/visitor"
)

// User-facing replies. The bot speaks Russian.
const (
	replyPending   = "Пока что нет доступа к боту. Админам отправлен запрос"
	replyWait      = "Подождите, пока админ одобрит ваш запрос"
	replyDenied    = "Вам запрещено пользоваться ботом"
	replyGranted   = "Вы получили доступ к боту! Пусть он принесет вам много пользы"
	replyAdmin     = "Вы авторизовались как админ бота!"
	noticeAllowed  = "Вам дали доступ к боту!"
	noticeDeclined = "Вам запретили доступ к боту!"
)

// Sender identifies the author of an inbound event.
type Sender struct {
	ChatID   int64
	UserID   int64
	Username string
	FullName string
}

// Notifier delivers out-of-band messages (admin alerts, access notices).
type Notifier interface {
	SendTo(chatID int64, text string) error
}

// Decision is the outcome of one admission check.
type Decision struct {
	Visitor *visitor.Visitor
	Proceed bool   // whether downstream handlers may run this turn
	Reply   string // message for the sender, empty if none
}

// Gate enforces the visitor state machine.
type Gate struct {
	store    visitor.Store
	notifier Notifier
	access   config.AccessConfig
}

// New creates a gate over the given store and notification channel.
func New(store visitor.Store, notifier Notifier, access config.AccessConfig) *Gate {
	return &Gate{store: store, notifier: notifier, access: access}
}

// Admit resolves the sender's visitor record, creating it on first contact,
// and decides whether this event proceeds downstream.
func (g *Gate) Admit(ctx context.Context, s Sender) (Decision, error) {
	v, err := g.store.Get(ctx, s.ChatID)
	if err == nil {
		return g.decideExisting(v), nil
	}
	if !errors.Is(err, visitor.ErrNotFound) {
		return Decision{}, err
	}

	isAdmin := g.access.IsAdmin(s.Username)
	verified := g.access.IsVerified(s.Username)

	v = &visitor.Visitor{
		ChatID:   s.ChatID,
		UserID:   s.UserID,
		FullName: s.FullName,
		Username: s.Username,
		IsAdmin:  isAdmin,
		Model:    llm.DefaultModel,
		Status:   visitor.StatusProcessing,
	}
	if verified {
		v.Status = visitor.StatusVerified
	}

	if err := g.store.Create(ctx, v); err != nil {
		if errors.Is(err, visitor.ErrExists) {
			// Two first-contact events raced; the winner's row stands.
			L_debug("gate: create raced, re-fetching", "chatID", s.ChatID)
			existing, getErr := g.store.Get(ctx, s.ChatID)
			if getErr != nil {
				return Decision{}, getErr
			}
			return g.decideExisting(existing), nil
		}
		return Decision{}, err
	}

	switch {
	case verified && isAdmin:
		return Decision{Visitor: v, Proceed: true, Reply: replyAdmin}, nil
	case verified:
		return Decision{Visitor: v, Proceed: true, Reply: replyGranted}, nil
	default:
		g.notifyAdmins(ctx, v)
		return Decision{Visitor: v, Proceed: false, Reply: replyPending}, nil
	}
}

func (g *Gate) decideExisting(v *visitor.Visitor) Decision {
	switch v.Status {
	case visitor.StatusProcessing:
		return Decision{Visitor: v, Proceed: false, Reply: replyWait}
	case visitor.StatusDeclined:
		return Decision{Visitor: v, Proceed: false, Reply: replyDenied}
	default:
		return Decision{Visitor: v, Proceed: true}
	}
}

// notifyAdmins tells every registered admin about a pending request, with
// the approve/decline shortcuts embedded.
func (g *Gate) notifyAdmins(ctx context.Context, v *visitor.Visitor) {
	admins, err := g.store.ListAdmins(ctx)
	if err != nil {
		L_error("gate: failed to list admins for notification", "error", err)
		return
	}

	text := fmt.Sprintf("Пользователь %s @%s просит доступ\n/allow%d\n/decline%d",
		v.FullName, v.Username, v.ChatID, v.ChatID)
	for _, admin := range admins {
		if err := g.notifier.SendTo(admin.ChatID, text); err != nil {
			L_warn("gate: admin notification failed", "adminChatID", admin.ChatID, "error", err)
		}
	}
	L_info("gate: access request broadcast", "chatID", v.ChatID, "username", v.Username, "admins", len(admins))
}

// Approve transitions a Processing visitor to Verified and notifies them.
// Returns the admin-facing reply. Terminal states produce informational
// no-op replies unless reapproval is enabled in config.
func (g *Gate) Approve(ctx context.Context, chatID int64) (string, error) {
	v, err := g.store.Get(ctx, chatID)
	if errors.Is(err, visitor.ErrNotFound) {
		return fmt.Sprintf("Не найден пользователь с chat_id %d", chatID), nil
	}
	if err != nil {
		return "", err
	}

	switch v.Status {
	case visitor.StatusVerified:
		return fmt.Sprintf("Вы уже одобрили заявку %s", v.Short()), nil
	case visitor.StatusDeclined:
		if !g.access.Reapproval {
			return fmt.Sprintf("Вы уже отклонили заявку %s", v.Short()), nil
		}
	}

	if err := g.store.UpdateStatus(ctx, chatID, visitor.StatusVerified); err != nil {
		return "", err
	}
	if err := g.notifier.SendTo(chatID, noticeAllowed); err != nil {
		L_warn("gate: access notice failed", "chatID", chatID, "error", err)
	}
	return fmt.Sprintf("Вы успешно предоставили доступ %s", v.Short()), nil
}

// Decline transitions a Processing visitor to Declined and notifies them.
func (g *Gate) Decline(ctx context.Context, chatID int64) (string, error) {
	v, err := g.store.Get(ctx, chatID)
	if errors.Is(err, visitor.ErrNotFound) {
		return fmt.Sprintf("Не найден пользователь с chat_id %d", chatID), nil
	}
	if err != nil {
		return "", err
	}

	switch v.Status {
	case visitor.StatusDeclined:
		return fmt.Sprintf("Вы уже отклонили заявку %s", v.Short()), nil
	case visitor.StatusVerified:
		if !g.access.Reapproval {
			return fmt.Sprintf("Вы уже одобрили заявку %s", v.Short()), nil
		}
	}

	if err := g.store.UpdateStatus(ctx, chatID, visitor.StatusDeclined); err != nil {
		return "", err
	}
	if err := g.notifier.SendTo(chatID, noticeDeclined); err != nil {
		L_warn("gate: decline notice failed", "chatID", chatID, "error", err)
	}
	return fmt.Sprintf("Вы успешно запретили доступ %s", v.Short()), nil
}
