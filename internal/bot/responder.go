package bot

import (
	"context"

	"github.com/akorchagin/privratnik/internal/history"
	"github.com/akorchagin/privratnik/internal/llm"
	. "github.com/akorchagin/privratnik/internal/logging"
	"github.com/akorchagin/privratnik/internal/modes"
)

// DryRunReply is the fixed placeholder sent instead of backend output when
// dry-run is enabled.
const DryRunReply = "Бот запущен в тестовом режиме. Запросы к OpenAI временно не выполняются"

// Mode personas prepended to context-bearing exchanges. Never stored in
// history.
var personas = map[modes.Mode]string{
	modes.ModeFriendChat: "Ты - близкий друг пользователя. Болтай неформально и тепло, " +
		"отвечай коротко и живо, как в дружеской переписке, задавай встречные вопросы.",
	modes.ModeTeacherFeedback: "Ты - опытный учитель английского языка. Разбери текст ученика: " +
		"исправь ошибки, объясни их и предложи, как сделать речь правильнее и естественнее.",
}

// responder assembles the message sequence for each turn and manages the
// stored context lifetime.
type responder struct {
	backend llm.Backend
	history history.Store
	dryRun  bool
}

// answer runs one conversational turn for the user in the given mode.
// Default mode is a one-shot query; friend and teacher modes thread the
// bounded per-user history into the request and record the exchange on
// success. Failed turns are never appended.
func (r *responder) answer(ctx context.Context, userID int64, model string, mode modes.Mode, text string) (string, error) {
	if r.dryRun {
		L_debug("responder: dry run, backend skipped", "userID", userID)
		return DryRunReply, nil
	}

	contextual := mode == modes.ModeFriendChat || mode == modes.ModeTeacherFeedback

	var msgs []llm.Message
	if persona, ok := personas[mode]; ok {
		msgs = append(msgs, llm.Message{Role: history.RoleSystem, Content: persona})
	}
	if contextual {
		for _, e := range r.history.Get(userID) {
			msgs = append(msgs, llm.Message{Role: e.Role, Content: e.Content})
		}
	}
	msgs = append(msgs, llm.Message{Role: history.RoleUser, Content: text})

	reply, err := r.backend.Complete(ctx, model, msgs)
	if err != nil {
		return "", err
	}

	if contextual {
		r.history.Append(userID,
			history.Entry{Role: history.RoleUser, Content: text},
			history.Entry{Role: history.RoleAssistant, Content: reply},
		)
	}
	return reply, nil
}

// paint turns a prompt into image bytes, honoring dry-run.
func (r *responder) paint(ctx context.Context, prompt string) ([]byte, string, error) {
	if r.dryRun {
		return nil, DryRunReply, nil
	}
	img, err := r.backend.PaintImage(ctx, prompt)
	if err != nil {
		return nil, "", err
	}
	return img, "", nil
}

// reset clears the user's stored context.
func (r *responder) reset(userID int64) {
	r.history.Reset(userID)
}
