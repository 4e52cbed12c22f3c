package bot

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/akorchagin/privratnik/internal/llm"
	. "github.com/akorchagin/privratnik/internal/logging"
	"github.com/akorchagin/privratnik/internal/modes"
)

const helpText = `Бот для запросов в OpenAI к вашим услугам!
Базовый режим - обычные запросы текстом и голосом.

Команды:

/dialog для дружеских бесед на любые темы, текстом и голосом
/teacher для улучшения устной и письменной речи
/images для генерации картинок по описанию
/cancel для возврата в базовый режим
/clean для очистки истории диалога
/settings для изменения модели (по умолчанию - gpt-4o-mini)
/info для просмотра текущих настроек
/help для вызова подсказки по командам`

var processingPhrases = []string{
	"Уже думаю над ответом...",
	"Минутку, обрабатываю запрос...",
	"Секунду, собираюсь с мыслями...",
	"Хм, сейчас отвечу...",
}

var (
	allowRe   = regexp.MustCompile(`^/allow(\d+)$`)
	declineRe = regexp.MustCompile(`^/decline(\d+)$`)
)

var btnModel = tele.Btn{Unique: "model"}

func (b *Bot) setupHandlers() {
	b.bot.Use(b.admission)

	b.bot.Handle("/start", b.handleHelp)
	b.bot.Handle("/help", b.handleHelp)
	b.bot.Handle("/info", b.handleInfo)
	b.bot.Handle("/settings", b.handleSettings)
	b.bot.Handle(&btnModel, b.handleModelChoice)
	b.bot.Handle("/cancel", b.handleCancel)
	b.bot.Handle("/clean", b.handleClean)
	b.bot.Handle("/dialog", b.modeHandler(modes.ModeFriendChat,
		"Включен режим диалога! Болтайте с ботом голосовыми или текстом - он будет отвечать тем же способом"))
	b.bot.Handle("/teacher", b.modeHandler(modes.ModeTeacherFeedback,
		"Включен режим обучения!\nПрисылайте текст или аудио - и учитель будет предлагать, как сделать речь правильней и естественней"))
	b.bot.Handle("/images", b.modeHandler(modes.ModeImageGeneration,
		"Включен режим картинок! Опишите, что нарисовать - и бот пришлет изображение"))
	b.bot.Handle("/users", b.handleUsers)

	// Catch-alls go last so explicit command matchers are never shadowed;
	// unrecognized commands fall through to free-text handling here.
	b.bot.Handle(tele.OnText, b.handleText)
	b.bot.Handle(tele.OnVoice, b.handleVoice)
}

func (b *Bot) handleHelp(c tele.Context) error {
	return c.Send(helpText)
}

func (b *Bot) handleInfo(c tele.Context) error {
	v := currentVisitor(c)
	if v == nil {
		return c.Send(replyTryAgain)
	}
	mode := b.sessions.Current(c.Sender().ID)

	text := fmt.Sprintf("Ваша текущая модель: %s\nТекущий режим: %s", v.Model, modeTitle(mode))
	if m, ok := llm.Lookup(v.Model); ok {
		if m.Reasoning {
			text += "\nМодель думающая: отвечает дольше, но основательней"
		}
		if m.WebSearch {
			text += "\nМодель умеет искать ответы в интернете"
		}
	}
	return c.Send(text)
}

func modeTitle(m modes.Mode) string {
	switch m {
	case modes.ModeFriendChat:
		return "диалог"
	case modes.ModeTeacherFeedback:
		return "обучение"
	case modes.ModeImageGeneration:
		return "картинки"
	default:
		return "поиск"
	}
}

func (b *Bot) handleSettings(c tele.Context) error {
	v := currentVisitor(c)
	if v == nil {
		return c.Send(replyTryAgain)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Ваша текущая модель: %s.\n\nКакую выберете вместо нее?\n", v.Model)

	markup := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, m := range llm.Choices() {
		fmt.Fprintf(&sb, "- %s - %s\n", m.ID, m.Description)
		rows = append(rows, markup.Row(markup.Data(m.ID, btnModel.Unique, m.ID)))
	}
	rows = append(rows, markup.Row(markup.Data("Отмена", btnModel.Unique, "cancel")))
	markup.Inline(rows...)

	return c.Send(sb.String(), markup)
}

func (b *Bot) handleModelChoice(c tele.Context) error {
	defer c.Respond()
	defer c.Delete()

	choice := c.Data()
	m, known := llm.Lookup(choice)
	if choice == "cancel" || !known || m.Retired {
		// Unknown tokens are treated as a cancel, not an error.
		return c.Send("Вы отменили действие")
	}

	if err := b.store.UpdateModel(context.Background(), c.Chat().ID, m.ID); err != nil {
		L_error("bot: model change failed", "chatID", c.Chat().ID, "model", m.ID, "error", err)
		return c.Send(replyTryAgain)
	}
	return c.Send(fmt.Sprintf("Вы изменили модель на %s", m.ID))
}

func (b *Bot) handleCancel(c tele.Context) error {
	userID := c.Sender().ID
	b.resp.reset(userID)
	wasActive := b.sessions.Reset(userID)

	text := "Уже включен основной режим - поиска"
	if wasActive {
		text = "Вы вернулись в основной режим - поиска"
	}
	return c.Send(text, &tele.ReplyMarkup{RemoveKeyboard: true})
}

func (b *Bot) handleClean(c tele.Context) error {
	b.resp.reset(c.Sender().ID)
	return c.Send("История диалога очищена")
}

func (b *Bot) modeHandler(mode modes.Mode, greeting string) tele.HandlerFunc {
	return func(c tele.Context) error {
		b.sessions.Set(c.Sender().ID, mode)
		return c.Send(greeting)
	}
}

func (b *Bot) handleUsers(c tele.Context) error {
	if _, ok := requireAdmin(c); !ok {
		return c.Send(replyTryAgain)
	}

	visitors, err := b.store.ListAll(context.Background())
	if err != nil {
		L_error("bot: user listing failed", "error", err)
		return c.Send(replyTryAgain)
	}

	lines := make([]string, 0, len(visitors))
	for i := range visitors {
		lines = append(lines, visitors[i].String())
	}
	return b.sendLong(c, "Список пользователей:\n\n"+strings.Join(lines, "\n\n"))
}

// handleText is the catch-all for free text. Admin review shortcuts and
// cancel synonyms are matched here before mode dispatch.
func (b *Bot) handleText(c tele.Context) error {
	text := strings.TrimSpace(c.Text())

	if m := allowRe.FindStringSubmatch(text); m != nil {
		return b.handleReview(c, m[1], b.gate.Approve)
	}
	if m := declineRe.FindStringSubmatch(text); m != nil {
		return b.handleReview(c, m[1], b.gate.Decline)
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "отмена") || strings.Contains(lower, "отменить") || strings.Contains(lower, "cancel") {
		return b.handleCancel(c)
	}

	return b.dispatch(c, text)
}

func (b *Bot) handleReview(c tele.Context, rawID string, review func(context.Context, int64) (string, error)) error {
	if _, ok := requireAdmin(c); !ok {
		return c.Send(replyTryAgain)
	}

	chatID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return c.Send(replyTryAgain)
	}

	reply, err := review(context.Background(), chatID)
	if err != nil {
		L_error("bot: review operation failed", "targetChatID", chatID, "error", err)
		return c.Send(replyTryAgain)
	}
	return c.Send(reply)
}

// dispatch routes free text according to the user's current mode.
func (b *Bot) dispatch(c tele.Context, text string) error {
	v := currentVisitor(c)
	if v == nil || text == "" {
		return nil
	}
	userID := c.Sender().ID
	mode := b.sessions.Current(userID)
	ctx := context.Background()

	if mode == modes.ModeImageGeneration {
		return b.replyWithImage(ctx, c, text)
	}

	tmp := b.sendProcessingPhrase(c)
	reply, err := b.resp.answer(ctx, userID, v.Model, mode, text)
	if tmp != nil {
		_ = b.bot.Delete(tmp)
	}
	if err != nil {
		L_error("bot: completion failed", "chatID", c.Chat().ID, "model", v.Model, "error", err)
		return c.Send(errReply(err))
	}

	if mode == modes.ModeTeacherFeedback {
		reply = "Коммент учителя английского: \n\n" + reply
	}
	return b.sendLong(c, reply)
}

func (b *Bot) replyWithImage(ctx context.Context, c tele.Context, prompt string) error {
	tmp := b.sendProcessingPhrase(c)
	img, placeholder, err := b.resp.paint(ctx, prompt)
	if tmp != nil {
		_ = b.bot.Delete(tmp)
	}
	if err != nil {
		L_error("bot: image generation failed", "chatID", c.Chat().ID, "error", err)
		return c.Send(errReply(err))
	}
	if placeholder != "" {
		return c.Send(placeholder)
	}

	photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(img))}
	return c.Send(photo)
}

// handleVoice transcribes a voice note, echoes the transcript, then routes
// it like text for the current mode. Friend-chat turns are answered with
// synthesized audio, the way the conversation came in.
func (b *Bot) handleVoice(c tele.Context) error {
	v := currentVisitor(c)
	voice := c.Message().Voice
	if v == nil || voice == nil {
		return nil
	}
	if b.resp.dryRun {
		return c.Send(DryRunReply)
	}

	userID := c.Sender().ID
	ctx := context.Background()

	rc, err := b.bot.File(&voice.File)
	if err != nil {
		L_error("bot: voice download failed", "chatID", c.Chat().ID, "error", err)
		return c.Send(errReply(err))
	}
	defer rc.Close()

	transcript, err := b.resp.backend.Transcribe(ctx, rc)
	if err != nil {
		L_error("bot: transcription failed", "chatID", c.Chat().ID, "error", err)
		return c.Send(errReply(err))
	}
	if err := c.Send("Транскрипт вашего аудио: \n\n" + transcript); err != nil {
		L_warn("bot: transcript echo failed", "error", err)
	}

	mode := b.sessions.Current(userID)
	if mode != modes.ModeFriendChat {
		return b.dispatch(c, transcript)
	}

	reply, err := b.resp.answer(ctx, userID, v.Model, mode, transcript)
	if err != nil {
		L_error("bot: completion failed", "chatID", c.Chat().ID, "error", err)
		return c.Send(errReply(err))
	}

	audio, err := b.resp.backend.Speak(ctx, reply)
	if err != nil {
		L_warn("bot: speech synthesis failed, answering with text", "error", err)
		return b.sendLong(c, reply)
	}

	doc := &tele.Document{
		File:     tele.FromReader(bytes.NewReader(audio)),
		FileName: "otvet.mp3",
		MIME:     "audio/mpeg",
	}
	return c.Send(doc)
}

// sendLong sends text in chunks below Telegram's message limit.
func (b *Bot) sendLong(c tele.Context, text string) error {
	for _, chunk := range splitMessage(text, MessageLimit) {
		if err := c.Send(chunk); err != nil {
			return err
		}
	}
	return nil
}

// sendProcessingPhrase posts a temporary "thinking" message, deleted once
// the real reply is ready. Dry-run turns send the placeholder alone.
func (b *Bot) sendProcessingPhrase(c tele.Context) *tele.Message {
	if b.resp.dryRun {
		return nil
	}
	tmp, _ := b.bot.Send(c.Chat(), processingPhrases[rand.Intn(len(processingPhrases))])
	return tmp
}

// errReply reports a backend failure to the user, truncated so raw API
// errors never flood the chat.
func errReply(err error) string {
	return truncate("Не получилось выполнить запрос: "+err.Error(), 300)
}
