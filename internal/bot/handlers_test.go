package bot

import (
	"context"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	"github.com/akorchagin/privratnik/internal/history"
	"github.com/akorchagin/privratnik/internal/modes"
	"github.com/akorchagin/privratnik/internal/visitor"
)

// fakeContext implements the handful of tele.Context methods handlers touch.
// Anything else panics through the embedded nil interface.
type fakeContext struct {
	tele.Context
	visitor *visitor.Visitor
	data    string
	sent    []string
}

func (c *fakeContext) Sender() *tele.User { return &tele.User{ID: 1} }
func (c *fakeContext) Chat() *tele.Chat   { return &tele.Chat{ID: 1} }
func (c *fakeContext) Data() string       { return c.data }
func (c *fakeContext) Delete() error      { return nil }

func (c *fakeContext) Respond(...*tele.CallbackResponse) error { return nil }

func (c *fakeContext) Get(key string) interface{} {
	if key == visitorKey && c.visitor != nil {
		return c.visitor
	}
	return nil
}

func (c *fakeContext) Send(what interface{}, _ ...interface{}) error {
	if s, ok := what.(string); ok {
		c.sent = append(c.sent, s)
	}
	return nil
}

// recordingStore counts model updates; the rest of visitor.Store panics if hit.
type recordingStore struct {
	visitor.Store
	modelUpdates []string
}

func (s *recordingStore) UpdateModel(_ context.Context, _ int64, model string) error {
	s.modelUpdates = append(s.modelUpdates, model)
	return nil
}

func TestModelChoiceCancelKeepsModel(t *testing.T) {
	// Cancel, unknown and retired tokens all back out without a write.
	for _, token := range []string{"cancel", "gpt-99", "gpt-o1"} {
		store := &recordingStore{}
		b := &Bot{store: store}
		c := &fakeContext{data: token}

		if err := b.handleModelChoice(c); err != nil {
			t.Fatalf("handleModelChoice(%q) failed: %v", token, err)
		}
		if len(store.modelUpdates) != 0 {
			t.Errorf("token %q must not change the model, got updates %v", token, store.modelUpdates)
		}
		if len(c.sent) != 1 || !strings.Contains(c.sent[0], "отменили") {
			t.Errorf("token %q should produce a cancel reply, got %v", token, c.sent)
		}
	}
}

func TestModelChoiceUpdatesModel(t *testing.T) {
	store := &recordingStore{}
	b := &Bot{store: store}
	c := &fakeContext{data: "gpt-4o"}

	if err := b.handleModelChoice(c); err != nil {
		t.Fatalf("handleModelChoice failed: %v", err)
	}
	if len(store.modelUpdates) != 1 || store.modelUpdates[0] != "gpt-4o" {
		t.Fatalf("expected one update to gpt-4o, got %v", store.modelUpdates)
	}
	if len(c.sent) != 1 || !strings.Contains(c.sent[0], "gpt-4o") {
		t.Errorf("expected confirmation naming the model, got %v", c.sent)
	}
}

func newDryRunBot() *Bot {
	return &Bot{
		sessions: modes.NewSessions(),
		resp: &responder{
			backend: &stubBackend{},
			history: history.NewMemoryStore(5),
			dryRun:  true,
		},
	}
}

func TestDispatchDryRunSendsOnlyPlaceholder(t *testing.T) {
	b := newDryRunBot()
	c := &fakeContext{visitor: &visitor.Visitor{ChatID: 1, Model: "gpt-4o-mini"}}

	if err := b.dispatch(c, "привет"); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if len(c.sent) != 1 || c.sent[0] != DryRunReply {
		t.Fatalf("dry-run turn must be exactly the placeholder, got %v", c.sent)
	}
}

func TestImageDryRunSendsOnlyPlaceholder(t *testing.T) {
	b := newDryRunBot()
	b.sessions.Set(1, modes.ModeImageGeneration)
	c := &fakeContext{visitor: &visitor.Visitor{ChatID: 1, Model: "gpt-4o-mini"}}

	if err := b.dispatch(c, "кот в сапогах"); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if len(c.sent) != 1 || c.sent[0] != DryRunReply {
		t.Fatalf("dry-run image turn must be exactly the placeholder, got %v", c.sent)
	}
}
