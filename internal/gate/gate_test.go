package gate

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/akorchagin/privratnik/internal/config"
	"github.com/akorchagin/privratnik/internal/visitor"
)

// fakeStore is an in-memory visitor.Store.
type fakeStore struct {
	mu   sync.Mutex
	rows map[int64]visitor.Visitor
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[int64]visitor.Visitor)}
}

func (s *fakeStore) Get(_ context.Context, chatID int64) (*visitor.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.rows[chatID]
	if !ok {
		return nil, visitor.ErrNotFound
	}
	return &v, nil
}

func (s *fakeStore) Create(_ context.Context, v *visitor.Visitor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[v.ChatID]; ok {
		return visitor.ErrExists
	}
	s.rows[v.ChatID] = *v
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, chatID int64, status visitor.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.rows[chatID]
	if !ok {
		return visitor.ErrNotFound
	}
	v.Status = status
	s.rows[chatID] = v
	return nil
}

func (s *fakeStore) UpdateModel(_ context.Context, chatID int64, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.rows[chatID]
	if !ok {
		return visitor.ErrNotFound
	}
	v.Model = model
	s.rows[chatID] = v
	return nil
}

func (s *fakeStore) ListAll(_ context.Context) ([]visitor.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []visitor.Visitor
	for _, v := range s.rows {
		out = append(out, v)
	}
	return out, nil
}

func (s *fakeStore) ListAdmins(_ context.Context) ([]visitor.Visitor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []visitor.Visitor
	for _, v := range s.rows {
		if v.IsAdmin {
			out = append(out, v)
		}
	}
	return out, nil
}

// fakeNotifier records every out-of-band message.
type fakeNotifier struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(map[int64][]string)}
}

func (n *fakeNotifier) SendTo(chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent[chatID] = append(n.sent[chatID], text)
	return nil
}

func (n *fakeNotifier) received(chatID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[chatID]
}

func newTestGate(reapproval bool) (*Gate, *fakeStore, *fakeNotifier) {
	store := newFakeStore()
	notifier := newFakeNotifier()
	g := New(store, notifier, config.AccessConfig{
		Admins:     []string{"bob"},
		Usernames:  []string{"bob", "verified_vera"},
		Reapproval: reapproval,
	})
	return g, store, notifier
}

func TestFirstContactUnlistedBecomesProcessing(t *testing.T) {
	g, store, notifier := newTestGate(false)
	ctx := context.Background()

	// Register an admin first so the broadcast has a recipient.
	store.Create(ctx, &visitor.Visitor{ChatID: 1, Username: "bob", IsAdmin: true, Status: visitor.StatusVerified})

	d, err := g.Admit(ctx, Sender{ChatID: 42, UserID: 420, Username: "alice", FullName: "Alice A"})
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if d.Proceed {
		t.Error("unlisted first contact must not proceed downstream")
	}
	if d.Visitor.Status != visitor.StatusProcessing {
		t.Errorf("expected processing, got %s", d.Visitor.Status)
	}
	if d.Reply == "" {
		t.Error("requester should be told the request is pending")
	}

	alerts := notifier.received(1)
	if len(alerts) != 1 {
		t.Fatalf("expected 1 admin alert, got %d", len(alerts))
	}
	if !strings.Contains(alerts[0], "/allow42") || !strings.Contains(alerts[0], "/decline42") {
		t.Errorf("admin alert missing approve/decline shortcuts: %q", alerts[0])
	}
}

func TestFirstContactAllowListedProceedsSameTurn(t *testing.T) {
	g, _, _ := newTestGate(false)

	d, err := g.Admit(context.Background(), Sender{ChatID: 7, Username: "verified_vera", FullName: "Vera V"})
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if !d.Proceed {
		t.Error("allow-listed first contact must proceed in the same turn")
	}
	if d.Visitor.Status != visitor.StatusVerified {
		t.Errorf("expected verified, got %s", d.Visitor.Status)
	}
	if d.Visitor.IsAdmin {
		t.Error("verified_vera should not be admin")
	}
	if d.Visitor.Model != "gpt-4o-mini" {
		t.Errorf("expected baseline model, got %q", d.Visitor.Model)
	}
}

func TestFirstContactAdminGetsAdminReply(t *testing.T) {
	g, _, _ := newTestGate(false)

	d, err := g.Admit(context.Background(), Sender{ChatID: 1, Username: "bob", FullName: "Bob B"})
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if !d.Proceed || !d.Visitor.IsAdmin {
		t.Error("admin first contact should proceed with is_admin set")
	}
	if !strings.Contains(d.Reply, "админ") {
		t.Errorf("expected admin greeting, got %q", d.Reply)
	}
}

func TestRepeatContactWhileProcessing(t *testing.T) {
	g, _, _ := newTestGate(false)
	ctx := context.Background()

	g.Admit(ctx, Sender{ChatID: 42, Username: "alice"})
	d, err := g.Admit(ctx, Sender{ChatID: 42, Username: "alice"})
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if d.Proceed {
		t.Error("processing visitor must not proceed")
	}
	if d.Reply != replyWait {
		t.Errorf("expected wait reply, got %q", d.Reply)
	}
}

func TestDeclinedVisitorIsRefused(t *testing.T) {
	g, store, _ := newTestGate(false)
	ctx := context.Background()

	store.Create(ctx, &visitor.Visitor{ChatID: 42, Username: "alice", Status: visitor.StatusDeclined})
	d, err := g.Admit(ctx, Sender{ChatID: 42, Username: "alice"})
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if d.Proceed {
		t.Error("declined visitor must not proceed")
	}
	if d.Reply != replyDenied {
		t.Errorf("expected denial reply, got %q", d.Reply)
	}
}

func TestCreateRaceFallsBackToExistingRow(t *testing.T) {
	_, store, _ := newTestGate(false)
	ctx := context.Background()

	// Simulate the losing side of a concurrent first contact: the row
	// appears between Get and Create.
	store.Create(ctx, &visitor.Visitor{ChatID: 42, Username: "alice", Status: visitor.StatusVerified})

	raced := &racingStore{fakeStore: store}
	g2 := New(raced, newFakeNotifier(), config.AccessConfig{Admins: []string{"bob"}, Usernames: []string{"bob"}})

	d, err := g2.Admit(ctx, Sender{ChatID: 42, Username: "alice"})
	if err != nil {
		t.Fatalf("Admit should absorb the create conflict: %v", err)
	}
	if !d.Proceed {
		t.Error("existing verified row should win the race and proceed")
	}
}

// racingStore reports ErrNotFound on the first Get, then delegates.
type racingStore struct {
	*fakeStore
	missed bool
}

func (s *racingStore) Get(ctx context.Context, chatID int64) (*visitor.Visitor, error) {
	if !s.missed {
		s.missed = true
		return nil, visitor.ErrNotFound
	}
	return s.fakeStore.Get(ctx, chatID)
}

func TestApproveTransitionsExactlyOnce(t *testing.T) {
	g, store, notifier := newTestGate(false)
	ctx := context.Background()

	store.Create(ctx, &visitor.Visitor{ChatID: 42, Username: "alice", FullName: "Alice A", Status: visitor.StatusProcessing})

	reply, err := g.Approve(ctx, 42)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if !strings.Contains(reply, "успешно предоставили") {
		t.Errorf("unexpected approve reply: %q", reply)
	}

	v, _ := store.Get(ctx, 42)
	if v.Status != visitor.StatusVerified {
		t.Errorf("expected verified, got %s", v.Status)
	}
	if got := notifier.received(42); len(got) != 1 || got[0] != noticeAllowed {
		t.Errorf("expected access notice, got %v", got)
	}

	// Second approval is an informational no-op.
	reply, err = g.Approve(ctx, 42)
	if err != nil {
		t.Fatalf("repeat Approve failed: %v", err)
	}
	if !strings.Contains(reply, "уже одобрили") {
		t.Errorf("expected already-approved reply, got %q", reply)
	}
	if got := notifier.received(42); len(got) != 1 {
		t.Errorf("repeat approval must not re-notify, got %v", got)
	}
}

func TestDeclineIsTerminalWithoutReapproval(t *testing.T) {
	g, store, _ := newTestGate(false)
	ctx := context.Background()

	store.Create(ctx, &visitor.Visitor{ChatID: 42, Username: "alice", Status: visitor.StatusProcessing})
	if _, err := g.Decline(ctx, 42); err != nil {
		t.Fatalf("Decline failed: %v", err)
	}

	reply, err := g.Approve(ctx, 42)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if !strings.Contains(reply, "уже отклонили") {
		t.Errorf("declined must be terminal, got %q", reply)
	}

	v, _ := store.Get(ctx, 42)
	if v.Status != visitor.StatusDeclined {
		t.Errorf("status flipped despite terminal policy: %s", v.Status)
	}
}

func TestReapprovalPolicyAllowsFlip(t *testing.T) {
	g, store, _ := newTestGate(true)
	ctx := context.Background()

	store.Create(ctx, &visitor.Visitor{ChatID: 42, Username: "alice", Status: visitor.StatusDeclined})

	reply, err := g.Approve(ctx, 42)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if !strings.Contains(reply, "успешно предоставили") {
		t.Errorf("reapproval should flip declined visitor, got %q", reply)
	}

	v, _ := store.Get(ctx, 42)
	if v.Status != visitor.StatusVerified {
		t.Errorf("expected verified after reapproval, got %s", v.Status)
	}
}

func TestApproveUnknownChatID(t *testing.T) {
	g, _, _ := newTestGate(false)

	reply, err := g.Approve(context.Background(), 999)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if !strings.Contains(reply, "Не найден") {
		t.Errorf("expected not-found reply, got %q", reply)
	}
}
