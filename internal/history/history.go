// Package history keeps the bounded per-user conversation context threaded
// into backend model calls.
package history

import (
	"sync"

	. "github.com/akorchagin/privratnik/internal/logging"
)

// Role tags one entry in a conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Entry is one role-tagged message in a user's stored history.
type Entry struct {
	Role    string
	Content string
}

// Store is the conversation-context contract. Implementations must be safe
// for concurrent per-key access; keys are never shared between users.
type Store interface {
	// Get returns a copy of the stored history for the user, oldest first.
	Get(userID int64) []Entry
	// Append records entries after a successful exchange, trimming the
	// oldest entries once the cap is exceeded.
	Append(userID int64, entries ...Entry)
	// Reset clears all stored history for the user; no-op if none exists.
	Reset(userID int64)
}

// MemoryStore is the process-local Store. State does not survive restarts.
type MemoryStore struct {
	mu    sync.Mutex
	limit int
	chats map[int64][]Entry
}

// NewMemoryStore creates a store capped at limit entries per user.
func NewMemoryStore(limit int) *MemoryStore {
	if limit < 1 {
		limit = 1
	}
	return &MemoryStore{
		limit: limit,
		chats: make(map[int64][]Entry),
	}
}

func (s *MemoryStore) Get(userID int64) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.chats[userID]
	if len(stored) == 0 {
		return nil
	}
	out := make([]Entry, len(stored))
	copy(out, stored)
	return out
}

func (s *MemoryStore) Append(userID int64, entries ...Entry) {
	if len(entries) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := append(s.chats[userID], entries...)
	if over := len(stored) - s.limit; over > 0 {
		// FIFO eviction, oldest first.
		stored = stored[over:]
		L_trace("history: trimmed", "userID", userID, "evicted", over)
	}
	s.chats[userID] = stored
}

func (s *MemoryStore) Reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[userID]; ok {
		delete(s.chats, userID)
		L_debug("history: reset", "userID", userID)
	}
}
