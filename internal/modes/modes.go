// Package modes tracks the per-user conversational mode governing how
// free-text input is interpreted.
package modes

import (
	"sync"

	. "github.com/akorchagin/privratnik/internal/logging"
)

// Mode is the current conversational context for one user.
type Mode int

const (
	// ModeDefault treats free text as one-shot search queries.
	ModeDefault Mode = iota
	// ModeFriendChat is a casual context-bearing conversation.
	ModeFriendChat
	// ModeTeacherFeedback returns language feedback on each turn.
	ModeTeacherFeedback
	// ModeImageGeneration turns free text into image prompts.
	ModeImageGeneration
)

func (m Mode) String() string {
	switch m {
	case ModeDefault:
		return "default"
	case ModeFriendChat:
		return "friend"
	case ModeTeacherFeedback:
		return "teacher"
	case ModeImageGeneration:
		return "images"
	default:
		return "unknown"
	}
}

// Sessions holds the per-user mode. Process-local, resets on restart.
type Sessions struct {
	mu    sync.Mutex
	modes map[int64]Mode
}

// NewSessions creates an empty session table; every user starts in ModeDefault.
func NewSessions() *Sessions {
	return &Sessions{modes: make(map[int64]Mode)}
}

// Current returns the user's mode, ModeDefault when unset.
func (s *Sessions) Current(userID int64) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modes[userID]
}

// Set is the single mode-transition function. It returns the previous mode.
func (s *Sessions) Set(userID int64, mode Mode) Mode {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.modes[userID]
	if mode == ModeDefault {
		delete(s.modes, userID)
	} else {
		s.modes[userID] = mode
	}
	if prev != mode {
		L_debug("modes: transition", "userID", userID, "from", prev.String(), "to", mode.String())
	}
	return prev
}

// Reset returns the user to ModeDefault and reports whether a non-default
// mode was active.
func (s *Sessions) Reset(userID int64) bool {
	return s.Set(userID, ModeDefault) != ModeDefault
}
