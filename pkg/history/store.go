// Package history keeps per-session conversation memory in process.
package history

import (
	"strings"
	"sync"
	"time"

	"github.com/xhad/regqa/internal/models"
	"go.uber.org/zap"
)

// DefaultTTL is how long a session survives after its newest turn.
const DefaultTTL = 24 * time.Hour

type StoreConfig struct {
	TTL time.Duration
	// Now replaces the wall clock, mostly for tests.
	Now func() time.Time
}

// Store maps session ids to their time-ordered turns.
type Store struct {
	mu       sync.Mutex
	config   StoreConfig
	sessions map[string][]models.ChatTurn
	logger   *zap.Logger
}

func NewWithConfig(config StoreConfig, logger *zap.Logger) *Store {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		config:   config,
		sessions: make(map[string][]models.ChatTurn),
		logger:   logger,
	}
}

func New() *Store {
	return NewWithConfig(StoreConfig{}, nil)
}

// Append records a turn. Anonymous requests (empty session id) are not tracked.
func (s *Store) Append(sessionID, question, answer string) {
	if sessionID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Now()
	s.evictExpired(now)

	turns := s.sessions[sessionID]
	// keep the session time-ordered even if the clock steps back
	if n := len(turns); n > 0 && now.Before(turns[n-1].Timestamp) {
		now = turns[n-1].Timestamp
	}
	s.sessions[sessionID] = append(turns, models.ChatTurn{
		Question:  question,
		Answer:    answer,
		Timestamp: now,
	})
	s.logger.Debug("history appended",
		zap.String("session_id", sessionID),
		zap.Int("turns", len(s.sessions[sessionID])))
}

// Turns returns copies of at most maxTurns most recent turns, oldest first.
func (s *Store) Turns(sessionID string, maxTurns int) []models.ChatTurn {
	if sessionID == "" || maxTurns <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired(s.config.Now())

	turns := s.sessions[sessionID]
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	if len(turns) == 0 {
		return nil
	}
	out := make([]models.ChatTurn, len(turns))
	copy(out, turns)
	return out
}

// Get formats the most recent turns as alternating "Q:" and "A:" lines.
func (s *Store) Get(sessionID string, maxTurns int) string {
	turns := s.Turns(sessionID, maxTurns)
	if len(turns) == 0 {
		return ""
	}

	lines := make([]string, 0, 2*len(turns))
	for _, t := range turns {
		lines = append(lines, "Q: "+t.Question, "A: "+t.Answer)
	}
	return strings.Join(lines, "\n")
}

// Clear drops a session. Unknown sessions are ignored.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; ok {
		delete(s.sessions, sessionID)
		s.logger.Debug("history cleared", zap.String("session_id", sessionID))
	}
}

// SessionCount returns the number of live sessions.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpired(s.config.Now())
	return len(s.sessions)
}

// evictExpired must be called with mu held.
func (s *Store) evictExpired(now time.Time) {
	for id, turns := range s.sessions {
		if len(turns) == 0 || now.Sub(turns[len(turns)-1].Timestamp) >= s.config.TTL {
			delete(s.sessions, id)
			s.logger.Debug("history session expired", zap.String("session_id", id))
		}
	}
}
