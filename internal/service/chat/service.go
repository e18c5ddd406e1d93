package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/echo/internal/model/chat"
)

// DefaultMaxHistory 每个会话保留的最大消息数
const DefaultMaxHistory = 50

var (
	ErrSessionRequired = errors.New("session id is required")
	ErrSessionNotFound = errors.New("session not found")
)

type sessionState struct {
	session   chat.Session
	messages  []chat.Message
	analytics chat.Analytics
}

// Service encapsulates conversation state management. Sessions are created
// implicitly by the first message.
type Service struct {
	mu         sync.RWMutex
	sessions   map[string]*sessionState
	maxHistory int
	now        func() time.Time
}

// NewService bootstraps the in-memory chat service.
func NewService(maxHistory int) *Service {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Service{
		sessions:   make(map[string]*sessionState),
		maxHistory: maxHistory,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SaveMessage appends a message to the session history, creating the session
// on first use. Oldest entries are dropped beyond the history cap.
func (s *Service) SaveMessage(_ context.Context, message chat.Message) error {
	if message.SessionID == "" {
		return ErrSessionRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	state, ok := s.sessions[message.SessionID]
	if !ok {
		state = &sessionState{
			session: chat.Session{ID: message.SessionID, CreatedAt: now},
			analytics: chat.Analytics{
				IntentsUsed:  make(map[string]int),
				SessionStart: now,
			},
		}
		s.sessions[message.SessionID] = state
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = now
	}

	state.messages = append(state.messages, message)
	if over := len(state.messages) - s.maxHistory; over > 0 {
		state.messages = append(state.messages[:0:0], state.messages[over:]...)
	}

	state.session.LastActive = now
	state.analytics.LastActive = now
	state.analytics.TotalMessages++
	if message.Intent != "" {
		state.analytics.IntentsUsed[message.Intent]++
	}
	return nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return state.session, nil
}

// LoadTranscript returns stored messages for the provided session. An unknown
// session has an empty transcript.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}

	copied := make([]chat.Message, len(state.messages))
	copy(copied, state.messages)
	return copied, nil
}

// Analytics returns a snapshot of the session statistics.
func (s *Service) Analytics(_ context.Context, sessionID string) (chat.Analytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return chat.Analytics{}, ErrSessionNotFound
	}

	snapshot := state.analytics
	snapshot.IntentsUsed = make(map[string]int, len(state.analytics.IntentsUsed))
	for k, v := range state.analytics.IntentsUsed {
		snapshot.IntentsUsed[k] = v
	}
	return snapshot, nil
}

// Clear drops all state for the session. Clearing an unknown session is not
// an error.
func (s *Service) Clear(_ context.Context, sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok
}
