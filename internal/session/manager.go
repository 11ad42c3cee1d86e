package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Chative-rag-chat/server/internal/agent/graph/conversations"
	errx "github.com/Chative-rag-chat/server/internal/core/error"
	logx "github.com/Chative-rag-chat/server/pkg/logger"
)

type ManagerConfig struct {
	// IdleTTL closes sessions unused for this long. Zero disables expiry.
	IdleTTL time.Duration
	// VerboseErrors keeps error detail in recorded answers.
	VerboseErrors bool
}

type Manager struct {
	cfg      ManagerConfig
	newBot   BotFactory
	messages *conversations.MessagesManager

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(messages *conversations.MessagesManager, newBot BotFactory, cfg ManagerConfig) *Manager {
	return &Manager{
		cfg:      cfg,
		newBot:   newBot,
		messages: messages,
		sessions: make(map[string]*Session),
	}
}

// Create starts an empty, uninitialised session.
func (m *Manager) Create() *Session {
	s := newSession(uuid.NewString(), m.newBot, m.messages, m.cfg.VerboseErrors)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logx.Debug().Str("session_id", s.ID).Msg("Session created")
	return s
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errx.NotFound("session not found")
	}
	return s, nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Delete ends a session and drops its history.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return errx.NotFound("session not found")
	}

	if err := s.Close(); err != nil {
		logx.Warn().Err(err).Str("session_id", id).Msg("Error closing session")
	}
	return m.messages.Clear(ctx, id)
}

// Sweep closes sessions idle since before now minus IdleTTL and returns how many were closed.
func (m *Manager) Sweep(now time.Time) int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-m.cfg.IdleTTL)

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		if err := s.Close(); err != nil {
			logx.Warn().Err(err).Str("session_id", s.ID).Msg("Error closing expired session")
		}
		logx.Debug().Str("session_id", s.ID).Msg("Session expired")
	}
	return len(expired)
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.cfg.IdleTTL <= 0 {
		return
	}
	interval := m.cfg.IdleTTL / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				logx.Info().Int("expired", n).Int("active", m.Len()).Msg("Idle sessions closed")
			}
		}
	}
}

// CloseAll closes every session, used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}
