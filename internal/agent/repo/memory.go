package repo

import (
	"context"
	"sync"

	"github.com/Chative-rag-chat/server/internal/agent/model"
)

// MemoryHistoryRepository keeps history in process memory. Used when no
// Redis URL is configured and by the terminal client.
type MemoryHistoryRepository struct {
	mu       sync.RWMutex
	sessions map[string][]model.ChatTurn
}

func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{sessions: make(map[string][]model.ChatTurn)}
}

func (r *MemoryHistoryRepository) AppendTurn(_ context.Context, sessionID string, turn model.ChatTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = append(r.sessions[sessionID], turn)
	return nil
}

func (r *MemoryHistoryRepository) LoadHistory(_ context.Context, sessionID string) (*model.ConversationHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	turns := make([]model.ChatTurn, len(r.sessions[sessionID]))
	copy(turns, r.sessions[sessionID])
	return &model.ConversationHistory{SessionID: sessionID, Turns: turns}, nil
}

func (r *MemoryHistoryRepository) ClearHistory(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

func (r *MemoryHistoryRepository) GetTurnCount(_ context.Context, sessionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[sessionID]), nil
}

var _ model.HistoryRepository = (*MemoryHistoryRepository)(nil)
