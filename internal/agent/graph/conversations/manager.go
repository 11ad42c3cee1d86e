package conversations

import (
	"context"
	"strings"

	"github.com/Chative-rag-chat/server/internal/agent/model"
)

const historyHeader = "Previous conversation:\n"

type MessagesManager struct {
	historyRepo model.HistoryRepository
	maxTurns    int
}

func NewMessagesManager(historyRepo model.HistoryRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		historyRepo: historyRepo,
		maxTurns:    config.HistoryTurns,
	}
}

// MaxTurns is the number of recent turns injected into the prompt.
func (cm *MessagesManager) MaxTurns() int {
	return cm.maxTurns
}

// LoadHistory returns every turn of the session, oldest first.
func (cm *MessagesManager) LoadHistory(ctx context.Context, sessionID string) ([]model.ChatTurn, error) {
	history, err := cm.historyRepo.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return history.Turns, nil
}

// SaveTurn records a finished question and answer.
func (cm *MessagesManager) SaveTurn(ctx context.Context, sessionID string, turn model.ChatTurn) error {
	return cm.historyRepo.AppendTurn(ctx, sessionID, turn)
}

func (cm *MessagesManager) Clear(ctx context.Context, sessionID string) error {
	return cm.historyRepo.ClearHistory(ctx, sessionID)
}

func (cm *MessagesManager) Count(ctx context.Context, sessionID string) (int, error) {
	return cm.historyRepo.GetTurnCount(ctx, sessionID)
}

// RenderHistory renders the last maxTurns turns as the prompt history block.
// An empty history renders as the empty string.
func RenderHistory(turns []model.ChatTurn, maxTurns int) string {
	recent := model.TrimTail(turns, maxTurns)
	if len(recent) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(historyHeader)
	for _, turn := range recent {
		b.WriteString("Q: " + turn.Query + "\n")
		b.WriteString("A: " + turn.Answer + "\n\n")
	}
	return b.String()
}
