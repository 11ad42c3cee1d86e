package model

import (
	"context"
	"time"
)

// ChatTurn is one question with the answer shown to the user. Error answers
// are recorded too.
type ChatTurn struct {
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// NewChatTurn stamps a turn with the current time.
func NewChatTurn(query, answer string) ChatTurn {
	return ChatTurn{Query: query, Answer: answer, CreatedAt: time.Now().UTC()}
}

type HistoryRepository interface {
	// AppendTurn adds a turn to the end of the session history
	AppendTurn(ctx context.Context, sessionID string, turn ChatTurn) error

	// LoadHistory retrieves the full history of a session in chronological order
	LoadHistory(ctx context.Context, sessionID string) (*ConversationHistory, error)

	// ClearHistory removes all turns of a session
	ClearHistory(ctx context.Context, sessionID string) error

	// GetTurnCount returns the number of turns in the session
	GetTurnCount(ctx context.Context, sessionID string) (int, error)
}

// ConversationHistory represents loaded session turns with metadata.
type ConversationHistory struct {
	SessionID string
	Turns     []ChatTurn
}

// TrimTail returns a copy of the last n turns. n <= 0 yields an empty slice.
func TrimTail(turns []ChatTurn, n int) []ChatTurn {
	if n <= 0 {
		return []ChatTurn{}
	}
	source := turns
	if len(turns) > n {
		source = turns[len(turns)-n:]
	}
	result := make([]ChatTurn, len(source))
	copy(result, source)
	return result
}
