package conversations

import (
	"strings"
	"testing"

	"github.com/Chative-rag-chat/server/internal/agent/model"
)

func TestRenderHistoryEmpty(t *testing.T) {
	if got := RenderHistory(nil, 3); got != "" {
		t.Fatalf("empty history rendered as %q", got)
	}
}

func TestRenderHistorySingleTurn(t *testing.T) {
	got := RenderHistory([]model.ChatTurn{{Query: "Hi", Answer: "Hello!"}}, 3)
	want := "Previous conversation:\nQ: Hi\nA: Hello!\n\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderHistoryKeepsLastTurnsInOrder(t *testing.T) {
	turns := []model.ChatTurn{
		{Query: "q1", Answer: "a1"},
		{Query: "q2", Answer: "a2"},
		{Query: "q3", Answer: "a3"},
		{Query: "q4", Answer: "a4"},
		{Query: "q5", Answer: "a5"},
	}
	got := RenderHistory(turns, 3)

	if strings.Count(got, "Q: ") != 3 {
		t.Fatalf("expected 3 pairs, got %q", got)
	}
	if strings.Contains(got, "q2") {
		t.Errorf("old turn leaked: %q", got)
	}
	if !(strings.Index(got, "q3") < strings.Index(got, "q4") && strings.Index(got, "q4") < strings.Index(got, "q5")) {
		t.Errorf("turns out of order: %q", got)
	}
}
